package dispatch

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/spigell/hh-autoapply/internal/headhunter"
)

const (
	DefaultTotalPages = 20
	DefaultPerPage    = headhunter.MaxPerPage
)

// PageFetcher reads one page of a paginated vacancies resource.
type PageFetcher interface {
	GetVacancies(ctx context.Context, path string, q url.Values) (*headhunter.VacancyPage, error)
}

// Source walks the similar vacancies of a résumé over a bounded number of pages.
type Source struct {
	fetcher    PageFetcher
	params     *headhunter.SearchParams
	perPage    int
	totalPages int
}

// NewSource clamps perPage to the upstream maximum. Non-positive values fall back to defaults.
func NewSource(fetcher PageFetcher, params *headhunter.SearchParams, perPage, totalPages int) *Source {
	if perPage <= 0 || perPage > headhunter.MaxPerPage {
		perPage = DefaultPerPage
	}
	if totalPages <= 0 {
		totalPages = DefaultTotalPages
	}

	return &Source{
		fetcher:    fetcher,
		params:     params,
		perPage:    perPage,
		totalPages: totalPages,
	}
}

// Vacancies lazily yields vacancies page by page starting at page 0.
// A failed page is yielded as an error and ends the sequence. Pages are fetched once per range.
func (s *Source) Vacancies(ctx context.Context, resume *headhunter.Resume) iter.Seq2[*headhunter.Vacancy, error] {
	path := resume.SimilarVacanciesPath()

	return func(yield func(*headhunter.Vacancy, error) bool) {
		for page := range s.totalPages {
			resp, err := s.fetcher.GetVacancies(ctx, path, s.params.Query(page, s.perPage))
			if err != nil {
				yield(nil, fmt.Errorf("fetch page %d of %s: %w", page, path, err))
				return
			}

			for _, vacancy := range resp.Items {
				if vacancy == nil {
					continue
				}
				if !yield(vacancy, nil) {
					return
				}
			}

			if resp.Pages > 0 && page+1 >= resp.Pages {
				return
			}
		}
	}
}
