package headhunter

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
)

// RelationGotRejection marks a vacancy whose employer already rejected the résumé.
const RelationGotRejection = "got_rejection"

// VacancyPage is one page of a paginated vacancy resource.
type VacancyPage struct {
	Items   []*Vacancy
	Found   int
	Pages   int
	Page    int
	PerPage int
}

type Vacancy struct {
	ID                     string     `json:"id,omitempty"`
	Name                   string     `json:"name,omitempty"`
	Area                   Area       `json:"area,omitempty"`
	HasTest                bool       `json:"has_test,omitempty"`
	ResponseLetterRequired bool       `json:"response_letter_required,omitempty"`
	Archived               bool       `json:"archived,omitempty"`
	Relations              []string   `json:"relations,omitempty"`
	Salary                 Salary     `json:"salary,omitempty"`
	Experience             Dictionary `json:"experience,omitempty"`
	Schedule               Dictionary `json:"schedule,omitempty"`
	Employment             Dictionary `json:"employment,omitempty"`
	Employer               Employer   `json:"employer,omitempty"`
	Snippet                Snippet    `json:"snippet,omitempty"`
	AlternateURL           string     `json:"alternate_url,omitempty"`
	CreatedAt              string     `json:"created_at,omitempty"`
	PublishedAt            string     `json:"published_at,omitempty"`
}

type Area struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

// Dictionary is an id/name pair from the hh dictionaries.
type Dictionary struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Employer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

// Snippet holds highlighted requirement and responsibility fragments from search results.
type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

func (va *Vacancy) HasRelation(relation string) bool {
	return slices.Contains(va.Relations, relation)
}

// ExcludedVacancies is the content of an exclude file.
type ExcludedVacancies struct {
	Items []*ExcludedVacancy
}

type ExcludedVacancy struct {
	ID           string
	URL          string
	EmployerName string
	ExcludedAt   time.Time
}

func GetExcludedVacanciesFromFile(path string) (*ExcludedVacancies, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedVacancies{}, nil
	}

	var excluded ExcludedVacancies
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

func (v *ExcludedVacancies) VacanciesIDs() []string {
	ids := make([]string, 0, len(v.Items))
	for _, vacancy := range v.Items {
		ids = append(ids, vacancy.ID)
	}
	return ids
}
