package headhunter

import (
	"context"
	"fmt"
)

const (
	resumesPath = "resumes"
	mePath      = "/me"
	// ResumeStatusPublished marks résumés visible to employers.
	ResumeStatusPublished = "published"
)

type Resumes struct {
	Items []*Resume
}

type Resume struct {
	ID           string       `json:"id,omitempty"`
	Title        string       `json:"title,omitempty"`
	AlternateURL string       `json:"alternate_url,omitempty"`
	Status       ResumeStatus `json:"status"`
}

type ResumeStatus struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// User is the authorized applicant.
type User struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c *Client) getResumes(ctx context.Context, id string) (*Resumes, error) {
	items, err := c.getAllItems(ctx, resourcePath(resumesPath, id), nil)
	if err != nil {
		return nil, err
	}

	var resumes []*Resume
	if err = decodeItems(items, &resumes); err != nil {
		return nil, &BadResponseError{Path: resourcePath(resumesPath, id), Err: fmt.Errorf("decode resumes: %w", err)}
	}

	return &Resumes{
		Items: resumes,
	}, nil
}

func (r *Resume) IsPublished() bool {
	return r.Status.ID == ResumeStatusPublished
}

// SimilarVacanciesPath is the paginated resource of vacancies matched to the résumé.
func (r *Resume) SimilarVacanciesPath() string {
	return resourcePath(resumesPath, r.ID, "similar_vacancies")
}

func (r *Resumes) Len() int {
	return len(r.Items)
}

func (r *Resumes) Titles() []string {
	titles := make([]string, 0, len(r.Items))

	for _, v := range r.Items {
		titles = append(titles, v.Title)
	}

	return titles
}

// Published keeps published résumés, narrowed to id when it is not empty.
func (r *Resumes) Published(id string) *Resumes {
	kept := make([]*Resume, 0, len(r.Items))
	for _, resume := range r.Items {
		if !resume.IsPublished() {
			continue
		}
		if id != "" && resume.ID != id {
			continue
		}
		kept = append(kept, resume)
	}

	return &Resumes{Items: kept}
}
