package headhunter

import (
	"context"
	"time"

	"github.com/spigell/hh-autoapply/internal/utils"
)

const apiNegotiationPath = "/negotiations"

// NegotiationParams are the form fields of a new application.
type NegotiationParams struct {
	ResumeID  string
	VacancyID string
	// Message may be empty when the vacancy does not require a cover letter.
	Message string
}

func (p NegotiationParams) form() map[string]string {
	return map[string]string{
		"resume_id":  p.ResumeID,
		"vacancy_id": p.VacancyID,
		"message":    p.Message,
	}
}

func (c *Client) postNegotiation(ctx context.Context, params NegotiationParams, delay time.Duration) error {
	if err := utils.WaitFor(ctx, delay); err != nil {
		return err
	}

	return c.postFormData(ctx, apiNegotiationPath, params.form())
}
