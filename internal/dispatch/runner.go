package dispatch

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/spigell/hh-autoapply/internal/headhunter"
	"github.com/spigell/hh-autoapply/internal/logger"
	"github.com/spigell/hh-autoapply/internal/messages"
)

// Account reads the authorized user data.
type Account interface {
	GetMineResumes(ctx context.Context) (*headhunter.Resumes, error)
	GetMe(ctx context.Context) (*headhunter.User, error)
}

// VacancyStream produces the vacancies to consider for a résumé.
type VacancyStream interface {
	Vacancies(ctx context.Context, resume *headhunter.Resume) iter.Seq2[*headhunter.Vacancy, error]
}

// Runner applies every published résumé, one after another.
type Runner struct {
	logger     *zap.Logger
	account    Account
	source     VacancyStream
	dispatcher *Dispatcher
	// resumeID narrows the run to a single résumé when set.
	resumeID string
}

func NewRunner(log *zap.Logger, account Account, source VacancyStream, dispatcher *Dispatcher, resumeID string) *Runner {
	return &Runner{
		logger:     logger.WithFields(log),
		account:    account,
		source:     source,
		dispatcher: dispatcher,
		resumeID:   resumeID,
	}
}

// Run returns an error only when the run cannot proceed at all.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var total Stats

	resumes, err := r.account.GetMineResumes(ctx)
	if err != nil {
		return total, fmt.Errorf("getting mine resumes: %w", err)
	}

	published := resumes.Published(r.resumeID)
	if published.Len() == 0 {
		r.logger.Warn("no published resumes found", zap.String("resume_id", r.resumeID), zap.Int("resumes", resumes.Len()))
		return total, nil
	}

	user, err := r.account.GetMe(ctx)
	if err != nil {
		return total, fmt.Errorf("getting user profile: %w", err)
	}

	r.logger.Info("got published resumes", zap.Int("count", published.Len()), zap.Strings("titles", published.Titles()))

	for _, resume := range published.Items {
		log := r.logger.With(logger.ResumeFields(resume.ID, resume.AlternateURL)...)
		log.Info("starting to apply with resume", zap.String("title", resume.Title))

		stats, err := r.dispatcher.Dispatch(ctx, resume, messages.NewPlaceholders(user, resume), r.source.Vacancies(ctx, resume))
		total.add(stats)
		if err != nil {
			return total, fmt.Errorf("applying with resume %s: %w", resume.ID, err)
		}

		log.Info("finished applying with resume",
			zap.String("title", resume.Title),
			zap.String("state", stats.State.String()),
			zap.Int("seen", stats.Seen),
			zap.Int("skipped", stats.Skipped),
			zap.Int("applied", stats.Applied),
			zap.Int("failed", stats.Failed),
			zap.Int("drained", stats.Drained),
		)
	}

	r.logger.Info("applications are sent",
		zap.Int("resumes", published.Len()),
		zap.Int("seen", total.Seen),
		zap.Int("applied", total.Applied),
		zap.Int("failed", total.Failed),
	)

	return total, nil
}
