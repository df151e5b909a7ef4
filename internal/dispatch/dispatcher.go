package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-autoapply/internal/filtering"
	"github.com/spigell/hh-autoapply/internal/headhunter"
	"github.com/spigell/hh-autoapply/internal/logger"
	"github.com/spigell/hh-autoapply/internal/messages"
	"github.com/spigell/hh-autoapply/internal/utils"
)

const (
	DefaultDelayMin = time.Second
	DefaultDelayMax = 3 * time.Second

	vacancyNameLength = 60
)

// Checker decides whether a vacancy is eligible.
type Checker interface {
	Check(v *headhunter.Vacancy) filtering.Verdict
}

// Submitter creates negotiations.
type Submitter interface {
	Apply(ctx context.Context, params headhunter.NegotiationParams, delay time.Duration) error
}

// Rand returns a float in [0, 1).
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

type Config struct {
	DryRun       bool
	ForceMessage bool
	DelayMin     time.Duration
	DelayMax     time.Duration
}

// Dispatcher applies a résumé to the vacancies of a stream.
type Dispatcher struct {
	logger    *zap.Logger
	checker   Checker
	messages  messages.Provider
	submitter Submitter
	config    Config
	rnd       Rand
}

func NewDispatcher(log *zap.Logger, checker Checker, provider messages.Provider, submitter Submitter, config Config, rnd Rand) *Dispatcher {
	if config.DelayMin <= 0 && config.DelayMax <= 0 {
		config.DelayMin, config.DelayMax = DefaultDelayMin, DefaultDelayMax
	}
	if config.DelayMax < config.DelayMin {
		config.DelayMax = config.DelayMin
	}
	if rnd == nil {
		rnd = globalRand{}
	}

	return &Dispatcher{
		logger:    logger.WithFields(log),
		checker:   checker,
		messages:  provider,
		submitter: submitter,
		config:    config,
		rnd:       rnd,
	}
}

// Dispatch consumes the whole stream. Only a template configuration defect or a
// cancelled context is returned as an error, everything else is logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, resume *headhunter.Resume, values messages.Placeholders, vacancies iter.Seq2[*headhunter.Vacancy, error]) (stats Stats, err error) {
	log := d.logger.With(logger.ResumeFields(resume.ID, resume.AlternateURL)...)
	state := newResumeState()

	defer func() {
		stats.State = state.state
		stats.Employers = len(state.seenEmployers)
	}()

	for vacancy, fetchErr := range vacancies {
		if fetchErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			log.Error("getting similar vacancies", zap.Error(fetchErr))
			return stats, nil
		}

		stats.Seen++

		if !state.active() {
			stats.Drained++
			continue
		}

		if err := d.process(ctx, log, state, resume, values, vacancy, &stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (d *Dispatcher) process(ctx context.Context, log *zap.Logger, state *resumeState, resume *headhunter.Resume, values messages.Placeholders, vacancy *headhunter.Vacancy, stats *Stats) error {
	log = log.With(logger.VacancyFields(vacancy.ID, vacancy.AlternateURL)...)

	if verdict := d.checker.Check(vacancy); !verdict.Eligible {
		stats.Skipped++
		if verdict.Warn {
			log.Warn(verdict.Reason, zap.String("filter", verdict.Filter))
		} else {
			log.Debug("skipping vacancy", zap.String("filter", verdict.Filter), zap.String("reason", verdict.Reason))
		}
		return nil
	}

	state.seeEmployer(vacancy.Employer.ID)

	params := headhunter.NegotiationParams{
		ResumeID:  resume.ID,
		VacancyID: vacancy.ID,
	}

	if messages.Required(vacancy, d.config.ForceMessage) {
		message, err := d.messages.Message(ctx, vacancy, values)
		if err != nil {
			if errors.Is(err, messages.ErrMissingPlaceholder) {
				return fmt.Errorf("compose message for vacancy %s: %w", vacancy.ID, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			stats.Failed++
			log.Error("composing message", zap.Error(err))
			return nil
		}
		params.Message = message
	}

	if !d.config.DryRun {
		err := d.submitter.Apply(ctx, params, d.delay())
		switch {
		case errors.Is(err, headhunter.ErrLimitExceeded):
			state.rateLimit()
			log.Warn("negotiations limit exceeded, stop applying with the resume")
			return nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			stats.Failed++
			log.Error("applying to vacancy", zap.Error(err))
			return nil
		}
	}

	stats.Applied++
	log.Info("successfully applied to vacancy",
		zap.String("vacancy_name", utils.TruncateForLog(vacancy.Name, vacancyNameLength)),
		zap.Bool("with_message", params.Message != ""),
		zap.Bool("dry_run", d.config.DryRun),
	)

	return nil
}

// delay is uniform in [DelayMin, DelayMax].
func (d *Dispatcher) delay() time.Duration {
	spread := d.config.DelayMax - d.config.DelayMin
	return d.config.DelayMin + time.Duration(d.rnd.Float64()*float64(spread))
}
