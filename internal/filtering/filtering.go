package filtering

import (
	"github.com/spigell/hh-autoapply/internal/headhunter"
)

// Filter is a single eligibility check. Check must not keep state between calls.
type Filter interface {
	Name() string
	IsEnabled() bool
	Check(v *headhunter.Vacancy) Verdict
}

// Verdict describes the outcome of checking a vacancy.
type Verdict struct {
	Eligible bool
	// Filter is the name of the rejecting step.
	Filter string
	Reason string
	// Warn asks the caller to surface Reason to the user. Silent skips leave it false.
	Warn bool
}

var eligible = Verdict{Eligible: true}

func skip(filter, reason string) Verdict {
	return Verdict{Filter: filter, Reason: reason}
}

func warn(filter, reason string) Verdict {
	return Verdict{Filter: filter, Reason: reason, Warn: true}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Filtering runs steps in order; the first rejecting step wins.
type Filtering struct {
	steps []Filter
}

func New(steps ...Filter) *Filtering {
	return &Filtering{steps: steps}
}

// Default is the chain every run starts with. Extra steps are appended after it.
func Default(terms Terms, extra ...Filter) *Filtering {
	steps := []Filter{
		NewUnavailable(),
		NewRelations(),
		NewExcludedTerms(terms),
	}
	return New(append(steps, extra...)...)
}

func (f *Filtering) Check(v *headhunter.Vacancy) Verdict {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if verdict := step.Check(v); !verdict.Eligible {
			verdict.Filter = step.Name()
			return verdict
		}
	}
	return eligible
}

// Describe returns status entries for the configured steps.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
