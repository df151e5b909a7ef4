package filtering

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spigell/hh-autoapply/internal/headhunter"
)

type unavailableFilter struct{}

// NewUnavailable rejects archived vacancies and vacancies requiring a screening test.
// It is impossible to apply to them through the API.
func NewUnavailable() Filter {
	return &unavailableFilter{}
}

func (f *unavailableFilter) Name() string { return "unavailable" }

func (f *unavailableFilter) IsEnabled() bool { return true }

func (f *unavailableFilter) Check(v *headhunter.Vacancy) Verdict {
	switch {
	case v.Archived:
		return skip(f.Name(), "vacancy is archived")
	case v.HasTest:
		return skip(f.Name(), "vacancy requires a test")
	}
	return eligible
}

type relationsFilter struct{}

// NewRelations rejects vacancies with any prior interaction. A rejection is reported to the user.
func NewRelations() Filter {
	return &relationsFilter{}
}

func (f *relationsFilter) Name() string { return "relations" }

func (f *relationsFilter) IsEnabled() bool { return true }

func (f *relationsFilter) Check(v *headhunter.Vacancy) Verdict {
	if len(v.Relations) == 0 {
		return eligible
	}
	if v.HasRelation(headhunter.RelationGotRejection) {
		return warn(f.Name(), "got a rejection from the employer")
	}
	return skip(f.Name(), fmt.Sprintf("already related: %s", strings.Join(v.Relations, ",")))
}

type excludedTermsFilter struct {
	terms Terms
}

// NewExcludedTerms rejects vacancies whose name or snippet mentions any of terms.
func NewExcludedTerms(terms Terms) Filter {
	return &excludedTermsFilter{terms: terms}
}

func (f *excludedTermsFilter) Name() string { return "excluded_terms" }

func (f *excludedTermsFilter) IsEnabled() bool { return len(f.terms) > 0 }

func (f *excludedTermsFilter) Check(v *headhunter.Vacancy) Verdict {
	text := strings.Join([]string{v.Name, v.Snippet.Requirement, v.Snippet.Responsibility}, " ")
	if term, ok := f.terms.Match(text); ok {
		return warn(f.Name(), fmt.Sprintf("vacancy contains excluded term %q", term))
	}
	return eligible
}

func (f *excludedTermsFilter) Status() Status {
	details := map[string]string{}
	if len(f.terms) > 0 {
		details["terms"] = f.terms.String()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}

type employersFilter struct {
	employers []string
}

// NewExcludedEmployers rejects vacancies of the given employer ids.
func NewExcludedEmployers(employers []string) Filter {
	return &employersFilter{employers: employers}
}

func (f *employersFilter) Name() string { return "employers" }

func (f *employersFilter) IsEnabled() bool { return len(f.employers) > 0 }

func (f *employersFilter) Check(v *headhunter.Vacancy) Verdict {
	if slices.Contains(f.employers, v.Employer.ID) {
		return skip(f.Name(), fmt.Sprintf("employer %s is excluded", v.Employer.ID))
	}
	return eligible
}

func (f *employersFilter) Status() Status {
	details := map[string]string{}
	if len(f.employers) > 0 {
		details["employers"] = strings.Join(f.employers, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}

type excludeFileFilter struct {
	path string
	ids  map[string]struct{}
}

// NewExcludeFile rejects vacancies listed in the exclude file. The file is read once.
func NewExcludeFile(path string) (Filter, error) {
	f := &excludeFileFilter{path: strings.TrimSpace(path), ids: map[string]struct{}{}}
	if f.path == "" {
		return f, nil
	}

	excluded, err := headhunter.GetExcludedVacanciesFromFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("getting excluded vacancies from file: %w", err)
	}

	for _, id := range excluded.VacanciesIDs() {
		f.ids[id] = struct{}{}
	}

	return f, nil
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) IsEnabled() bool { return f.path != "" }

func (f *excludeFileFilter) Check(v *headhunter.Vacancy) Verdict {
	if _, ok := f.ids[v.ID]; ok {
		return skip(f.Name(), "vacancy is listed in exclude file")
	}
	return eligible
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
		details["vacancies"] = strconv.Itoa(len(f.ids))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}
