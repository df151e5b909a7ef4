package dispatch

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-autoapply/internal/ai"
	"github.com/spigell/hh-autoapply/internal/filtering"
	"github.com/spigell/hh-autoapply/internal/headhunter"
	"github.com/spigell/hh-autoapply/internal/messages"
)

type pageCall struct {
	path  string
	query url.Values
}

type fakeFetcher struct {
	// pages per résumé similar vacancies path, indexed by page number.
	pages  map[string][]*headhunter.VacancyPage
	errors map[string]error
	calls  []pageCall
}

func (f *fakeFetcher) GetVacancies(_ context.Context, path string, q url.Values) (*headhunter.VacancyPage, error) {
	f.calls = append(f.calls, pageCall{path: path, query: q})
	if err := f.errors[path]; err != nil {
		return nil, err
	}

	n, _ := strconv.Atoi(q.Get("page"))
	if pages := f.pages[path]; n < len(pages) {
		return pages[n], nil
	}
	return &headhunter.VacancyPage{}, nil
}

type submission struct {
	params headhunter.NegotiationParams
	delay  time.Duration
}

type fakeSubmitter struct {
	calls []submission
	// errs is consulted per call number, 1-based.
	errs map[int]error
}

func (f *fakeSubmitter) Apply(_ context.Context, params headhunter.NegotiationParams, delay time.Duration) error {
	f.calls = append(f.calls, submission{params: params, delay: delay})
	return f.errs[len(f.calls)]
}

func (f *fakeSubmitter) vacancyIDs(resumeID string) []string {
	var ids []string
	for _, c := range f.calls {
		if c.params.ResumeID == resumeID {
			ids = append(ids, c.params.VacancyID)
		}
	}
	return ids
}

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) Message(_ context.Context, vacancy *headhunter.Vacancy, _ messages.Placeholders) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "letter for " + vacancy.ID, nil
}

type fakeAccount struct {
	resumes   []*headhunter.Resume
	user      *headhunter.User
	meCalls   int
	resumeErr error
}

func (f *fakeAccount) GetMineResumes(context.Context) (*headhunter.Resumes, error) {
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	return &headhunter.Resumes{Items: f.resumes}, nil
}

func (f *fakeAccount) GetMe(context.Context) (*headhunter.User, error) {
	f.meCalls++
	return f.user, nil
}

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

func publishedResume(id string) *headhunter.Resume {
	return &headhunter.Resume{
		ID:           id,
		Title:        "résumé " + id,
		AlternateURL: "https://hh.ru/resume/" + id,
		Status:       headhunter.ResumeStatus{ID: headhunter.ResumeStatusPublished},
	}
}

func vacancy(id string) *headhunter.Vacancy {
	return &headhunter.Vacancy{
		ID:           id,
		Name:         "Go developer " + id,
		AlternateURL: "https://hh.ru/vacancy/" + id,
		Employer:     headhunter.Employer{ID: "employer-" + id},
	}
}

func page(pages int, vacancies ...*headhunter.Vacancy) *headhunter.VacancyPage {
	return &headhunter.VacancyPage{Items: vacancies, Pages: pages}
}

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

type harness struct {
	fetcher   *fakeFetcher
	submitter *fakeSubmitter
	provider  *fakeProvider
	account   *fakeAccount
	logs      *observer.ObservedLogs
	runner    *Runner
}

type harnessOptions struct {
	config   Config
	terms    filtering.Terms
	perPage  int
	pages    int
	resumeID string
}

func newHarness(account *fakeAccount, fetcher *fakeFetcher, submitter *fakeSubmitter, opts harnessOptions) *harness {
	log, logs := newObserved()
	provider := &fakeProvider{}
	if submitter == nil {
		submitter = &fakeSubmitter{}
	}

	source := NewSource(fetcher, nil, opts.perPage, opts.pages)
	dispatcher := NewDispatcher(log, filtering.Default(opts.terms), provider, submitter, opts.config, fixedRand(0))

	return &harness{
		fetcher:   fetcher,
		submitter: submitter,
		provider:  provider,
		account:   account,
		logs:      logs,
		runner:    NewRunner(log, account, source, dispatcher, opts.resumeID),
	}
}

func TestSourceStopsAtTotalPages(t *testing.T) {
	resume := publishedResume("r1")
	path := resume.SimilarVacanciesPath()
	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		path: {page(5, vacancy("v1")), page(5, vacancy("v2")), page(5, vacancy("v3"))},
	}}

	var got []string
	for v, err := range NewSource(fetcher, nil, 2, 2).Vacancies(context.Background(), resume) {
		require.NoError(t, err)
		got = append(got, v.ID)
	}

	assert.Equal(t, []string{"v1", "v2"}, got)
	require.Len(t, fetcher.calls, 2)
	for i, call := range fetcher.calls {
		assert.Equal(t, path, call.path)
		assert.Equal(t, strconv.Itoa(i), call.query.Get("page"))
		assert.Equal(t, "2", call.query.Get("per_page"))
	}
}

func TestSourceStopsAtLastUpstreamPage(t *testing.T) {
	resume := publishedResume("r1")
	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		resume.SimilarVacanciesPath(): {page(1, vacancy("v1"))},
	}}

	count := 0
	for _, err := range NewSource(fetcher, nil, 10, 5).Vacancies(context.Background(), resume) {
		require.NoError(t, err)
		count++
	}

	assert.Equal(t, 1, count)
	assert.Len(t, fetcher.calls, 1)
}

func TestSourceYieldsPageError(t *testing.T) {
	resume := publishedResume("r1")
	boom := errors.New("boom")
	fetcher := &fakeFetcher{errors: map[string]error{resume.SimilarVacanciesPath(): boom}}

	var errs []error
	for v, err := range NewSource(fetcher, nil, 10, 5).Vacancies(context.Background(), resume) {
		assert.Nil(t, v)
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	assert.Len(t, fetcher.calls, 1)
}

func TestSourceIsLazy(t *testing.T) {
	resume := publishedResume("r1")
	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		resume.SimilarVacanciesPath(): {page(3, vacancy("v1"), vacancy("v2")), page(3, vacancy("v3"))},
	}}

	for range NewSource(fetcher, nil, 2, 3).Vacancies(context.Background(), resume) {
		break
	}

	assert.Len(t, fetcher.calls, 1)
}

func TestSourceDefaults(t *testing.T) {
	source := NewSource(&fakeFetcher{}, nil, 500, 0)

	assert.Equal(t, headhunter.MaxPerPage, source.perPage)
	assert.Equal(t, DefaultTotalPages, source.totalPages)
}

func TestSourceSendsSearchParams(t *testing.T) {
	resume := publishedResume("r1")
	fetcher := &fakeFetcher{}
	params := &headhunter.SearchParams{Text: "golang", Schedules: []string{"remote"}}

	for range NewSource(fetcher, params, 10, 1).Vacancies(context.Background(), resume) {
	}

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, "golang", fetcher.calls[0].query.Get("text"))
	assert.Equal(t, "remote", fetcher.calls[0].query.Get("schedule"))
}

func TestRunWithoutPublishedResumes(t *testing.T) {
	draft := publishedResume("r1")
	draft.Status.ID = "not_published"
	account := &fakeAccount{resumes: []*headhunter.Resume{draft}}
	h := newHarness(account, &fakeFetcher{}, nil, harnessOptions{})

	stats, err := h.runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, 0, account.meCalls)
	assert.Empty(t, h.fetcher.calls)
	assert.Equal(t, 1, h.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("no published resumes found").Len())
}

func TestRunFailsWithoutResumes(t *testing.T) {
	account := &fakeAccount{resumeErr: errors.New("unauthorized")}
	h := newHarness(account, &fakeFetcher{}, nil, harnessOptions{})

	_, err := h.runner.Run(context.Background())
	assert.Error(t, err)
}

func TestRunSelectsResumeByID(t *testing.T) {
	account := &fakeAccount{resumes: []*headhunter.Resume{publishedResume("r1"), publishedResume("r2")}}
	r2 := publishedResume("r2").SimilarVacanciesPath()
	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{r2: {page(1, vacancy("v1"))}}}
	h := newHarness(account, fetcher, nil, harnessOptions{resumeID: "r2"})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, r2, fetcher.calls[0].path)
	assert.Equal(t, []string{"v1"}, h.submitter.vacancyIDs("r2"))
}

func TestRunFiltersCandidates(t *testing.T) {
	resume := publishedResume("r1")
	v2 := vacancy("v2")
	v2.Archived = true
	v4 := vacancy("v4")
	v4.Relations = []string{headhunter.RelationGotRejection}

	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		resume.SimilarVacanciesPath(): {page(2, vacancy("v1"), v2), page(2, vacancy("v3"), v4)},
	}}
	account := &fakeAccount{resumes: []*headhunter.Resume{resume}, user: &headhunter.User{FirstName: "Ivan"}}
	h := newHarness(account, fetcher, nil, harnessOptions{perPage: 2, pages: 2})

	stats, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"v1", "v3"}, h.submitter.vacancyIDs("r1"))
	assert.Equal(t, 1, account.meCalls)
	assert.Equal(t, Stats{Seen: 4, Skipped: 2, Applied: 2, Employers: 2}, stats)

	warnings := h.logs.FilterLevelExact(zapcore.WarnLevel)
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, "got a rejection from the employer", warnings.All()[0].Message)
	assert.Equal(t, "https://hh.ru/vacancy/v4", warnings.All()[0].ContextMap()["vacancy_url"])

	for _, call := range h.submitter.calls {
		assert.Empty(t, call.params.Message)
	}
	assert.Equal(t, 0, h.provider.calls)
}

func TestRunExcludedTerms(t *testing.T) {
	resume := publishedResume("r1")
	excluded := vacancy("v1")
	excluded.Name = "Senior Test Engineer"

	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		resume.SimilarVacanciesPath(): {page(1, excluded, vacancy("v2"))},
	}}
	account := &fakeAccount{resumes: []*headhunter.Resume{resume}}
	h := newHarness(account, fetcher, nil, harnessOptions{terms: filtering.ParseTerms("test,intern")})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"v2"}, h.submitter.vacancyIDs("r1"))
	warnings := h.logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("vacancy_url", "https://hh.ru/vacancy/v1"))
	assert.Equal(t, 1, warnings.Len())
}

func TestDispatchMessageOnlyWhenRequired(t *testing.T) {
	resume := publishedResume("r1")
	required := vacancy("v2")
	required.ResponseLetterRequired = true

	tests := []struct {
		name     string
		force    bool
		messages map[string]string
		calls    int
	}{
		{name: "not forced", messages: map[string]string{"v1": "", "v2": "letter for v2"}, calls: 1},
		{name: "forced", force: true, messages: map[string]string{"v1": "letter for v1", "v2": "letter for v2"}, calls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
				resume.SimilarVacanciesPath(): {page(1, vacancy("v1"), required)},
			}}
			account := &fakeAccount{resumes: []*headhunter.Resume{resume}}
			h := newHarness(account, fetcher, nil, harnessOptions{config: Config{ForceMessage: tt.force}})

			_, err := h.runner.Run(context.Background())
			require.NoError(t, err)

			got := map[string]string{}
			for _, call := range h.submitter.calls {
				got[call.params.VacancyID] = call.params.Message
			}
			assert.Equal(t, tt.messages, got)
			assert.Equal(t, tt.calls, h.provider.calls)
		})
	}
}

func TestRunRateLimitIsPerResume(t *testing.T) {
	r1, r2 := publishedResume("r1"), publishedResume("r2")
	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		r1.SimilarVacanciesPath(): {page(1, vacancy("a1"), vacancy("a2"), vacancy("a3"), vacancy("a4"), vacancy("a5"))},
		r2.SimilarVacanciesPath(): {page(1, vacancy("b1"), vacancy("b2"))},
	}}
	submitter := &fakeSubmitter{errs: map[int]error{
		3: &headhunter.APIError{StatusCode: 403, Method: "POST", Path: "/negotiations", Values: []string{"limit_exceeded"}},
	}}
	account := &fakeAccount{resumes: []*headhunter.Resume{r1, r2}}
	h := newHarness(account, fetcher, submitter, harnessOptions{})

	stats, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2", "a3"}, submitter.vacancyIDs("r1"))
	assert.Equal(t, []string{"b1", "b2"}, submitter.vacancyIDs("r2"))
	assert.Equal(t, 7, stats.Seen)
	assert.Equal(t, 4, stats.Applied)
	assert.Equal(t, 2, stats.Drained)

	limited := h.logs.FilterMessage("negotiations limit exceeded, stop applying with the resume")
	require.Equal(t, 1, limited.Len())
	assert.Equal(t, "https://hh.ru/resume/r1", limited.All()[0].ContextMap()["resume_url"])

	finished := h.logs.FilterMessage("finished applying with resume").All()
	require.Len(t, finished, 2)
	assert.Equal(t, "rate_limited", finished[0].ContextMap()["state"])
	assert.Equal(t, "active", finished[1].ContextMap()["state"])
}

func TestDispatchDryRun(t *testing.T) {
	resume := publishedResume("r1")
	skipped := vacancy("v3")
	skipped.HasTest = true

	fetcher := &fakeFetcher{pages: map[string][]*headhunter.VacancyPage{
		resume.SimilarVacanciesPath(): {page(1, vacancy("v1"), vacancy("v2"), skipped)},
	}}
	account := &fakeAccount{resumes: []*headhunter.Resume{resume}}
	h := newHarness(account, fetcher, nil, harnessOptions{config: Config{DryRun: true, ForceMessage: true}})

	stats, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.submitter.calls)
	assert.Equal(t, 2, h.provider.calls)
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 1, stats.Skipped)

	applied := h.logs.FilterMessage("successfully applied to vacancy").FilterField(zap.Bool("dry_run", true))
	assert.Equal(t, 2, applied.Len())
}

func TestDispatchContinuesAfterErrors(t *testing.T) {
	resume := publishedResume("r1")
	log, logs := newObserved()

	submitter := &fakeSubmitter{errs: map[int]error{
		1: &headhunter.APIError{StatusCode: 500, Method: "POST", Path: "/negotiations"},
		2: &headhunter.BadResponseError{Path: "/negotiations", Err: errors.New("garbage")},
	}}
	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		for _, id := range []string{"v1", "v2", "v3"} {
			if !yield(vacancy(id), nil) {
				return
			}
		}
	}

	d := NewDispatcher(log, filtering.Default(nil), &fakeProvider{}, submitter, Config{}, fixedRand(0))
	stats, err := d.Dispatch(context.Background(), resume, nil, vacancies)

	require.NoError(t, err)
	assert.Len(t, submitter.calls, 3)
	assert.Equal(t, Stats{Seen: 3, Applied: 1, Failed: 2, Employers: 3, State: StateActive}, stats)
	assert.Equal(t, 2, logs.FilterMessage("applying to vacancy").Len())
}

func TestDispatchSkipsVacancyOnAIError(t *testing.T) {
	resume := publishedResume("r1")
	log, logs := newObserved()
	provider := &fakeProvider{err: &ai.Error{Provider: "gemini", Err: errors.New("quota")}}
	submitter := &fakeSubmitter{}

	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		yield(vacancy("v1"), nil)
	}

	d := NewDispatcher(log, filtering.Default(nil), provider, submitter, Config{ForceMessage: true}, fixedRand(0))
	stats, err := d.Dispatch(context.Background(), resume, nil, vacancies)

	require.NoError(t, err)
	assert.Empty(t, submitter.calls)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, logs.FilterMessage("composing message").Len())
}

func TestDispatchStopsWhenCancelledDuringMessage(t *testing.T) {
	log, _ := newObserved()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{err: &ai.Error{Provider: "gemini", Err: context.Canceled}}
	submitter := &fakeSubmitter{}
	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		if yield(vacancy("v1"), nil) {
			yield(vacancy("v2"), nil)
		}
	}

	d := NewDispatcher(log, filtering.Default(nil), provider, submitter, Config{ForceMessage: true}, fixedRand(0))
	stats, err := d.Dispatch(ctx, publishedResume("r1"), nil, vacancies)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 0, stats.Failed)
	assert.Empty(t, submitter.calls)
}

func TestDispatchFailsOnMissingPlaceholder(t *testing.T) {
	resume := publishedResume("r1")
	log, _ := newObserved()
	pool, err := messages.NewPool("Hi %(nickname)s")
	require.NoError(t, err)
	submitter := &fakeSubmitter{}

	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		if yield(vacancy("v1"), nil) {
			yield(vacancy("v2"), nil)
		}
	}

	d := NewDispatcher(log, filtering.Default(nil), messages.NewTemplateProvider(pool, nil), submitter, Config{ForceMessage: true}, fixedRand(0))
	_, err = d.Dispatch(context.Background(), resume, messages.NewPlaceholders(nil, resume), vacancies)

	assert.ErrorIs(t, err, messages.ErrMissingPlaceholder)
	assert.Empty(t, submitter.calls)
}

func TestRunContinuesAfterPageError(t *testing.T) {
	r1, r2 := publishedResume("r1"), publishedResume("r2")
	fetcher := &fakeFetcher{
		errors: map[string]error{r1.SimilarVacanciesPath(): &headhunter.APIError{StatusCode: 502, Method: "GET"}},
		pages:  map[string][]*headhunter.VacancyPage{r2.SimilarVacanciesPath(): {page(1, vacancy("v1"))}},
	}
	account := &fakeAccount{resumes: []*headhunter.Resume{r1, r2}}
	h := newHarness(account, fetcher, nil, harnessOptions{})

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"v1"}, h.submitter.vacancyIDs("r2"))
	assert.Equal(t, 1, h.logs.FilterMessage("getting similar vacancies").Len())
}

func TestDispatchDelay(t *testing.T) {
	log, _ := newObserved()
	submitter := &fakeSubmitter{}
	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		yield(vacancy("v1"), nil)
	}

	d := NewDispatcher(log, filtering.Default(nil), &fakeProvider{}, submitter, Config{}, fixedRand(0.5))
	_, err := d.Dispatch(context.Background(), publishedResume("r1"), nil, vacancies)

	require.NoError(t, err)
	require.Len(t, submitter.calls, 1)
	assert.Equal(t, 2*time.Second, submitter.calls[0].delay)
}

func TestDispatchShortensVacancyNameInLog(t *testing.T) {
	log, logs := newObserved()
	long := vacancy("v1")
	long.Name = strings.Repeat("Ведущий инженер ", 6)

	vacancies := func(yield func(*headhunter.Vacancy, error) bool) {
		yield(long, nil)
	}

	d := NewDispatcher(log, filtering.Default(nil), &fakeProvider{}, &fakeSubmitter{}, Config{DryRun: true}, fixedRand(0))
	_, err := d.Dispatch(context.Background(), publishedResume("r1"), nil, vacancies)
	require.NoError(t, err)

	applied := logs.FilterMessage("successfully applied to vacancy").All()
	require.Len(t, applied, 1)
	name := applied[0].ContextMap()["vacancy_name"].(string)
	assert.Equal(t, vacancyNameLength+len("..."), utf8.RuneCountInString(name))
	assert.True(t, strings.HasPrefix(long.Name, strings.TrimSuffix(name, "...")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "rate_limited", StateRateLimited.String())
	assert.Equal(t, "unknown", State(42).String())
}
