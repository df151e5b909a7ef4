package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	apiURL       = "https://api.hh.ru"
	mineResumeID = "mine"
	userAgent    = "spigell/hh-autoapply (spigelly@gmail.com)"
	// MaxPerPage is the largest page size accepted by the API.
	MaxPerPage = 100

	// DefaultTimeout and DefaultRetries are used by the cli when not configured.
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2

	retryWaitTime = 500 * time.Millisecond
)

// Options tune the transport. Zero values fall back to defaults.
type Options struct {
	APIURL    string
	UserAgent string
	Timeout   time.Duration
	// Retries applies to GET requests only. Submissions are never retried.
	Retries int
}

type Client struct {
	logger *zap.Logger
	http   *resty.Client
}

func New(logger *zap.Logger, token string, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if base == "" {
		base = apiURL
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = userAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetAuthToken(token).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", contentType).
		SetTimeout(timeout).
		SetRetryCount(max(opts.Retries, 0)).
		SetRetryWaitTime(retryWaitTime).
		AddRetryCondition(retryIdempotent)

	return &Client{
		logger: logger,
		http:   httpClient,
	}
}

func (c *Client) GetMineResumes(ctx context.Context) (*Resumes, error) {
	return c.getResumes(ctx, mineResumeID)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, mePath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetVacancies fetches a single page of vacancies from a paginated resource.
func (c *Client) GetVacancies(ctx context.Context, path string, q url.Values) (*VacancyPage, error) {
	response, err := c.GetItems(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var vacancies []*Vacancy
	if err := decodeItems(response.Items, &vacancies); err != nil {
		return nil, &BadResponseError{Path: path, Err: err}
	}

	return &VacancyPage{
		Items:   vacancies,
		Found:   response.Found,
		Pages:   response.Pages,
		Page:    response.Page,
		PerPage: response.PerPage,
	}, nil
}

// Apply submits a negotiation after waiting for delay.
func (c *Client) Apply(ctx context.Context, params NegotiationParams, delay time.Duration) error {
	return c.postNegotiation(ctx, params, delay)
}

func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

func resourcePath(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return fmt.Sprintf("/%s", strings.Join(escaped, "/"))
}
