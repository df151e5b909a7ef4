package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const contentType = "application/json"

type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item any

// GetItems makes a GET request to a paginated resource and returns the requested page only.
func (c *Client) GetItems(ctx context.Context, path string, q url.Values) (*ItemResponse, error) {
	resp, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var response ItemResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, &BadResponseError{Path: path, Err: err}
	}

	c.logger.Debug("got response from HH.ru",
		zap.String("path", path),
		zap.Int("page", response.Page),
		zap.Int("pages", response.Pages),
		zap.Int("max items per page", response.PerPage),
	)

	return &response, nil
}

// getAllItems walks every page reported by the API.
func (c *Client) getAllItems(ctx context.Context, path string, q url.Values) ([]Item, error) {
	response, err := c.GetItems(ctx, path, q)
	if err != nil {
		return nil, err
	}

	items := append([]Item(nil), response.Items...)

	for response.Page < (response.Pages - 1) {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		response, err = c.GetItems(ctx, path, addPage(q, response.Page+1))
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	return items, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	resp, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return &BadResponseError{Path: path, Err: err}
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*resty.Response, error) {
	c.logger.Debug("make request", zap.String("method", http.MethodGet), zap.String("path", path), zap.String("query", q.Encode()))

	req := c.http.R().SetContext(ctx)
	if q != nil {
		req.SetQueryParamsFromValues(q)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	if err := checkResponse(resp, http.MethodGet, path); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) postFormData(ctx context.Context, path string, data map[string]string) error {
	c.logger.Debug("make request", zap.String("method", http.MethodPost), zap.String("path", path))

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(data).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}

	return checkResponse(resp, http.MethodPost, path)
}

func checkResponse(resp *resty.Response, method, path string) error {
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Method:     method,
		Path:       path,
	}

	body := resp.Body()
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, e := range parsed.Get("errors").Array() {
			if t := e.Get("type").String(); t != "" {
				apiErr.Types = append(apiErr.Types, t)
			}
			if v := e.Get("value").String(); v != "" {
				apiErr.Values = append(apiErr.Values, v)
			}
		}
		apiErr.RequestID = parsed.Get("request_id").String()
	}

	return apiErr
}

// decodeItems maps generic page items onto typed records using their json tags.
func decodeItems(items []Item, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(items)
}

// addPage returns a copy of q with the page parameter set.
func addPage(q url.Values, page int) url.Values {
	next := url.Values{}
	for k, v := range q {
		next[k] = append([]string(nil), v...)
	}
	next.Set("page", strconv.Itoa(page))

	return next
}
