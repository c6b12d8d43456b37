package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/forms/internal/model"
)

// userAgent identifies the CLI in server logs.
const userAgent = "fd/1"

// HTTPClient implements FormsClient over the HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ FormsClient = (*HTTPClient)(nil)

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout bounds each request, including its body. Clients used for
// StreamEvents should not set it.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// NewHTTPClient targets baseURL (e.g. "http://localhost:8080"). A non-empty
// token is sent as a bearer token on every request.
func NewHTTPClient(baseURL, token string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) CreateForm(ctx context.Context, req *FormRequest) (*model.FormSchema, error) {
	return call[model.FormSchema](ctx, c, http.MethodPost, "/v1/forms", req)
}

func (c *HTTPClient) GetForm(ctx context.Context, id string) (*model.FormSchema, error) {
	return call[model.FormSchema](ctx, c, http.MethodGet, formPath(id), nil)
}

func (c *HTTPClient) ListForms(ctx context.Context) ([]*model.FormSchema, error) {
	resp, err := call[listFormsResponse](ctx, c, http.MethodGet, "/v1/forms", nil)
	if err != nil {
		return nil, err
	}
	return resp.Forms, nil
}

func (c *HTTPClient) ReplaceForm(ctx context.Context, id string, req *FormRequest) (*model.FormSchema, error) {
	return call[model.FormSchema](ctx, c, http.MethodPut, formPath(id), req)
}

func (c *HTTPClient) DeleteForm(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, formPath(id), nil, nil)
}

func (c *HTTPClient) CreateSubmission(ctx context.Context, formID string, values map[string]any) (*model.Submission, error) {
	return call[model.Submission](ctx, c, http.MethodPost, formPath(formID)+"/submissions", submissionRequest{Values: values})
}

func (c *HTTPClient) ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error) {
	resp, err := call[listSubmissionsResponse](ctx, c, http.MethodGet, formPath(formID)+"/submissions", nil)
	if err != nil {
		return nil, err
	}
	return resp.Submissions, nil
}

func (c *HTTPClient) ValidateSubmission(ctx context.Context, formID string, values map[string]any) (*ValidationResult, error) {
	return call[ValidationResult](ctx, c, http.MethodPost, formPath(formID)+"/validate", submissionRequest{Values: values})
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	resp, err := call[struct {
		Status string `json:"status"`
	}](ctx, c, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func formPath(id string) string {
	return "/v1/forms/" + url.PathEscape(id)
}

// call performs a request and decodes the JSON response into a new T.
func call[T any](ctx context.Context, c *HTTPClient, method, path string, body any) (*T, error) {
	var out T
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// newRequest builds a request against baseURL with auth applied.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends body as JSON (when non-nil) and decodes a 2xx response into
// result (when non-nil). Error statuses become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeAPIError turns an error response body into an *APIError, falling
// back to the raw body when it is not the server's error shape.
func decodeAPIError(statusCode int, body []byte) *APIError {
	var errResp struct {
		Error   string             `json:"error"`
		Code    string             `json:"code"`
		Details []model.FieldError `json:"details"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       errResp.Code,
			Message:    errResp.Error,
			Details:    errResp.Details,
		}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
