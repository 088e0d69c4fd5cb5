package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/postroc/pkg/buildinfo"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/httputil"
	"github.com/matzehuels/postroc/pkg/observability"
)

// DefaultTimeout bounds a single request made by [HTTPFetcher].
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// Fetcher performs a single GET against an endpoint. It does not retry;
// callers wrap it with [httputil.Retry].
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, e *env.Environment) (*Response, error)
}

// Response is the recorded outcome of one request. Body holds decoded JSON
// when the server says it sent JSON and the payload parses; otherwise it is
// the raw text.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body"`
	Duration   time.Duration     `json:"duration"`
	Error      string            `json:"error,omitempty"`
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status     int
	StatusText string
}

func (e *StatusError) Error() string {
	if e.StatusText == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
}

// Code maps the status onto the error taxonomy.
func (e *StatusError) Code() perrors.Code {
	switch {
	case e.Status == http.StatusNotFound:
		return perrors.ErrCodeNotFound
	case e.Status == http.StatusTooManyRequests:
		return perrors.ErrCodeRateLimited
	default:
		return perrors.ErrCodeNetwork
	}
}

// NewHTTPClient creates an HTTP client with the standard fetch timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// HTTPFetcher issues requests with net/http.
type HTTPFetcher struct {
	http *http.Client
}

// NewHTTPFetcher wraps client. A nil client gets [NewHTTPClient].
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPFetcher{http: client}
}

// Fetch resolves endpoint against the environment's base URL and performs
// a GET with the environment's headers. Network failures, timeouts, 429 and
// 5xx responses are returned as [httputil.RetryableError]. Other 4xx and
// requests that cannot be built are [httputil.PermanentError]. For any
// non-2xx status the response is returned together with a [*StatusError].
func (f *HTTPFetcher) Fetch(ctx context.Context, endpoint string, e *env.Environment) (*Response, error) {
	url := e.BuildURL(endpoint)
	if !env.IsAbsoluteURL(url) {
		return nil, httputil.Permanent(perrors.New(perrors.ErrCodeInvalidInput, "endpoint %q has no base URL", endpoint))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, httputil.Permanent(perrors.Wrap(perrors.ErrCodeInvalidInput, err, "build request"))
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if e != nil {
		for k, v := range e.Headers {
			req.Header.Set(k, v)
		}
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, transportError(ctx, err)
	}
	out := &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flatten(resp.Header),
		Body:       decodeBody(resp.Header.Get("Content-Type"), data),
		Duration:   time.Since(start),
	}
	hooks.OnResponse(ctx, req.Method, host, path, out.Status, out.Duration)

	if err := checkStatus(out); err != nil {
		out.Error = err.Error()
		return out, err
	}
	return out, nil
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var code perrors.Code = perrors.ErrCodeNetwork
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		code = perrors.ErrCodeTimeout
	}
	return httputil.Retryable(perrors.Wrap(code, err, "request failed"))
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func checkStatus(r *Response) error {
	if r.OK() {
		return nil
	}
	err := &StatusError{Status: r.Status, StatusText: r.StatusText}
	if r.Status >= 500 || r.Status == http.StatusTooManyRequests {
		return httputil.Retryable(err)
	}
	return httputil.Permanent(err)
}

// statusText strips the numeric prefix net/http puts on resp.Status.
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// flatten keeps the first value of each header under its lowercased name.
func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func decodeBody(contentType string, data []byte) any {
	if strings.Contains(contentType, "application/json") {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
	}
	return string(data)
}

var _ Fetcher = (*HTTPFetcher)(nil)
