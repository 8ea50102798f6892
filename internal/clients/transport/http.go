package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const snippetLimit = 8 << 10

// Error is the single consolidated failure for a remote call: network faults,
// timeouts and non-2xx statuses.
type Error struct {
	URL        string
	StatusCode int
	// APIMessage is the message the remote service embedded in its error body.
	APIMessage string
	Err        error
}

func (e *Error) Error() string {
	if e.APIMessage != "" {
		return "[API ERROR] " + e.APIMessage
	}
	return "[REQUEST ERROR] " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is a successful (2xx) reply with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func Post(h http.Client, ctx context.Context, url string, body io.Reader, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return do(h, req, headers)
}

// Download returns the open response; the caller closes the body.
func Download(h http.Client, ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	for key, val := range headers {
		req.Header.Add(key, val)
	}

	resp, err := h.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
		_ = resp.Body.Close()
		return nil, statusError(url, resp, snippet)
	}

	return resp, nil
}

func do(h http.Client, req *http.Request, headers map[string]string) (*Response, error) {
	url := req.URL.String()

	for key, val := range headers {
		req.Header.Set(key, val)
	}

	resp, err := h.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(url, resp, responseBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       responseBytes,
	}, nil
}

func statusError(url string, resp *http.Response, body []byte) *Error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &Error{
		URL:        url,
		StatusCode: resp.StatusCode,
		APIMessage: APIMessage(body),
		Err:        fmt.Errorf("http %s: %s: %s", url, resp.Status, snippet),
	}
}

// APIMessage extracts error.message, then message, from a JSON error body.
func APIMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"error.message", "message"} {
		if m := gjson.GetBytes(body, path); m.Type == gjson.String && strings.TrimSpace(m.Str) != "" {
			return m.Str
		}
	}
	return ""
}

// IsTransport reports whether err came from the transport layer.
func IsTransport(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
