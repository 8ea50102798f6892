// Package media downloads generated assets that remote endpoints answer
// with a url instead of inline bytes.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"mai/internal/clients/transport"
	"mai/internal/response"
	"mai/internal/video"
	"mai/utils"
)

const (
	DefaultMaxBytes  = 512 << 20
	defaultMimeType  = "video/mp4"
	defaultExtension = ".mp4"
	maxRedirects     = 10
)

type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewClient(timeout time.Duration, maxBytes int64) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Client{
		maxBytes: maxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// FetchVideo downloads the video at rawURL into memory. Signed asset urls
// carry their own authorization, so no api key is sent.
func (c *Client) FetchVideo(ctx context.Context, rawURL string) (*video.Clip, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, response.ErrEmptyResponse
	}

	resp, err := transport.Download(*c.httpClient, ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &transport.Error{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, &transport.Error{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("video larger than %d bytes", c.maxBytes),
		}
	}
	if len(data) == 0 {
		return nil, response.ErrEmptyResponse
	}

	mimeType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = defaultMimeType
	}

	return &video.Clip{
		URL:      rawURL,
		MimeType: mimeType,
		Filename: sanitizeFilename(utils.FileName(resp.Header.Get("Content-Disposition"), rawURL)),
		Data:     data,
	}, nil
}

func sanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "video" + defaultExtension
	}

	// Prevent any path traversal / nested paths from the server.
	filename = filepath.Base(filename)

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	if ext == "" || ext == "." {
		ext = defaultExtension
	}

	// no spaces or periods in the stem
	stem = strings.Join(strings.Fields(stem), "-")
	stem = strings.ReplaceAll(stem, ".", "-")
	stem = strings.Trim(stem, "-")
	if stem == "" {
		stem = "video"
	}

	ext = strings.ReplaceAll(ext, " ", "")
	return stem + ext
}
