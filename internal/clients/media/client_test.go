package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mai/internal/clients/transport"
	"mai/internal/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "video/webm")
		_, _ = w.Write([]byte("webm bytes"))
	}))
	defer srv.Close()

	clip, err := NewClient(time.Second, 0).FetchVideo(context.Background(), " "+srv.URL+"/out/my%20clip.v2.webm ")
	require.NoError(t, err)
	assert.Equal(t, "video/webm", clip.MimeType)
	assert.Equal(t, []byte("webm bytes"), clip.Data)
	assert.Equal(t, "my-clip-v2.webm", clip.Filename)
	assert.False(t, clip.Degraded)
}

func TestFetchVideo_Defaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	clip, err := NewClient(time.Second, 0).FetchVideo(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", clip.MimeType)
	assert.Equal(t, "video.mp4", clip.Filename)
}

func TestFetchVideo_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("a", 32)))
		case "/empty":
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"expired"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(time.Second, 16)
	ctx := context.Background()

	_, err := c.FetchVideo(ctx, srv.URL+"/big")
	assert.True(t, transport.IsTransport(err))

	_, err = c.FetchVideo(ctx, srv.URL+"/empty")
	assert.ErrorIs(t, err, response.ErrEmptyResponse)

	_, err = c.FetchVideo(ctx, srv.URL+"/loop")
	assert.ErrorContains(t, err, "too many redirects")

	_, err = c.FetchVideo(ctx, srv.URL+"/gone")
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusForbidden, terr.StatusCode)
	assert.Equal(t, "[API ERROR] expired", err.Error())

	_, err = c.FetchVideo(ctx, "  ")
	assert.ErrorIs(t, err, response.ErrEmptyResponse)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "video.mp4", sanitizeFilename(""))
	assert.Equal(t, "clip.mp4", sanitizeFilename("../../clip"))
	assert.Equal(t, "a-b-c.mov", sanitizeFilename("a b.c.mov"))
	assert.Equal(t, "video.mp4", sanitizeFilename("..."))
}
