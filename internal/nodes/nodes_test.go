package nodes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mai/internal/clients/transport"
	"mai/internal/codec"
	"mai/internal/params"
	"mai/internal/recorder"
	"mai/internal/response"
	"mai/internal/video"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recorded struct {
	key, text string
}

type fakeRecorders struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorders) For(key string) recorder.Recorder {
	return recordFunc(func(_ context.Context, text string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seen = append(f.seen, recorded{key, text})
	})
}

type recordFunc func(context.Context, string)

func (f recordFunc) Record(ctx context.Context, text string) { f(ctx, text) }

type fakeDemuxer struct {
	out *video.Components
	err error
	got []byte
}

func (f *fakeDemuxer) Demux(_ context.Context, data []byte) (*video.Components, error) {
	f.got = data
	return f.out, f.err
}

func newTestRegistry(rec recorder.Source, demuxer video.Demuxer) *Registry {
	return NewRegistry(Config{}, rec, demuxer, log.New(io.Discard))
}

func rgb(h, w int) *codec.Tensor {
	t := codec.NewTensor(1, h, w, 3)
	for i := range t.Data {
		t.Data[i] = 0.5
	}
	return t
}

func pngBytes(t *testing.T, img *codec.Tensor) []byte {
	t.Helper()
	b, err := codec.EncodeStill(img, codec.PNG)
	require.NoError(t, err)
	return b
}

func jsonHandler(t *testing.T, seen *[]byte, reply any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*seen = body
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}
}

func TestBuiltin_ClassesAndOutputs(t *testing.T) {
	reg := newTestRegistry(nil, nil)
	var classes []string
	for _, def := range reg.List() {
		classes = append(classes, def.Class)
		assert.NotEmpty(t, def.Outputs, def.Class)
		assert.Contains(t, def.Display, "mAI - ", def.Class)
	}
	assert.Equal(t, []string{
		"MaiLLMText", "MaiLLMReasoning", "MaiLLMVision", "MaiImageEdit",
		"MaiOpenAiLLMText", "MaiOpenAiImageGenerate", "MaiOpenAiImageEdit",
		"MaiGoogleGeminiText", "MaiGoogleGeminiImage", "MaiGoogleImageGenerate",
		"MaiGoogleVeoImageToVideo", "MaiImageContrast", "MaiImageSaturation",
	}, classes)

	veo, ok := reg.Lookup("MaiGoogleVeoImageToVideo")
	require.True(t, ok)
	assert.Equal(t, 400*time.Second, veo.Timeout)
	assert.Len(t, veo.Outputs, 5)
}

func TestRegistry_TimeoutOverride(t *testing.T) {
	reg := NewRegistry(Config{Timeouts: map[string]time.Duration{"MaiLLMText": 5 * time.Second}},
		nil, nil, log.New(io.Discard))
	def, _ := reg.Lookup("MaiLLMText")
	assert.Equal(t, 5*time.Second, def.Timeout)
	def, _ = reg.Lookup("MaiLLMReasoning")
	assert.Equal(t, 30*time.Second, def.Timeout)
}

func TestRegistry_UnknownAndInvalid(t *testing.T) {
	reg := newTestRegistry(nil, nil)

	_, err := reg.Invoke(context.Background(), "Nope", nil)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = reg.Invoke(context.Background(), "MaiLLMText", map[string]any{"url": "http://x", "temperature": 3.0})
	assert.ErrorIs(t, err, params.ErrInvalid)
}

func TestRemoteNodes_BlankURLFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	reg := newTestRegistry(nil, &fakeDemuxer{})
	for _, def := range reg.List() {
		if def.Timeout == 0 {
			continue
		}
		raw := map[string]any{"url": "   ", "image": rgb(8, 8), "image1": rgb(8, 8)}
		_, err := reg.Invoke(context.Background(), def.Class, raw)
		assert.ErrorIs(t, err, params.ErrNoURL, def.Class)
	}
	assert.Zero(t, hits.Load())
}

func TestLLMText(t *testing.T) {
	var body []byte
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		jsonHandler(t, &body, map[string]any{"data": "hello", "timedOut": true})(w, r)
	}))
	defer srv.Close()

	rec := &fakeRecorders{}
	reg := newTestRegistry(rec, nil)
	out, err := reg.Invoke(context.Background(), "MaiLLMText", map[string]any{
		"url":         srv.URL,
		"api_key":     "  secret ",
		"user_prompt": "hi",
		"seed":        7,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, out)
	assert.Equal(t, "secret", apiKey)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "hi", doc.Get("user_prompt").String())
	assert.Equal(t, "groq", doc.Get("provider").String())
	assert.Equal(t, "openai/gpt-oss-120b", doc.Get("model").String())
	assert.Equal(t, int64(20000), doc.Get("timeout_ms").Int())
	assert.Equal(t, int64(7), doc.Get("seed").Int())
	assert.Equal(t, 1.0, doc.Get("temperature").Float())
	assert.False(t, doc.Get("api_key").Exists())
	assert.False(t, doc.Get("url").Exists())

	assert.Equal(t, []recorded{{"MaiLLMText", "hello"}}, rec.seen)
}

func TestLLMText_EmptyAnswer(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(jsonHandler(t, &body, map[string]any{"data": "   "}))
	defer srv.Close()

	rec := &fakeRecorders{}
	_, err := newTestRegistry(rec, nil).Invoke(context.Background(), "MaiLLMReasoning", map[string]any{"url": srv.URL})
	assert.ErrorIs(t, err, response.ErrEmptyResponse)
	assert.Empty(t, rec.seen)
}

func TestTransportErrorPrefersAPIMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiLLMText", map[string]any{"url": srv.URL})
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	assert.Equal(t, "[API ERROR] rate limited", err.Error())
}

func TestLLMVision_Multipart(t *testing.T) {
	var form map[string]string
	var file struct {
		name, contentType string
		size              int64
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		fh := r.MultipartForm.File["file"][0]
		file.name, file.contentType, file.size = fh.Filename, fh.Header.Get("Content-Type"), fh.Size
		_, _ = w.Write([]byte(`{"data":"a cat"}`))
	}))
	defer srv.Close()

	batch := codec.NewTensor(2, 8, 8, 3)
	out, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiLLMVision", map[string]any{
		"url": srv.URL, "image": batch, "user_prompt": "what is it",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a cat"}, out)

	assert.Equal(t, map[string]string{
		"user_prompt": "what is it",
		"temperature": "1.0",
		"top_p":       "1.0",
		"max_tokens":  "1024",
		"seed":        "42",
	}, form)
	assert.Equal(t, "image.jpg", file.name)
	assert.Equal(t, "image/jpeg", file.contentType)
	assert.Positive(t, file.size)
}

func TestImageEdit_NestedData(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, rgb(8, 10)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"data":"` + encoded + `"}}`))
	}))
	defer srv.Close()

	out, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiImageEdit", map[string]any{
		"url": srv.URL, "image": rgb(8, 8),
	})
	require.NoError(t, err)
	img := out[0].(*codec.Tensor)
	assert.Equal(t, []int{1, 8, 10, 3}, img.Shape)
}

func TestImageEdit_BadBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"data":"%%%not base64"}}`))
	}))
	defer srv.Close()

	_, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiImageEdit", map[string]any{
		"url": srv.URL, "image": rgb(8, 8),
	})
	assert.ErrorIs(t, err, response.ErrBase64Decode)
}

func TestOpenAILLMText(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(jsonHandler(t, &body, map[string]any{"data": "answer", "reasoning": "because"}))
	defer srv.Close()

	rec := &fakeRecorders{}
	out, err := newTestRegistry(rec, nil).Invoke(context.Background(), "MaiOpenAiLLMText", map[string]any{
		"url":               srv.URL,
		"system_prompt":     "be brief",
		"user_prompt":       "why",
		"text_verbosity":    " ",
		"reasoning_summary": "",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"answer", "because"}, out)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "gpt-5", doc.Get("model").String())
	assert.Equal(t, "be brief", doc.Get("instructions").String())
	assert.Equal(t, "why", doc.Get("input").String())
	assert.False(t, doc.Get("text").Exists())
	assert.Equal(t, "low", doc.Get("reasoning.effort").String())
	assert.False(t, doc.Get("reasoning.summary").Exists())
	assert.False(t, doc.Get("seed").Exists())

	assert.Equal(t, []recorded{
		{"MaiOpenAiLLMText-text", "answer"},
		{"MaiOpenAiLLMText-reasoning", "because"},
	}, rec.seen)
}

func TestOpenAIImageGenerate_ResolvesSize(t *testing.T) {
	var body []byte
	reply := map[string]any{"data": base64.StdEncoding.EncodeToString(pngBytes(t, rgb(8, 8)))}
	srv := httptest.NewServer(jsonHandler(t, &body, reply))
	defer srv.Close()

	out, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiOpenAiImageGenerate", map[string]any{
		"url": srv.URL, "prompt": "a boat", "width": 1920, "height": 1080,
	})
	require.NoError(t, err)
	assert.IsType(t, &codec.Tensor{}, out[0])

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "1536x1024", doc.Get("size").String())
	assert.Equal(t, "low", doc.Get("quality").String())
	assert.False(t, doc.Get("width").Exists())
}

func TestOpenAIImageEdit_PartsAndMask(t *testing.T) {
	var files = map[string]string{}
	var size string
	reply := base64.StdEncoding.EncodeToString(pngBytes(t, rgb(8, 8)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for field, fhs := range r.MultipartForm.File {
			files[field] = fhs[0].Filename + " " + fhs[0].Header.Get("Content-Type")
		}
		size = r.FormValue("size")
		_, _ = w.Write([]byte(`{"data":"` + reply + `"}`))
	}))
	defer srv.Close()

	mask := codec.NewTensor(1, 8, 8)
	_, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiOpenAiImageEdit", map[string]any{
		"url":    srv.URL,
		"image1": rgb(8, 8),
		"image3": rgb(8, 8),
		"mask":   mask,
		"size":   "1024x1536",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"image1": "image1.jpg image/jpeg",
		"image2": "image2.jpg image/jpeg",
		"mask":   "mask.png image/png",
	}, files)
	assert.Equal(t, "1024x1536", size)
}

func TestGeminiText(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(jsonHandler(t, &body, map[string]any{"data": "sunny", "model": "gemini-3-pro"}))
	defer srv.Close()

	rec := &fakeRecorders{}
	out, err := newTestRegistry(rec, nil).Invoke(context.Background(), "MaiGoogleGeminiText", map[string]any{
		"url":           srv.URL,
		"system_prompt": "sys",
		"user_prompt":   "weather?",
		"image":         codec.NewTensor(3, 8, 8, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"sunny", "gemini-3-pro"}, out)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "gemini-3-pro-preview", doc.Get("model").String())
	assert.Equal(t, 0.95, doc.Get("config.topP").Float())
	assert.Equal(t, "LOW", doc.Get("config.thinkingConfig.thinkingLevel").String())
	assert.Len(t, doc.Get("config.safetySettings").Array(), 4)
	assert.True(t, doc.Get("config.tools.0.googleSearch").IsObject())
	assert.Equal(t, "sys", doc.Get("config.systemInstruction.parts.0.text").String())
	assert.Equal(t, "user", doc.Get("contents.0.role").String())

	parts := doc.Get("contents.0.parts").Array()
	require.Len(t, parts, 2)
	assert.Equal(t, "weather?", parts[0].Get("text").String())
	assert.Equal(t, "image/jpeg", parts[1].Get("inlineData.mimeType").String())

	assert.Equal(t, []recorded{{"MaiGoogleGeminiText-text", "sunny"}}, rec.seen)
}

func TestGeminiText_ModelMissingIsEmpty(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(jsonHandler(t, &body, map[string]any{"data": "ok"}))
	defer srv.Close()

	out, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiGoogleGeminiText", map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []any{"ok", ""}, out)
	assert.Len(t, gjson.GetBytes(body, "contents.0.parts").Array(), 1)
}

func TestGeminiImage_InlinesWholeBatch(t *testing.T) {
	var body []byte
	raw := pngBytes(t, rgb(8, 6))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	out, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiGoogleGeminiImage", map[string]any{
		"url":         srv.URL,
		"user_prompt": "merge",
		"image":       codec.NewTensor(2, 8, 8, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8, 6, 3}, out[0].(*codec.Tensor).Shape)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "gemini-3-pro-image-preview", doc.Get("model").String())
	assert.Equal(t, "1K", doc.Get("config.imageConfig.imageSize").String())
	assert.False(t, doc.Get("config.imageConfig.aspectRatio").Exists())
	assert.Equal(t, "IMAGE", doc.Get("config.responseModalities.0").String())
	assert.True(t, doc.Get("config.systemInstruction").IsArray())
	assert.Len(t, doc.Get("contents.0.parts").Array(), 3)
}

func TestGeminiImage_AspectAndMalformedBody(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	_, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiGoogleGeminiImage", map[string]any{
		"url": srv.URL, "aspect_ratio": "21:9",
	})
	assert.ErrorIs(t, err, codec.ErrMalformedImage)
	assert.Equal(t, "21:9", gjson.GetBytes(body, "config.imageConfig.aspectRatio").String())
}

func TestGoogleImageGenerate(t *testing.T) {
	var body []byte
	raw := pngBytes(t, rgb(8, 8))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	_, err := newTestRegistry(nil, nil).Invoke(context.Background(), "MaiGoogleImageGenerate", map[string]any{
		"url": srv.URL, "prompt": "hills", "width": 1080, "height": 1920, "enhance_prompt": true,
	})
	require.NoError(t, err)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "9:16", doc.Get("aspectRatio").String())
	assert.Equal(t, "regular", doc.Get("model").String())
	assert.True(t, doc.Get("enhancePrompt").Bool())
	assert.Equal(t, int64(100), doc.Get("seed").Int())

	_, err = newTestRegistry(nil, nil).Invoke(context.Background(), "MaiGoogleImageGenerate", map[string]any{
		"url": srv.URL, "seed": -1,
	})
	assert.ErrorIs(t, err, params.ErrInvalid)
}

func newVeoServer(t *testing.T, videoBytes []byte, form *map[string]string) *httptest.Server {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		*form = map[string]string{"prompt": r.FormValue("prompt"), "params": r.FormValue("params")}
		_, _ = w.Write([]byte(`{"url":"` + srv.URL + `/clip.mp4"}`))
	})
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="clip.mp4"`)
		_, _ = w.Write(videoBytes)
	})
	srv = httptest.NewServer(mux)
	return srv
}

func TestVeo(t *testing.T) {
	var form map[string]string
	srv := newVeoServer(t, []byte("fake mp4"), &form)
	defer srv.Close()

	frames := codec.NewTensor(3, 8, 8, 3)
	demuxer := &fakeDemuxer{out: &video.Components{Frames: frames, FrameRate: 24}}
	rec := &fakeRecorders{}
	out, err := newTestRegistry(rec, demuxer).Invoke(context.Background(), "MaiGoogleVeoImageToVideo", map[string]any{
		"url":             srv.URL + "/generate",
		"api_key":         "k",
		"image":           rgb(8, 8),
		"user_prompt":     "pan left",
		"negative_prompt": "blur",
	})
	require.NoError(t, err)
	require.Len(t, out, 5)

	url := srv.URL + "/clip.mp4"
	assert.Equal(t, url, out[0])
	clip := out[1].(*video.Clip)
	assert.Equal(t, "video/mp4", clip.MimeType)
	assert.Equal(t, "clip.mp4", clip.Filename)
	assert.False(t, clip.Degraded)
	assert.Same(t, frames, out[2])
	assert.Nil(t, out[3])
	assert.Equal(t, 24.0, out[4])
	assert.Equal(t, []byte("fake mp4"), demuxer.got)

	assert.Equal(t, "pan left", form["prompt"])
	p := gjson.Parse(form["params"])
	assert.Equal(t, "blur", p.Get("negative_prompt").String())
	assert.Equal(t, "720p", p.Get("resolution").String())
	assert.False(t, p.Get("enhance_prompt").Bool())
	assert.True(t, p.Get("enhance_prompt").Exists())

	assert.Equal(t, []recorded{{"MaiGoogleVeoImageToVideo", url}}, rec.seen)
}

func TestVeo_DemuxFailureDegrades(t *testing.T) {
	var form map[string]string
	srv := newVeoServer(t, []byte("garbage"), &form)
	defer srv.Close()

	demuxer := &fakeDemuxer{err: errors.New("no video stream")}
	out, err := newTestRegistry(nil, demuxer).Invoke(context.Background(), "MaiGoogleVeoImageToVideo", map[string]any{
		"url": srv.URL + "/generate", "image": rgb(8, 8),
	})
	require.NoError(t, err)
	assert.True(t, out[1].(*video.Clip).Degraded)
	assert.Equal(t, []int{1, 512, 512, 3}, out[2].(*codec.Tensor).Shape)
	assert.Nil(t, out[3])
	assert.Equal(t, 30.0, out[4])
}

func TestVeo_EmptyURL(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(jsonHandler(t, &body, map[string]any{"url": " "}))
	defer srv.Close()

	_, err := newTestRegistry(nil, &fakeDemuxer{}).Invoke(context.Background(), "MaiGoogleVeoImageToVideo", map[string]any{
		"url": srv.URL, "image": rgb(8, 8),
	})
	assert.ErrorIs(t, err, response.ErrEmptyResponse)
}

func TestAdjustNodes(t *testing.T) {
	reg := newTestRegistry(nil, nil)
	img := rgb(8, 8)
	img.Data[0] = 1

	out, err := reg.Invoke(context.Background(), "MaiImageSaturation", map[string]any{"image": img, "factor": 0.0})
	require.NoError(t, err)
	gray := out[0].(*codec.Tensor)
	assert.InDelta(t, gray.Data[0], gray.Data[1], 1e-5)
	assert.InDelta(t, gray.Data[1], gray.Data[2], 1e-5)

	out, err = reg.Invoke(context.Background(), "MaiImageContrast", map[string]any{"image": img})
	require.NoError(t, err)
	assert.InDeltaSlice(t, img.Data, out[0].(*codec.Tensor).Data, 1e-6)

	_, err = reg.Invoke(context.Background(), "MaiImageContrast", map[string]any{"image": img, "factor": 6.0})
	assert.ErrorIs(t, err, params.ErrInvalid)
}
