package nodes

import (
	"context"
	"time"

	"mai/internal/codec"
	"mai/internal/params"
	"mai/internal/recorder"
	"mai/internal/request"
	"mai/internal/response"
)

const (
	geminiTextModel  = "gemini-3-pro-preview"
	geminiImageModel = "gemini-3-pro-image-preview"
)

var (
	geminiSafetyOff = []map[string]string{
		{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "OFF"},
		{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "OFF"},
		{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "OFF"},
		{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "OFF"},
	}
	geminiSearchTool = []map[string]any{{"googleSearch": map[string]any{}}}
)

func geminiSampling() []params.Spec {
	return inputs(
		params.FloatRange("temperature", 1.0, 0, 2, 0.05),
		params.FloatRange("top_p", 0.95, 0, 1, 0.05),
	)
}

type geminiText struct {
	remote
	record recorder.Recorder
}

var geminiTextRequest = request.Descriptor{
	Encoding: request.JSON,
	Fields: []request.Field{
		request.Const("model", geminiTextModel),
		request.ParamAt("temperature", "config.temperature"),
		request.ParamAt("top_p", "config.topP"),
		request.ParamAt("thinking_level", "config.thinkingConfig.thinkingLevel"),
		request.Const("config.safetySettings", geminiSafetyOff),
		request.Const("config.tools", geminiSearchTool),
		request.ParamAt("system_prompt", "config.systemInstruction.parts.0.text"),
		request.Const("contents.0.role", "user"),
		request.ParamAt("user_prompt", "contents.0.parts.0.text"),
	},
	InlinePath: "contents.0.parts",
}

func (n *geminiText) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}

	var parts []request.Part
	if img := v.Tensor("image"); img != nil {
		p, err := request.FilePart("", "image", img, codec.JPEG)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	resp, err := n.post(ctx, v, geminiTextRequest, parts...)
	if err != nil {
		return nil, err
	}
	text, err := response.Text(resp.Body, "data")
	if err != nil {
		return nil, err
	}
	model := response.Secondary(resp.Body, "model")

	n.record.Record(ctx, text)
	return []any{text, model}, nil
}

func googleGeminiText() Definition {
	const class = "MaiGoogleGeminiText"
	return Definition{
		Class:   class,
		Display: "mAI - Google Gemini Text",
		Inputs: schema(params.Endpoint(), inputs(
			params.Prompt("system_prompt"),
			params.Prompt("user_prompt"),
		), geminiSampling(), inputs(
			params.Choice("thinking_level", "LOW", "LOW", "HIGH"),
			params.Integer("seed", 42),
			params.ImageInput("image").Opt(),
		)),
		Outputs: outputs(OutString, "text", OutString, "model"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &geminiText{
				remote: newRemote(d, class),
				record: d.Recorders.For(class + "-text"),
			}
		},
	}
}

type geminiImage struct {
	remote
}

var geminiImageRequest = request.Descriptor{
	Encoding: request.JSON,
	Fields: []request.Field{
		request.Const("model", geminiImageModel),
		request.ParamAt("temperature", "config.temperature"),
		request.ParamAt("top_p", "config.topP"),
		request.Const("config.responseModalities", []string{"IMAGE"}),
		request.ParamAt("image_size", "config.imageConfig.imageSize"),
		request.Computed("config.imageConfig.aspectRatio", func(v params.Values) any {
			if a := v.String("aspect_ratio"); a != request.Auto {
				return a
			}
			return nil
		}),
		request.Const("config.tools", geminiSearchTool),
		request.ParamAt("system_prompt", "config.systemInstruction.0.text"),
		request.Const("contents.0.role", "user"),
		request.ParamAt("user_prompt", "contents.0.parts.0.text"),
	},
	InlinePath: "contents.0.parts",
}

// Invoke inlines every element of the image batch, unlike the other
// image-taking nodes which send element 0 only.
func (n *geminiImage) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}

	var parts []request.Part
	if img := v.Tensor("image"); img != nil {
		var err error
		if parts, err = request.InlineParts(img, codec.JPEG); err != nil {
			return nil, err
		}
	}

	resp, err := n.post(ctx, v, geminiImageRequest, parts...)
	if err != nil {
		return nil, err
	}
	img, err := response.RawImage(resp.Body)
	if err != nil {
		return nil, err
	}
	return []any{img}, nil
}

func googleGeminiImage() Definition {
	const class = "MaiGoogleGeminiImage"
	return Definition{
		Class:   class,
		Display: "mAI - Google Gemini Image",
		Inputs: schema(params.Endpoint(), inputs(
			params.Prompt("system_prompt"),
			params.Prompt("user_prompt"),
			params.Choice("aspect_ratio", request.Auto,
				request.Auto, "1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"),
			params.Choice("image_size", "1K", "1K", "2K", "4K"),
		), geminiSampling(), inputs(
			params.Integer("seed", 42),
			params.ImageInput("image").Opt(),
		)),
		Outputs: outputs(OutImage, "image"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &geminiImage{remote: newRemote(d, class)}
		},
	}
}

type googleImage struct {
	remote
}

var googleImageRequest = request.Descriptor{
	Encoding: request.JSON,
	Fields: []request.Field{
		request.Param("prompt"),
		request.Param("model"),
		request.Computed("aspectRatio", func(v params.Values) any {
			return request.ResolveAspect(v.String("aspect_ratio"), v.Int("width"), v.Int("height"))
		}),
		request.ParamAt("enhance_prompt", "enhancePrompt"),
		request.Param("seed"),
	},
}

func (n *googleImage) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	resp, err := n.post(ctx, v, googleImageRequest)
	if err != nil {
		return nil, err
	}
	img, err := response.RawImage(resp.Body)
	if err != nil {
		return nil, err
	}
	return []any{img}, nil
}

func googleImageGenerate() Definition {
	const class = "MaiGoogleImageGenerate"
	return Definition{
		Class:   class,
		Display: "mAI - Google Image Generate",
		Inputs: schema(params.Endpoint(), inputs(
			params.Prompt("prompt"),
			params.Choice("model", "regular", "regular", "ultra"),
			params.Choice("aspect_ratio", request.Auto, request.Auto, "1:1", "16:9", "4:3", "3:4", "9:16"),
			params.IntMin("width", 0, 0),
			params.IntMin("height", 0, 0),
			params.Bool("enhance_prompt", false),
			params.IntMin("seed", 100, 0),
		)),
		Outputs: outputs(OutImage, "image"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &googleImage{remote: newRemote(d, class)}
		},
	}
}
