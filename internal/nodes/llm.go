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

func sampling() []params.Spec {
	return inputs(
		params.FloatRange("temperature", 1.0, 0, 2, 0.1),
		params.FloatRange("top_p", 1.0, 0, 1, 0.1),
	)
}

// textNode covers the mAI text endpoints that answer {"data": "..."}.
type textNode struct {
	remote
	req    request.Descriptor
	image  bool
	record recorder.Recorder
}

func (n *textNode) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}

	var parts []request.Part
	if n.image {
		p, err := request.FilePart("file", "image", v.Tensor("image"), codec.JPEG)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	resp, err := n.post(ctx, v, n.req, parts...)
	if err != nil {
		return nil, err
	}
	text, err := response.Text(resp.Body, "data")
	if err != nil {
		return nil, err
	}
	if response.Flag(resp.Body, "timedOut") {
		n.logger.Warn("primary provider timed out, answer came from fallback",
			"provider", v.String("provider"), "model", v.String("model"))
	}

	n.record.Record(ctx, text)
	return []any{text}, nil
}

func llmText() Definition {
	const class = "MaiLLMText"
	return Definition{
		Class:   class,
		Display: "mAI - LLM Text",
		Inputs: schema(params.Endpoint(), inputs(
			params.Prompt("system_prompt"),
			params.Prompt("user_prompt"),
			params.Choice("provider", "groq", "samba_nova", "groq"),
			params.Text("model", "openai/gpt-oss-120b"),
			params.IntRange("timeout_ms", 20000, 1, 999999),
		), sampling(), inputs(
			params.IntRange("max_tokens", 1024, 1, 999999),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutString, "text"),
		Timeout: 30 * time.Second,
		New: func(d Deps) Node {
			return &textNode{
				remote: newRemote(d, class),
				record: d.Recorders.For(class),
				req: request.Descriptor{
					Encoding: request.JSON,
					Fields: []request.Field{
						request.Param("system_prompt"),
						request.Param("user_prompt"),
						request.Param("provider"),
						request.Param("model"),
						request.Param("timeout_ms"),
						request.Param("temperature"),
						request.Param("top_p"),
						request.Param("max_tokens"),
						request.Param("seed"),
					},
				},
			}
		},
	}
}

func llmReasoning() Definition {
	const class = "MaiLLMReasoning"
	return Definition{
		Class:   class,
		Display: "mAI - LLM Reasoning",
		Inputs: schema(params.Endpoint(), inputs(
			params.Prompt("user_prompt"),
		), sampling(), inputs(
			params.Integer("max_tokens", 1024),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutString, "text"),
		Timeout: 30 * time.Second,
		New: func(d Deps) Node {
			return &textNode{
				remote: newRemote(d, class),
				record: d.Recorders.For(class),
				req: request.Descriptor{
					Encoding: request.JSON,
					Fields: []request.Field{
						request.Param("user_prompt"),
						request.Param("temperature"),
						request.Param("top_p"),
						request.Param("max_tokens"),
						request.Param("seed"),
					},
				},
			}
		},
	}
}

func llmVision() Definition {
	const class = "MaiLLMVision"
	return Definition{
		Class:   class,
		Display: "mAI - LLM Vision",
		Inputs: schema(inputs(params.ImageInput("image")), params.Endpoint(), inputs(
			params.Prompt("user_prompt"),
		), sampling(), inputs(
			params.Integer("max_tokens", 1024),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutString, "text"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &textNode{
				remote: newRemote(d, class),
				record: d.Recorders.For(class),
				image:  true,
				req: request.Descriptor{
					Encoding: request.Multipart,
					Fields: []request.Field{
						request.Param("user_prompt"),
						request.Param("temperature"),
						request.Param("top_p"),
						request.Param("max_tokens"),
						request.Param("seed"),
					},
				},
			}
		},
	}
}

type imageEdit struct {
	remote
}

var imageEditRequest = request.Descriptor{
	Encoding: request.Multipart,
	Fields: []request.Field{
		request.Param("user_prompt"),
		request.Param("seed"),
	},
}

func (n *imageEdit) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}
	file, err := request.FilePart("file", "image", v.Tensor("image"), codec.JPEG)
	if err != nil {
		return nil, err
	}
	resp, err := n.post(ctx, v, imageEditRequest, file)
	if err != nil {
		return nil, err
	}
	img, err := response.Base64Image(resp.Body, "data.data")
	if err != nil {
		return nil, err
	}
	return []any{img}, nil
}

func maiImageEdit() Definition {
	const class = "MaiImageEdit"
	return Definition{
		Class:   class,
		Display: "mAI - Image Edit",
		Inputs: schema(inputs(params.ImageInput("image")), params.Endpoint(), inputs(
			params.Prompt("user_prompt"),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutImage, "image"),
		Timeout: 30 * time.Second,
		New: func(d Deps) Node {
			return &imageEdit{remote: newRemote(d, class)}
		},
	}
}
