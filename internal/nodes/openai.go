package nodes

import (
	"context"
	"strings"
	"time"

	"mai/internal/codec"
	"mai/internal/params"
	"mai/internal/recorder"
	"mai/internal/request"
	"mai/internal/response"
)

type openAILLMText struct {
	remote
	text      recorder.Recorder
	reasoning recorder.Recorder
}

var openAILLMTextRequest = request.Descriptor{
	Encoding: request.JSON,
	Fields: []request.Field{
		request.Param("model"),
		request.ParamAt("system_prompt", "instructions"),
		request.ParamAt("user_prompt", "input"),
		request.Param("temperature"),
		request.Param("top_p"),
		request.Optional("text_verbosity", "text.verbosity"),
		request.Optional("reasoning_effort", "reasoning.effort"),
		request.Optional("reasoning_summary", "reasoning.summary"),
	},
}

func (n *openAILLMText) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	resp, err := n.post(ctx, v, openAILLMTextRequest)
	if err != nil {
		return nil, err
	}
	text, err := response.Text(resp.Body, "data")
	if err != nil {
		return nil, err
	}
	reasoning := response.Secondary(resp.Body, "reasoning")

	n.text.Record(ctx, text)
	if strings.TrimSpace(reasoning) != "" {
		n.reasoning.Record(ctx, reasoning)
	}
	return []any{text, reasoning}, nil
}

func openAILLM() Definition {
	const class = "MaiOpenAiLLMText"
	return Definition{
		Class:   class,
		Display: "mAI - OpenAI LLM Text",
		Inputs: schema(params.Endpoint(), inputs(
			params.Text("model", "gpt-5"),
			params.Prompt("system_prompt"),
			params.Prompt("user_prompt"),
		), sampling(), inputs(
			params.Text("text_verbosity", "low"),
			params.Text("reasoning_effort", "low"),
			params.Text("reasoning_summary", "auto"),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutString, "text", OutString, "reasoning"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &openAILLMText{
				remote:    newRemote(d, class),
				text:      d.Recorders.For(class + "-text"),
				reasoning: d.Recorders.For(class + "-reasoning"),
			}
		},
	}
}

func openAIImageInputs() []params.Spec {
	return inputs(
		params.Prompt("prompt"),
		params.Choice("quality", "low", "auto", "low", "medium", "high"),
		params.Choice("size", request.Auto, request.Auto, "1024x1024", "1536x1024", "1024x1536"),
		params.IntMin("width", 0, 0),
		params.IntMin("height", 0, 0),
		params.Integer("seed", 42),
	)
}

func openAIImageFields() []request.Field {
	return []request.Field{
		request.Param("prompt"),
		request.Param("quality"),
		request.Computed("size", func(v params.Values) any {
			return request.ResolveSize(v.String("size"), v.Int("width"), v.Int("height"))
		}),
		request.Param("seed"),
	}
}

type openAIImage struct {
	remote
	req  request.Descriptor
	edit bool
}

func (n *openAIImage) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}

	var parts []request.Part
	if n.edit {
		var err error
		parts, err = request.ImageParts("image", codec.JPEG,
			v.Tensor("image1"), v.Tensor("image2"), v.Tensor("image3"), v.Tensor("image4"))
		if err != nil {
			return nil, err
		}
		if mask := v.Tensor("mask"); mask != nil {
			p, err := request.MaskPart("mask", mask)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
	}

	resp, err := n.post(ctx, v, n.req, parts...)
	if err != nil {
		return nil, err
	}
	img, err := response.Base64Image(resp.Body, "data")
	if err != nil {
		return nil, err
	}
	return []any{img}, nil
}

func openAIImageGenerate() Definition {
	const class = "MaiOpenAiImageGenerate"
	return Definition{
		Class:   class,
		Display: "mAI - OpenAI Image Generate",
		Inputs:  schema(params.Endpoint(), openAIImageInputs()),
		Outputs: outputs(OutImage, "image"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &openAIImage{
				remote: newRemote(d, class),
				req:    request.Descriptor{Encoding: request.JSON, Fields: openAIImageFields()},
			}
		},
	}
}

func openAIImageEdit() Definition {
	const class = "MaiOpenAiImageEdit"
	return Definition{
		Class:   class,
		Display: "mAI - OpenAI Image Edit",
		Inputs: schema(inputs(params.ImageInput("image1")), params.Endpoint(), openAIImageInputs(), inputs(
			params.ImageInput("image2").Opt(),
			params.ImageInput("image3").Opt(),
			params.ImageInput("image4").Opt(),
			params.MaskInput("mask").Opt(),
		)),
		Outputs: outputs(OutImage, "image"),
		Timeout: 180 * time.Second,
		New: func(d Deps) Node {
			return &openAIImage{
				remote: newRemote(d, class),
				edit:   true,
				req:    request.Descriptor{Encoding: request.Multipart, Fields: openAIImageFields()},
			}
		},
	}
}
