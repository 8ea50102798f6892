package services

import (
	"encoding/base64"
	"errors"
	"fmt"

	"mai/internal/clients/transport"
	"mai/internal/codec"
	"mai/internal/nodes"
	"mai/internal/params"
	"mai/internal/response"
	"mai/internal/video"
	"mai/types"

	"github.com/gofiber/fiber/v2"
)

func nodeInfo(def nodes.Definition) types.NodeInfo {
	outs := make([]types.NodeOutput, len(def.Outputs))
	for i, o := range def.Outputs {
		outs[i] = types.NodeOutput{Type: o.Type, Name: o.Name}
	}
	return types.NodeInfo{
		Class:          def.Class,
		DisplayName:    def.Display,
		Category:       nodes.Category,
		TimeoutSeconds: def.Timeout.Seconds(),
		Inputs: types.NodeInputs{
			Required: def.Inputs.Required(),
			Optional: def.Inputs.Optional(),
		},
		Outputs: outs,
	}
}

// encodeOutputs pairs node results with their declared outputs and turns
// tensors and media into JSON friendly values.
func encodeOutputs(def nodes.Definition, values []any) ([]types.OutputValue, error) {
	if len(values) != len(def.Outputs) {
		return nil, fmt.Errorf("%s returned %d values for %d outputs", def.Class, len(values), len(def.Outputs))
	}
	out := make([]types.OutputValue, len(values))
	for i, v := range values {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Outputs[i].Name, err)
		}
		out[i] = types.OutputValue{Name: def.Outputs[i].Name, Type: def.Outputs[i].Type, Value: enc}
	}
	return out, nil
}

func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case *codec.Tensor:
		if x == nil {
			return nil, nil
		}
		batch, err := codec.EncodeBatch(x, codec.PNG)
		if err != nil {
			return nil, err
		}
		images := make([]string, len(batch))
		for i, b := range batch {
			images[i] = base64.StdEncoding.EncodeToString(b)
		}
		return types.EncodedImage{Shape: x.Shape, MimeType: codec.PNG.MimeType(), Images: images}, nil
	case *video.Clip:
		if x == nil {
			return nil, nil
		}
		return types.EncodedVideo{
			URL:      x.URL,
			MimeType: x.MimeType,
			Filename: x.Filename,
			Data:     x.Data,
			Degraded: x.Degraded,
		}, nil
	case *video.Audio:
		if x == nil {
			return nil, nil
		}
		return types.EncodedAudio{MimeType: x.MimeType, Data: x.Data}, nil
	}
	return v, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nodes.ErrUnknownNode):
		return fiber.StatusNotFound
	case errors.Is(err, params.ErrNoURL),
		errors.Is(err, params.ErrInvalid),
		errors.Is(err, codec.ErrUnsupportedLayout),
		errors.Is(err, codec.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrRunnerQueueFull):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrRunnerShuttingDown):
		return fiber.StatusServiceUnavailable
	case transport.IsTransport(err), response.IsShape(err):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorJSON(ctx *fiber.Ctx, err error, message string) error {
	return ctx.Status(statusFor(err)).JSON(types.ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}
