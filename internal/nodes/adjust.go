package nodes

import (
	"context"

	"mai/internal/codec"
	"mai/internal/params"
)

// adjust runs a local tensor operation; no url or network involved.
type adjust struct {
	apply func(*codec.Tensor, float64) (*codec.Tensor, error)
}

func (n *adjust) Invoke(_ context.Context, v params.Values) ([]any, error) {
	out, err := n.apply(v.Tensor("image"), v.Float("factor"))
	if err != nil {
		return nil, err
	}
	return []any{out}, nil
}

func adjustInputs() params.Schema {
	return schema(inputs(
		params.ImageInput("image"),
		params.FloatRange("factor", 1.0, 0, 5, 0.01),
	))
}

func imageContrast() Definition {
	return Definition{
		Class:   "MaiImageContrast",
		Display: "mAI - Image Contrast",
		Inputs:  adjustInputs(),
		Outputs: outputs(OutImage, "image"),
		New: func(Deps) Node {
			return &adjust{apply: codec.AdjustContrast}
		},
	}
}

func imageSaturation() Definition {
	return Definition{
		Class:   "MaiImageSaturation",
		Display: "mAI - Image Saturation",
		Inputs:  adjustInputs(),
		Outputs: outputs(OutImage, "image"),
		New: func(Deps) Node {
			return &adjust{apply: codec.AdjustSaturation}
		},
	}
}
