package codec

import "fmt"

// Luminance weights used for grayscale conversion.
const (
	lumaR = 0.2989
	lumaG = 0.587
	lumaB = 0.114
)

// AdjustContrast blends every image of a [B,H,W,C] batch with its mean
// luminance: factor 0 gives a flat gray image, 1 the original.
func AdjustContrast(t *Tensor, factor float64) (*Tensor, error) {
	if err := checkAdjustable(t); err != nil {
		return nil, err
	}
	out := NewTensor(t.Shape...)
	for b, elem := range t.Elements() {
		mean := meanLuminance(elem)
		dst := out.Index(b)
		for i, v := range elem.Data {
			dst.Data[i] = blend(v, mean, factor)
		}
	}
	return out, nil
}

// AdjustSaturation blends every pixel with its own luminance: factor 0 gives
// grayscale, 1 the original. Single channel images are returned unchanged.
func AdjustSaturation(t *Tensor, factor float64) (*Tensor, error) {
	if err := checkAdjustable(t); err != nil {
		return nil, err
	}
	out := NewTensor(t.Shape...)
	c := t.Shape[3]
	if c == 1 {
		copy(out.Data, t.Data)
		return out, nil
	}
	for p := 0; p < len(t.Data); p += c {
		gray := luminance(t.Data[p : p+c])
		for ch := 0; ch < c; ch++ {
			out.Data[p+ch] = blend(t.Data[p+ch], gray, factor)
		}
	}
	return out, nil
}

func checkAdjustable(t *Tensor) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Dims() != 4 {
		return fmt.Errorf("%w: expected [B,H,W,C], got %v", ErrUnsupportedLayout, t.Shape)
	}
	if c := t.Shape[3]; c != 1 && c != 3 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, c)
	}
	return nil
}

func luminance(px []float32) float32 {
	if len(px) == 1 {
		return px[0]
	}
	return float32(lumaR*float64(px[0]) + lumaG*float64(px[1]) + lumaB*float64(px[2]))
}

// meanLuminance expects a [H,W,C] image.
func meanLuminance(img *Tensor) float32 {
	c := img.Shape[2]
	var sum float64
	n := 0
	for p := 0; p < len(img.Data); p += c {
		sum += float64(luminance(img.Data[p : p+c]))
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(sum / float64(n))
}

func blend(v, base float32, factor float64) float32 {
	r := factor*float64(v) + (1-factor)*float64(base)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return float32(r)
}
