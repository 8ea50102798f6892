// Package codec converts between host image tensors and encoded still images.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrUnsupportedLayout = errors.New("unsupported tensor layout")
	ErrMalformedImage    = errors.New("malformed image")
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

func (f Format) MimeType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

const jpegQuality = 75

// EncodeStill encodes element 0 of t.
func EncodeStill(t *Tensor, format Format) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Dims() == 4 {
		t = t.Index(0)
	}
	img, err := toImage(t)
	if err != nil {
		return nil, err
	}
	return encode(img, format)
}

// EncodeBatch encodes every element of a batch, preserving order.
func EncodeBatch(t *Tensor, format Format) ([][]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	elems := t.Elements()
	out := make([][]byte, len(elems))

	var g errgroup.Group
	for i, e := range elems {
		g.Go(func() error {
			img, err := toImage(e)
			if err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
			b, err := encode(img, format)
			if err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeMask turns a mask (1 = erase) into a PNG white canvas whose alpha is
// the inverted first mask channel.
func EncodeMask(t *Tensor) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Dims() == 4 {
		t = t.Index(0)
	}

	var h, w int
	var at func(y, x int) float32
	switch t.Dims() {
	case 2:
		h, w = t.Shape[0], t.Shape[1]
		at = func(y, x int) float32 { return t.Data[y*w+x] }
	case 3:
		if t.Shape[0] > 4 && t.Shape[2] <= 4 {
			// [H,W,C], first channel
			c := t.Shape[2]
			h, w = t.Shape[0], t.Shape[1]
			at = func(y, x int) float32 { return t.Data[(y*w+x)*c] }
		} else {
			// [C,H,W] or [B,H,W], first plane
			h, w = t.Shape[1], t.Shape[2]
			at = func(y, x int) float32 { return t.Data[y*w+x] }
		}
	default:
		return nil, fmt.Errorf("%w: mask shape %v", ErrUnsupportedLayout, t.Shape)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = 255
			img.Pix[i+1] = 255
			img.Pix[i+2] = 255
			img.Pix[i+3] = 255 - quantize(at(y, x))
		}
	}
	return encode(img, PNG)
}

// DecodeStill decodes any registered still format into a [1,H,W,3] tensor.
func DecodeStill(b []byte) (*Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformedImage)
	}

	t := NewTensor(1, h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 3
			t.Data[i+0] = float32(c.R) / 255
			t.Data[i+1] = float32(c.G) / 255
			t.Data[i+2] = float32(c.B) / 255
		}
	}
	return t, nil
}

// toImage converts a single 3-D image, channel-first when the leading axis
// has at most 4 entries.
func toImage(t *Tensor) (image.Image, error) {
	if t.Dims() != 3 {
		return nil, fmt.Errorf("%w: image shape %v", ErrUnsupportedLayout, t.Shape)
	}

	var h, w, c int
	var at func(y, x, ch int) float32
	if t.Shape[0] <= 4 {
		c, h, w = t.Shape[0], t.Shape[1], t.Shape[2]
		at = func(y, x, ch int) float32 { return t.Data[ch*h*w+y*w+x] }
	} else {
		h, w, c = t.Shape[0], t.Shape[1], t.Shape[2]
		at = func(y, x, ch int) float32 { return t.Data[(y*w+x)*c+ch] }
	}

	switch c {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Pix[y*img.Stride+x] = quantize(at(y, x, 0))
			}
		}
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := img.PixOffset(x, y)
				img.Pix[i+0] = quantize(at(y, x, 0))
				img.Pix[i+1] = quantize(at(y, x, 1))
				img.Pix[i+2] = quantize(at(y, x, 2))
				img.Pix[i+3] = 255
				if c == 4 {
					img.Pix[i+3] = quantize(at(y, x, 3))
				}
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, c)
	}
}

func encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case PNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case JPEG:
		if err := jpeg.Encode(&buf, opaque(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

// opaque drops the alpha channel; JPEG has none.
func opaque(img image.Image) image.Image {
	src, ok := img.(*image.NRGBA)
	if !ok {
		return img
	}
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255
	}
	return dst
}

// quantize scales to 8 bits, clipping then truncating.
func quantize(v float32) uint8 {
	f := float64(v) * 255
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}
