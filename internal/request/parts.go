package request

import (
	"fmt"

	"mai/internal/codec"
)

// FilePart encodes element 0 of t as a single upload.
func FilePart(field, name string, t *codec.Tensor, format codec.Format) (Part, error) {
	data, err := codec.EncodeStill(t, format)
	if err != nil {
		return Part{}, err
	}
	return Part{
		Field:       field,
		Filename:    name + "." + format.Ext(),
		ContentType: format.MimeType(),
		Data:        data,
	}, nil
}

// ImageParts encodes the non-nil tensors as prefix1..prefixN, numbering
// without gaps and in order.
func ImageParts(prefix string, format codec.Format, tensors ...*codec.Tensor) ([]Part, error) {
	var parts []Part
	for _, t := range tensors {
		if t == nil {
			continue
		}
		name := fmt.Sprintf("%s%d", prefix, len(parts)+1)
		p, err := FilePart(name, name, t, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func MaskPart(field string, t *codec.Tensor) (Part, error) {
	data, err := codec.EncodeMask(t)
	if err != nil {
		return Part{}, err
	}
	return Part{
		Field:       field,
		Filename:    field + ".png",
		ContentType: codec.PNG.MimeType(),
		Data:        data,
	}, nil
}

// InlineParts encodes every batch element for JSON inlining.
func InlineParts(t *codec.Tensor, format codec.Format) ([]Part, error) {
	encoded, err := codec.EncodeBatch(t, format)
	if err != nil {
		return nil, err
	}
	parts := make([]Part, len(encoded))
	for i, data := range encoded {
		parts[i] = Part{ContentType: format.MimeType(), Data: data}
	}
	return parts, nil
}
