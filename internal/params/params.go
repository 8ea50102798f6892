// Package params declares node input schemas and resolves raw host inputs
// into validated, typed values.
package params

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mai/internal/codec"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNoURL   = errors.New("no url provided")
	ErrInvalid = errors.New("invalid input")
)

var validate = validator.New()

type Kind string

const (
	String  Kind = "STRING"
	Int     Kind = "INT"
	Float   Kind = "FLOAT"
	Boolean Kind = "BOOLEAN"
	Combo   Kind = "COMBO"
	Image   Kind = "IMAGE"
	Mask    Kind = "MASK"
)

func (k Kind) IsMedia() bool {
	return k == Image || k == Mask
}

// Spec describes one node input the way the host displays and validates it.
type Spec struct {
	Name      string   `json:"name"`
	Kind      Kind     `json:"type"`
	Default   any      `json:"default,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Step      float64  `json:"step,omitempty"`
	Options   []string `json:"options,omitempty"`
	Multiline bool     `json:"multiline,omitempty"`
	Optional  bool     `json:"-"`
}

func Text(name, def string) Spec {
	return Spec{Name: name, Kind: String, Default: def}
}

func Prompt(name string) Spec {
	return Spec{Name: name, Kind: String, Default: "", Multiline: true}
}

func Integer(name string, def int64) Spec {
	return Spec{Name: name, Kind: Int, Default: def}
}

func IntRange(name string, def, min, max int64) Spec {
	lo, hi := float64(min), float64(max)
	return Spec{Name: name, Kind: Int, Default: def, Min: &lo, Max: &hi, Step: 1}
}

func IntMin(name string, def, min int64) Spec {
	lo := float64(min)
	return Spec{Name: name, Kind: Int, Default: def, Min: &lo}
}

func FloatRange(name string, def, min, max, step float64) Spec {
	return Spec{Name: name, Kind: Float, Default: def, Min: &min, Max: &max, Step: step}
}

func Bool(name string, def bool) Spec {
	return Spec{Name: name, Kind: Boolean, Default: def}
}

func Choice(name, def string, options ...string) Spec {
	return Spec{Name: name, Kind: Combo, Default: def, Options: options}
}

func ImageInput(name string) Spec {
	return Spec{Name: name, Kind: Image}
}

func MaskInput(name string) Spec {
	return Spec{Name: name, Kind: Mask}
}

// Opt marks the input as optional.
func (s Spec) Opt() Spec {
	s.Optional = true
	return s
}

// Endpoint inputs shared by every remote node.
func Endpoint() []Spec {
	return []Spec{Text("url", ""), Text("api_key", "")}
}

// Schema is an ordered list of node inputs.
type Schema []Spec

func (s Schema) Required() []Spec {
	var out []Spec
	for _, spec := range s {
		if !spec.Optional {
			out = append(out, spec)
		}
	}
	return out
}

func (s Schema) Optional() []Spec {
	var out []Spec
	for _, spec := range s {
		if spec.Optional {
			out = append(out, spec)
		}
	}
	return out
}

// Resolve fills defaults, coerces raw values to their declared kinds and
// validates bounds and enumerations. Unknown inputs are ignored.
func (s Schema) Resolve(raw map[string]any) (Values, error) {
	values := make(Values, len(s))
	for _, spec := range s {
		in, ok := raw[spec.Name]
		if !ok || in == nil {
			if spec.Kind.IsMedia() {
				if spec.Optional {
					continue
				}
				return nil, fmt.Errorf("%w: missing required input %q", ErrInvalid, spec.Name)
			}
			in = spec.Default
		}

		val, err := spec.coerce(in)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, spec.Name, err)
		}
		if err := spec.check(val); err != nil {
			return nil, fmt.Errorf("%w: %s %v", ErrInvalid, spec.Name, err)
		}
		values[spec.Name] = val
	}
	return values, nil
}

func (s Spec) rules() string {
	var r []string
	if s.Min != nil {
		r = append(r, "gte="+strconv.FormatFloat(*s.Min, 'f', -1, 64))
	}
	if s.Max != nil {
		r = append(r, "lte="+strconv.FormatFloat(*s.Max, 'f', -1, 64))
	}
	if s.Kind == Combo && len(s.Options) > 0 {
		r = append(r, "oneof="+strings.Join(s.Options, " "))
	}
	return strings.Join(r, ",")
}

func (s Spec) check(val any) error {
	rules := s.rules()
	if rules == "" {
		return nil
	}
	err := validate.Var(val, rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "gte":
			return fmt.Errorf("must be >= %s, got %v", fe.Param(), val)
		case "lte":
			return fmt.Errorf("must be <= %s, got %v", fe.Param(), val)
		case "oneof":
			return fmt.Errorf("must be one of [%s], got %q", fe.Param(), val)
		}
	}
	return err
}

func (s Spec) coerce(in any) (any, error) {
	switch s.Kind {
	case String, Combo:
		v, ok := in.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", in)
		}
		return v, nil
	case Int:
		return toInt(in)
	case Float:
		return toFloat(in)
	case Boolean:
		switch v := in.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
		return nil, fmt.Errorf("expected boolean, got %T", in)
	case Image, Mask:
		return toTensor(in, s.Kind)
	}
	return nil, fmt.Errorf("unknown kind %q", s.Kind)
}

func toInt(in any) (int64, error) {
	switch v := in.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, fmt.Errorf("expected integer, got %T", in)
}

func toFloat(in any) (float64, error) {
	switch v := in.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("expected number, got %T", in)
}

// toTensor accepts a tensor, a {"shape","data"} object or a base64 encoded
// still image. Masks given as images use their first channel.
func toTensor(in any, kind Kind) (*codec.Tensor, error) {
	var t *codec.Tensor
	switch v := in.(type) {
	case *codec.Tensor:
		t = v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		t = &codec.Tensor{}
		if err := json.Unmarshal(b, t); err != nil {
			return nil, err
		}
	case string:
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("image is not base64: %w", err)
		}
		img, err := codec.DecodeStill(raw)
		if err != nil {
			return nil, err
		}
		if kind == Mask {
			img = firstChannel(img)
		}
		t = img
	default:
		return nil, fmt.Errorf("expected tensor, got %T", in)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// firstChannel reduces a [1,H,W,C] image to a [1,H,W] mask.
func firstChannel(t *codec.Tensor) *codec.Tensor {
	h, w, c := t.Shape[1], t.Shape[2], t.Shape[3]
	out := codec.NewTensor(1, h, w)
	for p := 0; p < h*w; p++ {
		out.Data[p] = t.Data[p*c]
	}
	return out
}
