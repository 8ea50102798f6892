package params

import (
	"strings"

	"mai/internal/codec"
)

// Values holds resolved node inputs keyed by input name.
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Int(name string) int64 {
	i, _ := v[name].(int64)
	return i
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Tensor returns nil for absent optional media.
func (v Values) Tensor(name string) *codec.Tensor {
	t, _ := v[name].(*codec.Tensor)
	return t
}

// RequireURL returns the trimmed endpoint url, failing before any network
// call when it is blank.
func RequireURL(v Values) (string, error) {
	url := strings.TrimSpace(v.String("url"))
	if url == "" {
		return "", ErrNoURL
	}
	return url, nil
}
