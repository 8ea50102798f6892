// Package request builds remote call bodies from declarative per-capability
// descriptors.
package request

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"mai/internal/params"

	"github.com/tidwall/sjson"
)

type Encoding int

const (
	JSON Encoding = iota
	Multipart
)

// Field maps one value into the request body. Path is a dotted JSON path for
// JSON bodies (nested objects and array indexes are created as needed) or a
// form field name for multipart bodies.
type Field struct {
	Param string
	Path  string
	// Group collects multipart fields into one JSON-stringified form field.
	Group     string
	OmitBlank bool
	Value     func(params.Values) any
}

// Param copies input name into the body under the same name.
func Param(name string) Field {
	return Field{Param: name, Path: name}
}

// ParamAt copies input name into the body at path.
func ParamAt(name, path string) Field {
	return Field{Param: name, Path: path}
}

// Optional copies input name to path only when it is not blank.
func Optional(name, path string) Field {
	return Field{Param: name, Path: path, OmitBlank: true}
}

func Const(path string, v any) Field {
	return Field{Path: path, Value: func(params.Values) any { return v }}
}

func Computed(path string, fn func(params.Values) any) Field {
	return Field{Path: path, Value: fn}
}

// In moves the field into a multipart JSON group.
func (f Field) In(group string) Field {
	f.Group = group
	return f
}

func (f Field) resolve(v params.Values) (any, bool) {
	var val any
	if f.Value != nil {
		val = f.Value(v)
	} else {
		var ok bool
		if val, ok = v[f.Param]; !ok {
			return nil, false
		}
	}
	if val == nil {
		return nil, false
	}
	if f.OmitBlank {
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			return nil, false
		}
	}
	return val, true
}

type Descriptor struct {
	Encoding Encoding
	Fields   []Field
	// InlinePath is the JSON array media parts are appended to as inlineData.
	InlinePath string
}

// Part is an encoded media attachment.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

type Request struct {
	Body        []byte
	ContentType string
}

// Headers carries the API key in a fixed header, never in the body.
func (r *Request) Headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":    strings.TrimSpace(apiKey),
		"Content-Type": r.ContentType,
	}
}

func Build(d Descriptor, values params.Values, parts ...Part) (*Request, error) {
	switch d.Encoding {
	case JSON:
		return buildJSON(d, values, parts)
	case Multipart:
		return buildMultipart(d, values, parts)
	}
	return nil, fmt.Errorf("unknown encoding %d", d.Encoding)
}

func buildJSON(d Descriptor, values params.Values, parts []Part) (*Request, error) {
	doc := []byte("{}")
	var err error
	for _, f := range d.Fields {
		val, ok := f.resolve(values)
		if !ok {
			continue
		}
		if doc, err = sjson.SetBytes(doc, f.Path, val); err != nil {
			return nil, fmt.Errorf("set %s: %w", f.Path, err)
		}
	}

	if len(parts) > 0 && d.InlinePath == "" {
		return nil, fmt.Errorf("descriptor has no inline path for %d media parts", len(parts))
	}
	for _, p := range parts {
		inline := map[string]any{
			"inlineData": map[string]string{
				"mimeType": p.ContentType,
				"data":     base64.StdEncoding.EncodeToString(p.Data),
			},
		}
		if doc, err = sjson.SetBytes(doc, d.InlinePath+".-1", inline); err != nil {
			return nil, fmt.Errorf("append media: %w", err)
		}
	}

	return &Request{Body: doc, ContentType: "application/json"}, nil
}

func buildMultipart(d Descriptor, values params.Values, parts []Part) (*Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	groups := map[string][]byte{}
	var order []string
	var err error
	for _, f := range d.Fields {
		val, ok := f.resolve(values)
		if !ok {
			continue
		}
		if f.Group != "" {
			doc, seen := groups[f.Group]
			if !seen {
				doc = []byte("{}")
				order = append(order, f.Group)
			}
			if groups[f.Group], err = sjson.SetBytes(doc, f.Path, val); err != nil {
				return nil, fmt.Errorf("set %s.%s: %w", f.Group, f.Path, err)
			}
			continue
		}
		if err := writer.WriteField(f.Path, FormValue(val)); err != nil {
			return nil, err
		}
	}
	for _, g := range order {
		if err := writer.WriteField(g, string(groups[g])); err != nil {
			return nil, err
		}
	}

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.Field, p.Filename))
		h.Set("Content-Type", p.ContentType)
		w, err := writer.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &Request{Body: buf.Bytes(), ContentType: writer.FormDataContentType()}, nil
}

// FormValue stringifies a scalar for a multipart field, matching the textual
// forms the mAI endpoints parse (1.0, 42, True).
func FormValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
