// Package response interprets untrusted remote replies. Every accessor
// shape-checks the body before use.
package response

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"mai/internal/codec"

	"github.com/tidwall/gjson"
)

var (
	ErrEmptyResponse  = errors.New("the service returned an empty response")
	ErrInvalidFormat  = errors.New("the service returned an invalid response format")
	ErrBase64Decode   = errors.New("base64 decode error")
	ErrMalformedImage = codec.ErrMalformedImage
)

func parse(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrInvalidFormat
	}
	return gjson.ParseBytes(body), nil
}

// Text returns the required text at path.
func Text(body []byte, path string) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	v := doc.Get(path)
	if !v.Exists() || v.Type != gjson.String || strings.TrimSpace(v.Str) == "" {
		return "", ErrEmptyResponse
	}
	return v.Str, nil
}

// Secondary returns an optional string field, "" when absent.
func Secondary(body []byte, path string) string {
	v := gjson.GetBytes(body, path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// Flag returns an optional boolean field, false when absent.
func Flag(body []byte, path string) bool {
	return gjson.GetBytes(body, path).Bool()
}

// Base64Image decodes the base64 image stored at path.
func Base64Image(body []byte, path string) (*codec.Tensor, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	v := doc.Get(path)
	if !v.Exists() || v.Type != gjson.String {
		return nil, ErrInvalidFormat
	}

	raw, err := decodeBase64(v.Str)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase64Decode, err)
	}
	return codec.DecodeStill(raw)
}

// RawImage decodes a pure-binary image body.
func RawImage(body []byte) (*codec.Tensor, error) {
	return codec.DecodeStill(body)
}

// Pointer returns the asset url a redirect-style endpoint answers with.
func Pointer(body []byte, path string) (string, error) {
	url, err := Text(body, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	if len(s)%4 != 0 {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return base64.StdEncoding.DecodeString(s)
}

// IsShape reports whether err is a response-shape failure.
func IsShape(err error) bool {
	return errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrBase64Decode) ||
		errors.Is(err, ErrMalformedImage)
}
