package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		cd   string
		url  string
		want string
	}{
		{"header wins", `attachment; filename="clip.mp4"`, "https://x/y/other.mp4", "clip.mp4"},
		{"separators replaced", `attachment; filename="../a/b.mp4"`, "", ".._a_b.mp4"},
		{"url fallback", "", "https://cdn.example.com/v/abc.mp4?sig=1", "abc.mp4"},
		{"bad header falls back", "attachment; filename", "https://x/v.mp4", "v.mp4"},
		{"nothing usable", "", "https://cdn.example.com/", ""},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.cd, tt.url))
		})
	}
}
