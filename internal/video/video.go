// Package video splits downloaded video containers into frames, audio and
// frame rate.
package video

import (
	"context"

	"mai/internal/codec"

	"github.com/charmbracelet/log"
)

const (
	PlaceholderSize  = 512
	DefaultFrameRate = 30.0
)

type Audio struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type Components struct {
	Frames    *codec.Tensor
	Audio     *Audio
	FrameRate float64
}

type Demuxer interface {
	Demux(ctx context.Context, data []byte) (*Components, error)
}

// Placeholder is the degraded result: one black frame, no audio.
func Placeholder() *Components {
	return &Components{
		Frames:    codec.Blank(PlaceholderSize, PlaceholderSize),
		FrameRate: DefaultFrameRate,
	}
}

// Extract demuxes data, substituting the placeholder when demuxing fails.
// The boolean reports whether the placeholder was used.
func Extract(ctx context.Context, d Demuxer, data []byte, logger *log.Logger) (*Components, bool) {
	if d == nil {
		logger.Warn("no demuxer configured, using placeholder frame")
		return Placeholder(), true
	}
	c, err := d.Demux(ctx, data)
	if err == nil && c != nil && c.Frames != nil {
		if c.FrameRate <= 0 {
			c.FrameRate = DefaultFrameRate
		}
		return c, false
	}
	if err == nil {
		err = errNoFrames
	}
	logger.Warn("could not extract video components, using placeholder frame", "err", err)
	return Placeholder(), true
}

// Clip is a downloaded video together with what was extracted from it.
// Degraded is set when the placeholder replaced the real frames.
type Clip struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"-"`
	Degraded bool   `json:"degraded"`
}
