package request

import "math"

const Auto = "auto"

// ResolveSize picks an output size: an explicit size wins, otherwise the
// orientation of width/height selects square, landscape or portrait.
func ResolveSize(size string, width, height int64) string {
	if size != Auto {
		return size
	}
	if width <= 0 || height <= 0 {
		return Auto
	}
	switch {
	case width == height:
		return "1024x1024"
	case width > height:
		return "1536x1024"
	default:
		return "1024x1536"
	}
}

var aspectRatios = []struct {
	name  string
	ratio float64
}{
	{"1:1", 1},
	{"16:9", 16.0 / 9},
	{"4:3", 4.0 / 3},
	{"3:4", 3.0 / 4},
	{"9:16", 9.0 / 16},
}

const aspectTolerance = 0.1

// ResolveAspect picks the first supported aspect ratio within tolerance of
// width/height, falling back to 1:1.
func ResolveAspect(aspect string, width, height int64) string {
	if aspect != Auto {
		return aspect
	}
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	ratio := float64(width) / float64(height)
	for _, a := range aspectRatios {
		if math.Abs(ratio-a.ratio) < aspectTolerance {
			return a.name
		}
	}
	return "1:1"
}
