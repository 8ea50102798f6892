package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mai/internal/codec"
)

var errNoFrames = errors.New("no frames decoded")

// FFmpeg demuxes with the ffmpeg and ffprobe binaries through a scratch
// directory that is removed afterwards.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
	// MaxFrames caps decoded frames; 0 decodes all.
	MaxFrames int
}

func NewFFmpeg(ffmpegPath, ffprobePath, tempDir string, maxFrames int) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		TempDir:     tempDir,
		MaxFrames:   maxFrames,
	}
}

func (f *FFmpeg) Demux(ctx context.Context, data []byte) (*Components, error) {
	if len(data) == 0 {
		return nil, errors.New("empty video")
	}

	dir, err := os.MkdirTemp(f.TempDir, "mai-video-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, err
	}

	fps, err := f.frameRate(ctx, input)
	if err != nil {
		return nil, err
	}

	frames, err := f.frames(ctx, input, dir)
	if err != nil {
		return nil, err
	}

	// A missing audio stream is not a failure.
	audio, _ := f.audio(ctx, input, dir)

	return &Components{Frames: frames, Audio: audio, FrameRate: fps}, nil
}

func (f *FFmpeg) frameRate(ctx context.Context, input string) (float64, error) {
	out, err := run(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input)
	if err != nil {
		return 0, err
	}
	return parseRate(string(out))
}

func (f *FFmpeg) frames(ctx context.Context, input, dir string) (*codec.Tensor, error) {
	frameDir := filepath.Join(dir, "frames")
	if err := os.Mkdir(frameDir, 0o700); err != nil {
		return nil, err
	}

	args := []string{"-v", "error", "-i", input, "-vsync", "0"}
	if f.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(f.MaxFrames))
	}
	args = append(args, filepath.Join(frameDir, "%06d.png"))
	if _, err := run(ctx, f.FFmpegPath, args...); err != nil {
		return nil, err
	}

	names, err := filepath.Glob(filepath.Join(frameDir, "*.png"))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errNoFrames
	}
	sort.Strings(names)

	frames := make([]*codec.Tensor, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		frame, err := codec.DecodeStill(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		frames = append(frames, frame)
	}
	return codec.Stack(frames)
}

func (f *FFmpeg) audio(ctx context.Context, input, dir string) (*Audio, error) {
	output := filepath.Join(dir, "audio.wav")
	if _, err := run(ctx, f.FFmpegPath, "-v", "error", "-i", input, "-vn", "-acodec", "pcm_s16le", "-f", "wav", output); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(output)
	if err != nil {
		return nil, err
	}
	return &Audio{MimeType: "audio/wav", Data: b}, nil
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseRate reads ffprobe rates such as "30/1" or "30000/1001".
func parseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("no video stream")
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("frame rate %q: zero denominator", s)
	}
	return n / d, nil
}
