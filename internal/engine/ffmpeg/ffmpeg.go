// Package ffmpeg captures thumbnails with ffmpeg and probes media with
// ffprobe. Both run as short-lived child processes.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"playerbridge/internal/engine"
)

const defaultTimeout = 10 * time.Second

// Tools locates the ffmpeg and ffprobe binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
	log     *slog.Logger
}

// New returns Tools using the given binaries. Empty paths fall back to the
// names looked up on PATH.
func New(ffmpegPath, ffprobePath string, log *slog.Logger) *Tools {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tools{FFmpeg: ffmpegPath, FFprobe: ffprobePath, log: log.With("component", "ffmpeg")}
}

// ProbeResult is the subset of `ffprobe -print_format json` output we read.
type ProbeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// ProbeArgs builds the ffprobe command line for input.
func ProbeArgs(input string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	}
}

// ThumbnailArgs builds an ffmpeg command line that writes one PNG frame taken
// at offset to stdout. A zero side keeps the aspect ratio; both zero keeps the
// source size.
func ThumbnailArgs(input string, offset time.Duration, width, height int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(offset),
		"-i", input,
		"-frames:v", "1",
	}
	if width > 0 || height > 0 {
		w, h := width, height
		if w <= 0 {
			w = -1
		}
		if h <= 0 {
			h = -1
		}
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", w, h))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "png", "-")
}

func formatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// ParseProbe converts ffprobe JSON output into an engine.Probe.
func ParseProbe(data []byte) (*engine.Probe, error) {
	var res ProbeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	p := &engine.Probe{}
	if res.Format.Duration != "" {
		secs, err := strconv.ParseFloat(res.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", res.Format.Duration, err)
		}
		p.DurationMs = int64(secs * 1000)
	}
	if res.Format.BitRate != "" {
		p.BitRate, _ = strconv.ParseInt(res.Format.BitRate, 10, 64)
	}
	for _, s := range res.Streams {
		switch s.CodecType {
		case "video":
			if p.VideoCodec == "" {
				p.VideoCodec = s.CodecName
				p.Width, p.Height = s.Width, s.Height
			}
		case "audio":
			if p.AudioCodec == "" {
				p.AudioCodec = s.CodecName
			}
		}
	}
	return p, nil
}

// Probe runs ffprobe against mrl.
func (t *Tools) Probe(mrl string, timeout time.Duration) (*engine.Probe, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := t.run(ctx, t.FFprobe, ProbeArgs(mrl))
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", mrl, err)
	}
	return ParseProbe(out)
}

// Fetch implements engine.Thumbnailer. The capture runs on its own goroutine
// and done fires once it finishes or the request timeout expires.
func (t *Tools) Fetch(req engine.ThumbnailRequest, done func(image.Image, error)) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		img, err := t.capture(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", engine.ErrTimeout, err)
		}
		done(img, err)
	}()
}

func (t *Tools) capture(ctx context.Context, req engine.ThumbnailRequest) (image.Image, error) {
	var offset time.Duration
	if req.Position > 0 {
		out, err := t.run(ctx, t.FFprobe, ProbeArgs(req.MRL))
		if err != nil {
			return nil, fmt.Errorf("ffprobe %s: %w", req.MRL, err)
		}
		p, err := ParseProbe(out)
		if err != nil {
			return nil, err
		}
		offset = time.Duration(float64(p.DurationMs)*req.Position) * time.Millisecond
	}

	out, err := t.run(ctx, t.FFmpeg, ThumbnailArgs(req.MRL, offset, req.Width, req.Height))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w", req.MRL, err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (t *Tools) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	t.log.Debug("exec", "bin", bin, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
