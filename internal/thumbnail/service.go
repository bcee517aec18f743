// Package thumbnail captures single frames of media and returns them as
// base64 images, and reports technical metadata about media.
package thumbnail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"playerbridge/internal/asset"
	"playerbridge/internal/engine"
	"playerbridge/internal/platform/metrics"

	"github.com/google/uuid"
)

var (
	// ErrInvalidArguments is returned for requests rejected before the engine
	// is asked for anything.
	ErrInvalidArguments = errors.New("invalid thumbnail arguments")

	// ErrGenerationFailed is returned when the engine produced no frame.
	ErrGenerationFailed = errors.New("thumbnail generation failed")

	// ErrMetadataFailed is returned when media could not be probed.
	ErrMetadataFailed = errors.New("metadata extraction failed")
)

const (
	defaultTimeout  = 10 * time.Second
	defaultPosition = 0.5

	// timeoutGrace is how long past the engine timeout the service keeps
	// waiting for a late completion.
	timeoutGrace = 2 * time.Second
)

// Options configures a Service.
type Options struct {
	Thumbnailer engine.Thumbnailer
	Prober      engine.Prober
	Format      Format
	// Timeout bounds each engine request; zero means 10s.
	Timeout time.Duration
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Service generates thumbnails through the engine.
type Service struct {
	thumbs  engine.Thumbnailer
	prober  engine.Prober
	format  Format
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns a Service.
func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		thumbs:  opts.Thumbnailer,
		prober:  opts.Prober,
		format:  opts.Format,
		timeout: opts.Timeout,
		log:     log.With("component", "thumbnail"),
		metrics: opts.Metrics,
	}
}

// Request describes one thumbnail. Zero Width/Height keep the source size
// (or its aspect ratio when only one side is set). Position is a fraction of
// the duration; nil means the middle.
type Request struct {
	URI      string   `json:"uri"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Position *float64 `json:"position,omitempty"`
}

type result struct {
	img image.Image
	err error
}

// Generate returns the frame at req.Position as base64 in the configured
// format. Cancelling ctx stops the wait only; the engine request still runs
// until it completes or times out.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	ereq, err := s.engineRequest(req)
	if err != nil {
		s.record("invalid")
		return "", err
	}

	id := uuid.NewString()
	log := s.log.With("request_id", id, "mrl", ereq.MRL)
	log.Debug("thumbnail requested", "width", ereq.Width, "height", ereq.Height, "position", ereq.Position)

	out := make(chan result, 1)
	go s.fetch(ereq, log, out)

	select {
	case <-ctx.Done():
		s.record("failed")
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
	case r := <-out:
		if r.err != nil {
			s.record("failed")
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, r.err)
		}
		data, err := encode(r.img, s.format)
		if err != nil {
			s.record("failed")
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		s.record("ok")
		return base64.StdEncoding.EncodeToString(data), nil
	}
}

// fetch owns one engine request until its completion arrives or the
// deadline passes. out must be buffered.
func (s *Service) fetch(req engine.ThumbnailRequest, log *slog.Logger, out chan<- result) {
	done := make(chan result, 1)
	started := time.Now()
	s.thumbs.Fetch(req, func(img image.Image, err error) {
		done <- result{img: img, err: err}
	})

	timer := time.NewTimer(req.Timeout + timeoutGrace)
	defer timer.Stop()

	var r result
	select {
	case r = <-done:
	case <-timer.C:
		r = result{err: engine.ErrTimeout}
	}
	if r.err == nil && r.img == nil {
		r.err = errors.New("engine returned no frame")
	}

	if r.err != nil {
		log.Warn("thumbnail failed", "error", r.err, "elapsed", time.Since(started))
	} else {
		log.Debug("thumbnail ready", "elapsed", time.Since(started))
	}
	out <- r
}

func (s *Service) engineRequest(req Request) (engine.ThumbnailRequest, error) {
	if req.URI == "" {
		return engine.ThumbnailRequest{}, fmt.Errorf("%w: uri is required", ErrInvalidArguments)
	}
	if req.Width < 0 || req.Height < 0 {
		return engine.ThumbnailRequest{}, fmt.Errorf("%w: negative size %dx%d", ErrInvalidArguments, req.Width, req.Height)
	}
	pos := defaultPosition
	if req.Position != nil {
		pos = *req.Position
	}
	if pos < 0 || pos > 1 {
		return engine.ThumbnailRequest{}, fmt.Errorf("%w: position %v outside [0,1]", ErrInvalidArguments, pos)
	}
	mrl, err := asset.Locator(req.URI)
	if err != nil {
		return engine.ThumbnailRequest{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return engine.ThumbnailRequest{
		MRL:      mrl,
		Width:    req.Width,
		Height:   req.Height,
		Position: pos,
		Timeout:  s.timeout,
	}, nil
}

func (s *Service) record(res string) {
	if s.metrics != nil {
		s.metrics.Thumbnail(res)
	}
}
