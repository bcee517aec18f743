package virtual

import (
	"errors"
	"image"
	"strings"
	"time"

	"playerbridge/internal/engine"
)

const (
	defaultThumbWidth  = 320
	defaultThumbHeight = 180
)

var errUndecodable = errors.New("virtual: media cannot be decoded")

type thumbnailer struct {
	e *Engine
}

func (t thumbnailer) Fetch(req engine.ThumbnailRequest, done func(image.Image, error)) {
	c := t.e.clip(req.MRL)
	go func() {
		if strings.Contains(req.MRL, "timeout") {
			wait := req.Timeout
			if wait <= 0 {
				wait = t.e.opts.ThumbnailDelay
			}
			time.Sleep(wait)
			done(nil, engine.ErrTimeout)
			return
		}
		if t.e.opts.ThumbnailDelay > 0 {
			time.Sleep(t.e.opts.ThumbnailDelay)
		}
		if c.Broken {
			done(nil, errUndecodable)
			return
		}
		w, h := thumbSize(req.Width, req.Height, c.Width, c.Height)
		done(frame(w, h, uint8(req.Position*255)), nil)
	}()
}

// thumbSize fills a missing side from the source aspect ratio.
func thumbSize(w, h, srcW, srcH int) (int, int) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0 && srcW > 0:
		return w, max(1, w*srcH/srcW)
	case h > 0 && srcH > 0:
		return max(1, h*srcW/srcH), h
	}
	return defaultThumbWidth, defaultThumbHeight
}

type prober struct {
	e *Engine
}

func (p prober) Probe(mrl string, _ time.Duration) (*engine.Probe, error) {
	c := p.e.clip(mrl)
	if c.Broken {
		return nil, errUndecodable
	}
	return &engine.Probe{
		DurationMs: c.Duration.Milliseconds(),
		Width:      c.Width,
		Height:     c.Height,
		VideoCodec: "h264",
		AudioCodec: "aac",
		BitRate:    4_000_000,
	}, nil
}
