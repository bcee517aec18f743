package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"playerbridge/internal/asset"
	"playerbridge/internal/engine"

	"github.com/dhowden/tag"
)

// Metadata is what is known about a media resource without playing it.
// Tag fields are only filled for local files that carry tags.
type Metadata struct {
	DurationMs int64  `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	VideoCodec string `json:"videoCodec,omitempty"`
	AudioCodec string `json:"audioCodec,omitempty"`
	BitRate    int64  `json:"bitrate"`

	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Format   string `json:"format,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// ExtractMetadata probes uri. Like Generate, cancelling ctx only stops the
// wait.
func (s *Service) ExtractMetadata(ctx context.Context, uri string) (*Metadata, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: uri is required", ErrInvalidArguments)
	}
	mrl, err := asset.Locator(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	type probed struct {
		p   *engine.Probe
		err error
	}
	out := make(chan probed, 1)
	go func() {
		p, err := s.prober.Probe(mrl, s.timeout)
		out <- probed{p, err}
	}()

	var p *engine.Probe
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrMetadataFailed, ctx.Err())
	case r := <-out:
		if r.err != nil {
			s.log.Warn("probe failed", "mrl", mrl, "error", r.err)
			return nil, fmt.Errorf("%w: %w", ErrMetadataFailed, r.err)
		}
		p = r.p
	}

	md := &Metadata{
		DurationMs: p.DurationMs,
		Width:      p.Width,
		Height:     p.Height,
		VideoCodec: p.VideoCodec,
		AudioCodec: p.AudioCodec,
		BitRate:    p.BitRate,
	}
	if path, ok := localPath(mrl); ok {
		s.readTags(path, md)
	}
	return md, nil
}

func localPath(mrl string) (string, bool) {
	u, err := url.Parse(mrl)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// readTags fills the tag fields of md. Files without tags are not an error.
func (s *Service) readTags(path string, md *Metadata) {
	f, err := os.Open(path)
	if err != nil {
		s.log.Debug("open for tags", "path", path, "error", err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			s.log.Debug("read tags", "path", path, "error", err)
		}
		return
	}
	md.Title = m.Title()
	md.Artist = m.Artist()
	md.Album = m.Album()
	md.Format = string(m.Format())
	md.FileType = string(m.FileType())
}
