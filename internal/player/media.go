package player

import (
	"errors"
	"fmt"
	"slices"

	"playerbridge/internal/asset"
	"playerbridge/internal/engine"
)

// SetMedia loads src into the session:
//
//  1. stop current playback
//  2. resolve the source to an MRL
//  3. apply extra options, then the hardware-acceleration directives
//  4. hand the media to the engine
//  5. play, or prepare without playing
//
// Malformed input fails before the engine is touched. A source that cannot be
// resolved fails with ErrMediaUnresolved after step 1 and keeps the previous
// media.
func (s *Session) SetMedia(src MediaSource) error {
	if err := validateSource(src); err != nil {
		return err
	}

	if err := s.Stop(); err != nil {
		s.log.Debug("stop before set media", "error", err)
	}

	mrl, err := s.resolve(src)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if src.Options != nil {
		s.options = slices.Clone(src.Options)
	}
	media := &engine.Media{MRL: mrl}
	for _, opt := range s.options {
		media.AddOption(opt)
	}
	for _, opt := range src.HWAccel.Directives() {
		media.AddOption(opt)
	}
	if s.looping {
		media.AddOption(loopOption(true))
	}
	s.mu.Unlock()

	if err := s.player.SetMedia(media); err != nil {
		return fmt.Errorf("assign media: %w", err)
	}
	s.mu.Lock()
	s.current = media
	s.mu.Unlock()

	s.log.Debug("media set", "mrl", mrl, "autoplay", src.AutoPlay, "hw_accel", src.HWAccel.String())

	if src.AutoPlay {
		return s.player.Play()
	}
	return s.player.Prepare()
}

// MRL returns the locator of the current media, "" when none was set.
func (s *Session) MRL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.MRL
}

func validateSource(src MediaSource) error {
	if src.URI == "" {
		return fmt.Errorf("%w: uri is required", ErrInvalidArgument)
	}
	if !src.HWAccel.Valid() {
		return fmt.Errorf("%w: unknown hwAcc mode %d", ErrInvalidArgument, int(src.HWAccel))
	}
	switch src.Kind {
	case SourceAsset, SourceNetwork, SourceFile, "":
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidArgument, src.Kind)
	}
	if src.Kind == SourceAsset {
		return nil
	}
	if _, err := asset.Locator(src.URI); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

func (s *Session) resolve(src MediaSource) (string, error) {
	if src.Kind != SourceAsset {
		return asset.Locator(src.URI)
	}
	if s.deps.assets == nil {
		return "", fmt.Errorf("%w: no asset root configured", ErrMediaUnresolved)
	}
	path, err := s.deps.assets.Resolve(src.URI, src.Package)
	if err != nil {
		s.log.Info("asset lookup failed", "uri", src.URI, "package", src.Package, "error", err)
		return "", errors.Join(ErrMediaUnresolved, err)
	}
	return asset.FileURL(path), nil
}
