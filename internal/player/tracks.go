package player

import (
	"errors"
	"fmt"

	"playerbridge/internal/asset"
	"playerbridge/internal/engine"

	"github.com/samber/lo"
)

// Track indices are positions in the engine's list at query time. They are
// not stable across calls if the list changes.

// TrackDescriptions maps each track index of kind to its name.
func (s *Session) TrackDescriptions(kind engine.TrackKind) map[int]string {
	tracks := s.player.Tracks(kind)
	out := make(map[int]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Name
	}
	return out
}

// TrackCount returns the number of tracks of kind.
func (s *Session) TrackCount(kind engine.TrackKind) int {
	return len(s.player.Tracks(kind))
}

// SelectedTrack returns the index of the first selected track, -1 if none.
func (s *Session) SelectedTrack(kind engine.TrackKind) int {
	_, idx, found := lo.FindIndexOf(s.player.Tracks(kind), func(t engine.Track) bool { return t.Selected })
	if !found {
		return -1
	}
	return idx
}

// SelectTrack selects the track at index; -1 disables the kind.
func (s *Session) SelectTrack(kind engine.TrackKind, index int) error {
	if index < -1 {
		return fmt.Errorf("%w: track index %d", ErrInvalidArgument, index)
	}
	err := s.player.SelectTrack(kind, index)
	if errors.Is(err, engine.ErrNoSuchTrack) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return err
}

// TrackDelay returns the delay of kind in milliseconds.
func (s *Session) TrackDelay(kind engine.TrackKind) (int64, error) {
	if !kind.HasDelay() {
		return 0, fmt.Errorf("%w: %s tracks have no delay", ErrInvalidArgument, kind)
	}
	return s.player.Delay(kind), nil
}

// SetTrackDelay sets the delay of kind in milliseconds.
func (s *Session) SetTrackDelay(kind engine.TrackKind, ms int64) error {
	if !kind.HasDelay() {
		return fmt.Errorf("%w: %s tracks have no delay", ErrInvalidArgument, kind)
	}
	return s.player.SetDelay(kind, ms)
}

// AddTrack attaches an external subtitle or audio track.
func (s *Session) AddTrack(kind engine.TrackKind, uri string, selected bool) error {
	if kind == engine.TrackVideo {
		return fmt.Errorf("%w: external video tracks are not supported", ErrInvalidArgument)
	}
	if uri == "" {
		return fmt.Errorf("%w: uri is required", ErrInvalidArgument)
	}
	mrl, err := asset.Locator(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.player.AddSlave(kind, mrl, selected)
}
