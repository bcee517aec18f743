package player

import "playerbridge/internal/engine"

// Per-handle operations. Each resolves the handle, then delegates to the
// session and returns its result unchanged. An unknown handle fails with
// ErrPlayerNotFound.

func query[T any](r *Registry, h Handle, fn func(s *Session) T) (T, error) {
	s, err := r.Get(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(s), nil
}

// Play resolves h and starts or resumes playback.
func (r *Registry) Play(h Handle) error { return r.with(h, (*Session).Play) }

// Pause resolves h and pauses playback.
func (r *Registry) Pause(h Handle) error { return r.with(h, (*Session).Pause) }

// Stop resolves h and stops playback.
func (r *Registry) Stop(h Handle) error { return r.with(h, (*Session).Stop) }

// IsPlaying resolves h and reports whether it is playing or buffering.
func (r *Registry) IsPlaying(h Handle) (bool, error) { return query(r, h, (*Session).IsPlaying) }

// IsSeekable resolves h and reports whether its media accepts seeks.
func (r *Registry) IsSeekable(h Handle) (bool, error) { return query(r, h, (*Session).IsSeekable) }

// SetLooping resolves h and sets whether its media restarts at the end.
func (r *Registry) SetLooping(h Handle, loop bool) error {
	return r.with(h, func(s *Session) error { return s.SetLooping(loop) })
}

// Looping resolves h and returns its looping flag.
func (r *Registry) Looping(h Handle) (bool, error) { return query(r, h, (*Session).Looping) }

// SeekTo resolves h and moves playback to ms milliseconds.
func (r *Registry) SeekTo(h Handle, ms int64) error {
	return r.with(h, func(s *Session) error { return s.SeekTo(ms) })
}

// Position resolves h and returns the playback position in milliseconds.
func (r *Registry) Position(h Handle) (int64, error) { return query(r, h, (*Session).Position) }

// Duration resolves h and returns the media length in milliseconds.
func (r *Registry) Duration(h Handle) (int64, error) { return query(r, h, (*Session).Duration) }

// SetVolume resolves h and sets its volume.
func (r *Registry) SetVolume(h Handle, v int) error {
	return r.with(h, func(s *Session) error { return s.SetVolume(v) })
}

// Volume resolves h and returns its volume.
func (r *Registry) Volume(h Handle) (int, error) { return query(r, h, (*Session).Volume) }

// SetSpeed resolves h and sets the playback rate.
func (r *Registry) SetSpeed(h Handle, rate float64) error {
	return r.with(h, func(s *Session) error { return s.SetSpeed(rate) })
}

// Speed resolves h and returns the playback rate.
func (r *Registry) Speed(h Handle) (float64, error) { return query(r, h, (*Session).Speed) }

// Snapshot resolves h and returns the current frame as base64 PNG, or nil
// when no frame is available.
func (r *Registry) Snapshot(h Handle) (*string, error) {
	return query(r, h, func(s *Session) *string {
		if b64, ok := s.Snapshot(); ok {
			return &b64
		}
		return nil
	})
}

// TrackDescriptions resolves h and returns the tracks of kind by id.
func (r *Registry) TrackDescriptions(h Handle, kind engine.TrackKind) (map[int]string, error) {
	return query(r, h, func(s *Session) map[int]string { return s.TrackDescriptions(kind) })
}

// TrackCount resolves h and counts its tracks of kind.
func (r *Registry) TrackCount(h Handle, kind engine.TrackKind) (int, error) {
	return query(r, h, func(s *Session) int { return s.TrackCount(kind) })
}

// SelectedTrack resolves h and returns the selected track of kind.
func (r *Registry) SelectedTrack(h Handle, kind engine.TrackKind) (int, error) {
	return query(r, h, func(s *Session) int { return s.SelectedTrack(kind) })
}

// SelectTrack resolves h and selects a track of kind.
func (r *Registry) SelectTrack(h Handle, kind engine.TrackKind, index int) error {
	return r.with(h, func(s *Session) error { return s.SelectTrack(kind, index) })
}

// TrackDelay resolves h and returns the delay of kind in milliseconds.
func (r *Registry) TrackDelay(h Handle, kind engine.TrackKind) (int64, error) {
	var ms int64
	err := r.with(h, func(s *Session) (err error) {
		ms, err = s.TrackDelay(kind)
		return err
	})
	return ms, err
}

// SetTrackDelay resolves h and sets the delay of kind in milliseconds.
func (r *Registry) SetTrackDelay(h Handle, kind engine.TrackKind, ms int64) error {
	return r.with(h, func(s *Session) error { return s.SetTrackDelay(kind, ms) })
}

// AddTrack resolves h and attaches an external track.
func (r *Registry) AddTrack(h Handle, kind engine.TrackKind, uri string, selected bool) error {
	return r.with(h, func(s *Session) error { return s.AddTrack(kind, uri, selected) })
}

// SetScale resolves h and sets the video scale.
func (r *Registry) SetScale(h Handle, scale float64) error {
	return r.with(h, func(s *Session) error { return s.SetScale(scale) })
}

// Scale resolves h and returns the video scale.
func (r *Registry) Scale(h Handle) (float64, error) { return query(r, h, (*Session).Scale) }

// SetAspectRatio resolves h and sets the video aspect ratio.
func (r *Registry) SetAspectRatio(h Handle, ratio string) error {
	return r.with(h, func(s *Session) error { return s.SetAspectRatio(ratio) })
}

// AspectRatio resolves h and returns the video aspect ratio.
func (r *Registry) AspectRatio(h Handle) (string, error) { return query(r, h, (*Session).AspectRatio) }

// RendererServices resolves h and lists the discovery services it can scan.
func (r *Registry) RendererServices(h Handle) ([]string, error) {
	return query(r, h, (*Session).RendererServices)
}

// StartScanning resolves h and starts a fresh renderer scan.
func (r *Registry) StartScanning(h Handle) error { return r.with(h, (*Session).StartScanning) }

// StopScanning resolves h, stops scanning and returns output to the device.
func (r *Registry) StopScanning(h Handle) error { return r.with(h, (*Session).StopScanning) }

// Devices resolves h and returns the renderers found so far.
func (r *Registry) Devices(h Handle) (map[string]string, error) {
	return query(r, h, (*Session).Devices)
}

// Cast resolves h and redirects output to the renderer matching name.
func (r *Registry) Cast(h Handle, name string) error {
	return r.with(h, func(s *Session) error { return s.Cast(name) })
}

// StartRecording resolves h and starts recording into dir.
func (r *Registry) StartRecording(h Handle, dir string) (bool, error) {
	var ok bool
	err := r.with(h, func(s *Session) (err error) {
		ok, err = s.StartRecording(dir)
		return err
	})
	return ok, err
}

// StopRecording resolves h and stops recording.
func (r *Registry) StopRecording(h Handle) (bool, error) {
	return query(r, h, (*Session).StopRecording)
}

// Listen attaches sub to the named stream of h.
func (r *Registry) Listen(h Handle, stream string, sub Subscriber) (cancel func(), err error) {
	s, err := r.Get(h)
	if err != nil {
		return nil, err
	}
	switch stream {
	case StreamMedia:
		return s.MediaEvents().Listen(sub), nil
	case StreamRenderer:
		return s.RendererEvents().Listen(sub), nil
	}
	return nil, ErrInvalidArgument
}
