package player

import (
	"playerbridge/internal/engine"
)

// mediaBridge receives player callbacks on engine goroutines and redelivers
// them on the dispatch queue.
type mediaBridge struct {
	s *Session
}

func (b *mediaBridge) StateChanged(st engine.State) {
	b.s.deps.queue.Post(func() { b.s.onState(st) })
}

func (b *mediaBridge) TimeChanged() {
	b.s.deps.queue.Post(b.s.onTimeChanged)
}

func (b *mediaBridge) RecordingStarted() {
	b.s.deps.queue.Post(func() { b.s.onRecording(true, "") })
}

func (b *mediaBridge) RecordingStopped(path string) {
	b.s.deps.queue.Post(func() { b.s.onRecording(false, path) })
}

// rendererBridge does the same for one discovery round; gen ties it to the
// scan that created it.
type rendererBridge struct {
	s   *Session
	gen int
}

func (b *rendererBridge) ItemAdded(item engine.RendererItem) {
	b.s.deps.queue.Post(func() { b.s.itemAdded(b.gen, item) })
}

func (b *rendererBridge) ItemDeleted(item engine.RendererItem) {
	b.s.deps.queue.Post(func() { b.s.itemDeleted(b.gen, item) })
}

func (s *Session) onState(st engine.State) {
	if s.isDisposed() {
		return
	}

	switch st {
	case engine.StateOpening:
		s.mediaEvents.emit(Event{"event": "opening"})
	case engine.StatePaused:
		s.mediaEvents.emit(Event{"event": "paused"})
	case engine.StateStopped:
		s.mediaEvents.emit(Event{"event": "stopped"})
	case engine.StateError:
		s.mediaEvents.emit(Event{"event": "error"})
	case engine.StatePlaying:
		s.mediaEvents.emitLazy("playing", func() Event {
			return s.playingEvent(true)
		})
	case engine.StateStopping, engine.StateEnded:
		s.mediaEvents.emitLazy("ended", func() Event {
			return Event{"event": "ended", "position": s.Position()}
		})
	case engine.StateBuffering:
		s.mediaEvents.emitLazy("timeChanged", func() Event {
			return s.timeChangedEvent(true, s.Position())
		})
	}
}

func (s *Session) onTimeChanged() {
	if s.isDisposed() {
		return
	}
	pos, ok := s.player.Time()
	if !ok {
		return
	}
	s.mediaEvents.emitLazy("timeChanged", func() Event {
		visible := s.player.IsPlaying() && s.player.State() == engine.StatePlaying
		return s.timeChangedEvent(visible, pos)
	})
}

func (s *Session) onRecording(recording bool, path string) {
	if s.isDisposed() {
		return
	}
	s.mediaEvents.emit(Event{"event": "recording", "isRecording": recording, "recordPath": path})
}

// playingEvent samples the player. Video size is reported only when
// withSize is set.
func (s *Session) playingEvent(withSize bool) Event {
	ev := Event{
		"event":    "playing",
		"height":   0,
		"width":    0,
		"speed":    s.player.Rate(),
		"duration": s.player.Length(),
	}
	if withSize {
		w, h := s.player.VideoSize()
		ev["width"], ev["height"] = w, h
	}
	s.addTrackStats(ev)
	return ev
}

func (s *Session) timeChangedEvent(withSize bool, pos int64) Event {
	ev := s.playingEvent(withSize)
	ev["event"] = "timeChanged"
	ev["position"] = pos
	ev["buffer"] = bufferPlaceholder
	ev["isPlaying"] = s.player.IsPlaying()
	return ev
}

func (s *Session) addTrackStats(ev Event) {
	ev["audioTracksCount"] = s.TrackCount(engine.TrackAudio)
	ev["activeAudioTrack"] = s.SelectedTrack(engine.TrackAudio)
	ev["spuTracksCount"] = s.TrackCount(engine.TrackSubtitle)
	ev["activeSpuTrack"] = s.SelectedTrack(engine.TrackSubtitle)
}
