package engine

import "strings"

// State is the playback state reported by a player.
type State int

const (
	StateStopped State = iota
	StateOpening
	StateBuffering
	StatePlaying
	StatePaused
	StateStopping
	StateEnded
	StateError
)

var stateNames = [...]string{
	StateStopped:   "stopped",
	StateOpening:   "opening",
	StateBuffering: "buffering",
	StatePlaying:   "playing",
	StatePaused:    "paused",
	StateStopping:  "stopping",
	StateEnded:     "ended",
	StateError:     "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// TrackKind selects one of the three track lists of a player.
type TrackKind int

const (
	TrackSubtitle TrackKind = iota
	TrackAudio
	TrackVideo
)

func (k TrackKind) String() string {
	switch k {
	case TrackSubtitle:
		return "subtitle"
	case TrackAudio:
		return "audio"
	case TrackVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ParseTrackKind accepts "subtitle", "spu", "audio" and "video".
func ParseTrackKind(s string) (TrackKind, bool) {
	switch strings.ToLower(s) {
	case "subtitle", "subtitles", "spu":
		return TrackSubtitle, true
	case "audio":
		return TrackAudio, true
	case "video":
		return TrackVideo, true
	}
	return 0, false
}

// HasDelay reports whether the kind supports a playback delay.
func (k TrackKind) HasDelay() bool {
	return k == TrackSubtitle || k == TrackAudio
}

// Track is one entry of a player's track list.
type Track struct {
	ID       int
	Name     string
	Selected bool
}
