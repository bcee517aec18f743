package mpv

import (
	"encoding/json"
	"fmt"

	"playerbridge/internal/engine"

	"github.com/samber/lo"
)

// mpvTrack is one entry of the track-list property.
type mpvTrack struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Lang     string `json:"lang"`
	Selected bool   `json:"selected"`
	External bool   `json:"external"`
}

func mpvType(kind engine.TrackKind) string {
	switch kind {
	case engine.TrackAudio:
		return "audio"
	case engine.TrackVideo:
		return "video"
	default:
		return "sub"
	}
}

// selectProperty is the property that picks the active track of a kind.
func selectProperty(kind engine.TrackKind) string {
	switch kind {
	case engine.TrackAudio:
		return "aid"
	case engine.TrackVideo:
		return "vid"
	default:
		return "sid"
	}
}

func delayProperty(kind engine.TrackKind) (string, bool) {
	switch kind {
	case engine.TrackAudio:
		return "audio-delay", true
	case engine.TrackSubtitle:
		return "sub-delay", true
	}
	return "", false
}

func parseTrackList(data []byte) ([]mpvTrack, error) {
	var tracks []mpvTrack
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("parse track-list: %w", err)
	}
	return tracks, nil
}

// tracksOf filters the list to one kind, in mpv order.
func tracksOf(all []mpvTrack, kind engine.TrackKind) []mpvTrack {
	want := mpvType(kind)
	return lo.Filter(all, func(t mpvTrack, _ int) bool { return t.Type == want })
}

func toEngineTracks(list []mpvTrack) []engine.Track {
	return lo.Map(list, func(t mpvTrack, i int) engine.Track {
		return engine.Track{ID: t.ID, Name: trackName(t, i), Selected: t.Selected}
	})
}

func trackName(t mpvTrack, i int) string {
	switch {
	case t.Title != "" && t.Lang != "":
		return fmt.Sprintf("%s - [%s]", t.Title, t.Lang)
	case t.Title != "":
		return t.Title
	case t.Lang != "":
		return fmt.Sprintf("Track %d - [%s]", i+1, t.Lang)
	}
	return fmt.Sprintf("Track %d", i+1)
}
