package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHWAccel_Directives_exclusive(t *testing.T) {
	assert.Nil(t, HWAccelAutomatic.Directives())
	assert.Equal(t, []string{"--codec=avcodec"}, HWAccelDisabled.Directives())
	assert.Equal(t, []string{"--codec=all", ":no-mediacodec-dr", ":no-omxil-dr"}, HWAccelDecoding.Directives())
	assert.Equal(t, []string{"--codec=all"}, HWAccelFull.Directives())

	assert.False(t, HWAccel(7).Valid())
	assert.Nil(t, HWAccel(7).Directives())
}

func TestParseTrackKind(t *testing.T) {
	for in, want := range map[string]TrackKind{
		"spu":      TrackSubtitle,
		"Subtitle": TrackSubtitle,
		"audio":    TrackAudio,
		"video":    TrackVideo,
	} {
		got, ok := ParseTrackKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseTrackKind("chapters")
	assert.False(t, ok)
	assert.False(t, TrackVideo.HasDelay())
}

func TestMedia_options(t *testing.T) {
	m := &Media{MRL: "file:///clip.mp4"}
	m.AddOption("--loop")
	assert.True(t, m.HasOption("--loop"))
	assert.False(t, m.HasOption("--no-loop"))
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "unknown", State(42).String())
}
