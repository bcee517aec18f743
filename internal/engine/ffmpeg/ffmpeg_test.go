package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailArgs(t *testing.T) {
	args := ThumbnailArgs("file:///clip.mp4", 1500*time.Millisecond, 120, 0)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "1.500",
		"-i", "file:///clip.mp4",
		"-frames:v", "1",
		"-vf", "scale=120:-1",
		"-f", "image2pipe", "-vcodec", "png", "-",
	}, args)

	args = ThumbnailArgs("in.mkv", 0, 0, 0)
	assert.NotContains(t, args, "-vf")
	assert.Equal(t, "0.000", args[4])
}

func TestProbeArgs(t *testing.T) {
	args := ProbeArgs("in.mkv")
	assert.Contains(t, args, "-show_streams")
	assert.Equal(t, "in.mkv", args[len(args)-1])
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "62.500000", "bit_rate": "812345"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300}
		]
	}`)

	p, err := ParseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, int64(62500), p.DurationMs)
	assert.Equal(t, int64(812345), p.BitRate)
	assert.Equal(t, "h264", p.VideoCodec)
	assert.Equal(t, "aac", p.AudioCodec)
	assert.Equal(t, 1280, p.Width)
	assert.Equal(t, 720, p.Height)
}

func TestParseProbe_invalid(t *testing.T) {
	_, err := ParseProbe([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseProbe([]byte(`{"format": {"duration": "abc"}}`))
	assert.Error(t, err)
}
