package player

import (
	"testing"
	"time"

	"playerbridge/internal/engine"
	"playerbridge/internal/engine/virtual"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) scan(h Handle, want int) {
	f.t.Helper()
	require.NoError(f.t, f.reg.StartScanning(h))
	require.Eventually(f.t, func() bool {
		d, err := f.reg.Devices(h)
		return err == nil && len(d) == want
	}, time.Second, 5*time.Millisecond)
}

func TestRenderer_services(t *testing.T) {
	f := newFixture(t)
	f.create(1)

	services, err := f.reg.RendererServices(1)
	require.NoError(t, err)
	assert.Equal(t, []string{virtual.ServiceName}, services)
}

func TestRenderer_stop_scanning_is_idempotent(t *testing.T) {
	f := newFixture(t)
	f.create(1)

	require.NoError(t, f.reg.StopScanning(1))
	require.NoError(t, f.reg.StopScanning(1))

	devices, err := f.reg.Devices(1)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRenderer_discovery_events(t *testing.T) {
	f := newFixture(t)
	f.create(1)
	sub := &collector{}
	_, err := f.reg.Listen(1, StreamRenderer, sub)
	require.NoError(t, err)

	f.scan(1, 2)
	devices, _ := f.reg.Devices(1)
	assert.Equal(t, map[string]string{"Living Room TV": "Living Room TV", "Kitchen TV": "Kitchen TV"}, devices)

	f.eng.Announce("Bedroom Speaker")
	assert.Eventually(t, func() bool { d, _ := f.reg.Devices(1); return len(d) == 3 }, time.Second, 5*time.Millisecond)
	f.eng.Withdraw("Kitchen TV")
	assert.Eventually(t, func() bool { d, _ := f.reg.Devices(1); return len(d) == 2 }, time.Second, 5*time.Millisecond)
	f.reg.Flush()

	assert.Equal(t, []string{"attached", "attached", "attached", "detached"}, sub.tags())
	assert.Equal(t, Event{"event": "detached", "id": "Kitchen TV", "name": "Kitchen TV"}, sub.last("detached"))

	require.NoError(t, f.reg.StopScanning(1))
	devices, _ = f.reg.Devices(1)
	assert.Empty(t, devices)
}

func TestRenderer_rescan_forgets_items(t *testing.T) {
	f := newFixture(t)
	f.create(1)

	f.scan(1, 2)
	f.eng.Announce("Bedroom Speaker")
	assert.Eventually(t, func() bool { d, _ := f.reg.Devices(1); return len(d) == 3 }, time.Second, 5*time.Millisecond)

	f.scan(1, 2)
	devices, _ := f.reg.Devices(1)
	assert.NotContains(t, devices, "Bedroom Speaker")
}

func TestRenderer_cast(t *testing.T) {
	f := newFixture(t)
	f.create(1)
	require.NoError(t, f.reg.SetMedia(1, MediaSource{URI: "file:///clip.mp4", AutoPlay: true}))
	f.scan(1, 2)

	require.NoError(t, f.reg.Cast(1, "Kitchen"))
	r := f.vplayer(1).Renderer()
	require.NotNil(t, r)
	assert.Equal(t, "Kitchen TV", r.Name)
	playing, _ := f.reg.IsPlaying(1)
	assert.True(t, playing)

	require.NoError(t, f.reg.StopScanning(1))
	assert.Nil(t, f.vplayer(1).Renderer())
	playing, _ = f.reg.IsPlaying(1)
	assert.False(t, playing, "stop scanning pauses playback")
}

func TestRenderer_cast_without_match(t *testing.T) {
	f := newFixture(t)
	f.create(1)
	require.NoError(t, f.reg.SetMedia(1, MediaSource{URI: "file:///clip.mp4", AutoPlay: true}))
	f.scan(1, 2)

	assert.ErrorIs(t, f.reg.Cast(1, "Garage"), ErrRendererNotFound)
	assert.Nil(t, f.vplayer(1).Renderer())
	playing, _ := f.reg.IsPlaying(1)
	assert.True(t, playing, "playback untouched")

	assert.ErrorIs(t, f.reg.Cast(1, ""), ErrInvalidArgument)
}

func TestMatchRenderer(t *testing.T) {
	items := []engine.RendererItem{{Name: "TV Kitchen"}, {Name: "TV"}, {Name: "TV Living"}}

	it, ok := matchRenderer(items, "TV")
	require.True(t, ok)
	assert.Equal(t, "TV", it.Name, "exact match wins")

	it, ok = matchRenderer(items, "Liv")
	require.True(t, ok)
	assert.Equal(t, "TV Living", it.Name)

	it, ok = matchRenderer(items, "TV ")
	require.True(t, ok)
	assert.Equal(t, "TV Kitchen", it.Name, "first substring match in discovery order")

	_, ok = matchRenderer(items, "Radio")
	assert.False(t, ok)
}
