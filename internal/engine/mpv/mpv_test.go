package mpv

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"playerbridge/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMPV answers IPC requests on the server end of a pipe.
type fakeMPV struct {
	t    *testing.T
	conn net.Conn

	wmu sync.Mutex

	mu       sync.Mutex
	commands [][]any
	props    map[string]any
}

func newFakeMPV(t *testing.T) (*fakeMPV, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	f := &fakeMPV{t: t, conn: server, props: map[string]any{}}
	go f.serve()
	t.Cleanup(func() { _ = server.Close() })
	return f, client
}

func (f *fakeMPV) serve() {
	sc := bufio.NewScanner(f.conn)
	for sc.Scan() {
		var req ipcRequest
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		var data any
		if len(req.Command) == 2 && req.Command[0] == "get_property" {
			data = f.props[req.Command[1].(string)]
		}
		f.mu.Unlock()

		id := req.RequestID
		f.write(map[string]any{"request_id": id, "error": "success", "data": data})
	}
}

func (f *fakeMPV) write(v any) {
	b, _ := json.Marshal(v)
	f.wmu.Lock()
	defer f.wmu.Unlock()
	_, _ = f.conn.Write(append(b, '\n'))
}

func (f *fakeMPV) event(name string, fields map[string]any) {
	msg := map[string]any{"event": name}
	for k, v := range fields {
		msg[k] = v
	}
	f.write(msg)
}

func (f *fakeMPV) property(name string, data any) {
	f.event("property-change", map[string]any{"name": name, "data": data})
}

func (f *fakeMPV) setProp(name string, v any) {
	f.mu.Lock()
	f.props[name] = v
	f.mu.Unlock()
}

func (f *fakeMPV) sent() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

func (f *fakeMPV) hasCommand(args ...any) bool {
	for _, c := range f.sent() {
		if len(c) != len(args) {
			continue
		}
		match := true
		for i := range c {
			if c[i] != args[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type states struct {
	mu   sync.Mutex
	seen []engine.State
	time int
}

func (s *states) StateChanged(st engine.State) {
	s.mu.Lock()
	s.seen = append(s.seen, st)
	s.mu.Unlock()
}
func (s *states) TimeChanged() {
	s.mu.Lock()
	s.time++
	s.mu.Unlock()
}
func (s *states) RecordingStarted()         {}
func (s *states) RecordingStopped(_ string) {}

func (s *states) get() []engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.State(nil), s.seen...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPlayer(t *testing.T) (*fakeMPV, *Player, *states) {
	t.Helper()
	f, conn := newFakeMPV(t)
	p, err := newPlayer(conn, nil, testLogger())
	require.NoError(t, err)
	st := &states{}
	p.SetDelegate(st)
	t.Cleanup(func() { _ = p.Release() })
	return f, p, st
}

func TestTranslateOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []string
		want []property
	}{
		{
			name: "baseline",
			want: []property{{"hwdec", "no"}, {"loop-file", "no"}},
		},
		{
			name: "decoding",
			opts: engine.HWAccelDecoding.Directives(),
			want: []property{{"hwdec", "auto-safe"}, {"loop-file", "no"}},
		},
		{
			name: "disabled after loop",
			opts: []string{"--loop", "--codec=avcodec"},
			want: []property{{"hwdec", "no"}, {"loop-file", "inf"}},
		},
		{
			name: "last loop wins and passthrough",
			opts: []string{"--loop", ":no-loop", "--network-caching=1500", "--sub-font-size=40"},
			want: []property{
				{"hwdec", "no"}, {"loop-file", "no"},
				{"cache-secs", "1.5"}, {"sub-font-size", "40"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateOptions(tt.opts))
		})
	}
}

func TestProcessArgs(t *testing.T) {
	args := processArgs("/tmp/s.sock", []string{"--vo=null"})
	assert.Contains(t, args, "--idle=yes")
	assert.Contains(t, args, "--input-ipc-server=/tmp/s.sock")
	assert.Equal(t, "--vo=null", args[len(args)-1])
}

func TestParseTrackList(t *testing.T) {
	data := []byte(`[
		{"id": 1, "type": "video", "selected": true},
		{"id": 1, "type": "audio", "lang": "eng", "selected": true},
		{"id": 2, "type": "audio", "title": "Commentary", "lang": "eng"},
		{"id": 1, "type": "sub", "title": "Forced"}
	]`)
	list, err := parseTrackList(data)
	require.NoError(t, err)

	audio := toEngineTracks(tracksOf(list, engine.TrackAudio))
	require.Len(t, audio, 2)
	assert.Equal(t, "Track 1 - [eng]", audio[0].Name)
	assert.Equal(t, "Commentary - [eng]", audio[1].Name)
	assert.True(t, audio[0].Selected)

	subs := toEngineTracks(tracksOf(list, engine.TrackSubtitle))
	require.Len(t, subs, 1)
	assert.Equal(t, "Forced", subs[0].Name)

	empty, err := parseTrackList([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIPC_call_and_error(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	events := make(chan ipcMessage, 1)
	c := newIPC(client, testLogger(), func(m ipcMessage) { events <- m })
	defer c.Close()

	go func() {
		sc := bufio.NewScanner(server)
		for sc.Scan() {
			var req ipcRequest
			_ = json.Unmarshal(sc.Bytes(), &req)
			_, _ = server.Write([]byte(`{"event":"idle"}` + "\n"))
			if req.Command[0] == "bad" {
				b, _ := json.Marshal(map[string]any{"request_id": req.RequestID, "error": "invalid parameter"})
				_, _ = server.Write(append(b, '\n'))
				continue
			}
			b, _ := json.Marshal(map[string]any{"request_id": req.RequestID, "error": "success", "data": 42})
			_, _ = server.Write(append(b, '\n'))
		}
	}()

	data, err := c.Call("get_property", "volume")
	require.NoError(t, err)
	assert.JSONEq(t, "42", string(data))
	assert.Equal(t, "idle", (<-events).Event)

	_, err = c.Call("bad")
	assert.ErrorIs(t, err, errCommand)
}

func TestPlayer_observes_properties(t *testing.T) {
	f, _, _ := newTestPlayer(t)
	for id, name := range observed {
		assert.True(t, f.hasCommand("observe_property", float64(id), name), name)
	}
}

func TestPlayer_events_map_to_states(t *testing.T) {
	f, p, st := newTestPlayer(t)
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///clip.mp4", Options: []string{"--codec=all"}}))
	require.NoError(t, p.Play())

	assert.True(t, f.hasCommand("set_property", "hwdec", "auto-safe"))
	assert.True(t, f.hasCommand("loadfile", "file:///clip.mp4", "replace"))

	f.event("start-file", nil)
	f.property("duration", 60.5)
	f.event("file-loaded", nil)
	f.property("time-pos", 1.25)
	f.property("pause", true)
	f.property("pause", false)
	f.property("paused-for-cache", true)
	f.event("end-file", map[string]any{"reason": "eof"})

	want := []engine.State{
		engine.StateOpening, engine.StatePlaying, engine.StatePaused, engine.StatePlaying,
		engine.StateBuffering, engine.StateStopping, engine.StateStopped,
	}
	assert.Eventually(t, func() bool {
		p.callbacks.Flush()
		return len(st.get()) == len(want)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, want, st.get())
	assert.Equal(t, int64(60500), p.Length())
}

func TestPlayer_prepare_is_silent(t *testing.T) {
	f, p, st := newTestPlayer(t)
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///clip.mp4"}))
	require.NoError(t, p.Prepare())
	assert.True(t, f.hasCommand("set_property", "pause", true))

	f.event("start-file", nil)
	f.event("file-loaded", nil)
	f.property("pause", true)

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.loaded
	}, time.Second, 5*time.Millisecond)
	p.callbacks.Flush()
	assert.Empty(t, st.get())
	assert.False(t, p.IsPlaying())
}

func waitLoaded(t *testing.T, p *Player) {
	t.Helper()
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.loaded
	}, time.Second, 5*time.Millisecond)
}

func waitStates(t *testing.T, p *Player, st *states, want ...engine.State) {
	t.Helper()
	assert.Eventually(t, func() bool {
		p.callbacks.Flush()
		return len(st.get()) >= len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, st.get())
}

func prepared(t *testing.T) (*fakeMPV, *Player, *states) {
	t.Helper()
	f, p, st := newTestPlayer(t)
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///clip.mp4"}))
	require.NoError(t, p.Prepare())

	f.event("start-file", nil)
	f.property("pause", true)
	f.event("file-loaded", nil)
	f.event("playback-restart", nil)
	waitLoaded(t, p)
	return f, p, st
}

func TestPlayer_prepare_then_play(t *testing.T) {
	f, p, st := prepared(t)

	require.NoError(t, p.Play())
	assert.True(t, f.hasCommand("set_property", "pause", false))
	f.property("pause", false)
	waitStates(t, p, st, engine.StatePlaying)
	assert.True(t, p.IsPlaying())

	require.NoError(t, p.Pause())
	f.property("pause", true)
	waitStates(t, p, st, engine.StatePlaying, engine.StatePaused)
	assert.False(t, p.IsPlaying())
}

func TestPlayer_prepare_then_pause(t *testing.T) {
	f, p, st := prepared(t)

	require.NoError(t, p.Pause())
	f.property("pause", true)
	p.callbacks.Flush()
	assert.Empty(t, st.get())
	assert.Equal(t, engine.StateStopped, p.State())

	require.NoError(t, p.Play())
	f.property("pause", false)
	waitStates(t, p, st, engine.StatePlaying)
}

func TestPlayer_set_looping(t *testing.T) {
	f, p, _ := newTestPlayer(t)
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///clip.mp4"}))
	require.NoError(t, p.Play())

	require.NoError(t, p.SetLooping(true))
	assert.True(t, f.hasCommand("set_property", "loop-file", "inf"))
	require.NoError(t, p.SetLooping(false))
	assert.True(t, f.hasCommand("set_property", "loop-file", "no"))

	require.NoError(t, p.Release())
	assert.ErrorIs(t, p.SetLooping(true), engine.ErrReleased)
}

func TestPlayer_options_reset_between_loads(t *testing.T) {
	f, p, _ := newTestPlayer(t)
	f.setProp("start", "none")
	f.setProp("sub-font-size", 55)

	require.NoError(t, p.SetMedia(&engine.Media{
		MRL:     "file:///a.mp4",
		Options: []string{"--start-time=30", "--sub-font-size=60"},
	}))
	require.NoError(t, p.Play())
	assert.True(t, f.hasCommand("set_property", "start", "30"))
	assert.True(t, f.hasCommand("set_property", "sub-font-size", "60"))

	mark := len(f.sent())
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///b.mp4"}))
	require.NoError(t, p.Play())

	second := f.sent()[mark:]
	index := func(args ...any) int {
		for i, c := range second {
			if len(c) == len(args) && assert.ObjectsAreEqual(c, args) {
				return i
			}
		}
		return -1
	}
	load := index("loadfile", "file:///b.mp4", "replace")
	require.GreaterOrEqual(t, load, 0)
	for _, reset := range [][]any{
		{"set_property", "start", "none"},
		{"set_property", "sub-font-size", float64(55)},
	} {
		i := index(reset...)
		assert.GreaterOrEqual(t, i, 0, "%v", reset)
		assert.Less(t, i, load, "%v sent before loadfile", reset)
	}

	// a third load without options does not reset again
	mark = len(f.sent())
	require.NoError(t, p.SetMedia(&engine.Media{MRL: "file:///c.mp4"}))
	require.NoError(t, p.Play())
	for _, c := range f.sent()[mark:] {
		assert.False(t, len(c) > 1 && c[0] == "set_property" && c[1] == "start", "%v", c)
	}
}

func TestPlayer_select_track(t *testing.T) {
	f, p, _ := newTestPlayer(t)
	f.setProp("track-list", []map[string]any{
		{"id": 1, "type": "audio", "selected": true},
		{"id": 7, "type": "audio"},
	})

	require.NoError(t, p.SelectTrack(engine.TrackAudio, 1))
	assert.True(t, f.hasCommand("set_property", "aid", float64(7)))

	require.NoError(t, p.SelectTrack(engine.TrackSubtitle, -1))
	assert.True(t, f.hasCommand("set_property", "sid", "no"))

	assert.ErrorIs(t, p.SelectTrack(engine.TrackAudio, 2), engine.ErrNoSuchTrack)
	assert.ErrorIs(t, p.SetDelay(engine.TrackVideo, 100), engine.ErrUnsupported)
}

func TestPlayer_scale_and_renderer(t *testing.T) {
	f, p, _ := newTestPlayer(t)

	require.NoError(t, p.SetScale(2))
	assert.True(t, f.hasCommand("set_property", "video-zoom", float64(1)))
	assert.Equal(t, 2.0, p.Scale())

	assert.ErrorIs(t, p.SetRenderer(&engine.RendererItem{Name: "tv"}), engine.ErrUnsupported)
	assert.NoError(t, p.SetRenderer(nil))
}
