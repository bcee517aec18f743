package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("PB_TEST_DURATION", "1500ms")
	if got := GetEnvDuration("PB_TEST_DURATION", time.Second); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got)
	}

	t.Setenv("PB_TEST_DURATION", "7")
	if got := GetEnvDuration("PB_TEST_DURATION", time.Second); got != 7*time.Second {
		t.Errorf("bare integer should be seconds, got %v", got)
	}

	t.Setenv("PB_TEST_DURATION", "soon")
	if got := GetEnvDuration("PB_TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("invalid value should fall back, got %v", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("PB_TEST_BOOL", "true")
	if !GetEnvBool("PB_TEST_BOOL", false) {
		t.Error("expected true")
	}
	t.Setenv("PB_TEST_BOOL", "maybe")
	if GetEnvBool("PB_TEST_BOOL", false) {
		t.Error("invalid value should fall back to false")
	}
}

func TestFromEnv_defaults(t *testing.T) {
	t.Setenv("ENGINE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("THUMBNAIL_FORMAT", "JPEG")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if s.Engine.Name != "mpv" {
		t.Errorf("expected default engine mpv, got %q", s.Engine.Name)
	}
	if s.ThumbnailFormat != "jpeg" {
		t.Errorf("format should be lower-cased, got %q", s.ThumbnailFormat)
	}
	if s.ThumbnailTimeout != 10*time.Second {
		t.Errorf("expected 10s thumbnail timeout, got %v", s.ThumbnailTimeout)
	}
}

func TestFromEnv_yaml_overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playerbridge.yaml")
	body := "engine:\n  mpv_args:\n    - --vo=null\n  renderer_services:\n    - Bonjour_renderer\n  scan_interval: 2s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MPV_PATH", "/opt/mpv")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(s.Engine.MPVArgs) != 1 || s.Engine.MPVArgs[0] != "--vo=null" {
		t.Errorf("unexpected mpv args %v", s.Engine.MPVArgs)
	}
	if s.Engine.ScanInterval != 2*time.Second {
		t.Errorf("expected scan interval 2s, got %v", s.Engine.ScanInterval)
	}
	if s.Engine.MPVPath != "/opt/mpv" {
		t.Errorf("env value not in YAML should survive, got %q", s.Engine.MPVPath)
	}
}

func TestLoadYAML_missing_file(t *testing.T) {
	var e Engine
	if err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"), &e); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
