package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "10s" or "1500ms". A bare integer is
// read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvBool returns fallback unless the variable holds a value accepted by
// strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// Engine holds the settings consumed by the media engine backends. It is the
// only part of the configuration that can also come from a YAML file.
type Engine struct {
	Name             string        `yaml:"name"`
	MPVPath          string        `yaml:"mpv_path"`
	MPVArgs          []string      `yaml:"mpv_args"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path"`
	RendererServices []string      `yaml:"renderer_services"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
}

// Settings is the full process configuration.
type Settings struct {
	Port             string
	LogLevel         string
	LogFormat        string
	AssetRoot        string
	WSOrigin         string
	ThumbnailTimeout time.Duration
	ThumbnailFormat  string
	Engine           Engine
}

// FromEnv builds Settings from environment variables and, when CONFIG_FILE is
// set, overlays the engine section of that YAML file.
func FromEnv() (Settings, error) {
	s := Settings{
		Port:             GetEnv("PORT", "8080"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "json"),
		AssetRoot:        GetEnv("ASSET_ROOT", "."),
		WSOrigin:         GetEnv("WS_ORIGIN", ""),
		ThumbnailTimeout: GetEnvDuration("THUMBNAIL_TIMEOUT", 10*time.Second),
		ThumbnailFormat:  strings.ToLower(GetEnv("THUMBNAIL_FORMAT", "png")),
		Engine: Engine{
			Name:         strings.ToLower(GetEnv("ENGINE", "mpv")),
			MPVPath:      GetEnv("MPV_PATH", "mpv"),
			FFmpegPath:   GetEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:  GetEnv("FFPROBE_PATH", "ffprobe"),
			ScanInterval: GetEnvDuration("RENDERER_SCAN_INTERVAL", 5*time.Second),
		},
	}

	if path := GetEnv("CONFIG_FILE", ""); path != "" {
		if err := LoadYAML(path, &s.Engine); err != nil {
			return s, err
		}
	}
	return s, nil
}

// LoadYAML decodes the "engine" section of the YAML file at path on top of
// the values already present in dst. A missing file is not an error.
func LoadYAML(path string, dst *Engine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var doc struct {
		Engine *Engine `yaml:"engine"`
	}
	doc.Engine = dst
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
