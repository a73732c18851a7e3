package workload

import (
	"fmt"

	"github.com/medialab/jellyfin-operator/pkg/pebble"
)

const (
	// ServiceName is the Pebble service the operator manages.
	ServiceName = "jellyfin"

	// LayerLabel is the label the desired layer is submitted under.
	LayerLabel = "jellyfin"

	// DefaultDataDir is Jellyfin's configuration directory.
	DefaultDataDir = "/config"

	// DefaultCacheDir is Jellyfin's cache directory.
	DefaultCacheDir = "/cache"

	// DefaultFFmpegPath is the ffmpeg binary shipped in the Jellyfin image.
	DefaultFFmpegPath = "/usr/lib/jellyfin-ffmpeg/ffmpeg"

	jellyfinBinary = "/jellyfin/jellyfin"
)

// Config carries the few per-instance inputs of the desired layer. The
// zero value selects the stock Jellyfin image paths.
type Config struct {
	// DataDir overrides DefaultDataDir.
	DataDir string

	// CacheDir overrides DefaultCacheDir.
	CacheDir string

	// FFmpegPath overrides DefaultFFmpegPath.
	FFmpegPath string
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = DefaultFFmpegPath
	}
	return c
}

// DesiredLayer builds the declarative process layer for Jellyfin. It is
// recomputed from static definitions on every pass and immutable within
// one.
func DesiredLayer(cfg Config) *pebble.Layer {
	cfg = cfg.withDefaults()
	command := fmt.Sprintf("%s --datadir=%s --cachedir=%s --ffmpeg=%s",
		jellyfinBinary, cfg.DataDir, cfg.CacheDir, cfg.FFmpegPath)

	return &pebble.Layer{
		Summary:     "jellyfin layer",
		Description: "pebble config layer for jellyfin",
		Services: map[string]*pebble.Service{
			ServiceName: {
				Summary:  "jellyfin service",
				Override: pebble.OverrideReplace,
				Startup:  pebble.StartupEnabled,
				Command:  command,
			},
		},
	}
}
