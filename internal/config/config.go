package config

import (
	"os"
	"strconv"
	"time"

	"go-medimage-pipeline/pkg/utils"
)

// Config carries every knob the pipeline needs, resolved once at
// startup and passed into constructors. Nothing reads ambient process
// state mid-call.
type Config struct {
	// Bucket is the object-store bucket holding raw and run artifacts.
	Bucket string `json:"bucket"`
	// Region is the bucket's region; empty keeps the SDK default chain.
	Region string `json:"region"`
	// DefaultRawKey is the dataset used when a request names no input.
	DefaultRawKey string `json:"default_raw_key"`
	// DBPath is the sqlite run index; empty disables local bookkeeping.
	DBPath string `json:"db_path"`
	// StorageTimeout bounds each individual gateway call.
	StorageTimeout time.Duration `json:"storage_timeout"`
	// PreviewMaxImages caps how many PNG previews one export writes.
	PreviewMaxImages int `json:"preview_max_images"`
	// SynthesisSeed seeds the twin generator when a request gives none.
	SynthesisSeed uint64 `json:"synthesis_seed"`
}

// Defaults applied when the environment sets nothing.
const (
	DefaultBucket        = "medimage-digitaltwin"
	DefaultRawKey        = "raw/chestmnist.npz"
	DefaultPreviewImages = 32
	DefaultSeed          = 1789
)

// Load resolves configuration from the environment with defaults.
func Load() Config {
	return Config{
		Bucket:           envOr("MS_BUCKET", DefaultBucket),
		Region:           os.Getenv("MS_REGION"),
		DefaultRawKey:    envOr("MS_RAW_KEY", DefaultRawKey),
		DBPath:           os.Getenv("MS_DB_PATH"),
		StorageTimeout:   utils.ParseDuration(os.Getenv("MS_STORAGE_TIMEOUT")),
		PreviewMaxImages: envInt("MS_PREVIEW_MAX", DefaultPreviewImages),
		SynthesisSeed:    DefaultSeed,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
