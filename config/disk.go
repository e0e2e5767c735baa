package config

import "time"

// DiskDirName is the directory created under the user cache dir when Dir is empty.
const DiskDirName = "ImageCache"

type DiskCfg struct {
	// Dir is the flat directory holding one file per cached image.
	// Empty means <os.UserCacheDir()>/ImageCache.
	Dir string `yaml:"dir"`

	// MaxAge is the maximum age (by modification time) of a disk entry.
	// Older entries are removed by the sweeper.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxSizeBytes bounds the directory size. It is enforced by the sweeper only,
	// so the directory may temporarily grow past it between sweeps.
	// Zero disables size enforcement.
	MaxSizeBytes int64 `yaml:"max_size"`

	// Quality is the JPEG quality (1..100) used for disk encoding.
	Quality int `yaml:"quality"`

	// SweepInterval repeats the expiry sweep while the process lives.
	// Zero means the sweep runs once at startup only.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// RemovalsPerSec paces file removals of a single sweep.
	RemovalsPerSec int `yaml:"removals_per_sec"`
}
