package config

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultMemoryCostLimit   int64 = 100 << 20
	DefaultMemoryShards            = 16
	DefaultDiskMaxAge              = 7 * 24 * time.Hour
	DefaultDiskMaxSize       int64 = 200 << 20
	DefaultDiskQuality             = 80
	DefaultRemovalsPerSec          = 1000
	DefaultMaxDimension            = 400
	DefaultCostQuality             = 70
	DefaultMaxPixels         int64 = 50_000_000
	DefaultMaxConnections          = 4
	DefaultRequestTimeout          = 15 * time.Second
	DefaultResourceTimeout         = 30 * time.Second
	DefaultPressureInterval        = 5 * time.Second
	DefaultPressureUsed            = 90.0
	DefaultTelemetryInterval       = 5 * time.Second
)

// Default returns an adjusted config with every optional section disabled.
func Default() *Cache {
	cfg := &Cache{}
	cfg.AdjustConfig()
	return cfg
}

// AdjustConfig fills zero values with defaults and normalizes derived fields.
func (cfg *Cache) AdjustConfig() {
	if cfg.Memory.CostLimitBytes == 0 {
		cfg.Memory.CostLimitBytes = DefaultMemoryCostLimit
	}
	if cfg.Memory.Shards <= 0 {
		cfg.Memory.Shards = DefaultMemoryShards
	}
	cfg.Memory.Shards = nextPow2(cfg.Memory.Shards)

	if cfg.Disk.Dir == "" {
		cfg.Disk.Dir = DefaultDiskDir()
	}
	if cfg.Disk.MaxAge == 0 {
		cfg.Disk.MaxAge = DefaultDiskMaxAge
	}
	if cfg.Disk.MaxSizeBytes == 0 {
		cfg.Disk.MaxSizeBytes = DefaultDiskMaxSize
	}
	if cfg.Disk.Quality == 0 {
		cfg.Disk.Quality = DefaultDiskQuality
	}
	if cfg.Disk.RemovalsPerSec == 0 {
		cfg.Disk.RemovalsPerSec = DefaultRemovalsPerSec
	}

	if cfg.Transform.MaxDimension == 0 {
		cfg.Transform.MaxDimension = DefaultMaxDimension
	}
	if cfg.Transform.CostQuality == 0 {
		cfg.Transform.CostQuality = DefaultCostQuality
	}
	if cfg.Transform.MaxPixels == 0 {
		cfg.Transform.MaxPixels = DefaultMaxPixels
	}

	if cfg.Loader.MaxConnections == 0 {
		cfg.Loader.MaxConnections = DefaultMaxConnections
	}
	if cfg.Loader.RequestTimeout == 0 {
		cfg.Loader.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Loader.ResourceTimeout == 0 {
		cfg.Loader.ResourceTimeout = DefaultResourceTimeout
	}
	if cfg.Loader.CachePolicy == "" {
		cfg.Loader.CachePolicy = CachePolicyReturnCacheElseLoad
	}

	if cfg.Pressure.Enabled() {
		if cfg.Pressure.Interval <= 0 {
			cfg.Pressure.Interval = DefaultPressureInterval
		}
		if cfg.Pressure.UsedPercent <= 0 {
			cfg.Pressure.UsedPercent = DefaultPressureUsed
		}
	}

	if cfg.Telemetry.Enabled() && cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = DefaultTelemetryInterval
	}
}

// Validate reports the first unusable value. It expects an adjusted config.
func (cfg *Cache) Validate() error {
	switch {
	case cfg.Memory.CostLimitBytes < 0:
		return errors.Wrapf(ErrInvalid, "memory.cost_limit must not be negative, got %d", cfg.Memory.CostLimitBytes)
	case cfg.Disk.MaxAge < 0:
		return errors.Wrapf(ErrInvalid, "disk.max_age must not be negative, got %s", cfg.Disk.MaxAge)
	case cfg.Disk.MaxSizeBytes < 0:
		return errors.Wrapf(ErrInvalid, "disk.max_size must not be negative, got %d", cfg.Disk.MaxSizeBytes)
	case cfg.Disk.SweepInterval < 0:
		return errors.Wrapf(ErrInvalid, "disk.sweep_interval must not be negative, got %s", cfg.Disk.SweepInterval)
	case cfg.Disk.RemovalsPerSec < 0:
		return errors.Wrapf(ErrInvalid, "disk.removals_per_sec must not be negative, got %d", cfg.Disk.RemovalsPerSec)
	case !isQuality(cfg.Disk.Quality):
		return errors.Wrapf(ErrInvalid, "disk.quality must be within 1..100, got %d", cfg.Disk.Quality)
	case !isQuality(cfg.Transform.CostQuality):
		return errors.Wrapf(ErrInvalid, "transform.cost_quality must be within 1..100, got %d", cfg.Transform.CostQuality)
	case cfg.Transform.MaxDimension < 0:
		return errors.Wrapf(ErrInvalid, "transform.max_dimension must not be negative, got %d", cfg.Transform.MaxDimension)
	case cfg.Transform.MaxPixels < 0:
		return errors.Wrapf(ErrInvalid, "transform.max_pixels must not be negative, got %d", cfg.Transform.MaxPixels)
	case cfg.Loader.MaxConnections < 0:
		return errors.Wrapf(ErrInvalid, "loader.max_connections must not be negative, got %d", cfg.Loader.MaxConnections)
	case cfg.Loader.RequestTimeout < 0 || cfg.Loader.ResourceTimeout < 0:
		return errors.Wrap(ErrInvalid, "loader timeouts must not be negative")
	}

	switch cfg.Loader.CachePolicy {
	case CachePolicyReturnCacheElseLoad, CachePolicyReload:
	default:
		return errors.Wrapf(ErrInvalid, "loader.cache_policy %q is not supported", cfg.Loader.CachePolicy)
	}

	if cfg.Pressure.Enabled() && cfg.Pressure.UsedPercent > 100 {
		return errors.Wrapf(ErrInvalid, "pressure.used_percent must be within 0..100, got %.1f", cfg.Pressure.UsedPercent)
	}
	return nil
}

// Sanitize resets every value Validate would reject to its default.
// It returns the validation error of the values as they were, nil when all were usable.
func (cfg *Cache) Sanitize() error {
	err := cfg.Validate()
	if err == nil {
		return nil
	}

	if cfg.Memory.CostLimitBytes < 0 {
		cfg.Memory.CostLimitBytes = 0
	}
	if cfg.Disk.MaxAge < 0 {
		cfg.Disk.MaxAge = 0
	}
	if cfg.Disk.MaxSizeBytes < 0 {
		cfg.Disk.MaxSizeBytes = 0
	}
	if cfg.Disk.SweepInterval < 0 {
		cfg.Disk.SweepInterval = 0
	}
	if cfg.Disk.RemovalsPerSec < 0 {
		cfg.Disk.RemovalsPerSec = 0
	}
	if !isQuality(cfg.Disk.Quality) {
		cfg.Disk.Quality = 0
	}
	if !isQuality(cfg.Transform.CostQuality) {
		cfg.Transform.CostQuality = 0
	}
	if cfg.Transform.MaxDimension < 0 {
		cfg.Transform.MaxDimension = 0
	}
	if cfg.Transform.MaxPixels < 0 {
		cfg.Transform.MaxPixels = 0
	}
	if cfg.Loader.MaxConnections < 0 {
		cfg.Loader.MaxConnections = 0
	}
	if cfg.Loader.RequestTimeout < 0 {
		cfg.Loader.RequestTimeout = 0
	}
	if cfg.Loader.ResourceTimeout < 0 {
		cfg.Loader.ResourceTimeout = 0
	}
	switch cfg.Loader.CachePolicy {
	case CachePolicyReturnCacheElseLoad, CachePolicyReload:
	default:
		cfg.Loader.CachePolicy = ""
	}
	if cfg.Pressure.Enabled() && cfg.Pressure.UsedPercent > 100 {
		cfg.Pressure.UsedPercent = 0
	}

	cfg.AdjustConfig()
	return err
}

// LoadConfig reads a yaml file, fills defaults and validates the result.
func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "stat config path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config yaml file %s", path)
	}

	cfg := &Cache{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshal yaml from %s", path)
	}
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultDiskDir resolves <user cache dir>/ImageCache, falling back to the temp dir.
func DefaultDiskDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, DiskDirName)
}

func isQuality(q int) bool { return q >= 1 && q <= 100 }

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
