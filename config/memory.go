package config

type MemoryCfg struct {
	// CostLimitBytes bounds the summary cost of resident images.
	// Cost of an image is the size of its JPEG encoding, not its bitmap footprint.
	CostLimitBytes int64 `yaml:"cost_limit"`

	// Shards is the number of independently locked segments.
	// Rounded up to a power of two during AdjustConfig.
	Shards int `yaml:"shards"`
}
