package config

import "time"

type PressureCfg struct {
	// Interval defines how often system memory usage is sampled.
	Interval time.Duration `yaml:"interval"`

	// UsedPercent is the system memory usage (0..100) at which a pressure signal is raised.
	// The signal fires once per crossing, it is re-armed when usage drops below the threshold.
	UsedPercent float64 `yaml:"used_percent"`
}

func (cfg *PressureCfg) Enabled() bool {
	return cfg != nil
}

type TelemetryCfg struct {
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}
