package config

// Cache groups configuration of all image cache subsystems.
// Optional components are disabled by setting their section to nil.
type Cache struct {
	// Memory configures the in-process tier of decoded images.
	Memory MemoryCfg `yaml:"memory"`

	// Disk configures the persistent tier of encoded images.
	Disk DiskCfg `yaml:"disk"`

	// Transform configures how images are prepared before storage.
	Transform TransformCfg `yaml:"transform"`

	// Loader configures network downloads.
	Loader LoaderCfg `yaml:"loader"`

	// Pressure configures the system memory watcher.
	// If nil, memory-pressure signals only come from explicit notifications.
	Pressure *PressureCfg `yaml:"pressure"`

	// Telemetry configures periodic stat logs.
	// If nil, no stat logs are written.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}
