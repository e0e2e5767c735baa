package config

type TransformCfg struct {
	// MaxDimension is the largest width or height an image is stored with.
	// Bigger images are downscaled preserving the aspect ratio.
	MaxDimension int `yaml:"max_dimension"`

	// CostQuality is the JPEG quality used to estimate the memory cost of an image.
	CostQuality int `yaml:"cost_quality"`

	// MaxPixels caps width*height of an image accepted for decoding.
	// Headers announcing more pixels are rejected before any pixel buffer is allocated.
	MaxPixels int64 `yaml:"max_pixels"`
}
