package docconv

import "time"

// Options configures a conversion. Passed by value and never mutated
// after construction.
//
// Timeout is the caller's soft deadline for the whole document: when it
// expires the running variant is cancelled and the chain advances to
// the next one.
type Options struct {
	ExtractImages     bool          `json:"extract_images" yaml:"extract_images"`
	ExtractMetadata   bool          `json:"extract_metadata" yaml:"extract_metadata"`
	ExtractHyperlinks bool          `json:"extract_hyperlinks" yaml:"extract_hyperlinks"`
	MaxImageSize      int64         `json:"max_image_size" yaml:"max_image_size"`
	ImageFormat       string        `json:"image_format" yaml:"image_format"`
	QualityThreshold  float64       `json:"quality_threshold" yaml:"quality_threshold"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultOptions returns the standard conversion options.
func DefaultOptions() Options {
	return Options{
		ExtractImages:     true,
		ExtractMetadata:   true,
		ExtractHyperlinks: true,
		MaxImageSize:      5 * 1024 * 1024,
		ImageFormat:       "png",
		QualityThreshold:  0.7,
		Timeout:           5 * time.Minute,
	}
}

// normalized fills zero fields with defaults without touching the
// caller's copy.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxImageSize <= 0 {
		o.MaxImageSize = def.MaxImageSize
	}
	if o.ImageFormat == "" {
		o.ImageFormat = def.ImageFormat
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = def.QualityThreshold
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	return o
}
