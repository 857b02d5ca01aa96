package docconv

import (
	"context"
	"errors"
)

// ErrClass classifies a conversion failure. Classes drive fallback
// policy: engine_unavailable and processing advance to the next
// variant, unknown_format and unsupported_format are final for the
// document, cancelled reflects a caller that gave up.
type ErrClass string

const (
	ErrClassUnknownFormat     ErrClass = "unknown_format"
	ErrClassUnsupportedFormat ErrClass = "unsupported_format"
	ErrClassEngineUnavailable ErrClass = "engine_unavailable"
	ErrClassProcessing        ErrClass = "processing"
	ErrClassCancelled         ErrClass = "cancelled"
)

var (
	// ErrUnknownFormat means the file extension is not recognized at all.
	ErrUnknownFormat = errors.New("unknown document format")

	// ErrUnsupportedFormat means the extension is recognized but the
	// content failed signature validation (truncated or corrupt file).
	ErrUnsupportedFormat = errors.New("unsupported or corrupt document")

	// ErrEngineUnavailable means the inference engine is down or failed
	// transiently. Triggers fallback, never surfaces directly unless all
	// fallbacks also fail.
	ErrEngineUnavailable = errors.New("inference engine unavailable")
)

// Classify maps an error to its ErrClass. Context cancellation and
// deadline expiry map to cancelled; engine outages to
// engine_unavailable; everything else is a processing fault.
func Classify(err error) ErrClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownFormat):
		return ErrClassUnknownFormat
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrClassUnsupportedFormat
	case errors.Is(err, ErrEngineUnavailable):
		return ErrClassEngineUnavailable
	case isContextErr(err):
		return ErrClassCancelled
	default:
		return ErrClassProcessing
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
