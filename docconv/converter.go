package docconv

import (
	"context"
	"fmt"
	"log/slog"
)

// Converter is one conversion strategy. Implementations are safe for
// concurrent use on distinct documents; the only shared state is a
// read-only engine or config handle.
//
// Content problems never surface as a Go error — they are reported in
// the Result with Success=false and an ErrClass. A non-nil error means
// the caller violated the contract (nil document, bad output dir) and
// is fatal, never retried.
type Converter interface {
	// Name is the stable variant identifier recorded in results.
	Name() string

	// Convert turns doc into markdown, writing nothing to disk itself;
	// extracted image bytes travel in the Result. Cancellation is
	// observed at page/slide/paragraph boundaries.
	Convert(ctx context.Context, doc Document, opts Options) Result
}

// Variants builds the ordered converter chain for a format:
// AI primary, format-specific fallback where one exists, universal
// fallback last. The chain is fixed at construction — adding a format
// means adding a case here, not runtime registration.
func Variants(format Format, engine Engine, logger *slog.Logger) ([]Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var chain []Converter
	if engine != nil {
		chain = append(chain, NewAIConverter(engine, logger))
	}

	switch format {
	case FormatPDF:
		chain = append(chain, NewPDFConverter(logger))
	case FormatDocx:
		chain = append(chain, NewDocxConverter(logger))
	case FormatPptx:
		chain = append(chain, NewPptxConverter(logger))
	case FormatXlsx:
		chain = append(chain, NewXlsxConverter(logger))
	case FormatODT:
		chain = append(chain, NewODTConverter(logger))
	case FormatHTML:
		chain = append(chain, NewHTMLConverter(logger))
	case FormatMD, FormatTXT:
		chain = append(chain, NewTextConverter(logger))
	default:
		return nil, fmt.Errorf("no converter chain for format %q: %w", format, ErrUnknownFormat)
	}

	chain = append(chain, NewUniversalConverter(logger))
	return chain, nil
}
