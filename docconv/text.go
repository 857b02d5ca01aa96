package docconv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// TextConverterName identifies the markdown/plain-text variant.
const TextConverterName = "text-fallback"

// TextConverter handles .md and .txt. Markdown passes through with
// line-ending normalization; plain text is wrapped into paragraphs.
type TextConverter struct {
	logger *slog.Logger
}

func NewTextConverter(logger *slog.Logger) *TextConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextConverter{logger: logger}
}

func (c *TextConverter) Name() string { return TextConverterName }

func (c *TextConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassProcessing, fmt.Sprintf("read: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	if cerr := ctx.Err(); cerr != nil {
		res := failure(c.Name(), ErrClassCancelled, cerr.Error())
		res.Duration = time.Since(start)
		return res
	}
	if !utf8.Valid(data) {
		res := failure(c.Name(), ErrClassUnsupportedFormat, "file is not valid UTF-8 text")
		res.Duration = time.Since(start)
		return res
	}

	text := normalizeLineEndings(string(data))
	var md string
	if doc.Format == FormatMD {
		md = strings.TrimSpace(text)
	} else {
		md = plainToMarkdown(text)
	}
	if md == "" {
		res := failure(c.Name(), ErrClassProcessing, "file is empty")
		res.Duration = time.Since(start)
		return res
	}

	res := Result{
		Success:       true,
		Markdown:      md + "\n",
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = Metadata{
			Title:     firstHeadingOrLine(md),
			WordCount: countWords(md),
		}
	}
	return res
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// plainToMarkdown splits text into paragraphs on blank lines, joining
// wrapped lines within a paragraph.
func plainToMarkdown(text string) string {
	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		lines := strings.Fields(strings.ReplaceAll(para, "\n", " "))
		if len(lines) == 0 {
			continue
		}
		sb.WriteString(strings.Join(lines, " "))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// firstHeadingOrLine returns the first ATX heading text, or the first
// non-empty line truncated to 200 bytes.
func firstHeadingOrLine(md string) string {
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return trimmed
	}
	return ""
}
