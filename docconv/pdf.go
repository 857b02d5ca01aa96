package docconv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFConverterName identifies the PDF-specific fallback variant.
const PDFConverterName = "pdf-fallback"

// PDFConverter extracts text from a PDF's text-positioning streams with
// pdfcpu. Deterministic and layout-blind: one markdown section per
// page, metadata from the Info dictionary, plus extraction-quality
// warnings (low printable ratio, image-only pages).
type PDFConverter struct {
	logger *slog.Logger
}

func NewPDFConverter(logger *slog.Logger) *PDFConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFConverter{logger: logger}
}

func (c *PDFConverter) Name() string { return PDFConverterName }

func (c *PDFConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	f, err := os.Open(doc.Path)
	if err != nil {
		r := failure(c.Name(), ErrClassProcessing, fmt.Sprintf("open: %v", err))
		r.Duration = time.Since(start)
		return r
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		r := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("pdfcpu read: %v", err))
		r.Duration = time.Since(start)
		return r
	}

	var sb strings.Builder
	var allText strings.Builder
	totalChars := 0
	emptyPages := 0

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		// Page boundary is the cancellation checkpoint.
		if cerr := ctx.Err(); cerr != nil {
			r := failure(c.Name(), ErrClassCancelled, cerr.Error())
			r.Duration = time.Since(start)
			return r
		}

		pageText := extractPageText(pctx, pageNr)
		if pageText == "" {
			emptyPages++
			continue
		}
		totalChars += len([]rune(pageText))

		fmt.Fprintf(&sb, "## Page %d\n\n%s\n\n", pageNr, pageText)
		allText.WriteString(pageText)
		allText.WriteByte('\n')
	}

	if sb.Len() == 0 {
		r := failure(c.Name(), ErrClassProcessing, "no text content found in PDF")
		r.Duration = time.Since(start)
		return r
	}

	res := Result{
		Success:       true,
		Markdown:      strings.TrimRight(sb.String(), "\n") + "\n",
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
	}

	if opts.ExtractMetadata {
		res.Metadata = pdfMetadata(pctx)
		res.Metadata.PageCount = pctx.PageCount
		res.Metadata.WordCount = countWords(allText.String())
	}

	res.Warnings = pdfWarnings(pctx, allText.String(), totalChars, emptyPages)
	return res
}

// pdfMetadata pulls title/author/dates from the Info dictionary.
func pdfMetadata(pctx *model.Context) Metadata {
	// Info-dict fields live on the embedded XRefTable; CreationDate must
	// be qualified because Configuration carries a field of the same name.
	md := Metadata{
		Title:  strings.TrimSpace(pctx.Title),
		Author: strings.TrimSpace(pctx.Author),
	}
	if t, ok := parsePDFDate(pctx.XRefTable.CreationDate); ok {
		md.CreationDate = t
	}
	if t, ok := parsePDFDate(pctx.XRefTable.ModDate); ok {
		md.ModificationDate = t
	}
	return md
}

// parsePDFDate parses the D:YYYYMMDDHHmmSS form, tolerating truncation.
func parsePDFDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 8 {
		return time.Time{}, false
	}
	digits := s
	for i, r := range digits {
		if r < '0' || r > '9' {
			digits = digits[:i]
			break
		}
	}
	layouts := []string{"20060102150405", "200601021504", "2006010215", "20060102"}
	for _, layout := range layouts {
		if len(digits) == len(layout) {
			if t, err := time.Parse(layout, digits); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// pdfWarnings reports extraction-quality problems: pages with no text
// layer, garbage-heavy output, image-only documents.
func pdfWarnings(pctx *model.Context, text string, totalChars, emptyPages int) []string {
	var warnings []string

	var charsPerPage float64
	if pctx.PageCount > 0 {
		charsPerPage = float64(totalChars) / float64(pctx.PageCount)
	}
	hasImages := detectImageStreams(pctx)

	if charsPerPage < 50 && hasImages {
		warnings = append(warnings, "document appears to be scanned; text layer is nearly empty")
	}
	if ratio := printableRatio(text); ratio < 0.85 {
		warnings = append(warnings, fmt.Sprintf("low printable-character ratio %.2f; extraction may be garbled", ratio))
	}
	if emptyPages > 0 {
		warnings = append(warnings, fmt.Sprintf("%d page(s) produced no text", emptyPages))
	}
	return warnings
}

// extractPageText extracts text from a single page's content stream.
func extractPageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// detectImageStreams checks whether the PDF contains image XObjects.
func detectImageStreams(pctx *model.Context) bool {
	if pctx.Optimize != nil {
		for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range pctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// pdfStringRe matches PDF string literals in parentheses.
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream parses content-stream text operators (Tj, TJ,
// ', Td/TD, T*).
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return cleanPDFText(sb.String())
}

// decodePDFString handles the basic PDF escape sequences, including
// octal escapes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// cleanPDFText collapses whitespace and drops non-printable runes.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// printableRatio is the share of printable characters in text,
// excluding the Private Use Area and U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r >= 0xE000 && r <= 0xF8FF || r == 0xFFFD {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}
