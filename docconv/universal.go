package docconv

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// UniversalConverterName identifies the last-resort variant.
const UniversalConverterName = "universal-fallback"

// UniversalConverter performs naive structural recovery with no layout
// understanding. It is the only variant that never fails for a
// recognized format: when nothing readable is found it still returns a
// stub document with a warning, so a batch entry always has output.
type UniversalConverter struct {
	logger *slog.Logger
}

func NewUniversalConverter(logger *slog.Logger) *UniversalConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &UniversalConverter{logger: logger}
}

func (c *UniversalConverter) Name() string { return UniversalConverterName }

func (c *UniversalConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	if cerr := ctx.Err(); cerr != nil {
		res := failure(c.Name(), ErrClassCancelled, cerr.Error())
		res.Duration = time.Since(start)
		return res
	}

	var text string
	var warnings []string

	switch doc.Format {
	case FormatPDF:
		text = pdfPlainText(doc.Path)
	case FormatDocx:
		text = zipTextNodes(doc.Path, wtRunRe)
	case FormatPptx:
		text = zipTextNodes(doc.Path, atRunRe)
	case FormatXlsx:
		text = zipTextNodes(doc.Path, sharedStringRe)
	case FormatODT:
		text = zipAllText(doc.Path, "content.xml")
	case FormatHTML:
		text = stripTags(readUTF8(doc.Path))
	default:
		text = readUTF8(doc.Path)
	}

	text = collapseWhitespace(text)
	if text == "" {
		warnings = append(warnings, "no readable content found; emitting stub document")
		text = "No readable content found."
	}

	var sb strings.Builder
	writeHeading(&sb, 1, baseTitle(doc.Path))
	sb.WriteString(text)
	sb.WriteByte('\n')

	res := Result{
		Success:       true,
		Markdown:      sb.String(),
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
		Warnings:      warnings,
	}
	if opts.ExtractMetadata {
		res.Metadata = Metadata{WordCount: countWords(text)}
	}
	return res
}

// baseTitle derives a heading from the file name.
func baseTitle(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		return "Document"
	}
	return base
}

// pdfPlainText recovers the PDF text layer without positioning.
func pdfPlainText(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	text, err := func() (s string, err error) {
		// The reader panics on some malformed files; the universal
		// variant must survive anything.
		defer func() {
			if r := recover(); r != nil {
				s, err = "", nil
			}
		}()
		r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		for i := 1; i <= r.NumPage(); i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			buf.WriteString(pageText)
			buf.WriteByte('\n')
		}
		return buf.String(), nil
	}()
	if err != nil {
		return ""
	}
	return text
}

// Text-run patterns for raw OOXML scraping. Attribute-tolerant on
// purpose: real-world parts carry xml:space and revision attributes.
var (
	wtRunRe        = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	atRunRe        = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	sharedStringRe = regexp.MustCompile(`<t[^>]*>([^<]*)</t>`)
)

// zipTextNodes scrapes matching text runs from every XML member of the
// archive.
func zipTextNodes(path string, re *regexp.Regexp) string {
	r, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer r.Close()

	var sb strings.Builder
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(rc)
		rc.Close()
		for _, m := range re.FindAllSubmatch(buf.Bytes(), -1) {
			if t := strings.TrimSpace(string(m[1])); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(xmlUnescape(t))
			}
		}
	}
	return sb.String()
}

// zipAllText strips tags from one archive member.
func zipAllText(path, member string) string {
	r, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer r.Close()

	f := findZipMember(&r.Reader, member)
	if f == nil {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(rc)
	return stripTags(buf.String())
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return xmlUnescape(tagRe.ReplaceAllString(s, " "))
}

func xmlUnescape(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return replacer.Replace(s)
}

func readUTF8(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return ""
	}
	return string(data)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
