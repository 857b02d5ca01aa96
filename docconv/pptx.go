package docconv

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PptxConverterName identifies the PPTX-specific fallback variant.
const PptxConverterName = "pptx-fallback"

// PptxConverter reads ppt/slides/slideN.xml parts in slide order and
// emits one markdown section per slide.
type PptxConverter struct {
	logger *slog.Logger
}

func NewPptxConverter(logger *slog.Logger) *PptxConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PptxConverter{logger: logger}
}

func (c *PptxConverter) Name() string { return PptxConverterName }

func (c *PptxConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	r, err := zip.OpenReader(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("open zip: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	defer r.Close()

	slides := slideMembers(&r.Reader)
	if len(slides) == 0 {
		res := failure(c.Name(), ErrClassUnsupportedFormat, "no slides found in archive")
		res.Duration = time.Since(start)
		return res
	}

	var sb strings.Builder
	var title string
	for _, s := range slides {
		// Slide boundary is the cancellation checkpoint.
		if cerr := ctx.Err(); cerr != nil {
			res := failure(c.Name(), ErrClassCancelled, cerr.Error())
			res.Duration = time.Since(start)
			return res
		}

		paragraphs, err := slideParagraphs(s.file)
		if err != nil {
			c.logger.Debug("skipping unreadable slide", "slide", s.file.Name, "error", err)
			continue
		}
		if len(paragraphs) == 0 {
			continue
		}

		if title == "" {
			title = paragraphs[0]
		}
		writeHeading(&sb, 2, fmt.Sprintf("Slide %d", s.number))
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
	}

	if sb.Len() == 0 {
		res := failure(c.Name(), ErrClassProcessing, "presentation has no text content")
		res.Duration = time.Since(start)
		return res
	}

	res := Result{
		Success:       true,
		Markdown:      strings.TrimRight(sb.String(), "\n") + "\n",
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = docxCoreProperties(&r.Reader) // same docProps/core.xml part
		if res.Metadata.Title == "" {
			res.Metadata.Title = title
		}
		res.Metadata.PageCount = len(slides)
		res.Metadata.WordCount = countWords(res.Markdown)
	}
	return res
}

type slideMember struct {
	number int
	file   *zip.File
}

// slideMembers lists ppt/slides/slideN.xml parts ordered by N. Zip
// member order is not slide order.
func slideMembers(zr *zip.Reader) []slideMember {
	var slides []slideMember
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		slides = append(slides, slideMember{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })
	return slides
}

// slideParagraphs extracts the a:p paragraph texts from one slide,
// joining a:t runs within a paragraph.
func slideParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	var current strings.Builder
	var inText bool
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("slide XML nesting depth exceeds %d", maxXMLDepth)
			}
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		}
	}
	return paragraphs, nil
}
