package docconv

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ODTConverterName identifies the ODT-specific fallback variant.
const ODTConverterName = "odt-fallback"

// ODTConverter parses content.xml (headings, paragraphs, lists) and
// meta.xml from an OpenDocument Text archive.
type ODTConverter struct {
	logger *slog.Logger
}

func NewODTConverter(logger *slog.Logger) *ODTConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ODTConverter{logger: logger}
}

func (c *ODTConverter) Name() string { return ODTConverterName }

func (c *ODTConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	r, err := zip.OpenReader(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("open zip: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	defer r.Close()

	md, convErr := c.renderContent(ctx, &r.Reader)
	if convErr != nil {
		res := failure(c.Name(), Classify(convErr), convErr.Error())
		res.Duration = time.Since(start)
		return res
	}
	if strings.TrimSpace(md) == "" {
		res := failure(c.Name(), ErrClassProcessing, "document has no text content")
		res.Duration = time.Since(start)
		return res
	}

	res := Result{
		Success:       true,
		Markdown:      md,
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = odtMetadata(&r.Reader)
		res.Metadata.WordCount = countWords(md)
	}
	return res
}

func (c *ODTConverter) renderContent(ctx context.Context, zr *zip.Reader) (string, error) {
	part := findZipMember(zr, "content.xml")
	if part == nil {
		return "", fmt.Errorf("content.xml not found: %w", ErrUnsupportedFormat)
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open content.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)

	var sb strings.Builder
	var current strings.Builder
	var inHeading, inParagraph, inList bool
	headingLevel := 1
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("content.xml: %w: %v", ErrUnsupportedFormat, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return "", fmt.Errorf("content.xml: nesting depth exceeds %d: %w", maxXMLDepth, ErrUnsupportedFormat)
			}
			switch t.Name.Local {
			case "h":
				inHeading = true
				current.Reset()
				headingLevel = 1
				for _, attr := range t.Attr {
					if attr.Name.Local == "outline-level" {
						if n, err := strconv.Atoi(attr.Value); err == nil {
							headingLevel = n
						}
					}
				}
			case "p":
				inParagraph = true
				current.Reset()
			case "list":
				inList = true
			}

		case xml.CharData:
			if inHeading || inParagraph {
				current.Write(t)
			}

		case xml.EndElement:
			depth--
			switch {
			case t.Name.Local == "h" && inHeading:
				inHeading = false
				// Paragraph boundary doubles as the cancellation checkpoint.
				if cerr := ctx.Err(); cerr != nil {
					return "", cerr
				}
				if text := strings.TrimSpace(current.String()); text != "" {
					writeHeading(&sb, headingLevel, text)
				}
			case t.Name.Local == "p" && inParagraph:
				inParagraph = false
				if cerr := ctx.Err(); cerr != nil {
					return "", cerr
				}
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				if inList {
					sb.WriteString("- ")
					sb.WriteString(text)
					sb.WriteString("\n")
				} else {
					sb.WriteString(text)
					sb.WriteString("\n\n")
				}
			case t.Name.Local == "list":
				inList = false
				sb.WriteString("\n")
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

// odtMetadata reads meta.xml Dublin Core fields.
func odtMetadata(zr *zip.Reader) Metadata {
	var md Metadata
	part := findZipMember(zr, "meta.xml")
	if part == nil {
		return md
	}
	rc, err := part.Open()
	if err != nil {
		return md
	}
	defer rc.Close()

	var meta struct {
		Meta struct {
			Title    string `xml:"title"`
			Creator  string `xml:"creator"`
			Subject  string `xml:"subject"`
			Created  string `xml:"creation-date"`
			Modified string `xml:"date"`
		} `xml:"meta"`
	}
	if err := xml.NewDecoder(rc).Decode(&meta); err != nil {
		return md
	}
	md.Title = strings.TrimSpace(meta.Meta.Title)
	md.Author = strings.TrimSpace(meta.Meta.Creator)
	md.Subject = strings.TrimSpace(meta.Meta.Subject)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, meta.Meta.Created); err == nil {
			md.CreationDate = t
			break
		}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, meta.Meta.Modified); err == nil {
			md.ModificationDate = t
			break
		}
	}
	return md
}
