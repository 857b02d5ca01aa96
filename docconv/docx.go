package docconv

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DocxConverterName identifies the DOCX-specific fallback variant.
const DocxConverterName = "docx-fallback"

// maxXMLDepth bounds XML nesting while walking package parts. Defense
// against billion-laughs style inputs.
const maxXMLDepth = 256

// DocxConverter parses the OOXML package directly: word/document.xml
// for content, docProps/core.xml for metadata, the relationship part
// for hyperlink targets.
type DocxConverter struct {
	logger *slog.Logger
}

func NewDocxConverter(logger *slog.Logger) *DocxConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocxConverter{logger: logger}
}

func (c *DocxConverter) Name() string { return DocxConverterName }

func (c *DocxConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	r, err := zip.OpenReader(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("open zip: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	defer r.Close()

	rels := map[string]string{}
	if opts.ExtractHyperlinks {
		rels = docxRelationships(&r.Reader)
	}

	md, links, convErr := c.renderDocument(ctx, &r.Reader, rels, opts)
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
		Hyperlinks:    links,
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = docxCoreProperties(&r.Reader)
		res.Metadata.WordCount = countWords(md)
	}
	return res
}

// renderDocument walks word/document.xml and emits markdown. The
// cancellation checkpoint is the paragraph boundary.
func (c *DocxConverter) renderDocument(ctx context.Context, zr *zip.Reader, rels map[string]string, opts Options) (string, []Hyperlink, error) {
	part := findZipMember(zr, "word/document.xml")
	if part == nil {
		return "", nil, fmt.Errorf("word/document.xml not found: %w", ErrUnsupportedFormat)
	}
	rc, err := part.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)

	var sb strings.Builder
	var links []Hyperlink
	var current strings.Builder
	var inParagraph, inTable bool
	var paragraphStyle, hyperlinkID string
	var hyperlinkText strings.Builder
	var tableRows [][]string
	var tableRow []string
	var cellText strings.Builder
	depth := 0

	flushParagraph := func() error {
		defer current.Reset()
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(current.String())
		if text == "" {
			return nil
		}
		if level := docxHeadingLevel(paragraphStyle); level > 0 {
			writeHeading(&sb, level, text)
		} else {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
		return nil
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("document.xml: %w: %v", ErrUnsupportedFormat, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return "", nil, fmt.Errorf("document.xml: nesting depth exceeds %d: %w", maxXMLDepth, ErrUnsupportedFormat)
			}
			switch t.Name.Local {
			case "tbl":
				inTable = true
				tableRows = nil
			case "tr":
				tableRow = nil
			case "tc":
				cellText.Reset()
			case "p":
				if !inTable {
					inParagraph = true
					current.Reset()
					paragraphStyle = ""
				}
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			case "hyperlink":
				hyperlinkID = ""
				hyperlinkText.Reset()
				for _, attr := range t.Attr {
					if attr.Name.Local == "id" {
						hyperlinkID = attr.Value
					}
				}
			}

		case xml.CharData:
			if inTable {
				cellText.Write(t)
			} else if inParagraph {
				current.Write(t)
				if hyperlinkID != "" {
					hyperlinkText.Write(t)
				}
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tbl":
				inTable = false
				writeTable(&sb, tableRows)
			case "tr":
				if len(tableRow) > 0 {
					tableRows = append(tableRows, tableRow)
				}
			case "tc":
				tableRow = append(tableRow, strings.TrimSpace(cellText.String()))
			case "p":
				if inParagraph && !inTable {
					inParagraph = false
					if err := flushParagraph(); err != nil {
						return "", nil, err
					}
				}
			case "hyperlink":
				if hyperlinkID != "" {
					if url, ok := rels[hyperlinkID]; ok {
						links = append(links, Hyperlink{URL: url, Text: strings.TrimSpace(hyperlinkText.String())})
					}
					hyperlinkID = ""
				}
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n", links, nil
}

// docxHeadingLevel maps a paragraph style to a heading level, 0 for
// body text. Handles localized style prefixes the same way Word does.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

// docxRelationships reads word/_rels/document.xml.rels and returns the
// rId → external-target mapping used by hyperlink elements.
func docxRelationships(zr *zip.Reader) map[string]string {
	rels := map[string]string{}
	part := findZipMember(zr, "word/_rels/document.xml.rels")
	if part == nil {
		return rels
	}
	rc, err := part.Open()
	if err != nil {
		return rels
	}
	defer rc.Close()

	var doc struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Type   string `xml:"Type,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return rels
	}
	for _, rel := range doc.Relationships {
		if strings.HasSuffix(rel.Type, "/hyperlink") {
			rels[rel.ID] = rel.Target
		}
	}
	return rels
}

// docxCoreProperties reads docProps/core.xml (Dublin Core metadata).
func docxCoreProperties(zr *zip.Reader) Metadata {
	var md Metadata
	part := findZipMember(zr, "docProps/core.xml")
	if part == nil {
		return md
	}
	rc, err := part.Open()
	if err != nil {
		return md
	}
	defer rc.Close()

	var props struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Subject  string `xml:"subject"`
		Created  string `xml:"created"`
		Modified string `xml:"modified"`
	}
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return md
	}
	md.Title = strings.TrimSpace(props.Title)
	md.Author = strings.TrimSpace(props.Creator)
	md.Subject = strings.TrimSpace(props.Subject)
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		md.CreationDate = t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		md.ModificationDate = t
	}
	return md
}

// findZipMember returns the named archive member or nil.
func findZipMember(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
