// Package docconv converts document files to markdown.
//
// Supported formats:
//   - .pdf   — PDF (pdfcpu content-stream extraction, plain-text recovery)
//   - .docx  — Microsoft Word (archive/zip → word/document.xml)
//   - .pptx  — Microsoft PowerPoint (archive/zip → ppt/slides/*.xml)
//   - .xlsx  — Microsoft Excel (excelize → markdown tables)
//   - .odt   — OpenDocument Text (archive/zip → content.xml)
//   - .html  — HTML (sanitized, rendered with html-to-markdown)
//   - .md    — Markdown (passthrough with normalization)
//   - .txt   — Plain text
//
// Each format has an ordered chain of converter variants: the AI-backed
// primary, an optional format-specific fallback, and a universal
// fallback that always yields some text for a recognized format.
package docconv

import "time"

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatPptx Format = "pptx"
	FormatXlsx Format = "xlsx"
	FormatODT  Format = "odt"
	FormatHTML Format = "html"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
)

// Document is a classified input file. Immutable once produced by the
// Sniffer.
type Document struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Size   int64  `json:"size"`
}

// Metadata holds document properties. Every field is optional; zero
// values mean the source format did not carry the property.
type Metadata struct {
	Title            string    `json:"title,omitempty"`
	Author           string    `json:"author,omitempty"`
	Subject          string    `json:"subject,omitempty"`
	CreationDate     time.Time `json:"creation_date,omitzero"`
	ModificationDate time.Time `json:"modification_date,omitzero"`
	PageCount        int       `json:"page_count,omitempty"`
	WordCount        int       `json:"word_count,omitempty"`
}

// ExtractedImage is an image pulled out of a document. Data is owned by
// the result until the packaging layer writes it out.
type ExtractedImage struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Page     int    `json:"page,omitempty"`
	Data     []byte `json:"-"`
}

// Hyperlink is a (url, anchor text) pair found in the document.
type Hyperlink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
	Page int    `json:"page,omitempty"`
}

// Result is the outcome of one converter variant run.
//
// Success implies Markdown is non-empty and ConverterUsed is set.
// A failed result carries an empty Markdown and an ErrClass.
type Result struct {
	Success       bool             `json:"success"`
	Markdown      string           `json:"markdown"`
	Metadata      Metadata         `json:"metadata"`
	Images        []ExtractedImage `json:"images,omitempty"`
	Hyperlinks    []Hyperlink      `json:"hyperlinks,omitempty"`
	ConverterUsed string           `json:"converter_used"`
	Duration      time.Duration    `json:"duration"`
	ErrClass      ErrClass         `json:"error_class,omitempty"`
	ErrMessage    string           `json:"error_message,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
}

// failure builds a failed Result for a variant.
func failure(variant string, class ErrClass, msg string) Result {
	return Result{
		Success:       false,
		ConverterUsed: variant,
		ErrClass:      class,
		ErrMessage:    msg,
	}
}
