package docconv

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sniffLimit bounds how many leading bytes the sniffer reads. Large
// files are never loaded fully for classification.
const sniffLimit = 8192

// Sniffer classifies files into document formats. Read-only: it never
// modifies or fully loads the inspected file.
type Sniffer struct {
	MaxFileSize int64
}

// NewSniffer returns a Sniffer with the given size limit (0 means
// 100 MB, matching the pipeline default).
func NewSniffer(maxFileSize int64) *Sniffer {
	if maxFileSize <= 0 {
		maxFileSize = 100 * 1024 * 1024
	}
	return &Sniffer{MaxFileSize: maxFileSize}
}

// Classify determines the format of the file at path.
//
// The extension is the first hint, but the content signature takes
// precedence when the two disagree: a .docx that is actually a PDF
// classifies as PDF. ErrUnknownFormat is returned when neither the
// extension nor the content is recognized; ErrUnsupportedFormat when
// the extension is recognized but the content fails validation.
func (s *Sniffer) Classify(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > s.MaxFileSize {
		return Document{}, fmt.Errorf("%s: %d bytes exceeds limit %d: %w",
			path, info.Size(), s.MaxFileSize, ErrUnsupportedFormat)
	}

	extFormat, extKnown := formatByExtension(path)

	head, err := readHead(path, sniffLimit)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	if sig, ok := s.sniffContent(path, head); ok {
		// Content signature is authoritative, extension or not.
		return Document{Path: path, Format: sig, Size: info.Size()}, nil
	}

	if !extKnown {
		return Document{}, fmt.Errorf("%s: extension %q: %w",
			path, filepath.Ext(path), ErrUnknownFormat)
	}

	// Recognized extension, no (or failed) signature. Binary container
	// formats must validate; plain-text ones are accepted as-is.
	switch extFormat {
	case FormatPDF, FormatDocx, FormatPptx, FormatXlsx, FormatODT:
		return Document{}, fmt.Errorf("%s: content does not match %s signature: %w",
			path, extFormat, ErrUnsupportedFormat)
	default:
		return Document{Path: path, Format: extFormat, Size: info.Size()}, nil
	}
}

// formatByExtension maps a file extension to a Format.
func formatByExtension(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDocx, true
	case ".pptx":
		return FormatPptx, true
	case ".xlsx":
		return FormatXlsx, true
	case ".odt":
		return FormatODT, true
	case ".html", ".htm":
		return FormatHTML, true
	case ".md", ".markdown":
		return FormatMD, true
	case ".txt", ".text":
		return FormatTXT, true
	default:
		return "", false
	}
}

// sniffContent inspects leading bytes (and, for zip containers, the
// member list) to identify the format.
func (s *Sniffer) sniffContent(path string, head []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return FormatPDF, true
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return sniffZip(path)
	case looksLikeHTML(head):
		return FormatHTML, true
	}
	return "", false
}

// sniffZip opens the zip central directory and identifies the container
// by its well-known members. Invalid archives yield no format so the
// caller reports ErrUnsupportedFormat.
func sniffZip(path string) (Format, bool) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", false
	}
	defer r.Close()

	for _, f := range r.File {
		switch {
		case f.Name == "word/document.xml":
			return FormatDocx, true
		case f.Name == "xl/workbook.xml":
			return FormatXlsx, true
		case strings.HasPrefix(f.Name, "ppt/slides/"):
			return FormatPptx, true
		case f.Name == "mimetype" || f.Name == "content.xml":
			// ODT stores its mimetype first; content.xml is enough to
			// distinguish it from OOXML containers.
			if isODTArchive(&r.Reader) {
				return FormatODT, true
			}
		}
	}
	return "", false
}

func isODTArchive(r *zip.Reader) bool {
	hasContent := false
	for _, f := range r.File {
		if f.Name == "mimetype" {
			rc, err := f.Open()
			if err != nil {
				continue
			}
			buf := make([]byte, 64)
			n, _ := rc.Read(buf)
			rc.Close()
			if strings.Contains(string(buf[:n]), "opendocument.text") {
				return true
			}
		}
		if f.Name == "content.xml" {
			hasContent = true
		}
	}
	return hasContent
}

// looksLikeHTML reports whether the head starts with an HTML doctype or
// root tag, ignoring leading whitespace and BOM.
func looksLikeHTML(head []byte) bool {
	h := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	lower := bytes.ToLower(h)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html"))
}

// readHead reads up to limit bytes from the start of the file.
func readHead(path string, limit int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

// SupportedFormats returns all format extensions the pipeline accepts.
func SupportedFormats() []string {
	return []string{"pdf", "docx", "pptx", "xlsx", "odt", "html", "md", "txt"}
}
