package docconv

import (
	"context"
	"strings"
	"testing"
)

func TestDocxConvert(t *testing.T) {
	dir := t.TempDir()
	path := writeDocxFixture(t, dir)
	conv := NewDocxConverter(nil)

	res := conv.Convert(context.Background(), Document{Path: path, Format: FormatDocx}, DefaultOptions())
	if !res.Success {
		t.Fatalf("conversion failed: %s %s", res.ErrClass, res.ErrMessage)
	}
	if res.ConverterUsed != DocxConverterName {
		t.Fatalf("converter = %q", res.ConverterUsed)
	}

	if !strings.Contains(res.Markdown, "# Quarterly Report") {
		t.Errorf("missing heading:\n%s", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "Revenue grew in all regions.") {
		t.Errorf("missing paragraph:\n%s", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "| Region | Revenue |") {
		t.Errorf("missing table header:\n%s", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "| EMEA | 120 |") {
		t.Errorf("missing table row:\n%s", res.Markdown)
	}

	if len(res.Hyperlinks) != 1 || res.Hyperlinks[0].URL != "https://example.com/figures" {
		t.Errorf("hyperlinks = %+v", res.Hyperlinks)
	}
	if res.Hyperlinks[0].Text != "full figures" {
		t.Errorf("hyperlink text = %q", res.Hyperlinks[0].Text)
	}

	if res.Metadata.Title != "Quarterly Report" {
		t.Errorf("title = %q", res.Metadata.Title)
	}
	if res.Metadata.Author != "Ada Example" {
		t.Errorf("author = %q", res.Metadata.Author)
	}
	if res.Metadata.CreationDate.IsZero() {
		t.Error("creation date not parsed")
	}
	if res.Metadata.WordCount == 0 {
		t.Error("word count not set")
	}
}

func TestDocxConvert_HeadingLevels(t *testing.T) {
	tests := []struct {
		style string
		level int
	}{
		{"Heading1", 1},
		{"Heading3", 3},
		{"Titre2", 2},
		{"Title", 1},
		{"Subtitle", 2},
		{"BodyText", 0},
		{"Heading9", 0},
	}
	for _, tt := range tests {
		if got := docxHeadingLevel(tt.style); got != tt.level {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", tt.style, got, tt.level)
		}
	}
}

func TestDocxConvert_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := writeTextFile(t, dir, "fake.docx", "not zip data")

	res := NewDocxConverter(nil).Convert(context.Background(), Document{Path: path, Format: FormatDocx}, Options{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrClass != ErrClassUnsupportedFormat {
		t.Fatalf("class = %q, want unsupported_format", res.ErrClass)
	}
	if res.Markdown != "" {
		t.Fatal("failed result must carry no markdown")
	}
}

func TestDocxConvert_MissingDocumentPart(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/empty.docx"
	writeZipFixture(t, path, []zipMember{{"docProps/core.xml", testCoreXML}})

	res := NewDocxConverter(nil).Convert(context.Background(), Document{Path: path, Format: FormatDocx}, Options{})
	if res.Success || res.ErrClass != ErrClassUnsupportedFormat {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}

func TestDocxConvert_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeDocxFixture(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewDocxConverter(nil).Convert(ctx, Document{Path: path, Format: FormatDocx}, Options{})
	if res.Success {
		t.Fatal("expected cancelled failure")
	}
	if res.ErrClass != ErrClassCancelled {
		t.Fatalf("class = %q, want cancelled", res.ErrClass)
	}
}
