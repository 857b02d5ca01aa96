package docconv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func writePptxFixture(t *testing.T, dir string, slides int) string {
	t.Helper()
	path := filepath.Join(dir, "deck.pptx")
	var members []zipMember
	// Reverse order on purpose: slide order must come from the member
	// name, not the archive order.
	for i := slides; i >= 1; i-- {
		members = append(members, zipMember{
			name: fmt.Sprintf("ppt/slides/slide%d.xml", i),
			data: fmt.Sprintf(testSlideXML, i),
		})
	}
	members = append(members, zipMember{"docProps/core.xml", testCoreXML})
	writeZipFixture(t, path, members)
	return path
}

func TestPptxConvert(t *testing.T) {
	dir := t.TempDir()
	path := writePptxFixture(t, dir, 3)

	res := NewPptxConverter(nil).Convert(context.Background(), Document{Path: path, Format: FormatPptx}, DefaultOptions())
	if !res.Success {
		t.Fatalf("conversion failed: %s %s", res.ErrClass, res.ErrMessage)
	}

	// Slides in numeric order.
	i1 := strings.Index(res.Markdown, "## Slide 1")
	i2 := strings.Index(res.Markdown, "## Slide 2")
	i3 := strings.Index(res.Markdown, "## Slide 3")
	if i1 < 0 || i2 < 0 || i3 < 0 || !(i1 < i2 && i2 < i3) {
		t.Fatalf("slides missing or out of order:\n%s", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "Ship the parser.") {
		t.Errorf("missing slide body:\n%s", res.Markdown)
	}
	if res.Metadata.PageCount != 3 {
		t.Errorf("page count = %d, want 3", res.Metadata.PageCount)
	}
}

func TestPptxConvert_NoSlides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pptx")
	writeZipFixture(t, path, []zipMember{{"docProps/core.xml", testCoreXML}})

	res := NewPptxConverter(nil).Convert(context.Background(), Document{Path: path, Format: FormatPptx}, Options{})
	if res.Success || res.ErrClass != ErrClassUnsupportedFormat {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}

func TestPptxConvert_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writePptxFixture(t, dir, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewPptxConverter(nil).Convert(ctx, Document{Path: path, Format: FormatPptx}, Options{})
	if res.Success || res.ErrClass != ErrClassCancelled {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}
