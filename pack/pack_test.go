package pack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/echoflow/docconv"
)

func okResult(md string) docconv.Result {
	return docconv.Result{Success: true, Markdown: md}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}

	path, err := w.Write(docconv.Document{Path: "/in/report.docx"}, okResult("# Report\n"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "report.md" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Report\n" {
		t.Errorf("content = %q", data)
	}
}

func TestWrite_NameCollision(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Same base name from two source directories.
	p1, err := w.Write(docconv.Document{Path: "/a/report.docx"}, okResult("one\n"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := w.Write(docconv.Document{Path: "/b/report.pdf"}, okResult("two\n"))
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(p1) != "report.md" || filepath.Base(p2) != "report-1.md" {
		t.Errorf("paths = %q, %q", p1, p2)
	}
}

func TestWrite_ImagesPrefixedAndRewritten(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	res := okResult("![image_001.png](images/image_001.png)\n")
	res.Images = []docconv.ExtractedImage{{
		Filename: "image_001.png",
		Format:   "png",
		Data:     []byte{0x89, 0x50, 0x4e, 0x47},
	}}

	path, err := w.Write(docconv.Document{Path: "slides.pptx"}, res)
	if err != nil {
		t.Fatal(err)
	}

	img := filepath.Join(w.Dir(), "images", "slides_image_001.png")
	if _, err := os.Stat(img); err != nil {
		t.Fatalf("stored image: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "images/slides_image_001.png") {
		t.Errorf("markdown not rewritten:\n%s", data)
	}
	if strings.Contains(string(data), "(images/image_001.png)") {
		t.Errorf("old image reference survived:\n%s", data)
	}
}

func TestWrite_RefusesFailedResult(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(docconv.Document{Path: "x.md"}, docconv.Result{}); err == nil {
		t.Fatal("expected error for failed result")
	}
}

func TestCreateZip(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "doc.md"), []byte("# Doc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "pic.png"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	// Archive inside the source dir: it must not include itself.
	zipPath := filepath.Join(dir, "bundle.zip")
	if err := CreateZip(dir, zipPath); err != nil {
		t.Fatal(err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	if !names["doc.md"] || !names["images/pic.png"] {
		t.Errorf("members = %v", names)
	}
	if names["bundle.zip"] {
		t.Error("archive contains itself")
	}
}
