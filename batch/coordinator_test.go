package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/echoflow/docconv"
	"github.com/hazyhaar/echoflow/fallback"
)

const goodMarkdown = `# Survey Results

Participation held steady across both sites this quarter.

| Site | Responses |
| --- | --- |
| North | 91 |
| South | 88 |
`

func testCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	coord, err := New(Config{
		Orchestrator: fallback.New(fallback.Config{}),
		Workers:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return coord
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mixedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "a.md", goodMarkdown)
	writeFile(t, dir, "b.txt", "Plain notes about the survey, long enough to carry some content signal.")
	writeFile(t, dir, "hollow.docx", "not a zip archive")
	writeFile(t, dir, "skip.xyz", "unmatched extension")
	writeFile(t, dir, ".hidden.md", goodMarkdown)
	writeFile(t, dir, "sub/nested.md", goodMarkdown)
	return dir
}

func TestRun_MixedDirectory(t *testing.T) {
	dir := mixedDir(t)
	coord := testCoordinator(t)

	sum, err := coord.Run(context.Background(), dir, RunOptions{Convert: docconv.DefaultOptions()})
	if err != nil {
		t.Fatal(err)
	}

	// Non-recursive: a.md, b.txt, hollow.docx. Dot-files and unmatched
	// extensions are never enumerated.
	if sum.Total != 3 {
		t.Fatalf("total = %d, want 3: %+v", sum.Total, sum.Records)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Errorf("succeeded=%d failed=%d", sum.Succeeded, sum.Failed)
	}
	if sum.Cancelled != 0 {
		t.Errorf("cancelled = %d", sum.Cancelled)
	}

	// Records come back sorted by path.
	for i := 1; i < len(sum.Records); i++ {
		if sum.Records[i-1].Path > sum.Records[i].Path {
			t.Errorf("records not sorted: %q > %q", sum.Records[i-1].Path, sum.Records[i].Path)
		}
	}

	for _, rec := range sum.Records {
		switch filepath.Base(rec.Path) {
		case "hollow.docx":
			if rec.Success || rec.ErrClass != docconv.ErrClassUnsupportedFormat {
				t.Errorf("hollow.docx: %+v", rec)
			}
		case "a.md":
			if !rec.Success || rec.Format != docconv.FormatMD {
				t.Errorf("a.md: %+v", rec)
			}
		}
	}
}

func TestRun_Recursive(t *testing.T) {
	dir := mixedDir(t)
	coord := testCoordinator(t)

	sum, err := coord.Run(context.Background(), dir, RunOptions{
		Recursive: true,
		Convert:   docconv.DefaultOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 4 {
		t.Fatalf("total = %d, want 4: %+v", sum.Total, sum.Records)
	}
}

func TestRun_Patterns(t *testing.T) {
	dir := mixedDir(t)
	coord := testCoordinator(t)

	sum, err := coord.Run(context.Background(), dir, RunOptions{
		Patterns: []string{"*.md"},
		Convert:  docconv.DefaultOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 1 {
		t.Fatalf("total = %d, want 1", sum.Total)
	}
	if filepath.Base(sum.Records[0].Path) != "a.md" {
		t.Errorf("records = %+v", sum.Records)
	}
}

func TestRun_BadPattern(t *testing.T) {
	coord := testCoordinator(t)
	_, err := coord.Run(context.Background(), t.TempDir(), RunOptions{Patterns: []string{"[unclosed"}})
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestRun_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "file.md", goodMarkdown)

	coord := testCoordinator(t)
	if _, err := coord.Run(context.Background(), path, RunOptions{}); err == nil {
		t.Fatal("expected error for non-directory input")
	}
}

func TestRun_OnResultErrorMarksDocumentFailed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", goodMarkdown)

	coord := testCoordinator(t)
	sum, err := coord.Run(context.Background(), dir, RunOptions{
		Convert: docconv.DefaultOptions(),
		OnResult: func(context.Context, docconv.Document, fallback.Outcome) error {
			return errors.New("disk full")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || sum.Succeeded != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	rec := sum.Records[0]
	if !strings.HasPrefix(rec.ErrMessage, "write output:") {
		t.Errorf("message = %q", rec.ErrMessage)
	}
	if rec.ErrClass != docconv.ErrClassProcessing {
		t.Errorf("class = %q", rec.ErrClass)
	}
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, dir, string(rune('a'+i))+".md", goodMarkdown)
	}

	coord := testCoordinator(t)
	var snapshots []Progress
	sum, err := coord.Run(context.Background(), dir, RunOptions{
		Convert:  docconv.DefaultOptions(),
		Progress: func(p Progress) { snapshots = append(snapshots, p) },
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(snapshots) != sum.Total {
		t.Fatalf("got %d snapshots, want %d", len(snapshots), sum.Total)
	}
	for i, p := range snapshots {
		if p.Completed != i+1 {
			t.Errorf("snapshot %d: completed = %d", i, p.Completed)
		}
		if p.Total != sum.Total {
			t.Errorf("snapshot %d: total = %d", i, p.Total)
		}
	}
	last := snapshots[len(snapshots)-1]
	if last.Succeeded != sum.Succeeded || last.Failed != sum.Failed {
		t.Errorf("final snapshot %+v vs summary %+v", last, sum)
	}
}

func TestRun_CancellationKeepsFinishedWork(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, string(rune('a'+i))+".md", goodMarkdown)
	}

	ctx, cancel := context.WithCancel(context.Background())
	coord := testCoordinator(t)

	sum, err := coord.Run(ctx, dir, RunOptions{
		Convert:  docconv.DefaultOptions(),
		Progress: func(Progress) { cancel() },
	})
	if err != nil {
		t.Fatal(err)
	}

	if sum.Total != 20 {
		t.Fatalf("total = %d", sum.Total)
	}
	if len(sum.Records)+sum.Cancelled != sum.Total {
		t.Errorf("records=%d cancelled=%d total=%d", len(sum.Records), sum.Cancelled, sum.Total)
	}
	if sum.Cancelled == 0 {
		t.Error("expected some documents to be cancelled before dispatch")
	}
}

func TestRun_SymlinkCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", goodMarkdown)
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(dir, filepath.Join(dir, "sub", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	coord := testCoordinator(t)
	sum, err := coord.Run(context.Background(), dir, RunOptions{
		Recursive: true,
		Convert:   docconv.DefaultOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 1 {
		t.Fatalf("total = %d, want 1: %+v", sum.Total, sum.Records)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	coord := testCoordinator(t)
	sum, err := coord.Run(context.Background(), t.TempDir(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 0 || len(sum.Records) != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}
