// Package batch converts whole directory trees with a bounded worker
// pool and persists job state for later status queries.
//
// Documents are isolated from each other: a failing or panicking
// conversion is recorded in the summary and never aborts its siblings.
// Cancellation is cooperative; results completed before the
// cancellation are kept.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/echoflow/docconv"
	"github.com/hazyhaar/echoflow/fallback"
)

// defaultPatterns matches every supported extension.
var defaultPatterns = []string{
	"*.pdf", "*.docx", "*.pptx", "*.xlsx", "*.odt",
	"*.html", "*.htm", "*.md", "*.markdown", "*.txt", "*.text",
}

// Config configures a Coordinator.
type Config struct {
	Sniffer      *docconv.Sniffer
	Orchestrator *fallback.Orchestrator

	// Workers bounds concurrent conversions. Default GOMAXPROCS.
	Workers int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Sniffer == nil {
		c.Sniffer = docconv.NewSniffer(0)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Coordinator runs directory conversions. Safe for concurrent Run calls.
type Coordinator struct {
	cfg Config
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("batch: Orchestrator is required")
	}
	cfg.defaults()
	return &Coordinator{cfg: cfg}, nil
}

// RunOptions are per-run parameters.
type RunOptions struct {
	// Recursive descends into subdirectories. Directory symlinks are
	// followed once; cycles are detected and skipped.
	Recursive bool

	// Patterns are base-name globs selecting input files. Empty means
	// every supported extension.
	Patterns []string

	// Convert is passed to every document's conversion.
	Convert docconv.Options

	// OnResult is called from worker goroutines with each document's
	// outcome, typically to write the output files. A returned error
	// marks the document failed. Nil is valid.
	OnResult func(ctx context.Context, doc docconv.Document, out fallback.Outcome) error

	// Progress is called after each document completes, from the
	// aggregating goroutine, so observed counts are monotonic. Nil is
	// valid.
	Progress func(p Progress)
}

// Progress is a snapshot of a running batch.
type Progress struct {
	Completed    int `json:"completed"`
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	FallbackUsed int `json:"fallback_used"`
}

// Record is one document's line in the summary.
type Record struct {
	Path         string           `json:"path"`
	Format       docconv.Format   `json:"format,omitempty"`
	Success      bool             `json:"success"`
	Converter    string           `json:"converter,omitempty"`
	Score        float64          `json:"score"`
	FallbackUsed bool             `json:"fallback_used"`
	ErrClass     docconv.ErrClass `json:"error_class,omitempty"`
	ErrMessage   string           `json:"error_message,omitempty"`
}

// Summary aggregates one run. Cancelled counts documents that were
// enumerated but never started because the context ended first.
type Summary struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	FallbackUsed int           `json:"fallback_used"`
	Cancelled    int           `json:"cancelled"`
	Duration     time.Duration `json:"duration"`
	Records      []Record      `json:"records"`
}

// Run converts every eligible file under dir.
//
// Argument and enumeration problems return an error before any
// conversion is dispatched; per-document failures only ever land in the
// summary.
func (c *Coordinator) Run(ctx context.Context, dir string, opts RunOptions) (Summary, error) {
	start := time.Now()

	info, err := os.Stat(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("batch: %w", err)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("batch: %s is not a directory", dir)
	}
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	for _, p := range patterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			return Summary{}, fmt.Errorf("batch: bad pattern %q: %w", p, err)
		}
	}

	files, err := c.enumerate(dir, opts.Recursive, patterns)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Total: len(files)}
	if len(files) == 0 {
		sum.Duration = time.Since(start)
		return sum, nil
	}

	jobs := make(chan string)
	records := make(chan Record)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				records <- c.convertOne(ctx, path, opts)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(records)
	}()

	for rec := range records {
		sum.Records = append(sum.Records, rec)
		if rec.Success {
			sum.Succeeded++
			if rec.FallbackUsed {
				sum.FallbackUsed++
			}
		} else {
			sum.Failed++
		}
		if opts.Progress != nil {
			opts.Progress(Progress{
				Completed:    len(sum.Records),
				Total:        sum.Total,
				Succeeded:    sum.Succeeded,
				Failed:       sum.Failed,
				FallbackUsed: sum.FallbackUsed,
			})
		}
	}

	sum.Cancelled = sum.Total - len(sum.Records)
	sort.Slice(sum.Records, func(i, j int) bool { return sum.Records[i].Path < sum.Records[j].Path })
	sum.Duration = time.Since(start)
	return sum, nil
}

// convertOne classifies and converts a single file. Panics anywhere in
// the document's processing become that document's failure.
func (c *Coordinator) convertOne(ctx context.Context, path string, opts RunOptions) (rec Record) {
	rec.Path = path

	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("document processing panicked", "path", path, "panic", r)
			rec.Success = false
			rec.ErrClass = docconv.ErrClassProcessing
			rec.ErrMessage = fmt.Sprintf("panic: %v", r)
		}
	}()

	doc, err := c.cfg.Sniffer.Classify(path)
	if err != nil {
		rec.ErrClass = docconv.Classify(err)
		rec.ErrMessage = err.Error()
		return rec
	}
	rec.Format = doc.Format

	out, err := c.cfg.Orchestrator.Convert(ctx, doc, opts.Convert)
	if err != nil {
		rec.ErrClass = docconv.Classify(err)
		rec.ErrMessage = err.Error()
		return rec
	}

	rec.Success = out.Result.Success
	rec.Converter = out.Result.ConverterUsed
	rec.Score = out.Score
	rec.FallbackUsed = out.FallbackUsed
	rec.ErrClass = out.Result.ErrClass
	rec.ErrMessage = out.Result.ErrMessage

	if rec.Success && opts.OnResult != nil {
		if err := opts.OnResult(ctx, doc, out); err != nil {
			rec.Success = false
			rec.ErrClass = docconv.ErrClassProcessing
			rec.ErrMessage = fmt.Sprintf("write output: %v", err)
		}
	}
	return rec
}

// enumerate lists eligible files, sorted. Dot-entries are skipped.
// Directory symlinks are resolved and each real directory is visited at
// most once, so symlink cycles terminate.
func (c *Coordinator) enumerate(root string, recursive bool, patterns []string) ([]string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("batch: resolve %s: %w", root, err)
	}
	visited := map[string]bool{resolved: true}

	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("batch: read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			path := filepath.Join(dir, name)

			isDir := entry.IsDir()
			if !isDir && entry.Type()&os.ModeSymlink != 0 {
				target, err := os.Stat(path)
				if err != nil {
					c.cfg.Logger.Warn("skipping broken symlink", "path", path, "error", err)
					continue
				}
				isDir = target.IsDir()
			}

			if isDir {
				if !recursive {
					continue
				}
				real, err := filepath.EvalSymlinks(path)
				if err != nil {
					c.cfg.Logger.Warn("skipping unresolvable directory", "path", path, "error", err)
					continue
				}
				if visited[real] {
					c.cfg.Logger.Warn("skipping already-visited directory", "path", path, "target", real)
					continue
				}
				visited[real] = true
				if err := walk(path); err != nil {
					return err
				}
				continue
			}

			if matchesAny(name, patterns) {
				files = append(files, path)
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}
