// Package service wires the conversion pipeline behind the tool and
// HTTP surfaces: classify, orchestrate, write output, track jobs.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hazyhaar/echoflow/batch"
	"github.com/hazyhaar/echoflow/docconv"
	"github.com/hazyhaar/echoflow/engine"
	"github.com/hazyhaar/echoflow/fallback"
	"github.com/hazyhaar/echoflow/pack"
)

// Version is reported by the health check.
const Version = "1.0.0"

// Config configures a Service.
type Config struct {
	Sniffer      *docconv.Sniffer
	Orchestrator *fallback.Orchestrator
	Coordinator  *batch.Coordinator

	// Jobs persists directory-conversion jobs. Nil disables status
	// tracking (get_conversion_status returns not found).
	Jobs *batch.Store

	// Engine is the inference client, used only for health reporting
	// here. Nil means the AI variant is disabled.
	Engine *engine.Client

	// JobsDB is pinged by the health check. Optional.
	JobsDB *sql.DB

	// QualityThreshold is the operator default for requests that do not
	// set their own. Zero keeps the pipeline default.
	QualityThreshold float64

	Logger *slog.Logger
}

// Service implements the tool operations.
type Service struct {
	cfg     Config
	started time.Time
}

// New validates the wiring and creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("service: Orchestrator is required")
	}
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("service: Coordinator is required")
	}
	if cfg.Sniffer == nil {
		cfg.Sniffer = docconv.NewSniffer(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{cfg: cfg, started: time.Now()}, nil
}

// ConvertDocumentRequest are the convert_document arguments.
type ConvertDocumentRequest struct {
	FilePath          string  `json:"file_path"`
	OutputDir         string  `json:"output_dir,omitempty"`
	ExtractImages     bool    `json:"extract_images,omitempty"`
	ExtractMetadata   bool    `json:"extract_metadata,omitempty"`
	ExtractHyperlinks bool    `json:"extract_hyperlinks,omitempty"`
	QualityThreshold  float64 `json:"quality_threshold,omitempty"`
}

// ConvertDocumentResponse reports one conversion.
type ConvertDocumentResponse struct {
	Success      bool             `json:"success"`
	OutputPath   string           `json:"output_path,omitempty"`
	Markdown     string           `json:"markdown,omitempty"`
	Format       docconv.Format   `json:"format"`
	Converter    string           `json:"converter_used"`
	Score        float64          `json:"quality_score"`
	FallbackUsed bool             `json:"fallback_used"`
	DurationMs   int64            `json:"duration_ms"`
	Metadata     docconv.Metadata `json:"metadata"`
	ErrClass     docconv.ErrClass `json:"error_class,omitempty"`
	ErrMessage   string           `json:"error_message,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// ConvertDocument converts one file. With OutputDir set the markdown
// (and images) are written there; otherwise the markdown is returned
// inline.
func (s *Service) ConvertDocument(ctx context.Context, req ConvertDocumentRequest) (ConvertDocumentResponse, error) {
	if req.FilePath == "" {
		return ConvertDocumentResponse{}, fmt.Errorf("file_path is required")
	}

	opts := s.options(req.ExtractImages, req.ExtractMetadata, req.ExtractHyperlinks, req.QualityThreshold)

	doc, err := s.cfg.Sniffer.Classify(req.FilePath)
	if err != nil {
		return ConvertDocumentResponse{
			ErrClass:   docconv.Classify(err),
			ErrMessage: err.Error(),
		}, nil
	}

	out, err := s.cfg.Orchestrator.Convert(ctx, doc, opts)
	if err != nil {
		return ConvertDocumentResponse{}, err
	}

	resp := ConvertDocumentResponse{
		Success:      out.Result.Success,
		Format:       doc.Format,
		Converter:    out.Result.ConverterUsed,
		Score:        out.Score,
		FallbackUsed: out.FallbackUsed,
		DurationMs:   out.Result.Duration.Milliseconds(),
		Metadata:     out.Result.Metadata,
		ErrClass:     out.Result.ErrClass,
		ErrMessage:   out.Result.ErrMessage,
		Warnings:     out.Result.Warnings,
	}
	if !out.Result.Success {
		return resp, nil
	}

	if req.OutputDir != "" {
		w, err := pack.NewWriter(req.OutputDir)
		if err != nil {
			return ConvertDocumentResponse{}, err
		}
		path, err := w.Write(doc, out.Result)
		if err != nil {
			return ConvertDocumentResponse{}, err
		}
		resp.OutputPath = path
	} else {
		resp.Markdown = out.Result.Markdown
	}
	return resp, nil
}

// ConvertDirectoryRequest are the convert_directory arguments.
type ConvertDirectoryRequest struct {
	InputDir          string   `json:"input_dir"`
	OutputDir         string   `json:"output_dir"`
	Recursive         bool     `json:"recursive,omitempty"`
	FileFilter        []string `json:"file_filter,omitempty"`
	CreateZip         bool     `json:"create_zip,omitempty"`
	ExtractImages     bool     `json:"extract_images,omitempty"`
	ExtractMetadata   bool     `json:"extract_metadata,omitempty"`
	ExtractHyperlinks bool     `json:"extract_hyperlinks,omitempty"`
	QualityThreshold  float64  `json:"quality_threshold,omitempty"`
}

// ConvertDirectoryResponse reports one batch run.
type ConvertDirectoryResponse struct {
	JobID   string        `json:"job_id,omitempty"`
	Status  string        `json:"status"`
	ZipPath string        `json:"zip_path,omitempty"`
	Summary batch.Summary `json:"summary"`
}

// ConvertDirectory converts every eligible file under InputDir into
// OutputDir. The run is synchronous; its progress is visible through
// the job store while it runs.
func (s *Service) ConvertDirectory(ctx context.Context, req ConvertDirectoryRequest) (ConvertDirectoryResponse, error) {
	if req.InputDir == "" {
		return ConvertDirectoryResponse{}, fmt.Errorf("input_dir is required")
	}
	if req.OutputDir == "" {
		return ConvertDirectoryResponse{}, fmt.Errorf("output_dir is required")
	}

	writer, err := pack.NewWriter(req.OutputDir)
	if err != nil {
		return ConvertDirectoryResponse{}, err
	}

	var jobID string
	if s.cfg.Jobs != nil {
		jobID, err = s.cfg.Jobs.Create(ctx, req.InputDir, req.OutputDir)
		if err != nil {
			s.cfg.Logger.Warn("job create failed, continuing without tracking", "error", err)
		}
	}

	opts := batch.RunOptions{
		Recursive: req.Recursive,
		Patterns:  req.FileFilter,
		Convert:   s.options(req.ExtractImages, req.ExtractMetadata, req.ExtractHyperlinks, req.QualityThreshold),
		OnResult: func(_ context.Context, doc docconv.Document, out fallback.Outcome) error {
			_, werr := writer.Write(doc, out.Result)
			return werr
		},
	}
	if jobID != "" {
		started := false
		opts.Progress = func(p batch.Progress) {
			// Store updates use the background context: a cancelled run
			// must still record its final counters.
			if !started {
				started = true
				if serr := s.cfg.Jobs.Start(context.Background(), jobID, p.Total); serr != nil {
					s.cfg.Logger.Warn("job start update failed", "job_id", jobID, "error", serr)
				}
			}
			if serr := s.cfg.Jobs.Progress(context.Background(), jobID, p.Completed, p.Succeeded, p.Failed, p.FallbackUsed); serr != nil {
				s.cfg.Logger.Warn("job progress update failed", "job_id", jobID, "error", serr)
			}
		}
	}

	sum, err := s.cfg.Coordinator.Run(ctx, req.InputDir, opts)
	if err != nil {
		if jobID != "" {
			s.finishJob(jobID, batch.StatusFailed, err.Error())
		}
		return ConvertDirectoryResponse{}, err
	}

	status := jobStatus(ctx, sum)
	resp := ConvertDirectoryResponse{JobID: jobID, Status: status, Summary: sum}

	if req.CreateZip && status != batch.StatusCancelled {
		zipPath := filepath.Join(req.OutputDir, filepath.Base(req.OutputDir)+".zip")
		if err := pack.CreateZip(req.OutputDir, zipPath); err != nil {
			s.cfg.Logger.Warn("zip creation failed", "error", err)
		} else {
			resp.ZipPath = zipPath
		}
	}

	if jobID != "" {
		if s.cfg.Jobs != nil {
			_ = s.cfg.Jobs.Progress(context.Background(), jobID, len(sum.Records), sum.Succeeded, sum.Failed, sum.FallbackUsed)
		}
		s.finishJob(jobID, status, "")
	}
	return resp, nil
}

func (s *Service) finishJob(jobID, status, errMsg string) {
	if err := s.cfg.Jobs.Finish(context.Background(), jobID, status, errMsg); err != nil {
		s.cfg.Logger.Warn("job finish update failed", "job_id", jobID, "error", err)
	}
}

func jobStatus(ctx context.Context, sum batch.Summary) string {
	switch {
	case ctx.Err() != nil || sum.Cancelled > 0:
		return batch.StatusCancelled
	case sum.Failed == 0:
		return batch.StatusCompleted
	case sum.Succeeded > 0:
		return batch.StatusPartiallyFailed
	default:
		return batch.StatusFailed
	}
}

// Status returns the persisted state of one job.
func (s *Service) Status(ctx context.Context, jobID string) (batch.Job, error) {
	if s.cfg.Jobs == nil {
		return batch.Job{}, batch.ErrJobNotFound
	}
	return s.cfg.Jobs.Get(ctx, jobID)
}

// RecentJobs lists the newest jobs.
func (s *Service) RecentJobs(ctx context.Context, limit int) ([]batch.Job, error) {
	if s.cfg.Jobs == nil {
		return nil, nil
	}
	return s.cfg.Jobs.Recent(ctx, limit)
}

// HealthReport is the health_check response.
type HealthReport struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Engine        string `json:"engine"`
	JobStore      string `json:"job_store"`
}

// Health reports component status. Overall status degrades when the
// engine is down (fallbacks still work) and fails when the job store is
// unreachable.
func (s *Service) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Engine:        "disabled",
		JobStore:      "disabled",
	}

	if s.cfg.Engine != nil {
		if s.cfg.Engine.Healthy(ctx) {
			report.Engine = "ok"
		} else {
			report.Engine = "unavailable"
			report.Status = "degraded"
		}
	}

	if s.cfg.JobsDB != nil {
		if err := s.cfg.JobsDB.PingContext(ctx); err != nil {
			report.JobStore = "unavailable"
			report.Status = "error"
		} else {
			report.JobStore = "ok"
		}
	}
	return report
}

// Formats lists the supported input formats.
func (s *Service) Formats() []string {
	return docconv.SupportedFormats()
}

// options maps request flags to conversion options. A request-level
// threshold beats the operator default, which beats the pipeline
// default.
func (s *Service) options(images, metadata, hyperlinks bool, threshold float64) docconv.Options {
	opts := docconv.DefaultOptions()
	opts.ExtractImages = images
	opts.ExtractMetadata = metadata
	opts.ExtractHyperlinks = hyperlinks
	switch {
	case threshold > 0:
		opts.QualityThreshold = threshold
	case s.cfg.QualityThreshold > 0:
		opts.QualityThreshold = s.cfg.QualityThreshold
	}
	return opts
}

// IsNotFound reports whether err is a missing-job error.
func IsNotFound(err error) bool {
	return errors.Is(err, batch.ErrJobNotFound)
}
