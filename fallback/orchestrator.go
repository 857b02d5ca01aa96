// Package fallback runs a document through its converter variant chain
// until one result is acceptable.
//
// Per document the orchestrator walks a fixed, ordered chain — AI
// primary, format-specific fallback, universal fallback — scoring each
// attempt. The first successful result at or above the quality
// threshold is accepted. When the chain is exhausted the best-scoring
// attempt is returned anyway: callers always get the best-effort
// output, with Success reflecting what the best attempt reported.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/echoflow/docconv"
)

// Attempt records one variant run for telemetry and debugging.
type Attempt struct {
	Variant  string        `json:"variant"`
	Success  bool          `json:"success"`
	Score    float64       `json:"score"`
	Accepted bool          `json:"accepted"`
	Duration time.Duration `json:"duration"`
	ErrClass docconv.ErrClass `json:"error_class,omitempty"`
}

// Sink receives per-attempt telemetry. Implementations must never
// block conversion; a nil Sink is valid.
type Sink interface {
	Attempted(ctx context.Context, docPath string, attempt Attempt)
}

// Config configures an Orchestrator.
type Config struct {
	// Engine is the shared inference handle for the AI-primary variant.
	// Nil disables the primary and starts chains at the format fallback.
	Engine docconv.Engine

	// Scorer evaluates results; nil gets the default weights.
	Scorer *docconv.Scorer

	// VariantTimeout is the per-variant soft deadline. Exceeding it
	// cancels the running variant and forces advance to the next.
	// Zero means no per-variant deadline beyond the caller's context.
	VariantTimeout time.Duration

	Logger *slog.Logger
	Sink   Sink
}

func (c *Config) defaults() {
	if c.Scorer == nil {
		c.Scorer = docconv.NewScorer(docconv.ScorerConfig{})
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Orchestrator selects among converter variants. It never modifies a
// result's content — it only picks among immutable candidates.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{cfg: cfg}
}

// Outcome is the orchestrator's verdict for one document.
type Outcome struct {
	Result docconv.Result

	// Score of the returned result.
	Score float64

	// FallbackUsed is true when the accepted (or best) result did not
	// come from the first variant in the chain.
	FallbackUsed bool

	// Exhausted is true when no variant met the threshold and Result is
	// the best-effort candidate.
	Exhausted bool

	Attempts []Attempt
}

// Convert runs the variant chain for doc.
//
// A nil-argument contract violation returns a plain error and is never
// retried; every content problem lands in the Outcome instead. Context
// cancellation stops the chain — a caller that gave up does not trigger
// fallback.
func (o *Orchestrator) Convert(ctx context.Context, doc docconv.Document, opts docconv.Options) (Outcome, error) {
	if doc.Path == "" || doc.Format == "" {
		return Outcome{}, fmt.Errorf("fallback: document must be classified before conversion")
	}

	chain, err := docconv.Variants(doc.Format, o.cfg.Engine, o.cfg.Logger)
	if err != nil {
		return Outcome{}, fmt.Errorf("fallback: %w", err)
	}

	threshold := opts.QualityThreshold
	if threshold <= 0 {
		threshold = docconv.DefaultOptions().QualityThreshold
	}

	// Per-document soft deadline. Expiry cancels the running variant and
	// forces advance; a variant starting after expiry runs under the
	// per-variant timeout only, so the chain still yields a best-effort
	// result instead of a string of instant cancellations.
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = docconv.DefaultOptions().Timeout
	}
	docDeadline := time.Now().Add(timeout)

	var out Outcome
	var best docconv.Result
	bestScore := -1.0

	for i, variant := range chain {
		// Checkpoint before starting each variant.
		if cerr := ctx.Err(); cerr != nil {
			if bestScore >= 0 {
				break
			}
			out.Result = cancelledResult(variant.Name(), cerr)
			out.Attempts = append(out.Attempts, Attempt{
				Variant:  variant.Name(),
				ErrClass: docconv.ErrClassCancelled,
			})
			return out, nil
		}

		res := o.runVariant(ctx, variant, doc, opts, docDeadline)
		score := o.cfg.Scorer.Score(res)

		accepted := res.Success && score >= threshold
		attempt := Attempt{
			Variant:  variant.Name(),
			Success:  res.Success,
			Score:    score,
			Accepted: accepted,
			Duration: res.Duration,
			ErrClass: res.ErrClass,
		}
		out.Attempts = append(out.Attempts, attempt)
		o.emit(ctx, doc.Path, attempt)

		o.cfg.Logger.Debug("variant attempt",
			"path", doc.Path,
			"variant", variant.Name(),
			"success", res.Success,
			"score", score,
			"accepted", accepted,
			"duration", res.Duration)

		if score > bestScore {
			best = res
			bestScore = score
			out.FallbackUsed = i > 0
		}

		if accepted {
			out.Result = res
			out.Score = score
			return out, nil
		}

		// The caller gave up mid-variant: stop the chain rather than
		// burn the remaining variants on a dead request.
		if res.ErrClass == docconv.ErrClassCancelled && ctx.Err() != nil {
			break
		}
	}

	out.Result = best
	out.Score = bestScore
	out.Exhausted = true
	return out, nil
}

// runVariant applies the per-variant and per-document soft deadlines
// and shields the chain from a panicking variant: a panic is recorded
// as that variant's processing failure, and the next variant still
// runs.
func (o *Orchestrator) runVariant(ctx context.Context, variant docconv.Converter, doc docconv.Document, opts docconv.Options, docDeadline time.Time) (res docconv.Result) {
	vctx := ctx
	if o.cfg.VariantTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, o.cfg.VariantTimeout)
		defer cancel()
	}
	if time.Now().Before(docDeadline) {
		var cancel context.CancelFunc
		vctx, cancel = context.WithDeadline(vctx, docDeadline)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			o.cfg.Logger.Error("variant panicked",
				"variant", variant.Name(), "path", doc.Path, "panic", r)
			res = docconv.Result{
				ConverterUsed: variant.Name(),
				ErrClass:      docconv.ErrClassProcessing,
				ErrMessage:    fmt.Sprintf("variant panic: %v", r),
			}
		}
	}()

	return variant.Convert(vctx, doc, opts)
}

func (o *Orchestrator) emit(ctx context.Context, path string, attempt Attempt) {
	if o.cfg.Sink == nil {
		return
	}
	o.cfg.Sink.Attempted(ctx, path, attempt)
}

func cancelledResult(variant string, err error) docconv.Result {
	return docconv.Result{
		ConverterUsed: variant,
		ErrClass:      docconv.ErrClassCancelled,
		ErrMessage:    err.Error(),
	}
}
