package docconv

import "strings"

// ScorerConfig holds the quality-score weights. The defaults are the
// documented policy; they are configuration, not law.
type ScorerConfig struct {
	ContentWeight   float64 `json:"content_weight" yaml:"content_weight"`
	TitleWeight     float64 `json:"title_weight" yaml:"title_weight"`
	AuthorWeight    float64 `json:"author_weight" yaml:"author_weight"`
	StructureWeight float64 `json:"structure_weight" yaml:"structure_weight"`

	// MinContentLen is the minimum-viable markdown length in bytes.
	MinContentLen int `json:"min_content_len" yaml:"min_content_len"`
}

func (c *ScorerConfig) defaults() {
	if c.ContentWeight == 0 && c.TitleWeight == 0 && c.AuthorWeight == 0 && c.StructureWeight == 0 {
		c.ContentWeight = 0.4
		c.TitleWeight = 0.15
		c.AuthorWeight = 0.15
		c.StructureWeight = 0.3
	}
	if c.MinContentLen <= 0 {
		c.MinContentLen = 64
	}
}

// Scorer estimates how complete a conversion result is, on [0,1].
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a Scorer. A zero config gets the default weights.
func NewScorer(cfg ScorerConfig) *Scorer {
	cfg.defaults()
	return &Scorer{cfg: cfg}
}

// Score is a pure function of the result's fields. Monotonic
// non-decreasing in each signal: adding a title to an otherwise
// identical result never lowers the score. Failed results score 0.
func (s *Scorer) Score(r Result) float64 {
	if !r.Success || r.Markdown == "" {
		return 0
	}

	score := s.cfg.ContentWeight * contentSignal(r.Markdown, s.cfg.MinContentLen)
	if r.Metadata.Title != "" {
		score += s.cfg.TitleWeight
	}
	if r.Metadata.Author != "" {
		score += s.cfg.AuthorWeight
	}
	score += s.cfg.StructureWeight * structureSignal(r.Markdown)

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// contentSignal ramps from 0 at empty content to 1 at minLen bytes.
func contentSignal(md string, minLen int) float64 {
	n := len(strings.TrimSpace(md))
	if n >= minLen {
		return 1
	}
	return float64(n) / float64(minLen)
}

// structureSignal checks for heading markers and balanced table rows.
// Half credit each.
func structureSignal(md string) float64 {
	sig := 0.0
	if hasHeading(md) {
		sig += 0.5
	}
	if hasBalancedTables(md) {
		sig += 0.5
	}
	return sig
}

func hasHeading(md string) bool {
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "#") != trimmed {
			rest := strings.TrimLeft(trimmed, "#")
			if strings.HasPrefix(rest, " ") && strings.TrimSpace(rest) != "" {
				return true
			}
		}
	}
	return false
}

// hasBalancedTables reports whether the markdown contains at least one
// table whose rows all carry the same cell count.
func hasBalancedTables(md string) bool {
	cells := -1
	rows := 0
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
			if rows >= 2 && cells > 0 {
				return true
			}
			cells = -1
			rows = 0
			continue
		}
		n := strings.Count(trimmed, "|") - 1
		if cells == -1 {
			cells = n
			rows = 1
			continue
		}
		if n != cells {
			cells = -1
			rows = 0
			continue
		}
		rows++
	}
	return rows >= 2 && cells > 0
}
