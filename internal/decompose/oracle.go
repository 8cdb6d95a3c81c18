// Package decompose provides the decomposition oracle: it parses free-form
// dumps into task candidates, breaks tasks into micro-units, and scores
// their priority.
package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrOracle marks a failed or unparseable oracle response. Callers recover
// locally by substituting a default.
var ErrOracle = errors.New("oracle failure")

const (
	// DefaultPriority is used when priority scoring fails.
	DefaultPriority = 50
	// MinPriority and MaxPriority bound a task's priority.
	MinPriority = 1
	MaxPriority = 100
	// SimilarityThreshold is the minimum score CompareSimilar reports.
	SimilarityThreshold = 0.7
)

// Oracle is the external best-effort service that structures dumps.
// Every method reports the USD cost of the calls it made, even on failure.
type Oracle interface {
	// ParseDump splits dump text into task candidates.
	ParseDump(ctx context.Context, text string) ([]Candidate, float64, error)
	// Decompose breaks a task into ordered micro-unit drafts.
	Decompose(ctx context.Context, content string) ([]UnitDraft, float64, error)
	// ScorePriority rates a task from 1 to 100.
	ScorePriority(ctx context.Context, content string, meta Metadata) (int, float64, error)
	// CompareSimilar asks the oracle which existing tasks resemble candidate.
	CompareSimilar(ctx context.Context, candidate string, existing []string) ([]SimilarMatch, float64, error)
}

// Candidate is a task extracted from a dump.
type Candidate struct {
	Content             string `json:"content"`
	Category            string `json:"category"`
	PriorityHints       Hints  `json:"priority_hints"`
	EstimatedComplexity string `json:"estimated_complexity"`
}

// Metadata is the context passed to priority scoring.
type Metadata struct {
	Category            string `json:"category,omitempty"`
	EstimatedComplexity string `json:"estimated_complexity,omitempty"`
	PriorityHints       string `json:"priority_hints,omitempty"`
}

// UnitDraft is a micro-unit proposed by the oracle. SequenceOrder is zero
// when the oracle omitted it.
type UnitDraft struct {
	Description      string `json:"description"`
	SequenceOrder    int    `json:"sequence_order"`
	EstimatedMinutes *int   `json:"estimated_minutes"`
	BinaryCheck      string `json:"binary_check"`
	Dependencies     Hints  `json:"dependencies"`
}

// SimilarMatch is an existing task the oracle considers close to a candidate.
type SimilarMatch struct {
	ExistingTask    string  `json:"existing_task"`
	Similarity      float64 `json:"similarity_score"`
	MergeSuggestion string  `json:"merge_suggestion"`
}

// ClampPriority bounds a score to MinPriority..MaxPriority.
func ClampPriority(score int) int {
	if score < MinPriority {
		return MinPriority
	}
	if score > MaxPriority {
		return MaxPriority
	}
	return score
}

// Hints accepts either a JSON string or an array of strings. Models are not
// consistent about which they emit.
type Hints []string

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hints) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*h = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			*h = Hints{s}
		} else {
			*h = nil
		}
		return nil
	}

	// null, numbers, objects: keep nothing rather than fail the whole list
	*h = nil
	return nil
}

// String joins the hints for storage and display.
func (h Hints) String() string {
	return strings.Join(h, "; ")
}
