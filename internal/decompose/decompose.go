package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/taskhunter/internal/api"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 60 * time.Second

const (
	listMaxTokens     = 4096
	priorityMaxTokens = 16
)

// Completer sends one prompt to a language model. *api.Client implements it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64) (*api.Completion, error)
}

// Client is an Oracle backed by a Claude model.
type Client struct {
	llm     Completer
	timeout time.Duration
}

// New creates an oracle client. A timeout <= 0 uses DefaultTimeout.
func New(llm Completer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{llm: llm, timeout: timeout}
}

var _ Oracle = (*Client)(nil)

// ParseDump splits dump text into task candidates. Candidates without
// content are dropped.
func (c *Client) ParseDump(ctx context.Context, text string) ([]Candidate, float64, error) {
	resp, cost, err := c.complete(ctx, parseDumpPrompt, "Parse this task dump:\n\n"+text, listMaxTokens)
	if err != nil {
		return nil, cost, fmt.Errorf("parse dump: %w", err)
	}

	var raw []Candidate
	if err := ParseArray(resp, &raw); err != nil {
		return nil, cost, fmt.Errorf("parse dump: %w", err)
	}

	candidates := raw[:0]
	for _, cand := range raw {
		cand.Content = strings.TrimSpace(cand.Content)
		if cand.Content == "" {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, cost, nil
}

// Decompose breaks a task into micro-unit drafts. Drafts without a
// description are dropped.
func (c *Client) Decompose(ctx context.Context, content string) ([]UnitDraft, float64, error) {
	resp, cost, err := c.complete(ctx, decomposePrompt, "Decompose this task:\n\n"+content, listMaxTokens)
	if err != nil {
		return nil, cost, fmt.Errorf("decompose task: %w", err)
	}

	var raw []UnitDraft
	if err := ParseArray(resp, &raw); err != nil {
		return nil, cost, fmt.Errorf("decompose task: %w", err)
	}

	drafts := raw[:0]
	for _, d := range raw {
		d.Description = strings.TrimSpace(d.Description)
		if d.Description == "" {
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, cost, nil
}

// ScorePriority rates a task. On failure it returns DefaultPriority along
// with the error.
func (c *Client) ScorePriority(ctx context.Context, content string, meta Metadata) (int, float64, error) {
	prompt := "Task: " + content
	if encoded, err := json.MarshalIndent(meta, "", "  "); err == nil && meta != (Metadata{}) {
		prompt += "\nMetadata: " + string(encoded)
	}

	resp, cost, err := c.complete(ctx, priorityPrompt, prompt, priorityMaxTokens)
	if err != nil {
		return DefaultPriority, cost, fmt.Errorf("score priority: %w", err)
	}

	score, err := ParseScore(resp)
	if err != nil {
		return DefaultPriority, cost, fmt.Errorf("score priority: %w", err)
	}
	return ClampPriority(score), cost, nil
}

// CompareSimilar asks the oracle which existing tasks resemble candidate.
// Matches at or below SimilarityThreshold are discarded.
func (c *Client) CompareSimilar(ctx context.Context, candidate string, existing []string) ([]SimilarMatch, float64, error) {
	if len(existing) == 0 {
		return nil, 0, nil
	}

	var sb strings.Builder
	sb.WriteString("New task: ")
	sb.WriteString(candidate)
	sb.WriteString("\n\nExisting tasks:\n")
	for _, e := range existing {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}

	resp, cost, err := c.complete(ctx, similarPrompt, sb.String(), listMaxTokens)
	if err != nil {
		return nil, cost, fmt.Errorf("compare similar: %w", err)
	}

	var raw []SimilarMatch
	if err := ParseArray(resp, &raw); err != nil {
		return nil, cost, fmt.Errorf("compare similar: %w", err)
	}

	matches := raw[:0]
	for _, m := range raw {
		if m.Similarity > SimilarityThreshold {
			matches = append(matches, m)
		}
	}
	return matches, cost, nil
}

// complete runs one bounded oracle call.
func (c *Client) complete(ctx context.Context, system, prompt string, maxTokens int64) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.Complete(ctx, system, prompt, maxTokens)
	if err != nil {
		log.Printf("[decompose] oracle call failed: %v", err)
		return "", 0, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	return resp.Text, resp.Cost, nil
}

// ParseArray extracts the outermost JSON array from a model response and
// decodes it into out.
func ParseArray(response string, out any) error {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if runes := []rune(preview); len(runes) > 200 {
			preview = string(runes[:200]) + "... (truncated)"
		}
		return fmt.Errorf("%w: no JSON array found in response (got %d chars): %q", ErrOracle, len(response), preview)
	}

	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), out); err != nil {
		return fmt.Errorf("%w: unmarshal JSON: %w", ErrOracle, err)
	}
	return nil
}

var scorePattern = regexp.MustCompile(`-?\d+`)

// ParseScore reads the first integer in a model response. Integers too
// large to represent saturate to MaxPriority or MinPriority.
func ParseScore(response string) (int, error) {
	match := scorePattern.FindString(response)
	if match == "" {
		return 0, fmt.Errorf("%w: no integer in response %q", ErrOracle, response)
	}
	score, err := strconv.Atoi(match)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(match, "-") {
			return MinPriority, nil
		}
		return MaxPriority, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: parse score: %w", ErrOracle, err)
	}
	return score, nil
}
