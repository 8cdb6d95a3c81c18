package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/taskhunter/internal/api"
)

// fakeCompleter returns canned responses keyed by system prompt.
type fakeCompleter struct {
	responses map[string]string
	err       error
	cost      float64
	prompts   []string
	deadline  bool
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int64) (*api.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &api.Completion{Text: f.responses[system], Cost: f.cost}, nil
}

func TestNew(t *testing.T) {
	c := New(&fakeCompleter{}, 0)
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}
}

func TestParseDump(t *testing.T) {
	llm := &fakeCompleter{cost: 0.01, responses: map[string]string{
		parseDumpPrompt: `Here you go:
[
	{"content": "Buy milk", "category": "Home", "priority_hints": "before friday", "estimated_complexity": "low"},
	{"content": "  ", "category": "Misc"},
	{"content": "Call mom", "category": "Social", "priority_hints": ["birthday", "soon"]}
]`,
	}}
	c := New(llm, time.Second)

	got, cost, err := c.ParseDump(context.Background(), "buy milk. call mom.")
	if err != nil {
		t.Fatalf("ParseDump failed: %v", err)
	}
	if cost != 0.01 {
		t.Errorf("cost = %f, want 0.01", cost)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Content != "Buy milk" || got[0].PriorityHints.String() != "before friday" {
		t.Errorf("candidate 0 = %+v", got[0])
	}
	if got[1].PriorityHints.String() != "birthday; soon" {
		t.Errorf("candidate 1 hints = %q", got[1].PriorityHints.String())
	}
	if !llm.deadline {
		t.Error("oracle call should carry a deadline")
	}
	if !strings.Contains(llm.prompts[0], "buy milk. call mom.") {
		t.Errorf("prompt does not include dump: %q", llm.prompts[0])
	}
}

func TestParseDump_Unparseable(t *testing.T) {
	llm := &fakeCompleter{cost: 0.02, responses: map[string]string{parseDumpPrompt: "I could not find any tasks."}}
	c := New(llm, time.Second)

	got, cost, err := c.ParseDump(context.Background(), "hmm")
	if !errors.Is(err, ErrOracle) {
		t.Fatalf("err = %v, want ErrOracle", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if cost != 0.02 {
		t.Errorf("cost = %f; a paid call should still be charged", cost)
	}
}

func TestParseDump_CallFails(t *testing.T) {
	c := New(&fakeCompleter{err: errors.New("connection refused")}, time.Second)

	_, cost, err := c.ParseDump(context.Background(), "buy milk")
	if !errors.Is(err, ErrOracle) {
		t.Fatalf("err = %v, want ErrOracle", err)
	}
	if cost != 0 {
		t.Errorf("cost = %f, want 0", cost)
	}
}

func TestDecompose(t *testing.T) {
	llm := &fakeCompleter{responses: map[string]string{
		decomposePrompt: `[
			{"description": "Walk to the store", "estimated_minutes": 10, "sequence_order": 1, "binary_check": "at store"},
			{"description": "Pay for milk", "dependencies": "Walk to the store"},
			{"description": ""}
		]`,
	}}
	c := New(llm, time.Second)

	got, _, err := c.Decompose(context.Background(), "Buy milk")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d drafts, want 2", len(got))
	}
	if got[0].EstimatedMinutes == nil || *got[0].EstimatedMinutes != 10 {
		t.Errorf("draft 0 minutes = %v, want 10", got[0].EstimatedMinutes)
	}
	if got[1].SequenceOrder != 0 {
		t.Errorf("missing sequence_order should decode as 0, got %d", got[1].SequenceOrder)
	}
	if len(got[1].Dependencies) != 1 || got[1].Dependencies[0] != "Walk to the store" {
		t.Errorf("draft 1 dependencies = %v", got[1].Dependencies)
	}
}

func TestScorePriority(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{"plain", "80", 80, false},
		{"surrounded", "Score: 72.", 72, false},
		{"too high", "250", 100, false},
		{"too low", "0", 1, false},
		{"negative", "-5", 1, false},
		{"overflow", "Priority: 99999999999999999999", 100, false},
		{"negative overflow", "-99999999999999999999", 1, false},
		{"no number", "very urgent", DefaultPriority, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeCompleter{responses: map[string]string{priorityPrompt: tt.response}}, time.Second)
			got, _, err := c.ScorePriority(context.Background(), "task", Metadata{Category: "Work"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScorePriority_IncludesMetadata(t *testing.T) {
	llm := &fakeCompleter{responses: map[string]string{priorityPrompt: "60"}}
	c := New(llm, time.Second)

	if _, _, err := c.ScorePriority(context.Background(), "file taxes", Metadata{Category: "Finance"}); err != nil {
		t.Fatalf("ScorePriority failed: %v", err)
	}
	if !strings.Contains(llm.prompts[0], `"category": "Finance"`) {
		t.Errorf("prompt missing metadata: %q", llm.prompts[0])
	}

	if _, _, err := c.ScorePriority(context.Background(), "file taxes", Metadata{}); err != nil {
		t.Fatalf("ScorePriority failed: %v", err)
	}
	if strings.Contains(llm.prompts[1], "Metadata") {
		t.Errorf("empty metadata should be omitted: %q", llm.prompts[1])
	}
}

func TestScorePriority_CallFails(t *testing.T) {
	c := New(&fakeCompleter{err: context.DeadlineExceeded}, time.Second)

	got, _, err := c.ScorePriority(context.Background(), "task", Metadata{})
	if !errors.Is(err, ErrOracle) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrOracle wrapping deadline", err)
	}
	if got != DefaultPriority {
		t.Errorf("score = %d, want %d", got, DefaultPriority)
	}
}

func TestCompareSimilar(t *testing.T) {
	llm := &fakeCompleter{responses: map[string]string{
		similarPrompt: `[
			{"existing_task": "buy milk", "similarity_score": 0.9, "merge_suggestion": "same errand"},
			{"existing_task": "call mom", "similarity_score": 0.4}
		]`,
	}}
	c := New(llm, time.Second)

	got, _, err := c.CompareSimilar(context.Background(), "pick up milk", []string{"buy milk", "call mom"})
	if err != nil {
		t.Fatalf("CompareSimilar failed: %v", err)
	}
	if len(got) != 1 || got[0].ExistingTask != "buy milk" {
		t.Errorf("got %+v, want only the buy milk match", got)
	}
	if !strings.Contains(llm.prompts[0], "- call mom") {
		t.Errorf("prompt missing existing tasks: %q", llm.prompts[0])
	}
}

func TestCompareSimilar_NoExisting(t *testing.T) {
	llm := &fakeCompleter{}
	got, cost, err := New(llm, time.Second).CompareSimilar(context.Background(), "x", nil)
	if err != nil || got != nil || cost != 0 {
		t.Errorf("got (%v, %f, %v), want empty", got, cost, err)
	}
	if len(llm.prompts) != 0 {
		t.Error("no oracle call expected without existing tasks")
	}
}

func TestParseArray(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantLen  int
		wantErr  bool
	}{
		{"bare", `[{"content":"a"}]`, 1, false},
		{"fenced", "```json\n[{\"content\":\"a\"},{\"content\":\"b\"}]\n```", 2, false},
		{"empty array", `[]`, 0, false},
		{"no array", `nothing`, 0, true},
		{"reversed brackets", `] oops [`, 0, true},
		{"broken json", `[{"content": }]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []Candidate
			err := ParseArray(tt.response, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOracle) {
				t.Errorf("err = %v, want ErrOracle", err)
			}
			if len(out) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(out), tt.wantLen)
			}
		})
	}
}

func TestParseArray_ErrorPreviewKeepsRunes(t *testing.T) {
	response := strings.Repeat("é", 300)

	var out []Candidate
	err := ParseArray(response, &out)
	if err == nil {
		t.Fatal("expected an error without a JSON array")
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("error message is not valid UTF-8: %q", err.Error())
	}
	if !strings.Contains(err.Error(), strings.Repeat("é", 200)+"... (truncated)") {
		t.Errorf("error should carry a 200 rune preview, got %q", err.Error())
	}
}

func TestHints_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"urgent"`, "urgent"},
		{`["a", "b"]`, "a; b"},
		{`""`, ""},
		{`null`, ""},
		{`42`, ""},
	}
	for _, tt := range tests {
		var h Hints
		if err := json.Unmarshal([]byte(tt.in), &h); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.in, err)
		}
		if h.String() != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, h.String(), tt.want)
		}
	}
}
