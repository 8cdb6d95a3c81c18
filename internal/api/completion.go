package api

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Completion is the text returned by a single Messages call with its usage.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	// Cost is the USD cost of this call alone.
	Cost float64
}

// Complete sends a single-turn prompt and returns the assistant text.
// The call's usage is added to the client's tracker.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int64) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	cost := c.pricing.Cost(in, out)
	c.tracker.Add(in, out, cost)
	log.Printf("[api] call model=%s in=%d out=%d cost=$%.4f total=$%.4f", c.model, in, out, cost, c.tracker.Cost())

	return &Completion{
		Text:         extractText(resp),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         cost,
	}, nil
}

// extractText concatenates the text blocks of a message.
func extractText(resp *anthropic.Message) string {
	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return strings.TrimSpace(result.String())
}
