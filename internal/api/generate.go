package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrEmptyResponse is returned when the provider answers without text.
var ErrEmptyResponse = errors.New("empty generation response")

// Generate sends prompt to the proposer's model and returns the text content
// with input and output token counts.
func (c *Client) Generate(ctx context.Context, prompt string, proposer models.ProposerProfile) (string, int, int, error) {
	model := c.model
	if proposer.Name != "" {
		model = anthropic.Model(proposer.Name)
	}
	model = c.TranslateModel(model)

	resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("generate with %s: %w", proposer.Name, err)
	}

	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	c.tracker.Add(in, out, proposer.Cost(int(in), int(out)))

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", int(in), int(out), fmt.Errorf("generate with %s: %w", proposer.Name, ErrEmptyResponse)
	}
	return sb.String(), int(in), int(out), nil
}
