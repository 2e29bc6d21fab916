package llm

import (
	"context"
	"strings"

	"github.com/sells-group/siteqa/pkg/anthropic"
)

// DefaultAnthropicModel is used when neither the request nor config names one.
const DefaultAnthropicModel = "claude-haiku-4-5"

// Anthropic generates text through the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic generator.
func NewAnthropic(client anthropic.Client) *Anthropic {
	return &Anthropic{client: client}
}

func (a *Anthropic) Provider() string { return ProviderAnthropic }

// Generate sends the prompt as a single user message.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Model == "" {
		req.Model = DefaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temp := req.Temperature

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, classify(ProviderAnthropic, anthropic.StatusCode(err), err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	resp.Usage.LogCost(resp.Model)

	modelID := resp.Model
	if modelID == "" {
		modelID = req.Model
	}
	return &Result{
		Text:         text,
		Model:        modelID,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
