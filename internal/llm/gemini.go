package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteqa/pkg/gemini"
)

// DefaultGeminiModel is used when neither the request nor config names one.
const DefaultGeminiModel = "gemini-2.0-flash"

// DefaultPreferredModels is the discovery preference order.
var DefaultPreferredModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-2.5-pro",
	"gemini-1.5-pro",
}

// Gemini generates text through the Gemini generateContent API.
type Gemini struct {
	client    gemini.Client
	discover  bool
	preferred []string

	mu         sync.Mutex
	discovered string
}

// GeminiOption configures a Gemini generator.
type GeminiOption func(*Gemini)

// WithDiscovery enables a one-time ListModels fallback when the requested
// model is not found. A nil preference list uses DefaultPreferredModels.
func WithDiscovery(preferred []string) GeminiOption {
	return func(g *Gemini) {
		g.discover = true
		if len(preferred) > 0 {
			g.preferred = preferred
		}
	}
}

// NewGemini creates a Gemini generator.
func NewGemini(client gemini.Client, opts ...GeminiOption) *Gemini {
	g := &Gemini{client: client, preferred: DefaultPreferredModels}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gemini) Provider() string { return ProviderGemini }

// Generate runs one generateContent call. When the model is unknown and
// discovery is enabled it retries once with the discovered model.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Model == "" {
		req.Model = DefaultGeminiModel
	}

	res, err := g.generate(ctx, req)
	if err == nil || !g.discover || StatusCode(err) != http.StatusNotFound {
		return res, err
	}

	alt, derr := g.Discover(ctx)
	if derr != nil || alt == "" || alt == strings.TrimPrefix(req.Model, "models/") {
		return nil, err
	}

	zap.L().Warn("llm: model not found, retrying with discovered model",
		zap.String("requested", req.Model),
		zap.String("discovered", alt),
	)
	req.Model = alt
	return g.generate(ctx, req)
}

func (g *Gemini) generate(ctx context.Context, req Request) (*Result, error) {
	temp := req.Temperature
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	resp, err := g.client.GenerateContent(ctx, req.Model, gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role:  "user",
			Parts: []gemini.Part{{Text: req.Prompt}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: maxTokens,
		},
	})
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			return nil, classify(ProviderGemini, apiErr.StatusCode, err)
		}
		return nil, classify(ProviderGemini, 0, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	modelID := req.Model
	if resp.ModelVersion != "" {
		modelID = resp.ModelVersion
	}
	return &Result{
		Text:         text,
		Model:        modelID,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// Discover lists available models and picks the preferred one. The result
// is remembered for the lifetime of the generator.
func (g *Gemini) Discover(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.discovered != "" {
		return g.discovered, nil
	}

	models, err := g.client.ListModels(ctx)
	if err != nil {
		return "", eris.Wrap(err, "llm: list models")
	}
	picked, ok := PickModel(models, g.preferred)
	if !ok {
		return "", eris.New("llm: no model supports generateContent")
	}
	g.discovered = picked
	return picked, nil
}

// Models returns the IDs of all models that support generateContent.
func (g *Gemini) Models(ctx context.Context) ([]string, error) {
	models, err := g.client.ListModels(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "llm: list models")
	}
	var ids []string
	for _, m := range models {
		if m.SupportsGenerate() {
			ids = append(ids, m.ID())
		}
	}
	return ids, nil
}

// PickModel returns the first preferred model that is available and
// supports generateContent. A preferred name also matches versioned IDs
// such as "gemini-1.5-flash-002". Without any preferred match the first
// generate-capable gemini model wins.
func PickModel(models []gemini.Model, preferred []string) (string, bool) {
	var usable []string
	for _, m := range models {
		if m.SupportsGenerate() {
			usable = append(usable, m.ID())
		}
	}

	for _, want := range preferred {
		for _, id := range usable {
			if id == want {
				return id, true
			}
		}
		for _, id := range usable {
			if strings.HasPrefix(id, want+"-") {
				return id, true
			}
		}
	}

	for _, id := range usable {
		if strings.HasPrefix(id, "gemini-") {
			return id, true
		}
	}
	return "", false
}
