package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("atlas.llm.ollama") // Specific tracer name

// Defaults applied when the caller leaves a sampling field unset. Ollama's
// own defaults skew chatty; these keep code-oriented output terse.
const (
	defaultOllamaTemperature = 0.2
	defaultOllamaTopK        = 20
	defaultOllamaTopP        = 0.9
	defaultOllamaMaxTokens   = 8192
)

// OllamaClient generates text against a local Ollama server.
type OllamaClient struct {
	llm   llms.Model
	model string
}

var _ LLMClient = (*OllamaClient)(nil)

// NewOllamaClient reads OLLAMA_BASE_URL (required) and LLM_MODEL.
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("LLM_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		model = "llama3.1"
		slog.Warn("LLM_MODEL not set, defaulting to llama3.1")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		llm:   client,
		model: model,
	}, nil
}

// Generate implements the LLMClient interface.
func (o *OllamaClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	slog.Debug("Generating text via Ollama", "model", o.model)

	opts := []llms.CallOption{
		llms.WithTemperature(defaultOllamaTemperature),
		llms.WithTopK(defaultOllamaTopK),
		llms.WithTopP(defaultOllamaTopP),
		llms.WithMaxTokens(defaultOllamaMaxTokens),
	}
	if params.Temperature != nil {
		opts[0] = llms.WithTemperature(float64(*params.Temperature))
	}
	if params.TopK != nil {
		opts[1] = llms.WithTopK(*params.TopK)
	}
	if params.TopP != nil {
		opts[2] = llms.WithTopP(float64(*params.TopP))
	}
	if params.MaxTokens != nil {
		opts[3] = llms.WithMaxTokens(*params.MaxTokens)
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if strings.Contains(err.Error(), "not found") {
			slog.Warn("Ollama model not found", "model", o.model)
			return "", fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.model, o.model)
		}
		slog.Error("Ollama API call failed", "error", err)
		return "", fmt.Errorf("Ollama API call failed: %w", err)
	}
	return out, nil
}
