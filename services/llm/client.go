// Package llm provides the language-model backends the agent pipeline
// generates text with.
//
// # Design Principles
//
//   - Consumers depend on the LLMClient interface, never on a concrete
//     backend. The backend is chosen once at startup from LLM_BACKEND_TYPE.
//   - Generation parameters are pointers so "unset" and "zero" stay
//     distinguishable; each backend applies its own defaults for unset
//     fields.
//   - Every outbound call is paced by a shared rate limiter so a burst of
//     concurrent sessions cannot exhaust a provider quota.
//
// # Thread Safety
//
// All clients returned by NewFromEnv are safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrUnknownBackend is returned by NewFromEnv when LLM_BACKEND_TYPE names
// a backend this build does not provide.
var ErrUnknownBackend = errors.New("llm: unknown backend")

// GenerationParams carries per-request sampling controls. Nil fields mean
// "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// NewFromEnv builds the configured backend and wraps it with the shared
// rate limiter.
//
// Recognized environment variables:
//
//	LLM_BACKEND_TYPE         openai (default) or ollama
//	LLM_MODEL                model name passed to the backend
//	LLM_REQUESTS_PER_MINUTE  pacing for outbound calls (default 60, 0 disables)
func NewFromEnv() (LLMClient, error) {
	backend := strings.ToLower(getEnvString("LLM_BACKEND_TYPE", "openai"))

	var (
		client LLMClient
		err    error
	)
	switch backend {
	case "openai":
		client, err = NewOpenAIClient()
	case "ollama":
		client, err = NewOllamaClient()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}

	if perMinute := getEnvInt("LLM_REQUESTS_PER_MINUTE", 60); perMinute > 0 {
		client = NewRateLimited(client, perMinute)
	}
	return client, nil
}

// DefaultParams seeds GenerationParams from LLM_TEMPERATURE and
// LLM_MAX_TOKENS. Unset variables leave the corresponding field nil so the
// backend default applies.
func DefaultParams() GenerationParams {
	var params GenerationParams
	if raw := os.Getenv("LLM_TEMPERATURE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 32); err == nil {
			t := float32(v)
			params.Temperature = &t
		}
	}
	if raw := os.Getenv("LLM_MAX_TOKENS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.MaxTokens = &v
		}
	}
	return params
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
