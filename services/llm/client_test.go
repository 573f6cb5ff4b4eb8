// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"testing"
)

// mockClient records the last call so tests can assert delegation.
type mockClient struct {
	calls  int
	prompt string
	params GenerationParams
	out    string
	err    error
}

func (m *mockClient) Generate(_ context.Context, prompt string, params GenerationParams) (string, error) {
	m.calls++
	m.prompt = prompt
	m.params = params
	return m.out, m.err
}

func TestNewFromEnvSelectsOpenAI(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "gpt-4o")

	client, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := client.(*rateLimitedClient); !ok {
		t.Fatalf("expected rate-limited wrapper, got %T", client)
	}
}

func TestNewFromEnvDefaultsToOpenAI(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "gpt-4o")

	if _, err := NewFromEnv(); err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
}

func TestNewFromEnvSelectsOllama(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	t.Setenv("LLM_MODEL", "llama3.1")

	if _, err := NewFromEnv(); err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
}

func TestNewFromEnvOllamaRequiresBaseURL(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error when OLLAMA_BASE_URL is unset")
	}
}

func TestNewFromEnvUnknownBackend(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "bedrock")

	_, err := NewFromEnv()
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNewFromEnvLimiterDisabled(t *testing.T) {
	t.Setenv("LLM_BACKEND_TYPE", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("LLM_REQUESTS_PER_MINUTE", "0")

	client, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := client.(*OpenAIClient); !ok {
		t.Fatalf("expected bare backend when limiter disabled, got %T", client)
	}
}

func TestDefaultParams(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("LLM_MAX_TOKENS", "2048")

	params := DefaultParams()
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 2048 {
		t.Fatalf("max tokens = %v, want 2048", params.MaxTokens)
	}
}

func TestDefaultParamsUnset(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "")
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	params := DefaultParams()
	if params.Temperature != nil {
		t.Fatalf("temperature = %v, want nil", params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Fatalf("max tokens = %v, want nil", params.MaxTokens)
	}
}

func TestRateLimitedDelegates(t *testing.T) {
	inner := &mockClient{out: "generated"}
	client := NewRateLimited(inner, 600)

	maxTokens := 128
	out, err := client.Generate(context.Background(), "hello", GenerationParams{MaxTokens: &maxTokens})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "generated" {
		t.Fatalf("output = %q, want %q", out, "generated")
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if inner.prompt != "hello" {
		t.Fatalf("prompt = %q, want %q", inner.prompt, "hello")
	}
	if inner.params.MaxTokens == nil || *inner.params.MaxTokens != 128 {
		t.Fatalf("params not forwarded: %+v", inner.params)
	}
}

func TestRateLimitedPropagatesErrors(t *testing.T) {
	innerErr := errors.New("backend down")
	inner := &mockClient{err: innerErr}
	client := NewRateLimited(inner, 600)

	_, err := client.Generate(context.Background(), "hello", GenerationParams{})
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestRateLimitedHonorsCancelledContext(t *testing.T) {
	inner := &mockClient{out: "generated"}
	client := NewRateLimited(inner, 600)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Generate(ctx, "hello", GenerationParams{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if inner.calls != 0 {
		t.Fatalf("inner calls = %d, want 0", inner.calls)
	}
}

func TestGetEnvIntFallback(t *testing.T) {
	t.Setenv("LLM_TEST_INT", "garbage")
	if got := getEnvInt("LLM_TEST_INT", 42); got != 42 {
		t.Fatalf("getEnvInt = %d, want 42", got)
	}
	t.Setenv("LLM_TEST_INT", "7")
	if got := getEnvInt("LLM_TEST_INT", 42); got != 7 {
		t.Fatalf("getEnvInt = %d, want 7", got)
	}
}
