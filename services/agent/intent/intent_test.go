// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/AleutianAI/atlas/services/llm"
)

type fakeLLM struct {
	out    string
	err    error
	prompt string
	params llm.GenerationParams
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.prompt = prompt
	f.params = params
	return f.out, f.err
}

func TestExtractParsesLLMJSON(t *testing.T) {
	fake := &fakeLLM{out: `Here is the classification:
{"intent_category": "diagram_request", "intent": "architecture diagram",
 "description": "Draw the service architecture", "diagram_type": "architecture",
 "human_approval": true}`}
	router := NewRouter(fake, nil)

	got := router.Extract(context.Background(), "draw the architecture")
	want := Intent{
		Category:      CategoryDiagram,
		Label:         "architecture diagram",
		Description:   "Draw the service architecture",
		HumanApproval: true,
		DiagramType:   "architecture",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("intent = %+v, want %+v", got, want)
	}
	if fake.params.Temperature == nil || *fake.params.Temperature != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", fake.params.Temperature)
	}
}

func TestExtractFallsBackOnLLMError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("connection refused")}
	router := NewRouter(fake, nil)

	got := router.Extract(context.Background(), "add retries to the payment client")
	if got.Category != CategoryCodeChange {
		t.Fatalf("category = %q, want %q", got.Category, CategoryCodeChange)
	}
	if got.Description != "add retries to the payment client" {
		t.Fatalf("description = %q, want the raw message", got.Description)
	}
}

func TestExtractFallsBackOnUnparsableOutput(t *testing.T) {
	fake := &fakeLLM{out: "I am not sure how to classify that."}
	router := NewRouter(fake, nil)

	got := router.Extract(context.Background(), "which modules handle auth?")
	if got.Category != CategoryInformational {
		t.Fatalf("category = %q, want %q", got.Category, CategoryInformational)
	}
}

func TestExtractNormalizesUnknownCategory(t *testing.T) {
	fake := &fakeLLM{out: `{"intent_category": "chitchat", "intent": "greeting"}`}
	router := NewRouter(fake, nil)

	got := router.Extract(context.Background(), "explain the checkout flow")
	if got.Category != CategoryInformational {
		t.Fatalf("category = %q, want %q", got.Category, CategoryInformational)
	}
	if got.Label != "greeting" {
		t.Fatalf("label = %q, want the model's label preserved", got.Label)
	}
	if got.Description != "explain the checkout flow" {
		t.Fatalf("description = %q, want the raw message", got.Description)
	}
}

func TestExtractWithoutClient(t *testing.T) {
	router := NewRouter(nil, nil)

	got := router.Extract(context.Background(), "rename the User class")
	if got.Category != CategoryCodeChange {
		t.Fatalf("category = %q, want %q", got.Category, CategoryCodeChange)
	}
	if got.Label != string(CategoryCodeChange) {
		t.Fatalf("label = %q, want %q", got.Label, CategoryCodeChange)
	}
}

func TestKeywordCategory(t *testing.T) {
	tests := []struct {
		message string
		want    Category
	}{
		{"draw the architecture please", CategoryDiagram},
		{"I need a diagram of the login flow", CategoryDiagram},
		{"what does the login service depend on?", CategoryInformational},
		{"Which endpoints exist?", CategoryInformational},
		{"list all modules", CategoryInformational},
		{"Explain the payment flow", CategoryInformational},
		{"show me the entry point", CategoryInformational},
		{"rename the User class", CategoryCodeChange},
		{"add logging to checkout", CategoryCodeChange},
	}
	for _, tt := range tests {
		if got := keywordCategory(tt.message); got != tt.want {
			t.Errorf("keywordCategory(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
