// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan turns a classified intent and its impact analysis into an
// ordered list of file-level tasks for the code editor.
//
// # Design Principles
//
//   - Planning prefers the LLM but never depends on it: a missing model,
//     a failed call, or an unparseable completion all degrade to a
//     deterministic plan over the first impacted files, so the pipeline
//     always has tasks to execute.
//   - Framework invariants are enforced after generation, not trusted to
//     the prompt: an Angular plan never carries .tsx/.jsx/.vue paths and
//     a Flask plan never carries Angular component files.
//
// # Thread Safety
//
// Planner is safe for concurrent use.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/llm"
)

const (
	// planTemperature keeps task decomposition conservative.
	planTemperature = float32(0.3)
	planMaxTokens   = 2000

	// maxPromptModules caps the module summaries quoted in the prompt.
	maxPromptModules = 10

	// fallbackTaskCap bounds the deterministic plan.
	fallbackTaskCap = 5

	defaultTaskTime = "30min"
)

var (
	// jsonObjectRe grabs the outermost JSON object in a completion,
	// tolerating prose the model wraps around it.
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

	// taskLineRe recognizes a numbered task line in a plain-text plan.
	taskLineRe = regexp.MustCompile(`^\d+\.`)

	// fileRefRe pulls a file path out of a plain-text plan line; longest
	// extensions first so "App.tsx" is not cut to "App.ts".
	fileRefRe = regexp.MustCompile(`[\w/]+\.(?:tsx|ts|jsx|js|py|java|cs)`)
)

// Task is one ordered unit of work in a change plan.
type Task struct {
	TaskID        int      `json:"task_id"`
	Task          string   `json:"task"`
	Files         []string `json:"files"`
	Changes       []string `json:"changes"`
	Tests         []string `json:"tests"`
	Notes         string   `json:"notes"`
	EstimatedTime string   `json:"estimated_time"`
}

// ImpactSummary echoes the impact numbers the plan was sized against.
type ImpactSummary struct {
	FileCount   int         `json:"file_count"`
	ModuleCount int         `json:"module_count"`
	RiskScore   impact.Risk `json:"risk_score"`
}

// Plan is the ordered task list handed to the editor and the approval
// gate.
type Plan struct {
	PlanID             string        `json:"plan_id"`
	Tasks              []Task        `json:"tasks"`
	TotalEstimatedTime string        `json:"total_estimated_time"`
	MigrationRequired  bool          `json:"migration_required"`
	Intent             intent.Intent `json:"intent"`
	ImpactSummary      ImpactSummary `json:"impact_summary"`
}

// llmPlan is the shape the model is asked to return.
type llmPlan struct {
	Tasks              []Task `json:"tasks"`
	TotalEstimatedTime string `json:"total_estimated_time"`
	MigrationRequired  bool   `json:"migration_required"`
}

// Planner generates change plans.
type Planner struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewPlanner builds a Planner. client may be nil; every plan is then the
// deterministic fallback.
func NewPlanner(client llm.LLMClient, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// GeneratePlan produces the task list for a change. g grounds the prompt
// in module summaries and project conventions and may be nil; repoPath
// is used for structural framework detection when the graph does not
// name one and may be empty. GeneratePlan never fails.
func (p *Planner) GeneratePlan(ctx context.Context, in intent.Intent, imp impact.Result, constraints []string, g *knowledge.Graph, repoPath string) Plan {
	framework := detectFramework(g, repoPath)

	if p.client == nil {
		p.logger.Warn("no LLM configured, using fallback plan")
		return p.fallbackPlan(in, imp)
	}

	prompt := planPrompt(in, imp, constraints, g, framework)
	out, err := p.generate(ctx, prompt)
	if err != nil {
		p.logger.Error("LLM planning failed", "error", err)
		return p.fallbackPlan(in, imp)
	}

	var parsed llmPlan
	if m := jsonObjectRe.FindString(out); m != "" {
		if err := json.Unmarshal([]byte(m), &parsed); err != nil {
			p.logger.Error("plan response is not valid JSON", "error", err)
			return p.fallbackPlan(in, imp)
		}
	} else {
		parsed = parsePlanText(out)
	}

	return p.normalize(parsed, in, imp, framework)
}

func (p *Planner) generate(ctx context.Context, prompt string) (string, error) {
	temp := planTemperature
	maxTokens := planMaxTokens
	return p.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
}

// normalize assigns task IDs, fills defaults, enforces the framework
// file-extension invariants, and infers the migration flag from task
// notes when the model left it unset.
func (p *Planner) normalize(parsed llmPlan, in intent.Intent, imp impact.Result, framework string) Plan {
	tasks := make([]Task, 0, len(parsed.Tasks))
	for i, t := range parsed.Tasks {
		t.TaskID = i + 1
		if t.Task == "" {
			t.Task = fmt.Sprintf("Task %d", i+1)
		}
		if t.EstimatedTime == "" {
			t.EstimatedTime = defaultTaskTime
		}
		enforceFrameworkFiles(&t, framework)
		tasks = append(tasks, t)
	}

	migration := parsed.MigrationRequired
	if !migration {
		for _, t := range tasks {
			notes := strings.ToLower(t.Notes)
			if strings.Contains(notes, "migration") ||
				strings.Contains(notes, "database") ||
				strings.Contains(notes, "schema") {
				migration = true
				break
			}
		}
	}

	total := parsed.TotalEstimatedTime
	if total == "" {
		total = fmt.Sprintf("%dmin", len(tasks)*30)
	}

	return Plan{
		PlanID:             uuid.NewString(),
		Tasks:              tasks,
		TotalEstimatedTime: total,
		MigrationRequired:  migration,
		Intent:             in,
		ImpactSummary:      summarize(imp),
	}
}

// parsePlanText recovers tasks from a completion that ignored the JSON
// instruction: numbered lines open tasks, and indented detail lines feed
// their files, changes, and tests.
func parsePlanText(text string) llmPlan {
	var tasks []Task
	var current *Task

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if taskLineRe.MatchString(line) {
			if current != nil {
				tasks = append(tasks, *current)
			}
			current = &Task{
				Task:          strings.TrimSpace(taskLineRe.ReplaceAllString(line, "")),
				EstimatedTime: defaultTaskTime,
			}
			continue
		}
		if current == nil {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "file") || strings.Contains(line, ".py") || strings.Contains(line, ".ts"):
			if f := fileRefRe.FindString(line); f != "" {
				current.Files = append(current.Files, f)
			}
		case strings.Contains(lower, "change") || strings.Contains(lower, "add") || strings.Contains(lower, "update"):
			current.Changes = append(current.Changes, line)
		case strings.Contains(lower, "test"):
			current.Tests = append(current.Tests, line)
		}
	}
	if current != nil {
		tasks = append(tasks, *current)
	}

	return llmPlan{Tasks: tasks}
}

// fallbackPlan slices the first impacted files into single-file tasks so
// the pipeline has a plan even without a model.
func (p *Planner) fallbackPlan(in intent.Intent, imp impact.Result) Plan {
	files := imp.ImpactedFiles
	if len(files) > fallbackTaskCap {
		files = files[:fallbackTaskCap]
	}

	tasks := make([]Task, 0, len(files))
	for i, file := range files {
		tasks = append(tasks, Task{
			TaskID:        i + 1,
			Task:          "Modify " + path.Base(file),
			Files:         []string{file},
			Changes:       []string{"Apply changes as per intent: " + in.Description},
			EstimatedTime: defaultTaskTime,
		})
	}

	return Plan{
		PlanID:             uuid.NewString(),
		Tasks:              tasks,
		TotalEstimatedTime: fmt.Sprintf("%dmin", len(tasks)*30),
		Intent:             in,
		ImpactSummary:      summarize(imp),
	}
}

func summarize(imp impact.Result) ImpactSummary {
	risk := imp.RiskScore
	if risk == "" {
		risk = impact.RiskMedium
	}
	return ImpactSummary{
		FileCount:   imp.FileCount,
		ModuleCount: imp.ModuleCount,
		RiskScore:   risk,
	}
}
