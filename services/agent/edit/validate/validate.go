// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate screens LLM-proposed file content before the editor
// writes it into the working tree.
//
// # Design Principles
//
//   - The unit of validation is the full proposed file, not a patch.
//     The editor always holds the complete end state, so syntax is
//     checked by parsing exactly what would land on disk.
//   - Syntax failures are errors and always block. Dangerous patterns
//     and secrets are warnings; a warning blocks only when the pattern
//     marks it blocking and the config keeps BlockDangerous on.
//   - Findings carry file, line, severity, and a suggestion so they
//     can be surfaced to the user verbatim.
//
// # Thread Safety
//
// Validator is safe for concurrent use. Parsers are created per call.
package validate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// Validator checks proposed file content for syntax errors, dangerous
// patterns, and hardcoded secrets.
type Validator struct {
	config  Config
	ast     *astScanner
	secrets *secretScanner
}

// New builds a Validator. It fails only when a secret pattern in the
// database does not compile.
func New(config Config) (*Validator, error) {
	secrets, err := newSecretScanner(config)
	if err != nil {
		return nil, fmt.Errorf("validate: compiling secret patterns: %w", err)
	}
	return &Validator{
		config:  config,
		ast:     newASTScanner(),
		secrets: secrets,
	}, nil
}

// Check validates content destined for path (repo-relative, used for
// language detection and reporting). The returned result is the
// verdict; the error reports a pipeline failure, not invalid content.
func (v *Validator) Check(ctx context.Context, path string, content []byte) (*Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &Result{
		Valid:          true,
		PatternVersion: PatternVersion,
		ValidatedAt:    time.Now(),
	}

	language := detectLanguage(path)
	if language != "" {
		if err := checkSyntax(ctx, content, language, path, result); err != nil {
			return nil, err
		}

		warnings, err := v.ast.scan(ctx, content, language, path)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)
		result.Warnings = append(result.Warnings, scanSQLConcat(content, path)...)
	}

	result.Warnings = append(result.Warnings, v.secrets.scan(content, path)...)

	v.verdict(result)
	return result, nil
}

// verdict folds blocking warnings into the valid flag.
func (v *Validator) verdict(result *Result) {
	if !result.Valid {
		return
	}
	if v.config.WarnOnly || !v.config.BlockDangerous {
		return
	}
	for _, w := range result.Warnings {
		if w.Blocking {
			result.Valid = false
			return
		}
	}
}

// checkSyntax parses content with the language grammar and records a
// syntax error when the tree contains ERROR or MISSING nodes.
func checkSyntax(ctx context.Context, content []byte, language, path string, result *Result) error {
	lang := grammarFor(language)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", language, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !hasSyntaxError(root) {
		return nil
	}

	line := 0
	if errNode := firstError(root); errNode != nil {
		line = int(errNode.StartPoint().Row) + 1
	}
	result.Valid = false
	result.Errors = append(result.Errors, Error{
		Type:    ErrorTypeSyntax,
		File:    path,
		Line:    line,
		Message: "Syntax error in proposed content",
	})
	return nil
}

func hasSyntaxError(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.IsError() || node.IsMissing() {
		return true
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if hasSyntaxError(node.Child(int(i))) {
			return true
		}
	}
	return false
}

func firstError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if err := firstError(node.Child(int(i))); err != nil {
			return err
		}
	}
	return nil
}

// detectLanguage maps a file extension to the grammar name, or ""
// when the file is not a language the validator parses.
func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py", ".pyi":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	default:
		return ""
	}
}
