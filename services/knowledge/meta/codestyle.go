// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package meta

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// styleSampleSize bounds how many files the style sampler reads.
const styleSampleSize = 20

// indentSampleLines bounds how many leading lines per file feed the
// indentation counter.
const indentSampleLines = 50

var (
	camelCaseRe = regexp.MustCompile(`\b[a-z][a-zA-Z0-9]*\b`)
	pascalRe    = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*\b`)
	snakeRe     = regexp.MustCompile(`\b[a-z_][a-z0-9_]*\b`)

	relativeFromRe = regexp.MustCompile(`from\s+['"]\.\.?/`)
	absoluteFromRe = regexp.MustCompile(`from\s+['"][^./]`)
)

// tabKey marks tab indentation in the indent counter; widths are their
// numeric string.
const tabKey = "tab"

// SampleCodeStyle infers the repository's code style conventions from
// a sample of TypeScript, JavaScript, and Python files: naming
// convention, import style, quote style, indentation width (1 means
// tabs), and semicolon usage. Majority wins per dimension; dimensions
// with no signal keep the defaults (camelCase, mixed, single, 2, true).
func SampleCodeStyle(ctx context.Context, files []scan.File) *knowledge.CodeStyle {
	style := &knowledge.CodeStyle{
		NamingConvention: "camelCase",
		ImportStyle:      "mixed",
		QuoteStyle:       "single",
		Indentation:      2,
		Semicolons:       true,
	}

	naming := newCounter()
	quotes := newCounter()
	indents := newCounter()
	semicolons := newCounter()
	imports := newCounter()

	sampled := 0
	for _, file := range files {
		if sampled >= styleSampleSize || ctx.Err() != nil {
			break
		}
		switch file.Language {
		case scan.LangTypeScript, scan.LangJavaScript, scan.LangPython:
		default:
			continue
		}
		data, err := os.ReadFile(file.AbsPath)
		if err != nil {
			continue
		}
		sampled++
		content := string(data)

		camel := len(camelCaseRe.FindAllStringIndex(content, -1))
		pascal := len(pascalRe.FindAllStringIndex(content, -1))
		snake := len(snakeRe.FindAllStringIndex(content, -1))
		switch {
		case camel > pascal && camel > snake:
			naming.add("camelCase")
		case pascal > snake:
			naming.add("PascalCase")
		case snake > 0:
			naming.add("snake_case")
		}

		if strings.Count(content, "'") > strings.Count(content, `"`) {
			quotes.add("single")
		} else {
			quotes.add("double")
		}

		lines := strings.Split(content, "\n")
		if len(lines) > indentSampleLines {
			lines = lines[:indentSampleLines]
		}
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			leading := len(line) - len(strings.TrimLeft(line, " \t"))
			if leading == 0 {
				continue
			}
			if line[0] == '\t' {
				indents.add(tabKey)
			} else {
				indents.add(strconv.Itoa(leading))
			}
		}

		if strings.Contains(content, ";") {
			semicolons.add("true")
		} else {
			semicolons.add("false")
		}

		relative := len(relativeFromRe.FindAllStringIndex(content, -1))
		absolute := len(absoluteFromRe.FindAllStringIndex(content, -1))
		switch {
		case relative > 0 && absolute > 0:
			imports.add("mixed")
		case absolute > 0:
			imports.add("absolute")
		case relative > 0:
			imports.add("relative")
		}
	}

	if !naming.empty() {
		style.NamingConvention = naming.best()
	}
	if !quotes.empty() {
		style.QuoteStyle = quotes.best()
	}
	if !indents.empty() {
		if best := indents.best(); best == tabKey {
			style.Indentation = 1
		} else if width, err := strconv.Atoi(best); err == nil {
			style.Indentation = width
		}
	}
	if !semicolons.empty() {
		style.Semicolons = semicolons.best() == "true"
	}
	if !imports.empty() {
		style.ImportStyle = imports.best()
	}

	return style
}
