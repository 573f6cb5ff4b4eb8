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
	"path/filepath"
	"regexp"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// topPatternCount bounds the common-import and back-button lists.
const topPatternCount = 10

// routingConfigNames are the well-known routing configuration files,
// checked at the repository root, src/, and src/app/.
var routingConfigNames = []string{
	"app-routing.module.ts",
	"app.routes.ts",
	"routes.tsx",
	"routes.jsx",
	"router.js",
	"router.ts",
	"urls.py",
}

// backNavigationPatterns match back-navigation idioms across
// frameworks. The pattern text is reported as written; matching is
// case-insensitive.
var backNavigationPatterns = []string{
	`router\.back\(`,
	`history\.back\(`,
	`location\.back\(`,
	`navigate\(-1\)`,
	`router\.go\(-1\)`,
}

var backNavigationRes = compileBackNavigation()

func compileBackNavigation() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(backNavigationPatterns))
	for i, pattern := range backNavigationPatterns {
		res[i] = regexp.MustCompile(`(?i)` + pattern)
	}
	return res
}

// AggregateUIPatterns summarizes project-wide UI conventions from the
// per-module UI elements plus a source scan for back-navigation
// idioms: the dominant button import and navigation pattern, the
// top-10 button imports with frequency, the routing configuration
// file, and the top back-button patterns.
//
// Both results are nil when the project has no corresponding signal.
func AggregateUIPatterns(ctx context.Context, root string, files []scan.File, modules []knowledge.Module) (*knowledge.UIPatternSummary, *knowledge.NavigationPatterns) {
	buttonImports := newCounter()
	navPatterns := newCounter()

	for i := range modules {
		ui := modules[i].UIElements
		if ui == nil {
			continue
		}
		for _, button := range ui.Buttons {
			if button.Import != "" {
				buttonImports.add(button.Import)
			}
		}
		if ui.Navigation != nil && ui.Navigation.Pattern != "" {
			navPatterns.add(ui.Navigation.Pattern)
		}
	}

	summary := &knowledge.UIPatternSummary{
		ButtonComponent:   buttonImports.best(),
		NavigationPattern: navPatterns.best(),
		RoutingConfig:     findRoutingConfig(root),
	}
	if !buttonImports.empty() {
		summary.CommonImports = buttonImports.top(topPatternCount)
	}

	var navigation *knowledge.NavigationPatterns
	if back := countBackNavigation(ctx, files); len(back) > 0 {
		navigation = &knowledge.NavigationPatterns{BackButtonPatterns: back}
	}

	if summary.ButtonComponent == "" && summary.NavigationPattern == "" &&
		summary.RoutingConfig == "" && len(summary.CommonImports) == 0 {
		summary = nil
	}
	return summary, navigation
}

// findRoutingConfig returns the repo-relative path of the first
// routing configuration file found, or "".
func findRoutingConfig(root string) string {
	locations := []string{"", "src", filepath.Join("src", "app")}
	for _, name := range routingConfigNames {
		for _, location := range locations {
			rel := filepath.Join(location, name)
			if fileExists(root, rel) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return ""
}

// countBackNavigation counts back-navigation pattern matches across
// the project's TypeScript and JavaScript sources.
func countBackNavigation(ctx context.Context, files []scan.File) []knowledge.PatternFrequency {
	counts := newCounter()
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if file.Language != scan.LangTypeScript && file.Language != scan.LangJavaScript {
			continue
		}
		data, err := os.ReadFile(file.AbsPath)
		if err != nil {
			continue
		}
		content := string(data)
		for i, re := range backNavigationRes {
			if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
				counts.inc(backNavigationPatterns[i], n)
			}
		}
	}
	if counts.empty() {
		return nil
	}
	return counts.top(topPatternCount)
}
