// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Pattern text caps keep extracted snippets prompt-sized.
const (
	buttonPatternCap     = 100
	navigationPatternCap = 150
)

var (
	matButtonRe       = regexp.MustCompile(`(?i)<button[^>]*mat-button[^>]*>`)
	matRaisedButtonRe = regexp.MustCompile(`(?i)<button[^>]*mat-raised-button[^>]*>`)
	reactButtonRe     = regexp.MustCompile(`<Button[^>]*>`)
	nativeButtonRe    = regexp.MustCompile(`(?i)<button[^>]*onClick\s*=\s*\{[^}]*\}[^>]*>`)

	routerNavigateRe = regexp.MustCompile(`(?i)this\.router\.navigate\s*\(\s*\[[^\]]+\]\s*\)`)
	routerLinkRe     = regexp.MustCompile(`(?i)routerLink\s*=\s*["'][^"']+["']`)
	useNavigateRe    = regexp.MustCompile(`(?i)const\s+\w+\s*=\s*useNavigate\s*\(\)`)
	reactLinkRe      = regexp.MustCompile(`<Link[^>]*to\s*=\s*["'][^"']+["']`)
	nextRouterRe     = regexp.MustCompile(`(?i)router\.(push|replace)\s*\(`)

	formGroupRe = regexp.MustCompile(`(?i)\[formGroup\]\s*=\s*["'][^"']+["']`)
	ngModelRe   = regexp.MustCompile(`(?i)\[\(ngModel\)\]\s*=\s*["'][^"']+["']`)
	reactFormRe = regexp.MustCompile(`(?i)<form[^>]*onSubmit\s*=\s*\{[^}]*\}[^>]*>`)
)

// ExtractUIPatterns extracts button, navigation, and form usages from
// js/ts/jsx/tsx source so the editor can reproduce the project's UI
// conventions. The result is nil when nothing matches.
func ExtractUIPatterns(path string, source []byte) *knowledge.UIElements {
	if len(source) == 0 {
		return nil
	}

	src := string(source)
	lower := strings.ToLower(src)
	ext := strings.ToLower(filepath.Ext(path))
	jsx := ext == ".tsx" || ext == ".jsx"
	ui := &knowledge.UIElements{}

	// Buttons. Angular Material variants first, then React component
	// buttons with library inference, then native JSX buttons.
	for _, m := range matButtonRe.FindAllString(src, -1) {
		ui.Buttons = append(ui.Buttons, knowledge.UIPattern{
			Type:    "mat-button",
			Pattern: capLen(m, buttonPatternCap),
			Import:  "@angular/material/button",
		})
	}
	for _, m := range matRaisedButtonRe.FindAllString(src, -1) {
		ui.Buttons = append(ui.Buttons, knowledge.UIPattern{
			Type:    "mat-raised-button",
			Pattern: capLen(m, buttonPatternCap),
			Import:  "@angular/material/button",
		})
	}
	for _, m := range reactButtonRe.FindAllString(src, -1) {
		lib := "@mui/material"
		if strings.Contains(lower, "antd") || strings.Contains(lower, "ant-design") {
			lib = "antd"
		} else if strings.Contains(lower, "chakra") {
			lib = "@chakra-ui/react"
		}
		ui.Buttons = append(ui.Buttons, knowledge.UIPattern{
			Type:    "Button",
			Pattern: capLen(m, buttonPatternCap),
			Import:  lib,
		})
	}
	if jsx {
		for _, m := range nativeButtonRe.FindAllString(src, -1) {
			ui.Buttons = append(ui.Buttons, knowledge.UIPattern{
				Type:    "button",
				Pattern: capLen(m, buttonPatternCap),
			})
		}
	}
	ui.Buttons = dedupeButtons(ui.Buttons)

	// Navigation. Angular matches claim the slot first; useNavigate and
	// the Next.js router take precedence when present.
	if m := routerNavigateRe.FindString(src); m != "" {
		ui.Navigation = &knowledge.UIPattern{
			Pattern: capLen(m, navigationPatternCap),
			Import:  "@angular/router",
		}
	}
	if m := routerLinkRe.FindString(src); m != "" && ui.Navigation == nil {
		ui.Navigation = &knowledge.UIPattern{
			Pattern: capLen(m, navigationPatternCap),
			Import:  "@angular/router",
		}
	}
	if strings.Contains(lower, "usenavigate") && useNavigateRe.MatchString(src) {
		ui.Navigation = &knowledge.UIPattern{
			Pattern: "useNavigate()",
			Import:  "react-router-dom",
		}
	}
	if m := reactLinkRe.FindString(src); m != "" && ui.Navigation == nil {
		ui.Navigation = &knowledge.UIPattern{
			Pattern: capLen(m, navigationPatternCap),
			Import:  "react-router-dom",
		}
	}
	if strings.Contains(lower, "next/router") || strings.Contains(lower, "next/navigation") {
		if m := nextRouterRe.FindStringSubmatch(src); m != nil {
			imp := "next/navigation"
			if strings.Contains(lower, "next/router") {
				imp = "next/router"
			}
			ui.Navigation = &knowledge.UIPattern{
				Pattern: "router." + m[1] + "()",
				Import:  imp,
			}
		}
	}

	// Forms. One entry per style, first match each.
	if m := formGroupRe.FindString(src); m != "" {
		ui.Forms = append(ui.Forms, knowledge.UIPattern{
			Type:    "reactive",
			Pattern: capLen(m, buttonPatternCap),
			Import:  "@angular/forms",
		})
	}
	if m := ngModelRe.FindString(src); m != "" {
		ui.Forms = append(ui.Forms, knowledge.UIPattern{
			Type:    "template-driven",
			Pattern: capLen(m, buttonPatternCap),
			Import:  "@angular/forms",
		})
	}
	if jsx {
		if m := reactFormRe.FindString(src); m != "" {
			ui.Forms = append(ui.Forms, knowledge.UIPattern{
				Type:    "react",
				Pattern: capLen(m, buttonPatternCap),
			})
		}
	}

	if len(ui.Buttons) == 0 && ui.Navigation == nil && len(ui.Forms) == 0 {
		return nil
	}
	return ui
}

// dedupeButtons removes duplicate (type, pattern) pairs, keeping first
// occurrences in order.
func dedupeButtons(buttons []knowledge.UIPattern) []knowledge.UIPattern {
	if len(buttons) < 2 {
		return buttons
	}
	type key struct{ t, p string }
	seen := make(map[key]bool, len(buttons))
	out := buttons[:0]
	for _, b := range buttons {
		k := key{b.Type, b.Pattern}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	return out
}

// capLen truncates s to at most n bytes.
func capLen(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
