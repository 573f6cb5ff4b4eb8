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
	"path/filepath"
	"regexp"
	"strings"
)

// frameworkPackages maps framework names to the npm package whose
// presence confirms the framework and whose version is reported.
var frameworkPackages = map[string]string{
	"angular": "@angular/core",
	"react":   "react",
	"vue":     "vue",
	"nextjs":  "next",
	"nestjs":  "@nestjs/core",
	"express": "express",
	"fastify": "fastify",
	"koa":     "koa",
	"fastapi": "fastapi",
	"flask":   "flask",
	"django":  "django",
}

// goFrameworkPackages maps Go module paths to framework names.
var goFrameworkPackages = map[string]string{
	"github.com/gin-gonic/gin":    "gin",
	"github.com/labstack/echo/v4": "echo",
	"github.com/gofiber/fiber/v2": "fiber",
	"github.com/go-chi/chi/v5":    "chi",
}

// projectFrameworkOrder fixes the output order of detected frameworks.
var projectFrameworkOrder = []string{
	"angular", "react", "vue", "nextjs", "nestjs", "express", "fastify",
	"koa", "fastapi", "flask", "django", "spring-boot", "gin", "echo",
	"fiber", "chi",
}

// DetectProjectFrameworks detects the frameworks a repository uses from
// its dependency manifests: package.json dependencies, requirements.txt
// packages, spring-boot references in pom.xml / build.gradle, and
// go.mod requires.
func DetectProjectFrameworks(root string) []string {
	found := make(map[string]bool, 4)

	if pkg := readPackageJSON(root); pkg != nil {
		deps := pkg.allDependencies()
		for framework, packageName := range frameworkPackages {
			if _, ok := deps[packageName]; ok {
				found[framework] = true
			}
		}
	}

	for name := range parseRequirements(root) {
		switch strings.ToLower(name) {
		case "flask":
			found["flask"] = true
		case "fastapi":
			found["fastapi"] = true
		case "django":
			found["django"] = true
		}
	}

	for _, manifest := range []string{"pom.xml", "build.gradle", "build.gradle.kts"} {
		if data, ok := readFile(root, manifest); ok {
			if strings.Contains(strings.ToLower(string(data)), "spring-boot") {
				found["spring-boot"] = true
			}
		}
	}

	if mod := readGoMod(root); mod != nil {
		for _, req := range mod.Require {
			if req.Indirect {
				continue
			}
			if framework, ok := goFrameworkPackages[req.Mod.Path]; ok {
				found[framework] = true
			}
		}
	}

	var frameworks []string
	for _, name := range projectFrameworkOrder {
		if found[name] {
			frameworks = append(frameworks, name)
		}
	}
	return frameworks
}

// ===== Per-file detection =====

// Confidence scoring: each framework accumulates integer indicators
// (strong signals score 2), then confidence = baseline + step per
// indicator, capped. The highest-confidence framework wins when it
// clears minFrameworkConfidence.
const minFrameworkConfidence = 0.3

var (
	angularImportRe = regexp.MustCompile(`(?i)import.*@angular/`)
	angularFromRe   = regexp.MustCompile(`(?i)from ['"]@angular/`)
	reactImportRe   = regexp.MustCompile(`(?i)import.*from ['"]react['"]`)
	reactAPIRe      = regexp.MustCompile(`(?i)react\.(createelement|component)`)
	vueFromRe       = regexp.MustCompile(`(?i)from ['"]vue['"]`)
	nestRefRe       = regexp.MustCompile(`(?i)@nestjs/`)
	nestImportRe    = regexp.MustCompile(`(?i)import.*@nestjs/`)
	flaskImportRe   = regexp.MustCompile(`(?i)from flask import`)
	flaskRouteRe    = regexp.MustCompile(`(?i)@app\.route\(`)
	fastapiImportRe = regexp.MustCompile(`(?i)from fastapi import`)
	fastapiAppRe    = regexp.MustCompile(`(?i)@app\.(get|post|put|delete)\(`)
	fastapiRouterRe = regexp.MustCompile(`(?i)@router\.(get|post|put|delete)\(`)
	springImportRe  = regexp.MustCompile(`(?i)import org\.springframework`)
)

// DetectFileFramework detects the framework one file belongs to, with a
// confidence score in [0,1].
//
// Description:
//
//	Scores framework indicators found in the file's source text,
//	extension, and decorator names (already extracted by the ast
//	normalizers), then returns the best framework when its confidence
//	clears the minimum threshold. Ties go to the framework evaluated
//	first (angular, react, vue, nestjs, nextjs, flask, fastapi,
//	spring-boot).
//
// Inputs:
//
//	path - File path (extension and name feed the scoring)
//	source - File content
//	decorators - Decorator names without @ or arguments, may be nil
//
// Outputs:
//
//	string - Framework name, or "" when nothing scores
//	float64 - Confidence, 0 when nothing scores
func DetectFileFramework(path string, source []byte, decorators []string) (string, float64) {
	if len(source) == 0 {
		return "", 0
	}

	src := string(source)
	lower := strings.ToLower(src)
	ext := strings.ToLower(filepath.Ext(path))

	type score struct {
		framework  string
		confidence float64
	}
	var scores []score
	record := func(framework string, indicators int, base, step, limit float64) {
		if indicators <= 0 {
			return
		}
		confidence := base + float64(indicators)*step
		if confidence > limit {
			confidence = limit
		}
		scores = append(scores, score{framework, confidence})
	}

	// Angular.
	n := 0
	if strings.Contains(lower, "@component") || strings.Contains(lower, "@ngmodule") {
		n += 2
	}
	if strings.Contains(lower, "@injectable") {
		n++
	}
	if strings.Contains(lower, "@input") || strings.Contains(lower, "@output") {
		n++
	}
	if angularImportRe.MatchString(src) {
		n += 2
	}
	if angularFromRe.MatchString(src) {
		n += 2
	}
	if ext == ".ts" && strings.Contains(strings.ToLower(path), "component") && n > 0 {
		n++
	}
	for _, d := range decorators {
		switch strings.ToLower(d) {
		case "component", "ngmodule":
			n += 2
		case "injectable":
			n++
		}
	}
	record("angular", n, 0.5, 0.1, 0.98)

	// React.
	n = 0
	if reactImportRe.MatchString(src) {
		n += 2
	}
	if strings.Contains(lower, "usestate") || strings.Contains(lower, "useeffect") {
		n += 2
	}
	if strings.Contains(lower, "usecallback") || strings.Contains(lower, "usememo") {
		n++
	}
	if ext == ".tsx" || ext == ".jsx" {
		n += 2
	}
	if reactAPIRe.MatchString(src) {
		n++
	}
	if strings.Contains(lower, "react.fc") || strings.Contains(lower, "react.functioncomponent") {
		n++
	}
	record("react", n, 0.4, 0.12, 0.95)

	// Vue.
	n = 0
	if ext == ".vue" {
		n += 3
	}
	if strings.Contains(lower, "definecomponent") {
		n += 2
	}
	if vueFromRe.MatchString(src) {
		n += 2
	}
	if strings.Contains(lower, "<template>") && strings.Contains(lower, "<script") {
		n++
	}
	if strings.Contains(lower, "onmounted") || strings.Contains(lower, "onunmounted") {
		n++
	}
	record("vue", n, 0.6, 0.1, 0.98)

	// NestJS.
	n = 0
	if strings.Contains(lower, "@controller") {
		n += 2
	}
	if strings.Contains(lower, "@injectable") && !strings.Contains(lower, "@controller") {
		n++
	}
	if strings.Contains(lower, "@module") {
		n += 2
	}
	if nestRefRe.MatchString(src) {
		n += 2
	}
	if nestImportRe.MatchString(src) {
		n += 2
	}
	for _, d := range decorators {
		switch strings.ToLower(d) {
		case "controller", "module":
			n += 2
		case "injectable":
			n++
		}
	}
	record("nestjs", n, 0.5, 0.1, 0.98)

	// Next.js, distinguished from plain React by its router imports.
	n = 0
	if strings.Contains(lower, "next/router") || strings.Contains(lower, "next/link") {
		n += 2
	}
	if strings.Contains(lower, "next/navigation") {
		n += 2
	}
	if strings.Contains(lower, "userouter") && strings.Contains(lower, "next") {
		n++
	}
	record("nextjs", n, 0.5, 0.15, 0.95)

	// Flask.
	n = 0
	if flaskImportRe.MatchString(src) {
		n += 2
	}
	if flaskRouteRe.MatchString(src) {
		n += 2
	}
	if strings.Contains(lower, "flask(") || strings.Contains(lower, "flask import") {
		n++
	}
	record("flask", n, 0.5, 0.15, 0.95)

	// FastAPI.
	n = 0
	if fastapiImportRe.MatchString(src) {
		n += 2
	}
	if fastapiAppRe.MatchString(src) {
		n += 2
	}
	if fastapiRouterRe.MatchString(src) {
		n += 2
	}
	record("fastapi", n, 0.5, 0.15, 0.95)

	// Spring Boot.
	n = 0
	if strings.Contains(lower, "@restcontroller") || strings.Contains(lower, "@controller") {
		n += 2
	}
	if strings.Contains(lower, "@service") {
		n++
	}
	if strings.Contains(lower, "@repository") {
		n++
	}
	if springImportRe.MatchString(src) {
		n += 2
	}
	record("spring-boot", n, 0.5, 0.12, 0.95)

	best := score{}
	for _, s := range scores {
		if s.confidence > best.confidence {
			best = s
		}
	}
	if best.confidence >= minFrameworkConfidence {
		return best.framework, best.confidence
	}
	return "", 0
}
