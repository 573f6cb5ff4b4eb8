// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// Base viewport keeps a 16:9 shape at a minimum 2024px width; the
	// resolution multiplier scales it for high-DPI output.
	baseViewportWidth  = 2024
	baseViewportHeight = 1140

	svgWaitTimeout = 10 * time.Second
	settleWait     = 500 * time.Millisecond
	cliTimeout     = 30 * time.Second
	inkTimeout     = 15 * time.Second

	mermaidInkURL = "https://mermaid.ink/img/"
	mermaidCDNURL = "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"
)

// RenderInfo records which renderer produced the diagram content.
type RenderInfo struct {
	Rendered   bool   `json:"rendered"`
	Method     string `json:"method,omitempty"`
	Resolution int    `json:"resolution"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Note       string `json:"note,omitempty"`
}

// renderer turns mermaid source into displayable content.
type renderer interface {
	Render(ctx context.Context, mermaidCode string, resolution int) (string, RenderInfo)
}

// chainRenderer walks the renderer fallback chain: a headless browser
// screenshot, the mmdc CLI, the mermaid.ink service, and finally the raw
// code block. Each step's failure is logged, never surfaced.
type chainRenderer struct {
	logger *slog.Logger
	client *http.Client
}

var _ renderer = (*chainRenderer)(nil)

func newChainRenderer(logger *slog.Logger) *chainRenderer {
	return &chainRenderer{
		logger: logger,
		client: &http.Client{Timeout: inkTimeout},
	}
}

func (r *chainRenderer) Render(ctx context.Context, mermaidCode string, resolution int) (string, RenderInfo) {
	if resolution < 1 {
		resolution = defaultResolution
	}

	content, info, err := r.renderHeadless(ctx, mermaidCode, resolution)
	if err == nil {
		return content, info
	}
	r.logger.Warn("headless browser rendering failed, trying mmdc", "error", err)

	content, info, err = r.renderCLI(ctx, mermaidCode, resolution)
	if err == nil {
		return content, info
	}
	r.logger.Warn("mmdc rendering failed, trying mermaid.ink", "error", err)

	content, info, err = r.renderInk(ctx, mermaidCode)
	if err == nil {
		return content, info
	}
	r.logger.Warn("mermaid.ink rendering failed, returning code block", "error", err)

	return codeBlock(mermaidCode), RenderInfo{Method: "code_block"}
}

// renderHeadless renders the diagram client-side in a headless browser
// and screenshots the result at resolution times the base viewport.
func (r *chainRenderer) renderHeadless(ctx context.Context, mermaidCode string, resolution int) (string, RenderInfo, error) {
	width := baseViewportWidth * resolution
	height := baseViewportHeight * resolution

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", RenderInfo{}, fmt.Errorf("connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("create page: %w", err)
	}

	metrics := proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: float64(resolution),
		Mobile:            false,
	}
	if err := metrics.Call(page); err != nil {
		return "", RenderInfo{}, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(diagramPage(mermaidCode)); err != nil {
		return "", RenderInfo{}, fmt.Errorf("load diagram page: %w", err)
	}

	// Mermaid signals success by inserting an svg; invalid source never
	// produces one and times out here.
	if _, err := page.Timeout(svgWaitTimeout).Element("svg"); err != nil {
		return "", RenderInfo{}, fmt.Errorf("wait for rendered diagram: %w", err)
	}
	_ = page.WaitStable(settleWait)

	shot, err := screenshot(page)
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("screenshot: %w", err)
	}

	return imageMarkdown("image/png", shot), RenderInfo{
		Rendered:   true,
		Method:     "headless_browser",
		Resolution: resolution,
		Width:      width,
		Height:     height,
	}, nil
}

// screenshot captures the diagram element, falling back to the viewport
// when the element lookup fails.
func screenshot(page *rod.Page) ([]byte, error) {
	if el, err := page.Timeout(time.Second).Element(".mermaid"); err == nil {
		if shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0); err == nil {
			return shot, nil
		}
	}
	return page.Screenshot(false, nil)
}

// diagramPage wraps mermaid source in a page that renders it on load.
func diagramPage(mermaidCode string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <script src="` + mermaidCDNURL + `"></script>
  <style>
    body { margin: 0; padding: 20px; background: white; font-family: Arial, sans-serif; }
    .mermaid { display: flex; justify-content: center; align-items: center; }
  </style>
</head>
<body>
  <div class="mermaid">
` + mermaidCode + `
  </div>
  <script>
    mermaid.initialize({ startOnLoad: true, theme: 'default', themeVariables: { fontSize: '16px' } });
  </script>
</body>
</html>`
}

// renderCLI shells out to the mermaid-cli mmdc binary.
func (r *chainRenderer) renderCLI(ctx context.Context, mermaidCode string, resolution int) (string, RenderInfo, error) {
	mmdcPath, err := exec.LookPath("mmdc")
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("mermaid-cli not installed: %w", err)
	}

	width := baseViewportWidth * resolution
	height := baseViewportHeight * resolution

	inFile, err := os.CreateTemp("", "diagram-*.mmd")
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("create input file: %w", err)
	}
	defer os.Remove(inFile.Name())
	if _, err := inFile.WriteString(mermaidCode); err != nil {
		inFile.Close()
		return "", RenderInfo{}, fmt.Errorf("write input file: %w", err)
	}
	if err := inFile.Close(); err != nil {
		return "", RenderInfo{}, fmt.Errorf("close input file: %w", err)
	}

	outFile, err := os.CreateTemp("", "diagram-*.png")
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("create output file: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	cctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	args := []string{
		"-i", inFile.Name(),
		"-o", outPath,
		"-w", strconv.Itoa(width),
		"-H", strconv.Itoa(height),
		"-b", "white",
	}
	if resolution > 1 {
		// Newer mmdc versions take a scale flag; retry without it when
		// the installed one rejects it.
		scaled := exec.CommandContext(cctx, mmdcPath, append(args, "-s", strconv.Itoa(resolution))...)
		if combined, err := scaled.CombinedOutput(); err == nil {
			return cliResult(outPath, width, height, resolution)
		} else {
			r.logger.Debug("mmdc scale flag rejected, retrying without it",
				"error", err, "output", strings.TrimSpace(string(combined)))
		}
	}

	cmd := exec.CommandContext(cctx, mmdcPath, args...)
	if combined, err := cmd.CombinedOutput(); err != nil {
		return "", RenderInfo{}, fmt.Errorf("mmdc failed: %w: %s", err, strings.TrimSpace(string(combined)))
	}

	return cliResult(outPath, width, height, resolution)
}

func cliResult(outPath string, width, height, resolution int) (string, RenderInfo, error) {
	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("read rendered image: %w", err)
	}
	return imageMarkdown("image/png", data), RenderInfo{
		Rendered:   true,
		Method:     "mermaid_cli",
		Resolution: resolution,
		Width:      width,
		Height:     height,
	}, nil
}

// renderInk asks the mermaid.ink service to render the diagram. Output
// is whatever resolution the service picks, so it is marked low-res.
func (r *chainRenderer) renderInk(ctx context.Context, mermaidCode string) (string, RenderInfo, error) {
	encoded := base64.URLEncoding.EncodeToString([]byte(mermaidCode))

	cctx, cancel := context.WithTimeout(ctx, inkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, mermaidInkURL+encoded, nil)
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("mermaid.ink request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", RenderInfo{}, fmt.Errorf("mermaid.ink returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", RenderInfo{}, fmt.Errorf("read mermaid.ink response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/svg+xml"
	}

	return imageMarkdown(contentType, data), RenderInfo{
		Rendered:   true,
		Method:     "mermaid_ink",
		Resolution: 1,
		Note:       "low_resolution",
	}, nil
}

// imageMarkdown inlines an image as a markdown data URI.
func imageMarkdown(contentType string, data []byte) string {
	return "![Diagram](data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data) + ")"
}

func codeBlock(mermaidCode string) string {
	return "```mermaid\n" + mermaidCode + "\n```"
}
