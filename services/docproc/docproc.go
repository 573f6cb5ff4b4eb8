// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docproc is the document-processing boundary: it turns an
// uploaded text document into structured content (sections, tables,
// image references) and retrieval-sized chunks.
//
// The chunker is langchaingo's recursive character splitter with
// separator sets chosen by file extension, so markdown splits on
// headings and source code splits on definitions.
package docproc

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults for the chunker. Overlap is 10% of the chunk size.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = DefaultChunkSize / 10
)

var (
	defaultSeparators = []string{"\n\n", "\n", " ", ""}
	pythonSeparators  = []string{"\nclass ", "\ndef ", "\n\t", "\n", " "}
	cStyleSeparators  = []string{
		"\nfunction ", "\nclass ", "\ninterface ",
		"\npublic ", "\nprivate ", "\nprotected ",
		"\nfunc", "\ntype",
		"\n\n", "\n", " ", "",
	}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// Options controls one processing run.
type Options struct {
	// OCR requests optical character recognition. Not supported for
	// text input; recorded in the metadata so clients see it was
	// ignored rather than silently applied.
	OCR bool `json:"ocr"`

	// OutputFormat selects the content rendering: "markdown" (default)
	// or "text" (markdown markers stripped).
	OutputFormat string `json:"output_format"`

	ExtractTables bool `json:"extract_tables"`
	ExtractImages bool `json:"extract_images"`

	// ChunkSize and ChunkOverlap size the splitter; zero selects the
	// defaults.
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// Metadata describes the processed document.
type Metadata struct {
	Filename    string `json:"filename"`
	SizeBytes   int    `json:"size_bytes"`
	ContentType string `json:"content_type"`
	ProcessedAt string `json:"processed_at"`
	OCRApplied  bool   `json:"ocr_applied"`
	ChunkCount  int    `json:"chunk_count"`
}

// Section is one heading-delimited region of the document.
type Section struct {
	Title   string `json:"title"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

// Table is one extracted markdown table.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Image is a reference to an embedded image.
type Image struct {
	Alt string `json:"alt"`
	URL string `json:"url"`
}

// Document is the processing result.
type Document struct {
	Metadata Metadata  `json:"metadata"`
	Content  string    `json:"content"`
	Sections []Section `json:"sections,omitempty"`
	Tables   []Table   `json:"tables,omitempty"`
	Images   []Image   `json:"images,omitempty"`
	Chunks   []string  `json:"chunks,omitempty"`
}

// Processor processes uploaded documents.
type Processor struct {
	logger *slog.Logger
}

// New builds a Processor.
func New(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// Process runs the extraction pipeline over content.
func (p *Processor) Process(filename string, content []byte, opts Options) (Document, error) {
	if !utf8.Valid(content) {
		return Document{}, fmt.Errorf("docproc: %s is not valid UTF-8 text", filename)
	}
	text := string(content)

	if opts.OCR {
		p.logger.Warn("OCR requested but not supported for text input", "filename", filename)
	}

	doc := Document{
		Metadata: Metadata{
			Filename:    filename,
			SizeBytes:   len(content),
			ContentType: contentType(filename),
			ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Content:  text,
		Sections: extractSections(text),
	}
	if opts.OutputFormat == "text" {
		doc.Content = stripMarkdown(text)
	}
	if opts.ExtractTables {
		doc.Tables = extractTables(text)
	}
	if opts.ExtractImages {
		doc.Images = extractImages(text)
	}

	chunks, err := p.chunk(filename, text, opts)
	if err != nil {
		return Document{}, err
	}
	doc.Chunks = chunks
	doc.Metadata.ChunkCount = len(chunks)
	return doc, nil
}

// chunk splits text with extension-appropriate separators.
func (p *Processor) chunk(filename, text string, opts Options) ([]string, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap <= 0 {
		overlap = size / 10
	}
	if overlap >= size {
		return nil, fmt.Errorf("docproc: chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separatorsFor(filename)),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("docproc: splitting %s: %w", filename, err)
	}
	return chunks, nil
}

func separatorsFor(filename string) []string {
	switch filepath.Ext(strings.ToLower(filename)) {
	case ".md", ".markdown":
		return markdownSeparators
	case ".py":
		return pythonSeparators
	case ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".go", ".cs":
		return cStyleSeparators
	default:
		return defaultSeparators
	}
}

func contentType(filename string) string {
	switch filepath.Ext(strings.ToLower(filename)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// extractSections splits on markdown headings. Text before the first
// heading becomes an untitled level-0 section.
func extractSections(text string) []Section {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var sections []Section
	if lead := strings.TrimSpace(text[:matches[0][0]]); lead != "" {
		sections = append(sections, Section{Content: lead})
	}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Title:   strings.TrimSpace(text[m[4]:m[5]]),
			Level:   m[3] - m[2],
			Content: strings.TrimSpace(text[m[1]:end]),
		})
	}
	return sections
}

// extractTables pulls pipe-delimited markdown tables.
func extractTables(text string) []Table {
	var tables []Table
	lines := strings.Split(text, "\n")

	for i := 0; i < len(lines); i++ {
		if !isTableRow(lines[i]) || i+1 >= len(lines) || !isDividerRow(lines[i+1]) {
			continue
		}
		table := Table{Headers: splitRow(lines[i])}
		j := i + 2
		for ; j < len(lines) && isTableRow(lines[j]); j++ {
			table.Rows = append(table.Rows, splitRow(lines[j]))
		}
		tables = append(tables, table)
		i = j - 1
	}
	return tables
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

var dividerRe = regexp.MustCompile(`^\|?[\s:|-]+\|?$`)

func isDividerRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.Contains(trimmed, "-") && dividerRe.MatchString(trimmed)
}

func splitRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

var imageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

func extractImages(text string) []Image {
	var images []Image
	for _, m := range imageRe.FindAllStringSubmatch(text, -1) {
		images = append(images, Image{Alt: m[1], URL: m[2]})
	}
	return images
}

var markdownMarkerRe = regexp.MustCompile("(?m)^#{1,6}\\s+|[*_`]")

// stripMarkdown removes heading markers and inline emphasis for the
// plain-text output format.
func stripMarkdown(text string) string {
	return markdownMarkerRe.ReplaceAllString(text, "")
}
