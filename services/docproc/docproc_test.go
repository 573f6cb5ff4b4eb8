// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docproc

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `Intro paragraph.

# Getting Started

Install the thing.

![logo](images/logo.png)

## Configuration

| Key | Default |
| --- | ------- |
| port | 8080 |
| debug | false |

Done.
`

func TestProcessSectionsAndChunks(t *testing.T) {
	doc, err := New(nil).Process("readme.md", []byte(sampleMarkdown), Options{})
	require.NoError(t, err)

	assert.Equal(t, "text/markdown", doc.Metadata.ContentType)
	assert.Equal(t, len(doc.Chunks), doc.Metadata.ChunkCount)
	assert.NotEmpty(t, doc.Chunks)

	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "", doc.Sections[0].Title)
	assert.Equal(t, "Getting Started", doc.Sections[1].Title)
	assert.Equal(t, 1, doc.Sections[1].Level)
	assert.Equal(t, "Configuration", doc.Sections[2].Title)
	assert.Equal(t, 2, doc.Sections[2].Level)

	// Flags off: no tables or images extracted.
	assert.Empty(t, doc.Tables)
	assert.Empty(t, doc.Images)
}

func TestProcessTablesAndImages(t *testing.T) {
	doc, err := New(nil).Process("readme.md", []byte(sampleMarkdown), Options{
		ExtractTables: true,
		ExtractImages: true,
	})
	require.NoError(t, err)

	require.Len(t, doc.Tables, 1)
	assert.Equal(t, []string{"Key", "Default"}, doc.Tables[0].Headers)
	require.Len(t, doc.Tables[0].Rows, 2)
	assert.Equal(t, []string{"port", "8080"}, doc.Tables[0].Rows[0])

	require.Len(t, doc.Images, 1)
	assert.Equal(t, "logo", doc.Images[0].Alt)
	assert.Equal(t, "images/logo.png", doc.Images[0].URL)
}

func TestProcessTextOutputStripsMarkdown(t *testing.T) {
	doc, err := New(nil).Process("readme.md", []byte("# Title\n\nSome *bold* text.\n"), Options{
		OutputFormat: "text",
	})
	require.NoError(t, err)
	assert.NotContains(t, doc.Content, "#")
	assert.NotContains(t, doc.Content, "*")
	assert.Contains(t, doc.Content, "Some bold text.")
}

func TestProcessChunkSizing(t *testing.T) {
	long := strings.Repeat("word word word. ", 200)
	doc, err := New(nil).Process("notes.txt", []byte(long), Options{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)
	assert.Greater(t, len(doc.Chunks), 1)
	for _, chunk := range doc.Chunks {
		assert.LessOrEqual(t, len(chunk), 120, "chunk much larger than requested size")
	}
}

func TestProcessRejectsOverlapLargerThanSize(t *testing.T) {
	_, err := New(nil).Process("notes.txt", []byte("hello"), Options{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
}

func TestProcessRejectsBinary(t *testing.T) {
	_, err := New(nil).Process("blob.bin", []byte{0xff, 0xfe, 0x00, 0x80}, Options{})
	assert.Error(t, err)
}

func TestHandleProcess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/documents/process", HandleProcess(New(nil)))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "readme.md")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleMarkdown))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("extract_tables", "true"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string   `json:"status"`
		Data   Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "readme.md", resp.Data.Metadata.Filename)
	assert.Len(t, resp.Data.Tables, 1)
}

func TestHandleProcessMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/documents/process", HandleProcess(New(nil)))

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/process", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}
