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
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 20 << 20

// HandleProcess is the POST /v1/documents/process handler: multipart
// upload under "file" plus form flags.
func HandleProcess(p *Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "missing file upload: "+err.Error())
			return
		}
		if header.Size > maxUploadBytes {
			fail(c, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}

		file, err := header.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "could not open upload: "+err.Error())
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			fail(c, http.StatusInternalServerError, "could not read upload: "+err.Error())
			return
		}

		opts := Options{
			OCR:           formBool(c, "ocr"),
			OutputFormat:  c.PostForm("output_format"),
			ExtractTables: formBool(c, "extract_tables"),
			ExtractImages: formBool(c, "extract_images"),
			ChunkSize:     formInt(c, "chunk_size"),
			ChunkOverlap:  formInt(c, "chunk_overlap"),
		}

		doc, err := p.Process(header.Filename, content, opts)
		if err != nil {
			fail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": doc})
	}
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

func formInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.PostForm(key))
	if err != nil {
		return 0
	}
	return v
}
