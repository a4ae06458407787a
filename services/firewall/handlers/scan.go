// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianShield/services/firewall/observability"
	"github.com/AleutianAI/AleutianShield/services/firewall/scanner"
)

// maxScanBytes bounds uploaded document size.
const maxScanBytes = 16 << 20

// HandleScan accepts a multipart document upload, scans it, and returns
// the scan report. Unsafe documents are reported, clean documents are
// archived; both outcomes return 200 with the report body.
func HandleScan(s *scanner.Scanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if header.Size > maxScanBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open upload"})
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxScanBytes))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}

		// Strip any client-supplied path components.
		filename := filepath.Base(header.Filename)

		report, err := s.Scan(c.Request.Context(), filename, content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		outcome := "clean"
		if report.Unsafe {
			outcome = "unsafe"
		}
		observability.DocumentsScanned.WithLabelValues(outcome).Inc()

		c.JSON(http.StatusOK, report)
	}
}
