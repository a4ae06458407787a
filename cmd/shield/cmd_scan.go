// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/pkg/ux"
	"github.com/AleutianAI/AleutianShield/services/firewall/scanner"
)

var scanJSONOutput bool

// scanCmd uploads a document to the firewall's scanner.
//
// # Description
//
// Posts the file to POST /v1/scan as a multipart upload and renders the
// returned report: a count per finding category and whether the document
// was quarantined (unsafe) or archived (clean).
var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan a document for sensitive data before it reaches an LLM",
	Args:  cobra.ExactArgs(1),
	Run:   runScanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSONOutput, "json", false,
		"Print the report as JSON for scripting")
}

func runScanCommand(cmd *cobra.Command, args []string) {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read %s: %v", path, err))
		os.Exit(1)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err == nil {
		_, err = part.Write(content)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to build upload: %v", err))
		os.Exit(1)
	}

	resp, err := http.Post(firewallURL+"/v1/scan", writer.FormDataContentType(), &body)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to reach the firewall at %s: %v", firewallURL, err))
		os.Exit(1)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read response: %v", err))
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		ux.Error(fmt.Sprintf("Firewall returned %s: %s", resp.Status, string(raw)))
		os.Exit(1)
	}

	if scanJSONOutput {
		fmt.Println(string(raw))
		return
	}

	var report scanner.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		ux.Error(fmt.Sprintf("Undecodable report: %v", err))
		os.Exit(1)
	}
	renderReport(report)
	if report.Unsafe {
		os.Exit(1)
	}
}

func renderReport(report scanner.Report) {
	ux.Title(fmt.Sprintf("Scan report: %s", report.Filename))

	if len(report.Findings) == 0 {
		ux.Success("No sensitive data found")
	} else {
		names := make([]string, 0, len(report.Findings))
		for name := range report.Findings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			line := fmt.Sprintf("%-28s %d", name, report.Findings[name])
			if strings.HasPrefix(name, scanner.SecretPrefix) {
				ux.Warning(line)
			} else {
				ux.Info(line)
			}
		}
	}

	fmt.Println()
	if report.Unsafe {
		ux.Error("Document contains secrets. Quarantined, not archived.")
	} else {
		ux.Success("Document is clean and has been archived.")
	}
}
