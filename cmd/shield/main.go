// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "shield",
		Short: "A CLI for the Aleutian prompt-safety firewall",
		Long: `Shield is a command-line client for the Aleutian firewall service.

It submits prompts for analysis, streams the firewall's stage-by-stage
progress, scans documents for sensitive data, and inspects the audit trail.`,
	}

	// firewallURL is the base URL of the firewall service, shared by every
	// subcommand.
	firewallURL string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	defaultURL := os.Getenv("FIREWALL_SERVICE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:12310"
	}
	rootCmd.PersistentFlags().StringVar(&firewallURL, "url", defaultURL,
		"Base URL of the firewall service")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}
