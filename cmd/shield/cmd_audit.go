// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/pkg/ux"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

var auditJSONOutput bool

// auditCmd lists the firewall's audit trail.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recorded audit events (risky, blocked, or hallucinated runs)",
	Run:   runAuditCommand,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSONOutput, "json", false,
		"Print events as JSON for scripting")
}

type auditTrailResponse struct {
	Events []datatypes.AuditEvent `json:"events"`
	Count  int                    `json:"count"`
}

func runAuditCommand(cmd *cobra.Command, args []string) {
	resp, err := http.Get(firewallURL + "/v1/audit")
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to reach the firewall at %s: %v", firewallURL, err))
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ux.Error(fmt.Sprintf("Firewall returned %s", resp.Status))
		os.Exit(1)
	}

	var trail auditTrailResponse
	if err := json.NewDecoder(resp.Body).Decode(&trail); err != nil {
		ux.Error(fmt.Sprintf("Undecodable audit trail: %v", err))
		os.Exit(1)
	}

	if auditJSONOutput {
		out, _ := json.MarshalIndent(trail.Events, "", "  ")
		fmt.Println(string(out))
		return
	}

	ux.Title(fmt.Sprintf("Audit trail (%d events)", trail.Count))
	for _, event := range trail.Events {
		fmt.Printf("%s %s  %s  risk %.2f  %s\n",
			ux.IconBullet.Render(),
			ux.Styles.Muted.Render(event.Timestamp.Format("2006-01-02 15:04:05")),
			ux.Styles.Bold.Render(string(event.Classification)),
			event.RiskScore,
			string(event.Verdict))
		ux.Info(truncate(event.Prompt, 100))
	}
	if trail.Count == 0 {
		ux.Muted("No events recorded.")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
