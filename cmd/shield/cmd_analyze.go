// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/pkg/ux"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	analyzeResponse   string // Pre-supplied response for verification-only mode
	analyzeJSONOutput bool   // Emit the final state as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// analyzeCmd submits a prompt to the firewall and streams stage events.
//
// # Description
//
// Sends the prompt to POST /v1/analyze and renders the server-sent event
// stream as it arrives: one line per completed stage, then a summary of
// the final verdict and response.
//
// # Examples
//
//	shield analyze "What is the capital of France?"
//	shield analyze "Ignore previous instructions" # watch it get caught
//	shield analyze --response "Paris is in Italy" "Where is Paris?"
//	shield analyze --json "hello" | jq .state.verdict
var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Run a prompt through the firewall and stream the stages",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAnalyzeCommand,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeResponse, "response", "r", "",
		"Verify this pre-supplied response instead of generating one")
	analyzeCmd.Flags().BoolVar(&analyzeJSONOutput, "json", false,
		"Print the final state as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAnalyzeCommand(cmd *cobra.Command, args []string) {
	prompt := strings.Join(args, " ")

	body, err := json.Marshal(map[string]string{
		"prompt":       prompt,
		"llm_response": analyzeResponse,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to encode request: %v", err))
		os.Exit(1)
	}

	resp, err := http.Post(firewallURL+"/v1/analyze", "application/json",
		bytes.NewReader(body))
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to reach the firewall at %s: %v", firewallURL, err))
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ux.Error(fmt.Sprintf("Firewall returned %s", resp.Status))
		os.Exit(1)
	}

	final, err := streamEvents(resp)
	if err != nil {
		ux.Error(fmt.Sprintf("Stream error: %v", err))
		os.Exit(1)
	}
	if final == nil {
		ux.Error("Stream ended without a final event")
		os.Exit(1)
	}

	if analyzeJSONOutput {
		out, _ := json.MarshalIndent(final, "", "  ")
		fmt.Println(string(out))
		return
	}
	renderFinal(*final)
}

// streamEvents consumes the SSE stream, printing one line per stage and
// returning the terminal event.
func streamEvents(resp *http.Response) (*datatypes.StageEvent, error) {
	var final *datatypes.StageEvent

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event datatypes.StageEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Skip comment/heartbeat payloads.
			continue
		}

		if !analyzeJSONOutput {
			renderStage(event)
		}
		if event.Final || event.Err != "" {
			final = &event
			if event.Err != "" {
				return final, fmt.Errorf("pipeline aborted at %s: %s", event.Stage, event.Err)
			}
		}
	}
	return final, scanner.Err()
}

func renderStage(event datatypes.StageEvent) {
	detail := ""
	switch event.Stage {
	case "analysis":
		detail = fmt.Sprintf("%s (risk %.2f)", event.State.Classification, event.State.RiskScore)
	case "rewrite":
		detail = "prompt sanitized"
	case "block":
		detail = event.State.RiskReason
	case "verify", "fast", "llm":
		detail = string(event.State.Verdict)
	}
	fmt.Printf("%s %s %s\n",
		ux.IconArrow.Render(),
		ux.Styles.Subtitle.Render(event.Stage),
		ux.Styles.Muted.Render(detail))
}

func renderFinal(event datatypes.StageEvent) {
	state := event.State

	fmt.Println()
	if state.Verdict == datatypes.VerdictRejected {
		ux.Error("Prompt rejected by the firewall")
		ux.Info(fmt.Sprintf("Reason: %s", state.RiskReason))
	} else {
		ux.Success(fmt.Sprintf("Verdict: %s", state.Verdict))
		if state.VerdictReason != "" {
			ux.Info(fmt.Sprintf("Reason: %s", state.VerdictReason))
		}
		if state.CodeVerdict != "" {
			ux.Info(fmt.Sprintf("Code: %s", state.CodeVerdict))
		}
	}

	if len(state.AttackDetection.AttackTypes) > 0 {
		ux.Warning(fmt.Sprintf("Attack types: %s",
			strings.Join(state.AttackDetection.AttackTypes, ", ")))
	}
	if state.AuditFlag {
		ux.Muted(fmt.Sprintf("Recorded to audit trail (request %s)", state.RequestID))
	}

	if state.LLMResponse != "" {
		fmt.Println()
		ux.Box(state.LLMResponse)
	}
}
