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
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/pkg/ux"
)

// version is injected at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version and the firewall service status",
	Run:   runVersionCommand,
}

func runVersionCommand(cmd *cobra.Command, args []string) {
	ux.Title("shield")
	ux.Info(fmt.Sprintf("Version:  %s", version))
	ux.Info(fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH))
	ux.Info(fmt.Sprintf("Service:  %s", firewallURL))

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(firewallURL + "/health")
	if err != nil {
		ux.Warning("Firewall service is unreachable")
		return
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if resp.StatusCode == http.StatusOK &&
		json.NewDecoder(resp.Body).Decode(&health) == nil && health.Status != "" {
		ux.Success(fmt.Sprintf("Firewall service is %s", health.Status))
	} else {
		ux.Warning(fmt.Sprintf("Firewall service returned %s", resp.Status))
	}
}
