// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/relabs-tech/pedestrian_status/internal/app"
)

func main() {
	cmd := app.Command("web", "Serve the pedestrian status page and live websocket", app.RunWeb)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
