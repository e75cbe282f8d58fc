// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/relabs-tech/pedestrian_status/internal/app"
)

func main() {
	cmd := app.Command("producer", "Publish mock or MPU9250 sensor readings", app.RunProducer)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
