package main

import (
	"os"

	"github.com/relabs-tech/pedestrian_status/internal/app"
)

func main() {
	cmd := app.Command("serial_bridge", "Forward $PSNSR/$PSNST serial sentences to MQTT", app.RunSerialBridge)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
