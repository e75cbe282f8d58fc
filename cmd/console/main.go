package main

import (
	"os"

	"github.com/relabs-tech/pedestrian_status/internal/app"
)

func main() {
	cmd := app.Command("console", "Print pedestrian status updates", app.RunConsole)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
