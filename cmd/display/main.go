package main

import (
	"os"

	"github.com/relabs-tech/pedestrian_status/internal/app"
)

func main() {
	cmd := app.Command("display", "Show the pedestrian status on the SSD1306 OLED", app.RunDisplay)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
