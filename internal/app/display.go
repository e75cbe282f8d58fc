package app

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
)

// 128x64 panel with the 7x13 font: 18 columns, 4 rows of text.
const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
	displayCols   = displayWidth / 7
	displayRows   = displayHeight / lineHeight
)

// wrapText splits s into lines of at most width runes, breaking on spaces.
// Words longer than width are cut.
func wrapText(s string, width int) []string {
	var lines []string
	var cur string
	for _, word := range strings.Fields(s) {
		for len([]rune(word)) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case cur == "":
			cur = word
		case len([]rune(cur))+1+len([]rune(word)) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// statusLines is what the panel shows: the title, then the status text.
func statusLines(r notify.Report, have bool) []string {
	if !have {
		return []string{notify.Title, "Waiting..."}
	}
	lines := append([]string{r.Title}, wrapText(r.Text, displayCols)...)
	if len(lines) > displayRows {
		lines = lines[:displayRows]
	}
	return lines
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func renderStatus(r notify.Report, have bool) *image1bit.VerticalLSB {
	return renderLines(statusLines(r, have))
}

// panel draws reports on the OLED. Each report replaces the previous
// screen.
type panel struct {
	mu  sync.Mutex
	dev *ssd1306.Dev
}

func (p *panel) Notify(r notify.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev.Draw(p.dev.Bounds(), renderStatus(r, true), image.Point{})
}

func RunDisplay(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	i2cBus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer i2cBus.Close()

	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	logger.Infof("display initialized")

	p := &panel{dev: dev}
	if err := dev.Draw(dev.Bounds(), renderStatus(notify.Report{}, false), image.Point{}); err != nil {
		logger.Warnf("error showing splash: %v", err)
	}

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	err = bus.SubscribeJSON(client, cfg.TopicStatus, func(r notify.Report) {
		if err := p.Notify(r); err != nil {
			logger.Warnf("error updating display: %v", err)
		}
	}, func(err error) {
		logger.Warnf("%v", err)
	})
	if err != nil {
		return err
	}
	logger.Infof("subscribed to %s", cfg.TopicStatus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	return nil
}
