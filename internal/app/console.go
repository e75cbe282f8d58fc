package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
)

func formatReport(r notify.Report) string {
	return fmt.Sprintf(
		"[%s] %-14s pitch=%6.1f moving=%-5t near=%-5t  %s",
		r.Time.Format("15:04:05"), r.Status, r.Pitch, r.Moving, r.Near, r.Text,
	)
}

// watchStatus prints every status report published on topic to w.
func watchStatus(client bus.Client, topic string, w io.Writer, logger *zap.SugaredLogger) error {
	return bus.SubscribeJSON(client, topic, func(r notify.Report) {
		fmt.Fprintln(w, formatReport(r))
	}, func(err error) {
		logger.Warnf("%v", err)
	})
}

func RunConsole(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := watchStatus(client, cfg.TopicStatus, os.Stdout, logger); err != nil {
		return err
	}
	logger.Infof("subscribed to %s", cfg.TopicStatus)

	// Wait for Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	return nil
}
