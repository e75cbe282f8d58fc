// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/bridge"
	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
)

// ForwardSentences reads $PSNSR/$PSNST sentences from r and republishes
// them: readings on topicSensor, device states retained on
// topicDeviceState. It returns when r is exhausted.
func ForwardSentences(r io.Reader, client bus.Client, topicSensor, topicDeviceState string, logger *zap.SugaredLogger) error {
	onReading := func(ev sensor.Event) {
		if err := bus.PublishJSON(client, topicSensor, false, ev); err != nil {
			logger.Warnf("%v", err)
		}
	}
	onState := func(st sensor.DeviceState) {
		if topicDeviceState == "" {
			return
		}
		if err := bus.PublishJSON(client, topicDeviceState, true, st); err != nil {
			logger.Warnf("%v", err)
			return
		}
		logger.Infof("device state interactive=%t unlocked=%t", st.Interactive, st.Unlocked)
	}
	onError := func(err error) {
		logger.Debugf("skipping sentence: %v", err)
	}
	return bridge.Scan(r, onReading, onState, onError)
}

// RunSerialBridge forwards sentences from the configured serial port until
// the port closes or the process is interrupted.
func RunSerialBridge(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	serialOpts := serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              uint(cfg.SerialBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	logger.Infof("serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDBridge)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- ForwardSentences(port, client, cfg.TopicSensor, cfg.TopicDeviceState, logger)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Infof("shutting down")
		return nil
	}
}
