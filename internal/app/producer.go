// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
)

// Producer publishes the readings of a sensor.Source on the sensor topic.
type Producer struct {
	client           bus.Client
	source           sensor.Source
	topicSensor      string
	topicDeviceState string
	logger           *zap.SugaredLogger
	clock            clock.Clock
}

func NewProducer(client bus.Client, source sensor.Source, topicSensor, topicDeviceState string, logger *zap.SugaredLogger) *Producer {
	return &Producer{
		client:           client,
		source:           source,
		topicSensor:      topicSensor,
		topicDeviceState: topicDeviceState,
		logger:           logger,
		clock:            clock.New(),
	}
}

// PublishState publishes the device state retained, so a classifier that
// starts later still sees the gate.
func (p *Producer) PublishState(st sensor.DeviceState) error {
	if p.topicDeviceState == "" {
		return nil
	}
	return bus.PublishJSON(p.client, p.topicDeviceState, true, st)
}

// Tick reads the source once and publishes every reading. It returns the
// number of events published.
func (p *Producer) Tick() (int, error) {
	events, err := p.source.Next()
	if err != nil {
		return 0, fmt.Errorf("source read: %w", err)
	}
	for i, ev := range events {
		if err := bus.PublishJSON(p.client, p.topicSensor, false, ev); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// Run ticks every interval until ctx is done. Read and publish errors are
// logged and the loop continues.
func (p *Producer) Run(ctx context.Context, interval time.Duration) error {
	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Tick(); err != nil {
				p.logger.Warnf("%v", err)
			}
		}
	}
}

// openSource builds the source named by PRODUCER_SOURCE.
func openSource(cfg *config.Config, logger *zap.SugaredLogger) (sensor.Source, error) {
	switch cfg.ProducerSource {
	case "mock":
		logger.Infof("using mock phone source")
		return sensor.NewMockSource(cfg.ProximityMaxRange), nil
	case "mpu9250":
		logger.Infof("using MPU9250 on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
		return sensor.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin, logger)
	default:
		return nil, fmt.Errorf("unknown producer source %q", cfg.ProducerSource)
	}
}

// RunProducer publishes sensor readings until SIGINT or SIGTERM.
func RunProducer(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	source, err := openSource(cfg, logger)
	if err != nil {
		return err
	}

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT, publishing every %d ms", cfg.ProducerInterval)

	p := NewProducer(client, source, cfg.TopicSensor, cfg.TopicDeviceState, logger)
	// a producer only runs while somebody is using the device
	if err := p.PublishState(sensor.DeviceState{Interactive: true, Unlocked: true}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = p.Run(ctx, time.Duration(cfg.ProducerInterval)*time.Millisecond)

	if serr := p.PublishState(sensor.DeviceState{}); serr != nil {
		logger.Warnf("clearing device state: %v", serr)
	}
	return err
}
