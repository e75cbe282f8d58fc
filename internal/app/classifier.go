// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
	"github.com/relabs-tech/pedestrian_status/internal/pedestrian"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

// Control payloads accepted on the control topic.
const (
	ControlStart = "start"
	ControlStop  = "stop"
)

// ServiceOptions are the topics and sensor descriptor the classifier
// service runs with.
type ServiceOptions struct {
	TopicSensor       string
	TopicDeviceState  string // empty: the gate is always open
	TopicControl      string // empty: no start/stop switch
	ProximityMaxRange float64
}

// Service runs the pedestrian classifier against the sensor topic and hands
// every resolved status to a notifier.
type Service struct {
	client   bus.Client
	opts     ServiceOptions
	notifier notify.Notifier
	logger   *zap.SugaredLogger
	clock    clock.Clock

	// mu serialises the classifier; paho handlers run concurrently
	mu         sync.Mutex
	classifier *pedestrian.Classifier
	last       status.Status
	emitted    bool
	running    bool // cleared under mu, so handlers still in flight after stop emit nothing

	allowed atomic.Bool

	sessionMu sync.Mutex
	active    bool
}

// NewService wires a classifier to client. Nothing is subscribed until
// Start.
func NewService(client bus.Client, opts ServiceOptions, notifier notify.Notifier, logger *zap.SugaredLogger) *Service {
	s := &Service{
		client:   client,
		opts:     opts,
		notifier: notifier,
		logger:   logger,
		clock:    clock.New(),
	}
	// with no device state topic there is nothing that could close the gate
	s.allowed.Store(opts.TopicDeviceState == "")
	s.classifier = pedestrian.New(opts.ProximityMaxRange, pedestrian.GateFunc(s.allowed.Load))
	return s
}

// Start subscribes to the device state and control topics and starts a
// classification session.
func (s *Service) Start() error {
	if s.opts.TopicDeviceState != "" {
		if err := bus.SubscribeJSON(s.client, s.opts.TopicDeviceState, s.handleDeviceState, s.warn); err != nil {
			return err
		}
		s.logger.Infof("subscribed to %s", s.opts.TopicDeviceState)
	}

	if s.opts.TopicControl != "" {
		tok := s.client.Subscribe(s.opts.TopicControl, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := s.Control(string(msg.Payload())); err != nil {
				s.logger.Warnf("control: %v", err)
			}
		})
		if err := bus.Wait(tok); err != nil {
			return fmt.Errorf("MQTT subscribe (%s): %w", s.opts.TopicControl, err)
		}
		s.logger.Infof("subscribed to %s", s.opts.TopicControl)
	}

	return s.startSession()
}

// Stop ends the session and drops every subscription.
func (s *Service) Stop() error {
	err := s.stopSession()
	var topics []string
	for _, t := range []string{s.opts.TopicDeviceState, s.opts.TopicControl} {
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) > 0 {
		if uerr := bus.Wait(s.client.Unsubscribe(topics...)); uerr != nil && err == nil {
			err = fmt.Errorf("MQTT unsubscribe: %w", uerr)
		}
	}
	return err
}

// Control applies a start or stop command. Both are idempotent.
func (s *Service) Control(cmd string) error {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case ControlStart:
		return s.startSession()
	case ControlStop:
		return s.stopSession()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// Active reports whether a classification session is running.
func (s *Service) Active() bool {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.active
}

func (s *Service) startSession() error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.active {
		return nil
	}
	s.setRunning(true)
	if err := bus.SubscribeJSON(s.client, s.opts.TopicSensor, s.HandleEvent, s.warn); err != nil {
		s.setRunning(false)
		return err
	}
	s.active = true
	s.logger.Infof("session started, listening on %s", s.opts.TopicSensor)
	return nil
}

func (s *Service) stopSession() error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if !s.active {
		return nil
	}
	if err := bus.Wait(s.client.Unsubscribe(s.opts.TopicSensor)); err != nil {
		return fmt.Errorf("MQTT unsubscribe (%s): %w", s.opts.TopicSensor, err)
	}
	s.setRunning(false)
	s.active = false
	s.logger.Infof("session stopped")
	return nil
}

func (s *Service) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Service) handleDeviceState(st sensor.DeviceState) {
	if prev := s.allowed.Swap(st.Allowed()); prev != st.Allowed() {
		s.logger.Infof("device state interactive=%t unlocked=%t, gate open=%t", st.Interactive, st.Unlocked, st.Allowed())
	}
}

// HandleEvent classifies one event and notifies the result, if any. Events
// arriving outside a session are ignored.
func (s *Service) HandleEvent(ev sensor.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	res, ok := s.classifier.Handle(ev)
	if !ok {
		return
	}
	if !s.emitted || res.Status != s.last {
		s.logger.Infof("status %s (pitch %.1f, moving=%t, near=%t)", res.Status, res.Pitch, res.Moving, res.Near)
	}
	s.last, s.emitted = res.Status, true

	if err := s.notifier.Notify(notify.NewReport(res, s.clock.Now())); err != nil {
		s.logger.Warnf("notify: %v", err)
	}
}

func (s *Service) warn(err error) {
	s.logger.Warnf("%v", err)
}

// RunClassifier runs the classifier service until SIGINT or SIGTERM.
func RunClassifier(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDClassifier)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	notifier := &notify.MQTTNotifier{Client: client, Topic: cfg.TopicStatus}
	svc := NewService(client, ServiceOptions{
		TopicSensor:       cfg.TopicSensor,
		TopicDeviceState:  cfg.TopicDeviceState,
		TopicControl:      cfg.TopicControl,
		ProximityMaxRange: cfg.ProximityMaxRange,
	}, notifier, logger)

	if err := svc.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	return svc.Stop()
}
