// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify delivers pedestrian status reports to whatever displays
// them. Every sink keeps a single status slot: a new report replaces the
// previous one.
package notify

import (
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/orientation"
	"github.com/relabs-tech/pedestrian_status/internal/pedestrian"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

// Title is the fixed heading the status is shown under.
const Title = "Pedestrian Status"

// Report is one status update as published on the wire.
type Report struct {
	Title  string           `json:"title"`
	Status status.Status    `json:"status"`
	Text   string           `json:"text"`
	Pitch  float64          `json:"pitch"`
	Moving bool             `json:"moving"`
	Near   bool             `json:"near"`
	Pose   orientation.Pose `json:"pose"`
	Time   time.Time        `json:"time"`
}

// NewReport builds the report for a classifier result.
func NewReport(res pedestrian.Result, at time.Time) Report {
	return Report{
		Title:  Title,
		Status: res.Status,
		Text:   res.Text,
		Pitch:  res.Pitch,
		Moving: res.Moving,
		Near:   res.Near,
		Pose:   res.Pose,
		Time:   at,
	}
}

// Notifier shows a report.
type Notifier interface {
	Notify(Report) error
}

// Slot keeps the latest report in memory. A report timed before the one
// already held is ignored, so late deliveries cannot roll the slot back.
type Slot struct {
	mu     sync.RWMutex
	latest Report
	have   bool
	count  int
}

func (s *Slot) Notify(r Report) error {
	s.Offer(r)
	return nil
}

// Offer stores r unless it is older than the current report. It reports
// whether r was stored.
func (s *Slot) Offer(r Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.have && r.Time.Before(s.latest.Time) {
		return false
	}
	s.latest = r
	s.have = true
	s.count++
	return true
}

// Latest returns the last report, false if none arrived yet.
func (s *Slot) Latest() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}

// Count is the number of reports received.
func (s *Slot) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// MQTTNotifier publishes reports retained on one topic, so late
// subscribers always see the current status and nothing stacks.
type MQTTNotifier struct {
	Client bus.Client
	Topic  string
}

func (n *MQTTNotifier) Notify(r Report) error {
	return bus.PublishJSON(n.Client, n.Topic, true, r)
}

// Multi fans a report out to several notifiers. Every notifier is tried;
// the errors are combined.
type Multi []Notifier

func (m Multi) Notify(r Report) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(r))
	}
	return err
}
