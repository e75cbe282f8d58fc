// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pedestrian ties the sample buffer, orientation estimate and
// classifiers together into a per-event pedestrian status.
package pedestrian

import (
	"github.com/relabs-tech/pedestrian_status/internal/classify"
	"github.com/relabs-tech/pedestrian_status/internal/orientation"
	"github.com/relabs-tech/pedestrian_status/internal/sample"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

// Gate decides whether incoming events may be processed at all.
type Gate interface {
	Allowed() bool
}

// GateFunc adapts a plain function to Gate.
type GateFunc func() bool

func (f GateFunc) Allowed() bool { return f() }

// AlwaysAllowed is a Gate that never blocks.
var AlwaysAllowed Gate = GateFunc(func() bool { return true })

// Result is the outcome of one successfully resolved event.
type Result struct {
	Status   status.Status
	Text     string
	Pitch    float64 // degrees
	Moving   bool
	Near     bool
	Pose     orientation.Pose
	Rotation orientation.RotationMatrix
}

// Evaluate recomputes every derived value from a snapshot. It returns false
// when the orientation cannot be estimated; the resolver is not run then.
func Evaluate(s sample.Snapshot, proximityMaxRange float64) (Result, bool) {
	est, ok := orientation.EstimateFrom(s.Accelerometer, s.Magnetometer)
	if !ok {
		return Result{}, false
	}

	moving := classify.IsMoving(s.Gyroscope)
	near := s.HaveProximity && classify.IsNear(s.Proximity, proximityMaxRange)
	st := status.Resolve(moving, near, est.Pose.Pitch)

	return Result{
		Status:   st,
		Text:     st.Text(),
		Pitch:    est.Pose.Pitch,
		Moving:   moving,
		Near:     near,
		Pose:     est.Pose,
		Rotation: est.Rotation,
	}, true
}

// Classifier owns the sample buffer for one device. It is not safe for
// concurrent use; callers must serialise Handle.
type Classifier struct {
	buf               sample.Buffer
	proximityMaxRange float64
	gate              Gate

	// newest accepted timestamp per sensor kind
	latest map[sensor.Kind]int64
}

// New returns a classifier. proximityMaxRange is the proximity sensor's
// declared maximum range, 0 when the device has none. A nil gate allows
// every event.
func New(proximityMaxRange float64, gate Gate) *Classifier {
	if gate == nil {
		gate = AlwaysAllowed
	}
	return &Classifier{
		proximityMaxRange: proximityMaxRange,
		gate:              gate,
		latest:            make(map[sensor.Kind]int64),
	}
}

// Handle feeds one event through the classifier. It returns false when the
// gate is closed, the event is malformed or older than the last accepted
// reading of its kind, or the orientation could not be estimated. Nothing
// should be emitted then. Events without a timestamp are never stale.
func (c *Classifier) Handle(ev sensor.Event) (Result, bool) {
	if !c.gate.Allowed() {
		return Result{}, false
	}
	if err := ev.Validate(); err != nil {
		return Result{}, false
	}
	if ev.Timestamp != 0 {
		if ev.Timestamp < c.latest[ev.Kind] {
			return Result{}, false
		}
		c.latest[ev.Kind] = ev.Timestamp
	}
	c.buf.Apply(ev)
	return Evaluate(c.buf.Snapshot(), c.proximityMaxRange)
}

// Snapshot exposes the current buffer contents.
func (c *Classifier) Snapshot() sample.Snapshot {
	return c.buf.Snapshot()
}
