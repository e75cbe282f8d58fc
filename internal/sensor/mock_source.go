// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"math"
	"time"
)

// MockPhase is one leg of the mock walk.
type MockPhase struct {
	Name      string
	Pitch     float64 // degrees, top of the phone toward the user
	TurnRate  float64 // rad/s around the phone's z axis
	Proximity float64 // distance reported by the proximity sensor
}

// MockPhaseDuration is how long the mock stays in each phase.
const MockPhaseDuration = 8 * time.Second

const mockGravity = 9.81

// Geomagnetic field as seen by a phone lying flat, in µT.
var mockField = [3]float64{5, 22, -40}

// MockSource replays a scripted phone walk.
type MockSource struct {
	start    time.Time
	phases   []MockPhase
	maxRange float64
}

// NewMockSource creates a source that cycles through walking while reading,
// walking with the phone upright, standing while reading and pocketed.
// maxRange is the proximity range the mock pretends to have.
func NewMockSource(maxRange float64) *MockSource {
	far := maxRange + 1
	return &MockSource{
		start:    time.Now(),
		maxRange: maxRange,
		phases: []MockPhase{
			{Name: "walking, reading", Pitch: 40, TurnRate: 0.4, Proximity: far},
			{Name: "walking, phone upright", Pitch: 85, TurnRate: 0.35, Proximity: far},
			{Name: "standing, reading", Pitch: 30, TurnRate: 0.02, Proximity: far},
			{Name: "pocketed", Pitch: -80, TurnRate: 0.3, Proximity: 0},
		},
	}
}

// Phase returns the phase active after elapsed time.
func (m *MockSource) Phase(elapsed time.Duration) MockPhase {
	i := int(elapsed/MockPhaseDuration) % len(m.phases)
	return m.phases[i]
}

func (m *MockSource) Next() ([]Event, error) {
	return m.At(time.Since(m.start)), nil
}

// At returns the readings the mock reports after elapsed time.
func (m *MockSource) At(elapsed time.Duration) []Event {
	p := m.Phase(elapsed)
	secs := elapsed.Seconds()
	ts := m.start.Add(elapsed).UnixNano()

	// small sway so the readings are not perfectly constant
	pitch := (p.Pitch + 2*math.Sin(secs*1.3)) * math.Pi / 180
	turn := p.TurnRate * (1 + 0.1*math.Sin(secs*2.1))

	accel := []float64{
		0.1 * math.Sin(secs),
		mockGravity * math.Sin(pitch),
		mockGravity * math.Cos(pitch),
	}
	// field rotated about x by the same pitch as gravity
	mag := []float64{
		mockField[0],
		mockField[1]*math.Cos(pitch) + mockField[2]*math.Sin(pitch),
		-mockField[1]*math.Sin(pitch) + mockField[2]*math.Cos(pitch),
	}
	gyro := []float64{0, 0, turn}

	events := []Event{
		{Kind: Accelerometer, Values: accel, Timestamp: ts},
		{Kind: Magnetometer, Values: mag, Timestamp: ts},
		{Kind: Gyroscope, Values: gyro, Timestamp: ts},
	}
	if m.maxRange > 0 {
		events = append(events, Event{Kind: Proximity, Values: []float64{p.Proximity}, Timestamp: ts})
	}
	return events
}
