// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies the physical sensor a reading came from.
type Kind int

const (
	Accelerometer Kind = iota // m/s²
	Magnetometer              // µT
	Gyroscope                 // rad/s
	Proximity                 // cm, or the device's own distance unit
)

// ErrInvalidEvent is returned for events that cannot be fed to the classifier.
var ErrInvalidEvent = errors.New("invalid sensor event")

var kindNames = map[Kind]string{
	Accelerometer: "accelerometer",
	Magnetometer:  "magnetometer",
	Gyroscope:     "gyroscope",
	Proximity:     "proximity",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Triaxial reports whether readings of this kind carry x, y and z.
func (k Kind) Triaxial() bool {
	return k == Accelerometer || k == Magnetometer || k == Gyroscope
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sensor kind %q", ErrInvalidEvent, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sensor kind %d", ErrInvalidEvent, int(k))
	}
	return []byte(name), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is a single reading as delivered by the sensing side.
// A non-zero Timestamp orders readings of the same kind; zero means unstamped.
type Event struct {
	Kind      Kind      `json:"kind"`
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"ts,omitempty"` // unix nanoseconds
}

// Validate checks that the event has enough finite values for its kind.
func (e Event) Validate() error {
	need := 1
	if e.Kind.Triaxial() {
		need = 3
	} else if e.Kind != Proximity {
		return fmt.Errorf("%w: unknown sensor kind %d", ErrInvalidEvent, int(e.Kind))
	}
	if len(e.Values) < need {
		return fmt.Errorf("%w: %s needs %d values, got %d", ErrInvalidEvent, e.Kind, need, len(e.Values))
	}
	for i, v := range e.Values[:need] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s value %d is not finite", ErrInvalidEvent, e.Kind, i)
		}
	}
	return nil
}

// DeviceState is the interactive/unlocked state published by the device.
type DeviceState struct {
	Interactive bool `json:"interactive"`
	Unlocked    bool `json:"unlocked"`
}

// Allowed reports whether classification may run in this state.
func (s DeviceState) Allowed() bool {
	return s.Interactive && s.Unlocked
}
