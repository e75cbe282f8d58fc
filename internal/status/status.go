// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import "fmt"

// Status is the pedestrian status category shown to the user.
type Status int

const (
	Still Status = iota
	StillLooking
	Moving
	MovingLooking
	Pocketed
)

// Pitch band, in degrees and inclusive on both ends, in which the user is
// assumed to be looking at the screen.
const (
	LookingMin = 0.0
	LookingMax = 75.0
)

var names = [...]string{
	Still:         "STILL",
	StillLooking:  "STILL_LOOKING",
	Moving:        "MOVING",
	MovingLooking: "MOVING_LOOKING",
	Pocketed:      "POCKETED",
}

var texts = [...]string{
	Still:         "You are still.",
	StillLooking:  "You are still and using the phone, Watch Out !!!",
	Moving:        "You are moving.",
	MovingLooking: "You are moving and using the phone, Heads Up !!!",
	Pocketed:      "Phone is in the Pocket or you are on Call.",
}

func (s Status) valid() bool {
	return s >= Still && s <= Pocketed
}

func (s Status) String() string {
	if !s.valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return names[s]
}

// Text is the message displayed for the status.
func (s Status) Text() string {
	if !s.valid() {
		return ""
	}
	return texts[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("status: unknown value %d", int(s))
	}
	return []byte(names[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range names {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("status: unknown name %q", b)
}

// IsLooking reports whether the pitch falls in the looking band.
func IsLooking(pitch float64) bool {
	return pitch >= LookingMin && pitch <= LookingMax
}

// Resolve maps the fused cues to a status. Proximity wins over everything,
// then motion, then the pitch band.
func Resolve(moving, near bool, pitch float64) Status {
	switch {
	case near:
		return Pocketed
	case moving && IsLooking(pitch):
		return MovingLooking
	case moving:
		return Moving
	case IsLooking(pitch):
		return StillLooking
	default:
		return Still
	}
}
