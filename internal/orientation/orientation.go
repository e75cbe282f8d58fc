// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

const (
	standardGravity = 9.81 // m/s²

	// Below 10% of g the device is considered to be in free fall.
	freeFallGravitySquared = 0.01 * standardGravity * standardGravity

	// Minimum |E × A| before the field is treated as parallel to gravity
	// (or too weak to give a heading).
	minHorizontalNorm = 0.1
)

// Pose is orientation in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RotationMatrix is a row-major 3x3 matrix that maps device coordinates to
// world coordinates (x east, y north, z up).
type RotationMatrix [9]float64

// Dense returns the matrix as a gonum matrix.
func (r RotationMatrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, r[:])
}

// Estimate is a successful fusion of one accelerometer and one
// magnetometer reading.
type Estimate struct {
	Rotation RotationMatrix `json:"rotation"`
	Pose     Pose           `json:"pose"`
}

// Rotation computes the device rotation from a gravity and a geomagnetic
// vector, both in device coordinates. It returns false when the device is
// in free fall or the two vectors are (nearly) parallel.
func Rotation(gravity, geomagnetic r3.Vector) (RotationMatrix, bool) {
	if gravity.Norm2() < freeFallGravitySquared {
		return RotationMatrix{}, false
	}

	h := geomagnetic.Cross(gravity)
	normH := h.Norm()
	if normH < minHorizontalNorm {
		return RotationMatrix{}, false
	}

	h = h.Mul(1 / normH)
	a := gravity.Mul(1 / gravity.Norm())
	m := a.Cross(h)

	return RotationMatrix{
		h.X, h.Y, h.Z,
		m.X, m.Y, m.Z,
		a.X, a.Y, a.Z,
	}, true
}

// Angles returns azimuth, pitch and roll in radians. Pitch follows the
// rotation-about-x convention, so it is negative when the top edge of the
// device points up.
func Angles(r RotationMatrix) (azimuth, pitch, roll float64) {
	azimuth = math.Atan2(r[1], r[4])
	pitch = math.Asin(clamp(-r[7], -1, 1))
	roll = math.Atan2(-r[6], r[8])
	return azimuth, pitch, roll
}

// PitchDegrees returns the viewing pitch in degrees: positive when the top
// of the device is tilted up toward the user, 0 when lying flat.
func PitchDegrees(r RotationMatrix) float64 {
	_, pitch, _ := Angles(r)
	return -degrees(pitch)
}

// EstimateFrom fuses gravity and geomagnetic vectors into a rotation and a pose.
func EstimateFrom(gravity, geomagnetic r3.Vector) (Estimate, bool) {
	r, ok := Rotation(gravity, geomagnetic)
	if !ok {
		return Estimate{}, false
	}
	azimuth, _, roll := Angles(r)
	return Estimate{
		Rotation: r,
		Pose: Pose{
			Roll:  degrees(roll),
			Pitch: PitchDegrees(r),
			Yaw:   degrees(azimuth),
		},
	}, true
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
