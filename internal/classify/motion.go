// Package classify turns single sensor readings into boolean posture cues.
package classify

import "github.com/golang/geo/r3"

// AngularVelocityThreshold is the angular speed, in rad/s, above which the
// device is considered to be moving.
const AngularVelocityThreshold = 0.15

// AngularSpeed is the Euclidean norm of a gyroscope reading.
func AngularSpeed(gyro r3.Vector) float64 {
	return gyro.Norm()
}

// IsMoving reports whether the angular speed is strictly above the
// threshold. Every reading is judged on its own, without hysteresis.
func IsMoving(gyro r3.Vector) bool {
	return AngularSpeed(gyro) > AngularVelocityThreshold
}
