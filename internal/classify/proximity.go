package classify

// IsNear reports whether something is closer than the proximity sensor's
// maximum range. A maxRange of 0 marks the sensor as absent and never
// reports near for a non-negative distance.
func IsNear(distance, maxRange float64) bool {
	return distance < maxRange
}
