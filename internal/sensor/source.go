package sensor

// Source is anything that can provide sensor readings over time:
// the mock phone, the MPU9250, or a replay.
type Source interface {
	// Next returns the readings taken since the previous call.
	Next() ([]Event, error)
}
