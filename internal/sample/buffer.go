package sample

import (
	"github.com/golang/geo/r3"

	"github.com/relabs-tech/pedestrian_status/internal/sensor"
)

// Buffer holds the most recent reading of every sensor. Each update
// overwrites the previous value for that sensor; nothing else is kept.
// Buffer is not safe for concurrent use.
type Buffer struct {
	accel r3.Vector
	mag   r3.Vector
	gyro  r3.Vector

	proximity     float64
	haveProximity bool
}

// Snapshot is an immutable copy of the buffer contents.
type Snapshot struct {
	Accelerometer r3.Vector
	Magnetometer  r3.Vector
	Gyroscope     r3.Vector

	Proximity     float64
	HaveProximity bool // false until the first proximity reading
}

// Update overwrites the vector for a triaxial sensor kind. Proximity and
// unknown kinds are ignored; use UpdateProximity for distances.
func (b *Buffer) Update(kind sensor.Kind, x, y, z float64) {
	v := r3.Vector{X: x, Y: y, Z: z}
	switch kind {
	case sensor.Accelerometer:
		b.accel = v
	case sensor.Magnetometer:
		b.mag = v
	case sensor.Gyroscope:
		b.gyro = v
	}
}

// UpdateProximity overwrites the latest proximity distance.
func (b *Buffer) UpdateProximity(distance float64) {
	b.proximity = distance
	b.haveProximity = true
}

// Apply routes a validated event to the matching setter.
func (b *Buffer) Apply(ev sensor.Event) {
	if ev.Kind == sensor.Proximity {
		b.UpdateProximity(ev.Values[0])
		return
	}
	b.Update(ev.Kind, ev.Values[0], ev.Values[1], ev.Values[2])
}

func (b *Buffer) Snapshot() Snapshot {
	return Snapshot{
		Accelerometer: b.accel,
		Magnetometer:  b.mag,
		Gyroscope:     b.gyro,
		Proximity:     b.proximity,
		HaveProximity: b.haveProximity,
	}
}
