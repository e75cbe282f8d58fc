package app

import (
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/pedestrian_status/internal/bridge"
	"github.com/relabs-tech/pedestrian_status/internal/bus/bustest"
	"github.com/relabs-tech/pedestrian_status/internal/logging"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

func sentences(t *testing.T, events ...sensor.Event) []string {
	t.Helper()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		line, err := bridge.FormatReading(ev)
		test.That(t, err, test.ShouldBeNil)
		out = append(out, line)
	}
	return out
}

func TestForwardSentencesThroughService(t *testing.T) {
	broker := bustest.NewBroker()
	slot := &notify.Slot{}
	svc := NewService(broker.Client(), ServiceOptions{
		TopicSensor:       topicSensor,
		TopicDeviceState:  topicDevice,
		ProximityMaxRange: 5,
	}, slot, logging.NewTestLogger(t))
	test.That(t, svc.Start(), test.ShouldBeNil)

	lines := []string{bridge.FormatState(sensor.DeviceState{Interactive: true, Unlocked: true})}
	lines = append(lines, sentences(t,
		sensor.Event{Kind: sensor.Accelerometer, Values: []float64{0, 6.3, 7.5}},
		sensor.Event{Kind: sensor.Magnetometer, Values: []float64{5, 22, -40}},
		sensor.Event{Kind: sensor.Gyroscope, Values: []float64{0, 0, 0.5}},
		sensor.Event{Kind: sensor.Proximity, Values: []float64{0}},
	)...)
	lines = append(lines, "$GPRMC,garbage*00", "")

	err := ForwardSentences(strings.NewReader(strings.Join(lines, "\n")), broker.Client(),
		topicSensor, topicDevice, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, broker.Published(topicSensor), test.ShouldHaveLength, 4)
	_, retained := broker.Retained(topicDevice)
	test.That(t, retained, test.ShouldBeTrue)

	// mag, gyro and proximity resolve
	test.That(t, slot.Count(), test.ShouldEqual, 3)
	r, _ := slot.Latest()
	test.That(t, r.Status, test.ShouldEqual, status.Pocketed)
}
