package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/bus/bustest"
	"github.com/relabs-tech/pedestrian_status/internal/logging"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
	"github.com/relabs-tech/pedestrian_status/internal/sensor"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

const (
	topicSensor  = "test/sensor"
	topicDevice  = "test/device"
	topicControl = "test/control"
	topicStatus  = "test/status"
)

// readingFrame publishes a consistent accel/mag/gyro triple: phone tilted
// 40° toward the user, turning at the given rate.
func readingFrame(t *testing.T, c bus.Client, turn float64) {
	t.Helper()
	for _, ev := range []sensor.Event{
		{Kind: sensor.Accelerometer, Values: []float64{0, 6.3, 7.5}},
		{Kind: sensor.Magnetometer, Values: []float64{5, 22, -40}},
		{Kind: sensor.Gyroscope, Values: []float64{0, 0, turn}},
	} {
		test.That(t, bus.PublishJSON(c, topicSensor, false, ev), test.ShouldBeNil)
	}
}

func newTestService(t *testing.T, opts ServiceOptions) (*Service, *bustest.Broker, *notify.Slot) {
	broker := bustest.NewBroker()
	slot := &notify.Slot{}
	svc := NewService(broker.Client(), opts, slot, logging.NewTestLogger(t))
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	svc.clock = mock
	return svc, broker, slot
}

func TestServiceClassifiesSensorTopic(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{TopicSensor: topicSensor})
	test.That(t, svc.Start(), test.ShouldBeNil)
	test.That(t, svc.Active(), test.ShouldBeTrue)

	readingFrame(t, broker.Client(), 1.0)

	r, ok := slot.Latest()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Status, test.ShouldEqual, status.MovingLooking)
	test.That(t, r.Title, test.ShouldEqual, notify.Title)
	test.That(t, r.Time, test.ShouldEqual, svc.clock.Now())
	// accel alone has no magnetometer partner, so only the mag and gyro
	// events resolve
	test.That(t, slot.Count(), test.ShouldEqual, 2)

	readingFrame(t, broker.Client(), 0)
	r, _ = slot.Latest()
	test.That(t, r.Status, test.ShouldEqual, status.StillLooking)
}

func TestServiceGateFollowsDeviceState(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{
		TopicSensor:      topicSensor,
		TopicDeviceState: topicDevice,
	})
	test.That(t, svc.Start(), test.ShouldBeNil)
	pub := broker.Client()

	// closed until the first device state arrives
	readingFrame(t, pub, 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 0)

	test.That(t, bus.PublishJSON(pub, topicDevice, true, sensor.DeviceState{Interactive: true, Unlocked: false}), test.ShouldBeNil)
	readingFrame(t, pub, 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 0)

	test.That(t, bus.PublishJSON(pub, topicDevice, true, sensor.DeviceState{Interactive: true, Unlocked: true}), test.ShouldBeNil)
	readingFrame(t, pub, 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 2)
}

func TestServiceRetainedDeviceStateOpensGate(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{
		TopicSensor:      topicSensor,
		TopicDeviceState: topicDevice,
	})
	pub := broker.Client()
	test.That(t, bus.PublishJSON(pub, topicDevice, true, sensor.DeviceState{Interactive: true, Unlocked: true}), test.ShouldBeNil)

	test.That(t, svc.Start(), test.ShouldBeNil)
	readingFrame(t, pub, 0)
	test.That(t, slot.Count(), test.ShouldEqual, 2)
}

func TestServiceControlTopic(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{
		TopicSensor:  topicSensor,
		TopicControl: topicControl,
	})
	test.That(t, svc.Start(), test.ShouldBeNil)
	pub := broker.Client()

	test.That(t, bus.Wait(pub.Publish(topicControl, 0, false, "stop")), test.ShouldBeNil)
	test.That(t, svc.Active(), test.ShouldBeFalse)
	test.That(t, broker.Subscribed(topicSensor), test.ShouldBeFalse)

	readingFrame(t, pub, 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 0)

	// repeated commands are harmless
	test.That(t, svc.Control("stop"), test.ShouldBeNil)
	test.That(t, bus.Wait(pub.Publish(topicControl, 0, false, " START\n")), test.ShouldBeNil)
	test.That(t, svc.Control("start"), test.ShouldBeNil)
	test.That(t, svc.Active(), test.ShouldBeTrue)

	readingFrame(t, pub, 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 2)

	test.That(t, svc.Control("pause"), test.ShouldNotBeNil)
}

func TestServiceStop(t *testing.T) {
	svc, broker, _ := newTestService(t, ServiceOptions{
		TopicSensor:      topicSensor,
		TopicDeviceState: topicDevice,
		TopicControl:     topicControl,
	})
	test.That(t, svc.Start(), test.ShouldBeNil)
	test.That(t, svc.Stop(), test.ShouldBeNil)
	for _, topic := range []string{topicSensor, topicDevice, topicControl} {
		test.That(t, broker.Subscribed(topic), test.ShouldBeFalse)
	}
}

func TestServicePublishesRetainedStatus(t *testing.T) {
	broker := bustest.NewBroker()
	client := broker.Client()
	svc := NewService(client, ServiceOptions{TopicSensor: topicSensor},
		&notify.MQTTNotifier{Client: client, Topic: topicStatus}, logging.NewTestLogger(t))
	test.That(t, svc.Start(), test.ShouldBeNil)

	readingFrame(t, broker.Client(), 1.0)

	test.That(t, broker.Published(topicStatus), test.ShouldHaveLength, 2)
	payload, ok := broker.Retained(topicStatus)
	test.That(t, ok, test.ShouldBeTrue)
	var r notify.Report
	test.That(t, json.Unmarshal(payload, &r), test.ShouldBeNil)
	test.That(t, r.Status, test.ShouldEqual, status.MovingLooking)
}

func TestServiceSurvivesNotifyFailure(t *testing.T) {
	broker := bustest.NewBroker()
	failing := broker.Client()
	failing.PublishErr = errors.New("broker gone")
	slot := &notify.Slot{}
	svc := NewService(broker.Client(), ServiceOptions{TopicSensor: topicSensor},
		notify.Multi{&notify.MQTTNotifier{Client: failing, Topic: topicStatus}, slot}, logging.NewTestLogger(t))
	test.That(t, svc.Start(), test.ShouldBeNil)

	readingFrame(t, broker.Client(), 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 2)
}

func TestServiceIgnoresMalformedPayload(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{TopicSensor: topicSensor})
	test.That(t, svc.Start(), test.ShouldBeNil)
	pub := broker.Client()

	test.That(t, bus.Wait(pub.Publish(topicSensor, 0, false, "not json")), test.ShouldBeNil)
	test.That(t, bus.PublishJSON(pub, topicSensor, false, sensor.Event{Kind: sensor.Gyroscope, Values: []float64{1}}), test.ShouldBeNil)
	test.That(t, slot.Count(), test.ShouldEqual, 0)
}

func TestServiceDropsLateReading(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{TopicSensor: topicSensor})
	test.That(t, svc.Start(), test.ShouldBeNil)
	pub := broker.Client()

	for _, ev := range []sensor.Event{
		{Kind: sensor.Magnetometer, Values: []float64{5, 22, -40}, Timestamp: 1},
		{Kind: sensor.Gyroscope, Values: []float64{0, 0, 0}, Timestamp: 1},
		{Kind: sensor.Accelerometer, Values: []float64{0, 9.81, 0}, Timestamp: 3},
	} {
		test.That(t, bus.PublishJSON(pub, topicSensor, false, ev), test.ShouldBeNil)
	}
	r, ok := slot.Latest()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Status, test.ShouldEqual, status.Still)
	count := slot.Count()

	// a flat reading delivered late would read as looking at the screen
	late := sensor.Event{Kind: sensor.Accelerometer, Values: []float64{0, 0, 9.81}, Timestamp: 2}
	test.That(t, bus.PublishJSON(pub, topicSensor, false, late), test.ShouldBeNil)
	test.That(t, slot.Count(), test.ShouldEqual, count)
	r, _ = slot.Latest()
	test.That(t, r.Status, test.ShouldEqual, status.Still)
}

func TestServiceEmitsNothingAfterStop(t *testing.T) {
	svc, broker, slot := newTestService(t, ServiceOptions{TopicSensor: topicSensor})
	test.That(t, svc.Start(), test.ShouldBeNil)
	readingFrame(t, broker.Client(), 1.0)
	test.That(t, slot.Count(), test.ShouldEqual, 2)

	test.That(t, svc.Control(ControlStop), test.ShouldBeNil)
	// a handler that was already dispatched when the session stopped
	svc.HandleEvent(sensor.Event{Kind: sensor.Gyroscope, Values: []float64{0, 0, 0}})
	test.That(t, slot.Count(), test.ShouldEqual, 2)

	test.That(t, svc.Control(ControlStart), test.ShouldBeNil)
	svc.HandleEvent(sensor.Event{Kind: sensor.Gyroscope, Values: []float64{0, 0, 0}})
	test.That(t, slot.Count(), test.ShouldEqual, 3)
	r, _ := slot.Latest()
	test.That(t, r.Status, test.ShouldEqual, status.StillLooking)
}
