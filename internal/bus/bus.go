// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus wraps the MQTT client used between the pedestrian processes.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of mqtt.Client the services use.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// disconnectQuiesce is how long Disconnect waits for in-flight work, in ms.
const disconnectQuiesce = 250

// Connect opens an MQTT connection to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		// handlers subscribe and publish themselves, which deadlocks the
		// ordered router
		SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// Disconnect closes the connection after a short quiesce period.
func Disconnect(client mqtt.Client) {
	client.Disconnect(disconnectQuiesce)
}

// Wait blocks until tok completes and returns its error.
func Wait(tok mqtt.Token) error {
	tok.Wait()
	return tok.Error()
}

// PublishJSON marshals v and publishes it at QoS 0.
func PublishJSON(c Client, topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	if err := Wait(c.Publish(topic, 0, retained, payload)); err != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, err)
	}
	return nil
}

// SubscribeJSON subscribes to topic and decodes every payload into a new T
// before calling handle. Payloads that do not decode are passed to onError.
func SubscribeJSON[T any](c Client, topic string, handle func(T), onError func(error)) error {
	tok := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			if onError != nil {
				onError(fmt.Errorf("unmarshal (%s): %w", msg.Topic(), err))
			}
			return
		}
		handle(v)
	})
	if err := Wait(tok); err != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, err)
	}
	return nil
}
