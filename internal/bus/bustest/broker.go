// Package bustest provides an in-memory broker for testing bus clients.
package bustest

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Broker delivers publishes synchronously to exact-topic subscribers and
// keeps the last retained payload per topic.
type Broker struct {
	mu        sync.Mutex
	subs      map[string]map[*Client]mqtt.MessageHandler
	retained  map[string][]byte
	published []Message
}

func NewBroker() *Broker {
	return &Broker{
		subs:     make(map[string]map[*Client]mqtt.MessageHandler),
		retained: make(map[string][]byte),
	}
}

// Client returns a new client attached to the broker.
func (b *Broker) Client() *Client {
	return &Client{broker: b}
}

// Published returns every message published on topic, oldest first.
func (b *Broker) Published(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Retained returns the retained payload for topic.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.retained[topic]
	return p, ok
}

// Subscribed reports whether any client is subscribed to topic.
func (b *Broker) Subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic]) > 0
}

// Client implements bus.Client against a Broker.
type Client struct {
	broker *Broker

	// PublishErr, when set, fails every publish.
	PublishErr error
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c.PublishErr != nil {
		return &Token{err: c.PublishErr}
	}
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	default:
		return &Token{err: fmt.Errorf("bustest: unsupported payload type %T", payload)}
	}

	b := c.broker
	msg := Message{topic: topic, payload: body, qos: qos, retained: retained}
	b.mu.Lock()
	b.published = append(b.published, msg)
	if retained {
		b.retained[topic] = body
	}
	handlers := make([]mqtt.MessageHandler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(nil, Message{topic: topic, payload: body, qos: qos})
	}
	return &Token{}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	b := c.broker
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Client]mqtt.MessageHandler)
	}
	b.subs[topic][c] = callback
	payload, retained := b.retained[topic]
	b.mu.Unlock()

	if retained {
		callback(nil, Message{topic: topic, payload: payload, qos: qos, retained: true})
	}
	return &Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		delete(b.subs[topic], c)
	}
	return &Token{}
}

// Token is an already completed mqtt.Token.
type Token struct {
	err error
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Error() error                   { return t.err }

func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message implements mqtt.Message.
type Message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m Message) Duplicate() bool   { return false }
func (m Message) Qos() byte         { return m.qos }
func (m Message) Retained() bool    { return m.retained }
func (m Message) Topic() string     { return m.topic }
func (m Message) MessageID() uint16 { return 0 }
func (m Message) Payload() []byte   { return m.payload }
func (m Message) Ack()              {}
