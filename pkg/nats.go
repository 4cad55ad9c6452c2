package pkg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url, name string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// PublishJSON encodes evt and publishes it on topic. A nil publisher is a no-op
// so callers can run without a broker.
func PublishJSON(ctx context.Context, publisher events.Publisher, topic string, evt interface{}) error {
	if publisher == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", topic, err)
	}
	return publisher.Publish(ctx, topic, data)
}

type NATSSubscriber struct {
	conn    *nats.Conn
	onError func(topic string, err error)
}

func NewNATSSubscriber(url, name string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

// OnError registers a callback for handler failures.
func (s *NATSSubscriber) OnError(fn func(topic string, err error)) {
	s.onError = fn
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	_, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil && s.onError != nil {
			s.onError(msg.Subject, err)
		}
	})
	return err
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
