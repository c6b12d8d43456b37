package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriberBuffer is the per-subscription channel capacity. Messages that
// arrive while it is full are dropped and counted.
const subscriberBuffer = 64

// connect dials url with reconnects enabled. Caller options are applied
// after the defaults.
func connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to the NATS subject named by
// the topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "forms-server", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	msg := &nats.Msg{Subject: topic, Data: data, Header: nats.Header{}}
	msg.Header.Set("Content-Type", "application/json")
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		p.conn.Close()
		return err
	}
	return nil
}

// NATSSubscriber receives events over NATS subjects, wildcards included.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

// NewNATSSubscriber connects to NATS with automatic reconnection. Extra
// options such as disconnect handlers are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "forms-subscriber", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription feeds one NATS subscription into a buffered channel. The NATS
// callback never blocks; a full channel drops the message.
type subscription struct {
	ch      chan Message
	dropped *atomic.Uint64

	mu     sync.Mutex
	closed bool
	once   sync.Once
	sub    *nats.Subscription
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Message{Topic: msg.Subject, Data: msg.Data}:
	default:
		s.dropped.Add(1)
	}
}

// cancel unsubscribes, discards anything still queued and closes the
// channel. Safe to call more than once.
func (s *subscription) cancel() {
	s.once.Do(func() {
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		for {
			select {
			case <-s.ch:
			default:
				close(s.ch)
				return
			}
		}
	})
}

// Subscribe implements Subscriber.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	sub := &subscription{ch: make(chan Message, subscriberBuffer), dropped: &s.dropped}

	ns, err := s.conn.Subscribe(topic, sub.deliver)
	if err != nil {
		sub.cancel()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	sub.sub = ns
	// The subscription must reach the server before we return, or messages
	// published right after Subscribe on another connection are missed.
	if err := s.conn.Flush(); err != nil {
		sub.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return sub.ch, sub.cancel, nil
}

// Dropped returns how many messages were discarded because a subscriber's
// channel was full.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
