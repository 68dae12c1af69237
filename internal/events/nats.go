package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// connect dials NATS with callsheet's connection defaults; extra options
// are applied after the defaults.
func connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("callsheet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, opts...)
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
	return p.conn.Publish(topic, data)
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if !p.conn.IsClosed() {
		_ = p.conn.FlushTimeout(2 * time.Second)
	}
	p.conn.Close()
	return nil
}

// NATSSubscriber delivers raw event payloads from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with automatic reconnection. Extra nats.Option
// values (disconnect/reconnect handlers) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription fans NATS messages into a buffered channel. Messages that
// arrive while the channel is full are dropped so the NATS client never
// blocks on a slow reader.
type subscription struct {
	ch   chan []byte
	sub  *nats.Subscription
	mu   sync.Mutex
	done bool
	once sync.Once
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- msg.Data:
	default:
	}
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		s.mu.Lock()
		s.done = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Subscribe returns a channel of payloads for topic (NATS wildcards such as
// "callsheet.>" are allowed) and a cancel function that unsubscribes and
// closes the channel. Cancel is safe to call more than once.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	st := &subscription{ch: make(chan []byte, 64)}

	sub, err := s.conn.Subscribe(topic, st.deliver)
	if err != nil {
		st.cancel()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	st.sub = sub

	// Make sure the server knows about the subscription before returning,
	// so messages published on other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		st.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return st.ch, st.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
