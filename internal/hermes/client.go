package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Client interface {
	Publish(subject string, data interface{}) error
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Close()
}

// Options configures the NATS connection and the JetStream stream that
// retains profile events.
type Options struct {
	URL string
	// Stream defaults to StreamName.
	Stream string
	// Retention bounds how long events are kept; zero uses DefaultRetention.
	Retention     time.Duration
	MaxReconnects int
}

// DefaultRetention keeps session events long enough to rebuild a quarter of
// assessment history.
const DefaultRetention = 90 * 24 * time.Hour

func (o Options) withDefaults() Options {
	if o.Stream == "" {
		o.Stream = StreamName
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = 60
	}
	return o
}

// StreamConfig returns the JetStream configuration for the events stream.
// Results events are written once per session, so duplicates within the
// window are dropped by message id.
func (o Options) StreamConfig() jetstream.StreamConfig {
	o = o.withDefaults()
	return jetstream.StreamConfig{
		Name:        o.Stream,
		Description: "profile assessment session and results events",
		Subjects:    StreamSubjects,
		MaxAge:      o.Retention,
		Duplicates:  2 * time.Minute,
	}
}

// NATSClient publishes JSON events over core NATS; the JetStream stream
// captures them for replay.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewNATSClient(ctx context.Context, opts Options, logger *slog.Logger) (*NATSClient, error) {
	opts = opts.withDefaults()
	nc, err := nats.Connect(opts.URL,
		nats.Name("profile"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("hermes disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("hermes reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := &NATSClient{conn: nc, js: js, logger: logger}
	if _, err := js.CreateOrUpdateStream(ctx, opts.StreamConfig()); err != nil {
		logger.Warn("failed to ensure stream", "stream", opts.Stream, "error", err)
	}
	return c, nil
}

// Publish sends data as JSON. Results events carry a Nats-Msg-Id so a
// finalizer retry does not store the same report twice.
func (c *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if id := MessageID(subject); id != "" {
		msg.Header.Set(nats.MsgIdHdr, id)
	}
	return c.conn.PublishMsg(msg)
}

func (c *NATSClient) Subscribe(subject string, handler func(string, []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return err
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Nop discards every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(string, interface{}) error                         { return nil }
func (Nop) Subscribe(string, func(subject string, data []byte)) error { return nil }
func (Nop) Close()                                                    {}

func (c *NATSClient) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
