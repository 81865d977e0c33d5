package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core"
)

// NATSNotifier publishes alerts as JSON on a NATS subject
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
}

// NewNATSNotifier connects to cfg.URL
func NewNATSNotifier(cfg config.NATSConfig) (*NATSNotifier, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "exchanger.alerts"
	}

	nc, err := nats.Connect(url, nats.Name("exchanger-alerts"))
	if err != nil {
		return nil, fmt.Errorf("alert: connect nats: %w", err)
	}
	return &NATSNotifier{nc: nc, subject: subject}, nil
}

// Notify implements Notifier. It returns once the server acknowledged the flush.
func (n *NATSNotifier) Notify(ctx context.Context, a Alert) error {
	data, err := core.JSONEncode(a)
	if err != nil {
		return err
	}

	msg := &nats.Msg{Subject: n.subject, Data: data, Header: nats.Header{}}
	if rid := core.GetRequestID(ctx); rid != "" {
		msg.Header.Set("X-Request-ID", rid)
	}
	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("alert: publish: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("alert: flush: %w", err)
	}
	return nil
}

// Close drains and closes the connection
func (n *NATSNotifier) Close() error {
	return n.nc.Drain()
}
