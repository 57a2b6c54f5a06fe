// Package natsbus carries resource change events between server instances
// over NATS core subjects.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natspkg "github.com/nats-io/nats.go"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// DefaultSubject is the subject resource events are published on.
const DefaultSubject = "previewshare.resources"

// Config configures the NATS connection.
type Config struct {
	URL     string `koanf:"url" json:"url" yaml:"url"`
	Subject string `koanf:"subject" json:"subject" yaml:"subject"`
	Name    string `koanf:"name" json:"name" yaml:"name"`
}

// DefaultConfig returns the default bus settings.
func DefaultConfig() Config {
	return Config{
		URL:     natspkg.DefaultURL,
		Subject: DefaultSubject,
		Name:    "previewshare",
	}
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev domain.ResourceEvent) error

// Bus publishes and subscribes to resource events.
type Bus struct {
	nc      *natspkg.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials NATS. Messages published by this connection are not
// delivered back to its own subscriptions.
func Connect(cfg Config, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	nc, err := natspkg.Connect(cfg.URL,
		natspkg.Name(cfg.Name),
		natspkg.NoEcho(),
		natspkg.MaxReconnects(-1),
		natspkg.ReconnectWait(time.Second),
		natspkg.DisconnectErrHandler(func(_ *natspkg.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		natspkg.ReconnectHandler(func(c *natspkg.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", cfg.URL, err)
	}
	return &Bus{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends ev to every other subscribed instance.
func (b *Bus) Publish(_ context.Context, ev domain.ResourceEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("natsbus: publish: %w", err)
	}
	return nil
}

// Subscribe delivers decoded events to handler. Undecodable messages and
// handler failures are logged and dropped.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) (*natspkg.Subscription, error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *natspkg.Msg) {
		ev, err := Decode(msg.Data)
		if err != nil {
			b.logger.Warn("dropping malformed resource event", "error", err)
			return
		}
		if err := handler(ctx, ev); err != nil {
			b.logger.Error("resource event handler failed",
				"kind", ev.Kind,
				"resource_id", ev.ResourceID,
				"error", err,
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("natsbus: subscribe %s: %w", b.subject, err)
	}
	return sub, nil
}

// Flush waits until published messages reach the server.
func (b *Bus) Flush(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

// IsConnected reports whether the connection is up.
func (b *Bus) IsConnected() bool {
	return b.nc != nil && b.nc.Status() == natspkg.CONNECTED
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil && !errors.Is(err, natspkg.ErrConnectionClosed) {
		return err
	}
	return nil
}

// Encode serializes an event.
func Encode(ev domain.ResourceEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("natsbus: encode: %w", err)
	}
	return data, nil
}

// Decode parses and validates an event.
func Decode(data []byte) (domain.ResourceEvent, error) {
	var ev domain.ResourceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("natsbus: decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}
