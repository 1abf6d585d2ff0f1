// Package events publishes request lifecycle events to NATS. Consumers
// (analytics, audit) subscribe to "<prefix>.request.<name>".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Event names.
const (
	Created       = "created"
	Negotiation   = "negotiation"
	Accepted      = "accepted"
	Rejected      = "rejected"
	Paid          = "paid"
	ProofAttached = "proof_attached"
	Completed     = "completed"
	Canceled      = "canceled"
	Reviewed      = "reviewed"
)

// Event is one lifecycle fact about a request.
type Event struct {
	Name      string            `json:"name"`
	RequestID uint              `json:"request_id"`
	Actor     int64             `json:"actor,omitempty"`
	At        time.Time         `json:"at"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Publisher emits events. Implementations must not block the caller on a
// slow or absent broker for long.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
}

// NATS publishes events as JSON on a core NATS connection.
type NATS struct {
	nc     conn
	prefix string
	close  func()
}

// Connect dials url and returns a NATS publisher using subject prefix.
func Connect(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("relaybot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("events: nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect: %w", err)
	}
	return &NATS{nc: nc, prefix: prefix, close: nc.Close}, nil
}

// Subject returns the subject an event with name is published on.
func (p *NATS) Subject(name string) string {
	return p.prefix + ".request." + name
}

// Publish implements Publisher.
func (p *NATS) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	return p.nc.Publish(p.Subject(e.Name), data)
}

// Close closes the underlying connection.
func (p *NATS) Close() {
	if p.close != nil {
		p.close()
	}
}
