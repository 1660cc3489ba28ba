package broker

import (
	"context"
	"errors"
	"time"

	"github.com/casualjim/waggle/messages"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// ErrClosed is returned by Publish and RequestResponse after Close.
var ErrClosed = errors.New("broker: closed")

// Handler consumes one envelope. It may block, return a structured
// result, or fail; what happens to the result and the failure depends
// on the caller. The broker itself discards results and converts
// failures into log lines and counters — results reach a requester only
// through Respond.
type Handler interface {
	Handle(ctx context.Context, env *messages.Envelope) (*messages.Payload, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *messages.Envelope) (*messages.Payload, error)

func (f HandlerFunc) Handle(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	return f(ctx, env)
}

// Broker routes envelopes between identities. Implementations must be
// safe for concurrent use from any number of goroutines.
type Broker interface {
	// Subscribe appends a handler to the identity's delivery list. It
	// never fails; duplicate registrations fan out in registration
	// order.
	Subscribe(identity string, h Handler)

	// Publish records the envelope and delivers it. Direct envelopes go
	// to every handler of the recipient, broadcasts to every handler of
	// every identity except the sender. The error covers caller
	// mistakes (nil envelope, closed broker, cancelled context) only;
	// handler outcomes never surface here.
	Publish(ctx context.Context, env *messages.Envelope) error

	// RequestResponse publishes the envelope with response tracking and
	// blocks until a matching Respond or the deadline. A timeout yields
	// (nil, nil): absence, not failure. The pending slot is gone by the
	// time the call returns, on every path.
	RequestResponse(ctx context.Context, env *messages.Envelope, timeout time.Duration) (*messages.Payload, error)

	// Respond resolves the pending request identified by correlationID.
	// Unknown, expired, and already-resolved correlation ids are silent
	// no-ops; only the first resolution takes effect.
	Respond(correlationID uuid.UUID, result *messages.Payload)

	// History returns the recorded envelopes matching the query, oldest
	// first, windowed to the most recent Limit entries.
	History(filters ...opts.Option[HistoryQuery]) []*messages.Envelope

	// Metrics returns a point-in-time snapshot of the delivery counters.
	Metrics() Metrics

	// Close stops accepting publishes. In-flight waits run to their
	// deadline; nothing is force-resolved.
	Close() error
}

// HistoryQuery narrows a History call. The zero value matches
// everything with no window.
type HistoryQuery struct {
	Sender string
	Kind   messages.Kind
	Limit  int
}

var (
	// SentBy keeps only envelopes published by the given identity.
	SentBy = opts.ForName[HistoryQuery, string]("Sender")

	// OfKind keeps only envelopes of the given kind.
	OfKind = opts.ForName[HistoryQuery, messages.Kind]("Kind")

	// Limit windows the result to the most recent n matches.
	Limit = opts.ForName[HistoryQuery, int]("Limit")
)

// Metrics is a copy of the broker's counters; mutating it has no effect
// on the broker.
type Metrics struct {
	TotalPublished  uint64                   `json:"total_published"`
	BySender        map[string]uint64        `json:"by_sender"`
	ByKind          map[messages.Kind]uint64 `json:"by_kind"`
	Identities      int                      `json:"identities"`
	HandlerFailures uint64                   `json:"handler_failures"`
}
