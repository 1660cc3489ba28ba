package waggle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/internal/registry"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/fogfish/opts"
)

// MessageHandler processes one envelope addressed to an endpoint. When
// the envelope asks for a response, the returned payload is what the
// requester receives; an error (or panic) is converted into a
// structured error payload instead.
type MessageHandler func(ctx context.Context, env *messages.Envelope) (*messages.Payload, error)

// Agent is a per-identity facade over the broker. It owns a table of
// per-kind handlers and a single broker subscription that dispatches
// every delivered envelope through that table.
type Agent struct {
	identity string
	bus      broker.Broker
	handlers registry.Registry[MessageHandler]
	started  atomic.Bool
}

// NewAgent builds an endpoint for identity on bus. The endpoint stays
// invisible to the broker until Start.
func NewAgent(identity string, bus broker.Broker) *Agent {
	return &Agent{
		identity: identity,
		bus:      bus,
		handlers: registry.New[MessageHandler](),
	}
}

// Identity returns the name this endpoint subscribes under.
func (a *Agent) Identity() string {
	return a.identity
}

// RegisterHandler installs the handler for a kind. There is exactly one
// handler per kind: registering again replaces the previous one.
// Registration works before and after Start.
func (a *Agent) RegisterHandler(kind messages.Kind, h MessageHandler) {
	if h == nil {
		slog.Warn("ignoring nil handler registration",
			slogx.LoggerName("agent"),
			slog.String("identity", a.identity),
			slogx.Stringer("kind", kind))
		return
	}
	a.handlers.Add(kind.String(), h)
}

// Start installs the broker subscription. Calling it again is a no-op;
// the endpoint never subscribes twice.
func (a *Agent) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	a.bus.Subscribe(a.identity, a)
}

// Handle implements broker.Handler: it is the endpoint's incoming
// dispatch path. The envelope's kind selects the registered handler;
// unhandled kinds are dropped with a log line and nothing is signaled
// back to the sender. When the envelope requires a response and carries
// a correlation id, the handler's result (or the error payload standing
// in for a failure) is always sent back through Respond, so a waiting
// requester is released even on failure.
func (a *Agent) Handle(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	handler, found := a.handlers.Get(env.Kind.String())
	if !found {
		slog.Debug("dropping envelope with no handler",
			slogx.LoggerName("agent"),
			slog.String("identity", a.identity),
			slogx.Stringer("kind", env.Kind),
			slog.String("sender", env.Sender))
		return nil, nil
	}

	result, err := a.invokeHandler(ctx, handler, env)
	if err != nil {
		result = messages.ErrorPayload(err)
	}

	if env.NeedsResponse && env.HasCorrelation() {
		a.bus.Respond(env.CorrelationID, result)
	}

	// The error still surfaces to the broker so its failure accounting
	// sees it; it never travels further than that.
	return result, err
}

func (a *Agent) invokeHandler(ctx context.Context, h MessageHandler, env *messages.Envelope) (result *messages.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler for %s panicked: %v", env.Kind, r)
		}
	}()
	return h(ctx, env)
}

// SendRequest carries the per-call knobs of Send.
type SendRequest struct {
	priority messages.Priority
	await    bool
	timeout  time.Duration
}

// SendPriority tags the outgoing envelope with an urgency level.
var SendPriority = opts.ForName[SendRequest, messages.Priority]("priority")

// AwaitResponse turns a send into a request/response exchange: Send
// blocks until a response arrives or the timeout elapses. A
// non-positive timeout falls back to the broker's default.
func AwaitResponse(timeout time.Duration) opts.Option[SendRequest] {
	return opts.Type[SendRequest](func(r *SendRequest) error {
		r.await = true
		r.timeout = timeout
		return nil
	})
}

// Send delivers a payload to one identity. Fire-and-forget by default:
// the first return value is nil unless AwaitResponse was requested, in
// which case it is the response payload, or nil again when the exchange
// timed out.
func (a *Agent) Send(ctx context.Context, to string, kind messages.Kind, payload *messages.Payload, options ...opts.Option[SendRequest]) (*messages.Payload, error) {
	req := SendRequest{priority: messages.PriorityLow}
	if err := opts.Apply(&req, options); err != nil {
		return nil, err
	}

	env := messages.New(a.identity, kind, payload,
		messages.To(to),
		messages.WithPriority(req.priority))

	if req.await {
		return a.bus.RequestResponse(ctx, env, req.timeout)
	}
	return nil, a.bus.Publish(ctx, env)
}

// Broadcast publishes a recipient-less envelope to everyone except this
// endpoint. Envelope options such as messages.WithPriority apply.
func (a *Agent) Broadcast(ctx context.Context, kind messages.Kind, payload *messages.Payload, options ...opts.Option[messages.Envelope]) error {
	env := messages.New(a.identity, kind, payload, options...)
	return a.bus.Publish(ctx, env)
}
