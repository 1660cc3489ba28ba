package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultSlowWarn       = 100 * time.Millisecond
)

// Local is the in-memory Broker implementation. All state lives for the
// process lifetime; nothing is persisted or shared across processes.
type Local struct {
	defaultTimeout time.Duration
	slowWarn       time.Duration

	mu          sync.RWMutex
	subscribers *orderedmap.OrderedMap[string, []Handler]

	pending  *pendingTable
	history  *historyLog
	counters *counters

	closed    atomic.Bool
	closeOnce sync.Once
}

var (
	// WithDefaultTimeout sets the deadline applied when RequestResponse
	// is called with a non-positive timeout.
	WithDefaultTimeout = opts.ForName[Local, time.Duration]("defaultTimeout")

	// WithSlowHandlerWarning sets the delivery duration above which a
	// single handler gets flagged in the log. Zero disables the check.
	WithSlowHandlerWarning = opts.ForName[Local, time.Duration]("slowWarn")
)

// New constructs a Local broker.
func New(options ...opts.Option[Local]) *Local {
	b := &Local{
		defaultTimeout: defaultRequestTimeout,
		slowWarn:       defaultSlowWarn,
		subscribers:    orderedmap.New[string, []Handler](),
		pending:        newPendingTable(),
		history:        newHistoryLog(),
		counters:       newCounters(),
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	return b
}

// Subscribe never fails: a nil handler is dropped with a log line so a
// broken caller cannot poison the delivery list.
func (b *Local) Subscribe(identity string, h Handler) {
	if h == nil {
		slog.Warn("ignoring nil handler subscription",
			slogx.LoggerName("broker"),
			slog.String("identity", identity))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	handlers, _ := b.subscribers.Get(identity)
	b.subscribers.Set(identity, append(handlers, h))
}

func (b *Local) Publish(ctx context.Context, env *messages.Envelope) error {
	if env == nil {
		return fmt.Errorf("broker: nil envelope")
	}
	if b.closed.Load() {
		return ErrClosed
	}

	// Record before delivering: an unrouted envelope still counts and
	// still shows up in history.
	b.history.append(env)
	b.counters.record(env)

	return b.deliver(ctx, env)
}

func (b *Local) RequestResponse(ctx context.Context, env *messages.Envelope, timeout time.Duration) (*messages.Payload, error) {
	if env == nil {
		return nil, fmt.Errorf("broker: nil envelope")
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	env.NeedsResponse = true
	if env.CorrelationID == uuid.Nil {
		env.CorrelationID = env.ID
	}

	cell := b.pending.add(env.CorrelationID)
	defer b.pending.remove(env.CorrelationID)

	if err := b.Publish(ctx, env); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := cell.Await(waitCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Deadline elapsed: absence, not failure.
		slog.Debug("request timed out",
			slogx.LoggerName("broker"),
			slogx.Stringer("correlation_id", env.CorrelationID),
			slog.Duration("timeout", timeout))
		return nil, nil
	}
	return result, nil
}

func (b *Local) Respond(correlationID uuid.UUID, result *messages.Payload) {
	if correlationID == uuid.Nil {
		return
	}
	if !b.pending.resolve(correlationID, result) {
		// Unknown or already-settled correlation ids are expected after
		// timeouts; nothing to signal.
		slog.Debug("dropping response with no pending request",
			slogx.LoggerName("broker"),
			slogx.Stringer("correlation_id", correlationID))
	}
}

func (b *Local) History(filters ...opts.Option[HistoryQuery]) []*messages.Envelope {
	var q HistoryQuery
	if err := opts.Apply(&q, filters); err != nil {
		panic(err)
	}
	return b.history.query(q)
}

func (b *Local) Metrics() Metrics {
	b.mu.RLock()
	identities := b.subscribers.Len()
	b.mu.RUnlock()
	return b.counters.snapshot(identities)
}

func (b *Local) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		slog.Debug("broker closed", slogx.LoggerName("broker"))
	})
	return nil
}

func (b *Local) deliver(ctx context.Context, env *messages.Envelope) error {
	if !env.IsBroadcast() {
		handlers := b.handlersFor(env.Recipient)
		if len(handlers) == 0 {
			slog.Debug("unrouted delivery",
				slogx.LoggerName("broker"),
				slog.String("recipient", env.Recipient),
				slogx.Stringer("kind", env.Kind))
			return nil
		}
		return b.invokeAll(ctx, env.Recipient, handlers, env)
	}

	targets := b.broadcastTargets(env.Sender)
	if len(targets) == 0 {
		slog.Debug("broadcast with no eligible recipients",
			slogx.LoggerName("broker"),
			slog.String("sender", env.Sender),
			slogx.Stringer("kind", env.Kind))
		return nil
	}
	for _, t := range targets {
		if err := b.invokeAll(ctx, t.identity, t.handlers, env); err != nil {
			return err
		}
	}
	return nil
}

type fanoutTarget struct {
	identity string
	handlers []Handler
}

// handlersFor snapshots the recipient's handler list so delivery runs
// without holding the registry lock.
func (b *Local) handlersFor(identity string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers, _ := b.subscribers.Get(identity)
	return slices.Clone(handlers)
}

// broadcastTargets snapshots every identity except the sender, in
// first-subscription order. That order is what makes broadcast fan-out
// deterministic across publishes.
func (b *Local) broadcastTargets(sender string) []fanoutTarget {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := make([]fanoutTarget, 0, b.subscribers.Len())
	for pair := b.subscribers.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == sender {
			continue
		}
		targets = append(targets, fanoutTarget{
			identity: pair.Key,
			handlers: slices.Clone(pair.Value),
		})
	}
	return targets
}

func (b *Local) invokeAll(ctx context.Context, identity string, handlers []Handler, env *messages.Envelope) error {
	for _, h := range handlers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.invoke(ctx, identity, h, env)
	}
	return nil
}

// invoke runs one handler, converting every failure mode into log
// lines and counters. The handler's result payload is deliberately
// discarded: responses travel only through Respond.
func (b *Local) invoke(ctx context.Context, identity string, h Handler, env *messages.Envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.counters.failed()
			slog.Error("handler panicked",
				slogx.LoggerName("broker"),
				slog.String("identity", identity),
				slogx.Stringer("envelope", env.ID),
				slog.Any("panic", r))
		}
		if b.slowWarn > 0 {
			if elapsed := time.Since(start); elapsed > b.slowWarn {
				slog.Warn("slow handler",
					slogx.LoggerName("broker"),
					slog.String("identity", identity),
					slogx.Stringer("kind", env.Kind),
					slog.Duration("elapsed", elapsed))
			}
		}
	}()

	if _, err := h.Handle(ctx, env); err != nil {
		b.counters.failed()
		slog.Error("handler failed",
			slogx.LoggerName("broker"),
			slog.String("identity", identity),
			slogx.Stringer("envelope", env.ID),
			slogx.Stringer("kind", env.Kind),
			slogx.Error(err))
	}
}
