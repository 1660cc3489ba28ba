package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/waggle/messages"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a handler that appends a tag to a shared trace on every
// invocation, so tests can assert both invocation counts and order.
type recorder struct {
	mu    sync.Mutex
	trace *[]string
	tag   string
}

func (r *recorder) Handle(_ context.Context, _ *messages.Envelope) (*messages.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.trace = append(*r.trace, r.tag)
	return nil, nil
}

func tracing(trace *[]string, tag string) *recorder {
	return &recorder{trace: trace, tag: tag}
}

func TestPublishDirectInvokesAllHandlersInOrder(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var trace []string
	b.Subscribe("picker", tracing(&trace, "first"))
	b.Subscribe("picker", tracing(&trace, "second"))
	b.Subscribe("picker", tracing(&trace, "third"))

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	require.NoError(t, b.Publish(context.Background(), env))

	assert.Equal(t, []string{"first", "second", "third"}, trace)
	assert.Len(t, b.History(), 1)
}

func TestSubscribeSameHandlerTwiceInvokesTwice(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var trace []string
	h := tracing(&trace, "dup")
	b.Subscribe("picker", h)
	b.Subscribe("picker", h)

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	require.NoError(t, b.Publish(context.Background(), env))

	assert.Equal(t, []string{"dup", "dup"}, trace)
}

func TestSubscribeNilHandlerIsIgnored(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	b.Subscribe("picker", nil)

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	require.NoError(t, b.Publish(context.Background(), env))
	assert.Zero(t, b.Metrics().Identities)
}

func TestBroadcastSkipsSenderAndKeepsIdentityOrder(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var trace []string
	b.Subscribe("demand", tracing(&trace, "demand"))
	b.Subscribe("supply", tracing(&trace, "supply"))
	b.Subscribe("logistics", tracing(&trace, "logistics"))
	// A second handler under an already-known identity must not move
	// that identity in the fan-out order.
	b.Subscribe("demand", tracing(&trace, "demand-2"))

	env := messages.New("supply", messages.KindSupplyAlert, nil)
	require.True(t, env.IsBroadcast())
	require.NoError(t, b.Publish(context.Background(), env))

	assert.Equal(t, []string{"demand", "demand-2", "logistics"}, trace)
}

func TestPublishUnroutedIsNotAnError(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("ghost"))
	require.NoError(t, b.Publish(context.Background(), env))

	// Recorded even though nobody was listening.
	assert.Len(t, b.History(), 1)
	assert.Equal(t, uint64(1), b.Metrics().TotalPublished)
}

func TestPublishNilEnvelope(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	require.Error(t, b.Publish(context.Background(), nil))
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close()) // idempotent

	env := messages.New("planner", messages.KindInventoryUpdate, nil)
	err := b.Publish(context.Background(), env)
	require.ErrorIs(t, err, ErrClosed)

	_, err = b.RequestResponse(context.Background(), env, time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPublishCancelledBetweenHandlers(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())

	var invoked []string
	b.Subscribe("picker", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		invoked = append(invoked, "first")
		cancel()
		return nil, nil
	}))
	b.Subscribe("picker", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		invoked = append(invoked, "second")
		return nil, nil
	}))

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	err := b.Publish(ctx, env)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, invoked)

	// The envelope was recorded before delivery started.
	assert.Len(t, b.History(), 1)
}

func TestHandlerErrorIsContainedAndCounted(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var trace []string
	b.Subscribe("picker", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return nil, fmt.Errorf("shelf on fire")
	}))
	b.Subscribe("picker", tracing(&trace, "after-failure"))

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	require.NoError(t, b.Publish(context.Background(), env))

	assert.Equal(t, []string{"after-failure"}, trace)
	assert.Equal(t, uint64(1), b.Metrics().HandlerFailures)
}

func TestHandlerPanicIsContained(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var trace []string
	b.Subscribe("picker", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		panic("boom")
	}))
	b.Subscribe("picker", tracing(&trace, "survivor"))

	env := messages.New("planner", messages.KindInventoryUpdate, nil, messages.To("picker"))
	require.NoError(t, b.Publish(context.Background(), env))

	assert.Equal(t, []string{"survivor"}, trace)
	assert.Equal(t, uint64(1), b.Metrics().HandlerFailures)
}

func TestRequestResponseStampsCorrelation(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	seen := make(chan *messages.Envelope, 1)
	b.Subscribe("supply", HandlerFunc(func(_ context.Context, env *messages.Envelope) (*messages.Payload, error) {
		seen <- env
		b.Respond(env.CorrelationID, messages.NewPayload().Set("ok", true))
		return nil, nil
	}))

	env := messages.New("demand", messages.KindSupplyAlert, nil, messages.To("supply"))
	result, err := b.RequestResponse(context.Background(), env, time.Second)
	require.NoError(t, err)
	require.NotNil(t, result)

	got := <-seen
	assert.True(t, got.NeedsResponse)
	assert.Equal(t, got.ID, got.CorrelationID)

	assert.True(t, result.Bool("ok"))
}

func TestRequestResponseHandlerReturnValueIsNotTheResponse(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	// The handler returns a payload but never calls Respond. That
	// return value must not resolve the exchange.
	b.Subscribe("supply", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return messages.NewPayload().Set("ok", true), nil
	}))

	env := messages.New("demand", messages.KindSupplyAlert, nil, messages.To("supply"))
	result, err := b.RequestResponse(context.Background(), env, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRequestResponseCancelledContext(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	b.Subscribe("supply", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return nil, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	env := messages.New("demand", messages.KindSupplyAlert, nil, messages.To("supply"))
	result, err := b.RequestResponse(ctx, env, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Zero(t, b.pending.size())
}

func TestRespondUnknownCorrelationIsNoOp(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	assert.NotPanics(t, func() {
		b.Respond(uuid.New(), messages.NewPayload().Set("ok", true))
		b.Respond(uuid.Nil, nil)
	})
	assert.Zero(t, b.pending.size())
}

func TestMetricsSnapshot(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	b.Subscribe("demand", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return nil, nil
	}))
	b.Subscribe("supply", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return nil, nil
	}))

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, messages.New("demand", messages.KindDemandForecast, nil, messages.To("supply"))))
	require.NoError(t, b.Publish(ctx, messages.New("demand", messages.KindDemandForecast, nil, messages.To("supply"))))
	require.NoError(t, b.Publish(ctx, messages.New("supply", messages.KindSupplyAlert, nil, messages.To("demand"))))

	m := b.Metrics()
	assert.Equal(t, uint64(3), m.TotalPublished)
	assert.Equal(t, uint64(2), m.BySender["demand"])
	assert.Equal(t, uint64(1), m.BySender["supply"])
	assert.Equal(t, uint64(2), m.ByKind[messages.KindDemandForecast])
	assert.Equal(t, uint64(1), m.ByKind[messages.KindSupplyAlert])
	assert.Equal(t, 2, m.Identities)
	assert.Zero(t, m.HandlerFailures)

	// The snapshot is detached from live state.
	m.BySender["demand"] = 99
	assert.Equal(t, uint64(2), b.Metrics().BySender["demand"])
}

func TestHistoryFilters(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(ctx, messages.New("demand", messages.KindDemandForecast, nil)))
	}
	require.NoError(t, b.Publish(ctx, messages.New("supply", messages.KindSupplyAlert, nil)))
	require.NoError(t, b.Publish(ctx, messages.New("supply", messages.KindDemandForecast, nil)))

	assert.Len(t, b.History(), 5)
	assert.Len(t, b.History(SentBy("demand")), 3)
	assert.Len(t, b.History(OfKind(messages.KindDemandForecast)), 4)
	assert.Len(t, b.History(SentBy("supply"), OfKind(messages.KindDemandForecast)), 1)
	assert.Empty(t, b.History(SentBy("nobody")))

	// Limit keeps the most recent matches, still in publish order.
	recent := b.History(Limit(2))
	require.Len(t, recent, 2)
	assert.Equal(t, "supply", recent[0].Sender)
	assert.Equal(t, messages.KindSupplyAlert, recent[0].Kind)
	assert.Equal(t, "supply", recent[1].Sender)
	assert.Equal(t, messages.KindDemandForecast, recent[1].Kind)

	limited := b.History(SentBy("demand"), Limit(2))
	require.Len(t, limited, 2)
	for _, env := range limited {
		assert.Equal(t, "demand", env.Sender)
	}
}

func TestConcurrentPublishes(t *testing.T) {
	b := New()
	defer func() { require.NoError(t, b.Close()) }()

	var (
		mu    sync.Mutex
		count int
	)
	b.Subscribe("sink", HandlerFunc(func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}))

	const publishers = 8
	const perPublisher = 25

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sender := fmt.Sprintf("agent-%d", n)
			for j := 0; j < perPublisher; j++ {
				env := messages.New(sender, messages.KindInventoryUpdate, nil, messages.To("sink"))
				assert.NoError(t, b.Publish(context.Background(), env))
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, publishers*perPublisher, count)
	assert.Equal(t, uint64(publishers*perPublisher), b.Metrics().TotalPublished)
	assert.Len(t, b.History(), publishers*perPublisher)
}
