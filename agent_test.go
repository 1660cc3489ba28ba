package waggle

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHandlerLastWins(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	ep := NewAgent("supply", bus)
	var first, second atomic.Int32
	ep.RegisterHandler(messages.KindDemandForecast, func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		first.Add(1)
		return nil, nil
	})
	ep.RegisterHandler(messages.KindDemandForecast, func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		second.Add(1)
		return nil, nil
	})
	ep.Start()

	env := messages.New("demand", messages.KindDemandForecast, nil, messages.To("supply"))
	require.NoError(t, bus.Publish(context.Background(), env))

	assert.Zero(t, first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestStartSubscribesExactlyOnce(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	ep := NewAgent("supply", bus)
	var calls atomic.Int32
	ep.RegisterHandler(messages.KindDemandForecast, func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		calls.Add(1)
		return nil, nil
	})
	ep.Start()
	ep.Start()
	ep.Start()

	env := messages.New("demand", messages.KindDemandForecast, nil, messages.To("supply"))
	require.NoError(t, bus.Publish(context.Background(), env))

	assert.Equal(t, int32(1), calls.Load())
}

func TestHandleDropsUnhandledKinds(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	ep := NewAgent("supply", bus)
	ep.Start()

	env := messages.New("demand", messages.KindNegotiationOffer, nil, messages.To("supply"))
	require.NoError(t, bus.Publish(context.Background(), env))
	assert.Zero(t, bus.Metrics().HandlerFailures)
}

func TestSendFireAndForget(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	received := make(chan *messages.Envelope, 1)
	server := NewAgent("supply", bus)
	server.RegisterHandler(messages.KindInventoryUpdate, func(_ context.Context, env *messages.Envelope) (*messages.Payload, error) {
		received <- env
		return nil, nil
	})
	server.Start()

	client := NewAgent("demand", bus)
	client.Start()

	result, err := client.Send(context.Background(), "supply", messages.KindInventoryUpdate,
		messages.NewPayload().Set("sku", "SKU003").Set("delta", 12),
		SendPriority(messages.PriorityHigh))
	require.NoError(t, err)
	assert.Nil(t, result)

	select {
	case env := <-received:
		assert.Equal(t, "demand", env.Sender)
		assert.Equal(t, "supply", env.Recipient)
		assert.Equal(t, messages.PriorityHigh, env.Priority)
		assert.False(t, env.NeedsResponse)
		assert.Equal(t, "SKU003", env.Payload.String("sku"))
	case <-time.After(time.Second):
		t.Fatal("envelope never arrived")
	}
}

func TestSendAwaitResponseRoundTrip(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	server := NewAgent("supply", bus)
	server.RegisterHandler(messages.KindLogisticsRequest, func(_ context.Context, env *messages.Envelope) (*messages.Payload, error) {
		qty := env.Payload.Float("quantity")
		return messages.NewPayload().
			Set("feasible", true).
			Set("estimated_cost", qty*2.0), nil
	})
	server.Start()

	client := NewAgent("logistics", bus)
	client.Start()

	result, err := client.Send(context.Background(), "supply", messages.KindLogisticsRequest,
		messages.NewPayload().Set("quantity", 40),
		AwaitResponse(time.Second))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Bool("feasible"))
	assert.InDelta(t, 80.0, result.Float("estimated_cost"), 0.001)
}

func TestSendAwaitResponseTimesOutToNil(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	client := NewAgent("logistics", bus)
	client.Start()

	result, err := client.Send(context.Background(), "nobody-home", messages.KindLogisticsRequest, nil,
		AwaitResponse(50*time.Millisecond))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHandlerErrorBecomesErrorPayload(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	server := NewAgent("supply", bus)
	server.RegisterHandler(messages.KindLogisticsRequest, func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		return nil, fmt.Errorf("ledger unavailable")
	})
	server.Start()

	client := NewAgent("logistics", bus)
	client.Start()

	result, err := client.Send(context.Background(), "supply", messages.KindLogisticsRequest, nil,
		AwaitResponse(time.Second))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "ledger unavailable", result.String("error"))
	assert.Equal(t, uint64(1), bus.Metrics().HandlerFailures)
}

func TestHandlerPanicBecomesErrorPayload(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	server := NewAgent("supply", bus)
	server.RegisterHandler(messages.KindLogisticsRequest, func(context.Context, *messages.Envelope) (*messages.Payload, error) {
		panic("spreadsheet corrupted")
	})
	server.Start()

	client := NewAgent("logistics", bus)
	client.Start()

	result, err := client.Send(context.Background(), "supply", messages.KindLogisticsRequest, nil,
		AwaitResponse(time.Second))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.String("error"), "spreadsheet corrupted")
}

func TestBroadcastReachesEveryoneButSender(t *testing.T) {
	bus := broker.New()
	defer func() { require.NoError(t, bus.Close()) }()

	var demand, supply, logistics atomic.Int32
	count := func(n *atomic.Int32) MessageHandler {
		return func(context.Context, *messages.Envelope) (*messages.Payload, error) {
			n.Add(1)
			return nil, nil
		}
	}

	a := NewAgent("demand", bus)
	a.RegisterHandler(messages.KindSupplyAlert, count(&demand))
	a.Start()
	b := NewAgent("supply", bus)
	b.RegisterHandler(messages.KindSupplyAlert, count(&supply))
	b.Start()
	c := NewAgent("logistics", bus)
	c.RegisterHandler(messages.KindSupplyAlert, count(&logistics))
	c.Start()

	require.NoError(t, b.Broadcast(context.Background(), messages.KindSupplyAlert,
		messages.NewPayload().Set("sku", "SKU001"),
		messages.WithPriority(messages.PriorityHigh)))

	assert.Equal(t, int32(1), demand.Load())
	assert.Zero(t, supply.Load())
	assert.Equal(t, int32(1), logistics.Load())

	hist := bus.History(broker.OfKind(messages.KindSupplyAlert))
	require.Len(t, hist, 1)
	assert.True(t, hist[0].IsBroadcast())
	assert.Equal(t, messages.PriorityHigh, hist[0].Priority)
}
