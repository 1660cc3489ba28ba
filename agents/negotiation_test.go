package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/internal/timeseries"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
)

func newNegotiationFixture(t *testing.T) (*NegotiationPlanner, *inventory.Store, *broker.Local, *waggle.Agent) {
	t.Helper()
	store := testStore()
	bus := broker.New()
	ep := waggle.NewAgent(NegotiationIdentity, bus)
	p := NewNegotiationPlanner(store, NegotiationSeed(1))
	require.NoError(t, p.Setup(ep))
	return p, store, bus, ep
}

func TestInitiateCapsTheAskAndDedupes(t *testing.T) {
	p, store, bus, ep := newNegotiationFixture(t)
	acme, found := store.Supplier("acme")
	require.True(t, found)

	ctx := context.Background()
	require.NoError(t, p.initiate(ctx, ep, acme, "volume_discount"))
	require.NoError(t, p.initiate(ctx, ep, acme, "loyalty_bonus"))

	require.Len(t, p.active, 1, "one negotiation per supplier at a time")
	n := p.active["acme"]
	require.NotNil(t, n)
	assert.Equal(t, "volume_discount", n.strategy)
	assert.InDelta(t, maxDiscount, n.discount, 1e-9, "a top supplier maxes the ask out")
	assert.InDelta(t, 0.95, n.successProb, 1e-9, "odds clamp at 95%")

	offers := bus.History(broker.OfKind(messages.KindNegotiationOffer))
	require.Len(t, offers, 1)
	offer := inventory.NegotiationOfferFromPayload(offers[0].Payload)
	assert.Equal(t, "active", offer.Status)
	assert.Equal(t, n.id, offer.NegotiationID)
	assert.InDelta(t, n.discount, offer.ProposedDiscount, 1e-9)
}

func TestExpiredNegotiationTimesOut(t *testing.T) {
	p, store, bus, ep := newNegotiationFixture(t)

	p.active["acme"] = &negotiation{
		id:          "neg_acme_test",
		supplier:    "acme",
		strategy:    "volume_discount",
		discount:    0.2,
		successProb: 0.9,
		deadline:    time.Now().Add(-time.Minute),
	}

	require.NoError(t, p.processActive(context.Background(), ep))

	assert.Empty(t, p.active)
	assert.Equal(t, 1, p.completed)
	assert.Equal(t, 0, p.accepted)

	offers := bus.History(broker.OfKind(messages.KindNegotiationOffer))
	require.Len(t, offers, 1)
	assert.Equal(t, "timeout", inventory.NegotiationOfferFromPayload(offers[0].Payload).Status)

	sup, _ := store.Supplier("acme")
	assert.InDelta(t, 1.1, sup.PriceMultiplier, 1e-9, "a timed out negotiation changes nothing")
}

func TestAcceptedNegotiationLowersThePrice(t *testing.T) {
	p, store, bus, ep := newNegotiationFixture(t)

	// certain acceptance once the supplier responds
	p.active["acme"] = &negotiation{
		id:          "neg_acme_test",
		supplier:    "acme",
		strategy:    "volume_discount",
		discount:    0.25,
		successProb: 1.0,
		deadline:    time.Now().Add(negotiationTTL),
	}

	ctx := context.Background()
	for range 500 {
		require.NoError(t, p.processActive(ctx, ep))
		if p.completed > 0 {
			break
		}
	}
	require.Equal(t, 1, p.completed, "the supplier responds within a few cycles")
	assert.Equal(t, 1, p.accepted)

	sup, _ := store.Supplier("acme")
	assert.Less(t, sup.PriceMultiplier, 1.1, "the accepted discount lowers the multiplier")
	assert.GreaterOrEqual(t, sup.PriceMultiplier, 0.7)

	offers := bus.History(broker.OfKind(messages.KindNegotiationOffer))
	require.Len(t, offers, 1)
	offer := inventory.NegotiationOfferFromPayload(offers[0].Payload)
	assert.Equal(t, "accepted", offer.Status)
	assert.GreaterOrEqual(t, offer.Discount, 0.2, "at least 80% of the ask lands")
	assert.LessOrEqual(t, offer.Discount, 0.25)
	assert.InDelta(t, sup.PriceMultiplier, offer.NewPriceMultiplier, 1e-9)
}

func TestRejectedNegotiationLeavesThePriceAlone(t *testing.T) {
	p, store, bus, ep := newNegotiationFixture(t)

	p.active["acme"] = &negotiation{
		id:          "neg_acme_test",
		supplier:    "acme",
		strategy:    "carbon_incentive",
		discount:    0.1,
		successProb: 0,
		deadline:    time.Now().Add(negotiationTTL),
	}

	ctx := context.Background()
	for range 500 {
		require.NoError(t, p.processActive(ctx, ep))
		if p.completed > 0 {
			break
		}
	}
	require.Equal(t, 1, p.completed)
	assert.Equal(t, 0, p.accepted)

	offers := bus.History(broker.OfKind(messages.KindNegotiationOffer))
	require.Len(t, offers, 1)
	assert.Equal(t, "rejected", inventory.NegotiationOfferFromPayload(offers[0].Payload).Status)

	sup, _ := store.Supplier("acme")
	assert.InDelta(t, 1.1, sup.PriceMultiplier, 1e-9)
}

func TestPriceSwingRaisesAnAlert(t *testing.T) {
	store := inventory.NewStore()
	store.AddSupplier(inventory.Supplier{
		ID:              "pricey",
		Reliability:     0.9,
		CarbonFactor:    1.0,
		LeadTimeDays:    3,
		PriceMultiplier: 3.0,
	})

	bus := broker.New()
	ep := waggle.NewAgent(NegotiationIdentity, bus)
	p := NewNegotiationPlanner(store, NegotiationSeed(1))
	require.NoError(t, p.Setup(ep))

	// seed the series as if the supplier used to charge 10
	seeded := timeseries.New(historyWindow)
	seeded.Append(10.0)
	p.prices["pricey"] = seeded

	require.NoError(t, p.monitorPrices(context.Background(), ep))

	alerts := bus.History(broker.OfKind(messages.KindSupplyAlert))
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.PriorityMedium, alerts[0].Priority)

	alert := inventory.SupplyAlertFromPayload(alerts[0].Payload)
	assert.Equal(t, "price_change", alert.AlertType)
	assert.Equal(t, "pricey", alert.Supplier)
	assert.Greater(t, alert.PriceChangePercent, 100.0, "the tripled price dwarfs the noise")
	assert.Greater(t, alert.CurrentPrice, 0.0)
}

func TestSteadyPricesStayQuiet(t *testing.T) {
	p, _, bus, ep := newNegotiationFixture(t)

	require.NoError(t, p.monitorPrices(context.Background(), ep))

	assert.Empty(t, bus.History(broker.OfKind(messages.KindSupplyAlert)),
		"a single sample gives nothing to compare against")
}

func TestPriceJumpShopsForCheaperSuppliers(t *testing.T) {
	p, _, _, _ := newNegotiationFixture(t)

	alert := inventory.SupplyAlert{
		AlertType:          "price_change",
		Supplier:           "acme",
		PriceChangePercent: 15,
		CurrentPrice:       12.6,
	}
	_, err := p.onSupplyAlert(context.Background(),
		messages.New(NegotiationIdentity, alert.Kind(), alert.Payload()))
	require.NoError(t, err)

	assert.NotNil(t, p.active["budget"], "the cheaper supplier gets the negotiation")
	assert.Nil(t, p.active["acme"], "nobody negotiates with the supplier that just raised prices")
}

func TestModestPriceMovesTriggerNothing(t *testing.T) {
	p, _, _, _ := newNegotiationFixture(t)

	alert := inventory.SupplyAlert{
		AlertType:          "price_change",
		Supplier:           "acme",
		PriceChangePercent: 8,
	}
	_, err := p.onSupplyAlert(context.Background(),
		messages.New(NegotiationIdentity, alert.Kind(), alert.Payload()))
	require.NoError(t, err)

	assert.Empty(t, p.active)
}

func TestLowStockOpensEmergencyNegotiations(t *testing.T) {
	p, _, _, _ := newNegotiationFixture(t)

	alert := inventory.SupplyAlert{
		AlertType: "low_stock",
		SKU:       "widget",
		Warehouse: "wh_west",
	}
	_, err := p.onSupplyAlert(context.Background(),
		messages.New(SupplyIdentity, alert.Kind(), alert.Payload()))
	require.NoError(t, err)

	assert.Len(t, p.active, 2, "both suppliers are worth pressing in an emergency")
}

func TestUrgentVolumeOpensBulkNegotiations(t *testing.T) {
	p, _, _, _ := newNegotiationFixture(t)

	forecast := inventory.DemandForecast{
		SKU:              "widget",
		ForecastedDemand: 80,
		Urgency:          "high",
	}
	_, err := p.onDemandForecast(context.Background(),
		messages.New(DemandIdentity, forecast.Kind(), forecast.Payload()))
	require.NoError(t, err)

	assert.NotNil(t, p.active["acme"], "only highly reliable suppliers handle bulk")
	assert.Nil(t, p.active["budget"])
}

func TestLargeOrdersGetNegotiatedFirst(t *testing.T) {
	p, _, _, _ := newNegotiationFixture(t)
	ctx := context.Background()

	small := inventory.OptimizationResult{SKU: "widget", Action: "order", Quantity: 50}
	_, err := p.onOptimizationResult(ctx,
		messages.New(SupplyIdentity, small.Kind(), small.Payload()))
	require.NoError(t, err)
	assert.Empty(t, p.active, "small orders are not worth the ceremony")

	large := inventory.OptimizationResult{SKU: "widget", Action: "order", Quantity: 150}
	_, err = p.onOptimizationResult(ctx,
		messages.New(SupplyIdentity, large.Kind(), large.Payload()))
	require.NoError(t, err)
	assert.Len(t, p.active, 1, "one negotiation with the best ranked supplier")
}
