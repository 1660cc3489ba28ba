package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/internal/timeseries"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/casualjim/waggle/pkg/uuidx"
)

const (
	// reliabilityThreshold is the score below which a supplier draws an
	// alert.
	reliabilityThreshold = 0.7

	// maxOrderQuantity caps any single replenishment order.
	maxOrderQuantity = 500

	// minOrderQuantity keeps orders worth a supplier's while.
	minOrderQuantity = 50
)

// SupplyPlanner watches suppliers, the order book and stock levels. It
// reorders against urgent demand forecasts, answers transfer
// feasibility requests from the logistics planner and turns due orders
// into received stock.
type SupplyPlanner struct {
	store    *inventory.Store
	interval time.Duration
	cooldown time.Duration
	ep       *waggle.Agent

	mu          sync.Mutex
	reliability map[string]*timeseries.Series
	alerted     map[string]time.Time
}

var (
	// SupplyInterval overrides the monitoring cadence, one minute by
	// default.
	SupplyInterval = opts.ForName[SupplyPlanner, time.Duration]("interval")

	// SupplyAlertCooldown sets how long a low-stock position stays
	// quiet after it has been alerted.
	SupplyAlertCooldown = opts.ForName[SupplyPlanner, time.Duration]("cooldown")
)

func NewSupplyPlanner(store *inventory.Store, options ...opts.Option[SupplyPlanner]) *SupplyPlanner {
	p := &SupplyPlanner{
		store:       store,
		interval:    time.Minute,
		cooldown:    5 * time.Minute,
		reliability: make(map[string]*timeseries.Series),
		alerted:     make(map[string]time.Time),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	return p
}

func (p *SupplyPlanner) Identity() string { return SupplyIdentity }

func (p *SupplyPlanner) Interval() time.Duration { return p.interval }

func (p *SupplyPlanner) Setup(ep *waggle.Agent) error {
	p.ep = ep
	ep.RegisterHandler(messages.KindDemandForecast, p.onDemandForecast)
	ep.RegisterHandler(messages.KindLogisticsRequest, p.onLogisticsRequest)
	ep.RegisterHandler(messages.KindInventoryUpdate, p.onInventoryUpdate)
	return nil
}

// Plan runs one monitoring sweep: supplier reliability, the order
// book, then stock levels.
func (p *SupplyPlanner) Plan(ctx context.Context, ep *waggle.Agent) error {
	if err := p.checkSupplierReliability(ctx, ep); err != nil {
		return err
	}
	if err := p.monitorOrders(ctx, ep); err != nil {
		return err
	}
	return p.checkStockLevels(ctx, ep)
}

// checkSupplierReliability tracks an effective score per supplier (an
// active delay costs 10%) and alerts when a supplier crosses below the
// threshold.
func (p *SupplyPlanner) checkSupplierReliability(ctx context.Context, ep *waggle.Agent) error {
	for _, sup := range p.store.Suppliers() {
		current := sup.Reliability
		if sup.DelayDays > 0 {
			current *= 0.9
		}

		p.mu.Lock()
		series := p.reliability[sup.ID]
		if series == nil {
			series = timeseries.New(historyWindow)
			p.reliability[sup.ID] = series
		}
		previous := reliabilityThreshold
		if series.Len() > 0 {
			previous = series.Last(1)[0]
		}
		series.Append(current)
		p.mu.Unlock()

		// alert on the crossing, not on every cycle spent below
		if current >= reliabilityThreshold || previous < reliabilityThreshold {
			continue
		}

		alert := inventory.SupplyAlert{
			AlertType:   "supplier_reliability",
			Supplier:    sup.ID,
			Reliability: current,
			Message:     fmt.Sprintf("supplier %s reliability %.2f dropped below %.2f", sup.ID, current, reliabilityThreshold),
		}
		err := ep.Broadcast(ctx, alert.Kind(), alert.Payload(),
			messages.WithPriority(messages.PriorityMedium))
		if err != nil {
			return err
		}
	}
	return nil
}

// monitorOrders delivers due orders and flags the late ones. Delivery
// adjusts stock and nudges the supplier's reliability: on time earns
// +0.01, late costs 0.02.
func (p *SupplyPlanner) monitorOrders(ctx context.Context, ep *waggle.Agent) error {
	now := time.Now()
	for _, o := range p.store.OpenOrders() {
		if now.Before(o.ExpectedDelivery()) {
			continue
		}

		if overdue := o.Overdue(now); overdue > 0 {
			alert := inventory.SupplyAlert{
				AlertType:   "delivery_delay",
				SKU:         o.SKU,
				Supplier:    o.Supplier,
				DaysOverdue: overdue,
				Message:     fmt.Sprintf("order %s is %d days overdue", o.ID, overdue),
			}
			err := ep.Broadcast(ctx, alert.Kind(), alert.Payload(),
				messages.WithPriority(messages.PriorityHigh))
			if err != nil {
				return err
			}
		}

		if err := p.deliverOrder(ctx, ep, o, now); err != nil {
			return err
		}
	}
	return nil
}

func (p *SupplyPlanner) deliverOrder(ctx context.Context, ep *waggle.Agent, o inventory.Order, now time.Time) error {
	if !p.store.SetOrderStatus(o.ID, inventory.OrderDelivered) {
		return nil
	}
	if _, err := p.store.AdjustStock(o.SKU, o.Warehouse, o.Quantity); err != nil {
		slog.Warn("could not book received stock",
			slogx.LoggerName("agents.supply"),
			slog.String("order", o.ID.String()),
			slogx.Error(err))
	}

	actualDays := int(now.Sub(time.Time(o.CreatedAt)).Hours() / 24)
	if actualDays <= o.LeadTimeDays {
		p.store.AdjustSupplierReliability(o.Supplier, 0.01)
	} else {
		p.store.AdjustSupplierReliability(o.Supplier, -0.02)
	}

	slog.Info("order delivered",
		slogx.LoggerName("agents.supply"),
		slog.String("order", o.ID.String()),
		slog.String("sku", o.SKU),
		slog.Int("quantity", o.Quantity))

	update := inventory.InventoryUpdate{
		SKU:              o.SKU,
		Warehouse:        o.Warehouse,
		QuantityReceived: o.Quantity,
		Message:          fmt.Sprintf("received %d units of %s", o.Quantity, o.SKU),
	}
	return ep.Broadcast(ctx, update.Kind(), update.Payload())
}

// checkStockLevels alerts on positions at or below the SKU minimum,
// with a cooldown so a position that stays low does not flood the bus.
func (p *SupplyPlanner) checkStockLevels(ctx context.Context, ep *waggle.Agent) error {
	now := time.Now()
	for _, lvl := range p.store.Levels() {
		sku, found := p.store.SKU(lvl.SKU)
		if !found || lvl.Current > sku.MinStock {
			continue
		}

		key := lvl.SKU + "/" + lvl.Warehouse
		p.mu.Lock()
		last, seen := p.alerted[key]
		if seen && now.Sub(last) < p.cooldown {
			p.mu.Unlock()
			continue
		}
		p.alerted[key] = now
		p.mu.Unlock()

		alert := inventory.SupplyAlert{
			AlertType:    "low_stock",
			SKU:          lvl.SKU,
			Warehouse:    lvl.Warehouse,
			CurrentStock: lvl.Current,
			MinStock:     sku.MinStock,
			Message:      fmt.Sprintf("stock for %s at %s is %d, minimum %d", lvl.SKU, lvl.Warehouse, lvl.Current, sku.MinStock),
		}
		err := ep.Broadcast(ctx, alert.Kind(), alert.Payload(),
			messages.WithPriority(messages.PriorityHigh))
		if err != nil {
			return err
		}
	}
	return nil
}

// onDemandForecast places a replenishment order when an urgent
// forecast arrives and the SKU has no order already in flight.
func (p *SupplyPlanner) onDemandForecast(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	forecast := inventory.DemandForecastFromPayload(env.Payload)
	if forecast.SKU == "" || (forecast.Urgency != "high" && forecast.Urgency != "medium") {
		return nil, nil
	}
	return nil, p.evaluateReorder(ctx, forecast)
}

func (p *SupplyPlanner) evaluateReorder(ctx context.Context, forecast inventory.DemandForecast) error {
	for _, o := range p.store.OpenOrders() {
		if o.SKU == forecast.SKU {
			return nil
		}
	}

	sku, found := p.store.SKU(forecast.SKU)
	if !found {
		return nil
	}
	supplier, found := p.bestSupplier()
	if !found {
		return nil
	}
	warehouse := p.neediestWarehouse(sku.ID)
	if warehouse == "" {
		return nil
	}

	quantity := orderQuantity(forecast.ForecastedDemand)
	order := inventory.Order{
		ID:           uuidx.New(),
		SKU:          sku.ID,
		Warehouse:    warehouse,
		Supplier:     supplier.ID,
		Quantity:     quantity,
		UnitPrice:    sku.UnitCost * supplier.PriceMultiplier,
		LeadTimeDays: supplier.EffectiveLeadTime(),
		Carbon:       float64(quantity) * supplier.CarbonFactor,
		Status:       inventory.OrderPending,
		CreatedAt:    strfmt.DateTime(time.Now()),
	}
	p.store.RecordOrder(order)

	slog.Info("placed replenishment order",
		slogx.LoggerName("agents.supply"),
		slog.String("sku", sku.ID),
		slog.String("supplier", supplier.ID),
		slog.Int("quantity", quantity))

	result := inventory.OptimizationResult{
		SKU:           sku.ID,
		Warehouse:     warehouse,
		Action:        "order",
		Quantity:      quantity,
		Supplier:      supplier.ID,
		EstimatedCost: order.TotalCost(),
		Carbon:        order.Carbon,
		Reasoning:     fmt.Sprintf("demand forecast %.1f with %s urgency", forecast.ForecastedDemand, forecast.Urgency),
	}
	return p.ep.Broadcast(ctx, result.Kind(), result.Payload())
}

// bestSupplier scores the pool on reliability, price, carbon and
// effective lead time.
func (p *SupplyPlanner) bestSupplier() (inventory.Supplier, bool) {
	var best inventory.Supplier
	bestScore := -1.0
	for _, s := range p.store.Suppliers() {
		score := 0.4*s.Reliability +
			0.3*(1/s.PriceMultiplier) +
			0.2*(1/s.CarbonFactor) +
			0.1*(1/float64(s.EffectiveLeadTime()+1))
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best, bestScore >= 0
}

// neediestWarehouse picks the warehouse holding the least of the SKU.
func (p *SupplyPlanner) neediestWarehouse(sku string) string {
	var id string
	lowest := math.MaxInt
	for _, w := range p.store.Warehouses() {
		lvl, found := p.store.Level(sku, w.ID)
		if !found {
			continue
		}
		if lvl.Current < lowest {
			lowest = lvl.Current
			id = w.ID
		}
	}
	return id
}

// orderQuantity covers a week of forecasted demand, bounded to keep
// orders sane.
func orderQuantity(forecastedDemand float64) int {
	quantity := max(minOrderQuantity, int(forecastedDemand*7))
	return min(quantity, maxOrderQuantity)
}

// onLogisticsRequest answers transfer feasibility checks. Transfer
// notices arrive under the same kind and need no answer.
func (p *SupplyPlanner) onLogisticsRequest(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	req := inventory.TransferRequestFromPayload(env.Payload)
	if req.RequestType != "inventory_transfer" {
		return nil, nil
	}

	feasibility := inventory.TransferFeasibility{
		Feasible:      req.Quantity > 0 && req.FromWarehouse != req.ToWarehouse,
		EstimatedCost: float64(req.Quantity) * 2.0,
		Carbon:        float64(req.Quantity) * 0.1,
	}
	return feasibility.Payload(), nil
}

func (p *SupplyPlanner) onInventoryUpdate(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	update := inventory.InventoryUpdateFromPayload(env.Payload)
	if update.QuantityReceived > 0 {
		slog.Debug("inventory receipt",
			slogx.LoggerName("agents.supply"),
			slog.String("sku", update.SKU),
			slog.String("warehouse", update.Warehouse),
			slog.Int("units", update.QuantityReceived))
	}
	return nil, nil
}
