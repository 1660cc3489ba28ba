package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/casualjim/waggle/pkg/uuidx"
)

const (
	// rebalanceChance is the per-cycle probability of attempting a
	// speculative inter-warehouse rebalancing transfer.
	rebalanceChance = 0.3

	// avgSpeedKmh converts route distance into travel time.
	avgSpeedKmh = 80.0

	// carbonPerKmUnit is the footprint of moving one unit one km.
	carbonPerKmUnit = 0.02

	// defaultRouteKm stands in for pairs missing from the route table.
	defaultRouteKm = 100.0

	// prepositionDemandThreshold is the forecasted demand above which
	// prepositioning is worth recommending.
	prepositionDemandThreshold = 20.0
)

// LogisticsPlanner moves stock between warehouses. It reacts to
// low-stock alerts with targeted transfers, runs speculative
// rebalancing through feasibility checks with the supply planner, and
// delivers shipments when their ETA passes.
type LogisticsPlanner struct {
	store    *inventory.Store
	interval time.Duration
	timeout  time.Duration
	seed     int64
	ep       *waggle.Agent

	mu     sync.Mutex
	rng    *rand.Rand
	routes map[string]map[string]float64
}

var (
	// LogisticsInterval overrides the optimization cadence, two
	// minutes by default.
	LogisticsInterval = opts.ForName[LogisticsPlanner, time.Duration]("interval")

	// LogisticsTimeout bounds the wait on transfer feasibility checks.
	LogisticsTimeout = opts.ForName[LogisticsPlanner, time.Duration]("timeout")

	// LogisticsSeed fixes the rebalancing dice for reproducible runs.
	LogisticsSeed = opts.ForName[LogisticsPlanner, int64]("seed")
)

func NewLogisticsPlanner(store *inventory.Store, options ...opts.Option[LogisticsPlanner]) *LogisticsPlanner {
	p := &LogisticsPlanner{
		store:    store,
		interval: 2 * time.Minute,
		timeout:  30 * time.Second,
		seed:     time.Now().UnixNano(),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	p.rng = rand.New(rand.NewSource(p.seed))
	return p
}

func (p *LogisticsPlanner) Identity() string { return LogisticsIdentity }

func (p *LogisticsPlanner) Interval() time.Duration { return p.interval }

func (p *LogisticsPlanner) Setup(ep *waggle.Agent) error {
	p.ep = ep
	p.buildRoutes()
	ep.RegisterHandler(messages.KindSupplyAlert, p.onSupplyAlert)
	ep.RegisterHandler(messages.KindDemandForecast, p.onDemandForecast)
	ep.RegisterHandler(messages.KindInventoryUpdate, p.onInventoryUpdate)
	return nil
}

// buildRoutes precomputes great-circle distances between every
// warehouse pair. Warehouses are static for the life of a run.
func (p *LogisticsPlanner) buildRoutes() {
	warehouses := p.store.Warehouses()
	routes := make(map[string]map[string]float64, len(warehouses))
	for _, from := range warehouses {
		routes[from.ID] = make(map[string]float64, len(warehouses)-1)
		for _, to := range warehouses {
			if from.ID == to.ID {
				continue
			}
			routes[from.ID][to.ID] = haversineKm(from.Location, to.Location)
		}
	}

	p.mu.Lock()
	p.routes = routes
	p.mu.Unlock()
}

// haversineKm is the great-circle distance between two points, with
// the Earth radius at 6371 km.
func haversineKm(a, b inventory.Location) float64 {
	const earthRadiusKm = 6371.0

	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func (p *LogisticsPlanner) distance(from, to string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, found := p.routes[from][to]; found {
		return d
	}
	return defaultRouteKm
}

// Plan runs one optimization cycle: maybe a speculative rebalance,
// then shipment delivery.
func (p *LogisticsPlanner) Plan(ctx context.Context, ep *waggle.Agent) error {
	if err := p.rebalance(ctx, ep); err != nil {
		return err
	}
	return p.monitorShipments(ctx, ep)
}

// rebalance occasionally proposes moving a random SKU between two
// random warehouses. The supply planner verifies feasibility through a
// request/response exchange before anything moves.
func (p *LogisticsPlanner) rebalance(ctx context.Context, ep *waggle.Agent) error {
	warehouses := p.store.Warehouses()
	skus := p.store.SKUs()
	if len(warehouses) < 2 || len(skus) == 0 {
		return nil
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	fromIdx := p.rng.Intn(len(warehouses))
	toIdx := (fromIdx + 1 + p.rng.Intn(len(warehouses)-1)) % len(warehouses)
	sku := skus[p.rng.Intn(len(skus))]
	quantity := 10 + p.rng.Intn(41)
	p.mu.Unlock()

	if roll >= rebalanceChance {
		return nil
	}
	from, to := warehouses[fromIdx], warehouses[toIdx]

	req := inventory.TransferRequest{
		RequestType:   "inventory_transfer",
		FromWarehouse: from.ID,
		ToWarehouse:   to.ID,
		SKU:           sku.ID,
		Quantity:      quantity,
		Reason:        "inventory_balancing",
	}
	resp, err := ep.Send(ctx, SupplyIdentity, req.Kind(), req.Payload(),
		waggle.AwaitResponse(p.timeout))
	if err != nil {
		return err
	}
	if resp == nil {
		slog.Debug("transfer feasibility check went unanswered",
			slogx.LoggerName("agents.logistics"),
			slog.String("sku", sku.ID))
		return nil
	}
	if feasibility := inventory.TransferFeasibilityFromPayload(resp); !feasibility.Feasible {
		return nil
	}
	return p.executeTransfer(ctx, ep, from.ID, to.ID, sku.ID, quantity)
}

// executeTransfer draws stock down at the source and puts a shipment
// in flight. The requested quantity shrinks to what the source can
// actually spare.
func (p *LogisticsPlanner) executeTransfer(ctx context.Context, ep *waggle.Agent, from, to, sku string, quantity int) error {
	lvl, found := p.store.Level(sku, from)
	if !found {
		return nil
	}
	quantity = min(quantity, lvl.Available())
	if quantity <= 0 {
		slog.Debug("skipping transfer, nothing to spare",
			slogx.LoggerName("agents.logistics"),
			slog.String("sku", sku),
			slog.String("from", from))
		return nil
	}
	if _, err := p.store.AdjustStock(sku, from, -quantity); err != nil {
		slog.Warn("could not draw down transfer stock",
			slogx.LoggerName("agents.logistics"),
			slog.String("sku", sku),
			slog.String("from", from),
			slogx.Error(err))
		return nil
	}

	distance := p.distance(from, to)
	now := time.Now()
	shipment := inventory.Shipment{
		ID:            uuidx.New(),
		FromWarehouse: from,
		ToWarehouse:   to,
		SKU:           sku,
		Quantity:      quantity,
		Status:        inventory.OrderShipped,
		CreatedAt:     strfmt.DateTime(now),
		ETA:           strfmt.DateTime(now.Add(travelTime(distance))),
		Carbon:        distance * float64(quantity) * carbonPerKmUnit,
	}
	p.store.RecordShipment(shipment)

	slog.Info("transfer underway",
		slogx.LoggerName("agents.logistics"),
		slog.String("sku", sku),
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("quantity", quantity),
		slog.Float64("distance_km", distance))

	notice := inventory.TransferNotice{
		Action:        "inventory_transfer",
		ShipmentID:    shipment.ID.String(),
		FromWarehouse: from,
		ToWarehouse:   to,
		SKU:           sku,
		Quantity:      quantity,
		Carbon:        shipment.Carbon,
	}
	return ep.Broadcast(ctx, notice.Kind(), notice.Payload())
}

func travelTime(distanceKm float64) time.Duration {
	return time.Duration(distanceKm / avgSpeedKmh * float64(time.Hour))
}

// monitorShipments books arrived shipments into the destination
// warehouse.
func (p *LogisticsPlanner) monitorShipments(ctx context.Context, ep *waggle.Agent) error {
	now := time.Now()
	for _, sh := range p.store.ActiveShipments() {
		if sh.Status != inventory.OrderShipped || !sh.Due(now) {
			continue
		}
		if err := p.deliverShipment(ctx, ep, sh); err != nil {
			return err
		}
	}
	return nil
}

func (p *LogisticsPlanner) deliverShipment(ctx context.Context, ep *waggle.Agent, sh inventory.Shipment) error {
	if !p.store.SetShipmentStatus(sh.ID, inventory.OrderDelivered) {
		return nil
	}
	if _, err := p.store.AdjustStock(sh.SKU, sh.ToWarehouse, sh.Quantity); err != nil {
		slog.Warn("could not book arrived transfer",
			slogx.LoggerName("agents.logistics"),
			slog.String("shipment", sh.ID.String()),
			slogx.Error(err))
	}

	slog.Info("shipment delivered",
		slogx.LoggerName("agents.logistics"),
		slog.String("shipment", sh.ID.String()),
		slog.String("to", sh.ToWarehouse),
		slog.Int("quantity", sh.Quantity))

	update := inventory.InventoryUpdate{
		SKU:              sh.SKU,
		Warehouse:        sh.ToWarehouse,
		QuantityReceived: sh.Quantity,
		ShipmentID:       sh.ID.String(),
		Status:           "delivered",
		Message:          fmt.Sprintf("shipment %s delivered to %s", sh.ID, sh.ToWarehouse),
	}
	return ep.Broadcast(ctx, update.Kind(), update.Payload())
}

// onSupplyAlert answers low-stock alerts with a transfer from the
// warehouse best placed to give stock up.
func (p *LogisticsPlanner) onSupplyAlert(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	alert := inventory.SupplyAlertFromPayload(env.Payload)
	if alert.AlertType != "low_stock" || alert.SKU == "" || alert.Warehouse == "" {
		return nil, nil
	}

	needed := alert.MinStock - alert.CurrentStock
	if needed <= 0 {
		return nil, nil
	}

	donor := p.donorWarehouse(alert.SKU, alert.Warehouse, needed)
	if donor == "" {
		slog.Debug("no warehouse can spare stock",
			slogx.LoggerName("agents.logistics"),
			slog.String("sku", alert.SKU),
			slog.String("warehouse", alert.Warehouse))
		return nil, nil
	}
	return nil, p.executeTransfer(ctx, p.ep, donor, alert.Warehouse, alert.SKU, needed)
}

// donorWarehouse picks the warehouse holding the most of the SKU that
// would stay above the SKU minimum after giving quantity units away.
func (p *LogisticsPlanner) donorWarehouse(sku, exclude string, quantity int) string {
	skuRec, found := p.store.SKU(sku)
	if !found {
		return ""
	}

	var donor string
	most := 0
	for _, w := range p.store.Warehouses() {
		if w.ID == exclude {
			continue
		}
		lvl, found := p.store.Level(sku, w.ID)
		if !found {
			continue
		}
		if lvl.Available()-quantity >= skuRec.MinStock && lvl.Available() > most {
			most = lvl.Available()
			donor = w.ID
		}
	}
	return donor
}

// onDemandForecast recommends prepositioning stock ahead of urgent
// high-volume demand.
func (p *LogisticsPlanner) onDemandForecast(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	forecast := inventory.DemandForecastFromPayload(env.Payload)
	if forecast.Urgency != "high" || forecast.ForecastedDemand <= prepositionDemandThreshold {
		return nil, nil
	}

	target := p.lowestStockWarehouse(forecast.SKU)
	if target == "" {
		return nil, nil
	}

	notice := inventory.TransferNotice{
		Action:      "prepositioning_recommendation",
		ToWarehouse: target,
		SKU:         forecast.SKU,
		Quantity:    int(forecast.ForecastedDemand * 0.5),
	}
	return nil, p.ep.Broadcast(ctx, notice.Kind(), notice.Payload())
}

func (p *LogisticsPlanner) lowestStockWarehouse(sku string) string {
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

// onInventoryUpdate syncs shipment status when another component
// reports a delivery.
func (p *LogisticsPlanner) onInventoryUpdate(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	update := inventory.InventoryUpdateFromPayload(env.Payload)
	if update.ShipmentID == "" || update.Status != "delivered" {
		return nil, nil
	}
	id, err := uuid.Parse(update.ShipmentID)
	if err != nil {
		return nil, nil
	}
	p.store.SetShipmentStatus(id, inventory.OrderDelivered)
	return nil, nil
}
