package inventory

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Store is the shared in-memory state of a run. Every accessor returns
// copies, so callers never hold references into guarded state. Nothing
// is persisted: the store lives and dies with the process.
type Store struct {
	mu         sync.RWMutex
	skus       map[string]*SKU
	warehouses map[string]*Warehouse
	suppliers  map[string]*Supplier
	levels     map[string]*Level
	orders     map[uuid.UUID]*Order
	shipments  map[uuid.UUID]*Shipment
}

// NewStore returns an empty store, ready to be seeded.
func NewStore() *Store {
	return &Store{
		skus:       make(map[string]*SKU),
		warehouses: make(map[string]*Warehouse),
		suppliers:  make(map[string]*Supplier),
		levels:     make(map[string]*Level),
		orders:     make(map[uuid.UUID]*Order),
		shipments:  make(map[uuid.UUID]*Shipment),
	}
}

func levelKey(sku, warehouse string) string {
	return sku + "/" + warehouse
}

// AddSKU registers or replaces a SKU. A zero demand multiplier is
// normalized to 1.0.
func (s *Store) AddSKU(sku SKU) {
	if sku.DemandMultiplier == 0 {
		sku.DemandMultiplier = 1.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skus[sku.ID] = &sku
}

// AddWarehouse registers or replaces a warehouse.
func (s *Store) AddWarehouse(w Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses[w.ID] = &w
}

// AddSupplier registers or replaces a supplier.
func (s *Store) AddSupplier(sup Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[sup.ID] = &sup
}

// SetLevel installs the stock position for one sku/warehouse pair.
func (s *Store) SetLevel(l Level) {
	if time.Time(l.LastUpdated).IsZero() {
		l.LastUpdated = strfmt.DateTime(time.Now())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[levelKey(l.SKU, l.Warehouse)] = &l
}

// SKU looks up one SKU by id.
func (s *Store) SKU(id string) (SKU, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sku, ok := s.skus[id]
	if !ok {
		return SKU{}, false
	}
	return *sku, true
}

// Warehouse looks up one warehouse by id.
func (s *Store) Warehouse(id string) (Warehouse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warehouses[id]
	if !ok {
		return Warehouse{}, false
	}
	return *w, true
}

// Supplier looks up one supplier by id.
func (s *Store) Supplier(id string) (Supplier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return Supplier{}, false
	}
	return *sup, true
}

// Level looks up the stock position for one sku/warehouse pair.
func (s *Store) Level(sku, warehouse string) (Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[levelKey(sku, warehouse)]
	if !ok {
		return Level{}, false
	}
	return *l, true
}

// SKUs returns every SKU ordered by id.
func (s *Store) SKUs() []SKU {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SKU, 0, len(s.skus))
	for _, sku := range s.skus {
		out = append(out, *sku)
	}
	slices.SortFunc(out, func(a, b SKU) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Warehouses returns every warehouse ordered by id.
func (s *Store) Warehouses() []Warehouse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b Warehouse) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Suppliers returns every supplier ordered by id.
func (s *Store) Suppliers() []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, *sup)
	}
	slices.SortFunc(out, func(a, b Supplier) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Levels returns every stock position ordered by sku then warehouse.
func (s *Store) Levels() []Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Level, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, *l)
	}
	slices.SortFunc(out, func(a, b Level) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.Warehouse, b.Warehouse)
	})
	return out
}

// AdjustStock moves the current stock of one sku/warehouse pair by
// delta, clamping at zero. It fails when the pair was never seeded.
func (s *Store) AdjustStock(sku, warehouse string, delta int) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.levels[levelKey(sku, warehouse)]
	if !ok {
		return Level{}, fmt.Errorf("inventory: no stock record for %s at %s", sku, warehouse)
	}
	l.Current += delta
	if l.Current < 0 {
		l.Current = 0
	}
	l.LastUpdated = strfmt.DateTime(time.Now())
	return *l, nil
}

// SetDemandMultiplier sets the demand spike multiplier for a SKU.
// Passing 1.0 restores steady state.
func (s *Store) SetDemandMultiplier(sku string, multiplier float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.skus[sku]
	if !ok {
		return false
	}
	rec.DemandMultiplier = multiplier
	return true
}

// SetSupplierDelay sets the active delay for a supplier. Zero clears
// the disruption.
func (s *Store) SetSupplierDelay(supplier string, days int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[supplier]
	if !ok {
		return false
	}
	sup.DelayDays = days
	return true
}

// AdjustSupplierReliability nudges a supplier's reliability score by
// delta, clamped to [0.1, 1.0].
func (s *Store) AdjustSupplierReliability(supplier string, delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[supplier]
	if !ok {
		return false
	}
	sup.Reliability = min(max(sup.Reliability+delta, 0.1), 1.0)
	return true
}

// ApplyDiscount lowers a supplier's price multiplier by the accepted
// discount, floored at 0.7 of base price. Returns the new multiplier.
func (s *Store) ApplyDiscount(supplier string, discount float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[supplier]
	if !ok {
		return 0, false
	}
	sup.PriceMultiplier = max(sup.PriceMultiplier*(1-discount), 0.7)
	return sup.PriceMultiplier, true
}

// RecordOrder tracks a new replenishment order.
func (s *Store) RecordOrder(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = &o
}

// SetOrderStatus transitions an order. Unknown ids report false.
func (s *Store) SetOrderStatus(id uuid.UUID, status OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	o.Status = status
	return true
}

// Orders returns every tracked order, oldest first.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sortByCreation(out, func(o Order) (time.Time, uuid.UUID) { return time.Time(o.CreatedAt), o.ID })
	return out
}

// OpenOrders returns orders that have not reached a terminal status,
// oldest first.
func (s *Store) OpenOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Status == OrderDelivered || o.Status == OrderCancelled {
			continue
		}
		out = append(out, *o)
	}
	sortByCreation(out, func(o Order) (time.Time, uuid.UUID) { return time.Time(o.CreatedAt), o.ID })
	return out
}

// RecordShipment tracks a new transfer shipment.
func (s *Store) RecordShipment(sh Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = &sh
}

// SetShipmentStatus transitions a shipment. Unknown ids report false.
func (s *Store) SetShipmentStatus(id uuid.UUID, status OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		return false
	}
	sh.Status = status
	return true
}

// Shipments returns every tracked shipment, oldest first.
func (s *Store) Shipments() []Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		out = append(out, *sh)
	}
	sortByCreation(out, func(sh Shipment) (time.Time, uuid.UUID) { return time.Time(sh.CreatedAt), sh.ID })
	return out
}

// ActiveShipments returns shipments still in flight, oldest first.
func (s *Store) ActiveShipments() []Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		if sh.Status == OrderDelivered || sh.Status == OrderCancelled {
			continue
		}
		out = append(out, *sh)
	}
	sortByCreation(out, func(sh Shipment) (time.Time, uuid.UUID) { return time.Time(sh.CreatedAt), sh.ID })
	return out
}

func sortByCreation[T any](items []T, key func(T) (time.Time, uuid.UUID)) {
	slices.SortFunc(items, func(a, b T) int {
		at, aid := key(a)
		bt, bid := key(b)
		if c := at.Compare(bt); c != 0 {
			return c
		}
		return strings.Compare(aid.String(), bid.String())
	})
}

// KPI is the system-wide health snapshot the dashboard publishes.
type KPI struct {
	TotalValue      float64 `json:"total_inventory_value"`
	Stockouts       int     `json:"stockout_incidents"`
	Overstocks      int     `json:"overstock_incidents"`
	ServiceLevel    float64 `json:"service_level"`
	OpenOrders      int     `json:"open_orders"`
	ActiveShipments int     `json:"active_shipments"`
}

// KPIs computes the current snapshot. A position is a stockout
// incident when stock is at or below the SKU minimum, and an overstock
// incident at or above 90% of the maximum. Service level is the share
// of positions not in stockout.
func (s *Store) KPIs() KPI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kpi KPI
	for _, l := range s.levels {
		sku, ok := s.skus[l.SKU]
		if !ok {
			continue
		}
		kpi.TotalValue += float64(l.Current) * sku.UnitCost
		switch {
		case l.Current <= sku.MinStock:
			kpi.Stockouts++
		case float64(l.Current) >= float64(sku.MaxStock)*0.9:
			kpi.Overstocks++
		}
	}
	if n := len(s.levels); n > 0 {
		kpi.ServiceLevel = max(0, 1-float64(kpi.Stockouts)/float64(n))
	} else {
		kpi.ServiceLevel = 1
	}
	for _, o := range s.orders {
		if o.Status != OrderDelivered && o.Status != OrderCancelled {
			kpi.OpenOrders++
		}
	}
	for _, sh := range s.shipments {
		if sh.Status != OrderDelivered && sh.Status != OrderCancelled {
			kpi.ActiveShipments++
		}
	}
	return kpi
}
