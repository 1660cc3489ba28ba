// Package inventory holds the domain records the planners reason
// about: SKUs, warehouses, suppliers, stock levels, orders and
// shipments, plus the in-memory store that tracks them for the
// lifetime of a run.
package inventory

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Location is a lat/lon pair in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SKU describes one stock keeping unit and the cost structure that
// drives reorder decisions. DemandMultiplier is 1.0 in steady state and
// raised temporarily by simulated demand spikes.
type SKU struct {
	ID                string  `json:"sku_id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	BaseDemandRate    float64 `json:"base_demand_rate"`
	LeadTimeDays      int     `json:"lead_time_days"`
	UnitCost          float64 `json:"unit_cost"`
	StorageCostPerDay float64 `json:"storage_cost_per_day"`
	StockoutCost      float64 `json:"stockout_cost"`
	MinStock          int     `json:"min_stock_level"`
	MaxStock          int     `json:"max_stock_level"`
	DemandMultiplier  float64 `json:"current_demand_multiplier"`
}

// Warehouse is a storage site. CarbonFactor scales the footprint of
// anything shipped out of it.
type Warehouse struct {
	ID           string   `json:"warehouse_id"`
	Name         string   `json:"name"`
	Location     Location `json:"location"`
	Capacity     int      `json:"capacity"`
	CarbonFactor float64  `json:"carbon_factor"`
}

// Supplier is an external source of stock. DelayDays is nonzero while a
// simulated disruption is active and feeds into effective lead time.
type Supplier struct {
	ID              string   `json:"supplier_id"`
	Name            string   `json:"name"`
	Location        Location `json:"location"`
	Reliability     float64  `json:"reliability_score"`
	CarbonFactor    float64  `json:"carbon_factor"`
	LeadTimeDays    int      `json:"lead_time_days"`
	PriceMultiplier float64  `json:"price_multiplier"`
	DelayDays       int      `json:"current_delay_days"`
}

// EffectiveLeadTime is the quoted lead time plus any active delay.
func (s Supplier) EffectiveLeadTime() int {
	return s.LeadTimeDays + s.DelayDays
}

// Level is the stock position of one SKU at one warehouse.
type Level struct {
	SKU         string          `json:"sku_id"`
	Warehouse   string          `json:"warehouse_id"`
	Current     int             `json:"current_stock"`
	Reserved    int             `json:"reserved_stock"`
	LastUpdated strfmt.DateTime `json:"last_updated"`
}

// Available is the stock not spoken for by reservations.
func (l Level) Available() int {
	return l.Current - l.Reserved
}

// OrderStatus tracks an order or shipment through its lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderDelayed   OrderStatus = "delayed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a replenishment purchase placed with a supplier.
type Order struct {
	ID           uuid.UUID       `json:"order_id"`
	SKU          string          `json:"sku_id"`
	Warehouse    string          `json:"warehouse_id"`
	Supplier     string          `json:"supplier_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    float64         `json:"unit_price"`
	LeadTimeDays int             `json:"lead_time_days"`
	Carbon       float64         `json:"carbon_footprint"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    strfmt.DateTime `json:"created_at"`
}

// TotalCost is quantity times the negotiated unit price.
func (o Order) TotalCost() float64 {
	return float64(o.Quantity) * o.UnitPrice
}

// ExpectedDelivery is the creation time advanced by the lead time.
func (o Order) ExpectedDelivery() time.Time {
	return time.Time(o.CreatedAt).AddDate(0, 0, o.LeadTimeDays)
}

// Overdue reports how many whole days the order is past its expected
// delivery at the given instant. Zero if it is not late.
func (o Order) Overdue(now time.Time) int {
	days := int(now.Sub(o.ExpectedDelivery()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Shipment is an inter-warehouse stock transfer in flight.
type Shipment struct {
	ID            uuid.UUID       `json:"shipment_id"`
	FromWarehouse string          `json:"from_warehouse,omitempty"`
	ToWarehouse   string          `json:"to_warehouse"`
	SKU           string          `json:"sku_id"`
	Quantity      int             `json:"quantity"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     strfmt.DateTime `json:"created_at"`
	ETA           strfmt.DateTime `json:"estimated_arrival,omitempty"`
	Carbon        float64         `json:"carbon_footprint"`
}

// Due reports whether the shipment should have arrived by now.
func (s Shipment) Due(now time.Time) bool {
	eta := time.Time(s.ETA)
	return !eta.IsZero() && !now.Before(eta)
}
