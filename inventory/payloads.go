package inventory

//go:generate waggle-payload-gen -path .

// The structs below are the message bodies the planners exchange. The
// waggle:payload marker drives code generation of Kind/Payload/From
// helpers; see cmd/waggle-payload-gen.

// waggle:payload kind=demand_forecast
// DemandForecast is the demand planner's per-SKU projection.
type DemandForecast struct {
	SKU              string  `json:"sku_id"`
	Warehouse        string  `json:"warehouse_id,omitempty"`
	ForecastedDemand float64 `json:"forecasted_demand"`
	Confidence       float64 `json:"confidence_level"`
	HorizonDays      int     `json:"forecast_horizon_days"`
	Urgency          string  `json:"urgency"`
	Trend            float64 `json:"trend"`
	Seasonality      float64 `json:"seasonality"`
	Volatility       float64 `json:"volatility"`
}

// waggle:payload kind=supply_alert
// SupplyAlert flags a supply-side condition: low stock, a supplier
// whose reliability dropped, an overdue order, or a price swing.
type SupplyAlert struct {
	AlertType          string  `json:"alert_type"`
	SKU                string  `json:"sku_id,omitempty"`
	Warehouse          string  `json:"warehouse_id,omitempty"`
	Supplier           string  `json:"supplier_id,omitempty"`
	CurrentStock       int     `json:"current_stock,omitempty"`
	MinStock           int     `json:"min_stock_level,omitempty"`
	Reliability        float64 `json:"reliability_score,omitempty"`
	DaysOverdue        int     `json:"days_overdue,omitempty"`
	PriceChangePercent float64 `json:"price_change_percent,omitempty"`
	CurrentPrice       float64 `json:"current_price,omitempty"`
	Message            string  `json:"message"`
}

// waggle:payload kind=logistics_request
// TransferRequest asks the supply planner whether an inter-warehouse
// transfer is feasible. Sent with a response await.
type TransferRequest struct {
	RequestType   string `json:"request_type"`
	FromWarehouse string `json:"from_warehouse"`
	ToWarehouse   string `json:"to_warehouse"`
	SKU           string `json:"sku_id"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason"`
}

// waggle:payload
// TransferFeasibility answers a TransferRequest. It travels through
// Respond, so it has no envelope kind of its own.
type TransferFeasibility struct {
	Feasible      bool    `json:"feasible"`
	EstimatedCost float64 `json:"estimated_cost"`
	Carbon        float64 `json:"estimated_carbon_footprint"`
}

// waggle:payload kind=logistics_request
// TransferNotice announces a transfer shipment that is underway.
type TransferNotice struct {
	Action        string  `json:"action"`
	ShipmentID    string  `json:"shipment_id"`
	FromWarehouse string  `json:"from_warehouse"`
	ToWarehouse   string  `json:"to_warehouse"`
	SKU           string  `json:"sku_id"`
	Quantity      int     `json:"quantity"`
	Carbon        float64 `json:"carbon_footprint"`
}

// waggle:payload kind=negotiation_offer
// NegotiationOffer tracks a supplier negotiation from initiation to
// resolution.
type NegotiationOffer struct {
	NegotiationID      string  `json:"negotiation_id"`
	Supplier           string  `json:"supplier_id"`
	Strategy           string  `json:"negotiation_type"`
	ProposedDiscount   float64 `json:"proposed_discount,omitempty"`
	SuccessProbability float64 `json:"success_probability,omitempty"`
	Status             string  `json:"status"`
	Discount           float64 `json:"discount,omitempty"`
	NewPriceMultiplier float64 `json:"new_price_multiplier,omitempty"`
	Message            string  `json:"message"`
}

// waggle:payload kind=inventory_update
// InventoryUpdate reports a stock movement: a received order, a
// delivered shipment, or observed demand for the forecasters.
type InventoryUpdate struct {
	SKU              string  `json:"sku_id,omitempty"`
	Warehouse        string  `json:"warehouse_id,omitempty"`
	QuantityReceived int     `json:"quantity_received,omitempty"`
	ActualDemand     float64 `json:"actual_demand,omitempty"`
	ShipmentID       string  `json:"shipment_id,omitempty"`
	Status           string  `json:"status,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// waggle:payload kind=optimization_result
// OptimizationResult is a planner's recommendation for one SKU.
type OptimizationResult struct {
	SKU           string  `json:"sku_id"`
	Warehouse     string  `json:"warehouse_id,omitempty"`
	Action        string  `json:"recommended_action"`
	Quantity      int     `json:"recommended_quantity"`
	Supplier      string  `json:"supplier_id,omitempty"`
	EstimatedCost float64 `json:"estimated_cost"`
	Carbon        float64 `json:"estimated_carbon_footprint"`
	Confidence    float64 `json:"confidence_score,omitempty"`
	Reasoning     string  `json:"reasoning"`
}
