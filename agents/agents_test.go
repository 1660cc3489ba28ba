package agents

import (
	"github.com/casualjim/waggle/inventory"
)

// testStore builds a world small enough to reason about: two
// warehouses a continent apart, two SKUs and two suppliers with
// opposite strengths.
func testStore() *inventory.Store {
	store := inventory.NewStore()

	store.AddWarehouse(inventory.Warehouse{
		ID:           "wh_east",
		Name:         "East Coast DC",
		Location:     inventory.Location{Lat: 40.7128, Lon: -74.0060},
		Capacity:     500,
		CarbonFactor: 1.1,
	})
	store.AddWarehouse(inventory.Warehouse{
		ID:           "wh_west",
		Name:         "West Coast DC",
		Location:     inventory.Location{Lat: 34.0522, Lon: -118.2437},
		Capacity:     400,
		CarbonFactor: 0.9,
	})

	store.AddSKU(inventory.SKU{
		ID:                "widget",
		Name:              "Widget",
		Category:          "components",
		BaseDemandRate:    10,
		LeadTimeDays:      3,
		UnitCost:          25,
		StorageCostPerDay: 0.5,
		StockoutCost:      100,
		MinStock:          20,
		MaxStock:          200,
		DemandMultiplier:  1.0,
	})
	store.AddSKU(inventory.SKU{
		ID:                "gadget",
		Name:              "Gadget",
		Category:          "electronics",
		BaseDemandRate:    4,
		LeadTimeDays:      5,
		UnitCost:          60,
		StorageCostPerDay: 1.2,
		StockoutCost:      250,
		MinStock:          10,
		MaxStock:          100,
		DemandMultiplier:  1.0,
	})

	store.AddSupplier(inventory.Supplier{
		ID:              "acme",
		Name:            "Acme Industrial",
		Location:        inventory.Location{Lat: 41.8781, Lon: -87.6298},
		Reliability:     0.95,
		CarbonFactor:    0.8,
		LeadTimeDays:    2,
		PriceMultiplier: 1.1,
	})
	store.AddSupplier(inventory.Supplier{
		ID:              "budget",
		Name:            "Budget Parts Co",
		Location:        inventory.Location{Lat: 29.7604, Lon: -95.3698},
		Reliability:     0.6,
		CarbonFactor:    1.3,
		LeadTimeDays:    6,
		PriceMultiplier: 0.85,
	})

	store.SetLevel(inventory.Level{SKU: "widget", Warehouse: "wh_east", Current: 150})
	store.SetLevel(inventory.Level{SKU: "widget", Warehouse: "wh_west", Current: 40})
	store.SetLevel(inventory.Level{SKU: "gadget", Warehouse: "wh_east", Current: 60})
	store.SetLevel(inventory.Level{SKU: "gadget", Warehouse: "wh_west", Current: 25})

	return store
}
