package scenario

import "github.com/casualjim/waggle/inventory"

// Default is the built-in three-warehouse scenario: a small national
// network with ten SKUs spanning fast movers, bulk material and
// long-lead custom work, supplied from four regional sources.
func Default() *Scenario {
	s := &Scenario{
		Name: "default",
		Warehouses: []inventory.Warehouse{
			{
				ID:           "warehouse_north",
				Name:         "Warehouse_North",
				Location:     inventory.Location{Lat: 40.7128, Lon: -74.0060},
				Capacity:     1000,
				CarbonFactor: 1.2,
			},
			{
				ID:           "warehouse_central",
				Name:         "Warehouse_Central",
				Location:     inventory.Location{Lat: 41.8781, Lon: -87.6298},
				Capacity:     1200,
				CarbonFactor: 1.0,
			},
			{
				ID:           "warehouse_south",
				Name:         "Warehouse_South",
				Location:     inventory.Location{Lat: 29.7604, Lon: -95.3698},
				Capacity:     800,
				CarbonFactor: 1.1,
			},
		},
		SKUs: []inventory.SKU{
			{
				ID: "SKU001", Name: "Premium Widget", Category: "Electronics",
				BaseDemandRate: 5.0, LeadTimeDays: 7, UnitCost: 25.0,
				StorageCostPerDay: 0.5, StockoutCost: 100.0,
				MinStock: 20, MaxStock: 200, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU002", Name: "Basic Component", Category: "Hardware",
				BaseDemandRate: 8.0, LeadTimeDays: 5, UnitCost: 12.0,
				StorageCostPerDay: 0.3, StockoutCost: 50.0,
				MinStock: 30, MaxStock: 300, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU003", Name: "Luxury Item", Category: "Premium",
				BaseDemandRate: 2.0, LeadTimeDays: 14, UnitCost: 150.0,
				StorageCostPerDay: 2.0, StockoutCost: 500.0,
				MinStock: 5, MaxStock: 50, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU004", Name: "Standard Part", Category: "Mechanical",
				BaseDemandRate: 10.0, LeadTimeDays: 4, UnitCost: 8.0,
				StorageCostPerDay: 0.2, StockoutCost: 30.0,
				MinStock: 40, MaxStock: 400, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU005", Name: "Specialty Tool", Category: "Tools",
				BaseDemandRate: 3.0, LeadTimeDays: 10, UnitCost: 75.0,
				StorageCostPerDay: 1.0, StockoutCost: 200.0,
				MinStock: 10, MaxStock: 100, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU006", Name: "Bulk Material", Category: "Raw Materials",
				BaseDemandRate: 15.0, LeadTimeDays: 3, UnitCost: 5.0,
				StorageCostPerDay: 0.1, StockoutCost: 20.0,
				MinStock: 50, MaxStock: 500, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU007", Name: "Custom Design", Category: "Custom",
				BaseDemandRate: 1.0, LeadTimeDays: 21, UnitCost: 300.0,
				StorageCostPerDay: 3.0, StockoutCost: 1000.0,
				MinStock: 2, MaxStock: 20, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU008", Name: "Fast Moving", Category: "High Volume",
				BaseDemandRate: 20.0, LeadTimeDays: 2, UnitCost: 15.0,
				StorageCostPerDay: 0.4, StockoutCost: 60.0,
				MinStock: 60, MaxStock: 600, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU009", Name: "Seasonal Item", Category: "Seasonal",
				BaseDemandRate: 4.0, LeadTimeDays: 8, UnitCost: 35.0,
				StorageCostPerDay: 0.7, StockoutCost: 140.0,
				MinStock: 15, MaxStock: 150, DemandMultiplier: 1.0,
			},
			{
				ID: "SKU010", Name: "Emergency Supply", Category: "Critical",
				BaseDemandRate: 6.0, LeadTimeDays: 6, UnitCost: 45.0,
				StorageCostPerDay: 0.8, StockoutCost: 300.0,
				MinStock: 25, MaxStock: 250, DemandMultiplier: 1.0,
			},
		},
		Suppliers: []inventory.Supplier{
			{
				ID: "SUP001", Name: "East Coast Supply Co",
				Location:    inventory.Location{Lat: 40.7128, Lon: -74.0060},
				Reliability: 0.95, CarbonFactor: 0.8,
				LeadTimeDays: 3, PriceMultiplier: 1.0,
			},
			{
				ID: "SUP002", Name: "Central Distributors",
				Location:    inventory.Location{Lat: 41.8781, Lon: -87.6298},
				Reliability: 0.88, CarbonFactor: 0.9,
				LeadTimeDays: 4, PriceMultiplier: 0.95,
			},
			{
				ID: "SUP003", Name: "Southern Logistics",
				Location:    inventory.Location{Lat: 29.7604, Lon: -95.3698},
				Reliability: 0.92, CarbonFactor: 0.85,
				LeadTimeDays: 3, PriceMultiplier: 1.05,
			},
			{
				ID: "SUP004", Name: "West Coast Wholesale",
				Location:    inventory.Location{Lat: 34.0522, Lon: -118.2437},
				Reliability: 0.85, CarbonFactor: 1.2,
				LeadTimeDays: 5, PriceMultiplier: 0.90,
			},
		},
		Comms: Comms{
			MessageTimeoutSeconds:     30,
			RetryAttempts:             3,
			CoordinationWindowSeconds: 60,
		},
		Weights: Weights{
			Cost:         0.4,
			Carbon:       0.2,
			ServiceLevel: 0.4,
		},
		Sim: Sim{
			TimeStepMinutes:        5,
			DemandSpikeProbability: 0.1,
			DelayProbability:       0.05,
			MaxDelayDays:           7,
		},
	}
	return s
}
