// README: Fare rates and estimate results.
package pricing

import "fareway/internal/types"

// Rates holds every tunable used by the fare model.
type Rates struct {
	CostPerMile     float64 `json:"cost_per_mile"`
	CostPerMinute   float64 `json:"cost_per_minute"`
	BaseFee         float64 `json:"base_fee"`
	AverageSpeedMph float64 `json:"average_speed_mph"`
	// CarpoolDiscount is the fraction taken off per rider beyond the first.
	CarpoolDiscount float64 `json:"carpool_discount"`
	CarpoolMin      int     `json:"carpool_min"`
	CarpoolMax      int     `json:"carpool_max"`
}

func DefaultRates() Rates {
	return Rates{
		CostPerMile:     0.50,
		CostPerMinute:   0.10,
		BaseFee:         1.00,
		AverageSpeedMph: 30,
		CarpoolDiscount: 0.10,
		CarpoolMin:      2,
		CarpoolMax:      5,
	}
}

// Segment is one leg of a route.
type Segment struct {
	From          types.Point `json:"from"`
	To            types.Point `json:"to"`
	DistanceMiles float64     `json:"distance_miles"`
}

// Route is the three-point trip every ride takes: hub, then source, then destination.
type Route struct {
	Hub         types.Point
	Source      types.Point
	Destination types.Point
}

type Estimate struct {
	HubToSource      Segment
	SourceToDest     Segment
	TotalDistance    float64
	TotalTimeMinutes int
	BaseFare         float64
	// Breakdown itemises BaseFare before rounding: "distance", "time", "base_fee".
	Breakdown map[string]float64
}
