// README: Pricing service derives travel time and fares from distances.
package pricing

import "math"

type Service struct {
	rates Rates
}

func NewService(rates Rates) *Service {
	return &Service{rates: rates}
}

func (s *Service) Rates() Rates {
	return s.rates
}

// EstimateMinutes converts a distance into whole minutes at the average speed,
// rounding up. The expression order matches the published formula
// ceil(d / speed * 60) so results agree to the last bit.
func (s *Service) EstimateMinutes(distanceMiles float64) int {
	if distanceMiles <= 0 {
		return 0
	}
	return int(math.Ceil(distanceMiles / s.rates.AverageSpeedMph * 60))
}

// Fare prices a trip. The base fee is added only when includeBaseFee is set.
func (s *Service) Fare(distanceMiles float64, minutes int, includeBaseFee bool) float64 {
	total, _ := s.fare(distanceMiles, minutes, includeBaseFee)
	return total
}

func (s *Service) fare(distanceMiles float64, minutes int, includeBaseFee bool) (float64, map[string]float64) {
	// Explicit conversions keep the compiler from fusing multiply-add,
	// which would change results in the last bit on some architectures.
	distanceCost := float64(distanceMiles * s.rates.CostPerMile)
	timeCost := float64(float64(minutes) * s.rates.CostPerMinute)
	baseFee := 0.0
	if includeBaseFee {
		baseFee = s.rates.BaseFee
	}
	breakdown := map[string]float64{
		"distance": distanceCost,
		"time":     timeCost,
		"base_fee": baseFee,
	}
	return Round2(distanceCost + timeCost + baseFee), breakdown
}

// ApplyCarpool discounts fare linearly per rider beyond the first.
// The result is not rounded again, so sub-cent values survive.
// riders is not bounds checked here; callers enforce CarpoolMin..CarpoolMax.
func (s *Service) ApplyCarpool(fare float64, riders int) float64 {
	if riders <= 1 {
		return fare
	}
	factor := 1 - float64(s.rates.CarpoolDiscount*float64(riders-1))
	return fare * factor
}

// Estimate measures both legs of the route and prices the total.
func (s *Service) Estimate(route Route) Estimate {
	hubToSource := Segment{From: route.Hub, To: route.Source, DistanceMiles: DistanceMiles(route.Hub, route.Source)}
	sourceToDest := Segment{From: route.Source, To: route.Destination, DistanceMiles: DistanceMiles(route.Source, route.Destination)}

	total := hubToSource.DistanceMiles + sourceToDest.DistanceMiles
	minutes := s.EstimateMinutes(total)
	fare, breakdown := s.fare(total, minutes, true)

	return Estimate{
		HubToSource:      hubToSource,
		SourceToDest:     sourceToDest,
		TotalDistance:    total,
		TotalTimeMinutes: minutes,
		BaseFare:         fare,
		Breakdown:        breakdown,
	}
}
