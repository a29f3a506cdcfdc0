// README: Great-circle distance helpers.
package pricing

import (
	"math"

	"fareway/internal/types"
)

const earthRadiusMiles = 3958.8

// DistanceMiles returns the haversine distance between a and b in miles,
// rounded to one decimal place. Inputs are not range checked.
func DistanceMiles(a, b types.Point) float64 {
	return round1(haversineMiles(a.Lat, a.Lng, b.Lat, b.Lng))
}

func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Round2 rounds to the cent: x*100 is rounded half away from zero.
// The product is evaluated in float64, so a value such as 1.005 (stored as
// 1.00499...) rounds down to 1.00.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
