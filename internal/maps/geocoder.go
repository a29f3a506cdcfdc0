// README: Geocoders resolve free-form addresses to coordinates.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"googlemaps.github.io/maps"

	"fareway/internal/types"
)

var (
	ErrEmptyAddress = errors.New("address is empty")
	ErrNoResults    = errors.New("address not found")
)

// GoogleGeocoder calls the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client
	region string
}

// NewGoogleGeocoder creates a geocoder with the given API key. Extra client
// options (for example maps.WithBaseURL in tests) are passed through.
func NewGoogleGeocoder(apiKey string, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, region: "us"}, nil
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, ErrEmptyAddress
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	// ZERO_RESULTS is a successful status with an empty result list.
	if len(results) == 0 {
		return types.Point{}, ErrNoResults
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// MockGeocoder returns coordinates scattered around a fixed center. It is
// used when no Maps API key is configured.
type MockGeocoder struct {
	Center types.Point
	// Spread is the full width of the jitter window in degrees.
	Spread float64
	Delay  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMockGeocoder(rnd *rand.Rand) *MockGeocoder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockGeocoder{
		Center: types.Point{Lat: 32.8, Lng: -96.8},
		Spread: 0.2,
		rnd:    rnd,
	}
}

func (g *MockGeocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	if strings.TrimSpace(address) == "" {
		return types.Point{}, ErrEmptyAddress
	}
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return types.Point{}, ctx.Err()
		case <-t.C:
		}
	}

	g.mu.Lock()
	dLat := (g.rnd.Float64() - 0.5) * g.Spread
	dLng := (g.rnd.Float64() - 0.5) * g.Spread
	g.mu.Unlock()

	return types.Point{Lat: g.Center.Lat + dLat, Lng: g.Center.Lng + dLng}, nil
}

// StaticGeocoder answers from a fixed table. Lookups ignore case and
// surrounding whitespace.
type StaticGeocoder struct {
	points map[string]types.Point
}

func NewStaticGeocoder(points map[string]types.Point) *StaticGeocoder {
	m := make(map[string]types.Point, len(points))
	for k, v := range points {
		m[normalize(k)] = v
	}
	return &StaticGeocoder{points: m}
}

func (g *StaticGeocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	key := normalize(address)
	if key == "" {
		return types.Point{}, ErrEmptyAddress
	}
	p, ok := g.points[key]
	if !ok {
		return types.Point{}, fmt.Errorf("%w: %s", ErrNoResults, address)
	}
	return p, nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
