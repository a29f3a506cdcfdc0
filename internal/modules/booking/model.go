// README: Quote and booking types, commands and errors.
package booking

import (
	"errors"
	"time"

	"fareway/internal/types"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrGeocoding        = errors.New("geocoding failed")
	ErrDuplicateBooking = errors.New("user already booked a ride today")
	ErrQuoteNotFound    = errors.New("quote not found")
)

// Hub is the dispatch origin every trip starts from.
type Hub struct {
	Address string      `json:"address"`
	Point   types.Point `json:"point"`
}

func DefaultHub() Hub {
	return Hub{
		Address: "11411 E NW Hwy Suite 103, Dallas, TX 75218",
		Point:   types.Point{Lat: 32.866, Lng: -96.732},
	}
}

// RideQuote is a priced route. It is not persisted to the ledger.
type RideQuote struct {
	ID                   types.ID    `json:"id"`
	Source               string      `json:"source"`
	Destination          string      `json:"destination"`
	SourcePoint          types.Point `json:"source_point"`
	DestinationPoint     types.Point `json:"destination_point"`
	HubToSourceDistance  float64     `json:"hub_to_source_distance"`
	SourceToDestDistance float64     `json:"source_to_dest_distance"`
	TotalDistance        float64     `json:"total_distance"`
	TotalTimeMinutes     int         `json:"total_time_minutes"`
	BaseFare             float64     `json:"base_fare"`
	CreatedAt            time.Time   `json:"created_at"`
}

type QuoteCommand struct {
	Source      string
	Destination string
}

type BookCommand struct {
	UserID       types.ID
	Quote        RideQuote
	CarpoolCount *int
}

type BookQuoteCommand struct {
	UserID       types.ID
	QuoteID      types.ID
	CarpoolCount *int
}

type HistoryQuery struct {
	SortBy string // date (default) or fare
	Desc   bool
}

type Eligibility struct {
	HasRideToday bool `json:"has_ride_today"`
	CanBook      bool `json:"can_book"`
}
