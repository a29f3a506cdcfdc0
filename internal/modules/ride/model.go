// README: Ride record and history helpers.
package ride

import (
	"errors"
	"math"
	"sort"
	"time"

	"fareway/internal/types"
)

// Ride is a booked trip. It is written once and never updated.
type Ride struct {
	ID          types.ID  `json:"id"`
	UserID      types.ID  `json:"user_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Distance    float64   `json:"distance"`
	Time        int       `json:"time"`
	Fare        float64   `json:"fare"`
	Date        time.Time `json:"date"`
	// CarpoolCount is nil for solo rides.
	CarpoolCount *int `json:"carpool_count,omitempty"`
}

type SortField string

const (
	SortByDate SortField = "date"
	SortByFare SortField = "fare"
)

var ErrUnknownSort = errors.New("unknown sort field")

func ParseSortField(v string) (SortField, error) {
	switch SortField(v) {
	case "", SortByDate:
		return SortByDate, nil
	case SortByFare:
		return SortByFare, nil
	default:
		return "", ErrUnknownSort
	}
}

// Sort orders rides in place. Ties keep their existing relative order.
func Sort(rides []Ride, by SortField, desc bool) {
	less := func(i, j int) bool {
		if by == SortByFare {
			return rides[i].Fare < rides[j].Fare
		}
		return rides[i].Date.Before(rides[j].Date)
	}
	if desc {
		sort.SliceStable(rides, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(rides, less)
}

type Summary struct {
	TotalRides       int     `json:"total_rides"`
	TotalSpent       float64 `json:"total_spent"`
	TotalDistance    float64 `json:"total_distance"`
	TotalTimeMinutes int     `json:"total_time_minutes"`
}

func Summarize(rides []Ride) Summary {
	var s Summary
	for _, r := range rides {
		s.TotalRides++
		s.TotalSpent += r.Fare
		s.TotalDistance += r.Distance
		s.TotalTimeMinutes += r.Time
	}
	s.TotalSpent = math.Round(s.TotalSpent*100) / 100
	s.TotalDistance = math.Round(s.TotalDistance*10) / 10
	return s
}

// DayBounds returns the start of the local calendar day containing now and
// the start of the next one.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func clone(r Ride) Ride {
	if r.CarpoolCount != nil {
		n := *r.CarpoolCount
		r.CarpoolCount = &n
	}
	return r
}
