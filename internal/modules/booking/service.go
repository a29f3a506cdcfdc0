// README: Booking service turns addresses into quotes and quotes into rides.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fareway/internal/modules/pricing"
	"fareway/internal/modules/ride"
	"fareway/internal/observability"
	"fareway/internal/types"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Ledger interface {
	Append(ctx context.Context, r ride.Ride) error
	ListByUser(ctx context.Context, userID types.ID) ([]ride.Ride, error)
	HasRideToday(ctx context.Context, userID types.ID) (bool, error)
}

// Locker guards the check-then-append sequence of a single user.
type Locker interface {
	Lock(ctx context.Context, key types.ID) (func(), error)
}

type QuoteStore interface {
	Save(ctx context.Context, q RideQuote) error
	Get(ctx context.Context, id types.ID) (RideQuote, error)
}

type Service struct {
	hub      Hub
	pricing  *pricing.Service
	geocoder Geocoder
	ledger   Ledger
	locks    Locker
	quotes   QuoteStore
	clock    types.Clock
	log      logrus.FieldLogger
}

type Option func(*Service)

// WithQuoteStore keeps issued quotes so BookQuote can find them.
func WithQuoteStore(q QuoteStore) Option { return func(s *Service) { s.quotes = q } }

func WithClock(c types.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func NewService(hub Hub, pricer *pricing.Service, geocoder Geocoder, ledger Ledger, locks Locker, opts ...Option) *Service {
	s := &Service{
		hub:      hub,
		pricing:  pricer,
		geocoder: geocoder,
		ledger:   ledger,
		locks:    locks,
		clock:    types.SystemClock,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = ride.NewKeyedMutex()
	}
	return s
}

func (s *Service) Hub() Hub { return s.hub }

func (s *Service) Rates() pricing.Rates { return s.pricing.Rates() }

func (s *Service) Quote(ctx context.Context, cmd QuoteCommand) (RideQuote, error) {
	source := strings.TrimSpace(cmd.Source)
	destination := strings.TrimSpace(cmd.Destination)
	if source == "" || destination == "" {
		observability.QuotesTotal.WithLabelValues(observability.ResultInvalid).Inc()
		return RideQuote{}, fmt.Errorf("%w: source and destination are required", ErrValidation)
	}

	// Both lookups must finish before any distance is computed.
	var sourcePoint, destPoint types.Point
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sourcePoint, err = s.geocode(gctx, source)
		return err
	})
	g.Go(func() (err error) {
		destPoint, err = s.geocode(gctx, destination)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.QuotesTotal.WithLabelValues(observability.ResultGeocode).Inc()
		s.log.WithError(err).Warn("quote geocoding failed")
		return RideQuote{}, err
	}

	est := s.pricing.Estimate(pricing.Route{
		Hub:         s.hub.Point,
		Source:      sourcePoint,
		Destination: destPoint,
	})
	q := RideQuote{
		ID:                   types.ID(uuid.NewString()),
		Source:               source,
		Destination:          destination,
		SourcePoint:          sourcePoint,
		DestinationPoint:     destPoint,
		HubToSourceDistance:  est.HubToSource.DistanceMiles,
		SourceToDestDistance: est.SourceToDest.DistanceMiles,
		TotalDistance:        est.TotalDistance,
		TotalTimeMinutes:     est.TotalTimeMinutes,
		BaseFare:             est.BaseFare,
		CreatedAt:            s.clock().Truncate(time.Microsecond),
	}

	if s.quotes != nil {
		if err := s.quotes.Save(ctx, q); err != nil {
			observability.QuotesTotal.WithLabelValues(observability.ResultError).Inc()
			return RideQuote{}, fmt.Errorf("save quote: %w", err)
		}
	}

	observability.QuotesTotal.WithLabelValues(observability.ResultOK).Inc()
	s.log.WithFields(logrus.Fields{
		"quote_id": q.ID,
		"distance": q.TotalDistance,
		"fare":     q.BaseFare,
	}).Info("quote issued")
	return q, nil
}

func (s *Service) geocode(ctx context.Context, address string) (types.Point, error) {
	start := time.Now()
	p, err := s.geocoder.Geocode(ctx, address)
	result := observability.ResultOK
	if err != nil {
		result = observability.ResultError
	}
	observability.GeocodeDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if err != nil {
		return types.Point{}, fmt.Errorf("%w: %q: %w", ErrGeocoding, address, err)
	}
	return p, nil
}

func (s *Service) Book(ctx context.Context, cmd BookCommand) (ride.Ride, error) {
	if err := s.validateBook(cmd); err != nil {
		observability.BookingsTotal.WithLabelValues(observability.ResultInvalid).Inc()
		return ride.Ride{}, err
	}

	unlock, err := s.locks.Lock(ctx, cmd.UserID)
	if err != nil {
		observability.BookingsTotal.WithLabelValues(observability.ResultError).Inc()
		return ride.Ride{}, fmt.Errorf("acquire booking lock: %w", err)
	}
	defer unlock()

	booked, err := s.ledger.HasRideToday(ctx, cmd.UserID)
	if err != nil {
		observability.BookingsTotal.WithLabelValues(observability.ResultError).Inc()
		return ride.Ride{}, fmt.Errorf("check daily ride: %w", err)
	}
	if booked {
		observability.BookingsTotal.WithLabelValues(observability.ResultDuplicate).Inc()
		s.log.WithField("user_id", cmd.UserID).Info("booking rejected: ride already booked today")
		return ride.Ride{}, ErrDuplicateBooking
	}

	fare := cmd.Quote.BaseFare
	var carpool *int
	if cmd.CarpoolCount != nil && *cmd.CarpoolCount > 1 {
		n := *cmd.CarpoolCount
		fare = s.pricing.ApplyCarpool(fare, n)
		carpool = &n
	}

	r := ride.Ride{
		ID:           types.ID(uuid.NewString()),
		UserID:       cmd.UserID,
		Source:       cmd.Quote.Source,
		Destination:  cmd.Quote.Destination,
		Distance:     cmd.Quote.TotalDistance,
		Time:         cmd.Quote.TotalTimeMinutes,
		Fare:         fare,
		Date:         s.clock().Truncate(time.Microsecond),
		CarpoolCount: carpool,
	}
	if err := s.ledger.Append(ctx, r); err != nil {
		observability.BookingsTotal.WithLabelValues(observability.ResultError).Inc()
		return ride.Ride{}, fmt.Errorf("append ride: %w", err)
	}

	observability.BookingsTotal.WithLabelValues(observability.ResultOK).Inc()
	s.log.WithFields(logrus.Fields{
		"user_id": r.UserID,
		"ride_id": r.ID,
		"fare":    r.Fare,
	}).Info("ride booked")
	return r, nil
}

func (s *Service) validateBook(cmd BookCommand) error {
	if strings.TrimSpace(string(cmd.UserID)) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	q := cmd.Quote
	if strings.TrimSpace(q.Source) == "" || strings.TrimSpace(q.Destination) == "" {
		return fmt.Errorf("%w: quote is missing addresses", ErrValidation)
	}
	if q.HubToSourceDistance < 0 || q.SourceToDestDistance < 0 || q.TotalDistance < 0 ||
		q.TotalTimeMinutes < 0 || q.BaseFare < 0 {
		return fmt.Errorf("%w: quote has negative values", ErrValidation)
	}
	if cmd.CarpoolCount != nil {
		rates := s.pricing.Rates()
		n := *cmd.CarpoolCount
		if n < rates.CarpoolMin || n > rates.CarpoolMax {
			return fmt.Errorf("%w: carpool count %d outside [%d, %d]", ErrValidation, n, rates.CarpoolMin, rates.CarpoolMax)
		}
	}
	return nil
}

// BookQuote books a previously issued quote by id.
func (s *Service) BookQuote(ctx context.Context, cmd BookQuoteCommand) (ride.Ride, error) {
	if strings.TrimSpace(string(cmd.QuoteID)) == "" {
		observability.BookingsTotal.WithLabelValues(observability.ResultInvalid).Inc()
		return ride.Ride{}, fmt.Errorf("%w: quote id is required", ErrValidation)
	}
	if s.quotes == nil {
		observability.BookingsTotal.WithLabelValues(observability.ResultNotFound).Inc()
		return ride.Ride{}, ErrQuoteNotFound
	}
	q, err := s.quotes.Get(ctx, cmd.QuoteID)
	if err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			observability.BookingsTotal.WithLabelValues(observability.ResultNotFound).Inc()
		} else {
			observability.BookingsTotal.WithLabelValues(observability.ResultError).Inc()
		}
		return ride.Ride{}, err
	}
	return s.Book(ctx, BookCommand{UserID: cmd.UserID, Quote: q, CarpoolCount: cmd.CarpoolCount})
}

func (s *Service) History(ctx context.Context, userID types.ID, query HistoryQuery) ([]ride.Ride, error) {
	by, err := ride.ParseSortField(query.SortBy)
	if err != nil {
		return nil, fmt.Errorf("%w: sort %q", ErrValidation, query.SortBy)
	}
	rides, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	ride.Sort(rides, by, query.Desc)
	return rides, nil
}

func (s *Service) Summary(ctx context.Context, userID types.ID) (ride.Summary, error) {
	rides, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return ride.Summary{}, fmt.Errorf("list rides: %w", err)
	}
	return ride.Summarize(rides), nil
}

func (s *Service) Eligibility(ctx context.Context, userID types.ID) (Eligibility, error) {
	booked, err := s.ledger.HasRideToday(ctx, userID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("check daily ride: %w", err)
	}
	return Eligibility{HasRideToday: booked, CanBook: !booked}, nil
}
