package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fareway/internal/logging"
	"fareway/internal/modules/pricing"
	"fareway/internal/modules/ride"
	"fareway/internal/types"
)

var (
	testSource = types.Point{Lat: 32.80, Lng: -96.80}
	testDest   = types.Point{Lat: 32.82, Lng: -96.78}
)

type stubGeocoder struct {
	points map[string]types.Point
	fail   map[string]error
	calls  int32
}

func (g *stubGeocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	atomic.AddInt32(&g.calls, 1)
	if err, ok := g.fail[address]; ok {
		return types.Point{}, err
	}
	p, ok := g.points[address]
	if !ok {
		return types.Point{}, errors.New("no results")
	}
	return p, nil
}

// countingLedger records how often the ledger is touched.
type countingLedger struct {
	*ride.MemoryStore
	calls int32
}

func (l *countingLedger) Append(ctx context.Context, r ride.Ride) error {
	atomic.AddInt32(&l.calls, 1)
	return l.MemoryStore.Append(ctx, r)
}

func (l *countingLedger) HasRideToday(ctx context.Context, userID types.ID) (bool, error) {
	atomic.AddInt32(&l.calls, 1)
	return l.MemoryStore.HasRideToday(ctx, userID)
}

type fixture struct {
	svc      *Service
	geocoder *stubGeocoder
	ledger   *countingLedger
	quotes   *MemoryQuoteStore
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.geocoder = &stubGeocoder{points: map[string]types.Point{
		"Main St": testSource,
		"Elm St":  testDest,
	}}
	f.ledger = &countingLedger{MemoryStore: ride.NewMemoryStore(clock, time.UTC)}
	f.quotes = NewMemoryQuoteStore(15*time.Minute, clock)
	f.svc = NewService(
		DefaultHub(),
		pricing.NewService(pricing.DefaultRates()),
		f.geocoder,
		f.ledger,
		ride.NewKeyedMutex(),
		WithQuoteStore(f.quotes),
		WithClock(clock),
		WithLogger(logging.Discard()),
	)
	return f
}

func intPtr(v int) *int { return &v }

func TestQuoteEndToEnd(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.Quote(context.Background(), QuoteCommand{Source: " Main St ", Destination: "Elm St"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if q.HubToSourceDistance != 6.0 {
		t.Fatalf("hub to source: expected 6.0, got %v", q.HubToSourceDistance)
	}
	if q.SourceToDestDistance != 1.8 {
		t.Fatalf("source to dest: expected 1.8, got %v", q.SourceToDestDistance)
	}
	if q.TotalDistance != 7.8 {
		t.Fatalf("total: expected 7.8, got %v", q.TotalDistance)
	}
	if q.TotalTimeMinutes != 16 {
		t.Fatalf("time: expected 16, got %d", q.TotalTimeMinutes)
	}
	if q.BaseFare != 6.50 {
		t.Fatalf("fare: expected 6.50, got %v", q.BaseFare)
	}
	if q.Source != "Main St" || q.SourcePoint != testSource || q.DestinationPoint != testDest {
		t.Fatalf("unexpected addresses/points: %+v", q)
	}
	if q.ID == "" || !q.CreatedAt.Equal(f.now) {
		t.Fatalf("expected id and creation time, got %q %v", q.ID, q.CreatedAt)
	}

	stored, err := f.quotes.Get(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("quote not stored: %v", err)
	}
	if stored != q {
		t.Fatalf("stored quote differs: %+v vs %+v", stored, q)
	}
	if f.ledger.calls != 0 {
		t.Fatalf("quote must not touch the ledger")
	}
}

func TestQuoteValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  QuoteCommand
	}{
		{"empty source", QuoteCommand{Source: "", Destination: "Elm St"}},
		{"blank destination", QuoteCommand{Source: "Main St", Destination: "   "}},
		{"both empty", QuoteCommand{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Quote(context.Background(), tt.cmd)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if f.geocoder.calls != 0 {
				t.Fatalf("geocoder called %d times before validation", f.geocoder.calls)
			}
		})
	}
}

func TestQuoteGeocodingFailure(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("backend unreachable")
	f.geocoder.fail = map[string]error{"Elm St": cause}

	_, err := f.svc.Quote(context.Background(), QuoteCommand{Source: "Main St", Destination: "Elm St"})
	if !errors.Is(err, ErrGeocoding) {
		t.Fatalf("expected ErrGeocoding, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}

	_, err = f.svc.Quote(context.Background(), QuoteCommand{Source: "Nowhere", Destination: "Elm St"})
	if !errors.Is(err, ErrGeocoding) {
		t.Fatalf("expected ErrGeocoding for unknown address, got %v", err)
	}
	if len(f.quotes.quotes) != 0 {
		t.Fatalf("failed quotes must not be stored")
	}
}

// barrierGeocoder only answers once both lookups are in flight, so a
// sequential caller would time out.
type barrierGeocoder struct {
	arrived int32
	both    chan struct{}
}

func (g *barrierGeocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	if atomic.AddInt32(&g.arrived, 1) == 2 {
		close(g.both)
	}
	select {
	case <-g.both:
	case <-ctx.Done():
		return types.Point{}, ctx.Err()
	case <-time.After(2 * time.Second):
		return types.Point{}, errors.New("lookups were not concurrent")
	}
	if address == "Main St" {
		return testSource, nil
	}
	return testDest, nil
}

func TestQuoteGeocodesConcurrently(t *testing.T) {
	geo := &barrierGeocoder{both: make(chan struct{})}
	svc := NewService(DefaultHub(), pricing.NewService(pricing.DefaultRates()), geo,
		ride.NewMemoryStore(nil, time.UTC), nil, WithLogger(logging.Discard()))

	q, err := svc.Quote(context.Background(), QuoteCommand{Source: "Main St", Destination: "Elm St"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.TotalDistance != 7.8 {
		t.Fatalf("expected 7.8, got %v", q.TotalDistance)
	}
}

func quoteFor(t *testing.T, f *fixture) RideQuote {
	t.Helper()
	q, err := f.svc.Quote(context.Background(), QuoteCommand{Source: "Main St", Destination: "Elm St"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	return q
}

func TestBookCreatesRide(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)

	r, err := f.svc.Book(context.Background(), BookCommand{UserID: "u1", Quote: q})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if r.ID == "" || r.UserID != "u1" || r.Fare != 6.50 || r.Distance != 7.8 || r.Time != 16 {
		t.Fatalf("unexpected ride: %+v", r)
	}
	if r.CarpoolCount != nil {
		t.Fatalf("solo ride should have no carpool count")
	}
	if !r.Date.Equal(f.now) {
		t.Fatalf("expected booking time %v, got %v", f.now, r.Date)
	}

	rides, _ := f.ledger.ListByUser(context.Background(), "u1")
	if len(rides) != 1 || rides[0].ID != r.ID {
		t.Fatalf("expected ride in ledger, got %+v", rides)
	}
}

func TestBookDateMicrosecondPrecision(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)
	f.now = time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.UTC)

	r, err := f.svc.Book(context.Background(), BookCommand{UserID: "u1", Quote: q})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	want := time.Date(2024, 5, 1, 9, 0, 0, 123456000, time.UTC)
	if !r.Date.Equal(want) {
		t.Fatalf("expected booking time %v, got %v", want, r.Date)
	}

	rides, _ := f.ledger.ListByUser(context.Background(), "u1")
	if len(rides) != 1 || !rides[0].Date.Equal(r.Date) {
		t.Fatalf("ledger copy should carry the returned date, got %+v", rides)
	}
}

func TestBookDuplicateSameDayThenNextDay(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)
	ctx := context.Background()

	f.now = time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: q}); err != nil {
		t.Fatalf("first book: %v", err)
	}
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: q}); !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u2", Quote: q}); err != nil {
		t.Fatalf("other user should book freely: %v", err)
	}

	f.now = time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC)
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: q}); err != nil {
		t.Fatalf("next-day booking should succeed: %v", err)
	}
	rides, _ := f.ledger.ListByUser(ctx, "u1")
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides for u1, got %d", len(rides))
	}
}

func TestBookCarpool(t *testing.T) {
	tests := []struct {
		riders int
		want   float64
	}{
		{2, 9.00},
		{3, 8.00},
		{4, 7.00},
		{5, 6.00},
	}
	for _, tt := range tests {
		f := newFixture(t)
		q := quoteFor(t, f)
		q.BaseFare = 10.00

		r, err := f.svc.Book(context.Background(), BookCommand{UserID: "u1", Quote: q, CarpoolCount: intPtr(tt.riders)})
		if err != nil {
			t.Fatalf("riders=%d: %v", tt.riders, err)
		}
		if r.Fare != tt.want {
			t.Fatalf("riders=%d: expected %.2f, got %v", tt.riders, tt.want, r.Fare)
		}
		if r.CarpoolCount == nil || *r.CarpoolCount != tt.riders {
			t.Fatalf("riders=%d: carpool count not recorded: %v", tt.riders, r.CarpoolCount)
		}
	}

	f := newFixture(t)
	r, err := f.svc.Book(context.Background(), BookCommand{UserID: "u1", Quote: quoteFor(t, f), CarpoolCount: intPtr(3)})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if r.Fare != 5.20 {
		t.Fatalf("expected 6.50 discounted to 5.20, got %v", r.Fare)
	}

	// the discounted fare is stored without a second rounding to cents
	for _, tc := range []struct {
		base   float64
		riders int
		want   float64
	}{
		{9.65, 4, 6.755},
		{4.55, 2, 4.095},
	} {
		f := newFixture(t)
		q := quoteFor(t, f)
		q.BaseFare = tc.base
		r, err := f.svc.Book(context.Background(), BookCommand{UserID: "u1", Quote: q, CarpoolCount: intPtr(tc.riders)})
		if err != nil {
			t.Fatalf("base=%v riders=%d: %v", tc.base, tc.riders, err)
		}
		if r.Fare != tc.want {
			t.Fatalf("base=%v riders=%d: expected %v, got %v", tc.base, tc.riders, tc.want, r.Fare)
		}
	}
}

func TestBookValidationBeforeLedger(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)

	bad := q
	bad.Source = ""
	negative := q
	negative.TotalDistance = -1

	tests := []struct {
		name string
		cmd  BookCommand
	}{
		{"missing user", BookCommand{UserID: "", Quote: q}},
		{"carpool below range", BookCommand{UserID: "u1", Quote: q, CarpoolCount: intPtr(1)}},
		{"carpool above range", BookCommand{UserID: "u1", Quote: q, CarpoolCount: intPtr(6)}},
		{"quote without address", BookCommand{UserID: "u1", Quote: bad}},
		{"negative distance", BookCommand{UserID: "u1", Quote: negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tt.cmd)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if f.ledger.calls != 0 {
				t.Fatalf("ledger touched %d times before validation", f.ledger.calls)
			}
		})
	}
}

func TestConcurrentBookSameUser(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(ctx, BookCommand{UserID: "u_race", Quote: q})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrDuplicateBooking) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one success, got %d", success)
	}
	rides, _ := f.ledger.ListByUser(ctx, "u_race")
	if len(rides) != 1 {
		t.Fatalf("expected one ride in ledger, got %d", len(rides))
	}
}

func TestConcurrentBookDifferentUsers(t *testing.T) {
	f := newFixture(t)
	q := quoteFor(t, f)
	ctx := context.Background()

	users := []types.ID{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, len(users))
	for _, u := range users {
		wg.Add(1)
		go func(u types.ID) {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(ctx, BookCommand{UserID: u, Quote: q})
			errs <- err
		}(u)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("independent users should all succeed: %v", err)
		}
	}
}

func TestBookQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quoteFor(t, f)

	if _, err := f.svc.BookQuote(ctx, BookQuoteCommand{UserID: "u1", QuoteID: "missing"}); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
	if _, err := f.svc.BookQuote(ctx, BookQuoteCommand{UserID: "u1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty quote id, got %v", err)
	}

	r, err := f.svc.BookQuote(ctx, BookQuoteCommand{UserID: "u1", QuoteID: q.ID, CarpoolCount: intPtr(2)})
	if err != nil {
		t.Fatalf("book quote: %v", err)
	}
	if r.Source != "Main St" || r.Destination != "Elm St" || r.Fare != 5.8500000000000005 {
		t.Fatalf("unexpected ride: %+v", r)
	}

	expired := quoteFor(t, f)
	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.svc.BookQuote(ctx, BookQuoteCommand{UserID: "u2", QuoteID: expired.ID}); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected expired quote to be not found, got %v", err)
	}
}

func TestHistorySummaryEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quoteFor(t, f)

	elig, err := f.svc.Eligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if elig.HasRideToday || !elig.CanBook {
		t.Fatalf("expected eligible before booking, got %+v", elig)
	}

	f.now = time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC)
	cheap := q
	cheap.BaseFare = 3.50
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: cheap}); err != nil {
		t.Fatalf("book day 1: %v", err)
	}
	f.now = time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	pricey := q
	pricey.BaseFare = 9.65
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: pricey}); err != nil {
		t.Fatalf("book day 2: %v", err)
	}
	f.now = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := f.svc.Book(ctx, BookCommand{UserID: "u1", Quote: q}); err != nil {
		t.Fatalf("book day 3: %v", err)
	}

	byDate, err := f.svc.History(ctx, "u1", HistoryQuery{Desc: true})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(byDate) != 3 || byDate[0].Fare != 6.50 || byDate[2].Fare != 3.50 {
		t.Fatalf("unexpected date order: %+v", byDate)
	}

	byFare, err := f.svc.History(ctx, "u1", HistoryQuery{SortBy: "fare"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if byFare[0].Fare != 3.50 || byFare[1].Fare != 6.50 || byFare[2].Fare != 9.65 {
		t.Fatalf("unexpected fare order: %+v", byFare)
	}

	if _, err := f.svc.History(ctx, "u1", HistoryQuery{SortBy: "distance"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown sort, got %v", err)
	}

	sum, err := f.svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := ride.Summary{TotalRides: 3, TotalSpent: 19.65, TotalDistance: 23.4, TotalTimeMinutes: 48}
	if sum != want {
		t.Fatalf("expected %+v, got %+v", want, sum)
	}

	elig, _ = f.svc.Eligibility(ctx, "u1")
	if !elig.HasRideToday || elig.CanBook {
		t.Fatalf("expected ineligible after booking today, got %+v", elig)
	}
}
