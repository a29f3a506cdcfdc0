// README: Entry point; loads config, wires stores and services, starts the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fareway/internal/config"
	httptransport "fareway/internal/http"
	"fareway/internal/infra"
	"fareway/internal/logging"
	"fareway/internal/maps"
	"fareway/internal/modules/booking"
	"fareway/internal/modules/pricing"
	"fareway/internal/modules/ride"
	"fareway/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier = infra.DevVerifier{}
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	} else {
		log.Warn("FAREWAY_FIREBASE_PROJECT_ID not set; bearer tokens are accepted as user ids")
	}

	var geocoder booking.Geocoder
	if cfg.Maps.APIKey != "" {
		geocoder, err = maps.NewGoogleGeocoder(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	} else {
		log.Warn("FAREWAY_MAPS_API_KEY not set; using mock geocoder")
		geocoder = maps.NewMockGeocoder(nil)
	}

	clock := types.Clock(types.SystemClock)

	var ledger booking.Ledger
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("db init: %v", err)
		}
		defer pool.Close()
		ledger = ride.NewStore(pool, clock, cfg.Location)
	} else {
		log.Warn("FAREWAY_DB_DSN not set; rides are kept in memory")
		ledger = ride.NewMemoryStore(clock, cfg.Location)
	}

	var locks booking.Locker
	var quotes booking.QuoteStore
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatalf("redis init: %v", err)
		}
		defer rdb.Close()
		locks = ride.NewRedisLocker(rdb, cfg.Redis.LockTTL, log)
		quotes = booking.NewRedisQuoteStore(rdb, cfg.QuoteTTL)
	} else {
		locks = ride.NewKeyedMutex()
		quotes = booking.NewMemoryQuoteStore(cfg.QuoteTTL, clock)
	}

	bookingSvc := booking.NewService(
		cfg.Hub,
		pricing.NewService(cfg.Rates),
		geocoder,
		ledger,
		locks,
		booking.WithQuoteStore(quotes),
		booking.WithClock(clock),
		booking.WithLogger(log),
	)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:        bookingSvc,
		Verifier:       verifier,
		Logger:         log,
		GeocodeTimeout: cfg.HTTP.GeocodeTimeout,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)
	log.WithFields(logrus.Fields{
		"hub":      cfg.Hub.Address,
		"timezone": cfg.Location.String(),
	}).Info("fareway starting")
	if err := server.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
