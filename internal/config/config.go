// README: Config loader with env defaults for HTTP, storage, maps, auth and fare rates.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fareway/internal/modules/booking"
	"fareway/internal/modules/pricing"
)

const prefix = "FAREWAY_"

type Config struct {
	HTTP struct {
		Addr           string
		GeocodeTimeout time.Duration
	}
	DB struct {
		// DSN empty means rides are kept in memory.
		DSN string
	}
	Redis struct {
		// Addr empty means quotes and booking locks stay in process.
		Addr    string
		LockTTL time.Duration
	}
	Maps struct {
		APIKey string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Log struct {
		Level  string
		Format string
	}
	Location *time.Location
	Rates    pricing.Rates
	Hub      booking.Hub
	QuoteTTL time.Duration
}

func Load() (Config, error) {
	var cfg Config
	var errs []error

	cfg.HTTP.Addr = envOrDefault("HTTP_ADDR", ":8080")
	cfg.HTTP.GeocodeTimeout = envOrDefaultDuration("GEOCODE_TIMEOUT", 10*time.Second, &errs)
	cfg.DB.DSN = envOrDefault("DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("REDIS_ADDR", "")
	cfg.Redis.LockTTL = envOrDefaultDuration("LOCK_TTL", 10*time.Second, &errs)
	cfg.Maps.APIKey = envOrDefault("MAPS_API_KEY", "")
	cfg.Firebase.ProjectID = envOrDefault("FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("FIREBASE_CREDENTIALS", "")
	cfg.Log.Level = strings.ToLower(envOrDefault("LOG_LEVEL", "info"))
	cfg.Log.Format = strings.ToLower(envOrDefault("LOG_FORMAT", "text"))
	cfg.QuoteTTL = envOrDefaultDuration("QUOTE_TTL", 15*time.Minute, &errs)

	tz := envOrDefault("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid %sTIMEZONE: %w", prefix, err))
		loc = time.Local
	}
	cfg.Location = loc

	def := pricing.DefaultRates()
	cfg.Rates = pricing.Rates{
		CostPerMile:     envOrDefaultFloat("COST_PER_MILE", def.CostPerMile, &errs),
		CostPerMinute:   envOrDefaultFloat("COST_PER_MINUTE", def.CostPerMinute, &errs),
		BaseFee:         envOrDefaultFloat("BASE_FEE", def.BaseFee, &errs),
		AverageSpeedMph: envOrDefaultFloat("AVG_SPEED_MPH", def.AverageSpeedMph, &errs),
		CarpoolDiscount: envOrDefaultFloat("CARPOOL_DISCOUNT", def.CarpoolDiscount, &errs),
		CarpoolMin:      envOrDefaultInt("CARPOOL_MIN", def.CarpoolMin, &errs),
		CarpoolMax:      envOrDefaultInt("CARPOOL_MAX", def.CarpoolMax, &errs),
	}

	hub := booking.DefaultHub()
	cfg.Hub.Address = envOrDefault("HUB_ADDRESS", hub.Address)
	cfg.Hub.Point.Lat = envOrDefaultFloat("HUB_LAT", hub.Point.Lat, &errs)
	cfg.Hub.Point.Lng = envOrDefaultFloat("HUB_LNG", hub.Point.Lng, &errs)

	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (c Config) validate() []error {
	var errs []error
	if c.Rates.AverageSpeedMph <= 0 {
		errs = append(errs, fmt.Errorf("%sAVG_SPEED_MPH must be > 0", prefix))
	}
	if c.Rates.CostPerMile < 0 || c.Rates.CostPerMinute < 0 || c.Rates.BaseFee < 0 {
		errs = append(errs, fmt.Errorf("fare rates must not be negative"))
	}
	if c.Rates.CarpoolMin < 2 || c.Rates.CarpoolMax < c.Rates.CarpoolMin {
		errs = append(errs, fmt.Errorf("carpool bounds [%d, %d] are invalid", c.Rates.CarpoolMin, c.Rates.CarpoolMax))
	}
	if c.Rates.CarpoolDiscount < 0 || c.Rates.CarpoolDiscount*float64(c.Rates.CarpoolMax-1) >= 1 {
		errs = append(errs, fmt.Errorf("%sCARPOOL_DISCOUNT %.2f would make fares non-positive", prefix, c.Rates.CarpoolDiscount))
	}
	if c.Hub.Point.Lat < -90 || c.Hub.Point.Lat > 90 || c.Hub.Point.Lng < -180 || c.Hub.Point.Lng > 180 {
		errs = append(errs, fmt.Errorf("hub coordinate %+v out of range", c.Hub.Point))
	}
	if c.QuoteTTL <= 0 {
		errs = append(errs, fmt.Errorf("%sQUOTE_TTL must be > 0", prefix))
	}
	return errs
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(prefix + key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(prefix + key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s%s: %w", prefix, key, err))
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(prefix + key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s%s: %w", prefix, key, err))
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(prefix + key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s%s: %w", prefix, key, err))
		return def
	}
	return d
}
