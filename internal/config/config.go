package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Telemetry feed (channel-scoped, public read key).
	FeedBaseURL string
	ChannelID   string
	ReadAPIKey  string

	// Reverse geocoding.
	NominatimBaseURL string
	UserAgent        string
	GeocoderAPIKey   string // optional Google fallback

	// Update scheduler intervals.
	PollInterval    time.Duration
	LabelInterval   time.Duration
	HistoryInterval time.Duration

	// Activity history depth (number of feed entries fetched per refresh).
	HistorySize int

	// Cache TTLs. Place names change far less often than device position,
	// hence the asymmetry.
	LocationTTL time.Duration
	HistoryTTL  time.Duration
	GeocodeTTL  time.Duration

	// Geocoding batch tuning.
	GeocodeGroupSize  int
	GeocodeGroupDelay time.Duration

	// Persistent cache location.
	CachePath string

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.FeedBaseURL = getenvDefault("FEED_BASE_URL", "https://api.thingspeak.com")
	cfg.ChannelID = os.Getenv("FEED_CHANNEL_ID")
	cfg.ReadAPIKey = os.Getenv("FEED_READ_API_KEY")
	if cfg.ChannelID == "" || cfg.ReadAPIKey == "" {
		return nil, fmt.Errorf("FEED_CHANNEL_ID and FEED_READ_API_KEY are required")
	}

	cfg.NominatimBaseURL = getenvDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org/reverse")
	cfg.UserAgent = getenvDefault("GEOCODER_USER_AGENT", "WatchOver/1.0")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "15s"); err != nil {
		return nil, err
	}
	if cfg.LabelInterval, err = getenvDuration("LABEL_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.HistoryInterval, err = getenvDuration("HISTORY_INTERVAL", "60s"); err != nil {
		return nil, err
	}

	cfg.HistorySize = getenvInt("HISTORY_SIZE", 10)

	if cfg.LocationTTL, err = getenvDuration("LOCATION_CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.HistoryTTL, err = getenvDuration("HISTORY_CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.GeocodeTTL, err = getenvDuration("GEOCODE_CACHE_TTL", "168h"); err != nil {
		return nil, err
	}

	cfg.GeocodeGroupSize = getenvInt("GEOCODE_GROUP_SIZE", 3)
	if cfg.GeocodeGroupDelay, err = getenvDuration("GEOCODE_GROUP_DELAY", "1200ms"); err != nil {
		return nil, err
	}

	cfg.CachePath = getenvDefault("CACHE_PATH", "watchover.db")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
