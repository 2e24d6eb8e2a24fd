// Package tracker holds the core reconciliation logic between the telemetry
// feed, the geocoding resolver, the persistent cache, and the views served
// to the UI.
package tracker

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/watchover/internal/cache"
	"github.com/i474232898/watchover/internal/geocode"
	"github.com/i474232898/watchover/internal/telemetry"
)

// FeedClient is the telemetry feed surface the tracker consumes.
type FeedClient interface {
	FetchLatest(ctx context.Context) (telemetry.Reading, error)
	FetchHistory(ctx context.Context, results int) ([]telemetry.Reading, error)
	VerifyCredentials(ctx context.Context, deviceID, password string) (bool, error)
}

// Resolver converts coordinates to place names.
type Resolver interface {
	ResolveOne(ctx context.Context, lat, lng float64) string
	ResolveBatch(ctx context.Context, points []geocode.Point) []string
}

// Options tunes a Service.
type Options struct {
	LocationTTL time.Duration
	HistoryTTL  time.Duration
	HistorySize int
}

// Service owns the session-scoped tracking state: the last known good fix,
// the current view, and the history refresh guard. It is constructed once
// and reset on logout.
type Service struct {
	feed  FeedClient
	geo   Resolver
	store *cache.Store

	locationTTL time.Duration
	historyTTL  time.Duration
	historySize int

	mu           sync.Mutex
	lastKnown    *LocationFix // most recent non-sentinel fix, in-memory only
	view         LocationView
	lastObserved time.Time
	elapsedLabel string

	// refreshing guards the history refresher: timer-triggered and
	// user-forced refreshes must never overlap.
	refreshing atomic.Bool

	now func() time.Time
}

func New(feed FeedClient, geo Resolver, store *cache.Store, opts Options) *Service {
	if opts.LocationTTL <= 0 {
		opts.LocationTTL = time.Hour
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = time.Hour
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 10
	}
	return &Service{
		feed:        feed,
		geo:         geo,
		store:       store,
		locationTTL: opts.LocationTTL,
		historyTTL:  opts.HistoryTTL,
		historySize: opts.HistorySize,
		view:        LocationView{Status: StatusNoData, Message: "No data", LastUpdate: "Waiting for data..."},
		now:         time.Now,
	}
}

// Login checks the device id and password against the feed.
func (s *Service) Login(ctx context.Context, deviceID, password string) (bool, error) {
	return s.feed.VerifyCredentials(ctx, deviceID, password)
}

// PollOnce fetches the latest reading and reconciles it against the cached
// and last-known-good state. All failures degrade to view state; nothing
// propagates to the scheduler.
func (s *Service) PollOnce(ctx context.Context) {
	reading, err := s.feed.FetchLatest(ctx)
	if err != nil {
		log.Printf("tracker: poll failed: %v", err)
		s.setErrorView("Error loading", "Connection error")
		return
	}

	if !reading.HasCoordinates() {
		s.setNoDataView()
		return
	}

	lat, latErr := strconv.ParseFloat(reading.Latitude, 64)
	lng, lngErr := strconv.ParseFloat(reading.Longitude, 64)
	if latErr != nil || lngErr != nil || !isFinite(lat) || !isFinite(lng) {
		log.Printf("tracker: unusable coordinates %q,%q", reading.Latitude, reading.Longitude)
		s.setNoDataView()
		return
	}

	battery := reading.Battery
	if battery == "" {
		battery = "--"
	}

	// Fall back to the last known good fix on a sentinel reading.
	if isSentinel(lat, lng) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.lastKnown == nil {
			s.view = LocationView{Status: StatusAwaitingFix, Message: "Awaiting first GPS fix"}
			return
		}
		fix := *s.lastKnown
		fix.PlaceName += " (Last Known)"
		fix.Battery = battery
		fix.ObservedAt = reading.CreatedAt
		s.view = LocationView{Status: StatusLastKnown, Fix: &fix, LastUpdate: s.elapsedLabel}
		s.lastObserved = reading.CreatedAt
		s.refreshElapsedLocked()
		return
	}

	lat = round6(lat)
	lng = round6(lng)

	// An unchanged rounded position reuses the cached place name instead of
	// issuing a redundant geocode.
	var placeName string
	var cached LocationFix
	if s.store.Get(ctx, cache.NamespaceLocation, "", &cached) {
		if round6(cached.Latitude) == lat && round6(cached.Longitude) == lng {
			placeName = cached.PlaceName
		}
	}

	if placeName == "" {
		placeName = s.geo.ResolveOne(ctx, lat, lng)
		s.store.Put(ctx, cache.NamespaceLocation, "", LocationFix{
			Latitude:   lat,
			Longitude:  lng,
			PlaceName:  placeName,
			Battery:    battery,
			ObservedAt: reading.CreatedAt,
		}, s.locationTTL)
	}

	fix := LocationFix{
		Latitude:   lat,
		Longitude:  lng,
		PlaceName:  placeName,
		Battery:    battery,
		ObservedAt: reading.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lastKnown := fix
	s.lastKnown = &lastKnown
	s.view = LocationView{Status: StatusOK, Fix: &fix}
	s.lastObserved = reading.CreatedAt
	s.refreshElapsedLocked()
}

// CurrentView returns the current location view. Pure in-memory read.
func (s *Service) CurrentView() LocationView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.view
	if view.Fix != nil {
		fix := *view.Fix
		view.Fix = &fix
	}
	if s.elapsedLabel != "" {
		view.LastUpdate = s.elapsedLabel
	}
	return view
}

// RefreshElapsedLabel recomputes the "N seconds/minutes/hours/days ago"
// label from the last observed timestamp. Driven by the 1s scheduler tick.
func (s *Service) RefreshElapsedLabel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshElapsedLocked()
}

func (s *Service) refreshElapsedLocked() {
	if s.lastObserved.IsZero() {
		return
	}
	s.elapsedLabel = timeAgo(s.now().Sub(s.lastObserved))
}

// Reset clears every cache namespace and drops all session state. Called on
// logout.
func (s *Service) Reset(ctx context.Context) {
	s.store.Clear(ctx, cache.NamespaceLocation)
	s.store.Clear(ctx, cache.NamespaceHistory)
	s.store.Clear(ctx, cache.NamespaceGeocode)

	s.mu.Lock()
	s.lastKnown = nil
	s.view = LocationView{Status: StatusNoData, Message: "No data", LastUpdate: "Waiting for data..."}
	s.lastObserved = time.Time{}
	s.elapsedLabel = ""
	s.mu.Unlock()

	s.refreshing.Store(false)
}

// setNoDataView resets to the waiting state. The elapsed label and its
// timestamp are dropped too, so the 1s tick cannot resurrect "N minutes ago"
// for a reading that is no longer displayed.
func (s *Service) setNoDataView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = LocationView{Status: StatusNoData, Message: "No data", LastUpdate: "Waiting for data..."}
	s.lastObserved = time.Time{}
	s.elapsedLabel = ""
}

// setErrorView keeps the previously shown fix on screen and only swaps the
// status labels, so total network loss degrades to a stale-but-visible view.
func (s *Service) setErrorView(message, lastUpdate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Status = StatusError
	s.view.Message = message
	s.view.LastUpdate = lastUpdate
	s.elapsedLabel = lastUpdate
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// isSentinel reports the device's (0,0) "no GPS lock" marker. A genuine fix
// at the equator/prime-meridian intersection is indistinguishable from it
// and is accepted as a domain approximation, not treated as a position.
func isSentinel(lat, lng float64) bool {
	return lat == 0 && lng == 0
}

// isFinite rejects NaN and infinite coordinates, which strconv.ParseFloat
// happily produces from "NaN" and "Inf" feed values.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// timeAgo renders an elapsed duration the way the dashboard displays it.
func timeAgo(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	switch {
	case secs < 60:
		return fmt.Sprintf("%d second%s ago", secs, plural(secs))
	case mins < 60:
		return fmt.Sprintf("%d minute%s ago", mins, plural(mins))
	case hours < 24:
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	default:
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
