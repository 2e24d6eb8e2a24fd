package tracker

import (
	"context"
	"log"
	"strconv"

	"github.com/i474232898/watchover/internal/cache"
	"github.com/i474232898/watchover/internal/geocode"
)

// RefreshHistory rebuilds the activity history snapshot: last N readings,
// newest first, sentinel and unusable coordinates dropped, each point resolved
// to a place name, the whole list republished atomically. At most one
// refresh runs at a time; a call arriving while one is in flight is a no-op.
// An empty feed or any error leaves the previous snapshot untouched.
func (s *Service) RefreshHistory(ctx context.Context) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer s.refreshing.Store(false)

	feeds, err := s.feed.FetchHistory(ctx, s.historySize)
	if err != nil {
		log.Printf("tracker: history fetch failed: %v", err)
		return
	}
	if len(feeds) == 0 {
		log.Printf("tracker: no readings available from feed")
		return
	}

	// The feed serves oldest first; the snapshot is stored newest first.
	entries := make([]ActivityEntry, 0, len(feeds))
	for i := len(feeds) - 1; i >= 0; i-- {
		f := feeds[i]

		lat, latErr := strconv.ParseFloat(f.Latitude, 64)
		lng, lngErr := strconv.ParseFloat(f.Longitude, 64)
		if latErr != nil || lngErr != nil || !isFinite(lat) || !isFinite(lng) {
			continue
		}
		if isSentinel(lat, lng) {
			continue
		}

		battery := f.Battery
		if battery == "" {
			battery = "--"
		}

		entries = append(entries, ActivityEntry{
			EntryID:    f.EntryID,
			ObservedAt: f.CreatedAt,
			Battery:    battery,
			Latitude:   lat,
			Longitude:  lng,
		})
	}
	if len(entries) == 0 {
		return
	}

	points := make([]geocode.Point, len(entries))
	for i, e := range entries {
		points[i] = geocode.Point{Lat: e.Latitude, Lng: e.Longitude}
	}
	names := s.geo.ResolveBatch(ctx, points)

	for i := range entries {
		entries[i].PlaceName = names[i]
		local := entries[i].ObservedAt.Local()
		entries[i].Time = local.Format("3:04 PM")
		entries[i].Date = local.Format("Jan 2, 2006")
	}

	s.store.Put(ctx, cache.NamespaceHistory, "", entries, s.historyTTL)
	log.Printf("tracker: activity history refreshed, %d entries", len(entries))
}

// RefreshInProgress reports whether a history refresh is currently running.
// The scheduler's history job checks this before invoking RefreshHistory.
func (s *Service) RefreshInProgress() bool {
	return s.refreshing.Load()
}

// History implements the stale-while-revalidate read: a cached snapshot is
// served as-is; with forceRefresh the cached snapshot is refreshed first and
// the fresh one served; with no cache at all, one refresh is awaited.
func (s *Service) History(ctx context.Context, forceRefresh bool) HistoryView {
	var entries []ActivityEntry
	hasCache := s.store.Get(ctx, cache.NamespaceHistory, "", &entries) && len(entries) > 0

	if hasCache && !forceRefresh {
		return HistoryView{Entries: entries}
	}

	s.RefreshHistory(ctx)

	var fresh []ActivityEntry
	if s.store.Get(ctx, cache.NamespaceHistory, "", &fresh) && len(fresh) > 0 {
		return HistoryView{Entries: fresh}
	}
	if hasCache {
		// Refresh failed or was skipped; the stale snapshot is still better
		// than nothing.
		return HistoryView{Entries: entries}
	}
	return HistoryView{Entries: []ActivityEntry{}}
}
