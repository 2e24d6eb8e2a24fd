package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/watchover/internal/cache"
	"github.com/i474232898/watchover/internal/geocode"
	"github.com/i474232898/watchover/internal/telemetry"
)

// fakeFeed serves scripted readings. FetchLatest walks the latest slice and
// sticks on the final element; FetchHistory can be gated to simulate a slow
// in-flight refresh.
type fakeFeed struct {
	mu        sync.Mutex
	latest    []telemetry.Reading
	latestErr error
	latestIdx int

	history      []telemetry.Reading
	historyErr   error
	historyCalls atomic.Int64

	started chan struct{}
	gate    chan struct{}
}

func (f *fakeFeed) FetchLatest(ctx context.Context) (telemetry.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return telemetry.Reading{}, f.latestErr
	}
	r := f.latest[f.latestIdx]
	if f.latestIdx < len(f.latest)-1 {
		f.latestIdx++
	}
	return r, nil
}

func (f *fakeFeed) FetchHistory(ctx context.Context, results int) ([]telemetry.Reading, error) {
	f.historyCalls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, f.historyErr
}

func (f *fakeFeed) VerifyCredentials(ctx context.Context, deviceID, password string) (bool, error) {
	r, err := f.FetchLatest(ctx)
	if err != nil {
		return false, err
	}
	return r.DeviceID == deviceID && r.Password == password, nil
}

// fakeResolver names points deterministically and counts lookups.
type fakeResolver struct {
	names map[string]string
	calls atomic.Int64
}

func (r *fakeResolver) ResolveOne(ctx context.Context, lat, lng float64) string {
	r.calls.Add(1)
	if name, ok := r.names[geocode.Key(lat, lng)]; ok {
		return name
	}
	return fmt.Sprintf("Near %.4f, %.4f", lat, lng)
}

func (r *fakeResolver) ResolveBatch(ctx context.Context, points []geocode.Point) []string {
	names := make([]string, len(points))
	for i, p := range points {
		names[i] = r.ResolveOne(ctx, p.Lat, p.Lng)
	}
	return names
}

func newTestService(t *testing.T, feed *fakeFeed, geo *fakeResolver) *Service {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(feed, geo, store, Options{HistorySize: 10})
}

func reading(lat, lng, battery string, at time.Time) telemetry.Reading {
	return telemetry.Reading{CreatedAt: at, Latitude: lat, Longitude: lng, Battery: battery}
}

func TestSentinelFallsBackToLastKnown(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{
		reading("14.1", "121.2", "90", now.Add(-time.Minute)),
		reading("0.0", "0.0", "82", now),
	}}
	geo := &fakeResolver{names: map[string]string{geocode.Key(14.1, 121.2): "Main St"}}
	svc := newTestService(t, feed, geo)
	ctx := context.Background()

	svc.PollOnce(ctx)
	svc.PollOnce(ctx)

	view := svc.CurrentView()
	if view.Status != StatusLastKnown {
		t.Fatalf("expected last-known status, got %s", view.Status)
	}
	if view.Fix == nil {
		t.Fatal("expected a fix in the view")
	}
	if view.Fix.Latitude != 14.1 || view.Fix.Longitude != 121.2 {
		t.Fatalf("expected last known coordinates, got %v,%v", view.Fix.Latitude, view.Fix.Longitude)
	}
	if view.Fix.PlaceName != "Main St (Last Known)" {
		t.Fatalf("unexpected place name: %q", view.Fix.PlaceName)
	}
	if view.Fix.Battery != "82" {
		t.Fatalf("expected fresh battery value, got %q", view.Fix.Battery)
	}
}

func TestSentinelWithNoPriorFix(t *testing.T) {
	feed := &fakeFeed{latest: []telemetry.Reading{reading("0.0", "0.0", "50", time.Now())}}
	geo := &fakeResolver{}
	svc := newTestService(t, feed, geo)

	svc.PollOnce(context.Background())

	view := svc.CurrentView()
	if view.Status != StatusAwaitingFix {
		t.Fatalf("expected awaiting-fix status, got %s", view.Status)
	}
	if view.Fix != nil {
		t.Fatal("expected no position to show")
	}
	if geo.calls.Load() != 0 {
		t.Fatalf("sentinel must never be geocoded, got %d calls", geo.calls.Load())
	}
}

func TestUnchangedPositionReusesCachedName(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{
		reading("14.6565", "121.0315", "88", now.Add(-30*time.Second)),
		reading("14.6565", "121.0315", "87", now),
	}}
	geo := &fakeResolver{}
	svc := newTestService(t, feed, geo)
	ctx := context.Background()

	svc.PollOnce(ctx)
	svc.PollOnce(ctx)

	if geo.calls.Load() != 1 {
		t.Fatalf("expected one geocode for an unchanged position, got %d", geo.calls.Load())
	}
	if view := svc.CurrentView(); view.Status != StatusOK {
		t.Fatalf("expected ok status, got %s", view.Status)
	}
}

func TestPollErrorKeepsLastView(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{reading("14.1", "121.2", "90", now)}}
	geo := &fakeResolver{}
	svc := newTestService(t, feed, geo)
	ctx := context.Background()

	svc.PollOnce(ctx)
	feed.mu.Lock()
	feed.latestErr = fmt.Errorf("connection refused")
	feed.mu.Unlock()
	svc.PollOnce(ctx)

	view := svc.CurrentView()
	if view.Status != StatusError {
		t.Fatalf("expected error status, got %s", view.Status)
	}
	if view.Fix == nil || view.Fix.Latitude != 14.1 {
		t.Fatal("expected the previous fix to remain visible")
	}
	if view.LastUpdate != "Connection error" {
		t.Fatalf("unexpected label: %q", view.LastUpdate)
	}
}

func TestMissingFieldsIsNoData(t *testing.T) {
	feed := &fakeFeed{latest: []telemetry.Reading{{CreatedAt: time.Now()}}}
	svc := newTestService(t, feed, &fakeResolver{})

	svc.PollOnce(context.Background())

	view := svc.CurrentView()
	if view.Status != StatusNoData || view.Message != "No data" {
		t.Fatalf("expected no-data view, got %+v", view)
	}
}

func TestPollNonFiniteCoordinatesIsNoData(t *testing.T) {
	feed := &fakeFeed{latest: []telemetry.Reading{reading("NaN", "121.2", "90", time.Now())}}
	geo := &fakeResolver{}
	svc := newTestService(t, feed, geo)

	svc.PollOnce(context.Background())

	view := svc.CurrentView()
	if view.Status != StatusNoData {
		t.Fatalf("expected no-data view for NaN coordinates, got %s", view.Status)
	}
	if geo.calls.Load() != 0 {
		t.Fatalf("NaN coordinates must not be geocoded, got %d calls", geo.calls.Load())
	}
}

// TestNoDataClearsElapsedLabel verifies that once the feed stops reporting
// coordinates, the 1s tick does not keep showing "N minutes ago" for a
// reading that is no longer displayed.
func TestNoDataClearsElapsedLabel(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{
		reading("14.1", "121.2", "90", now.Add(-2*time.Minute)),
		{CreatedAt: now},
	}}
	svc := newTestService(t, feed, &fakeResolver{})
	ctx := context.Background()

	svc.PollOnce(ctx)
	svc.PollOnce(ctx)
	svc.RefreshElapsedLabel()

	view := svc.CurrentView()
	if view.Status != StatusNoData {
		t.Fatalf("expected no-data view, got %s", view.Status)
	}
	if view.LastUpdate != "Waiting for data..." {
		t.Fatalf("expected waiting label, got %q", view.LastUpdate)
	}
}

func TestBatteryDefaultsToDashes(t *testing.T) {
	feed := &fakeFeed{latest: []telemetry.Reading{reading("14.1", "121.2", "", time.Now())}}
	svc := newTestService(t, feed, &fakeResolver{})

	svc.PollOnce(context.Background())

	if view := svc.CurrentView(); view.Fix == nil || view.Fix.Battery != "--" {
		t.Fatalf("expected battery placeholder, got %+v", view.Fix)
	}
}

func TestResetDropsSessionState(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{
		reading("14.1", "121.2", "90", now),
		reading("0.0", "0.0", "82", now),
	}}
	svc := newTestService(t, feed, &fakeResolver{})
	ctx := context.Background()

	svc.PollOnce(ctx)
	svc.Reset(ctx)
	svc.PollOnce(ctx)

	// The last known good fix must not survive a reset.
	if view := svc.CurrentView(); view.Status != StatusAwaitingFix {
		t.Fatalf("expected awaiting-fix after reset, got %s", view.Status)
	}
}

func TestElapsedLabel(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{latest: []telemetry.Reading{reading("14.1", "121.2", "90", now.Add(-2*time.Minute))}}
	svc := newTestService(t, feed, &fakeResolver{})
	svc.now = func() time.Time { return now }

	svc.PollOnce(context.Background())
	svc.RefreshElapsedLabel()

	if view := svc.CurrentView(); view.LastUpdate != "2 minutes ago" {
		t.Fatalf("unexpected elapsed label: %q", view.LastUpdate)
	}
}

func TestTimeAgoWording(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{1 * time.Second, "1 second ago"},
		{45 * time.Second, "45 seconds ago"},
		{1 * time.Minute, "1 minute ago"},
		{59 * time.Minute, "59 minutes ago"},
		{1 * time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{48 * time.Hour, "2 days ago"},
	}
	for _, tc := range cases {
		if got := timeAgo(tc.d); got != tc.want {
			t.Errorf("timeAgo(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
