package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&http.Client{Timeout: 5 * time.Second}, srv.URL, "12345", "READKEY")
}

func TestFetchLatest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/12345/feeds/last.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "READKEY" {
			t.Errorf("missing api_key parameter")
		}
		w.Write([]byte(`{
			"created_at": "2024-05-01T10:30:00Z",
			"entry_id": 77,
			"field1": "device-1",
			"field2": "secret",
			"field3": "14.6565",
			"field4": "121.0315",
			"field5": "82"
		}`))
	})

	reading, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.Latitude != "14.6565" || reading.Longitude != "121.0315" {
		t.Fatalf("unexpected coordinates: %s, %s", reading.Latitude, reading.Longitude)
	}
	if reading.Battery != "82" {
		t.Fatalf("unexpected battery: %s", reading.Battery)
	}
	if !reading.HasCoordinates() {
		t.Fatal("expected reading to have coordinates")
	}
	if reading.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be parsed")
	}
}

func TestFetchHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/12345/feeds.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("results") != "10" {
			t.Errorf("unexpected results parameter: %s", r.URL.Query().Get("results"))
		}
		w.Write([]byte(`{"feeds": [
			{"entry_id": 1, "created_at": "2024-05-01T10:00:00Z", "field3": "1.0", "field4": "2.0", "field5": "90"},
			{"entry_id": 2, "created_at": "2024-05-01T10:15:00Z", "field3": "1.1", "field4": "2.1", "field5": "89"}
		]}`))
	})

	feeds, err := c.FetchHistory(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(feeds))
	}
	if feeds[0].EntryID != 1 || feeds[1].EntryID != 2 {
		t.Fatalf("unexpected entry ids: %d, %d", feeds[0].EntryID, feeds[1].EntryID)
	}
}

func TestVerifyCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"field1": "device-1", "field2": "secret", "field3": "0", "field4": "0"}`))
	})

	ok, err := c.VerifyCredentials(context.Background(), "device-1", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected matching credentials to verify")
	}

	ok, err = c.VerifyCredentials(context.Background(), "device-1", "wrong")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestFetchLatestMissingFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"created_at": "2024-05-01T10:30:00Z", "entry_id": 5}`))
	})

	reading, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.HasCoordinates() {
		t.Fatal("expected reading without coordinate fields")
	}
}
