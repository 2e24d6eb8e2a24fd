package tracker

import "time"

// Status classifies what the current-location view represents.
type Status string

const (
	// StatusOK: a fresh fix with resolved place name.
	StatusOK Status = "ok"
	// StatusLastKnown: the device reported the (0,0) no-fix sentinel and
	// the view shows the last known good position instead.
	StatusLastKnown Status = "last_known"
	// StatusAwaitingFix: sentinel reading with no prior good fix this
	// session.
	StatusAwaitingFix Status = "awaiting_fix"
	// StatusNoData: the feed has no usable reading yet.
	StatusNoData Status = "no_data"
	// StatusError: the last poll failed; any previously shown fix stands.
	StatusError Status = "error"
)

// LocationFix is one device reading with a resolved place name. This is
// also the shape persisted in the current-location cache namespace.
type LocationFix struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	PlaceName  string    `json:"locationName"`
	Battery    string    `json:"battery"`
	ObservedAt time.Time `json:"observedAt"`
}

// LocationView is the synchronous current-location accessor result.
type LocationView struct {
	Status     Status       `json:"status"`
	Fix        *LocationFix `json:"fix,omitempty"`
	Message    string       `json:"message,omitempty"`
	LastUpdate string       `json:"lastUpdate,omitempty"`
}

// ActivityEntry is one row of the activity history, display-ready.
type ActivityEntry struct {
	EntryID    int64     `json:"entryId"`
	ObservedAt time.Time `json:"timestamp"`
	Battery    string    `json:"battery"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	PlaceName  string    `json:"locationName"`
	Time       string    `json:"time"`
	Date       string    `json:"date"`
}

// HistoryView is an ordered snapshot of recent activity, newest first.
type HistoryView struct {
	Entries []ActivityEntry `json:"entries"`
}
