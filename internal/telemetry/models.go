package telemetry

import "time"

// Reading is one raw entry from the device feed. The channel maps device
// fields positionally: field1 device id, field2 password, field3 latitude,
// field4 longitude, field5 battery percent. Coordinates and battery arrive
// as strings and are parsed by the consumer.
type Reading struct {
	CreatedAt time.Time `json:"created_at"`
	EntryID   int64     `json:"entry_id"`
	DeviceID  string    `json:"field1"`
	Password  string    `json:"field2"`
	Latitude  string    `json:"field3"`
	Longitude string    `json:"field4"`
	Battery   string    `json:"field5"`
}

// HasCoordinates reports whether the reading carries both coordinate fields.
// A reading without them is a "no data" state, not an error.
func (r Reading) HasCoordinates() bool {
	return r.Latitude != "" && r.Longitude != ""
}
