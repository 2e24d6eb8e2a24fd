package geocode

import (
	"log"
	"strings"

	"github.com/kelvins/geocoder"
)

// configureGoogle installs the optional Google geocoding fallback. The
// underlying library keys off a package-level API key, so it is set once at
// construction.
func (r *Resolver) configureGoogle() {
	if r.googleKey != "" {
		geocoder.ApiKey = r.googleKey
	}
}

// googleReverse is consulted only when the primary reverse geocoder yields
// nothing usable and an API key is configured.
func (r *Resolver) googleReverse(lat, lng float64) (string, bool) {
	if r.googleKey == "" {
		return "", false
	}

	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  lat,
		Longitude: lng,
	})
	if err != nil || len(addresses) == 0 {
		if err != nil {
			log.Printf("geocode: google fallback failed for %s: %v", Key(lat, lng), err)
		}
		return "", false
	}

	a := addresses[0]
	for _, candidate := range []string{a.Street, a.District, a.City} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v, true
		}
	}
	if v := strings.TrimSpace(a.FormatAddress()); v != "" {
		return v, true
	}
	return "", false
}
