package geocode

import "strings"

// reverseResult is the subset of a Nominatim reverse-geocoding response the
// resolver cares about.
type reverseResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Street        string `json:"street"`
		Residential   string `json:"residential"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		State         string `json:"state"`
	} `json:"address"`
}

// extractor pulls one candidate locality string out of a reverse result.
type extractor func(reverseResult) string

// localityExtractors is the fallback chain, most specific first: street
// name, then neighbourhood-level areas, then settlement, then a fragment of
// the formatted address. Evaluated in order; first non-empty wins.
var localityExtractors = []extractor{
	func(r reverseResult) string { return r.Address.Road },
	func(r reverseResult) string { return r.Address.Street },
	func(r reverseResult) string { return r.Address.Residential },
	func(r reverseResult) string { return r.Address.Neighbourhood },
	func(r reverseResult) string { return r.Address.Suburb },
	func(r reverseResult) string {
		switch {
		case r.Address.City != "":
			return r.Address.City
		case r.Address.Town != "":
			return r.Address.Town
		default:
			return r.Address.Village
		}
	},
	func(r reverseResult) string { return r.Address.State },
	func(r reverseResult) string { return displayNameFragment(r.DisplayName) },
	func(r reverseResult) string { return r.Name },
}

// localityFrom returns the most specific locality in the result, if any.
func localityFrom(r reverseResult) (string, bool) {
	for _, extract := range localityExtractors {
		if v := strings.TrimSpace(extract(r)); v != "" {
			return v, true
		}
	}
	return "", false
}

// displayNameFragment keeps the two leading components of a formatted
// address ("12, Main Street, Quezon City, ..." -> "12, Main Street").
func displayNameFragment(displayName string) string {
	if displayName == "" {
		return ""
	}
	parts := strings.SplitN(displayName, ",", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}
