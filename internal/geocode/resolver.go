// Package geocode resolves coordinate pairs to human-readable place names,
// consulting a persistent cache before the reverse-geocoding service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/watchover/internal/cache"
	"github.com/i474232898/watchover/internal/httpx"
)

// Point is one coordinate pair queued for resolution.
type Point struct {
	Lat float64
	Lng float64
}

// Key renders coordinates rounded to 6 decimal places (~0.11 m) as the
// stable cache key for a point.
func Key(lat, lng float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// coordinateLabel is the terminal fallback shown when no place name can be
// resolved.
func coordinateLabel(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// Options tunes a Resolver. Zero values fall back to service defaults.
type Options struct {
	BaseURL      string
	UserAgent    string
	GoogleAPIKey string
	CacheTTL     time.Duration
	GroupSize    int
	GroupDelay   time.Duration
}

// Resolver converts coordinates to place names. Lookups never fail from the
// caller's point of view: every error path degrades to the coordinate label.
type Resolver struct {
	store      *cache.Store
	baseURL    string
	userAgent  string
	googleKey  string
	cacheTTL   time.Duration
	groupSize  int
	groupDelay time.Duration
	httpCfg    httpx.ClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewResolver(client *http.Client, store *cache.Store, opts Options) *Resolver {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org/reverse"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "WatchOver/1.0"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 7 * 24 * time.Hour
	}
	if opts.GroupSize <= 0 {
		opts.GroupSize = 3
	}
	if opts.GroupDelay <= 0 {
		opts.GroupDelay = 1200 * time.Millisecond
	}

	r := &Resolver{
		store:      store,
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
		googleKey:  opts.GoogleAPIKey,
		cacheTTL:   opts.CacheTTL,
		groupSize:  opts.GroupSize,
		groupDelay: opts.GroupDelay,
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("reverse-geocoder"),
	}
	r.configureGoogle()
	return r
}

// ResolveOne returns the place name for a coordinate pair: persistent cache
// first, then the reverse-geocoding service, then the optional Google
// fallback, and finally the bare coordinate label.
func (r *Resolver) ResolveOne(ctx context.Context, lat, lng float64) string {
	key := Key(lat, lng)

	var cached string
	if r.store.Get(ctx, cache.NamespaceGeocode, key, &cached) {
		return cached
	}

	if name, ok := r.reverse(ctx, lat, lng); ok {
		r.store.Put(ctx, cache.NamespaceGeocode, key, name, r.cacheTTL)
		return name
	}

	if name, ok := r.googleReverse(lat, lng); ok {
		r.store.Put(ctx, cache.NamespaceGeocode, key, name, r.cacheTTL)
		return name
	}

	return coordinateLabel(lat, lng)
}

// ResolveBatch resolves many points without exceeding the service's informal
// rate tolerance: fixed-size groups resolved concurrently, a fixed delay
// between groups, none after the last. The result is order-preserving and a
// failed lookup degrades to that point's coordinate label without aborting
// the batch.
func (r *Resolver) ResolveBatch(ctx context.Context, points []Point) []string {
	results := make([]string, len(points))

	// Per-call dedup shared across groups so a repeated coordinate costs
	// one lookup.
	var mu sync.Mutex
	seen := make(map[string]string)

	for start := 0; start < len(points); start += r.groupSize {
		end := start + r.groupSize
		if end > len(points) {
			end = len(points)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i, p := i, points[i]
			wg.Add(1)
			go func() {
				defer wg.Done()

				key := Key(p.Lat, p.Lng)
				mu.Lock()
				if name, ok := seen[key]; ok {
					mu.Unlock()
					results[i] = name
					return
				}
				mu.Unlock()

				name := r.ResolveOne(ctx, p.Lat, p.Lng)

				mu.Lock()
				seen[key] = name
				mu.Unlock()
				results[i] = name
			}()
		}
		wg.Wait()

		if end < len(points) {
			select {
			case <-ctx.Done():
				// Fill what is left with coordinate labels and stop.
				for i := end; i < len(points); i++ {
					results[i] = coordinateLabel(points[i].Lat, points[i].Lng)
				}
				return results
			case <-time.After(r.groupDelay):
			}
		}
	}

	return results
}

// reverse performs one reverse-geocoding call and runs the extractor chain
// over the response.
func (r *Resolver) reverse(ctx context.Context, lat, lng float64) (string, bool) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", fmt.Sprintf("%f", lat))
		values.Set("lon", fmt.Sprintf("%f", lng))
		values.Set("format", "jsonv2")
		values.Set("zoom", "18")
		values.Set("addressdetails", "1")

		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", r.baseURL, values.Encode()), nil)
		if err != nil {
			return nil, err
		}
		// Nominatim's usage policy requires an identifying User-Agent.
		req.Header.Set("User-Agent", r.userAgent)
		return req, nil
	}

	resp, err := httpx.Do(ctx, r.httpCfg, r.circuit, buildRequest)
	if err != nil {
		log.Printf("geocode: reverse lookup failed for %s: %v", Key(lat, lng), err)
		return "", false
	}
	defer resp.Body.Close()

	var result reverseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("geocode: malformed reverse response for %s: %v", Key(lat, lng), err)
		return "", false
	}

	return localityFrom(result)
}
