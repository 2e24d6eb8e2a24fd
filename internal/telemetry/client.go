package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/watchover/internal/httpx"
)

// Client reads a channel-scoped telemetry feed with a public read key.
type Client struct {
	baseURL   string
	channelID string
	readKey   string
	httpCfg   httpx.ClientConfig
	circuit   *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL, channelID, readKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		channelID: channelID,
		readKey:   readKey,
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("telemetry-feed"),
	}
}

// FetchLatest returns the single most recent reading on the channel.
func (c *Client) FetchLatest(ctx context.Context) (Reading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", c.readKey)

		u := fmt.Sprintf("%s/channels/%s/feeds/last.json?%s", c.baseURL, c.channelID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return Reading{}, fmt.Errorf("fetch latest reading: %w", err)
	}
	defer resp.Body.Close()

	var reading Reading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return Reading{}, fmt.Errorf("decode latest reading: %w", err)
	}
	return reading, nil
}

// FetchHistory returns up to results readings, oldest first, as served by
// the feed.
func (c *Client) FetchHistory(ctx context.Context, results int) ([]Reading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", c.readKey)
		values.Set("results", strconv.Itoa(results))

		u := fmt.Sprintf("%s/channels/%s/feeds.json?%s", c.baseURL, c.channelID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("fetch reading history: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Feeds []Reading `json:"feeds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reading history: %w", err)
	}
	return payload.Feeds, nil
}

// VerifyCredentials compares the given device id and password verbatim
// against the feed's own credential fields. The feed is public and
// read-only; this is a UI gate, not a credential system.
func (c *Client) VerifyCredentials(ctx context.Context, deviceID, password string) (bool, error) {
	reading, err := c.FetchLatest(ctx)
	if err != nil {
		return false, err
	}
	return reading.DeviceID == deviceID && reading.Password == password, nil
}
