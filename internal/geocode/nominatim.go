package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is a geocoding miss. Callers treat it as retryable user input,
// not a system failure.
var ErrNotFound = errors.New("place not found")

// Place is one geocoder result.
type Place struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// Client talks to a Nominatim-compatible geocoding service.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Forward resolves a free-text place description to coordinates.
func (c *Client) Forward(ctx context.Context, query string) (*Place, error) {
	endpoint := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.baseURL, url.QueryEscape(query))

	var results []searchResult
	if err := c.get(ctx, endpoint, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}

	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("invalid coordinates in geocoder response for %q", query)
	}

	return &Place{Latitude: lat, Longitude: lon, DisplayName: results[0].DisplayName}, nil
}

// Reverse resolves coordinates to a human-readable address. A miss returns
// an empty string, not an error: the address is decoration.
func (c *Client) Reverse(ctx context.Context, latitude, longitude float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f", c.baseURL, latitude, longitude)

	var result searchResult
	if err := c.get(ctx, endpoint, &result); err != nil {
		return "", err
	}
	return result.DisplayName, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
