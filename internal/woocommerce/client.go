package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Order is the slice of a WooCommerce order the import cares about.
type Order struct {
	ID         int64 `json:"id"`
	CustomerID int64 `json:"customer_id"`
}

// Customer is one shop customer, the source record for a Participant.
type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Client is a minimal WooCommerce REST API v3 consumer, authenticated with
// consumer key/secret query parameters.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	http           *http.Client
}

func NewClient(baseURL, consumerKey, consumerSecret string) *Client {
	return &Client{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		http:           &http.Client{Timeout: 30 * time.Second},
	}
}

// Orders fetches one page of orders for a product. An empty page signals the
// end of pagination.
func (c *Client) Orders(ctx context.Context, productID string, page, perPage int) ([]Order, error) {
	params := url.Values{
		"product":  {productID},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}

	var orders []Order
	if err := c.get(ctx, "orders", params, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Customer fetches a single customer record.
func (c *Client) Customer(ctx context.Context, id int64) (*Customer, error) {
	var customer Customer
	if err := c.get(ctx, fmt.Sprintf("customers/%d", id), nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("consumer_key", c.consumerKey)
	params.Set("consumer_secret", c.consumerSecret)

	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("woocommerce request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("woocommerce returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
