package woocommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersPassesAuthAndPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ck_test", q.Get("consumer_key"))
		assert.Equal(t, "cs_test", q.Get("consumer_secret"))
		assert.Equal(t, "42", q.Get("product"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "100", q.Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"customer_id":7},{"id":2,"customer_id":9}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck_test", "cs_test")
	orders, err := c.Orders(context.Background(), "42", 2, 100)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.EqualValues(t, 7, orders[0].CustomerID)
	assert.EqualValues(t, 9, orders[1].CustomerID)
}

func TestOrdersEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck", "cs")
	orders, err := c.Orders(context.Background(), "42", 5, 100)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/customers/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"email":"alice@example.com","first_name":"Alice","last_name":"Nov"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck", "cs")
	customer, err := c.Customer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", customer.Email)
	assert.Equal(t, "Alice", customer.FirstName)
}

func TestErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad", "bad")
	_, err := c.Orders(context.Background(), "42", 1, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
