package shopapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/merchant"
	"github.com/ariefcatur/go-shopora-console/internal/metrics"
	"github.com/ariefcatur/go-shopora-console/internal/money"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c, srv
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:5000")
	assert.Error(t, err)
}

func TestListProducts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[
			{"id":"p1","storeId":"s1","name":"Tee","status":"active","variants":[{"id":"v1","productId":"p1","price":"10.00","inventory":3}]},
			{"id":"p2","storeId":"s1","name":"Cap","status":"draft","variants":[{"id":"v2","productId":"p2","price":null}]}
		]`))
	})

	ps, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.NotNil(t, ps[0].Variants[0].Price)
	assert.Equal(t, int64(1000), ps[0].Variants[0].Price.Cents())
	assert.Nil(t, ps[1].Variants[0].Price)
}

func TestCreateOrder_SendsContract(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"o1","status":"pending","total":"25.50"}}`))
	})

	req := orders.CreateOrderRequest{
		StoreID:  "s1",
		Customer: orders.CustomerInfo{Email: "a@b.co", FirstName: "A", LastName: "B"},
		Items: []orders.Item{
			{VariantID: "va", Quantity: 1, Price: money.MustParse("10.00")},
			{VariantID: "vb", Quantity: 1, Price: money.MustParse("15.50")},
		},
		Total:          money.MustParse("25.50"),
		IdempotencyKey: "key-1",
	}
	o, err := c.WithToken("tok").CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, orders.StatusPending, o.Status)

	assert.Equal(t, "s1", got["storeId"])
	assert.Equal(t, 25.5, got["total"])
	items := got["items"].([]any)
	assert.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "va", first["variantId"])
	assert.Equal(t, float64(1), first["quantity"])
	assert.Equal(t, 10.0, first["price"])
	customer := got["customerInfo"].(map[string]any)
	assert.Equal(t, "a@b.co", customer["email"])
}

func TestUpdateOrderStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/orders/o1/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "shipped", body["status"])
		_, _ = w.Write([]byte(`{"id":"o1","status":"shipped"}`))
	})

	o, err := c.UpdateOrderStatus(context.Background(), "o1", orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, o.Status)
}

func TestListOrders_QueryAndEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dupont", r.URL.Query().Get("search"))
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"data":[{"id":"o1","status":"pending"}],"meta":{"total":1,"page":1,"limit":20}}`))
	})

	page, err := c.ListOrders(context.Background(), orders.ListQuery{Search: "dupont", Status: orders.StatusPending})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Meta.Total)
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"variant out of range"}`))
	})

	_, err := c.GetOrder(context.Background(), "o1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "variant out of range", apiErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(err))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}, WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := c.ListProducts(context.Background())
		assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	}
	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), hits.Load(), "open breaker short-circuits")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, WithBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := c.GetProduct(context.Background(), "missing")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.NotFound())
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.ListProducts(context.Background())
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestBackendMetricsUseRouteTemplates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "status": "confirmed"})
	})

	before := testutil.CollectAndCount(metrics.BackendRequests)
	for i := 0; i < 50; i++ {
		_, err := c.UpdateOrderStatus(context.Background(), fmt.Sprintf("order-%d", i), orders.StatusConfirmed)
		require.NoError(t, err)
	}
	after := testutil.CollectAndCount(metrics.BackendRequests)
	assert.LessOrEqual(t, after-before, 1, "one series per route, not per order id")

	n := testutil.CollectAndCount(metrics.BackendRequests)
	_, err := c.GetOrder(context.Background(), "another-id")
	require.NoError(t, err)
	_, err = c.GetOrder(context.Background(), "yet-another")
	require.NoError(t, err)
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.BackendRequests)-n, 1)
}

func TestAPIError_Rejected(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusUnprocessableEntity: true,
		http.StatusNotFound:            true,
		http.StatusConflict:            false,
		http.StatusRequestTimeout:      false,
		http.StatusTooManyRequests:     false,
		http.StatusBadGateway:          false,
	}
	for code, want := range cases {
		assert.Equal(t, want, (&APIError{StatusCode: code}).Rejected(), "status %d", code)
	}
}

func TestFindPlacedOrder(t *testing.T) {
	since := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "client@test.com", r.URL.Query().Get("search"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":"old","storeId":"s1","total":"25.50","createdAt":"2026-03-01T08:00:00Z",
			 "customerInfo":{"email":"client@test.com"},"items":[{"variantId":"A","quantity":1,"price":"10.00"},{"variantId":"B","quantity":1,"price":"15.50"}]},
			{"id":"other","storeId":"s1","total":"10.00","createdAt":"2026-03-01T10:00:05Z",
			 "customerInfo":{"email":"client@test.com"},"items":[{"variantId":"A","quantity":1,"price":"10.00"}]},
			{"id":"hit","storeId":"s1","total":"25.50","createdAt":"2026-03-01T10:00:02Z",
			 "customerInfo":{"email":"client@test.com"},"items":[{"variantId":"B","quantity":1,"price":"15.50"},{"variantId":"A","quantity":1,"price":"10.00"}]}
		],"meta":{"total":3,"page":1,"limit":50}}`))
	})

	req := orders.CreateOrderRequest{
		StoreID:  "s1",
		Customer: orders.CustomerInfo{Email: "client@test.com"},
		Items: []orders.Item{
			{VariantID: "A", Quantity: 1, Price: money.MustParse("10.00")},
			{VariantID: "B", Quantity: 1, Price: money.MustParse("15.50")},
		},
		Total: money.MustParse("25.50"),
	}
	o, ok, err := c.FindPlacedOrder(context.Background(), req, since)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hit", o.ID)

	req.Total = money.MustParse("99.00")
	_, ok, err = c.FindPlacedOrder(context.Background(), req, since)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductCRUD(t *testing.T) {
	var seen []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "Tee", in["name"])
			assert.Equal(t, 19.9, in["variants"].([]any)[0].(map[string]any)["price"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p9","name":"Tee","status":"draft"}`))
		case http.MethodPatch:
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, map[string]any{"status": "active"}, in, "only set fields travel")
			_, _ = w.Write([]byte(`{"id":"p9","name":"Tee","status":"active"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	p, err := c.CreateProduct(ctx, catalog.ProductInput{Name: "Tee", Status: catalog.StatusDraft,
		Variants: []catalog.VariantInput{{Price: money.MustParse("19.90"), Inventory: 2}}})
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)

	active := catalog.StatusActive
	p, err = c.UpdateProduct(ctx, "p9", catalog.ProductPatch{Status: &active})
	require.NoError(t, err)
	assert.True(t, p.IsActive())

	require.NoError(t, c.DeleteProduct(ctx, "p9"))
	assert.Equal(t, []string{"POST /api/products", "PATCH /api/products/p9", "DELETE /api/products/p9"}, seen)
}

func TestMerchantEndpoints(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/markets":
			_, _ = w.Write([]byte(`{"data":[{"id":"m1","name":"France","status":"active","currency":"EUR"}]}`))
		case "PATCH /api/tax-rules/t1":
			_, _ = w.Write([]byte(`{"id":"t1","name":"TVA","country":"FR","rate":"5.5"}`))
		case "GET /api/payouts":
			_, _ = w.Write([]byte(`[{"id":"po1","amount":"2450.00","status":"in_transit","date":"2026-03-24T00:00:00Z"}]`))
		case "GET /api/payouts/summary":
			_, _ = w.Write([]byte(`{"pending":"2450.00","paid":"5090.00","count":3}`))
		case "POST /api/auth/register":
			var reg Registration
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
			assert.Equal(t, "Atelier", reg.StoreName)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"token":"t","user":{"id":"u1","email":"new@test.com","role":"SELLER","storeId":"s9"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	ms, err := c.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "EUR", ms[0].Currency)

	rate := decimal.RequireFromString("5.5")
	tr, err := c.UpdateTaxRule(ctx, "t1", merchant.TaxRulePatch{Rate: &rate})
	require.NoError(t, err)
	assert.True(t, rate.Equal(tr.Rate))

	ps, err := c.ListPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, merchant.PayoutInTransit, ps[0].Status)

	sum, err := c.PayoutSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5090.00", sum.Paid.String())

	res, err := c.Register(ctx, Registration{Email: "new@test.com", Password: "pw", StoreName: "Atelier"})
	require.NoError(t, err)
	assert.Equal(t, "SELLER", res.User.Role)

	err = c.DeleteMarket(ctx, "nope")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}
