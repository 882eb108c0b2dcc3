package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
)

var testCreds = integration.Credentials{ChannelID: "page-1", AccessToken: "tok-123"}

// createTestGraphAdapter creates an adapter pointing at the given test server
func createTestGraphAdapter(t *testing.T, serverURL string) *GraphAdapter {
	t.Helper()
	adapter, err := NewGraphAdapter(&GraphConfig{
		APIBaseURL:     serverURL + "/v15.0/",
		TimeoutSeconds: 5,
		MaxPages:       5,
	}, zap.NewNop())
	require.NoError(t, err)
	return adapter
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestGraphConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *GraphConfig
		wantErr error
	}{
		{name: "defaults", config: &GraphConfig{}},
		{name: "custom base url", config: &GraphConfig{APIBaseURL: "http://localhost:9999/v15.0"}},
		{name: "relative base url", config: &GraphConfig{APIBaseURL: "/v15.0/"}, wantErr: ErrGraphConfigInvalidBaseURL},
		{name: "bad scheme", config: &GraphConfig{APIBaseURL: "ftp://graph/"}, wantErr: ErrGraphConfigInvalidBaseURL},
		{name: "negative rate", config: &GraphConfig{RequestsPerSecond: -1}, wantErr: ErrGraphConfigInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte('/'), tt.config.APIBaseURL[len(tt.config.APIBaseURL)-1])
			assert.Equal(t, defaultGraphTimeoutSeconds, tt.config.TimeoutSeconds)
			assert.Equal(t, defaultGraphMaxPages, tt.config.MaxPages)
			assert.Equal(t, defaultGraphBurst, tt.config.Burst)
		})
	}
}

func TestGraphConfig_Endpoint(t *testing.T) {
	cfg := NewGraphConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://graph.facebook.com/v15.0/123/commerce_orders", cfg.endpoint("123", "commerce_orders"))
}

// ---------------------------------------------------------------------------
// ListOrders Tests
// ---------------------------------------------------------------------------

func TestGraphAdapter_ListOrders_QueryParameters(t *testing.T) {
	tests := []struct {
		name       string
		opts       integration.ListOrdersOptions
		wantState  string
		wantFields string
	}{
		{
			name:       "defaults",
			wantState:  "CREATED,IN_PROGRESS,COMPLETED",
			wantFields: "id,order_status,items,buyer_details,shipping_address",
		},
		{
			name:       "sync states and extra fields",
			opts:       integration.ListOrdersOptions{States: integration.SyncListStates, Fields: []string{"ship_by_date", "id"}},
			wantState:  "CREATED,IN_PROGRESS",
			wantFields: "buyer_details,id,items,order_status,ship_by_date,shipping_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got url.Values
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v15.0/page-1/commerce_orders", r.URL.Path)
				got = r.URL.Query()
				writeJSON(t, w, map[string]any{"data": []any{}})
			}))
			defer server.Close()

			adapter := createTestGraphAdapter(t, server.URL)
			orders, err := adapter.ListOrders(context.Background(), testCreds, tt.opts)
			require.NoError(t, err)
			assert.Empty(t, orders)

			assert.Equal(t, "tok-123", got.Get("access_token"))
			assert.Equal(t, tt.wantState, got.Get("state"))
			assert.Equal(t, tt.wantFields, got.Get("fields"))
		})
	}
}

func TestGraphAdapter_ListOrders_ResolvesAllPages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v15.0/page-1/commerce_orders":
			writeJSON(t, w, map[string]any{
				"data": []any{
					map[string]any{
						"id":           "o-1",
						"order_status": map[string]any{"state": "CREATED"},
						"items": map[string]any{
							"data":   []any{map[string]any{"id": "i-1", "retailer_id": "sku-a", "quantity": 3}},
							"paging": map[string]any{"next": server.URL + "/items/o-1/2"},
						},
						"buyer_details":    map[string]any{"name": "Ada", "email": "ada@example.com"},
						"shipping_address": map[string]any{"street1": "1 Main St", "city": "Paris"},
					},
				},
				"paging": map[string]any{"next": server.URL + "/orders/2"},
			})
		case "/items/o-1/2":
			writeJSON(t, w, map[string]any{
				"data": []any{map[string]any{"id": "i-2", "retailer_id": "sku-b", "quantity": 2}},
			})
		case "/orders/2":
			writeJSON(t, w, map[string]any{
				"data": []any{
					map[string]any{
						"id":           "o-2",
						"order_status": map[string]any{"state": "IN_PROGRESS"},
						"items": map[string]any{
							"data": []any{map[string]any{"id": "i-3", "retailer_id": "sku-c", "quantity": 1}},
						},
					},
				},
				"paging": map[string]any{},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	orders, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "o-1", orders[0].ID)
	assert.Equal(t, integration.RemoteStateCreated, orders[0].State())
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, "sku-a", orders[0].Items[0].RetailerID)
	assert.Equal(t, 3, orders[0].Items[0].Quantity)
	assert.Equal(t, "sku-b", orders[0].Items[1].RetailerID)
	assert.Equal(t, "Ada", orders[0].BuyerDetails.Name)
	assert.Equal(t, "Paris", orders[0].ShippingAddress.City)

	assert.Equal(t, "o-2", orders[1].ID)
	assert.Equal(t, integration.RemoteStateInProgress, orders[1].State())
	require.Len(t, orders[1].Items, 1)
}

func TestGraphAdapter_ListOrders_PaginationLimit(t *testing.T) {
	var calls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		writeJSON(t, w, map[string]any{
			"data": []any{map[string]any{
				"id":           fmt.Sprintf("o-%d", n),
				"order_status": map[string]any{"state": "CREATED"},
				"items":        map[string]any{"data": []any{}},
			}},
			"paging": map[string]any{"next": server.URL + "/again"},
		})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	orders, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
	assert.ErrorIs(t, err, integration.ErrPaginationLimitExceeded)
	assert.Nil(t, orders)
	assert.Equal(t, int32(5), calls.Load())
}

func TestGraphAdapter_ListOrders_ItemPaginationLimit(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/items" {
			writeJSON(t, w, map[string]any{
				"data":   []any{map[string]any{"retailer_id": "sku", "quantity": 1}},
				"paging": map[string]any{"next": server.URL + "/items"},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"data": []any{map[string]any{
				"id":           "o-1",
				"order_status": map[string]any{"state": "CREATED"},
				"items": map[string]any{
					"data":   []any{},
					"paging": map[string]any{"next": server.URL + "/items"},
				},
			}},
		})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	_, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
	assert.ErrorIs(t, err, integration.ErrPaginationLimitExceeded)
}

func TestGraphAdapter_ListOrders_MissingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"paging": map[string]any{}})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	orders, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestGraphAdapter_ListOrders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: integration.ErrRemoteUnavailable,
		},
		{
			name: "graph error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"message":"Invalid OAuth access token.","code":190}}`)
			},
			wantErr: integration.ErrRemoteUnavailable,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"data":`)
			},
			wantErr: integration.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			adapter := createTestGraphAdapter(t, server.URL)
			_, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "tok-123")
		})
	}
}

func TestGraphAdapter_ListOrders_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	adapter := createTestGraphAdapter(t, serverURL)
	_, err := adapter.ListOrders(context.Background(), testCreds, integration.ListOrdersOptions{})
	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
	assert.NotContains(t, err.Error(), "tok-123")
}

func TestGraphAdapter_ListOrders_InvalidCredentials(t *testing.T) {
	adapter := createTestGraphAdapter(t, "http://127.0.0.1:1")
	_, err := adapter.ListOrders(context.Background(), integration.Credentials{ChannelID: "page"}, integration.ListOrdersOptions{})
	assert.ErrorIs(t, err, integration.ErrMissingAccessToken)
}

// ---------------------------------------------------------------------------
// AcknowledgeOrders Tests
// ---------------------------------------------------------------------------

func ackEntries(n int) []integration.AckEntry {
	entries := make([]integration.AckEntry, n)
	for i := range entries {
		entries[i] = integration.AckEntry{ID: fmt.Sprintf("r-%d", i), MerchantOrderReference: fmt.Sprintf("m-%d", i)}
	}
	return entries
}

func TestGraphAdapter_AcknowledgeOrders(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v15.0/page-1/acknowledge_orders", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-123", r.PostForm.Get("access_token"))
		keys = append(keys, r.PostForm.Get("idempotency_key"))

		var entries []integration.AckEntry
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("orders")), &entries))

		outcomes := make([]map[string]any, 0, len(entries))
		for i, e := range entries {
			if i == 0 {
				outcomes = append(outcomes, map[string]any{"id": e.ID})
				continue
			}
			outcomes = append(outcomes, map[string]any{"id": e.ID, "state": "IN_PROGRESS"})
		}
		writeJSON(t, w, map[string]any{"orders": outcomes})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)

	outcomes, err := adapter.AcknowledgeOrders(context.Background(), testCreds, ackEntries(100))
	require.NoError(t, err)
	require.Len(t, outcomes, 100)
	assert.False(t, outcomes[0].Accepted())
	assert.True(t, outcomes[1].Accepted())

	_, err = adapter.AcknowledgeOrders(context.Background(), testCreds, ackEntries(1))
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1], "every call gets a fresh idempotency key")
}

func TestGraphAdapter_AcknowledgeOrders_BatchLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	_, err := adapter.AcknowledgeOrders(context.Background(), testCreds, ackEntries(101))
	assert.ErrorIs(t, err, integration.ErrBatchLimitExceeded)
	assert.Equal(t, int32(0), calls.Load())
}

// ---------------------------------------------------------------------------
// Order action Tests
// ---------------------------------------------------------------------------

func TestGraphAdapter_CreateShipment(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v15.0/ext-9/shipments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, map[string]any{"success": true})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	resp, err := adapter.CreateShipment(context.Background(), testCreds, integration.ShipmentRequest{
		ExternalOrderID: "ext-9",
		Items:           []integration.ActionItem{{RetailerID: "sku-a", Quantity: 3}},
		Carrier:         "USPS",
		TrackingNumber:  "1Z999",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	assert.Equal(t, "tok-123", body["access_token"])
	assert.NotEmpty(t, body["idempotency_key"])
	assert.Equal(t, map[string]any{"carrier": "USPS", "tracking_number": "1Z999"}, body["tracking_info"])
	assert.Equal(t, []any{map[string]any{"retailer_id": "sku-a", "quantity": float64(3)}}, body["items"])
}

func TestGraphAdapter_ActionSuccessFlag(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"success true", `{"success":true}`, true},
		{"success false", `{"success":false}`, false},
		{"success missing", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.response)
			}))
			defer server.Close()

			adapter := createTestGraphAdapter(t, server.URL)
			resp, err := adapter.RefundOrder(context.Background(), testCreds, integration.RefundRequest{
				ExternalOrderID: "ext-1",
				ReasonCode:      "BUYERS_REMORSE",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Success)
			assert.JSONEq(t, tt.response, string(resp.Raw))
		})
	}
}

func TestGraphAdapter_CancelOrder(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v15.0/ext-2/cancellations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, map[string]any{"success": true})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	resp, err := adapter.CancelOrder(context.Background(), testCreds, integration.CancellationRequest{
		ExternalOrderID:   "ext-2",
		ReasonCode:        "CUSTOMER_REQUESTED",
		ReasonDescription: "Cancellation requested by the buyer.",
		RestockItems:      true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	assert.Equal(t, true, body["restock_items"])
	assert.Equal(t, map[string]any{
		"reason_code":        "CUSTOMER_REQUESTED",
		"reason_description": "Cancellation requested by the buyer.",
	}, body["cancel_reason"])
	_, hasItems := body["items"]
	assert.False(t, hasItems, "items are only sent when a subset is given")
}

func TestGraphAdapter_RefundOrder_WithItems(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v15.0/ext-3/refunds", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, map[string]any{"success": true})
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	_, err := adapter.RefundOrder(context.Background(), testCreds, integration.RefundRequest{
		ExternalOrderID: "ext-3",
		ReasonCode:      "WRONG_ITEM",
		Items:           []integration.ActionItem{{RetailerID: "sku-a", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, "WRONG_ITEM", body["reason_code"])
	assert.Len(t, body["items"], 1)
}

func TestGraphAdapter_ActionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := createTestGraphAdapter(t, server.URL)
	resp, err := adapter.CreateShipment(context.Background(), testCreds, integration.ShipmentRequest{
		ExternalOrderID: "ext-1", Carrier: "UPS", TrackingNumber: "1",
	})
	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
	assert.Nil(t, resp)
}
