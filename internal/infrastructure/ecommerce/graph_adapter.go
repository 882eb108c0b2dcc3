package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
)

// maxGraphResponseSize limits the response body size to prevent memory exhaustion
const maxGraphResponseSize = 10 * 1024 * 1024

// GraphAdapter implements integration.CommercePlatform against the commerce Graph API
type GraphAdapter struct {
	config     *GraphConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	// newIdempotencyKey returns a fresh key for every mutating call
	newIdempotencyKey func() string
}

// Compile-time interface check
var _ integration.CommercePlatform = (*GraphAdapter)(nil)

// NewGraphAdapter creates a new Graph adapter with the given configuration
func NewGraphAdapter(config *GraphConfig, logger *zap.Logger) (*GraphAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &GraphAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout:   time.Duration(config.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:           rate.NewLimiter(limit, config.Burst),
		logger:            logger.Named("graph"),
		newIdempotencyKey: uuid.NewString,
	}, nil
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

// ListOrders fetches orders of the channel in the requested states and resolves
// every order and item page. A response without data yields an empty slice.
func (a *GraphAdapter) ListOrders(ctx context.Context, creds integration.Credentials, opts integration.ListOrdersOptions) ([]integration.RemoteOrder, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("state", joinStates(opts.States))
	params.Set("fields", joinFields(opts.Fields))

	var first graphOrderPage
	if err := a.getJSON(ctx, a.config.endpoint(creds.ChannelID, "commerce_orders")+"?"+params.Encode(), &first); err != nil {
		return nil, err
	}

	if len(first.Data) == 0 {
		a.logger.Info("No orders returned by commerce platform",
			zap.String("channel_id", creds.ChannelID),
			zap.String("state", params.Get("state")),
		)
		return []integration.RemoteOrder{}, nil
	}

	return a.resolveOrderPages(ctx, first)
}

// resolveOrderPages resolves the item pages of every order on the page, then
// follows the order cursor the same way.
func (a *GraphAdapter) resolveOrderPages(ctx context.Context, page graphOrderPage) ([]integration.RemoteOrder, error) {
	var orders []integration.RemoteOrder
	for fetched := 1; ; fetched++ {
		for _, o := range page.Data {
			items, err := a.resolveItemPages(ctx, o.Items)
			if err != nil {
				return nil, fmt.Errorf("graph: resolve items of order %s: %w", o.ID, err)
			}
			orders = append(orders, integration.RemoteOrder{
				ID:              o.ID,
				OrderStatus:     o.OrderStatus,
				Items:           items,
				BuyerDetails:    o.BuyerDetails,
				ShippingAddress: o.ShippingAddress,
			})
		}

		next := nextURL(page.Paging)
		if next == "" {
			return orders, nil
		}
		if fetched >= a.config.MaxPages {
			return nil, fmt.Errorf("%w: orders still paging after %d pages", integration.ErrPaginationLimitExceeded, fetched)
		}

		page = graphOrderPage{}
		if err := a.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
	}
}

// resolveItemPages follows the item cursor and concatenates items in server order
func (a *GraphAdapter) resolveItemPages(ctx context.Context, page graphItemPage) ([]integration.RemoteItem, error) {
	items := append([]integration.RemoteItem(nil), page.Data...)
	next := nextURL(page.Paging)
	for fetched := 1; next != ""; fetched++ {
		if fetched >= a.config.MaxPages {
			return nil, fmt.Errorf("%w: items still paging after %d pages", integration.ErrPaginationLimitExceeded, fetched)
		}
		var p graphItemPage
		if err := a.getJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Data...)
		next = nextURL(p.Paging)
	}
	return items, nil
}

// joinStates renders the state filter, falling back to the default set
func joinStates(states []integration.RemoteOrderState) string {
	if len(states) == 0 {
		states = integration.DefaultListStates
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// joinFields renders the default fields unioned with extra ones.
// Without extras the default order is kept as is.
func joinFields(extra []string) string {
	if len(extra) == 0 {
		return strings.Join(integration.DefaultOrderFields, ",")
	}
	set := make(map[string]struct{}, len(extra)+len(integration.DefaultOrderFields))
	for _, f := range integration.DefaultOrderFields {
		set[f] = struct{}{}
	}
	for _, f := range extra {
		if f = strings.TrimSpace(f); f != "" {
			set[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}

// ---------------------------------------------------------------------------
// Acknowledgment
// ---------------------------------------------------------------------------

// AcknowledgeOrders submits one acknowledgment batch. Batches larger than
// MaxAckBatchSize are rejected before any request is made.
func (a *GraphAdapter) AcknowledgeOrders(ctx context.Context, creds integration.Credentials, entries []integration.AckEntry) ([]integration.AckOutcome, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := integration.ValidateAckBatch(entries); err != nil {
		return nil, err
	}

	ordersJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to marshal orders: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", creds.AccessToken)
	form.Set("idempotency_key", a.newIdempotencyKey())
	form.Set("orders", string(ordersJSON))

	body, err := a.doRequest(ctx, http.MethodPost, a.config.endpoint(creds.ChannelID, "acknowledge_orders"),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	var resp graphAckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return resp.Orders, nil
}

// ---------------------------------------------------------------------------
// Order actions
// ---------------------------------------------------------------------------

// CreateShipment marks the order as shipped on the platform
func (a *GraphAdapter) CreateShipment(ctx context.Context, creds integration.Credentials, req integration.ShipmentRequest) (*integration.ActionResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items := req.Items
	if items == nil {
		items = []integration.ActionItem{}
	}
	return a.postAction(ctx, a.config.endpoint(req.ExternalOrderID, "shipments"), graphShipmentBody{
		AccessToken: creds.AccessToken,
		Items:       items,
		TrackingInfo: graphTrackingInfo{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
		},
		IdempotencyKey: a.newIdempotencyKey(),
	})
}

// CancelOrder cancels the order on the platform
func (a *GraphAdapter) CancelOrder(ctx context.Context, creds integration.Credentials, req integration.CancellationRequest) (*integration.ActionResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return a.postAction(ctx, a.config.endpoint(req.ExternalOrderID, "cancellations"), graphCancellationBody{
		AccessToken:    creds.AccessToken,
		IdempotencyKey: a.newIdempotencyKey(),
		CancelReason: graphCancelReason{
			ReasonCode:        req.ReasonCode,
			ReasonDescription: req.ReasonDescription,
		},
		RestockItems: req.RestockItems,
		Items:        req.Items,
	})
}

// RefundOrder refunds the order on the platform
func (a *GraphAdapter) RefundOrder(ctx context.Context, creds integration.Credentials, req integration.RefundRequest) (*integration.ActionResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return a.postAction(ctx, a.config.endpoint(req.ExternalOrderID, "refunds"), graphRefundBody{
		AccessToken:    creds.AccessToken,
		IdempotencyKey: a.newIdempotencyKey(),
		ReasonCode:     req.ReasonCode,
		Items:          req.Items,
	})
}

func (a *GraphAdapter) postAction(ctx context.Context, endpoint string, payload any) (*integration.ActionResponse, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to marshal request: %w", err)
	}

	body, err := a.doRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes), "application/json")
	if err != nil {
		return nil, err
	}

	var resp graphActionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return &integration.ActionResponse{Success: resp.Success, Raw: body}, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func (a *GraphAdapter) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := a.doRequest(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return nil
}

// doRequest performs one paced HTTP call. Transport failures and HTTP errors
// are reported as integration.ErrRemoteUnavailable; nothing is retried.
func (a *GraphAdapter) doRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, including the access token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGraphResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		var graphErr graphErrorResponse
		if json.Unmarshal(respBody, &graphErr) == nil && graphErr.Error != nil {
			return nil, fmt.Errorf("%w: HTTP %d: %s", integration.ErrRemoteUnavailable, resp.StatusCode, graphErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrRemoteUnavailable, resp.StatusCode)
	}

	return respBody, nil
}
