package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

// OrderStore is the slice of the storage contract the engine needs.
type OrderStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	GetByAWB(ctx context.Context, awb string) (*model.Order, error)
	Create(ctx context.Context, in model.InsertOrder) (*model.Order, error)
	Update(ctx context.Context, orderID string, upd model.OrderUpdate) (*model.Order, error)
	ListWithAWB(ctx context.Context) ([]model.Order, error)
}

// ClientStore lists tenants and their credentials.
type ClientStore interface {
	List(ctx context.Context) ([]model.Client, error)
	GetByClientID(ctx context.Context, clientID string) (*model.Client, error)
}

// CourierClient is the courier API surface the engine consumes.
type CourierClient interface {
	TrackShipment(ctx context.Context, awb string) (*TrackingResult, error)
	GetAllOrders(ctx context.Context, page, pageSize int) (*PagedResult, error)
	RefreshToken()
}

// CommerceClient is the commerce API surface the engine consumes.
type CommerceClient interface {
	GetOrders(ctx context.Context, since time.Time) ([]RawShopifyOrder, error)
}

const (
	// syncLookback bounds how far back each commerce sync reaches.
	syncLookback = 30 * 24 * time.Hour
	// refreshConcurrency caps in-flight tracking requests. Shiprocket
	// rate-limits aggressively; keep this in low single digits.
	refreshConcurrency = 3
	courierPageSize    = 50
)

// Source values reported by Track.
const (
	TrackSourceLive   = "api"
	TrackSourceCached = "database"
)

// ReconcileEngine ties the commerce client, courier client, status mapper and
// storage contract together.
type ReconcileEngine struct {
	orders  OrderStore
	clients ClientStore

	commerceFor func(*model.Client) CommerceClient
	courierFor  func(*model.Client) CourierClient

	// defaultCourier serves tenants without their own courier account and
	// the public tracking lookup.
	defaultCourier CourierClient

	mu             sync.Mutex
	tenantCouriers map[string]CourierClient
}

func NewReconcileEngine(orders OrderStore, clients ClientStore, defaultCourier CourierClient,
	commerceFor func(*model.Client) CommerceClient, courierFor func(*model.Client) CourierClient) *ReconcileEngine {
	return &ReconcileEngine{
		orders:         orders,
		clients:        clients,
		commerceFor:    commerceFor,
		courierFor:     courierFor,
		defaultCourier: defaultCourier,
		tenantCouriers: make(map[string]CourierClient),
	}
}

// courierForTenant returns the tenant's own courier client when it has
// credentials, the shared default otherwise. Instances are cached per tenant
// so the session token survives between passes; never shared across tenants
// with different credentials.
func (e *ReconcileEngine) courierForTenant(client *model.Client) CourierClient {
	if !client.HasCourierCredentials() {
		return e.defaultCourier
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.tenantCouriers[client.ClientID]; ok {
		return c
	}
	c := e.courierFor(client)
	e.tenantCouriers[client.ClientID] = c
	return c
}

// SyncSummary is the outcome of one all-tenant sync pass.
type SyncSummary struct {
	Tenants int      `json:"tenants"`
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// SyncAll runs the tenant sync loop. A failing tenant is logged and skipped;
// the pass is never all-or-nothing across tenants.
func (e *ReconcileEngine) SyncAll(ctx context.Context) (*SyncSummary, error) {
	clients, err := e.clients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	summary := &SyncSummary{Tenants: len(clients)}
	for i := range clients {
		client := &clients[i]
		synced, err := e.SyncTenant(ctx, client)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", client.ClientID, err))
			slog.Error("tenant sync failed", "client_id", client.ClientID, "error", err)
			continue
		}
		summary.Synced += synced
	}

	return summary, nil
}

// SyncOne syncs a single tenant by its identifier.
func (e *ReconcileEngine) SyncOne(ctx context.Context, clientID string) (*SyncSummary, error) {
	client, err := e.clients.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	summary := &SyncSummary{Tenants: 1}
	synced, err := e.SyncTenant(ctx, client)
	if err != nil {
		summary.Failed = 1
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", clientID, err))
		return summary, nil
	}
	summary.Synced = synced
	return summary, nil
}

// SyncTenant pulls the tenant's commerce orders inside the lookback window
// and upserts them, then merges the tenant's own courier order listing when
// it carries courier credentials. Returns how many orders were upserted.
func (e *ReconcileEngine) SyncTenant(ctx context.Context, client *model.Client) (int, error) {
	commerce := e.commerceFor(client)
	since := time.Now().Add(-syncLookback)

	raws, err := commerce.GetOrders(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("fetch commerce orders: %w", err)
	}

	synced := 0
	for _, raw := range raws {
		in := TransformOrder(raw, client)
		if err := e.upsert(ctx, in, false); err != nil {
			// Storage failures are not retryable within the pass.
			slog.Error("order upsert failed", "order_id", in.OrderID, "client_id", client.ClientID, "error", err)
			continue
		}
		synced++
	}

	if client.HasCourierCredentials() {
		n, err := e.syncCourierOrders(ctx, client)
		if err != nil {
			slog.Warn("courier order sync failed", "client_id", client.ClientID, "error", err)
		}
		synced += n
	}

	return synced, nil
}

// syncCourierOrders pages through the tenant's Shiprocket order listing and
// merges it. Courier-sourced orders may arrive before a stable order_id
// match exists, so the AWB is used as a fallback key here.
func (e *ReconcileEngine) syncCourierOrders(ctx context.Context, client *model.Client) (int, error) {
	courier := e.courierForTenant(client)

	synced := 0
	for page := 1; ; page++ {
		result, err := courier.GetAllOrders(ctx, page, courierPageSize)
		if err != nil {
			return synced, err
		}

		for _, co := range result.Items {
			in := courierOrderToInsert(co, client)
			if err := e.upsert(ctx, in, true); err != nil {
				slog.Error("courier order upsert failed", "order_id", in.OrderID, "client_id", client.ClientID, "error", err)
				continue
			}
			synced++
		}

		if page >= result.TotalPages {
			break
		}
	}

	return synced, nil
}

func courierOrderToInsert(co CourierOrder, client *model.Client) model.InsertOrder {
	in := model.InsertOrder{
		OrderID:           co.OrderID,
		ClientID:          client.ClientID,
		FulfillmentStatus: model.MapCourierStatus(co.Status),
		ShippingDetails: model.ShippingDetails{
			Name:   co.CustomerName,
			Amount: co.Total,
		},
	}
	if co.AWB != "" {
		awb := co.AWB
		in.AWB = &awb
	}
	if co.CourierName != "" {
		name := co.CourierName
		in.Courier = &name
	}
	return in
}

// upsert inserts the order when it is new and merges it otherwise. The merge
// never clears a stored AWB or courier assignment with an empty incoming
// value, and the natural key is order_id; the AWB is only consulted as a
// fallback key for courier-sourced data.
func (e *ReconcileEngine) upsert(ctx context.Context, in model.InsertOrder, courierSourced bool) error {
	existing, err := e.orders.GetByOrderID(ctx, in.OrderID)
	if err != nil {
		var notFound *apperr.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		existing = nil
	}

	if existing == nil && courierSourced && in.AWB != nil && *in.AWB != "" {
		existing, err = e.orders.GetByAWB(ctx, *in.AWB)
		if err != nil {
			var notFound *apperr.NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
			existing = nil
		}
	}

	if existing == nil {
		_, err := e.orders.Create(ctx, in)
		return err
	}

	upd := model.OrderUpdate{
		ShippingDetails: &in.ShippingDetails,
	}
	if in.FulfillmentStatus != existing.FulfillmentStatus {
		status := in.FulfillmentStatus
		upd.FulfillmentStatus = &status
	}
	if in.ProductDetails.Quantity > 0 || in.ProductDetails.Name != "" {
		upd.ProductDetails = &in.ProductDetails
	}
	if in.AWB != nil && *in.AWB != "" {
		upd.AWB = in.AWB
	}
	if in.Courier != nil && *in.Courier != "" {
		upd.Courier = in.Courier
	}
	if courierSourced {
		// A courier listing has no shipping address; keep the stored one.
		merged := existing.ShippingDetails
		if in.ShippingDetails.Name != "" {
			merged.Name = in.ShippingDetails.Name
		}
		if in.ShippingDetails.Amount > 0 {
			merged.Amount = in.ShippingDetails.Amount
		}
		upd.ShippingDetails = &merged
		upd.ProductDetails = nil
	}

	_, err = e.orders.Update(ctx, existing.OrderID, upd)
	return err
}

// RefreshSummary is the outcome of one delivery status refresh pass.
type RefreshSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// RefreshDeliveryStatus polls tracking for every order holding an AWB and
// overwrites the delivery status and last-scan fields. Failures are logged
// and skipped; in-flight requests are capped to refreshConcurrency.
func (e *ReconcileEngine) RefreshDeliveryStatus(ctx context.Context) (*RefreshSummary, error) {
	orders, err := e.orders.ListWithAWB(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders with awb: %w", err)
	}

	summary := &RefreshSummary{Checked: len(orders)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)

	for i := range orders {
		order := orders[i]
		g.Go(func() error {
			courier, err := e.courierForOrder(gctx, &order)
			if err != nil {
				slog.Warn("no courier client for order", "order_id", order.OrderID, "error", err)
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			result, err := trackWithRetry(gctx, courier, *order.AWB)
			if err != nil {
				slog.Warn("tracking failed", "order_id", order.OrderID, "awb", *order.AWB, "error", err)
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			status := model.MapCourierStatus(result.Status)
			upd := model.OrderUpdate{
				DeliveryStatus: &status,
			}
			if result.ScanLocation != "" {
				upd.LastScanLocation = &result.ScanLocation
			}
			if result.ScanTime != nil {
				upd.LastTimestamp = result.ScanTime
			}
			if result.Remark != "" {
				upd.LastRemark = &result.Remark
			}

			if _, err := e.orders.Update(gctx, order.OrderID, upd); err != nil {
				slog.Error("delivery status update failed", "order_id", order.OrderID, "error", err)
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			summary.Updated++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (e *ReconcileEngine) courierForOrder(ctx context.Context, order *model.Order) (CourierClient, error) {
	client, err := e.clients.GetByClientID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}
	return e.courierForTenant(client), nil
}

// trackWithRetry retries exactly once after an auth failure. The courier
// client drops its cached token on 401, so the retry re-authenticates; a
// second auth failure surfaces to the caller as "reconnect your account".
func trackWithRetry(ctx context.Context, courier CourierClient, awb string) (*TrackingResult, error) {
	result, err := courier.TrackShipment(ctx, awb)
	if err == nil {
		return result, nil
	}

	var authErr *apperr.AuthError
	if !errors.As(err, &authErr) {
		return nil, err
	}

	courier.RefreshToken()
	return courier.TrackShipment(ctx, awb)
}

// TrackLookup is the public tracking answer: the normalized result plus the
// source that produced it, so the presentation layer can set expectations.
type TrackLookup struct {
	Source string          `json:"source"` // "api" or "database"
	Result *TrackingResult `json:"result"`
}

// Track serves the public track-my-shipment lookup: live courier data first,
// last stored state when the live call fails. NotFound in both places is
// surfaced as NotFound.
func (e *ReconcileEngine) Track(ctx context.Context, awb string) (*TrackLookup, error) {
	result, err := trackWithRetry(ctx, e.defaultCourier, awb)
	if err == nil {
		return &TrackLookup{Source: TrackSourceLive, Result: result}, nil
	}
	slog.Warn("live tracking failed, falling back to stored state", "awb", awb, "error", err)

	order, storeErr := e.orders.GetByAWB(ctx, awb)
	if storeErr != nil {
		var notFound *apperr.NotFoundError
		if errors.As(err, &notFound) || errors.As(storeErr, &notFound) {
			return nil, &apperr.NotFoundError{Resource: "shipment", ID: awb}
		}
		return nil, err
	}

	cached := &TrackingResult{AWB: awb}
	if order.DeliveryStatus != nil {
		cached.Status = string(*order.DeliveryStatus)
	} else {
		cached.Status = string(order.FulfillmentStatus)
	}
	if order.Courier != nil {
		cached.CourierName = *order.Courier
	}
	if order.LastScanLocation != nil {
		cached.ScanLocation = *order.LastScanLocation
	}
	cached.ScanTime = order.LastTimestamp
	if order.LastRemark != nil {
		cached.Remark = *order.LastRemark
	}

	return &TrackLookup{Source: TrackSourceCached, Result: cached}, nil
}
