package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

// Principal is the caller identity the auth middleware resolved: a role plus
// the tenant it is scoped to (empty for cross-tenant roles).
type Principal struct {
	UserID   string
	Role     string
	ClientID string
}

// BatchStore is the slice of the storage contract batch mutations need.
// The batch methods run inside one transaction per call.
type BatchStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	AssignAWBBatch(ctx context.Context, assignments []AWBAssignment) (int, error)
	UpdateOrdersBatch(ctx context.Context, updates []BatchOrderUpdate) (int, error)
}

// BatchService validates and applies bulk mutations with all-or-nothing
// semantics per call.
type BatchService struct {
	store    BatchStore
	validate *validator.Validate
}

func NewBatchService(store BatchStore) *BatchService {
	return &BatchService{
		store:    store,
		validate: validator.New(),
	}
}

// BatchResult summarizes one bulk call. Skipped counts order IDs that were
// not found; a missing order is not fatal for the rest of the batch.
type BatchResult struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// AssignAWB sets the waybill on each listed order and forces In-Process.
// Validation and the tenant check run before any write; the writes commit in
// one transaction.
func (s *BatchService) AssignAWB(ctx context.Context, caller Principal, assignments []AWBAssignment) (*BatchResult, error) {
	if len(assignments) == 0 {
		return nil, &apperr.ValidationError{Message: "empty assignment batch"}
	}
	for i, a := range assignments {
		if err := s.validate.Struct(a); err != nil {
			return nil, &apperr.ValidationError{
				Message: fmt.Sprintf("assignment %d: order_id and awb are required", i),
			}
		}
	}

	orderIDs := make([]string, len(assignments))
	for i, a := range assignments {
		orderIDs[i] = a.OrderID
	}
	if err := s.checkTenantScope(ctx, caller, orderIDs); err != nil {
		return nil, err
	}

	updated, err := s.store.AssignAWBBatch(ctx, assignments)
	if err != nil {
		return nil, err
	}

	return &BatchResult{
		Requested: len(assignments),
		Updated:   updated,
		Skipped:   len(assignments) - updated,
	}, nil
}

// OrderPatch is the JSON-facing partial update of one bulk entry.
type OrderPatch struct {
	FulfillmentStatus *string                `json:"fulfillment_status,omitempty"`
	DeliveryStatus    *string                `json:"delivery_status,omitempty"`
	AWB               *string                `json:"awb,omitempty"`
	Courier           *string                `json:"courier,omitempty"`
	LastRemark        *string                `json:"last_remark,omitempty"`
	ShippingDetails   *model.ShippingDetails `json:"shipping_details,omitempty"`
	ProductDetails    *model.ProductDetails  `json:"product_details,omitempty"`
}

// BulkUpdateEntry pairs one order with its patch.
type BulkUpdateEntry struct {
	OrderID string     `json:"order_id" validate:"required"`
	Data    OrderPatch `json:"data"`
}

func (p OrderPatch) toUpdate() (model.OrderUpdate, error) {
	var upd model.OrderUpdate

	if p.FulfillmentStatus != nil {
		status := model.Status(*p.FulfillmentStatus)
		if !status.IsValid() {
			return upd, fmt.Errorf("invalid fulfillment_status %q", *p.FulfillmentStatus)
		}
		upd.FulfillmentStatus = &status
	}
	if p.DeliveryStatus != nil {
		status := model.Status(*p.DeliveryStatus)
		if !status.IsValid() {
			return upd, fmt.Errorf("invalid delivery_status %q", *p.DeliveryStatus)
		}
		upd.DeliveryStatus = &status
	}
	if p.AWB != nil {
		if *p.AWB == "" {
			return upd, errors.New("awb cannot be cleared")
		}
		upd.AWB = p.AWB
	}
	upd.Courier = p.Courier
	upd.LastRemark = p.LastRemark
	upd.ShippingDetails = p.ShippingDetails
	upd.ProductDetails = p.ProductDetails

	return upd, nil
}

// BulkUpdate applies a partial-field merge per order. The whole batch is
// validated and tenant-checked before any write; a single foreign-tenant
// order rejects the entire call.
func (s *BatchService) BulkUpdate(ctx context.Context, caller Principal, entries []BulkUpdateEntry) (*BatchResult, error) {
	if len(entries) == 0 {
		return nil, &apperr.ValidationError{Message: "empty update batch"}
	}

	updates := make([]BatchOrderUpdate, 0, len(entries))
	orderIDs := make([]string, 0, len(entries))
	for i, entry := range entries {
		if err := s.validate.Struct(entry); err != nil {
			return nil, &apperr.ValidationError{
				Message: fmt.Sprintf("entry %d: order_id is required", i),
			}
		}
		upd, err := entry.Data.toUpdate()
		if err != nil {
			return nil, &apperr.ValidationError{
				Message: fmt.Sprintf("entry %d: %v", i, err),
			}
		}
		updates = append(updates, BatchOrderUpdate{OrderID: entry.OrderID, Update: upd})
		orderIDs = append(orderIDs, entry.OrderID)
	}

	if err := s.checkTenantScope(ctx, caller, orderIDs); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateOrdersBatch(ctx, updates)
	if err != nil {
		return nil, err
	}

	return &BatchResult{
		Requested: len(entries),
		Updated:   updated,
		Skipped:   len(entries) - updated,
	}, nil
}

// checkTenantScope rejects the whole batch when a tenant-scoped caller names
// an order belonging to another tenant. Runs before any write; missing
// orders are left for the storage layer to skip.
func (s *BatchService) checkTenantScope(ctx context.Context, caller Principal, orderIDs []string) error {
	if model.CrossTenant(caller.Role) {
		return nil
	}

	for _, orderID := range orderIDs {
		order, err := s.store.GetByOrderID(ctx, orderID)
		if err != nil {
			var notFound *apperr.NotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return err
		}
		if order.ClientID != caller.ClientID {
			return &apperr.PermissionError{
				Message: fmt.Sprintf("order %s belongs to another client", orderID),
			}
		}
	}

	return nil
}
