package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

// fakeBatchStore applies batches all-or-nothing, mirroring the transactional
// storage implementation.
type fakeBatchStore struct {
	*fakeOrderStore
	failAssign bool
	failUpdate bool
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{fakeOrderStore: newFakeOrderStore()}
}

func (s *fakeBatchStore) AssignAWBBatch(ctx context.Context, assignments []AWBAssignment) (int, error) {
	if s.failAssign {
		return 0, &apperr.StorageError{Op: "assign awb"}
	}
	updated := 0
	for _, a := range assignments {
		if _, ok := s.orders[a.OrderID]; !ok {
			continue
		}
		awb := a.AWB
		status := model.StatusInProcess
		upd := model.OrderUpdate{AWB: &awb, FulfillmentStatus: &status}
		if a.Courier != "" {
			courier := a.Courier
			upd.Courier = &courier
		}
		if _, err := s.Update(ctx, a.OrderID, upd); err != nil {
			return 0, err
		}
		updated++
	}
	return updated, nil
}

func (s *fakeBatchStore) UpdateOrdersBatch(ctx context.Context, updates []BatchOrderUpdate) (int, error) {
	if s.failUpdate {
		return 0, &apperr.StorageError{Op: "bulk update"}
	}
	updated := 0
	for _, u := range updates {
		if _, ok := s.orders[u.OrderID]; !ok {
			continue
		}
		if _, err := s.Update(ctx, u.OrderID, u.Update); err != nil {
			return 0, err
		}
		updated++
	}
	return updated, nil
}

func seedOrder(store *fakeBatchStore, orderID, clientID string) {
	store.orders[orderID] = &model.Order{
		OrderID:           orderID,
		ClientID:          clientID,
		FulfillmentStatus: model.StatusPending,
	}
}

var adminCaller = Principal{UserID: "u1", Role: model.RoleAdmin}

func TestAssignAWBSkipsMissingOrders(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	svc := NewBatchService(store)

	result, err := svc.AssignAWB(context.Background(), adminCaller, []AWBAssignment{
		{OrderID: "1001", AWB: "AWB1"},
		{OrderID: "doesnotexist", AWB: "AWB2"},
	})
	require.NoError(t, err, "a missing order in a batch is not fatal for the rest")

	assert.Equal(t, 2, result.Requested)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	o, err := store.GetByOrderID(context.Background(), "1001")
	require.NoError(t, err)
	require.NotNil(t, o.AWB)
	assert.Equal(t, "AWB1", *o.AWB)
	assert.Equal(t, model.StatusInProcess, o.FulfillmentStatus)
}

func TestAssignAWBValidation(t *testing.T) {
	svc := NewBatchService(newFakeBatchStore())
	ctx := context.Background()

	var validationErr *apperr.ValidationError

	_, err := svc.AssignAWB(ctx, adminCaller, nil)
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.AssignAWB(ctx, adminCaller, []AWBAssignment{{OrderID: "1001"}})
	require.ErrorAs(t, err, &validationErr, "assignment without an awb must be rejected")

	_, err = svc.AssignAWB(ctx, adminCaller, []AWBAssignment{{AWB: "AWB1"}})
	require.ErrorAs(t, err, &validationErr, "assignment without an order_id must be rejected")
}

func TestBulkUpdateTenantIsolation(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	seedOrder(store, "2001", "OTHER002")
	svc := NewBatchService(store)

	caller := Principal{UserID: "u2", Role: model.RoleClientAdmin, ClientID: "ACME001"}
	remark := "checked"
	_, err := svc.BulkUpdate(context.Background(), caller, []BulkUpdateEntry{
		{OrderID: "1001", Data: OrderPatch{LastRemark: &remark}},
		{OrderID: "2001", Data: OrderPatch{LastRemark: &remark}},
	})

	var permErr *apperr.PermissionError
	require.ErrorAs(t, err, &permErr, "one foreign-tenant order rejects the whole batch")

	// No order in the batch was touched, including the caller's own.
	own, _ := store.GetByOrderID(context.Background(), "1001")
	assert.Nil(t, own.LastRemark)
	foreign, _ := store.GetByOrderID(context.Background(), "2001")
	assert.Nil(t, foreign.LastRemark)
}

func TestBulkUpdateCrossTenantRole(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	seedOrder(store, "2001", "OTHER002")
	svc := NewBatchService(store)

	status := string(model.StatusLost)
	result, err := svc.BulkUpdate(context.Background(), adminCaller, []BulkUpdateEntry{
		{OrderID: "1001", Data: OrderPatch{FulfillmentStatus: &status}},
		{OrderID: "2001", Data: OrderPatch{FulfillmentStatus: &status}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
}

func TestBulkUpdateRejectsInvalidStatus(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	svc := NewBatchService(store)

	bogus := "Teleported"
	_, err := svc.BulkUpdate(context.Background(), adminCaller, []BulkUpdateEntry{
		{OrderID: "1001", Data: OrderPatch{FulfillmentStatus: &bogus}},
	})

	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestBulkUpdateRejectsClearingAWB(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	svc := NewBatchService(store)

	empty := ""
	_, err := svc.BulkUpdate(context.Background(), adminCaller, []BulkUpdateEntry{
		{OrderID: "1001", Data: OrderPatch{AWB: &empty}},
	})

	var validationErr *apperr.ValidationError
	require.ErrorAs(t, err, &validationErr, "an assigned AWB is sticky; blanking it is invalid input")
}

func TestBulkUpdateStorageFailureLeavesResultEmpty(t *testing.T) {
	store := newFakeBatchStore()
	seedOrder(store, "1001", "ACME001")
	store.failUpdate = true
	svc := NewBatchService(store)

	remark := "note"
	_, err := svc.BulkUpdate(context.Background(), adminCaller, []BulkUpdateEntry{
		{OrderID: "1001", Data: OrderPatch{LastRemark: &remark}},
	})

	var storageErr *apperr.StorageError
	require.ErrorAs(t, err, &storageErr)

	o, _ := store.GetByOrderID(context.Background(), "1001")
	assert.Nil(t, o.LastRemark, "a failed batch leaves no partial writes behind")
}
