package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

// OrderService is the storage contract over the orders table. Reconciliation
// and batch mutation go through it; nothing else touches order rows.
type OrderService struct {
	db *sql.DB
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{db: db}
}

const orderColumns = `id, order_id, client_id, fulfillment_status, delivery_status, awb, courier,
	shipping_details, product_details, last_scan_location, last_timestamp, last_remark,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o                model.Order
		deliveryStatus   sql.NullString
		awb              sql.NullString
		courier          sql.NullString
		shippingJSON     []byte
		productJSON      []byte
		lastScanLocation sql.NullString
		lastTimestamp    sql.NullTime
		lastRemark       sql.NullString
	)

	err := row.Scan(&o.ID, &o.OrderID, &o.ClientID, &o.FulfillmentStatus, &deliveryStatus,
		&awb, &courier, &shippingJSON, &productJSON, &lastScanLocation, &lastTimestamp,
		&lastRemark, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if deliveryStatus.Valid {
		s := model.Status(deliveryStatus.String)
		o.DeliveryStatus = &s
	}
	if awb.Valid {
		o.AWB = &awb.String
	}
	if courier.Valid {
		o.Courier = &courier.String
	}
	if lastScanLocation.Valid {
		o.LastScanLocation = &lastScanLocation.String
	}
	if lastTimestamp.Valid {
		o.LastTimestamp = &lastTimestamp.Time
	}
	if lastRemark.Valid {
		o.LastRemark = &lastRemark.String
	}

	if err := json.Unmarshal(shippingJSON, &o.ShippingDetails); err != nil {
		return nil, fmt.Errorf("unmarshal shipping details: %w", err)
	}
	if err := json.Unmarshal(productJSON, &o.ProductDetails); err != nil {
		return nil, fmt.Errorf("unmarshal product details: %w", err)
	}

	return &o, nil
}

func (s *OrderService) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperr.NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, &apperr.StorageError{Op: "get order", Err: err}
	}
	return o, nil
}

func (s *OrderService) GetByAWB(ctx context.Context, awb string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE awb = $1`, awb)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperr.NotFoundError{Resource: "order", ID: awb}
		}
		return nil, &apperr.StorageError{Op: "get order by awb", Err: err}
	}
	return o, nil
}

func (s *OrderService) Create(ctx context.Context, in model.InsertOrder) (*model.Order, error) {
	shippingJSON, err := json.Marshal(in.ShippingDetails)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping details: %w", err)
	}
	productJSON, err := json.Marshal(in.ProductDetails)
	if err != nil {
		return nil, fmt.Errorf("marshal product details: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, order_id, client_id, fulfillment_status, awb, courier, shipping_details, product_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderColumns,
		uuid.NewString(), in.OrderID, in.ClientID, in.FulfillmentStatus, in.AWB, in.Courier, shippingJSON, productJSON)

	o, err := scanOrder(row)
	if err != nil {
		return nil, &apperr.StorageError{Op: "create order", Err: err}
	}
	return o, nil
}

// Update applies the non-nil fields of upd to one order. Returns
// NotFoundError when the order does not exist.
func (s *OrderService) Update(ctx context.Context, orderID string, upd model.OrderUpdate) (*model.Order, error) {
	set, args, err := buildUpdate(upd)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return s.GetByOrderID(ctx, orderID)
	}

	args = append(args, orderID)
	query := fmt.Sprintf(`UPDATE orders SET %s, updated_at = NOW() WHERE order_id = $%d RETURNING `+orderColumns,
		strings.Join(set, ", "), len(args))

	row := s.db.QueryRowContext(ctx, query, args...)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperr.NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, &apperr.StorageError{Op: "update order", Err: err}
	}
	return o, nil
}

func buildUpdate(upd model.OrderUpdate) ([]string, []any, error) {
	var (
		set  []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.FulfillmentStatus != nil {
		add("fulfillment_status", *upd.FulfillmentStatus)
	}
	if upd.DeliveryStatus != nil {
		add("delivery_status", *upd.DeliveryStatus)
	}
	if upd.AWB != nil {
		add("awb", *upd.AWB)
	}
	if upd.Courier != nil {
		add("courier", *upd.Courier)
	}
	if upd.ShippingDetails != nil {
		b, err := json.Marshal(upd.ShippingDetails)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal shipping details: %w", err)
		}
		add("shipping_details", b)
	}
	if upd.ProductDetails != nil {
		b, err := json.Marshal(upd.ProductDetails)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal product details: %w", err)
		}
		add("product_details", b)
	}
	if upd.LastScanLocation != nil {
		add("last_scan_location", *upd.LastScanLocation)
	}
	if upd.LastTimestamp != nil {
		add("last_timestamp", *upd.LastTimestamp)
	}
	if upd.LastRemark != nil {
		add("last_remark", *upd.LastRemark)
	}

	return set, args, nil
}

// List returns all orders, tenant-filtered when clientID is non-empty.
func (s *OrderService) List(ctx context.Context, clientID string) ([]model.Order, error) {
	return s.list(ctx, clientID, "")
}

// ListPending returns orders still in the Pending stage.
func (s *OrderService) ListPending(ctx context.Context, clientID string) ([]model.Order, error) {
	return s.list(ctx, clientID, string(model.StatusPending))
}

func (s *OrderService) list(ctx context.Context, clientID, status string) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var (
		where []string
		args  []any
	)
	if clientID != "" {
		args = append(args, clientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("fulfillment_status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return s.queryOrders(ctx, query, args...)
}

// ListWithAWB returns every order that has been handed to a courier, for the
// delivery status refresh pass.
func (s *OrderService) ListWithAWB(ctx context.Context) ([]model.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE awb IS NOT NULL AND awb <> '' ORDER BY created_at ASC`)
}

func (s *OrderService) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &apperr.StorageError{Op: "query orders", Err: err}
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &apperr.StorageError{Op: "scan order", Err: err}
		}
		orders = append(orders, *o)
	}

	if err = rows.Err(); err != nil {
		return nil, &apperr.StorageError{Op: "iterate orders", Err: err}
	}

	return orders, nil
}

// AWBAssignment pairs one order with its waybill.
type AWBAssignment struct {
	OrderID string `json:"order_id" validate:"required"`
	AWB     string `json:"awb" validate:"required"`
	Courier string `json:"courier,omitempty"`
}

// BatchOrderUpdate is one entry of a bulk update call.
type BatchOrderUpdate struct {
	OrderID string
	Update  model.OrderUpdate
}

// AssignAWBBatch sets the waybill and forces In-Process on each listed order
// inside one transaction. Order IDs that do not exist are skipped; a storage
// failure rolls the whole batch back. Returns the number of orders updated.
func (s *OrderService) AssignAWBBatch(ctx context.Context, assignments []AWBAssignment) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &apperr.StorageError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	updated := 0
	for _, a := range assignments {
		var res sql.Result
		if a.Courier != "" {
			res, err = tx.ExecContext(ctx,
				`UPDATE orders SET awb = $1, courier = $2, fulfillment_status = $3, updated_at = NOW() WHERE order_id = $4`,
				a.AWB, a.Courier, model.StatusInProcess, a.OrderID)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE orders SET awb = $1, fulfillment_status = $2, updated_at = NOW() WHERE order_id = $3`,
				a.AWB, model.StatusInProcess, a.OrderID)
		}
		if err != nil {
			return 0, &apperr.StorageError{Op: "assign awb", Err: err}
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &apperr.StorageError{Op: "commit tx", Err: err}
	}
	return updated, nil
}

// UpdateOrdersBatch applies each partial update inside one transaction, with
// the same skip-missing and all-or-nothing semantics as AssignAWBBatch.
func (s *OrderService) UpdateOrdersBatch(ctx context.Context, updates []BatchOrderUpdate) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &apperr.StorageError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	updated := 0
	for _, u := range updates {
		set, args, err := buildUpdate(u.Update)
		if err != nil {
			return 0, &apperr.ValidationError{Message: err.Error()}
		}
		if len(set) == 0 {
			continue
		}

		args = append(args, u.OrderID)
		query := fmt.Sprintf(`UPDATE orders SET %s, updated_at = NOW() WHERE order_id = $%d`,
			strings.Join(set, ", "), len(args))

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, &apperr.StorageError{Op: "bulk update", Err: err}
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &apperr.StorageError{Op: "commit tx", Err: err}
	}
	return updated, nil
}
