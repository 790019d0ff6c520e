package model

import (
	"time"
)

// Dimensions is the physical size of a shipment in centimeters.
type Dimensions struct {
	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
}

// ShippingDetails is the recipient/payment block of an order. Opaque to the
// reconciliation engine except for PaymentMode and Amount.
type ShippingDetails struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Pincode     string  `json:"pincode"`
	Country     string  `json:"country"`
	PaymentMode string  `json:"payment_mode"` // "COD" or "Prepaid"
	Amount      float64 `json:"amount"`
}

// ProductDetails is the item block of an order.
type ProductDetails struct {
	Category   string     `json:"category"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	Dimensions Dimensions `json:"dimensions"`
	Weight     float64    `json:"weight"` // kg
}

// Order is the central entity. OrderID is the cross-system natural key:
// globally unique, originating from the commerce or courier system.
type Order struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"order_id"`
	ClientID          string          `json:"client_id"`
	FulfillmentStatus Status          `json:"fulfillment_status"`
	DeliveryStatus    *Status         `json:"delivery_status,omitempty"`
	AWB               *string         `json:"awb,omitempty"`
	Courier           *string         `json:"courier,omitempty"`
	ShippingDetails   ShippingDetails `json:"shipping_details"`
	ProductDetails    ProductDetails  `json:"product_details"`
	LastScanLocation  *string         `json:"last_scan_location,omitempty"`
	LastTimestamp     *time.Time      `json:"last_timestamp,omitempty"`
	LastRemark        *string         `json:"last_remark,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InsertOrder is the canonical pre-insert representation produced by the
// commerce client transform.
type InsertOrder struct {
	OrderID           string
	ClientID          string
	FulfillmentStatus Status
	AWB               *string
	Courier           *string
	ShippingDetails   ShippingDetails
	ProductDetails    ProductDetails
}

// OrderUpdate is a partial update: nil fields are left untouched. A stored
// AWB or courier assignment is sticky and is never cleared by an empty
// incoming value.
type OrderUpdate struct {
	FulfillmentStatus *Status
	DeliveryStatus    *Status
	AWB               *string
	Courier           *string
	ShippingDetails   *ShippingDetails
	ProductDetails    *ProductDetails
	LastScanLocation  *string
	LastTimestamp     *time.Time
	LastRemark        *string
}
