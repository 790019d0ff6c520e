package model

import "strings"

// Status is the aggregator's own order lifecycle, distinct from the
// vocabularies of the commerce and courier systems.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusInProcess Status = "In-Process"
	StatusDelivered Status = "Delivered"
	StatusRTO       Status = "RTO"
	StatusNDR       Status = "NDR"
	StatusLost      Status = "Lost"
)

// IsValid checks if the status is one of the defined lifecycle stages.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProcess, StatusDelivered, StatusRTO, StatusNDR, StatusLost:
		return true
	default:
		return false
	}
}

// MapShopifyStatus translates the Shopify (fulfillment_status, financial_status)
// pair into the internal lifecycle. Total: any unrecognized combination maps
// to Pending.
func MapShopifyStatus(fulfillment, financial string) Status {
	switch strings.ToLower(strings.TrimSpace(fulfillment)) {
	case "fulfilled":
		return StatusDelivered
	case "partial":
		return StatusInProcess
	}

	switch strings.ToLower(strings.TrimSpace(financial)) {
	case "refunded", "partially_refunded":
		return StatusRTO
	case "paid", "pending", "authorized":
		return StatusPending
	}

	return StatusPending
}

// MapCourierStatus translates a free-text Shiprocket shipment status into the
// internal lifecycle. Matching is case-insensitive and substring-based, in
// precedence order: RTO before Delivered so "RTO Delivered" maps to RTO, and
// Undelivered before Delivered. Total: an unrecognized status maps to
// In-Process, on the grounds that a shipment producing scans at all is moving.
func MapCourierStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return StatusInProcess
	}

	switch {
	case strings.Contains(v, "rto"), strings.Contains(v, "return"):
		return StatusRTO
	case strings.Contains(v, "cancel"), strings.Contains(v, "lost"), strings.Contains(v, "damaged"):
		return StatusLost
	case strings.Contains(v, "pickup error"), strings.Contains(v, "pickup exception"),
		strings.Contains(v, "undelivered"), strings.Contains(v, "delivery delayed"):
		return StatusNDR
	case strings.Contains(v, "delivered"):
		return StatusDelivered
	case strings.Contains(v, "out for delivery"), strings.Contains(v, "in transit"),
		strings.Contains(v, "pickup"), strings.Contains(v, "picked up"),
		strings.Contains(v, "shipped"), strings.Contains(v, "dispatch"):
		return StatusInProcess
	case strings.Contains(v, "pending"), strings.Contains(v, "new"),
		strings.Contains(v, "awb assigned"), strings.Contains(v, "label generated"):
		return StatusPending
	}

	return StatusInProcess
}
