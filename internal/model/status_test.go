package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapShopifyStatus(t *testing.T) {
	tests := []struct {
		name        string
		fulfillment string
		financial   string
		want        Status
	}{
		{"fulfilled wins", "fulfilled", "paid", StatusDelivered},
		{"partial fulfillment", "partial", "paid", StatusInProcess},
		{"paid and unfulfilled", "", "paid", StatusPending},
		{"financial pending", "", "pending", StatusPending},
		{"refunded", "", "refunded", StatusRTO},
		{"partially refunded", "", "partially_refunded", StatusRTO},
		{"case insensitive", "FULFILLED", "PAID", StatusDelivered},
		{"both empty", "", "", StatusPending},
		{"unknown vocabulary", "weird", "stranger", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapShopifyStatus(tt.fulfillment, tt.financial))
		})
	}
}

func TestMapCourierStatus(t *testing.T) {
	tests := []struct {
		status string
		want   Status
	}{
		{"Delivered", StatusDelivered},
		{"RTO Delivered", StatusRTO},
		{"RTO Initiated", StatusRTO},
		{"Return Pending", StatusRTO},
		{"Out for Delivery", StatusInProcess},
		{"In Transit", StatusInProcess},
		{"Pickup Scheduled", StatusInProcess},
		{"Shipped", StatusInProcess},
		{"Pickup Error", StatusNDR},
		{"Undelivered", StatusNDR},
		{"Cancelled", StatusLost},
		{"Lost", StatusLost},
		{"PENDING", StatusPending},
		{"AWB Assigned", StatusPending},
		{"delivered", StatusDelivered},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCourierStatus(tt.status))
		})
	}
}

// Every mapping result must be a valid lifecycle member, including for
// unrecognized and empty inputs.
func TestMapCourierStatusTotality(t *testing.T) {
	inputs := []string{
		"", "  ", "Delivered", "RTO Delivered", "Out for Delivery", "In Transit",
		"Pickup Error", "Undelivered", "Cancelled", "Lost", "complete gibberish",
		"???", "Status 42",
	}

	for _, in := range inputs {
		got := MapCourierStatus(in)
		assert.True(t, got.IsValid(), "MapCourierStatus(%q) = %q is not a valid status", in, got)
	}

	// Documented default for an unrecognized courier status.
	assert.Equal(t, StatusInProcess, MapCourierStatus("complete gibberish"))
}
