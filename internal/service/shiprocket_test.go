package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfast/internal/apperr"
)

const trackingBody = `{
	"tracking_data": {
		"shipment_track": [{"current_status": "In Transit", "courier_name": "Delhivery"}],
		"shipment_track_activities": [
			{"date": "2024-03-01 14:30:00", "activity": "Shipment picked up", "location": "Mumbai Hub"}
		]
	}
}`

func newCourierServer(t *testing.T, authCalls *int, trackStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/external/auth/login":
			*authCalls++
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds["password"] != "good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"token": "tok-1"}`)
		default:
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(trackStatus)
			if trackStatus == http.StatusOK {
				fmt.Fprint(w, trackingBody)
			}
		}
	}))
}

func TestShiprocketTokenReuse(t *testing.T) {
	authCalls := 0
	srv := newCourierServer(t, &authCalls, http.StatusOK)
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	ctx := context.Background()

	_, err := c.TrackShipment(ctx, "AWB1")
	require.NoError(t, err)
	_, err = c.TrackShipment(ctx, "AWB2")
	require.NoError(t, err)

	assert.Equal(t, 1, authCalls, "two tracking calls within the validity window must authenticate once")
}

func TestShiprocketTrackNormalization(t *testing.T) {
	authCalls := 0
	srv := newCourierServer(t, &authCalls, http.StatusOK)
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	result, err := c.TrackShipment(context.Background(), "AWB999")
	require.NoError(t, err)

	assert.Equal(t, "AWB999", result.AWB)
	assert.Equal(t, "In Transit", result.Status)
	assert.Equal(t, "Delhivery", result.CourierName)
	assert.Equal(t, "Mumbai Hub", result.ScanLocation)
	assert.Equal(t, "Shipment picked up", result.Remark)
	require.NotNil(t, result.ScanTime)
}

func TestShiprocketAuthRejected(t *testing.T) {
	authCalls := 0
	srv := newCourierServer(t, &authCalls, http.StatusOK)
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "wrong")
	_, err := c.TrackShipment(context.Background(), "AWB1")

	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestShiprocketTrackNotFound(t *testing.T) {
	authCalls := 0
	srv := newCourierServer(t, &authCalls, http.StatusNotFound)
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	_, err := c.TrackShipment(context.Background(), "NOPE")

	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NOPE", notFound.ID)
}

func TestShiprocketTrackRateLimited(t *testing.T) {
	authCalls := 0
	srv := newCourierServer(t, &authCalls, http.StatusTooManyRequests)
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	_, err := c.TrackShipment(context.Background(), "AWB1")

	var rateErr *apperr.RateLimitError
	require.ErrorAs(t, err, &rateErr)
}

// A 401 on a tracking call invalidates the cached token so the next call
// re-authenticates.
func TestShiprocketSessionInvalidatedOn401(t *testing.T) {
	authCalls := 0
	reject := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/external/auth/login" {
			authCalls++
			fmt.Fprint(w, `{"token": "tok-1"}`)
			return
		}
		if reject {
			reject = false
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, trackingBody)
	}))
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	ctx := context.Background()

	_, err := c.TrackShipment(ctx, "AWB1")
	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr, "first call hits the stale-session 401")

	_, err = c.TrackShipment(ctx, "AWB1")
	require.NoError(t, err)
	assert.Equal(t, 2, authCalls, "second call must have re-authenticated")
}

func TestShiprocketGetAllOrdersWrappedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/external/auth/login" {
			fmt.Fprint(w, `{"token": "tok-1"}`)
			return
		}
		fmt.Fprint(w, `{
			"data": [
				{"channel_order_id": "1001", "customer_name": "Asha", "status": "In Transit",
				 "total": 499.5, "shipments": [{"awb": "SR123", "courier": "Delhivery"}]}
			],
			"meta": {"pagination": {"total_pages": 3, "current_page": 2}}
		}`)
	}))
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	result, err := c.GetAllOrders(context.Background(), 2, 50)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.CurrentPage)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1001", result.Items[0].OrderID)
	assert.Equal(t, "SR123", result.Items[0].AWB)
	assert.Equal(t, "Delhivery", result.Items[0].CourierName)
	assert.Equal(t, 499.5, result.Items[0].Total)
}

func TestShiprocketGetAllOrdersBareArrayShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/external/auth/login" {
			fmt.Fprint(w, `{"token": "tok-1"}`)
			return
		}
		fmt.Fprint(w, `[{"channel_order_id": "2002", "status": "Delivered", "total": 120}]`)
	}))
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	result, err := c.GetAllOrders(context.Background(), 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalPages)
	assert.Equal(t, 1, result.CurrentPage)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "2002", result.Items[0].OrderID)
	assert.Equal(t, 120.0, result.Items[0].Total)
}

func TestShiprocketGetAllOrdersUnknownShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/external/auth/login" {
			fmt.Fprint(w, `{"token": "tok-1"}`)
			return
		}
		fmt.Fprint(w, `{"orders_v3": {"entries": []}}`)
	}))
	defer srv.Close()

	c := NewShiprocketClient(srv.URL, "ops@example.com", "good")
	_, err := c.GetAllOrders(context.Background(), 1, 50)

	var protoErr *apperr.ProtocolError
	require.ErrorAs(t, err, &protoErr, "unknown envelope must be a ProtocolError, not a best-effort guess")
}
