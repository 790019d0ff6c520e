package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bfast/internal/apperr"
)

// Shiprocket tokens are documented as valid for 10 days. The session drops
// the token an hour early so a pass never starts with one about to expire.
const (
	tokenValidity    = 240 * time.Hour
	tokenSafetyGap   = time.Hour
	shiprocketSystem = "shiprocket"
)

// courierSession is the cached auth state of one credential pair. Never
// shared across tenants: each ShiprocketClient owns its own.
type courierSession struct {
	token  string
	expiry time.Time
}

func (s courierSession) valid() bool {
	return s.token != "" && time.Now().Before(s.expiry)
}

// ShiprocketClient talks to the Shiprocket API on behalf of one credential
// pair, caching the session token between calls.
type ShiprocketClient struct {
	baseURL  string
	email    string
	password string
	client   *http.Client

	mu      sync.Mutex
	session courierSession
}

func NewShiprocketClient(baseURL, email, password string) *ShiprocketClient {
	return &ShiprocketClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		email:    email,
		password: password,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// TrackingResult is the normalized outcome of one track-by-AWB call.
type TrackingResult struct {
	AWB          string     `json:"awb"`
	Status       string     `json:"status"`
	CourierName  string     `json:"courier_name,omitempty"`
	ScanLocation string     `json:"scan_location,omitempty"`
	ScanTime     *time.Time `json:"scan_time,omitempty"`
	Remark       string     `json:"remark,omitempty"`
}

// CourierOrder is one entry of the Shiprocket order listing, reduced to the
// fields reconciliation reads.
type CourierOrder struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	AWB          string  `json:"awb"`
	CourierName  string  `json:"courier_name"`
	CustomerName string  `json:"customer_name"`
	Total        float64 `json:"total"`
}

// PagedResult is the normalized envelope of one listing page.
type PagedResult struct {
	Items       []CourierOrder `json:"items"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
}

// Authenticate returns the cached token when it is still valid, otherwise
// logs in and caches the new one.
func (c *ShiprocketClient) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.valid() {
		return c.session.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/external/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &apperr.UpstreamError{System: shiprocketSystem, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &apperr.AuthError{System: shiprocketSystem, Message: "credentials rejected"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &apperr.RateLimitError{System: shiprocketSystem}
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", &apperr.UpstreamError{System: shiprocketSystem, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", &apperr.ProtocolError{System: shiprocketSystem, Message: "login response: " + err.Error()}
	}
	if loginResp.Token == "" {
		return "", &apperr.ProtocolError{System: shiprocketSystem, Message: "login response missing token"}
	}

	c.session = courierSession{
		token:  loginResp.Token,
		expiry: time.Now().Add(tokenValidity - tokenSafetyGap),
	}
	return c.session.token, nil
}

// RefreshToken drops the cached token so the next call re-authenticates.
// Used as a recovery action after an upstream 401.
func (c *ShiprocketClient) RefreshToken() {
	c.mu.Lock()
	c.session = courierSession{}
	c.mu.Unlock()
}

// TrackShipment looks up the latest scan for one AWB. On 401 the cached
// token is invalidated and an AuthError returned; the caller decides whether
// to retry. A 404 is a NotFoundError and must not be treated as transient.
func (c *ShiprocketClient) TrackShipment(ctx context.Context, awb string) (*TrackingResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/external/courier/track/awb/%s", c.baseURL, url.PathEscape(awb))
	body, err := c.get(ctx, endpoint, token, "shipment", awb)
	if err != nil {
		return nil, err
	}

	var trackResp struct {
		TrackingData struct {
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				CourierName   string `json:"courier_name"`
			} `json:"shipment_track"`
			ShipmentTrackActivities []struct {
				Date     string `json:"date"`
				Activity string `json:"activity"`
				Location string `json:"location"`
			} `json:"shipment_track_activities"`
		} `json:"tracking_data"`
	}
	if err := json.Unmarshal(body, &trackResp); err != nil {
		return nil, &apperr.ProtocolError{System: shiprocketSystem, Message: "tracking response: " + err.Error()}
	}
	if len(trackResp.TrackingData.ShipmentTrack) == 0 {
		return nil, &apperr.ProtocolError{System: shiprocketSystem, Message: "tracking response missing shipment_track"}
	}

	track := trackResp.TrackingData.ShipmentTrack[0]
	result := &TrackingResult{
		AWB:         awb,
		Status:      track.CurrentStatus,
		CourierName: track.CourierName,
	}

	// Activities are newest-first; only the latest scan is kept.
	if acts := trackResp.TrackingData.ShipmentTrackActivities; len(acts) > 0 {
		result.ScanLocation = acts[0].Location
		result.Remark = acts[0].Activity
		if ts, ok := parseScanTime(acts[0].Date); ok {
			result.ScanTime = &ts
		}
	}

	return result, nil
}

// GetAllOrders fetches one page of the courier order listing. The upstream
// envelope is not stable: known shapes are tried in order and the result
// normalized; if none match a ProtocolError is returned rather than a guess.
func (c *ShiprocketClient) GetAllOrders(ctx context.Context, page, pageSize int) (*PagedResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/external/orders?page=%d&per_page=%d", c.baseURL, page, pageSize)
	body, err := c.get(ctx, endpoint, token, "orders page", fmt.Sprintf("%d", page))
	if err != nil {
		return nil, err
	}

	for _, parse := range orderEnvelopeParsers {
		if result, ok := parse(body); ok {
			if result.CurrentPage == 0 {
				result.CurrentPage = page
			}
			return result, nil
		}
	}

	return nil, &apperr.ProtocolError{System: shiprocketSystem, Message: "order listing matched no known envelope shape"}
}

// get issues an authenticated GET and maps error statuses to the taxonomy.
func (c *ShiprocketClient) get(ctx context.Context, endpoint, token, resource, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamError{System: shiprocketSystem, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		c.RefreshToken()
		return nil, &apperr.AuthError{System: shiprocketSystem, Message: "session rejected"}
	case http.StatusNotFound:
		return nil, &apperr.NotFoundError{Resource: resource, ID: id}
	case http.StatusTooManyRequests:
		return nil, &apperr.RateLimitError{System: shiprocketSystem}
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, &apperr.UpstreamError{System: shiprocketSystem, StatusCode: resp.StatusCode, Message: string(body)}
	}

	return io.ReadAll(resp.Body)
}

// rawCourierOrder matches one listing entry across both envelope shapes.
type rawCourierOrder struct {
	ChannelOrderID string      `json:"channel_order_id"`
	CustomerName   string      `json:"customer_name"`
	Status         string      `json:"status"`
	Total          json.Number `json:"total"`
	Shipments      []struct {
		AWB     string `json:"awb"`
		Courier string `json:"courier"`
	} `json:"shipments"`
}

func (r rawCourierOrder) normalize() CourierOrder {
	o := CourierOrder{
		OrderID:      r.ChannelOrderID,
		Status:       r.Status,
		CustomerName: r.CustomerName,
	}
	if v, err := r.Total.Float64(); err == nil {
		o.Total = v
	}
	if len(r.Shipments) > 0 {
		o.AWB = r.Shipments[0].AWB
		o.CourierName = r.Shipments[0].Courier
	}
	return o
}

// orderEnvelopeParsers are the known listing envelopes, tried in order.
var orderEnvelopeParsers = []func([]byte) (*PagedResult, bool){
	parseWrappedOrders,
	parseBareOrders,
}

// parseWrappedOrders handles {"data": [...], "meta": {"pagination": {...}}}.
func parseWrappedOrders(body []byte) (*PagedResult, bool) {
	var envelope struct {
		Data []rawCourierOrder `json:"data"`
		Meta struct {
			Pagination struct {
				TotalPages  int `json:"total_pages"`
				CurrentPage int `json:"current_page"`
			} `json:"pagination"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return nil, false
	}

	result := &PagedResult{
		TotalPages:  envelope.Meta.Pagination.TotalPages,
		CurrentPage: envelope.Meta.Pagination.CurrentPage,
	}
	for _, raw := range envelope.Data {
		result.Items = append(result.Items, raw.normalize())
	}
	return result, true
}

// parseBareOrders handles the older direct-array shape.
func parseBareOrders(body []byte) (*PagedResult, bool) {
	var raws []rawCourierOrder
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, false
	}

	result := &PagedResult{TotalPages: 1}
	for _, raw := range raws {
		result.Items = append(result.Items, raw.normalize())
	}
	return result, true
}

func parseScanTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
