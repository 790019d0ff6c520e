package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

const shopifySystem = "shopify"

// Physical attributes Shopify rarely carries; applied when the upstream item
// has none. Approximations, not measurements.
const (
	defaultDimensionCm = 10.0
	defaultWeightKg    = 0.5
)

// ShopifyClient fetches orders for one tenant's store credentials.
type ShopifyClient struct {
	store       string // e.g. acme.myshopify.com
	apiKey      string
	apiPassword string
	apiVersion  string
	client      *http.Client
}

func NewShopifyClient(store, apiKey, apiPassword, apiVersion string) *ShopifyClient {
	store = strings.TrimPrefix(store, "https://")
	store = strings.TrimPrefix(store, "http://")
	store = strings.TrimSuffix(store, "/")

	return &ShopifyClient{
		store:       store,
		apiKey:      apiKey,
		apiPassword: apiPassword,
		apiVersion:  apiVersion,
		client:      &http.Client{Timeout: 20 * time.Second},
	}
}

// RawShopifyOrder is the subset of the Shopify order payload that the
// transform reads.
type RawShopifyOrder struct {
	ID                  json.Number `json:"id"`
	Name                string      `json:"name"`
	CreatedAt           string      `json:"created_at"`
	FulfillmentStatus   string      `json:"fulfillment_status"`
	FinancialStatus     string      `json:"financial_status"`
	TotalPrice          string      `json:"total_price"`
	PaymentGatewayNames []string    `json:"payment_gateway_names"`
	ShippingAddress     struct {
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Address1 string `json:"address1"`
		City     string `json:"city"`
		Province string `json:"province"`
		Zip      string `json:"zip"`
		Country  string `json:"country"`
	} `json:"shipping_address"`
	LineItems []struct {
		Title    string  `json:"title"`
		Quantity int     `json:"quantity"`
		Grams    float64 `json:"grams"`
	} `json:"line_items"`
}

// GetOrders fetches orders created at or after since. The caller (the
// reconciliation engine) logs failures and moves to the next tenant; an
// error here never aborts a whole sync pass.
func (c *ShopifyClient) GetOrders(ctx context.Context, since time.Time) ([]RawShopifyOrder, error) {
	endpoint := fmt.Sprintf("https://%s/admin/api/%s/orders.json", c.store, c.apiVersion)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse orders URL: %w", err)
	}
	q := u.Query()
	q.Set("status", "any")
	q.Set("created_at_min", since.UTC().Format(time.RFC3339))
	q.Set("limit", "250")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create orders request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiPassword)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamError{System: shopifySystem, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &apperr.AuthError{System: shopifySystem, Message: "credentials rejected for " + c.store}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &apperr.RateLimitError{System: shopifySystem}
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, &apperr.UpstreamError{System: shopifySystem, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var envelope struct {
		Orders []RawShopifyOrder `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &apperr.ProtocolError{System: shopifySystem, Message: "orders response: " + err.Error()}
	}

	return envelope.Orders, nil
}

// TransformOrder converts one raw Shopify order into the canonical pre-insert
// form for a tenant. Pure: no I/O, total over its input.
func TransformOrder(raw RawShopifyOrder, client *model.Client) model.InsertOrder {
	amount, _ := strconv.ParseFloat(raw.TotalPrice, 64)

	shipping := model.ShippingDetails{
		Name:        raw.ShippingAddress.Name,
		Phone:       raw.ShippingAddress.Phone,
		Address:     raw.ShippingAddress.Address1,
		City:        raw.ShippingAddress.City,
		State:       raw.ShippingAddress.Province,
		Pincode:     raw.ShippingAddress.Zip,
		Country:     raw.ShippingAddress.Country,
		PaymentMode: paymentMode(raw.PaymentGatewayNames),
		Amount:      amount,
	}

	product := model.ProductDetails{
		Category: "General",
		Dimensions: model.Dimensions{
			Length:  defaultDimensionCm,
			Breadth: defaultDimensionCm,
			Height:  defaultDimensionCm,
		},
		Weight: defaultWeightKg,
	}

	var totalGrams float64
	for _, item := range raw.LineItems {
		product.Quantity += item.Quantity
		totalGrams += item.Grams * float64(item.Quantity)
	}
	if len(raw.LineItems) > 0 {
		product.Name = raw.LineItems[0].Title
	}
	if totalGrams > 0 {
		product.Weight = totalGrams / 1000
	}

	return model.InsertOrder{
		OrderID:           raw.ID.String(),
		ClientID:          client.ClientID,
		FulfillmentStatus: model.MapShopifyStatus(raw.FulfillmentStatus, raw.FinancialStatus),
		ShippingDetails:   shipping,
		ProductDetails:    product,
	}
}

// paymentMode infers COD from the gateway names Shopify reports.
func paymentMode(gateways []string) string {
	for _, g := range gateways {
		v := strings.ToLower(g)
		if strings.Contains(v, "cash") || strings.Contains(v, "cod") {
			return "COD"
		}
	}
	return "Prepaid"
}
