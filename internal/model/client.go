package model

import "time"

// Client is one tenant: a retailer whose orders and API credentials are
// isolated from other tenants.
type Client struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Shopify credentials for this tenant's store.
	ShopifyStore       string `json:"shopify_store"`
	ShopifyAPIKey      string `json:"-"`
	ShopifyAPIPassword string `json:"-"`

	// Shiprocket credentials. Empty means the shared default courier
	// account is used for this tenant.
	ShiprocketEmail    string `json:"-"`
	ShiprocketPassword string `json:"-"`
}

// HasCourierCredentials reports whether the tenant carries its own Shiprocket
// account.
func (c *Client) HasCourierCredentials() bool {
	return c.ShiprocketEmail != "" && c.ShiprocketPassword != ""
}
