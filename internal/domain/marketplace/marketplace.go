package marketplace

import (
	"context"
	"errors"
)

var (
	ErrMarketplaceNotSupported = errors.New("marketplace: marketplace not supported")
	ErrUnavailable             = errors.New("marketplace: marketplace temporarily unavailable")
	ErrAuthFailed              = errors.New("marketplace: authentication failed")
	ErrRateLimited             = errors.New("marketplace: rate limited")
	ErrInvalidResponse         = errors.New("marketplace: invalid marketplace response")
)

// Code identifies an integrated marketplace
type Code string

const (
	// CodeShopify is the Shopify Admin API integration
	CodeShopify Code = "SHOPIFY"
	// CodeAmazon is the Amazon Selling Partner integration
	CodeAmazon Code = "AMAZON"
)

// IsValid returns true if the code names a known marketplace
func (c Code) IsValid() bool {
	switch c {
	case CodeShopify, CodeAmazon:
		return true
	default:
		return false
	}
}

// String returns the string representation of the marketplace code
func (c Code) String() string {
	return string(c)
}

// Credentials holds a marketplace connection's API access material
type Credentials struct {
	ShopDomain  string
	AccessToken string
	// BaseURL overrides the marketplace's default endpoint
	BaseURL string
}

// OrderPage is one page of the marketplace order feed
type OrderPage struct {
	Orders     []OrderRecord
	NextCursor string
	HasMore    bool
}

// InventoryPage is one page of the marketplace inventory feed
type InventoryPage struct {
	Items      []InventoryRecord
	NextCursor string
	HasMore    bool
}

// SettlementPage is one page of the marketplace settlement feed
type SettlementPage struct {
	Settlements []SettlementRecord
	NextCursor  string
	HasMore     bool
}

// Adapter is the port every marketplace integration implements.
// All feeds are cursor-paged: an empty cursor starts from the beginning of
// the available window, and the returned cursor resumes after the last
// record of the page.
type Adapter interface {
	// Code returns the marketplace this adapter handles
	Code() Code

	// FetchOrders returns one page of the order feed
	FetchOrders(ctx context.Context, creds Credentials, cursor string, limit int) (*OrderPage, error)

	// FetchInventory returns one page of the inventory feed
	FetchInventory(ctx context.Context, creds Credentials, cursor string, limit int) (*InventoryPage, error)

	// FetchSettlements returns one page of the settlement feed
	FetchSettlements(ctx context.Context, creds Credentials, cursor string, limit int) (*SettlementPage, error)
}

// Registry resolves marketplace adapters from the closed set of integrations
type Registry interface {
	// Resolve returns the adapter for the given marketplace code
	Resolve(code Code) (Adapter, error)

	// List returns all registered adapters
	List() []Adapter
}
