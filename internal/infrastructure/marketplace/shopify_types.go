package marketplace

import "github.com/shopspring/decimal"

// shopifyAPIVersion pins the Admin API version all requests use
const shopifyAPIVersion = "2024-01"

// ShopifyOrdersResponse is the response to an orders listing
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyOrder is one order in the Admin API shape
type ShopifyOrder struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	CreatedAt       string            `json:"created_at"`
	Currency        string            `json:"currency"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	FinancialStatus string            `json:"financial_status"`
	Customer        ShopifyCustomer   `json:"customer"`
	LineItems       []ShopifyLineItem `json:"line_items"`
}

// ShopifyCustomer is the customer block on an order
type ShopifyCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ShopifyLineItem is one line of an order
type ShopifyLineItem struct {
	SKU      string          `json:"sku"`
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ShopifyInventoryResponse is the response to an inventory levels listing
type ShopifyInventoryResponse struct {
	InventoryLevels []ShopifyInventoryLevel `json:"inventory_levels"`
}

// ShopifyInventoryLevel is one SKU/location stock level
type ShopifyInventoryLevel struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       int    `json:"available"`
	UpdatedAt       string `json:"updated_at"`
	SKU             string `json:"sku"`
}

// ShopifyPayoutsResponse is the response to a payouts listing
type ShopifyPayoutsResponse struct {
	Payouts []ShopifyPayout `json:"payouts"`
}

// ShopifyPayout is one Shopify Payments payout
type ShopifyPayout struct {
	ID       int64           `json:"id"`
	Date     string          `json:"date"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
	Summary  struct {
		ChargesFeeAmount decimal.Decimal `json:"charges_fee_amount"`
		ChargesGross     decimal.Decimal `json:"charges_gross_amount"`
	} `json:"summary"`
}
