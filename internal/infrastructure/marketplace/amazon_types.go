package marketplace

import "github.com/shopspring/decimal"

// AmazonOrdersResponse is the Selling Partner orders listing payload
type AmazonOrdersResponse struct {
	Payload struct {
		Orders    []AmazonOrder `json:"Orders"`
		NextToken string        `json:"NextToken"`
	} `json:"payload"`
}

// AmazonOrder is one order in the SP-API shape
type AmazonOrder struct {
	AmazonOrderID string `json:"AmazonOrderId"`
	PurchaseDate  string `json:"PurchaseDate"`
	OrderStatus   string `json:"OrderStatus"`
	OrderTotal    struct {
		CurrencyCode string          `json:"CurrencyCode"`
		Amount       decimal.Decimal `json:"Amount"`
	} `json:"OrderTotal"`
	BuyerInfo struct {
		BuyerEmail string `json:"BuyerEmail"`
		BuyerName  string `json:"BuyerName"`
	} `json:"BuyerInfo"`
}

// AmazonInventoryResponse is the FBA inventory summaries payload
type AmazonInventoryResponse struct {
	Payload struct {
		InventorySummaries []AmazonInventorySummary `json:"inventorySummaries"`
	} `json:"payload"`
	Pagination struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
}

// AmazonInventorySummary is one SKU's FBA stock summary
type AmazonInventorySummary struct {
	SellerSKU       string `json:"sellerSku"`
	FNSKU           string `json:"fnSku"`
	TotalQuantity   int    `json:"totalQuantity"`
	LastUpdatedTime string `json:"lastUpdatedTime"`
}

// AmazonFinancialEventsResponse is the finances event groups payload
type AmazonFinancialEventsResponse struct {
	Payload struct {
		FinancialEventGroupList []AmazonFinancialEventGroup `json:"FinancialEventGroupList"`
		NextToken               string                      `json:"NextToken"`
	} `json:"payload"`
}

// AmazonFinancialEventGroup is one settlement group
type AmazonFinancialEventGroup struct {
	FinancialEventGroupID string `json:"FinancialEventGroupId"`
	FundTransferDate      string `json:"FundTransferDate"`
	OriginalTotal         struct {
		CurrencyCode   string          `json:"CurrencyCode"`
		CurrencyAmount decimal.Decimal `json:"CurrencyAmount"`
	} `json:"OriginalTotal"`
	BeginningBalance struct {
		CurrencyAmount decimal.Decimal `json:"CurrencyAmount"`
	} `json:"BeginningBalance"`
}

// AmazonErrorResponse is the SP-API error envelope
type AmazonErrorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
