package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oms/backend/internal/domain/marketplace"
)

const (
	// maxResponseSize limits marketplace response bodies
	maxResponseSize = 10 * 1024 * 1024

	shopifyAccessTokenHeader = "X-Shopify-Access-Token"

	shopifyTimestampLayout = time.RFC3339
)

// shopifyPageInfoPattern extracts the page_info cursor from a Link header's
// rel="next" entry.
var shopifyPageInfoPattern = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

// ShopifyAdapter implements the marketplace Adapter port against the Shopify
// Admin REST API. All feeds use Shopify's cursor pagination: the next-page
// cursor arrives in the Link response header.
type ShopifyAdapter struct {
	httpClient *http.Client
}

// NewShopifyAdapter creates a Shopify adapter
func NewShopifyAdapter(timeout time.Duration) *ShopifyAdapter {
	return &ShopifyAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Code returns the marketplace code this adapter handles
func (a *ShopifyAdapter) Code() marketplace.Code {
	return marketplace.CodeShopify
}

func (a *ShopifyAdapter) baseURL(creds marketplace.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return fmt.Sprintf("https://%s/admin/api/%s", creds.ShopDomain, shopifyAPIVersion)
}

// ---------------------------------------------------------------------------
// Feeds
// ---------------------------------------------------------------------------

// FetchOrders returns one page of the order feed
func (a *ShopifyAdapter) FetchOrders(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.OrderPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("status", "any")
	if cursor != "" {
		query.Set("page_info", cursor)
	}

	body, next, err := a.doRequest(ctx, creds, "/orders.json?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp ShopifyOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.OrderPage{NextCursor: next, HasMore: next != ""}
	for _, order := range resp.Orders {
		placedAt, perr := time.Parse(shopifyTimestampLayout, order.CreatedAt)
		if perr != nil {
			placedAt = time.Now()
		}
		rec := marketplace.OrderRecord{
			ExternalOrderID: strconv.FormatInt(order.ID, 10),
			OrderNumber:     order.Name,
			CustomerName:    strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName),
			CustomerEmail:   order.Customer.Email,
			Currency:        order.Currency,
			TotalAmount:     order.TotalPrice,
			FinancialStatus: order.FinancialStatus,
			PlacedAt:        placedAt,
		}
		for _, line := range order.LineItems {
			rec.LineItems = append(rec.LineItems, marketplace.OrderLineItem{
				ExternalSKU: line.SKU,
				Title:       line.Title,
				Quantity:    line.Quantity,
				UnitPrice:   line.Price,
			})
		}
		page.Orders = append(page.Orders, rec)
	}
	return page, nil
}

// FetchInventory returns one page of the inventory feed
func (a *ShopifyAdapter) FetchInventory(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.InventoryPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("page_info", cursor)
	}

	body, next, err := a.doRequest(ctx, creds, "/inventory_levels.json?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp ShopifyInventoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.InventoryPage{NextCursor: next, HasMore: next != ""}
	for _, level := range resp.InventoryLevels {
		capturedAt, perr := time.Parse(shopifyTimestampLayout, level.UpdatedAt)
		if perr != nil {
			capturedAt = time.Now()
		}
		sku := level.SKU
		if sku == "" {
			sku = strconv.FormatInt(level.InventoryItemID, 10)
		}
		page.Items = append(page.Items, marketplace.InventoryRecord{
			ExternalSKU: sku,
			LocationID:  strconv.FormatInt(level.LocationID, 10),
			Available:   level.Available,
			CapturedAt:  capturedAt,
		})
	}
	return page, nil
}

// FetchSettlements returns one page of the Shopify Payments payout feed
func (a *ShopifyAdapter) FetchSettlements(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.SettlementPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("page_info", cursor)
	}

	body, next, err := a.doRequest(ctx, creds, "/shopify_payments/payouts.json?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp ShopifyPayoutsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.SettlementPage{NextCursor: next, HasMore: next != ""}
	for _, payout := range resp.Payouts {
		settledAt, perr := time.Parse("2006-01-02", payout.Date)
		if perr != nil {
			settledAt = time.Now()
		}
		page.Settlements = append(page.Settlements, marketplace.SettlementRecord{
			ExternalSettlementID: strconv.FormatInt(payout.ID, 10),
			Currency:             payout.Currency,
			GrossAmount:          payout.Summary.ChargesGross,
			FeeAmount:            payout.Summary.ChargesFeeAmount,
			NetAmount:            payout.Amount,
			SettledAt:            settledAt,
		})
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated GET and returns the body plus the
// next-page cursor from the Link header.
func (a *ShopifyAdapter) doRequest(ctx context.Context, creds marketplace.Credentials, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL(creds)+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(shopifyAccessTokenHeader, creds.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: HTTP %d", marketplace.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("%w: HTTP %d", marketplace.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, "", fmt.Errorf("%w: HTTP %d", marketplace.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, "", fmt.Errorf("%w: HTTP %d", marketplace.ErrInvalidResponse, resp.StatusCode)
	}

	return body, nextPageInfo(resp.Header.Get("Link")), nil
}

// nextPageInfo extracts the rel="next" cursor from a Link header.
// Returns "" on the last page.
func nextPageInfo(link string) string {
	match := shopifyPageInfoPattern.FindStringSubmatch(link)
	if match == nil {
		return ""
	}
	return match[1]
}

// Ensure ShopifyAdapter implements the marketplace Adapter port
var _ marketplace.Adapter = (*ShopifyAdapter)(nil)
