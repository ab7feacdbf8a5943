package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oms/backend/internal/domain/marketplace"
)

const (
	amazonDefaultBaseURL = "https://sellingpartnerapi-eu.amazon.com"

	amazonAccessTokenHeader = "x-amz-access-token"

	// amazonOrdersWindow bounds the first page's lookback when no cursor
	// exists yet
	amazonOrdersWindow = 30 * 24 * time.Hour
)

// AmazonAdapter implements the marketplace Adapter port against the Amazon
// Selling Partner API. Feeds paginate with NextToken cursors.
type AmazonAdapter struct {
	httpClient    *http.Client
	marketplaceID string
}

// NewAmazonAdapter creates an Amazon adapter for one SP marketplace
func NewAmazonAdapter(timeout time.Duration, marketplaceID string) *AmazonAdapter {
	return &AmazonAdapter{
		httpClient:    &http.Client{Timeout: timeout},
		marketplaceID: marketplaceID,
	}
}

// Code returns the marketplace code this adapter handles
func (a *AmazonAdapter) Code() marketplace.Code {
	return marketplace.CodeAmazon
}

func (a *AmazonAdapter) baseURL(creds marketplace.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return amazonDefaultBaseURL
}

// ---------------------------------------------------------------------------
// Feeds
// ---------------------------------------------------------------------------

// FetchOrders returns one page of the order feed
func (a *AmazonAdapter) FetchOrders(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.OrderPage, error) {
	query := url.Values{}
	query.Set("MarketplaceIds", a.marketplaceID)
	query.Set("MaxResultsPerPage", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("NextToken", cursor)
	} else {
		query.Set("CreatedAfter", time.Now().Add(-amazonOrdersWindow).UTC().Format(time.RFC3339))
	}

	body, err := a.doRequest(ctx, creds, "/orders/v0/orders?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp AmazonOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.OrderPage{
		NextCursor: resp.Payload.NextToken,
		HasMore:    resp.Payload.NextToken != "",
	}
	for _, order := range resp.Payload.Orders {
		placedAt, perr := time.Parse(time.RFC3339, order.PurchaseDate)
		if perr != nil {
			placedAt = time.Now()
		}
		page.Orders = append(page.Orders, marketplace.OrderRecord{
			ExternalOrderID: order.AmazonOrderID,
			OrderNumber:     order.AmazonOrderID,
			CustomerName:    order.BuyerInfo.BuyerName,
			CustomerEmail:   order.BuyerInfo.BuyerEmail,
			Currency:        order.OrderTotal.CurrencyCode,
			TotalAmount:     order.OrderTotal.Amount,
			FinancialStatus: order.OrderStatus,
			PlacedAt:        placedAt,
		})
	}
	return page, nil
}

// FetchInventory returns one page of the FBA inventory feed
func (a *AmazonAdapter) FetchInventory(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.InventoryPage, error) {
	query := url.Values{}
	query.Set("marketplaceIds", a.marketplaceID)
	query.Set("granularityType", "Marketplace")
	query.Set("granularityId", a.marketplaceID)
	query.Set("maxResults", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("nextToken", cursor)
	}

	body, err := a.doRequest(ctx, creds, "/fba/inventory/v1/summaries?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp AmazonInventoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.InventoryPage{
		NextCursor: resp.Pagination.NextToken,
		HasMore:    resp.Pagination.NextToken != "",
	}
	for _, summary := range resp.Payload.InventorySummaries {
		capturedAt, perr := time.Parse(time.RFC3339, summary.LastUpdatedTime)
		if perr != nil {
			capturedAt = time.Now()
		}
		page.Items = append(page.Items, marketplace.InventoryRecord{
			ExternalSKU: summary.SellerSKU,
			LocationID:  a.marketplaceID,
			Available:   summary.TotalQuantity,
			CapturedAt:  capturedAt,
		})
	}
	return page, nil
}

// FetchSettlements returns one page of the financial event group feed
func (a *AmazonAdapter) FetchSettlements(ctx context.Context, creds marketplace.Credentials, cursor string, limit int) (*marketplace.SettlementPage, error) {
	query := url.Values{}
	query.Set("MaxResultsPerPage", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("NextToken", cursor)
	} else {
		query.Set("FinancialEventGroupStartedAfter", time.Now().Add(-amazonOrdersWindow).UTC().Format(time.RFC3339))
	}

	body, err := a.doRequest(ctx, creds, "/finances/v0/financialEventGroups?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp AmazonFinancialEventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}

	page := &marketplace.SettlementPage{
		NextCursor: resp.Payload.NextToken,
		HasMore:    resp.Payload.NextToken != "",
	}
	for _, group := range resp.Payload.FinancialEventGroupList {
		settledAt, perr := time.Parse(time.RFC3339, group.FundTransferDate)
		if perr != nil {
			settledAt = time.Now()
		}
		gross := group.OriginalTotal.CurrencyAmount
		net := group.BeginningBalance.CurrencyAmount
		page.Settlements = append(page.Settlements, marketplace.SettlementRecord{
			ExternalSettlementID: group.FinancialEventGroupID,
			Currency:             group.OriginalTotal.CurrencyCode,
			GrossAmount:          gross,
			FeeAmount:            gross.Sub(net),
			NetAmount:            net,
			SettledAt:            settledAt,
		})
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated GET against the SP-API and maps HTTP
// failures onto the marketplace error set.
func (a *AmazonAdapter) doRequest(ctx context.Context, creds marketplace.Credentials, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL(creds)+path, nil)
	if err != nil {
		return nil, fmt.Errorf("amazon: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(amazonAccessTokenHeader, creds.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var apiErr AmazonErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			detail = fmt.Sprintf("%s: %s", apiErr.Errors[0].Code, apiErr.Errors[0].Message)
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", marketplace.ErrAuthFailed, detail)
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", marketplace.ErrRateLimited, detail)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %s", marketplace.ErrUnavailable, detail)
		default:
			return nil, fmt.Errorf("%w: %s", marketplace.ErrInvalidResponse, detail)
		}
	}
	return body, nil
}

// Ensure AmazonAdapter implements the marketplace Adapter port
var _ marketplace.Adapter = (*AmazonAdapter)(nil)
