package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/marketplace"
)

const testMarketplaceID = "A21TJRUUN4KGV"

func amazonServer(t *testing.T, handler http.HandlerFunc) (*AmazonAdapter, marketplace.Credentials) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAmazonAdapter(5*time.Second, testMarketplaceID), marketplace.Credentials{
		AccessToken: "Atza|test",
		BaseURL:     srv.URL,
	}
}

func TestAmazonAdapter_FetchOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("parses orders and the NextToken cursor", func(t *testing.T) {
		adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders/v0/orders", r.URL.Path)
			assert.Equal(t, "Atza|test", r.Header.Get("x-amz-access-token"))
			assert.Equal(t, testMarketplaceID, r.URL.Query().Get("MarketplaceIds"))
			// first page bounds the lookback instead of a cursor
			assert.NotEmpty(t, r.URL.Query().Get("CreatedAfter"))
			assert.Empty(t, r.URL.Query().Get("NextToken"))

			w.Write([]byte(`{"payload":{
				"Orders":[{
					"AmazonOrderId": "408-1234567-1234567",
					"PurchaseDate": "2026-08-19T06:30:00Z",
					"OrderStatus": "Shipped",
					"OrderTotal": {"CurrencyCode":"INR","Amount":"2599.00"},
					"BuyerInfo": {"BuyerName":"Ravi Kumar","BuyerEmail":"ravi@example.com"}
				}],
				"NextToken": "token-next"
			}}`))
		})

		page, err := adapter.FetchOrders(ctx, creds, "", 100)

		require.NoError(t, err)
		assert.Equal(t, "token-next", page.NextCursor)
		assert.True(t, page.HasMore)
		require.Len(t, page.Orders, 1)

		order := page.Orders[0]
		assert.Equal(t, "408-1234567-1234567", order.ExternalOrderID)
		assert.Equal(t, "Ravi Kumar", order.CustomerName)
		assert.Equal(t, "Shipped", order.FinancialStatus)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("2599.00")))
		assert.Equal(t, time.Date(2026, 8, 19, 6, 30, 0, 0, time.UTC), order.PlacedAt)
	})

	t.Run("resumes from a NextToken cursor", func(t *testing.T) {
		adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "token-next", r.URL.Query().Get("NextToken"))
			assert.Empty(t, r.URL.Query().Get("CreatedAfter"))
			w.Write([]byte(`{"payload":{"Orders":[]}}`))
		})

		page, err := adapter.FetchOrders(ctx, creds, "token-next", 100)

		require.NoError(t, err)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.Orders)
	})

	t.Run("surfaces the SP-API error envelope", func(t *testing.T) {
		adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"errors":[{"code":"Unauthorized","message":"Access token expired"}]}`))
		})

		_, err := adapter.FetchOrders(ctx, creds, "", 100)

		require.ErrorIs(t, err, marketplace.ErrAuthFailed)
		assert.Contains(t, err.Error(), "Access token expired")
	})

	t.Run("throttling is retryable", func(t *testing.T) {
		adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"errors":[{"code":"QuotaExceeded","message":"Request rate exceeded"}]}`))
		})

		_, err := adapter.FetchOrders(ctx, creds, "", 100)
		assert.ErrorIs(t, err, marketplace.ErrRateLimited)
	})
}

func TestAmazonAdapter_FetchInventory(t *testing.T) {
	adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fba/inventory/v1/summaries", r.URL.Path)
		assert.Equal(t, testMarketplaceID, r.URL.Query().Get("granularityId"))
		w.Write([]byte(`{
			"payload":{"inventorySummaries":[
				{"sellerSku":"AMZ-SKU-1","fnSku":"X0001","totalQuantity":42,"lastUpdatedTime":"2026-08-21T00:00:00Z"}
			]},
			"pagination":{"nextToken":"inv-token"}
		}`))
	})

	page, err := adapter.FetchInventory(context.Background(), creds, "", 50)

	require.NoError(t, err)
	assert.Equal(t, "inv-token", page.NextCursor)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "AMZ-SKU-1", page.Items[0].ExternalSKU)
	assert.Equal(t, testMarketplaceID, page.Items[0].LocationID)
	assert.Equal(t, 42, page.Items[0].Available)
}

func TestAmazonAdapter_FetchSettlements(t *testing.T) {
	adapter, creds := amazonServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/finances/v0/financialEventGroups", r.URL.Path)
		w.Write([]byte(`{"payload":{
			"FinancialEventGroupList":[{
				"FinancialEventGroupId": "feg-1",
				"FundTransferDate": "2026-08-17T00:00:00Z",
				"OriginalTotal": {"CurrencyCode":"INR","CurrencyAmount":"10000.00"},
				"BeginningBalance": {"CurrencyAmount":"9200.00"}
			}]
		}}`))
	})

	page, err := adapter.FetchSettlements(context.Background(), creds, "", 50)

	require.NoError(t, err)
	require.Len(t, page.Settlements, 1)
	settlement := page.Settlements[0]
	assert.Equal(t, "feg-1", settlement.ExternalSettlementID)
	assert.True(t, settlement.GrossAmount.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, settlement.NetAmount.Equal(decimal.RequireFromString("9200.00")))
	assert.True(t, settlement.FeeAmount.Equal(decimal.RequireFromString("800.00")))
	assert.False(t, page.HasMore)
}
