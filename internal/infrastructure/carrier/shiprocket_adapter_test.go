package carrier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

func shiprocketServer(t *testing.T, handler http.HandlerFunc) (*ShiprocketAdapter, delivery.Credentials) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewShiprocketAdapter(5 * time.Second), delivery.Credentials{
		APIKey:  "sr-token",
		BaseURL: srv.URL,
	}
}

func TestShiprocketAdapter_CreateShipment(t *testing.T) {
	ctx := context.Background()

	t.Run("books an order and returns the AWB", func(t *testing.T) {
		adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders/create/adhoc", r.URL.Path)
			assert.Equal(t, "Bearer sr-token", r.Header.Get("Authorization"))

			var req ShiprocketOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ORD-1", req.OrderID)
			assert.Equal(t, "COD", req.PaymentMethod)
			assert.InDelta(t, 0.5, req.Weight, 0.001)

			json.NewEncoder(w).Encode(ShiprocketOrderResponse{
				AWBCode:  "SR-AWB-1",
				LabelURL: "https://labels.example/1.pdf",
			})
		})

		result, err := adapter.CreateShipment(ctx, creds, carrier.ShipmentRequest{
			OrderReference: "ORD-1",
			PickupPincode:  "110001",
			DropPincode:    "560001",
			WeightGrams:    500,
			CODAmount:      decimal.NewFromInt(999),
			IsCOD:          true,
		})

		require.NoError(t, err)
		assert.Equal(t, "SR-AWB-1", result.AWB)
		assert.Equal(t, "https://labels.example/1.pdf", result.LabelRef)
	})

	t.Run("refusal without an AWB is a validation error", func(t *testing.T) {
		adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ShiprocketOrderResponse{Message: "pincode not serviceable"})
		})

		_, err := adapter.CreateShipment(ctx, creds, carrier.ShipmentRequest{OrderReference: "ORD-2"})

		require.Error(t, err)
		var cerr *carrier.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, carrier.ErrorKindValidation, cerr.Kind)
		assert.False(t, cerr.IsRetryable())
	})
}

func TestShiprocketAdapter_Track(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failures do not abort the batch", func(t *testing.T) {
		adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/courier/track/awbs", r.URL.Path)
			json.NewEncoder(w).Encode(ShiprocketTrackResponse{
				"AWB-OK": {TrackingData: ShiprocketTrackingData{
					ShipmentTrack: []ShiprocketShipmentScan{
						{ID: "scan-1", Date: "2026-08-20 10:30:00", Status: "IT", Activity: "In Transit", Location: "DEL Hub"},
						{ID: "scan-2", Date: "2026-08-21 08:00:00", Status: "OFD", Activity: "Out for delivery", Location: "BLR Hub"},
					},
				}},
				"AWB-ERR": {TrackingData: ShiprocketTrackingData{Error: "invalid awb"}},
			})
		})

		results, err := adapter.Track(ctx, creds, []string{"AWB-OK", "AWB-ERR", "AWB-MISSING"})

		require.NoError(t, err)
		require.Len(t, results, 3)

		require.NoError(t, results[0].Err)
		require.Len(t, results[0].Events, 2)
		first := results[0].Events[0]
		assert.Equal(t, carrier.CodeShiprocket, first.Carrier)
		assert.Equal(t, "AWB-OK", first.AWB)
		assert.Equal(t, "scan-1", first.ExternalEventID)
		assert.Equal(t, "IT", first.CarrierStatusCode)
		assert.Equal(t, "DEL Hub", first.Location)
		assert.Equal(t, time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC), first.OccurredAt)

		assert.Error(t, results[1].Err)
		assert.Error(t, results[2].Err)
	})

	t.Run("empty batch short-circuits", func(t *testing.T) {
		adapter := NewShiprocketAdapter(time.Second)

		results, err := adapter.Track(ctx, delivery.Credentials{}, nil)

		require.NoError(t, err)
		assert.Nil(t, results)
	})
}

func TestShiprocketAdapter_Cancel(t *testing.T) {
	adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/cancel/shipment/awbs", r.URL.Path)
		json.NewEncoder(w).Encode(ShiprocketCancelResponse{Status: true, Message: "cancelled"})
	})

	result, err := adapter.Cancel(context.Background(), creds, "AWB-1")

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, "cancelled", result.Reason)
}

func TestShiprocketAdapter_RateQuote(t *testing.T) {
	adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "110001", r.URL.Query().Get("pickup_postcode"))
		assert.Equal(t, "1", r.URL.Query().Get("cod"))
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data": map[string]any{
				"available_courier_companies": []map[string]any{
					{"courier_name": "Xpressbees", "rate": 82.5, "estimated_delivery_days": 3, "cod": 1},
					{"courier_name": "NoCODCourier", "rate": 60, "estimated_delivery_days": 2, "cod": 0},
				},
			},
		})
	})

	options, err := adapter.RateQuote(context.Background(), creds, carrier.RateRequest{
		PickupPincode: "110001",
		DropPincode:   "560001",
		WeightGrams:   500,
		IsCOD:         true,
	})

	require.NoError(t, err)
	// couriers without COD support are filtered for COD shipments
	require.Len(t, options, 1)
	assert.Equal(t, "Xpressbees", options[0].CourierName)
	assert.Equal(t, "INR", options[0].Currency)
	assert.Equal(t, 3, options[0].EstimatedDays)
	assert.True(t, options[0].Amount.Equal(decimal.NewFromFloat(82.5)))
}

func TestShiprocketAdapter_ParseWebhook(t *testing.T) {
	adapter := NewShiprocketAdapter(time.Second)
	payload := []byte(`{
		"awb": "SR-AWB-9",
		"current_status": "DLVD",
		"scan_id": "scan-77",
		"remark": "Delivered to consignee",
		"location": "Bengaluru",
		"current_timestamp": "2026-08-22 14:05:00"
	}`)
	headers := func(token string) http.Header {
		h := http.Header{}
		h.Set("X-Api-Key", token)
		return h
	}

	t.Run("valid token", func(t *testing.T) {
		ev, err := adapter.ParseWebhook(payload, headers("hook-secret"), "hook-secret")

		require.NoError(t, err)
		assert.Equal(t, carrier.CodeShiprocket, ev.Carrier)
		assert.Equal(t, "SR-AWB-9", ev.AWB)
		assert.Equal(t, "scan-77", ev.ExternalEventID)
		assert.Equal(t, "DLVD", ev.CarrierStatusCode)
		assert.Equal(t, "Delivered to consignee", ev.Description)
		assert.Equal(t, "Bengaluru", ev.Location)
		assert.Equal(t, time.Date(2026, 8, 22, 14, 5, 0, 0, time.UTC), ev.OccurredAt)
		assert.Equal(t, string(payload), ev.RawPayload)
	})

	t.Run("wrong token", func(t *testing.T) {
		_, err := adapter.ParseWebhook(payload, headers("wrong"), "hook-secret")
		assert.ErrorIs(t, err, carrier.ErrSignatureInvalid)
	})

	t.Run("missing token header", func(t *testing.T) {
		_, err := adapter.ParseWebhook(payload, http.Header{}, "hook-secret")
		assert.ErrorIs(t, err, carrier.ErrSignatureInvalid)
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		_, err := adapter.ParseWebhook(payload, headers(""), "")
		assert.ErrorIs(t, err, carrier.ErrSignatureInvalid)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte("not json"), headers("hook-secret"), "hook-secret")
		assert.ErrorIs(t, err, carrier.ErrParseFailed)
	})

	t.Run("missing awb", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte(`{"current_status":"DLVD"}`), headers("hook-secret"), "hook-secret")
		assert.ErrorIs(t, err, carrier.ErrParseFailed)
	})
}

func TestShiprocketAdapter_ErrorClassification(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		status    int
		wantKind  carrier.ErrorKind
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, carrier.ErrorKindAuth, false},
		{"forbidden", http.StatusForbidden, carrier.ErrorKindAuth, false},
		{"throttled", http.StatusTooManyRequests, carrier.ErrorKindRateLimit, true},
		{"server error", http.StatusInternalServerError, carrier.ErrorKindUnavailable, true},
		{"bad request", http.StatusBadRequest, carrier.ErrorKindValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, creds := shiprocketServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := adapter.Track(ctx, creds, []string{"AWB-1"})

			var cerr *carrier.Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantKind, cerr.Kind)
			assert.Equal(t, tt.retryable, cerr.IsRetryable())
		})
	}
}
