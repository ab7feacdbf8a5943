package carrier

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

const (
	// maxResponseSize limits carrier response bodies to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024

	shiprocketDefaultBaseURL = "https://apiv2.shiprocket.in/v1/external"

	// shiprocketWebhookHeader carries the shared token configured in the
	// Shiprocket dashboard
	shiprocketWebhookHeader = "X-Api-Key"

	shiprocketTimestampLayout = "2006-01-02 15:04:05"
)

// ShiprocketAdapter implements the carrier Adapter port for the Shiprocket
// aggregator.
type ShiprocketAdapter struct {
	httpClient *http.Client
}

// NewShiprocketAdapter creates a Shiprocket adapter
func NewShiprocketAdapter(timeout time.Duration) *ShiprocketAdapter {
	return &ShiprocketAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Code returns the carrier code this adapter handles
func (a *ShiprocketAdapter) Code() carrier.Code {
	return carrier.CodeShiprocket
}

func (a *ShiprocketAdapter) baseURL(creds delivery.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return shiprocketDefaultBaseURL
}

// ---------------------------------------------------------------------------
// Shipment Operations
// ---------------------------------------------------------------------------

// CreateShipment books an adhoc order and returns the assigned AWB
func (a *ShiprocketAdapter) CreateShipment(ctx context.Context, creds delivery.Credentials, req carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
	payment := "Prepaid"
	if req.IsCOD {
		payment = "COD"
	}
	body := ShiprocketOrderRequest{
		OrderID:        req.OrderReference,
		PickupPincode:  req.PickupPincode,
		DropPincode:    req.DropPincode,
		BillingName:    req.ConsigneeName,
		BillingPhone:   req.ConsigneePhone,
		BillingAddress: req.Address,
		Weight:         float64(req.WeightGrams) / 1000,
		PaymentMethod:  payment,
		SubTotal:       req.CODAmount.String(),
	}

	respBody, err := a.doRequest(ctx, creds, http.MethodPost, "/orders/create/adhoc", body)
	if err != nil {
		return nil, err
	}

	var resp ShiprocketOrderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "failed to parse order response", err)
	}
	if resp.AWBCode == "" {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindValidation, resp.Message, nil)
	}

	return &carrier.ShipmentResult{
		AWB:      resp.AWBCode,
		LabelRef: resp.LabelURL,
	}, nil
}

// Track fetches scan histories for a batch of AWBs. Shiprocket's bulk
// tracking endpoint reports per-AWB errors inside the response, which are
// surfaced as per-entry failures without failing the batch.
func (a *ShiprocketAdapter) Track(ctx context.Context, creds delivery.Credentials, awbs []string) ([]carrier.TrackResult, error) {
	if len(awbs) == 0 {
		return nil, nil
	}

	body := map[string][]string{"awbs": awbs}
	respBody, err := a.doRequest(ctx, creds, http.MethodPost, "/courier/track/awbs", body)
	if err != nil {
		return nil, err
	}

	var resp ShiprocketTrackResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "failed to parse tracking response", err)
	}

	results := make([]carrier.TrackResult, 0, len(awbs))
	for _, awb := range awbs {
		entry, ok := resp[awb]
		if !ok {
			results = append(results, carrier.TrackResult{
				AWB: awb,
				Err: carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindValidation, "AWB missing from tracking response", nil),
			})
			continue
		}
		if entry.TrackingData.Error != "" {
			results = append(results, carrier.TrackResult{
				AWB: awb,
				Err: carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindValidation, entry.TrackingData.Error, nil),
			})
			continue
		}

		events := make([]carrier.TrackingEvent, 0, len(entry.TrackingData.ShipmentTrack))
		for _, scan := range entry.TrackingData.ShipmentTrack {
			occurredAt, perr := time.Parse(shiprocketTimestampLayout, scan.Date)
			if perr != nil {
				occurredAt = time.Now()
			}
			raw, _ := json.Marshal(scan)
			events = append(events, carrier.TrackingEvent{
				Carrier:           carrier.CodeShiprocket,
				AWB:               awb,
				ExternalEventID:   scan.ID,
				CarrierStatusCode: scan.Status,
				Description:       scan.Activity,
				Location:          scan.Location,
				OccurredAt:        occurredAt,
				RawPayload:        string(raw),
			})
		}
		results = append(results, carrier.TrackResult{AWB: awb, Events: events})
	}
	return results, nil
}

// Cancel requests cancellation of the shipment behind an AWB
func (a *ShiprocketAdapter) Cancel(ctx context.Context, creds delivery.Credentials, awb string) (*carrier.CancelResult, error) {
	body := map[string][]string{"awbs": {awb}}
	respBody, err := a.doRequest(ctx, creds, http.MethodPost, "/orders/cancel/shipment/awbs", body)
	if err != nil {
		return nil, err
	}

	var resp ShiprocketCancelResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "failed to parse cancel response", err)
	}
	return &carrier.CancelResult{
		Cancelled: resp.Status,
		Reason:    resp.Message,
	}, nil
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// ParseWebhook verifies the shared dashboard token and normalizes the
// payload. Verification uses a constant-time compare.
func (a *ShiprocketAdapter) ParseWebhook(payload []byte, headers http.Header, webhookSecret string) (*carrier.TrackingEvent, error) {
	token := headers.Get(shiprocketWebhookHeader)
	if webhookSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(webhookSecret)) != 1 {
		return nil, carrier.ErrSignatureInvalid
	}

	var hook ShiprocketWebhookPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrParseFailed, err)
	}
	if hook.AWB == "" || hook.CurrentStatus == "" {
		return nil, fmt.Errorf("%w: missing awb or status", carrier.ErrParseFailed)
	}

	occurredAt, err := time.Parse(shiprocketTimestampLayout, hook.ScanTimestamp)
	if err != nil {
		occurredAt = time.Now()
	}

	return &carrier.TrackingEvent{
		Carrier:           carrier.CodeShiprocket,
		AWB:               hook.AWB,
		ExternalEventID:   hook.ScanID,
		CarrierStatusCode: hook.CurrentStatus,
		Description:       hook.Remark,
		Location:          hook.Location,
		OccurredAt:        occurredAt,
		RawPayload:        string(payload),
	}, nil
}

// ---------------------------------------------------------------------------
// Rates and Serviceability
// ---------------------------------------------------------------------------

// RateQuote returns serviceable courier options with their rates
func (a *ShiprocketAdapter) RateQuote(ctx context.Context, creds delivery.Credentials, req carrier.RateRequest) ([]carrier.RateOption, error) {
	query := url.Values{}
	query.Set("pickup_postcode", req.PickupPincode)
	query.Set("delivery_postcode", req.DropPincode)
	query.Set("weight", strconv.FormatFloat(float64(req.WeightGrams)/1000, 'f', 3, 64))
	if req.IsCOD {
		query.Set("cod", "1")
	} else {
		query.Set("cod", "0")
	}

	respBody, err := a.doRequest(ctx, creds, http.MethodGet, "/courier/serviceability/?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp ShiprocketRateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "failed to parse rate response", err)
	}

	options := make([]carrier.RateOption, 0, len(resp.Data.AvailableCouriers))
	for _, courier := range resp.Data.AvailableCouriers {
		if req.IsCOD && courier.CODAvailable != 1 {
			continue
		}
		options = append(options, carrier.RateOption{
			CourierName:   courier.CourierName,
			Amount:        courier.Rate,
			Currency:      "INR",
			EstimatedDays: courier.EstimatedDays,
		})
	}
	return options, nil
}

// Serviceability reports whether any courier serves the pincode
func (a *ShiprocketAdapter) Serviceability(ctx context.Context, creds delivery.Credentials, pincode string) (bool, error) {
	options, err := a.RateQuote(ctx, creds, carrier.RateRequest{
		PickupPincode: pincode,
		DropPincode:   pincode,
		WeightGrams:   500,
	})
	if err != nil {
		return false, err
	}
	return len(options) > 0, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated request against the Shiprocket API and
// classifies failures into the carrier error taxonomy.
func (a *ShiprocketAdapter) doRequest(ctx context.Context, creds delivery.Credentials, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindValidation, "failed to marshal request", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL(creds)+path, reader)
	if err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindValidation, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, carrier.NewError(carrier.CodeShiprocket, carrier.ErrorKindUnavailable, "failed to read response", err)
	}

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		return nil, carrier.NewError(carrier.CodeShiprocket, kind, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	return respBody, nil
}

// classifyStatus maps an HTTP status to the carrier error taxonomy.
// Returns failed=false for success statuses.
func classifyStatus(status int) (carrier.ErrorKind, bool) {
	switch {
	case status < 400:
		return "", false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return carrier.ErrorKindAuth, true
	case status == http.StatusTooManyRequests:
		return carrier.ErrorKindRateLimit, true
	case status >= 500:
		return carrier.ErrorKindUnavailable, true
	default:
		return carrier.ErrorKindValidation, true
	}
}

// Ensure ShiprocketAdapter implements the carrier Adapter port
var _ carrier.Adapter = (*ShiprocketAdapter)(nil)
