package carrier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

const (
	delhiveryDefaultBaseURL = "https://track.delhivery.com"

	delhiveryTimestampLayout = "2006-01-02T15:04:05.000000"
)

// DelhiveryAdapter implements the carrier Adapter port for the Delhivery
// courier network.
type DelhiveryAdapter struct {
	httpClient *http.Client
}

// NewDelhiveryAdapter creates a Delhivery adapter
func NewDelhiveryAdapter(timeout time.Duration) *DelhiveryAdapter {
	return &DelhiveryAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Code returns the carrier code this adapter handles
func (a *DelhiveryAdapter) Code() carrier.Code {
	return carrier.CodeDelhivery
}

func (a *DelhiveryAdapter) baseURL(creds delivery.Credentials) string {
	if creds.BaseURL != "" {
		return creds.BaseURL
	}
	return delhiveryDefaultBaseURL
}

// ---------------------------------------------------------------------------
// Shipment Operations
// ---------------------------------------------------------------------------

// CreateShipment manifests a package and returns the assigned waybill
func (a *DelhiveryAdapter) CreateShipment(ctx context.Context, creds delivery.Credentials, req carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
	paymentMode := "Prepaid"
	if req.IsCOD {
		paymentMode = "COD"
	}
	manifest := DelhiveryManifestRequest{
		Shipments: []DelhiveryShipment{{
			OrderID:     req.OrderReference,
			Name:        req.ConsigneeName,
			Phone:       req.ConsigneePhone,
			Address:     req.Address,
			Pincode:     req.DropPincode,
			Weight:      req.WeightGrams,
			CODAmount:   req.CODAmount.String(),
			PaymentMode: paymentMode,
		}},
	}
	manifest.PickupLocation.Pincode = req.PickupPincode

	respBody, err := a.doRequest(ctx, creds, http.MethodPost, "/api/cmu/create.json", manifest)
	if err != nil {
		return nil, err
	}

	var resp DelhiveryManifestResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to parse manifest response", err)
	}
	if !resp.Success || len(resp.Packages) == 0 || resp.Packages[0].Waybill == "" {
		reason := "manifestation refused"
		if len(resp.Packages) > 0 && len(resp.Packages[0].Remarks) > 0 {
			reason = strings.Join(resp.Packages[0].Remarks, "; ")
		}
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindValidation, reason, nil)
	}

	return &carrier.ShipmentResult{AWB: resp.Packages[0].Waybill}, nil
}

// Track fetches scan histories for a batch of waybills. Waybills absent from
// the response are reported as per-entry failures without failing the batch.
func (a *DelhiveryAdapter) Track(ctx context.Context, creds delivery.Credentials, awbs []string) ([]carrier.TrackResult, error) {
	if len(awbs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("waybill", strings.Join(awbs, ","))

	respBody, err := a.doRequest(ctx, creds, http.MethodGet, "/api/v1/packages/json/?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp DelhiveryTrackResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to parse tracking response", err)
	}

	byAWB := make(map[string]*DelhiveryShipmentTrack, len(resp.ShipmentData))
	for i := range resp.ShipmentData {
		track := &resp.ShipmentData[i].Shipment
		byAWB[track.AWB] = track
	}

	results := make([]carrier.TrackResult, 0, len(awbs))
	for _, awb := range awbs {
		track, ok := byAWB[awb]
		if !ok {
			results = append(results, carrier.TrackResult{
				AWB: awb,
				Err: carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindValidation, "waybill missing from tracking response", nil),
			})
			continue
		}

		events := make([]carrier.TrackingEvent, 0, len(track.Scans))
		for _, scan := range track.Scans {
			occurredAt, perr := time.Parse(delhiveryTimestampLayout, scan.ScanDetail.ScanDateTime)
			if perr != nil {
				occurredAt = time.Now()
			}
			raw, _ := json.Marshal(scan)
			events = append(events, carrier.TrackingEvent{
				Carrier:           carrier.CodeDelhivery,
				AWB:               awb,
				ExternalEventID:   scan.ScanDetail.ScanID,
				CarrierStatusCode: scan.ScanDetail.Scan,
				Description:       scan.ScanDetail.Instructions,
				Location:          scan.ScanDetail.ScannedLocation,
				OccurredAt:        occurredAt,
				RawPayload:        string(raw),
			})
		}
		results = append(results, carrier.TrackResult{AWB: awb, Events: events})
	}
	return results, nil
}

// Cancel requests cancellation of a manifested waybill
func (a *DelhiveryAdapter) Cancel(ctx context.Context, creds delivery.Credentials, awb string) (*carrier.CancelResult, error) {
	body := map[string]any{
		"waybill":      awb,
		"cancellation": true,
	}
	respBody, err := a.doRequest(ctx, creds, http.MethodPost, "/api/p/edit", body)
	if err != nil {
		return nil, err
	}

	var resp DelhiveryCancelResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to parse cancel response", err)
	}
	return &carrier.CancelResult{Cancelled: resp.Status, Reason: resp.Remark}, nil
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// ParseWebhook verifies the body HMAC and normalizes the payload. Delhivery
// signs the raw body with HMAC-SHA256 and sends the hex digest in
// X-Delhivery-Signature.
func (a *DelhiveryAdapter) ParseWebhook(payload []byte, headers http.Header, webhookSecret string) (*carrier.TrackingEvent, error) {
	signature := headers.Get(delhiverySignatureHeader)
	if webhookSecret == "" || !verifyHMAC(payload, signature, webhookSecret) {
		return nil, carrier.ErrSignatureInvalid
	}

	var hook DelhiveryWebhookPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrParseFailed, err)
	}
	if hook.Shipment.AWB == "" || hook.Shipment.Status == "" {
		return nil, fmt.Errorf("%w: missing awb or status", carrier.ErrParseFailed)
	}

	occurredAt, err := time.Parse(delhiveryTimestampLayout, hook.Shipment.ScanDateTime)
	if err != nil {
		occurredAt = time.Now()
	}

	return &carrier.TrackingEvent{
		Carrier:           carrier.CodeDelhivery,
		AWB:               hook.Shipment.AWB,
		ExternalEventID:   hook.Shipment.ScanID,
		CarrierStatusCode: hook.Shipment.Status,
		Description:       hook.Shipment.Instructions,
		Location:          hook.Shipment.Location,
		OccurredAt:        occurredAt,
		RawPayload:        string(payload),
	}, nil
}

// verifyHMAC checks a hex HMAC-SHA256 digest over the raw body
func verifyHMAC(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// ---------------------------------------------------------------------------
// Rates and Serviceability
// ---------------------------------------------------------------------------

// RateQuote returns the invoice charge for a prospective shipment
func (a *DelhiveryAdapter) RateQuote(ctx context.Context, creds delivery.Credentials, req carrier.RateRequest) ([]carrier.RateOption, error) {
	paymentType := "Pre-paid"
	if req.IsCOD {
		paymentType = "COD"
	}
	query := url.Values{}
	query.Set("md", "S")
	query.Set("ss", "Delivered")
	query.Set("o_pin", req.PickupPincode)
	query.Set("d_pin", req.DropPincode)
	query.Set("cgm", fmt.Sprintf("%d", req.WeightGrams))
	query.Set("pt", paymentType)

	respBody, err := a.doRequest(ctx, creds, http.MethodGet, "/api/kinko/v1/invoice/charges/.json?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp DelhiveryRateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to parse rate response", err)
	}

	options := make([]carrier.RateOption, 0, len(resp))
	for _, charge := range resp {
		options = append(options, carrier.RateOption{
			CourierName: "Delhivery " + charge.ChargeZone,
			Amount:      charge.TotalAmount,
			Currency:    "INR",
		})
	}
	return options, nil
}

// Serviceability reports whether Delhivery serves the pincode
func (a *DelhiveryAdapter) Serviceability(ctx context.Context, creds delivery.Credentials, pincode string) (bool, error) {
	query := url.Values{}
	query.Set("filter_codes", pincode)

	respBody, err := a.doRequest(ctx, creds, http.MethodGet, "/c/api/pin-codes/json/?"+query.Encode(), nil)
	if err != nil {
		return false, err
	}

	var resp DelhiveryPincodeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return false, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to parse pincode response", err)
	}

	for _, code := range resp.DeliveryCodes {
		if code.PostalCode.Serviceable {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated request against the Delhivery API and
// classifies failures into the carrier error taxonomy.
func (a *DelhiveryAdapter) doRequest(ctx context.Context, creds delivery.Credentials, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindValidation, "failed to marshal request", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL(creds)+path, reader)
	if err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindValidation, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+creds.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, carrier.NewError(carrier.CodeDelhivery, carrier.ErrorKindUnavailable, "failed to read response", err)
	}

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		return nil, carrier.NewError(carrier.CodeDelhivery, kind, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	return respBody, nil
}

// Ensure DelhiveryAdapter implements the carrier Adapter port
var _ carrier.Adapter = (*DelhiveryAdapter)(nil)
