package carrier

import "github.com/shopspring/decimal"

// Shiprocket tracking status codes as they appear in webhook and tracking
// payloads.
const (
	ShiprocketStatusNew            = "NEW"
	ShiprocketStatusPickedUp       = "PKP"
	ShiprocketStatusInTransit      = "IT"
	ShiprocketStatusOutForDelivery = "OFD"
	ShiprocketStatusDelivered      = "DLVD"
	ShiprocketStatusRTO            = "RTO"
	ShiprocketStatusRTODelivered   = "RTO-DLVD"
	ShiprocketStatusCancelled      = "CANC"
	ShiprocketStatusLost           = "LOST"
	ShiprocketStatusNDR            = "NDR"
)

// ShiprocketOrderRequest is the payload for adhoc order creation
type ShiprocketOrderRequest struct {
	OrderID        string  `json:"order_id"`
	PickupPincode  string  `json:"pickup_postcode"`
	DropPincode    string  `json:"delivery_postcode"`
	BillingName    string  `json:"billing_customer_name"`
	BillingPhone   string  `json:"billing_phone"`
	BillingAddress string  `json:"billing_address"`
	Weight         float64 `json:"weight"`
	PaymentMethod  string  `json:"payment_method"`
	SubTotal       string  `json:"sub_total"`
}

// ShiprocketOrderResponse is the response to order creation
type ShiprocketOrderResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	AWBCode    string `json:"awb_code"`
	ShipmentID int64  `json:"shipment_id"`
	LabelURL   string `json:"label_url"`
}

// ShiprocketTrackResponse is the response to a bulk AWB tracking query,
// keyed by AWB.
type ShiprocketTrackResponse map[string]ShiprocketTrackEntry

// ShiprocketTrackEntry is tracking data for one AWB
type ShiprocketTrackEntry struct {
	TrackingData ShiprocketTrackingData `json:"tracking_data"`
}

// ShiprocketTrackingData wraps the scan list for one AWB
type ShiprocketTrackingData struct {
	TrackStatus   int                      `json:"track_status"`
	Error         string                   `json:"error"`
	ShipmentTrack []ShiprocketShipmentScan `json:"shipment_track_activities"`
}

// ShiprocketShipmentScan is one scan event in a tracking history
type ShiprocketShipmentScan struct {
	ID       string `json:"sr-id"`
	Date     string `json:"date"`
	Status   string `json:"sr-status"`
	Activity string `json:"activity"`
	Location string `json:"location"`
}

// ShiprocketCancelResponse is the response to AWB cancellation
type ShiprocketCancelResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Status     bool   `json:"status"`
}

// ShiprocketRateResponse is the response to a serviceability/rate query
type ShiprocketRateResponse struct {
	Status int `json:"status"`
	Data   struct {
		AvailableCouriers []ShiprocketCourier `json:"available_courier_companies"`
	} `json:"data"`
}

// ShiprocketCourier is one courier option in a rate response
type ShiprocketCourier struct {
	CourierName   string          `json:"courier_name"`
	Rate          decimal.Decimal `json:"rate"`
	EstimatedDays int             `json:"estimated_delivery_days"`
	CODAvailable  int             `json:"cod"`
}

// ShiprocketWebhookPayload is the body Shiprocket posts on status changes
type ShiprocketWebhookPayload struct {
	AWB             string `json:"awb"`
	CurrentStatus   string `json:"current_status"`
	CurrentStatusID int64  `json:"current_status_id"`
	ScanID          string `json:"scan_id"`
	Remark          string `json:"remark"`
	Location        string `json:"location"`
	ScanTimestamp   string `json:"current_timestamp"`
	OrderID         string `json:"order_id"`
}
