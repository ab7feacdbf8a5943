package carrier

import "github.com/shopspring/decimal"

// Delhivery tracking statuses as they appear in scan payloads
const (
	DelhiveryStatusManifested   = "MANIFESTED"
	DelhiveryStatusPickedUp     = "PICKED UP"
	DelhiveryStatusInTransit    = "IN TRANSIT"
	DelhiveryStatusDispatched   = "DISPATCHED"
	DelhiveryStatusDelivered    = "DELIVERED"
	DelhiveryStatusRTOInitiated = "RTO INITIATED"
	DelhiveryStatusRTODelivered = "RTO DELIVERED"
	DelhiveryStatusCancelled    = "CANCELLED"
	DelhiveryStatusLost         = "LOST"
	DelhiveryStatusPending      = "PENDING"
)

// delhiverySignatureHeader carries the hex HMAC-SHA256 of the raw body
const delhiverySignatureHeader = "X-Delhivery-Signature"

// DelhiveryManifestRequest is the payload for package manifestation
type DelhiveryManifestRequest struct {
	Shipments      []DelhiveryShipment `json:"shipments"`
	PickupLocation struct {
		Pincode string `json:"pin"`
	} `json:"pickup_location"`
}

// DelhiveryShipment is one package in a manifest request
type DelhiveryShipment struct {
	OrderID     string `json:"order"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Address     string `json:"add"`
	Pincode     string `json:"pin"`
	Weight      int    `json:"weight"`
	CODAmount   string `json:"cod_amount"`
	PaymentMode string `json:"payment_mode"`
}

// DelhiveryManifestResponse is the response to manifestation
type DelhiveryManifestResponse struct {
	Success  bool `json:"success"`
	Packages []struct {
		Waybill string   `json:"waybill"`
		Status  string   `json:"status"`
		Remarks []string `json:"remarks"`
	} `json:"packages"`
}

// DelhiveryTrackResponse is the response to a waybill tracking query
type DelhiveryTrackResponse struct {
	ShipmentData []struct {
		Shipment DelhiveryShipmentTrack `json:"Shipment"`
	} `json:"ShipmentData"`
}

// DelhiveryShipmentTrack is tracking data for one waybill
type DelhiveryShipmentTrack struct {
	AWB    string `json:"AWB"`
	Status struct {
		Status string `json:"Status"`
	} `json:"Status"`
	Scans []DelhiveryScan `json:"Scans"`
}

// DelhiveryScan is one scan event in a waybill history
type DelhiveryScan struct {
	ScanDetail struct {
		ScanID          string `json:"ScanId"`
		Scan            string `json:"Scan"`
		ScanDateTime    string `json:"ScanDateTime"`
		Instructions    string `json:"Instructions"`
		ScannedLocation string `json:"ScannedLocation"`
	} `json:"ScanDetail"`
}

// DelhiveryCancelResponse is the response to waybill cancellation
type DelhiveryCancelResponse struct {
	Status bool   `json:"status"`
	Remark string `json:"remark"`
}

// DelhiveryRateResponse is the response to an invoice charge query
type DelhiveryRateResponse []struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	ChargeZone  string          `json:"zone"`
}

// DelhiveryPincodeResponse is the response to a pincode serviceability query
type DelhiveryPincodeResponse struct {
	DeliveryCodes []struct {
		PostalCode struct {
			Pin         int    `json:"pin"`
			Serviceable bool   `json:"serv"`
			Remarks     string `json:"remarks"`
		} `json:"postal_code"`
	} `json:"delivery_codes"`
}

// DelhiveryWebhookPayload is the body Delhivery posts on scan updates
type DelhiveryWebhookPayload struct {
	Shipment struct {
		AWB          string `json:"awb"`
		Status       string `json:"status"`
		ScanID       string `json:"scan_id"`
		ScanType     string `json:"scan_type"`
		Instructions string `json:"instructions"`
		Location     string `json:"location"`
		ScanDateTime string `json:"scan_datetime"`
	} `json:"shipment"`
}
