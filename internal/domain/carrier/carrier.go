package carrier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/delivery"
)

var (
	ErrCarrierNotSupported = errors.New("carrier: carrier not supported")
	ErrParseFailed         = errors.New("carrier: failed to parse webhook payload")
	ErrSignatureInvalid    = errors.New("carrier: webhook signature verification failed")
)

// Code identifies an integrated carrier
type Code string

const (
	// CodeShiprocket is the Shiprocket aggregator
	CodeShiprocket Code = "SHIPROCKET"
	// CodeDelhivery is the Delhivery courier network
	CodeDelhivery Code = "DELHIVERY"
)

// IsValid returns true if the code names an integrated carrier
func (c Code) IsValid() bool {
	switch c {
	case CodeShiprocket, CodeDelhivery:
		return true
	default:
		return false
	}
}

// String returns the string representation of the carrier code
func (c Code) String() string {
	return string(c)
}

// ErrorKind classifies carrier API failures for retry decisions
type ErrorKind string

const (
	// ErrorKindAuth marks credential or signature failures; never retried
	ErrorKindAuth ErrorKind = "AUTH"
	// ErrorKindValidation marks malformed requests; never retried
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindRateLimit marks throttling; retried with backoff
	ErrorKindRateLimit ErrorKind = "RATE_LIMIT"
	// ErrorKindUnavailable marks timeouts and 5xx; retried with backoff
	ErrorKindUnavailable ErrorKind = "UNAVAILABLE"
)

// Error is the error type returned by carrier adapters
type Error struct {
	Kind    ErrorKind
	Carrier Code
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Carrier, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Carrier, e.Message, e.Kind)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient
func (e *Error) IsRetryable() bool {
	return e.Kind == ErrorKindRateLimit || e.Kind == ErrorKindUnavailable
}

// NewError creates a carrier error
func NewError(carrier Code, kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Carrier: carrier, Message: message, Err: err}
}

// ShipmentRequest describes a shipment to create with a carrier
type ShipmentRequest struct {
	OrderReference string
	PickupPincode  string
	DropPincode    string
	ConsigneeName  string
	ConsigneePhone string
	Address        string
	WeightGrams    int
	CODAmount      decimal.Decimal
	IsCOD          bool
}

// ShipmentResult is the carrier's response to shipment creation
type ShipmentResult struct {
	AWB      string
	LabelRef string
}

// CancelResult is the carrier's response to a cancellation
type CancelResult struct {
	Cancelled bool
	Reason    string
}

// RateRequest describes a rate quote query
type RateRequest struct {
	PickupPincode string
	DropPincode   string
	WeightGrams   int
	IsCOD         bool
}

// RateOption is one serviceable courier/rate combination
type RateOption struct {
	CourierName  string
	Amount       decimal.Decimal
	Currency     string
	EstimatedDays int
}

// TrackResult carries the outcome for one AWB inside a bulk tracking call.
// A failed AWB does not abort the batch; Err is set per entry.
type TrackResult struct {
	AWB    string
	Events []TrackingEvent
	Err    error
}

// Adapter is the capability set every carrier integration implements.
// Adapters normalize carrier payloads into canonical tracking events and
// never mutate shared state; all state changes flow through the status
// pipeline.
type Adapter interface {
	// Code returns the carrier this adapter handles
	Code() Code

	// CreateShipment books a shipment and returns the assigned AWB
	CreateShipment(ctx context.Context, creds delivery.Credentials, req ShipmentRequest) (*ShipmentResult, error)

	// Track fetches tracking events for a batch of AWBs.
	// Partial success is expected: per-AWB failures are reported in the
	// result entries without failing the batch.
	Track(ctx context.Context, creds delivery.Credentials, awbs []string) ([]TrackResult, error)

	// Cancel requests cancellation of a shipment
	Cancel(ctx context.Context, creds delivery.Credentials, awb string) (*CancelResult, error)

	// ParseWebhook verifies and normalizes an inbound webhook payload.
	// Payloads that fail authenticity checks are rejected with
	// ErrSignatureInvalid before any further processing.
	ParseWebhook(payload []byte, headers http.Header, webhookSecret string) (*TrackingEvent, error)

	// RateQuote returns serviceable courier/rate options
	RateQuote(ctx context.Context, creds delivery.Credentials, req RateRequest) ([]RateOption, error)

	// Serviceability reports whether the carrier delivers to a pincode
	Serviceability(ctx context.Context, creds delivery.Credentials, pincode string) (bool, error)
}

// Registry resolves carrier adapters from the closed set of integrations
type Registry interface {
	// Resolve returns the adapter for the given carrier code
	Resolve(code Code) (Adapter, error)

	// List returns all registered adapters
	List() []Adapter
}
