package delivery

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

var (
	ErrInvalidCompanyID     = errors.New("delivery: invalid company ID")
	ErrInvalidCarrierCode   = errors.New("delivery: invalid carrier code")
	ErrTransporterNotFound  = errors.New("delivery: transporter not found")
	ErrTransporterDisabled  = errors.New("delivery: transporter is disabled")
	ErrMissingWebhookSecret = errors.New("delivery: webhook secret is not configured")
	ErrCarrierNotCapable    = errors.New("delivery: transporter does not support this operation")
)

// Capability enumerates the operations a transporter account supports
type Capability string

const (
	CapabilityShip           Capability = "SHIP"
	CapabilityTrack          Capability = "TRACK"
	CapabilityCancel         Capability = "CANCEL"
	CapabilityRates          Capability = "RATES"
	CapabilityServiceability Capability = "SERVICEABILITY"
)

// Credentials holds a transporter account's API access material.
// Credentials are mutable; the account identity is not.
type Credentials struct {
	APIKey    string
	APISecret string
	// BaseURL overrides the carrier's default endpoint (staging/sandbox)
	BaseURL string
}

// Transporter is a carrier account configuration owned by a company
type Transporter struct {
	shared.CompanyEntity
	CarrierCode   string
	Name          string
	Credentials   Credentials
	WebhookSecret string
	Capabilities  []Capability
	Enabled       bool
	LastPolledAt  *time.Time
}

// NewTransporter creates an enabled transporter account
func NewTransporter(companyID uuid.UUID, carrierCode, name string, creds Credentials) (*Transporter, error) {
	if companyID == uuid.Nil {
		return nil, ErrInvalidCompanyID
	}
	if carrierCode == "" {
		return nil, ErrInvalidCarrierCode
	}
	return &Transporter{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		CarrierCode:   carrierCode,
		Name:          name,
		Credentials:   creds,
		Capabilities: []Capability{
			CapabilityShip, CapabilityTrack, CapabilityCancel,
			CapabilityRates, CapabilityServiceability,
		},
		Enabled: true,
	}, nil
}

// HasCapability reports whether the account supports the given operation
func (t *Transporter) HasCapability(c Capability) bool {
	for _, have := range t.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// UpdateCredentials replaces the account credentials.
// Versioning is implicit via the UpdatedAt timestamp.
func (t *Transporter) UpdateCredentials(creds Credentials) {
	t.Credentials = creds
	t.Touch()
}

// MarkPolled records the completion of a scheduled tracking pull
func (t *Transporter) MarkPolled(at time.Time) {
	t.LastPolledAt = &at
	t.Touch()
}

// JoinCapabilities serializes a capability set to a comma-separated string
func JoinCapabilities(caps []Capability) string {
	parts := make([]string, 0, len(caps))
	for _, c := range caps {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

// ParseCapabilities parses a comma-separated capability string
func ParseCapabilities(s string) []Capability {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	caps := make([]Capability, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			caps = append(caps, Capability(p))
		}
	}
	return caps
}
