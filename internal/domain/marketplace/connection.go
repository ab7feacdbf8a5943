package marketplace

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

var (
	ErrInvalidCompanyID       = errors.New("marketplace: invalid company ID")
	ErrInvalidMarketplaceCode = errors.New("marketplace: invalid marketplace code")
	ErrConnectionNotFound     = errors.New("marketplace: connection not found")
	ErrConnectionDisabled     = errors.New("marketplace: connection is disabled")
)

// ConnectionStatus represents the health of a marketplace account link
type ConnectionStatus string

const (
	ConnectionStatusActive   ConnectionStatus = "ACTIVE"
	ConnectionStatusError    ConnectionStatus = "ERROR"
	ConnectionStatusDisabled ConnectionStatus = "DISABLED"
)

// IsValid returns true if the status is known
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusActive, ConnectionStatusError, ConnectionStatusDisabled:
		return true
	default:
		return false
	}
}

// Connection is a marketplace account link owned by a company.
// It carries the last successful sync cursor per job type so interrupted
// syncs resume instead of re-reading the whole feed.
type Connection struct {
	shared.CompanyEntity
	Code        Code
	Name        string
	Credentials Credentials
	Status      ConnectionStatus
	StatusError string
	// Cursors holds the last durably committed cursor per job type
	Cursors map[JobType]string
	// LastSyncedAt holds the completion time of the last successful job
	// per job type
	LastSyncedAt map[JobType]time.Time
}

// NewConnection creates an active marketplace connection
func NewConnection(companyID uuid.UUID, code Code, name string, creds Credentials) (*Connection, error) {
	if companyID == uuid.Nil {
		return nil, ErrInvalidCompanyID
	}
	if !code.IsValid() {
		return nil, ErrInvalidMarketplaceCode
	}
	return &Connection{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		Code:          code,
		Name:          name,
		Credentials:   creds,
		Status:        ConnectionStatusActive,
		Cursors:       make(map[JobType]string),
		LastSyncedAt:  make(map[JobType]time.Time),
	}, nil
}

// IsActive reports whether the connection may run sync jobs
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusActive
}

// Cursor returns the last committed cursor for a job type
func (c *Connection) Cursor(jobType JobType) string {
	if c.Cursors == nil {
		return ""
	}
	return c.Cursors[jobType]
}

// AdvanceCursor records a durably committed cursor for a job type
func (c *Connection) AdvanceCursor(jobType JobType, cursor string) {
	if c.Cursors == nil {
		c.Cursors = make(map[JobType]string)
	}
	c.Cursors[jobType] = cursor
	c.Touch()
}

// MarkSynced records a successful job completion for a job type
func (c *Connection) MarkSynced(jobType JobType, at time.Time) {
	if c.LastSyncedAt == nil {
		c.LastSyncedAt = make(map[JobType]time.Time)
	}
	c.LastSyncedAt[jobType] = at
	c.Touch()
}

// MarkError flags the connection unhealthy with the failure detail
func (c *Connection) MarkError(detail string) {
	c.Status = ConnectionStatusError
	c.StatusError = detail
	c.Touch()
}

// ClearError restores an errored connection to active. Disabled connections
// stay disabled.
func (c *Connection) ClearError() {
	if c.Status != ConnectionStatusError {
		return
	}
	c.Status = ConnectionStatusActive
	c.StatusError = ""
	c.Touch()
}

// Disable takes the connection out of sync rotation
func (c *Connection) Disable() {
	c.Status = ConnectionStatusDisabled
	c.Touch()
}

// Enable restores a disabled connection to active
func (c *Connection) Enable() {
	c.Status = ConnectionStatusActive
	c.StatusError = ""
	c.Touch()
}
