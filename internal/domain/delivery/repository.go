package delivery

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for deliveries
type Repository interface {
	// FindByID finds a delivery by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Delivery, error)

	// FindByTransporterAndAWB resolves a delivery from tracking identifiers
	FindByTransporterAndAWB(ctx context.Context, transporterID uuid.UUID, awb string) (*Delivery, error)

	// FindOpenByTransporter returns deliveries still expecting tracking
	// updates, for bulk polling
	FindOpenByTransporter(ctx context.Context, transporterID uuid.UUID, limit int) ([]Delivery, error)

	// Save creates or updates a delivery and its appended history entries
	Save(ctx context.Context, d *Delivery) error
}

// TransporterRepository defines persistence for transporter accounts
type TransporterRepository interface {
	// FindByID finds a transporter by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Transporter, error)

	// FindEnabled returns all enabled transporter accounts
	FindEnabled(ctx context.Context) ([]Transporter, error)

	// FindEnabledByCompany returns a company's enabled transporter accounts
	FindEnabledByCompany(ctx context.Context, companyID uuid.UUID) ([]Transporter, error)

	// Save creates or updates a transporter
	Save(ctx context.Context, t *Transporter) error
}
