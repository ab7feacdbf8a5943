package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

// ShipmentService books, cancels and quotes shipments against carrier
// accounts. Shipment booking is the only place a delivery gets its AWB;
// everything after that flows through the status pipeline.
type ShipmentService struct {
	deliveries   delivery.Repository
	transporters delivery.TransporterRepository
	carriers     carrier.Registry
	logger       *zap.Logger
}

// NewShipmentService creates a shipment service
func NewShipmentService(
	deliveries delivery.Repository,
	transporters delivery.TransporterRepository,
	carriers carrier.Registry,
	logger *zap.Logger,
) *ShipmentService {
	return &ShipmentService{
		deliveries:   deliveries,
		transporters: transporters,
		carriers:     carriers,
		logger:       logger,
	}
}

// resolve loads an enabled transporter with the required capability and its
// carrier adapter.
func (s *ShipmentService) resolve(ctx context.Context, transporterID uuid.UUID, cap delivery.Capability) (*delivery.Transporter, carrier.Adapter, error) {
	t, err := s.transporters.FindByID(ctx, transporterID)
	if err != nil {
		return nil, nil, err
	}
	if !t.Enabled {
		return nil, nil, delivery.ErrTransporterDisabled
	}
	if !t.HasCapability(cap) {
		return nil, nil, delivery.ErrCarrierNotCapable
	}
	adapter, err := s.carriers.Resolve(carrier.Code(t.CarrierCode))
	if err != nil {
		return nil, nil, err
	}
	return t, adapter, nil
}

// CreateShipment books a shipment with the carrier and registers the
// resulting delivery under the returned AWB.
func (s *ShipmentService) CreateShipment(
	ctx context.Context,
	companyID, orderID, transporterID uuid.UUID,
	req carrier.ShipmentRequest,
) (*delivery.Delivery, error) {
	t, adapter, err := s.resolve(ctx, transporterID, delivery.CapabilityShip)
	if err != nil {
		return nil, err
	}

	result, err := adapter.CreateShipment(ctx, t.Credentials, req)
	if err != nil {
		return nil, err
	}

	d, err := delivery.NewDelivery(companyID, orderID, transporterID)
	if err != nil {
		return nil, err
	}
	if err := d.AssignAWB(result.AWB); err != nil {
		return nil, err
	}
	if err := s.deliveries.Save(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("Shipment created",
		zap.String("delivery_id", d.ID.String()),
		zap.String("awb", result.AWB),
		zap.String("carrier", t.CarrierCode),
		zap.String("order_id", orderID.String()),
	)
	return d, nil
}

// CancelShipment requests cancellation with the carrier and, on success,
// runs the CANCELLED transition through the normal graph.
func (s *ShipmentService) CancelShipment(ctx context.Context, deliveryID uuid.UUID) (*delivery.Delivery, error) {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	t, adapter, err := s.resolve(ctx, d.TransporterID, delivery.CapabilityCancel)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Cancel(ctx, t.Credentials, d.AWB)
	if err != nil {
		return nil, err
	}
	if !result.Cancelled {
		return nil, delivery.ErrCancelRefused
	}

	if err := d.ApplyTransition(delivery.StatusCancelled, delivery.SourceManual, "", time.Now()); err != nil {
		return nil, err
	}
	if err := s.deliveries.Save(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("Shipment cancelled",
		zap.String("delivery_id", d.ID.String()),
		zap.String("awb", d.AWB),
	)
	return d, nil
}

// RateQuote returns serviceable courier/rate options for a prospective
// shipment.
func (s *ShipmentService) RateQuote(ctx context.Context, transporterID uuid.UUID, req carrier.RateRequest) ([]carrier.RateOption, error) {
	t, adapter, err := s.resolve(ctx, transporterID, delivery.CapabilityRates)
	if err != nil {
		return nil, err
	}
	return adapter.RateQuote(ctx, t.Credentials, req)
}

// CheckServiceability reports whether the carrier delivers to a pincode
func (s *ShipmentService) CheckServiceability(ctx context.Context, transporterID uuid.UUID, pincode string) (bool, error) {
	t, adapter, err := s.resolve(ctx, transporterID, delivery.CapabilityServiceability)
	if err != nil {
		return false, err
	}
	return adapter.Serviceability(ctx, t.Credentials, pincode)
}

// ---------------------------------------------------------------------------
// Transporter accounts
// ---------------------------------------------------------------------------

// RegisterTransporter creates a carrier account for a company
func (s *ShipmentService) RegisterTransporter(
	ctx context.Context,
	companyID uuid.UUID,
	carrierCode, name string,
	creds delivery.Credentials,
	webhookSecret string,
) (*delivery.Transporter, error) {
	if !carrier.Code(carrierCode).IsValid() {
		return nil, carrier.ErrCarrierNotSupported
	}
	t, err := delivery.NewTransporter(companyID, carrierCode, name, creds)
	if err != nil {
		return nil, err
	}
	t.WebhookSecret = webhookSecret
	if err := s.transporters.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransporters returns a company's enabled transporter accounts
func (s *ShipmentService) ListTransporters(ctx context.Context, companyID uuid.UUID) ([]delivery.Transporter, error) {
	return s.transporters.FindEnabledByCompany(ctx, companyID)
}

// GetTransporter returns one transporter account
func (s *ShipmentService) GetTransporter(ctx context.Context, id uuid.UUID) (*delivery.Transporter, error) {
	return s.transporters.FindByID(ctx, id)
}
