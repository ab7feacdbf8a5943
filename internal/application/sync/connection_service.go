package sync

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/marketplace"
)

// ConnectionService manages marketplace connections and their SKU mappings
type ConnectionService struct {
	connections marketplace.ConnectionRepository
	mappings    marketplace.SkuMappingRepository
	logger      *zap.Logger
}

// NewConnectionService creates a connection service
func NewConnectionService(
	connections marketplace.ConnectionRepository,
	mappings marketplace.SkuMappingRepository,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		connections: connections,
		mappings:    mappings,
		logger:      logger,
	}
}

// CreateConnection registers a marketplace connection for a company
func (s *ConnectionService) CreateConnection(
	ctx context.Context,
	companyID uuid.UUID,
	code marketplace.Code,
	name string,
	creds marketplace.Credentials,
) (*marketplace.Connection, error) {
	conn, err := marketplace.NewConnection(companyID, code, name, creds)
	if err != nil {
		return nil, err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.logger.Info("Marketplace connection created",
		zap.String("connection_id", conn.ID.String()),
		zap.String("marketplace", string(code)),
	)
	return conn, nil
}

// GetConnection returns one connection
func (s *ConnectionService) GetConnection(ctx context.Context, id uuid.UUID) (*marketplace.Connection, error) {
	return s.connections.FindByID(ctx, id)
}

// ListConnections returns a company's connections
func (s *ConnectionService) ListConnections(ctx context.Context, companyID uuid.UUID) ([]*marketplace.Connection, error) {
	return s.connections.FindByCompany(ctx, companyID)
}

// DisableConnection takes a connection out of sync rotation
func (s *ConnectionService) DisableConnection(ctx context.Context, id uuid.UUID) error {
	conn, err := s.connections.FindByID(ctx, id)
	if err != nil {
		return err
	}
	conn.Disable()
	return s.connections.Save(ctx, conn)
}

// ---------------------------------------------------------------------------
// SKU mappings
// ---------------------------------------------------------------------------

// UpsertSkuMapping creates or rebinds a listing-to-catalog SKU binding
func (s *ConnectionService) UpsertSkuMapping(
	ctx context.Context,
	connectionID uuid.UUID,
	externalSKU, localSKU string,
) (*marketplace.SkuMapping, error) {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.mappings.FindByExternalSKU(ctx, connectionID, externalSKU)
	if err == nil {
		if err := existing.Rebind(localSKU); err != nil {
			return nil, err
		}
		existing.Enable()
		if err := s.mappings.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	mapping, err := marketplace.NewSkuMapping(conn.CompanyID, connectionID, externalSKU, localSKU)
	if err != nil {
		return nil, err
	}
	if err := s.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// ListSkuMappings returns a connection's SKU bindings
func (s *ConnectionService) ListSkuMappings(ctx context.Context, connectionID uuid.UUID) ([]*marketplace.SkuMapping, error) {
	return s.mappings.FindByConnection(ctx, connectionID)
}

// DisableSkuMapping removes a binding from resolution
func (s *ConnectionService) DisableSkuMapping(ctx context.Context, connectionID uuid.UUID, externalSKU string) error {
	mapping, err := s.mappings.FindByExternalSKU(ctx, connectionID, externalSKU)
	if err != nil {
		return err
	}
	mapping.Disable()
	return s.mappings.Save(ctx, mapping)
}
