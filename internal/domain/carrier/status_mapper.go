package carrier

import (
	"strings"
	"sync"

	"github.com/oms/backend/internal/domain/delivery"
)

// Mapping is one row of the status mapping table: a carrier-specific status
// code resolved to its canonical delivery status and terminality.
type Mapping struct {
	Status   delivery.DeliveryStatus
	Terminal bool
}

// StatusMapper maps carrier-specific status codes to canonical delivery
// statuses. The table is data, not code: new carrier vocabularies are added
// by registering entries, never by touching pipeline logic. Unknown codes
// resolve to EXCEPTION and are reported as unknown so the original code can
// be preserved in the event log.
type StatusMapper struct {
	mu    sync.RWMutex
	table map[Code]map[string]Mapping
}

// NewStatusMapper creates a mapper with an empty table
func NewStatusMapper() *StatusMapper {
	return &StatusMapper{table: make(map[Code]map[string]Mapping)}
}

// NewDefaultStatusMapper creates a mapper preloaded with the vocabularies of
// all integrated carriers.
func NewDefaultStatusMapper() *StatusMapper {
	m := NewStatusMapper()
	m.RegisterTable(CodeShiprocket, shiprocketStatusTable)
	m.RegisterTable(CodeDelhivery, delhiveryStatusTable)
	return m
}

// Register adds or replaces a single mapping entry
func (m *StatusMapper) Register(carrier Code, carrierStatus string, mapping Mapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table[carrier] == nil {
		m.table[carrier] = make(map[string]Mapping)
	}
	m.table[carrier][normalizeCode(carrierStatus)] = mapping
}

// RegisterTable adds or replaces a carrier's full vocabulary
func (m *StatusMapper) RegisterTable(carrier Code, table map[string]Mapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalized := make(map[string]Mapping, len(table))
	for code, mapping := range table {
		normalized[normalizeCode(code)] = mapping
	}
	m.table[carrier] = normalized
}

// Map resolves a carrier status code. The third return reports whether the
// code was known; unknown codes map to EXCEPTION, non-terminal.
func (m *StatusMapper) Map(carrier Code, carrierStatus string) (delivery.DeliveryStatus, bool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if vocab, ok := m.table[carrier]; ok {
		if mapping, ok := vocab[normalizeCode(carrierStatus)]; ok {
			return mapping.Status, mapping.Terminal, true
		}
	}
	return delivery.StatusException, false, false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// shiprocketStatusTable maps Shiprocket shipment status codes
var shiprocketStatusTable = map[string]Mapping{
	"NEW":      {Status: delivery.StatusCreated},
	"PKP":      {Status: delivery.StatusPickedUp},
	"IT":       {Status: delivery.StatusInTransit},
	"OFD":      {Status: delivery.StatusOutForDelivery},
	"DLVD":     {Status: delivery.StatusDelivered, Terminal: true},
	"RTO":      {Status: delivery.StatusRTOInitiated},
	"RTO-DLVD": {Status: delivery.StatusRTODelivered, Terminal: true},
	"CANC":     {Status: delivery.StatusCancelled, Terminal: true},
	"LOST":     {Status: delivery.StatusLost, Terminal: true},
	"NDR":      {Status: delivery.StatusException},
}

// delhiveryStatusTable maps Delhivery scan status types
var delhiveryStatusTable = map[string]Mapping{
	"MANIFESTED":    {Status: delivery.StatusCreated},
	"PICKED UP":     {Status: delivery.StatusPickedUp},
	"IN TRANSIT":    {Status: delivery.StatusInTransit},
	"DISPATCHED":    {Status: delivery.StatusOutForDelivery},
	"DELIVERED":     {Status: delivery.StatusDelivered, Terminal: true},
	"RTO INITIATED": {Status: delivery.StatusRTOInitiated},
	"RTO DELIVERED": {Status: delivery.StatusRTODelivered, Terminal: true},
	"CANCELLED":     {Status: delivery.StatusCancelled, Terminal: true},
	"LOST":          {Status: delivery.StatusLost, Terminal: true},
	"PENDING":       {Status: delivery.StatusException},
}
