package carrier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oms/backend/internal/domain/delivery"
)

func TestStatusMapper_Map(t *testing.T) {
	m := NewDefaultStatusMapper()

	tests := []struct {
		name         string
		carrier      Code
		code         string
		wantStatus   delivery.DeliveryStatus
		wantTerminal bool
		wantKnown    bool
	}{
		{"shiprocket new shipment", CodeShiprocket, "NEW", delivery.StatusCreated, false, true},
		{"shiprocket picked up", CodeShiprocket, "PKP", delivery.StatusPickedUp, false, true},
		{"shiprocket in transit", CodeShiprocket, "IT", delivery.StatusInTransit, false, true},
		{"shiprocket out for delivery", CodeShiprocket, "OFD", delivery.StatusOutForDelivery, false, true},
		{"shiprocket delivered is terminal", CodeShiprocket, "DLVD", delivery.StatusDelivered, true, true},
		{"shiprocket rto", CodeShiprocket, "RTO", delivery.StatusRTOInitiated, false, true},
		{"shiprocket rto delivered is terminal", CodeShiprocket, "RTO-DLVD", delivery.StatusRTODelivered, true, true},
		{"shiprocket cancelled is terminal", CodeShiprocket, "CANC", delivery.StatusCancelled, true, true},
		{"shiprocket lost is terminal", CodeShiprocket, "LOST", delivery.StatusLost, true, true},
		{"shiprocket ndr maps to exception", CodeShiprocket, "NDR", delivery.StatusException, false, true},
		{"delhivery manifested", CodeDelhivery, "MANIFESTED", delivery.StatusCreated, false, true},
		{"delhivery picked up has a space", CodeDelhivery, "PICKED UP", delivery.StatusPickedUp, false, true},
		{"delhivery dispatched", CodeDelhivery, "DISPATCHED", delivery.StatusOutForDelivery, false, true},
		{"delhivery delivered is terminal", CodeDelhivery, "DELIVERED", delivery.StatusDelivered, true, true},
		{"delhivery rto initiated", CodeDelhivery, "RTO INITIATED", delivery.StatusRTOInitiated, false, true},
		{"delhivery pending maps to exception", CodeDelhivery, "PENDING", delivery.StatusException, false, true},
		{"unknown code maps to exception", CodeShiprocket, "WAREHOUSE-SCAN", delivery.StatusException, false, false},
		{"unknown carrier maps to exception", Code("BLUEDART"), "DELIVERED", delivery.StatusException, false, false},
		{"vocabularies do not leak across carriers", CodeShiprocket, "MANIFESTED", delivery.StatusException, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, terminal, known := m.Map(tt.carrier, tt.code)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantTerminal, terminal)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestStatusMapper_Normalization(t *testing.T) {
	m := NewDefaultStatusMapper()

	tests := []struct {
		name string
		code string
	}{
		{"lowercase", "dlvd"},
		{"mixed case", "Dlvd"},
		{"surrounding whitespace", "  DLVD\t"},
		{"lowercase with whitespace", " dlvd "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, terminal, known := m.Map(CodeShiprocket, tt.code)
			assert.Equal(t, delivery.StatusDelivered, status)
			assert.True(t, terminal)
			assert.True(t, known)
		})
	}
}

func TestStatusMapper_Register(t *testing.T) {
	t.Run("adds an entry to an empty mapper", func(t *testing.T) {
		m := NewStatusMapper()
		_, _, known := m.Map(CodeShiprocket, "DLVD")
		assert.False(t, known)

		m.Register(CodeShiprocket, "DLVD", Mapping{Status: delivery.StatusDelivered, Terminal: true})

		status, terminal, known := m.Map(CodeShiprocket, "DLVD")
		assert.Equal(t, delivery.StatusDelivered, status)
		assert.True(t, terminal)
		assert.True(t, known)
	})

	t.Run("normalizes on registration", func(t *testing.T) {
		m := NewStatusMapper()
		m.Register(CodeDelhivery, " picked up ", Mapping{Status: delivery.StatusPickedUp})

		status, _, known := m.Map(CodeDelhivery, "PICKED UP")
		assert.Equal(t, delivery.StatusPickedUp, status)
		assert.True(t, known)
	})

	t.Run("replaces an existing entry", func(t *testing.T) {
		m := NewDefaultStatusMapper()
		m.Register(CodeShiprocket, "NDR", Mapping{Status: delivery.StatusOutForDelivery})

		status, terminal, known := m.Map(CodeShiprocket, "NDR")
		assert.Equal(t, delivery.StatusOutForDelivery, status)
		assert.False(t, terminal)
		assert.True(t, known)
	})
}

func TestStatusMapper_RegisterTable(t *testing.T) {
	m := NewDefaultStatusMapper()

	m.RegisterTable(CodeShiprocket, map[string]Mapping{
		"done": {Status: delivery.StatusDelivered, Terminal: true},
	})

	status, terminal, known := m.Map(CodeShiprocket, "DONE")
	assert.Equal(t, delivery.StatusDelivered, status)
	assert.True(t, terminal)
	assert.True(t, known)

	// replacing a table drops the previous vocabulary
	_, _, known = m.Map(CodeShiprocket, "DLVD")
	assert.False(t, known)

	// other carriers are untouched
	status, _, known = m.Map(CodeDelhivery, "DELIVERED")
	assert.Equal(t, delivery.StatusDelivered, status)
	assert.True(t, known)
}
