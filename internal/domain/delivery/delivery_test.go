package delivery

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDelivery(t *testing.T) *Delivery {
	d, err := NewDelivery(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	return d
}

func TestNewDelivery(t *testing.T) {
	t.Run("creates delivery in CREATED state", func(t *testing.T) {
		companyID := uuid.New()
		orderID := uuid.New()
		transporterID := uuid.New()

		d, err := NewDelivery(companyID, orderID, transporterID)
		require.NoError(t, err)

		assert.Equal(t, companyID, d.CompanyID)
		assert.Equal(t, orderID, d.OrderID)
		assert.Equal(t, transporterID, d.TransporterID)
		assert.Equal(t, StatusCreated, d.Status)
		assert.Empty(t, d.AWB)
		assert.Empty(t, d.History)
		assert.NotEqual(t, uuid.Nil, d.ID)
	})

	t.Run("rejects nil order ID", func(t *testing.T) {
		_, err := NewDelivery(uuid.New(), uuid.Nil, uuid.New())
		assert.ErrorIs(t, err, ErrInvalidOrderID)
	})

	t.Run("rejects nil transporter ID", func(t *testing.T) {
		_, err := NewDelivery(uuid.New(), uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, ErrInvalidTransporterID)
	})
}

func TestDelivery_AssignAWB(t *testing.T) {
	t.Run("assigns AWB once", func(t *testing.T) {
		d := createTestDelivery(t)

		err := d.AssignAWB("AWB12345")
		require.NoError(t, err)
		assert.Equal(t, "AWB12345", d.AWB)
	})

	t.Run("re-assigning the same AWB is a no-op", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.AssignAWB("AWB12345"))

		err := d.AssignAWB("AWB12345")
		assert.NoError(t, err)
		assert.Equal(t, "AWB12345", d.AWB)
	})

	t.Run("rejects a different AWB once assigned", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.AssignAWB("AWB12345"))

		err := d.AssignAWB("AWB99999")
		assert.ErrorIs(t, err, ErrAWBAlreadyAssigned)
		assert.Equal(t, "AWB12345", d.AWB)
	})

	t.Run("rejects empty AWB", func(t *testing.T) {
		d := createTestDelivery(t)
		assert.ErrorIs(t, d.AssignAWB(""), ErrEmptyAWB)
	})
}

func TestDelivery_ApplyTransition(t *testing.T) {
	occurredAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("applies a forward transition and records history", func(t *testing.T) {
		d := createTestDelivery(t)

		err := d.ApplyTransition(StatusPickedUp, SourceWebhook, "PKD", occurredAt)
		require.NoError(t, err)

		assert.Equal(t, StatusPickedUp, d.Status)
		require.Len(t, d.History, 1)
		entry := d.History[0]
		assert.Equal(t, d.ID, entry.DeliveryID)
		assert.Equal(t, StatusCreated, entry.FromStatus)
		assert.Equal(t, StatusPickedUp, entry.ToStatus)
		assert.Equal(t, SourceWebhook, entry.Source)
		assert.Equal(t, "PKD", entry.CarrierStatusCode)
		assert.Equal(t, occurredAt, entry.OccurredAt)
		assert.NotNil(t, d.LastSyncedAt)
	})

	t.Run("no-op replay updates LastSyncedAt without new history", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusInTransit, SourceWebhook, "IT", occurredAt))
		require.Len(t, d.History, 1)

		err := d.ApplyTransition(StatusInTransit, SourceWebhook, "IT", occurredAt)
		require.NoError(t, err)

		assert.Equal(t, StatusInTransit, d.Status)
		assert.Len(t, d.History, 1)
		assert.NotNil(t, d.LastSyncedAt)
	})

	t.Run("rejects backward transition and leaves delivery untouched", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusInTransit, SourceWebhook, "IT", occurredAt))

		err := d.ApplyTransition(StatusPickedUp, SourceWebhook, "PKD", occurredAt)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusInTransit, d.Status)
		assert.Len(t, d.History, 1)
	})

	t.Run("terminal state rejects further progression", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusDelivered, SourcePoll, "DLV", occurredAt))

		err := d.ApplyTransition(StatusRTOInitiated, SourcePoll, "RTO", occurredAt)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("terminal state still accepts EXCEPTION", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusDelivered, SourcePoll, "DLV", occurredAt))

		err := d.ApplyTransition(StatusException, SourceWebhook, "ERR", occurredAt)
		require.NoError(t, err)
		assert.Equal(t, StatusException, d.Status)
	})
}

func TestDelivery_Override(t *testing.T) {
	occurredAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("forces status regardless of the transition graph", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusException, SourceWebhook, "ERR", occurredAt))

		err := d.Override(StatusInTransit, occurredAt)
		require.NoError(t, err)

		assert.Equal(t, StatusInTransit, d.Status)
		last := d.History[len(d.History)-1]
		assert.Equal(t, SourceOverride, last.Source)
		assert.Equal(t, StatusException, last.FromStatus)
		assert.Equal(t, StatusInTransit, last.ToStatus)
	})

	t.Run("can regress a terminal status", func(t *testing.T) {
		d := createTestDelivery(t)
		require.NoError(t, d.ApplyTransition(StatusDelivered, SourcePoll, "DLV", occurredAt))

		err := d.Override(StatusInTransit, occurredAt)
		require.NoError(t, err)
		assert.Equal(t, StatusInTransit, d.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		d := createTestDelivery(t)
		assert.ErrorIs(t, d.Override(DeliveryStatus("BOGUS"), occurredAt), ErrInvalidTransition)
	})
}

func TestDelivery_IsOpen(t *testing.T) {
	occurredAt := time.Now()

	tests := []struct {
		status DeliveryStatus
		open   bool
	}{
		{StatusCreated, true},
		{StatusInTransit, true},
		{StatusOutForDelivery, true},
		{StatusRTOInitiated, true},
		{StatusDelivered, false},
		{StatusCancelled, false},
		{StatusLost, false},
		{StatusRTODelivered, false},
		{StatusException, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			d := createTestDelivery(t)
			require.NoError(t, d.Override(tt.status, occurredAt))
			assert.Equal(t, tt.open, d.IsOpen())
		})
	}
}

func TestTransporter(t *testing.T) {
	t.Run("new transporter is enabled with full capabilities", func(t *testing.T) {
		tr, err := NewTransporter(uuid.New(), "SHIPROCKET", "Main account", Credentials{APIKey: "key"})
		require.NoError(t, err)

		assert.True(t, tr.Enabled)
		for _, c := range []Capability{CapabilityShip, CapabilityTrack, CapabilityCancel, CapabilityRates, CapabilityServiceability} {
			assert.True(t, tr.HasCapability(c))
		}
	})

	t.Run("rejects nil company ID", func(t *testing.T) {
		_, err := NewTransporter(uuid.Nil, "SHIPROCKET", "x", Credentials{})
		assert.ErrorIs(t, err, ErrInvalidCompanyID)
	})

	t.Run("rejects empty carrier code", func(t *testing.T) {
		_, err := NewTransporter(uuid.New(), "", "x", Credentials{})
		assert.ErrorIs(t, err, ErrInvalidCarrierCode)
	})

	t.Run("HasCapability false for missing capability", func(t *testing.T) {
		tr, err := NewTransporter(uuid.New(), "DELHIVERY", "x", Credentials{})
		require.NoError(t, err)
		tr.Capabilities = []Capability{CapabilityTrack}

		assert.True(t, tr.HasCapability(CapabilityTrack))
		assert.False(t, tr.HasCapability(CapabilityShip))
	})

	t.Run("JoinCapabilities serializes comma separated", func(t *testing.T) {
		assert.Equal(t, "SHIP,TRACK", JoinCapabilities([]Capability{CapabilityShip, CapabilityTrack}))
		assert.Equal(t, "", JoinCapabilities(nil))
	})
}
