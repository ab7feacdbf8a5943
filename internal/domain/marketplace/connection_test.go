package marketplace

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConnection(t *testing.T) *Connection {
	t.Helper()
	conn, err := NewConnection(uuid.New(), CodeShopify, "acme-store", Credentials{
		ShopDomain:  "acme.myshopify.com",
		AccessToken: "shpat_test",
	})
	require.NoError(t, err)
	return conn
}

func TestNewConnection(t *testing.T) {
	t.Run("creates an active connection", func(t *testing.T) {
		companyID := uuid.New()
		conn, err := NewConnection(companyID, CodeAmazon, "acme-amazon", Credentials{AccessToken: "token"})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, conn.ID)
		assert.Equal(t, companyID, conn.CompanyID)
		assert.Equal(t, CodeAmazon, conn.Code)
		assert.Equal(t, ConnectionStatusActive, conn.Status)
		assert.True(t, conn.IsActive())
		assert.Empty(t, conn.Cursor(JobTypeOrder))
	})

	t.Run("rejects nil company", func(t *testing.T) {
		_, err := NewConnection(uuid.Nil, CodeShopify, "x", Credentials{})
		assert.ErrorIs(t, err, ErrInvalidCompanyID)
	})

	t.Run("rejects unknown marketplace", func(t *testing.T) {
		_, err := NewConnection(uuid.New(), Code("EBAY"), "x", Credentials{})
		assert.ErrorIs(t, err, ErrInvalidMarketplaceCode)
	})
}

func TestConnection_Cursors(t *testing.T) {
	t.Run("cursors are tracked per job type", func(t *testing.T) {
		conn := createTestConnection(t)

		conn.AdvanceCursor(JobTypeOrder, "orders-page-3")
		conn.AdvanceCursor(JobTypeInventory, "inv-page-1")

		assert.Equal(t, "orders-page-3", conn.Cursor(JobTypeOrder))
		assert.Equal(t, "inv-page-1", conn.Cursor(JobTypeInventory))
		assert.Empty(t, conn.Cursor(JobTypeSettlement))
	})

	t.Run("advancing replaces the previous cursor", func(t *testing.T) {
		conn := createTestConnection(t)
		conn.AdvanceCursor(JobTypeOrder, "page-1")
		conn.AdvanceCursor(JobTypeOrder, "page-2")

		assert.Equal(t, "page-2", conn.Cursor(JobTypeOrder))
	})

	t.Run("nil cursor map reads as empty", func(t *testing.T) {
		conn := createTestConnection(t)
		conn.Cursors = nil

		assert.Empty(t, conn.Cursor(JobTypeOrder))

		conn.AdvanceCursor(JobTypeOrder, "page-1")
		assert.Equal(t, "page-1", conn.Cursor(JobTypeOrder))
	})
}

func TestConnection_MarkSynced(t *testing.T) {
	conn := createTestConnection(t)
	conn.LastSyncedAt = nil
	at := time.Now()

	conn.MarkSynced(JobTypeSettlement, at)

	assert.Equal(t, at, conn.LastSyncedAt[JobTypeSettlement])
	assert.NotContains(t, conn.LastSyncedAt, JobTypeOrder)
}

func TestConnection_StatusLifecycle(t *testing.T) {
	t.Run("mark error and clear", func(t *testing.T) {
		conn := createTestConnection(t)

		conn.MarkError("401 from marketplace")
		assert.Equal(t, ConnectionStatusError, conn.Status)
		assert.Equal(t, "401 from marketplace", conn.StatusError)
		assert.False(t, conn.IsActive())

		conn.ClearError()
		assert.Equal(t, ConnectionStatusActive, conn.Status)
		assert.Empty(t, conn.StatusError)
	})

	t.Run("clear error does not re-enable a disabled connection", func(t *testing.T) {
		conn := createTestConnection(t)
		conn.Disable()

		conn.ClearError()

		assert.Equal(t, ConnectionStatusDisabled, conn.Status)
		assert.False(t, conn.IsActive())
	})

	t.Run("enable restores a disabled connection", func(t *testing.T) {
		conn := createTestConnection(t)
		conn.MarkError("boom")
		conn.Disable()

		conn.Enable()

		assert.Equal(t, ConnectionStatusActive, conn.Status)
		assert.Empty(t, conn.StatusError)
	})
}

func TestConnectionStatus_IsValid(t *testing.T) {
	assert.True(t, ConnectionStatusActive.IsValid())
	assert.True(t, ConnectionStatusError.IsValid())
	assert.True(t, ConnectionStatusDisabled.IsValid())
	assert.False(t, ConnectionStatus("PAUSED").IsValid())
	assert.False(t, ConnectionStatus("").IsValid())
}
