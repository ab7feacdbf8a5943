package marketplace

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSkuMapping(t *testing.T) {
	t.Run("creates an enabled mapping", func(t *testing.T) {
		companyID := uuid.New()
		connectionID := uuid.New()

		m, err := NewSkuMapping(companyID, connectionID, "AMZ-SKU-1", "LOCAL-001")

		require.NoError(t, err)
		assert.Equal(t, companyID, m.CompanyID)
		assert.Equal(t, connectionID, m.ConnectionID)
		assert.Equal(t, "AMZ-SKU-1", m.ExternalSKU)
		assert.Equal(t, "LOCAL-001", m.LocalSKU)
		assert.True(t, m.Enabled)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		m, err := NewSkuMapping(uuid.New(), uuid.New(), "  AMZ-SKU-1 ", "\tLOCAL-001 ")

		require.NoError(t, err)
		assert.Equal(t, "AMZ-SKU-1", m.ExternalSKU)
		assert.Equal(t, "LOCAL-001", m.LocalSKU)
	})

	t.Run("requires both skus", func(t *testing.T) {
		_, err := NewSkuMapping(uuid.New(), uuid.New(), "", "LOCAL-001")
		assert.ErrorIs(t, err, ErrInvalidSkuMapping)

		_, err = NewSkuMapping(uuid.New(), uuid.New(), "AMZ-SKU-1", "   ")
		assert.ErrorIs(t, err, ErrInvalidSkuMapping)
	})
}

func TestSkuMapping_Rebind(t *testing.T) {
	m, err := NewSkuMapping(uuid.New(), uuid.New(), "AMZ-SKU-1", "LOCAL-001")
	require.NoError(t, err)

	require.NoError(t, m.Rebind(" LOCAL-002 "))
	assert.Equal(t, "LOCAL-002", m.LocalSKU)

	assert.ErrorIs(t, m.Rebind("  "), ErrInvalidSkuMapping)
	assert.Equal(t, "LOCAL-002", m.LocalSKU)
}

func TestSkuMapping_EnableDisable(t *testing.T) {
	m, err := NewSkuMapping(uuid.New(), uuid.New(), "AMZ-SKU-1", "LOCAL-001")
	require.NoError(t, err)

	m.Disable()
	assert.False(t, m.Enabled)

	m.Enable()
	assert.True(t, m.Enabled)
}
