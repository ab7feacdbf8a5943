package carrier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/carrier"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewShiprocketAdapter(time.Second))
	registry.Register(NewDelhiveryAdapter(time.Second))

	t.Run("resolves registered adapters", func(t *testing.T) {
		adapter, err := registry.Resolve(carrier.CodeShiprocket)
		require.NoError(t, err)
		assert.Equal(t, carrier.CodeShiprocket, adapter.Code())

		adapter, err = registry.Resolve(carrier.CodeDelhivery)
		require.NoError(t, err)
		assert.Equal(t, carrier.CodeDelhivery, adapter.Code())
	})

	t.Run("unknown carrier", func(t *testing.T) {
		_, err := registry.Resolve(carrier.Code("BLUEDART"))
		assert.ErrorIs(t, err, carrier.ErrCarrierNotSupported)
	})

	t.Run("lists all adapters", func(t *testing.T) {
		assert.Len(t, registry.List(), 2)
	})
}
