package marketplace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/marketplace"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewShopifyAdapter(time.Second))
	registry.Register(NewAmazonAdapter(time.Second, testMarketplaceID))

	t.Run("resolves registered adapters", func(t *testing.T) {
		adapter, err := registry.Resolve(marketplace.CodeShopify)
		require.NoError(t, err)
		assert.Equal(t, marketplace.CodeShopify, adapter.Code())

		adapter, err = registry.Resolve(marketplace.CodeAmazon)
		require.NoError(t, err)
		assert.Equal(t, marketplace.CodeAmazon, adapter.Code())
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		_, err := registry.Resolve(marketplace.Code("EBAY"))
		assert.ErrorIs(t, err, marketplace.ErrMarketplaceNotSupported)
	})

	t.Run("lists all adapters", func(t *testing.T) {
		assert.Len(t, registry.List(), 2)
	})
}
