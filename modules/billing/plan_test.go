package billing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskgate/modules/billing"
)

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("resolves price ids to tiers", func(t *testing.T) {
		t.Parallel()

		catalog, err := billing.NewCatalog([]billing.Plan{
			{Name: "Premium", Tier: billing.TierPremium, PriceID: "pri_1", Default: true},
		})
		require.NoError(t, err)

		assert.Equal(t, billing.TierPremium, catalog.TierFor("pri_1"))
		assert.Equal(t, "pri_1", catalog.CheckoutPlan().PriceID)

		_, ok := catalog.ByPriceID("pri_unknown")
		assert.False(t, ok)
	})

	t.Run("unknown price still counts as premium", func(t *testing.T) {
		t.Parallel()

		catalog, err := billing.NewCatalog([]billing.Plan{
			{Name: "Premium", Tier: billing.TierPremium, PriceID: "pri_1", Default: true},
		})
		require.NoError(t, err)

		assert.Equal(t, billing.TierPremium, catalog.TierFor("pri_retired"))
	})

	t.Run("rejects empty catalog", func(t *testing.T) {
		t.Parallel()

		_, err := billing.NewCatalog(nil)
		assert.ErrorIs(t, err, billing.ErrInvalidPlanFile)
	})

	t.Run("rejects duplicate price ids", func(t *testing.T) {
		t.Parallel()

		_, err := billing.NewCatalog([]billing.Plan{
			{Name: "A", Tier: billing.TierPremium, PriceID: "pri_1", Default: true},
			{Name: "B", Tier: billing.TierPremium, PriceID: "pri_1"},
		})
		assert.ErrorIs(t, err, billing.ErrInvalidPlanFile)
	})

	t.Run("requires exactly one default plan", func(t *testing.T) {
		t.Parallel()

		_, err := billing.NewCatalog([]billing.Plan{
			{Name: "A", Tier: billing.TierPremium, PriceID: "pri_1"},
		})
		assert.ErrorIs(t, err, billing.ErrInvalidPlanFile)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("loads plans from yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - name: Premium Monthly
    tier: premium
    price_id: pri_premium_monthly
    interval: monthly
    default: true
  - name: Premium Annual
    tier: premium
    price_id: pri_premium_annual
    interval: annual
`), 0o600))

		catalog, err := billing.LoadCatalog(path)
		require.NoError(t, err)
		assert.Len(t, catalog.Plans(), 2)
		assert.Equal(t, "pri_premium_monthly", catalog.CheckoutPlan().PriceID)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()

		_, err := billing.LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, billing.ErrInvalidPlanFile)
	})
}
