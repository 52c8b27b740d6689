package billing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes a purchasable subscription plan. PriceID is the payment
// provider's price identifier and is the key used during checkout and
// webhook processing.
type Plan struct {
	Name      string `yaml:"name"`
	Tier      Tier   `yaml:"tier"`
	PriceID   string `yaml:"price_id"`
	Interval  string `yaml:"interval"`
	TrialDays int    `yaml:"trial_days"`
	Default   bool   `yaml:"default"`
}

// Catalog holds the configured plans and resolves price IDs to tiers.
type Catalog struct {
	plans    []Plan
	byPrice  map[string]Plan
	checkout Plan
}

// LoadCatalog reads the plan catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlanFile, err)
	}

	var file struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlanFile, err)
	}

	return NewCatalog(file.Plans)
}

// NewCatalog builds a catalog from the given plans. Exactly one plan must be
// marked default; it becomes the plan new checkouts are created for.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans configured", ErrInvalidPlanFile)
	}

	c := &Catalog{
		plans:   plans,
		byPrice: make(map[string]Plan, len(plans)),
	}

	defaults := 0
	for _, plan := range plans {
		if plan.PriceID == "" {
			return nil, fmt.Errorf("%w: plan %q has no price_id", ErrInvalidPlanFile, plan.Name)
		}
		if plan.Tier == "" {
			return nil, fmt.Errorf("%w: plan %q has no tier", ErrInvalidPlanFile, plan.Name)
		}
		if _, dup := c.byPrice[plan.PriceID]; dup {
			return nil, fmt.Errorf("%w: duplicate price_id %q", ErrInvalidPlanFile, plan.PriceID)
		}
		c.byPrice[plan.PriceID] = plan
		if plan.Default {
			c.checkout = plan
			defaults++
		}
	}
	if defaults != 1 {
		return nil, fmt.Errorf("%w: exactly one plan must be marked default, got %d", ErrInvalidPlanFile, defaults)
	}

	return c, nil
}

// Plans returns all configured plans.
func (c *Catalog) Plans() []Plan {
	return c.plans
}

// CheckoutPlan returns the plan new checkout sessions are created for.
func (c *Catalog) CheckoutPlan() Plan {
	return c.checkout
}

// ByPriceID resolves a provider price ID to its plan.
func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	plan, ok := c.byPrice[priceID]
	return plan, ok
}

// TierFor resolves a price ID to its tier. A paid subscription on a price
// the catalog no longer lists still counts as premium: the customer paid,
// the catalog is just stale.
func (c *Catalog) TierFor(priceID string) Tier {
	if plan, ok := c.byPrice[priceID]; ok {
		return plan.Tier
	}
	return TierPremium
}
