package config

import (
	"fmt"
	"strconv"
	"strings"
)

// PricingConfig holds credit pricing configuration.
type PricingConfig struct {
	// DefaultJobCost is charged for a routable model with no explicit price.
	DefaultJobCost int

	// SignupCredits are granted once when a user is first seen.
	SignupCredits int

	// ModelCosts overrides the catalog price per model id (MODEL_COSTS="veo3=300,flux=8").
	ModelCosts map[string]int
}

// DefaultPricingConfig returns the default pricing configuration.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultJobCost: 10,
		SignupCredits:  0,
		ModelCosts:     map[string]int{},
	}
}

// CostFor returns the configured override for a model.
func (c *PricingConfig) CostFor(model string) (int, bool) {
	cost, ok := c.ModelCosts[model]
	return cost, ok
}

// LoadPricing reads pricing from the environment.
func LoadPricing() (PricingConfig, error) {
	p := DefaultPricingConfig()
	p.DefaultJobCost = getEnvInt("DEFAULT_JOB_COST", p.DefaultJobCost)
	p.SignupCredits = getEnvInt("SIGNUP_CREDITS", p.SignupCredits)
	if p.DefaultJobCost < 0 {
		return p, fmt.Errorf("DEFAULT_JOB_COST must not be negative")
	}

	costs, err := parseModelCosts(getEnv("MODEL_COSTS", ""))
	if err != nil {
		return p, err
	}
	p.ModelCosts = costs
	return p, nil
}

func parseModelCosts(raw string) (map[string]int, error) {
	out := map[string]int{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		model, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("MODEL_COSTS: malformed entry %q", entry)
		}
		cost, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || cost < 0 {
			return nil, fmt.Errorf("MODEL_COSTS: invalid cost for %q", model)
		}
		out[strings.TrimSpace(model)] = cost
	}
	return out, nil
}
