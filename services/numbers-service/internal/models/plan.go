package models

import (
	"fmt"
	"sort"
	"time"
)

type PlanName string

const (
	PlanMonthly  PlanName = "monthly"
	PlanYearly   PlanName = "yearly"
	PlanStandard PlanName = "standard"
	PlanLite     PlanName = "lite"
	PlanPremium  PlanName = "premium"
)

type Plan struct {
	Name         PlanName `yaml:"name" json:"name"`
	Price        float64  `yaml:"price" json:"price"`
	Currency     string   `yaml:"currency" json:"currency"`
	DurationDays int      `yaml:"duration_days" json:"duration_days"`
	Description  string   `yaml:"description" json:"description"`
}

func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

func (p Plan) EndDate(start time.Time) time.Time {
	return start.AddDate(0, 0, p.DurationDays)
}

type PlanCatalog map[PlanName]Plan

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		PlanLite:     {Name: PlanLite, Price: 5000, Currency: "NGN", DurationDays: 45, Description: "Lite"},
		PlanStandard: {Name: PlanStandard, Price: 10000, Currency: "NGN", DurationDays: 45, Description: "Standard"},
		PlanPremium:  {Name: PlanPremium, Price: 20000, Currency: "NGN", DurationDays: 60, Description: "Premium"},
		PlanMonthly:  {Name: PlanMonthly, Price: 7500, Currency: "NGN", DurationDays: 30, Description: "Monthly"},
		PlanYearly:   {Name: PlanYearly, Price: 80000, Currency: "NGN", DurationDays: 365, Description: "Yearly"},
	}
}

func (c PlanCatalog) Get(name PlanName) (Plan, error) {
	plan, ok := c[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, name)
	}
	return plan, nil
}

// List returns plans ordered by price, cheapest first.
func (c PlanCatalog) List() []Plan {
	plans := make([]Plan, 0, len(c))
	for _, p := range c {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Price == plans[j].Price {
			return plans[i].Name < plans[j].Name
		}
		return plans[i].Price < plans[j].Price
	})
	return plans
}

func (c PlanCatalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: plan catalog is empty", ErrInvalidPlan)
	}
	for name, p := range c {
		if p.Name != name {
			return fmt.Errorf("%w: plan %q is stored under key %q", ErrInvalidPlan, p.Name, name)
		}
		if p.DurationDays <= 0 {
			return fmt.Errorf("%w: plan %q has non-positive duration", ErrInvalidPlan, name)
		}
		if p.Price < 0 {
			return fmt.Errorf("%w: plan %q has negative price", ErrInvalidPlan, name)
		}
	}
	return nil
}
