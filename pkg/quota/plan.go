package quota

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes the credit allotment granted to a user on first
// access. The ledger models one flat pool; plans differ only in size.
type Plan struct {
	ID             string `yaml:"id"`
	InitialCredits int64  `yaml:"initial_credits"`
}

// ErrPlanNotFound indicates the requested plan id is absent from the
// loaded plans file.
var ErrPlanNotFound = errors.New("quota.plan_not_found")

// DefaultPlan is the free tier used when no plans file is configured.
func DefaultPlan() Plan {
	return Plan{ID: "free", InitialCredits: 5}
}

// LoadPlans reads plan definitions from a YAML file:
//
//	plans:
//	  - id: free
//	    initial_credits: 5
//	  - id: pro
//	    initial_credits: 100
func LoadPlans(path string) (map[string]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan without id in %s", path)
		}
		if p.InitialCredits < 0 {
			return nil, fmt.Errorf("plan %q has negative initial credits", p.ID)
		}
		plans[p.ID] = p
	}

	return plans, nil
}

// SelectPlan picks a plan by id from a plans file, falling back to the
// default free plan when path is empty.
func SelectPlan(path, planID string) (Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}

	plans, err := LoadPlans(path)
	if err != nil {
		return Plan{}, err
	}

	plan, ok := plans[planID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return plan, nil
}
