// Package pipeline contains the routing/execution core: static execution
// plans, the per-request context threaded through the stage handlers, and
// the executor that drives a plan to a final response.
package pipeline

import (
	"fmt"
	"sort"
)

// StageType is the closed set of stage identifiers. The executor is built
// against these constants; an unknown stage cannot be expressed.
type StageType string

const (
	StageGeneric      StageType = "generic"
	StageDataQuery    StageType = "sql"
	StageAnalysis     StageType = "analysis"
	StageArchitecture StageType = "architecture"
)

// StageNone is the attribution used when no stage produced the response.
const StageNone StageType = "none"

// Plan is a named, ordered stage sequence. Plans are registered once at
// startup and never mutated.
type Plan struct {
	Name        string
	Stages      []StageType
	Description string
	RequiresKey bool
}

// PlanGeneric, PlanDataQuery and PlanArchitectureReview are the registered
// plan names the router can produce.
const (
	PlanGeneric            = "generic"
	PlanDataQuery          = "data_query"
	PlanArchitectureReview = "architecture_review"
)

// The generic stage closes every credentialed plan so a mid-pipeline error
// always meets a stage that can turn it into a user-facing reply. It is a
// no-op when a response is already set and no error is pending.
var plans = map[string]Plan{
	PlanGeneric: {
		Name:        PlanGeneric,
		Stages:      []StageType{StageGeneric},
		Description: "General conversation, product questions, help",
		RequiresKey: false,
	},
	PlanDataQuery: {
		Name:        PlanDataQuery,
		Stages:      []StageType{StageDataQuery, StageAnalysis, StageGeneric},
		Description: "SQL query generation plus result analysis",
		RequiresKey: true,
	},
	PlanArchitectureReview: {
		Name:        PlanArchitectureReview,
		Stages:      []StageType{StageArchitecture, StageGeneric},
		Description: "Review of the document's table structure (relations, organization)",
		RequiresKey: true,
	},
}

// ErrPlanNotFound is returned by GetPlan for unregistered names.
type ErrPlanNotFound struct {
	Name string
}

func (e ErrPlanNotFound) Error() string {
	return fmt.Sprintf("unknown plan %q, available plans: %v", e.Name, ListPlans())
}

// GetPlan returns the registered plan with the given name.
func GetPlan(name string) (Plan, error) {
	plan, ok := plans[name]
	if !ok {
		return Plan{}, ErrPlanNotFound{Name: name}
	}
	return plan, nil
}

// ListPlans returns all registered plan names, sorted.
func ListPlans() []string {
	names := make([]string, 0, len(plans))
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllPlans returns every registered plan keyed by name, for introspection
// and for building the routing prompt.
func AllPlans() map[string]Plan {
	out := make(map[string]Plan, len(plans))
	for name, plan := range plans {
		out[name] = plan
	}
	return out
}
