package rules

import (
	"fmt"
	"sort"
)

// Registry holds the set of rules known to an optimizer run, indexed by
// id and by kind, matching the teacher's analyzer-rule-batch registration
// style (sql/analyzer/rules.go: an ordered slice consulted in id order).
type Registry struct {
	byID  map[uint16]Rule
	order []uint16
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint16]Rule)}
}

// Register adds rule to the registry. It is an error to register two
// rules with the same id.
func (r *Registry) Register(rule Rule) error {
	id := rule.ID()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("rules: duplicate rule id %d", id)
	}
	r.byID[id] = rule
	r.order = append(r.order, id)
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return nil
}

// Get returns the rule with the given id, or nil if none is registered.
func (r *Registry) Get(id uint16) Rule {
	return r.byID[id]
}

// ForStage returns every registered rule whose stage mask includes
// stage, in ascending rule-id order — the order ExploreExpression must
// consult them in for a deterministic trace (spec.md §4.E, determinism).
func (r *Registry) ForStage(stage int) []Rule {
	var out []Rule
	for _, id := range r.order {
		rule := r.byID[id]
		if AppliesToStage(rule.StageMask(), stage) {
			out = append(out, rule)
		}
	}
	return out
}

// ForKindAndStage narrows ForStage further by Kind, used by the task
// engine to separate transformation exploration from implementation /
// enforcer selection within the same stage.
func (r *Registry) ForKindAndStage(kind Kind, stage int) []Rule {
	var out []Rule
	for _, id := range r.order {
		rule := r.byID[id]
		if rule.Kind() == kind && AppliesToStage(rule.StageMask(), stage) {
			out = append(out, rule)
		}
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.order) }
