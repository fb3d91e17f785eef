package memo

import (
	"fmt"

	"github.com/mitchellh/hashstructure"
)

// PlanCost computes (memoizing on the group-expression) the cost of exprID
// given the winning child expressions chosen for each of its child groups
// and their costs (spec.md §4.D: "Results are memoised on the
// group-expression"). A second call with the same childWinnerExprs reuses
// the cached result without consulting the cost provider again; a call
// with a different set of child winners (as happens across re-optimization
// stages once statistics change) recomputes and re-caches.
func (m *Memo) PlanCost(exprID ExprID, childWinnerExprs []ExprID, childCosts []Cost) (Cost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exprByID[exprID]
	if !ok {
		return Cost{}, m.errInternal("PlanCost: no such expr %d", exprID)
	}
	sig := childSignature(childWinnerExprs)
	if e.costCached && e.childCostSig == sig {
		return e.cachedCost, nil
	}
	childStats := make([]*LogicalProps, len(e.ChildGroups))
	for i, cg := range e.ChildGroups {
		childStats[i] = m.GetLogicalPropsLocked(cg)
	}
	c := m.cost.PlanCost(e.Tag, e.Payload, childStats, childCosts)
	e.cachedCost = c
	e.childCostSig = sig
	e.costCached = true
	return c, nil
}

func childSignature(exprs []ExprID) uint64 {
	h, err := hashstructure.Hash(exprs, nil)
	if err != nil {
		panic(fmt.Sprintf("memo: child signature: %v", err))
	}
	return h
}

// Weight exposes the bound CostProvider's scalar reduction of a Cost, for
// callers (the task engine) that need to compare or prune on cost before a
// winner has been proposed.
func (m *Memo) Weight(c Cost) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost.Weight(c)
}

// Enforce exposes the bound PropertyProvider's Enforce, used by the task
// engine when a subgoal's required properties are not met by any existing
// winner (spec.md §4.E, enforcer insertion).
func (m *Memo) Enforce(have, want PhysicalProps) (Tag, Payload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props.Enforce(have, want)
}

// SetRowCount overwrites a group's cached row-count estimate, the entry
// point re-optimization uses to feed refined statistics back into the memo
// before clearing winners and searching again (spec.md §4.F).
func (m *Memo) SetRowCount(group GroupID, rowCount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return m.errInternal("SetRowCount: no such group %d", group)
	}
	if g.LogicalProps == nil {
		g.LogicalProps = &LogicalProps{}
	}
	g.LogicalProps.RowCount = rowCount
	return nil
}
