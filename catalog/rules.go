// Package catalog supplies a small, concrete rule set exercising the two
// rule kinds the task engine fires (package rules also defines Enforcer,
// which no rule here uses): logical-to-logical transformations,
// logical-to-physical implementations, each registered
// against the default cost/property providers (package cost) the way a
// host application would register its own domain-specific rules.
package catalog

import (
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
	"github.com/quantumish/cascadeopt/rules"
)

// Rule ids. Stable and ascending in registration order, matching the
// determinism the task engine relies on (spec.md §5).
const (
	RuleImplementScan               uint16 = 1
	RuleImplementFilter             uint16 = 2
	RuleImplementProject            uint16 = 3
	RuleImplementSort               uint16 = 4
	RuleImplementLimit              uint16 = 5
	RuleImplementAggregate          uint16 = 6
	RuleImplementEmptyRelation      uint16 = 7
	RuleImplementJoinHash           uint16 = 8
	RuleImplementJoinNested         uint16 = 9
	RuleTransformJoinCommute        uint16 = 10
	RuleTransformJoinEliminateEmpty uint16 = 11
)

// placeholder wraps a child group id as the seam a rule's replacement uses
// to refer to existing structure without rebuilding it (plan.TagPlaceholder,
// spec.md §4.A).
func placeholder(g memo.GroupID) *plan.Node {
	return &plan.Node{Tag: plan.TagPlaceholder, Payload: plan.GroupRefPayload(int(g))}
}

// identityImplement returns an Apply function that rebuilds the matched
// expression under physTag, keeping its payload and children untouched:
// the common shape of an implementation rule that does not change
// arity or semantics, only which physical operator carries them out.
func identityImplement(physTag plan.Tag) func(b *rules.Binding, m *memo.Memo) ([]*plan.Node, error) {
	return func(b *rules.Binding, m *memo.Memo) ([]*plan.Node, error) {
		e := m.Expr(b.Self)
		if e == nil {
			return nil, nil
		}
		children := make([]*plan.Node, len(e.ChildGroups))
		for i, cg := range e.ChildGroups {
			children[i] = placeholder(cg)
		}
		return []*plan.Node{{Tag: physTag, Payload: e.Payload, Children: children}}, nil
	}
}

func implRule(id uint16, logical plan.Tag, arity int, physical plan.Tag) *rules.Func {
	children := make([]*rules.Pattern, arity)
	for i := range children {
		children[i] = rules.AnyGroup(i)
	}
	return &rules.Func{
		RuleID:    id,
		RuleKind:  rules.Implementation,
		Mask:      rules.StageMaskAll,
		Pat:       rules.Node(logical, children...),
		ApplyFunc: identityImplement(physical),
	}
}

// joinCommute swaps a join's two relational children, leaving its
// predicate untouched. The swap is a pure relabeling: every cost formula
// in package cost is symmetric in its two join inputs, so commuting never
// changes a join's own cost, only which orderings downstream rules (and a
// real optimizer with asymmetric costs) get to consider.
func joinCommute(b *rules.Binding, m *memo.Memo) ([]*plan.Node, error) {
	e := m.Expr(b.Self)
	if e == nil || len(e.ChildGroups) != 3 {
		return nil, nil
	}
	left, right, pred := e.ChildGroups[0], e.ChildGroups[1], e.ChildGroups[2]
	return []*plan.Node{{
		Tag:      plan.TagJoin,
		Payload:  e.Payload,
		Children: []*plan.Node{placeholder(right), placeholder(left), placeholder(pred)},
	}}, nil
}

// isConstTag accepts only a constant-literal predicate, the narrowest
// filter joinEliminateEmpty needs: it still inspects the bound group's
// member itself to check the literal is specifically `false`.
func isConstTag(tag memo.Tag) bool { return tag == plan.TagConst }

// joinEliminateEmpty rewrites Join(A, B, const(false)) to EmptyRelation:
// a join whose predicate can never hold produces no rows no matter what A
// and B are (spec.md §8, "Empty relation elimination"). The replacement's
// column count is read back off the join's own already-derived schema so
// AddExprToGroup's schema check accepts it into the same group.
func joinEliminateEmpty(b *rules.Binding, m *memo.Memo) ([]*plan.Node, error) {
	predGroup, ok := b.Group(2)
	if !ok {
		return nil, nil
	}
	grp := m.Group(predGroup)
	if grp == nil {
		return nil, nil
	}
	isFalse := false
	for _, mid := range grp.Members {
		pe := m.Expr(mid)
		if pe != nil && pe.Tag == plan.TagConst && pe.Payload.Kind == plan.PayloadBool && !pe.Payload.Bool {
			isFalse = true
			break
		}
	}
	if !isFalse {
		return nil, nil
	}
	e := m.Expr(b.Self)
	if e == nil {
		return nil, nil
	}
	cols := 1
	if props := m.GetLogicalProps(e.Group); props != nil {
		cols = len(props.Schema)
	}
	return []*plan.Node{{Tag: plan.TagEmptyRelation, Payload: plan.EmptyRelationPayload(cols)}}, nil
}

// Default returns the registry this package's rules are grouped into: the
// base catalog a caller constructing an Optimizer in the default
// configuration registers against. Join physical alternatives are
// deliberately limited to hash and nested-loop; a merge join is not
// offered here because this catalog does not model the sorted-input
// precondition a merge join requires, and without that precondition its
// cost formula (linear in input size) would always dominate hash join,
// which never matches how a real merge join behaves.
func Default() (*rules.Registry, error) {
	reg := rules.NewRegistry()
	candidates := []rules.Rule{
		implRule(RuleImplementScan, plan.TagScan, 0, plan.TagPhysicalScan),
		implRule(RuleImplementFilter, plan.TagFilter, 2, plan.TagPhysicalFilter),
		implRule(RuleImplementProject, plan.TagProject, 1, plan.TagPhysicalProject),
		implRule(RuleImplementSort, plan.TagSort, 1, plan.TagPhysicalSort),
		implRule(RuleImplementLimit, plan.TagLimit, 1, plan.TagPhysicalLimit),
		implRule(RuleImplementAggregate, plan.TagAggregate, 1, plan.TagPhysicalHashAggregate),
		implRule(RuleImplementEmptyRelation, plan.TagEmptyRelation, 0, plan.TagPhysicalEmptyRelation),
		implRule(RuleImplementJoinHash, plan.TagJoin, 3, plan.TagPhysicalHashJoin),
		implRule(RuleImplementJoinNested, plan.TagJoin, 3, plan.TagPhysicalNestedLoopJoin),
		&rules.Func{
			RuleID:    RuleTransformJoinCommute,
			RuleKind:  rules.Transformation,
			Mask:      rules.StageMaskAll,
			Pat:       rules.Node(plan.TagJoin, rules.AnyGroup(0), rules.AnyGroup(1), rules.AnyGroup(2)),
			ApplyFunc: joinCommute,
		},
		&rules.Func{
			RuleID:    RuleTransformJoinEliminateEmpty,
			RuleKind:  rules.Transformation,
			Mask:      rules.StageMaskAll,
			Pat:       rules.Node(plan.TagJoin, rules.AnyGroup(0), rules.AnyGroup(1), rules.AnyPred(2, isConstTag)),
			ApplyFunc: joinEliminateEmpty,
		},
	}
	for _, r := range candidates {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
