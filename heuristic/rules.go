package heuristic

import "github.com/quantumish/cascadeopt/plan"

// DoubleNegation collapses not(not(x)) to x. The two UnaryOp(OpNot) layers
// are redundant regardless of what x evaluates to, so this holds
// unconditionally, unlike the other rules here which only fire on a
// specific sibling shape.
type DoubleNegation struct{}

func (DoubleNegation) Name() string { return "double_negation" }

func (DoubleNegation) Apply(n *plan.Node, interner *plan.Interner) (*plan.Node, bool) {
	if n.Tag != plan.TagUnaryOp || n.Payload.Op != plan.OpNot || len(n.Children) != 1 {
		return n, false
	}
	inner := n.Children[0]
	if inner.Tag != plan.TagUnaryOp || inner.Payload.Op != plan.OpNot || len(inner.Children) != 1 {
		return n, false
	}
	return inner.Children[0], true
}

// FoldAndTrue drops a constant-true operand out of an AND, since x AND
// true is always x.
type FoldAndTrue struct{}

func (FoldAndTrue) Name() string { return "fold_and_true" }

func (FoldAndTrue) Apply(n *plan.Node, interner *plan.Interner) (*plan.Node, bool) {
	if n.Tag != plan.TagLogicalOp || n.Payload.Op != plan.OpAnd || len(n.Children) != 2 {
		return n, false
	}
	left, right := n.Children[0], n.Children[1]
	if isConstTrue(right) {
		return left, true
	}
	if isConstTrue(left) {
		return right, true
	}
	return n, false
}

func isConstTrue(n *plan.Node) bool {
	return n.Tag == plan.TagConst && n.Payload.Kind == plan.PayloadBool && n.Payload.Bool
}

// MergeFilters combines Filter(Filter(rel, p1), p2) into a single
// Filter(rel, p1 AND p2), so a downstream implementation rule only ever
// has to implement one filter node instead of walking a chain of them
// (spec.md §4.F supplement: the heuristic driver collapses redundant
// structure a single-pass rewrite can spot without a memo's help).
type MergeFilters struct{}

func (MergeFilters) Name() string { return "merge_filters" }

func (MergeFilters) Apply(n *plan.Node, interner *plan.Interner) (*plan.Node, bool) {
	if n.Tag != plan.TagFilter || len(n.Children) != 2 {
		return n, false
	}
	outerPred := n.Children[1]
	inner := n.Children[0]
	if inner.Tag != plan.TagFilter || len(inner.Children) != 2 {
		return n, false
	}
	rel, innerPred := inner.Children[0], inner.Children[1]
	and, err := interner.Intern(plan.TagLogicalOp, plan.OpPayload(plan.OpAnd), []*plan.Node{innerPred, outerPred})
	if err != nil {
		return n, false
	}
	merged, err := interner.Intern(plan.TagFilter, plan.Payload{}, []*plan.Node{rel, and})
	if err != nil {
		return n, false
	}
	return merged, true
}

// DefaultRules returns the rule set a caller reaching for the heuristic
// driver out of the box gets, in a deterministic, fixed order.
func DefaultRules() []Rule {
	return []Rule{DoubleNegation{}, FoldAndTrue{}, MergeFilters{}}
}
