package rules

import (
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

// Binding is a finite substitution from pattern-variable index to the
// group id matched at that position (spec.md §4.C: "the binding records
// a group-id"). Both VarGroup and VarPred variables bind a group id in
// this implementation; VarPred additionally requires that some member of
// the bound group satisfy its type filter.
type Binding struct {
	Groups map[int]memo.GroupID
	// Self is the group-expression MatchExpr was called against: the root
	// of the match, as opposed to any of its variable-bound children. A
	// rule that needs to read the matched node's own payload (an
	// implementation rule producing a physical counterpart with the same
	// payload, say) reads it via m.Expr(b.Self) rather than through a
	// pattern variable, since the pattern's root tag is fixed by
	// construction and never itself a variable.
	Self memo.ExprID
}

func newBinding() *Binding {
	return &Binding{Groups: make(map[int]memo.GroupID)}
}

func (b *Binding) clone() *Binding {
	nb := newBinding()
	nb.Self = b.Self
	for k, v := range b.Groups {
		nb.Groups[k] = v
	}
	return nb
}

// Group returns the group id bound to varIdx, if any.
func (b *Binding) Group(varIdx int) (memo.GroupID, bool) {
	g, ok := b.Groups[varIdx]
	return g, ok
}

// MatchExpr enumerates every binding of pat against the group-expression
// exprID (spec.md §4.C, "Matching"). The expression's own tag must equal
// pat.Tag; every child position is then matched against the
// corresponding pattern, fanning out combinatorially across the
// candidate members of each child group.
func MatchExpr(m *memo.Memo, exprID memo.ExprID, pat *Pattern) []*Binding {
	if pat.IsVar {
		return nil
	}
	b := newBinding()
	b.Self = exprID
	return matchExpr(m, exprID, pat, b)
}

func matchExpr(m *memo.Memo, exprID memo.ExprID, pat *Pattern, b *Binding) []*Binding {
	e := m.Expr(exprID)
	if e == nil || e.Tag != pat.Tag {
		return nil
	}
	if n, fixed := pat.Arity(); fixed && n != len(e.ChildGroups) {
		return nil
	}
	frontier := []*Binding{b}
	for i, cp := range pat.Children {
		var next []*Binding
		for _, cur := range frontier {
			next = append(next, matchChildGroup(m, e.ChildGroups[i], cp, cur)...)
		}
		frontier = next
		if len(frontier) == 0 {
			return nil
		}
	}
	return frontier
}

func matchChildGroup(m *memo.Memo, g memo.GroupID, pat *Pattern, b *Binding) []*Binding {
	switch {
	case pat.IsVar && pat.VarK == VarGroup:
		nb := b.clone()
		nb.Groups[pat.VarIdx] = g
		return []*Binding{nb}
	case pat.IsVar && pat.VarK == VarPred:
		grp := m.Group(g)
		if grp == nil {
			return nil
		}
		for _, mid := range grp.Members {
			me := m.Expr(mid)
			if (pat.Filter == nil && me.Tag.IsScalar()) || (pat.Filter != nil && pat.Filter(me.Tag)) {
				nb := b.clone()
				nb.Groups[pat.VarIdx] = g
				return []*Binding{nb}
			}
		}
		return nil
	case pat.IsList:
		return matchList(m, g, pat.Children[0], b)
	default:
		grp := m.Group(g)
		if grp == nil {
			return nil
		}
		var out []*Binding
		for _, mid := range grp.Members {
			me := m.Expr(mid)
			if me.Tag != pat.Tag {
				continue
			}
			out = append(out, matchExpr(m, mid, pat, b)...)
		}
		return out
	}
}

// matchList matches a TagList child of arbitrary arity: every member of g
// that is itself a TagList expression is tried, with elem matched against
// each of its children in turn. An empty list is a legal match (spec.md
// §9, Open Question 1 resolved in favor of allowing it), producing the
// unmodified binding.
func matchList(m *memo.Memo, g memo.GroupID, elem *Pattern, b *Binding) []*Binding {
	grp := m.Group(g)
	if grp == nil {
		return nil
	}
	var out []*Binding
	for _, mid := range grp.Members {
		me := m.Expr(mid)
		if me.Tag != plan.TagList {
			continue
		}
		frontier := []*Binding{b.clone()}
		for _, childGroup := range me.ChildGroups {
			var next []*Binding
			for _, cur := range frontier {
				next = append(next, matchChildGroup(m, childGroup, elem, cur)...)
			}
			frontier = next
			if len(frontier) == 0 {
				break
			}
		}
		out = append(out, frontier...)
	}
	return out
}

// Materialize reconstructs a concrete, acyclic plan.Node for the group
// bound to varIdx by recursively picking each group's current best
// winner under no required physical properties (spec.md §4.C:
// "materialize a concrete plan from a binding ... picks the current best
// winner of each referenced group"). ok is false if varIdx is unbound or
// any transitively referenced subgoal has no winner yet (the binding is
// "unmaterializable").
func Materialize(m *memo.Memo, b *Binding, varIdx int) (*plan.Node, bool) {
	g, ok := b.Group(varIdx)
	if !ok {
		return nil, false
	}
	return materializeGroup(m, g)
}

// MaterializeGroup is materializeGroup exported for callers (the task
// engine's enforcer handling) that need to materialize a group's zero-props
// winner directly, without going through a Binding.
func MaterializeGroup(m *memo.Memo, g memo.GroupID) (*plan.Node, bool) {
	return materializeGroup(m, g)
}

func materializeGroup(m *memo.Memo, g memo.GroupID) (*plan.Node, bool) {
	var e *memo.GroupExpr
	if w := m.Winner(g, memo.PhysicalProps{}); w != nil {
		e = m.Expr(w.ExprID)
	} else if scalar, ok := soleScalarMember(m, g); ok {
		// Predicate/scalar groups are never searched or costed (the task
		// engine treats them as fixed); they have no winner to pick, so
		// materializing one falls back to its single member directly.
		e = scalar
	} else {
		return nil, false
	}
	children := make([]*plan.Node, len(e.ChildGroups))
	for i, cg := range e.ChildGroups {
		cn, ok := materializeGroup(m, cg)
		if !ok {
			return nil, false
		}
		children[i] = cn
	}
	return &plan.Node{Tag: e.Tag, Payload: e.Payload, Children: children}, true
}

// soleScalarMember returns g's representative member when g holds a
// predicate/scalar expression, which by construction is never subject to
// transformation or implementation rules and so never accumulates more
// than the one member it was built with.
func soleScalarMember(m *memo.Memo, g memo.GroupID) (*memo.GroupExpr, bool) {
	grp := m.Group(g)
	if grp == nil || len(grp.Members) == 0 {
		return nil, false
	}
	e := m.Expr(grp.Members[0])
	if e == nil || !e.Tag.IsScalar() {
		return nil, false
	}
	return e, true
}
