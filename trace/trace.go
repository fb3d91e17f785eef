// Package trace implements the explain facility (spec.md §4.H): given a
// Memo, render its plan shape, per-group winners, and (optionally) the
// alternative join orders exploration discovered, in one of several
// output formats a host or test suite can ask for.
package trace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
	"github.com/quantumish/cascadeopt/rules"
)

// Format selects which of the explain facility's four renderings
// Explain produces (spec.md §6: "optimizer.explain(format ∈ {plain,
// verbose, memo, join_orders})").
type Format string

const (
	// Plain renders the materialized winner plan as an indented tree,
	// tag and payload only.
	Plain Format = "plain"
	// Verbose renders the same tree, but with every group's winner cost
	// breakdown attached alongside the node it backs.
	Verbose Format = "verbose"
	// Memo renders the memo's full stable textual form (the same bytes
	// memo.Memo.Serialize produces), every group and every member, not
	// just the winning path.
	Memo Format = "memo"
	// JoinOrders lists every join expression, logical and physical, the
	// exploration phase discovered for the root group and its
	// descendants, one line per expression.
	JoinOrders Format = "join_orders"
)

// Explain renders m's current state for group root under the requested
// format. verbose and plain fail with ok=false if root has no winner yet
// (there is nothing to materialize); memo and join_orders always
// succeed, even against a memo with no winners at all.
func Explain(m *memo.Memo, root memo.GroupID, format Format) (string, bool) {
	switch format {
	case Plain:
		return explainTree(m, root, false)
	case Verbose:
		return explainTree(m, root, true)
	case Memo:
		var b strings.Builder
		if err := m.Serialize(&b); err != nil {
			return "", false
		}
		return b.String(), true
	case JoinOrders:
		return explainJoinOrders(m, root), true
	default:
		return "", false
	}
}

func explainTree(m *memo.Memo, root memo.GroupID, verbose bool) (string, bool) {
	node, ok := rules.MaterializeGroup(m, root)
	if !ok {
		return "", false
	}
	var b strings.Builder
	writeNode(&b, m, root, node, 0, verbose)
	return b.String(), true
}

func writeNode(b *strings.Builder, m *memo.Memo, g memo.GroupID, n *plan.Node, depth int, verbose bool) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s", indent, n.Tag.String())
	if n.Payload.Kind != plan.PayloadNone {
		fmt.Fprintf(b, "(%s)", n.Payload.String())
	}
	if verbose {
		if w := m.Winner(g, memo.PhysicalProps{}); w != nil {
			fmt.Fprintf(b, " weighted_cost=%g cost={compute=%g,io=%g,network=%g}",
				w.Weighted, w.Cost.Compute, w.Cost.IO, w.Cost.Network)
		}
	}
	b.WriteString("\n")

	e := soleOrWinnerExpr(m, g)
	for i, c := range n.Children {
		childGroup := memo.GroupID(0)
		if e != nil && i < len(e.ChildGroups) {
			childGroup = e.ChildGroups[i]
		}
		writeNode(b, m, childGroup, c, depth+1, verbose)
	}
}

// soleOrWinnerExpr looks up the expression writeNode's materialized node
// n at group g actually came from, so nested winner costs can be looked
// up per child group instead of just per node shape.
func soleOrWinnerExpr(m *memo.Memo, g memo.GroupID) *memo.GroupExpr {
	if w := m.Winner(g, memo.PhysicalProps{}); w != nil {
		return m.Expr(w.ExprID)
	}
	grp := m.Group(g)
	if grp == nil || len(grp.Members) == 0 {
		return nil
	}
	return m.Expr(grp.Members[0])
}

// explainJoinOrders lists every join expression (logical TagJoin and the
// physical join tags) discovered anywhere beneath root, one per line, sorted by group id then expr id
// for stable output across runs with identical step logs.
func explainJoinOrders(m *memo.Memo, root memo.GroupID) string {
	type entry struct {
		group memo.GroupID
		expr  memo.ExprID
		tag   plan.Tag
	}
	var entries []entry
	seen := make(map[memo.GroupID]bool)
	var walk func(g memo.GroupID)
	walk = func(g memo.GroupID) {
		if seen[g] || !g.Valid() {
			return
		}
		seen[g] = true
		grp := m.Group(g)
		if grp == nil {
			return
		}
		for _, eid := range grp.Members {
			e := m.Expr(eid)
			if e == nil {
				continue
			}
			if isJoinTag(e.Tag) {
				entries = append(entries, entry{group: g, expr: eid, tag: e.Tag})
			}
			for _, cg := range e.ChildGroups {
				walk(cg)
			}
		}
	}
	walk(root)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].group != entries[j].group {
			return entries[i].group < entries[j].group
		}
		return entries[i].expr < entries[j].expr
	})

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "group_id=%d expr_id=%d join=%s\n", e.group, e.expr, e.tag.String())
	}
	return b.String()
}

func isJoinTag(t plan.Tag) bool {
	switch t {
	case plan.TagJoin, plan.TagPhysicalHashJoin, plan.TagPhysicalNestedLoopJoin, plan.TagPhysicalMergeJoin:
		return true
	default:
		return false
	}
}
