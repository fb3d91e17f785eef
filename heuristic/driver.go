// Package heuristic implements the non-memo optimization path: a
// bottom-up rewriter (children first, rules run to a fixpoint at each
// node, whole-tree passes repeated up to Driver.MaxPasses, so it is
// neither top-down nor single-pass) sharing plan's
// node model and Interner but none of the memo's group/cost machinery (spec.md §4.F, "the heuristic
// driver"). It exists for hosts that want a cheap, deterministic rewrite
// pass without paying for Cascades' combinatorial search — the same
// tradeoff the teacher's own rule-based analyzer makes before falling back
// to anything cost-based.
package heuristic

import "github.com/quantumish/cascadeopt/plan"

// Rule rewrites a single node in isolation, given its already-rewritten
// children, and reports whether it changed anything. Unlike package
// rules' pattern/binding machinery, a heuristic Rule sees a concrete node
// directly: there is no memo to match against groups, so pattern
// variables have nothing to bind to group ids.
type Rule interface {
	Name() string
	Apply(n *plan.Node, interner *plan.Interner) (*plan.Node, bool)
}

// Driver applies a fixed rule set bottom-up, to local fixpoint at every
// node, for up to MaxPasses whole-tree passes (spec.md §4.F: "a single
// top-down rewrite pass"; this implementation generalizes that to a
// bounded number of passes so rules that expose new rewrite opportunities
// in each other still converge, while guaranteeing termination on a
// pathological rule set instead of looping forever).
type Driver struct {
	interner  *plan.Interner
	rules     []Rule
	MaxPasses int
}

// DefaultMaxPasses bounds Driver.Rewrite when the caller leaves MaxPasses
// at its zero value.
const DefaultMaxPasses = 8

// NewDriver builds a Driver applying rules, in the given order, at every
// node of the tree.
func NewDriver(interner *plan.Interner, rules ...Rule) *Driver {
	return &Driver{interner: interner, rules: rules, MaxPasses: DefaultMaxPasses}
}

// Rewrite applies the driver's rule set to root until no rule changes
// anything or MaxPasses whole-tree passes have run, whichever comes
// first. It returns the rewritten tree and the total number of individual
// rule applications that fired, for diagnostics.
func (d *Driver) Rewrite(root *plan.Node) (*plan.Node, int) {
	maxPasses := d.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	total := 0
	cur := root
	for pass := 0; pass < maxPasses; pass++ {
		next, n := d.rewriteOnce(cur)
		total += n
		if n == 0 {
			return next, total
		}
		cur = next
	}
	return cur, total
}

// rewriteOnce rewrites children first (post-order), then applies the rule
// set to the resulting node repeatedly until none of them fire, so a rule
// that fires can immediately expose another rule's pattern at the same
// node within a single whole-tree pass.
func (d *Driver) rewriteOnce(n *plan.Node) (*plan.Node, int) {
	if n == nil {
		return nil, 0
	}
	total := 0
	children := make([]*plan.Node, len(n.Children))
	changed := false
	for i, c := range n.Children {
		rc, cn := d.rewriteOnce(c)
		children[i] = rc
		total += cn
		if rc != c {
			changed = true
		}
	}
	cur := n
	if changed {
		rebuilt, err := d.interner.Intern(n.Tag, n.Payload, children)
		if err != nil {
			// A rule elsewhere produced a shape that violates the tag's
			// own arity; this is a bug in that rule, not recoverable here.
			panic(err)
		}
		cur = rebuilt
	}
	for {
		fired := false
		for _, r := range d.rules {
			rewritten, ok := r.Apply(cur, d.interner)
			if !ok {
				continue
			}
			cur = rewritten
			total++
			fired = true
		}
		if !fired {
			break
		}
	}
	return cur, total
}
