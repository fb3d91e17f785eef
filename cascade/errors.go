// Package cascade implements the task-driven search engine: the
// Columbia/Cascades-style optimizer loop that drives a memo through
// OptimizeGroup/ExploreGroup/ExploreExpression/OptimizeExpression/
// ApplyRule tasks to a best-cost physical plan (spec.md §4.E).
package cascade

import "gopkg.in/src-d/go-errors.v1"

// Error kinds surfaced by the engine itself, completing the taxonomy
// spec.md §7 describes (InvalidPlan, RuleBug and Internal are the memo
// package's own kinds, reused here since the engine's failures in those
// categories always originate from a memo operation).
var (
	// ErrBudgetExceeded marks a strict optimize call that ran out of
	// Options.BudgetTasks or Options.BudgetWallMS (or had every candidate
	// pruned by Options.MaxWeightedCost) before reaching a winner for the
	// requested subgoal. Optimize itself never returns this: it reports
	// the partial result in OptimizationResult.Status instead.
	// OptimizeStrict turns a Partial status into this error for callers
	// that want one.
	ErrBudgetExceeded = errors.NewKind("cascade: budget exceeded before a winner was found for group %d")
	// ErrInfeasible marks a strict optimize call where, after full search,
	// no implementation satisfies the required physical properties.
	// Optimize itself reports this as OptimizationResult.Status =
	// Infeasible rather than an error.
	ErrInfeasible = errors.NewKind("cascade: no winner satisfies the required properties for group %d")
)
