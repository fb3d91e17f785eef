// Package rules implements the rule framework: a pattern AST over
// group-expressions, a binding enumerator, and the rule registry the task
// engine (package cascade) consults before firing a transformation,
// implementation or enforcer rule.
package rules

import "github.com/quantumish/cascadeopt/memo"

// VarKind discriminates the two leaf shapes a Pattern variable can bind:
// an arbitrary group (used for relational/plan-level children) or a
// predicate satisfying a type filter (used for scalar/predicate
// children).
type VarKind uint8

const (
	VarGroup VarKind = iota
	VarPred
)

// TypeFilter reports whether a scalar tag is an acceptable match for a
// VarPred leaf. A nil filter accepts any scalar tag.
type TypeFilter func(tag memo.Tag) bool

// Pattern is a node-like tree mirroring plan.Node's shape but whose
// leaves may be pattern variables instead of concrete tags (spec.md
// §4.C). A Pattern never mentions a concrete group id; it is matched
// against a live group-expression by the matcher in binding.go.
type Pattern struct {
	// Var is set (IsVar true) for a leaf pattern variable.
	IsVar  bool
	VarIdx int
	VarK   VarKind
	Filter TypeFilter

	// Internal node fields, meaningful when IsVar is false.
	Tag      memo.Tag
	Children []*Pattern

	// IsList marks this pattern as matching a TagList child of arbitrary
	// arity (spec.md §3, "List is a distinguished tag whose arity is not
	// fixed"); Children must hold exactly one element pattern applied to
	// every member of the list.
	IsList bool
}

// AnyGroup returns a leaf pattern that matches any group and binds its id
// to varIdx in the resulting Binding.
func AnyGroup(varIdx int) *Pattern {
	return &Pattern{IsVar: true, VarIdx: varIdx, VarK: VarGroup}
}

// AnyPred returns a leaf pattern that matches any predicate group whose
// sole, or any, member's tag satisfies filter (nil accepts every scalar
// tag), binding the matched group's id to varIdx.
func AnyPred(varIdx int, filter TypeFilter) *Pattern {
	return &Pattern{IsVar: true, VarIdx: varIdx, VarK: VarPred, Filter: filter}
}

// Node returns an internal pattern node requiring an exact tag match and
// recursively matching each child pattern against the corresponding
// child group.
func Node(tag memo.Tag, children ...*Pattern) *Pattern {
	return &Pattern{Tag: tag, Children: children}
}

// AnyList returns a pattern matching a TagList child of any arity
// (including zero, per this implementation's resolution of spec.md §9's
// Open Question 1: an empty list is a legal match), applying elem to
// every element.
func AnyList(elem *Pattern) *Pattern {
	return &Pattern{IsList: true, Children: []*Pattern{elem}}
}

// Arity returns the number of direct children this pattern requires, and
// whether that arity is meaningful (false for leaves and list patterns).
func (p *Pattern) Arity() (int, bool) {
	if p.IsVar || p.IsList {
		return 0, false
	}
	return len(p.Children), true
}
