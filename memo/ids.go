// Package memo implements the Cascades memo table: groups (logical
// equivalence classes), group-expressions (nodes whose children are group
// ids), winners, and the stable textual persistence format used for
// re-optimization across runs. This is component B (and the textual half
// of component G) of the optimizer design.
package memo

import "fmt"

// GroupID identifies a Group. Groups are dense and assigned at creation;
// id 0 is never valid (the zero value means "no group").
type GroupID int

func (g GroupID) String() string { return fmt.Sprintf("%d", int(g)) }

// Valid reports whether g refers to an allocated group.
func (g GroupID) Valid() bool { return g > 0 }

// ExprID identifies a GroupExpr. Dense, assigned at creation; id 0 is
// never valid.
type ExprID int

func (e ExprID) String() string { return fmt.Sprintf("%d", int(e)) }

func (e ExprID) Valid() bool { return e > 0 }
