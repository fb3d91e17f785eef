package plan

import "fmt"

// Node is a free-standing plan or predicate node: immutable once built,
// with children that are themselves Nodes. This is the flavor used by the
// heuristic driver (package heuristic), which rewrites directly on the
// node model without a memo, and by callers building a plan to hand to
// the memo via Memo.AddPlan.
//
// Inside the memo, the analogous unit is memo.GroupExpr, whose children
// are group ids rather than Nodes. The two are deliberately distinct Go
// types so a group-expression can never be mistaken for a free node.
type Node struct {
	Tag      Tag
	Payload  Payload
	Children []*Node

	hash uint64
}

// Hash returns the node's content hash over (tag, payload, child
// identities), stable across processes for a given (tag, payload,
// children) triple. Two nodes with equal hashes built through the same
// Interner are the same object (see Interner.Intern).
func (n *Node) Hash() uint64 { return n.hash }

// Equal reports whether two nodes (possibly from different interners)
// have the same tag, payload and structurally equal children.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil {
		return false
	}
	if n.Tag != o.Tag || !n.Payload.Equal(o.Payload) || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if len(n.Children) == 0 {
		if n.Payload.Kind == PayloadNone {
			return n.Tag.String()
		}
		return fmt.Sprintf("(%s: %s)", n.Tag, n.Payload)
	}
	s := "(" + n.Tag.String()
	if n.Payload.Kind != PayloadNone {
		s += " " + n.Payload.String()
	}
	for _, c := range n.Children {
		s += " " + c.String()
	}
	return s + ")"
}
