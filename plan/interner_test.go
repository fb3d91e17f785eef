package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternDeterminism(t *testing.T) {
	in := NewInterner()

	a1, err := in.Intern(TagScan, TablePayload("t1"), nil)
	require.NoError(t, err)
	a2, err := in.Intern(TagScan, TablePayload("t1"), nil)
	require.NoError(t, err)
	require.Same(t, a1, a2, "structurally equal nodes must share identity")

	b, err := in.Intern(TagScan, TablePayload("t2"), nil)
	require.NoError(t, err)
	require.NotSame(t, a1, b)
	require.NotEqual(t, a1.Hash(), b.Hash())
}

func TestInternNested(t *testing.T) {
	in := NewInterner()

	left, _ := in.Intern(TagScan, TablePayload("a"), nil)
	right, _ := in.Intern(TagScan, TablePayload("b"), nil)

	colA, _ := in.InternPred(TagColumnRef, ColumnRefPayload(0, 0), nil)
	colB, _ := in.InternPred(TagColumnRef, ColumnRefPayload(1, 0), nil)
	eq1, err := in.InternPred(TagBinaryOp, OpPayload(OpEq), []*Node{colA, colB})
	require.NoError(t, err)

	j1, err := in.Intern(TagJoin, JoinKindPayload(JoinInner), []*Node{left, right, eq1})
	require.NoError(t, err)

	// Rebuild the identical tree independently; every node should intern
	// back to the same identity, including the join itself.
	left2, _ := in.Intern(TagScan, TablePayload("a"), nil)
	right2, _ := in.Intern(TagScan, TablePayload("b"), nil)
	colA2, _ := in.InternPred(TagColumnRef, ColumnRefPayload(0, 0), nil)
	colB2, _ := in.InternPred(TagColumnRef, ColumnRefPayload(1, 0), nil)
	eq2, _ := in.InternPred(TagBinaryOp, OpPayload(OpEq), []*Node{colA2, colB2})
	j2, err := in.Intern(TagJoin, JoinKindPayload(JoinInner), []*Node{left2, right2, eq2})
	require.NoError(t, err)

	require.Same(t, j1, j2)
	require.Equal(t, j1.Hash(), j2.Hash())
}

func TestInternArityValidation(t *testing.T) {
	in := NewInterner()
	scan, _ := in.Intern(TagScan, TablePayload("t"), nil)
	_, err := in.Intern(TagFilter, Payload{}, []*Node{scan, scan, scan})
	require.Error(t, err)
}

func TestInternDistinguishesPredicateFromRelational(t *testing.T) {
	in := NewInterner()
	_, err := in.InternPred(TagScan, TablePayload("t"), nil)
	require.Error(t, err)
}

func TestNodeString(t *testing.T) {
	in := NewInterner()
	scan, _ := in.Intern(TagScan, TablePayload("t1"), nil)
	require.Equal(t, "(scan: t1)", scan.String())
}
