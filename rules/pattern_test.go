package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

func TestPatternArity(t *testing.T) {
	leaf := AnyGroup(0)
	n, fixed := leaf.Arity()
	require.False(t, fixed)
	require.Equal(t, 0, n)

	join := Node(plan.TagJoin, AnyGroup(0), AnyGroup(1))
	n, fixed = join.Arity()
	require.True(t, fixed)
	require.Equal(t, 2, n)

	list := AnyList(AnyGroup(0))
	_, fixed = list.Arity()
	require.False(t, fixed)
}

func TestAnyPredFilter(t *testing.T) {
	p := AnyPred(0, func(tag memo.Tag) bool { return tag == plan.TagConst })
	require.True(t, p.IsVar)
	require.Equal(t, VarPred, p.VarK)
	require.True(t, p.Filter(plan.TagConst))
	require.False(t, p.Filter(plan.TagColumnRef))
}
