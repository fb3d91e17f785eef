package trace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/cascade"
	"github.com/quantumish/cascadeopt/catalog"
	"github.com/quantumish/cascadeopt/cost"
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
	"github.com/quantumish/cascadeopt/trace"
)

func selfJoinPlan(t *testing.T) *plan.Node {
	in := plan.NewInterner()
	left, err := in.Intern(plan.TagScan, plan.TablePayload("t1"), nil)
	require.NoError(t, err)
	right, err := in.Intern(plan.TagScan, plan.TablePayload("t1"), nil)
	require.NoError(t, err)
	colA, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	colB, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(1, 0), nil)
	require.NoError(t, err)
	pred, err := in.InternPred(plan.TagBinaryOp, plan.OpPayload(plan.OpEq), []*plan.Node{colA, colB})
	require.NoError(t, err)
	join, err := in.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{left, right, pred})
	require.NoError(t, err)
	return join
}

func optimizedMemo(t *testing.T) (*memo.Memo, memo.GroupID) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	root, err := m.AddPlan(selfJoinPlan(t))
	require.NoError(t, err)
	reg, err := catalog.Default()
	require.NoError(t, err)
	opt := cascade.New(m, reg, cascade.DefaultOptions())
	_, err = opt.Optimize(context.Background())
	require.NoError(t, err)
	return m, root
}

func TestExplainPlainShowsPhysicalJoin(t *testing.T) {
	m, root := optimizedMemo(t)
	out, ok := trace.Explain(m, root, trace.Plain)
	require.True(t, ok)
	require.Contains(t, out, "hashjoin")
	require.Contains(t, out, "scan(t1)")
}

func TestExplainVerboseIncludesCost(t *testing.T) {
	m, root := optimizedMemo(t)
	out, ok := trace.Explain(m, root, trace.Verbose)
	require.True(t, ok)
	require.Contains(t, out, "weighted_cost=5000")
}

func TestExplainMemoMatchesSerialize(t *testing.T) {
	m, root := optimizedMemo(t)
	out, ok := trace.Explain(m, root, trace.Memo)
	require.True(t, ok)

	var b strings.Builder
	require.NoError(t, m.Serialize(&b))
	require.Equal(t, b.String(), out)
}

func TestExplainJoinOrdersListsAlternatives(t *testing.T) {
	m, root := optimizedMemo(t)
	out, ok := trace.Explain(m, root, trace.JoinOrders)
	require.True(t, ok)
	require.Contains(t, out, "join=join")
	require.Contains(t, out, "join=hashjoin")
	require.Contains(t, out, "join=nestedloopjoin")
}

func TestExplainOnEmptyMemoFailsForTreeFormats(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, ok := trace.Explain(m, memo.GroupID(0), trace.Plain)
	require.False(t, ok)
}
