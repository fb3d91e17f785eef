package heuristic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/heuristic"
	"github.com/quantumish/cascadeopt/plan"
)

func TestDoubleNegationCollapses(t *testing.T) {
	in := plan.NewInterner()
	col, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	not1, err := in.InternPred(plan.TagUnaryOp, plan.OpPayload(plan.OpNot), []*plan.Node{col})
	require.NoError(t, err)
	not2, err := in.InternPred(plan.TagUnaryOp, plan.OpPayload(plan.OpNot), []*plan.Node{not1})
	require.NoError(t, err)

	d := heuristic.NewDriver(in, heuristic.DoubleNegation{})
	out, n := d.Rewrite(not2)
	require.Equal(t, 1, n)
	require.Equal(t, col, out)
}

func TestFoldAndTrueDropsConstant(t *testing.T) {
	in := plan.NewInterner()
	col, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	trueLit, err := in.InternPred(plan.TagConst, plan.BoolPayload(true), nil)
	require.NoError(t, err)
	and, err := in.InternPred(plan.TagLogicalOp, plan.OpPayload(plan.OpAnd), []*plan.Node{col, trueLit})
	require.NoError(t, err)

	d := heuristic.NewDriver(in, heuristic.FoldAndTrue{})
	out, n := d.Rewrite(and)
	require.Equal(t, 1, n)
	require.Equal(t, col, out)
}

func TestMergeFiltersCombinesPredicates(t *testing.T) {
	in := plan.NewInterner()
	scan, err := in.Intern(plan.TagScan, plan.TablePayload("t"), nil)
	require.NoError(t, err)
	col, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	p1, err := in.InternPred(plan.TagUnaryOp, plan.OpPayload(plan.OpNot), []*plan.Node{col})
	require.NoError(t, err)
	p2, err := in.InternPred(plan.TagConst, plan.BoolPayload(true), nil)
	require.NoError(t, err)
	innerFilter, err := in.Intern(plan.TagFilter, plan.Payload{}, []*plan.Node{scan, p1})
	require.NoError(t, err)
	outerFilter, err := in.Intern(plan.TagFilter, plan.Payload{}, []*plan.Node{innerFilter, p2})
	require.NoError(t, err)

	d := heuristic.NewDriver(in, heuristic.MergeFilters{})
	out, n := d.Rewrite(outerFilter)
	require.Equal(t, 1, n)
	require.Equal(t, plan.TagFilter, out.Tag)
	require.Len(t, out.Children, 2)
	require.Equal(t, scan, out.Children[0])
	require.Equal(t, plan.TagLogicalOp, out.Children[1].Tag)
	require.Equal(t, plan.OpAnd, out.Children[1].Payload.Op)
}

func TestDriverAppliesAllRulesInOnePass(t *testing.T) {
	in := plan.NewInterner()
	scan, err := in.Intern(plan.TagScan, plan.TablePayload("t"), nil)
	require.NoError(t, err)
	col, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	not1, err := in.InternPred(plan.TagUnaryOp, plan.OpPayload(plan.OpNot), []*plan.Node{col})
	require.NoError(t, err)
	not2, err := in.InternPred(plan.TagUnaryOp, plan.OpPayload(plan.OpNot), []*plan.Node{not1})
	require.NoError(t, err)
	trueLit, err := in.InternPred(plan.TagConst, plan.BoolPayload(true), nil)
	require.NoError(t, err)
	and, err := in.InternPred(plan.TagLogicalOp, plan.OpPayload(plan.OpAnd), []*plan.Node{not2, trueLit})
	require.NoError(t, err)
	filter, err := in.Intern(plan.TagFilter, plan.Payload{}, []*plan.Node{scan, and})
	require.NoError(t, err)

	d := heuristic.NewDriver(in, heuristic.DefaultRules()...)
	out, n := d.Rewrite(filter)
	require.Greater(t, n, 0)
	require.Equal(t, plan.TagFilter, out.Tag)
	require.Equal(t, col, out.Children[1], "double negation collapses and the constant-true conjunct drops, leaving the bare column predicate")
}

func TestDriverIsIdempotentOnAlreadyRewrittenTree(t *testing.T) {
	in := plan.NewInterner()
	scan, err := in.Intern(plan.TagScan, plan.TablePayload("t"), nil)
	require.NoError(t, err)
	col, err := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	require.NoError(t, err)
	filter, err := in.Intern(plan.TagFilter, plan.Payload{}, []*plan.Node{scan, col})
	require.NoError(t, err)

	d := heuristic.NewDriver(in, heuristic.DefaultRules()...)
	out, n := d.Rewrite(filter)
	require.Equal(t, 0, n)
	require.Equal(t, filter, out)
}
