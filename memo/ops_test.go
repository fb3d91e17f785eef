package memo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/plan"
)

func TestMergeGroupsRejectsSchemaMismatch(t *testing.T) {
	m := New(testProvider{}, testProvider{})

	ga := m.allocGroup()
	ga.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}}}

	gb := m.allocGroup()
	gb.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}, {Name: "y", Type: "int"}}}

	_, err := m.MergeGroups(ga.ID, gb.ID)
	require.Error(t, err)
	require.True(t, ErrInternal.Is(err))
}

func TestMergeGroupsPicksLowerIDDeterministically(t *testing.T) {
	m := New(testProvider{}, testProvider{})

	ga := m.allocGroup()
	ga.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}}}
	gb := m.allocGroup()
	gb.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}}}

	survivor1, err := m.MergeGroups(ga.ID, gb.ID)
	require.NoError(t, err)

	m2 := New(testProvider{}, testProvider{})
	ga2 := m2.allocGroup()
	ga2.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}}}
	gb2 := m2.allocGroup()
	gb2.LogicalProps = &LogicalProps{Schema: []ColumnDef{{Name: "x", Type: "int"}}}

	survivor2, err := m2.MergeGroups(gb2.ID, ga2.ID) // reversed call order
	require.NoError(t, err)

	require.Equal(t, survivor1, ga.ID)
	require.Equal(t, survivor2, ga2.ID)
}

func TestMergeGroupsRewritesReferrers(t *testing.T) {
	interner := plan.NewInterner()
	m := New(testProvider{}, testProvider{})

	scanA, err := m.AddPlan(scanNode(interner, "a"))
	require.NoError(t, err)
	scanB, err := m.AddPlan(scanNode(interner, "b"))
	require.NoError(t, err)

	jnAB, err := interner.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{scanNode(interner, "a"), scanNode(interner, "b"), truePred(interner)})
	require.NoError(t, err)
	groupAB, err := m.AddPlan(jnAB)
	require.NoError(t, err)

	jnBA, err := interner.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{scanNode(interner, "b"), scanNode(interner, "a"), truePred(interner)})
	require.NoError(t, err)
	groupBA, err := m.AddPlan(jnBA)
	require.NoError(t, err)

	// A second, distinct relation above the join that the merge discards
	// (groupBA has the higher id), to exercise the referrer rewrite (not
	// just the merged groups themselves).
	limitNode, err := interner.Intern(plan.TagLimit, Payload{}, []*plan.Node{jnBA})
	require.NoError(t, err)
	groupLimit, err := m.AddPlan(limitNode)
	require.NoError(t, err)

	merged, err := m.MergeGroups(groupAB, groupBA)
	require.NoError(t, err)

	limitExpr := m.Expr(m.Group(groupLimit).Members[0])
	require.Equal(t, merged, limitExpr.ChildGroups[0], "the limit's child reference must follow the merge")
	_ = scanA
	_ = scanB
}

func TestGetLogicalPropsLazy(t *testing.T) {
	interner := plan.NewInterner()
	m := New(testProvider{}, testProvider{})

	g, err := m.AddPlan(scanNode(interner, "t"))
	require.NoError(t, err)

	props := m.GetLogicalProps(g)
	require.NotNil(t, props)
	require.Equal(t, float64(100), props.RowCount)
}
