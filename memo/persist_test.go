package memo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/plan"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	interner := plan.NewInterner()
	m := New(testProvider{}, testProvider{})

	left := scanNode(interner, "a")
	right := scanNode(interner, "b")
	joinNode, err := interner.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{left, right, truePred(interner)})
	require.NoError(t, err)

	root, err := m.AddPlan(joinNode)
	require.NoError(t, err)

	g := m.Group(root)
	e := m.Expr(g.Members[0])
	accepted, err := m.ProposeWinner(root, PhysicalProps{}, e.ID, []ExprID{1, 2}, Cost{Compute: 3, IO: 2})
	require.NoError(t, err)
	require.True(t, accepted)
	require.NoError(t, m.RecordApplied(root, e.ID, 5, 0))
	m.LogPlanStep(root, e.ID, e.ID, 5)

	var buf bytes.Buffer
	require.NoError(t, m.Serialize(&buf))

	m2, err := Deserialize(&buf, testProvider{}, testProvider{})
	require.NoError(t, err)

	require.Equal(t, m.NumGroups(), m2.NumGroups())
	require.Equal(t, m.Root(), m2.Root())

	w1 := m.Winner(root, PhysicalProps{})
	w2 := m2.Winner(root, PhysicalProps{})
	require.NotNil(t, w2)
	require.Equal(t, w1.ExprID, w2.ExprID)
	require.Equal(t, w1.Cost, w2.Cost)
	require.InDelta(t, w1.Weighted, w2.Weighted, 1e-9)

	require.Equal(t, len(m.StepLog().Entries()), len(m2.StepLog().Entries()))

	g2 := m2.Group(root)
	require.NotNil(t, g2.LogicalProps)
	require.Equal(t, g.LogicalProps.Schema, g2.LogicalProps.Schema)
}

func TestSerializeStable(t *testing.T) {
	interner := plan.NewInterner()
	mkMemo := func() *Memo {
		m := New(testProvider{}, testProvider{})
		n, err := interner.Intern(plan.TagScan, plan.TablePayload("t"), nil)
		require.NoError(t, err)
		_, err = m.AddPlan(n)
		require.NoError(t, err)
		return m
	}

	m1 := mkMemo()
	m2 := mkMemo()

	var b1, b2 bytes.Buffer
	require.NoError(t, m1.Serialize(&b1))
	require.NoError(t, m2.Serialize(&b2))
	require.Equal(t, b1.String(), b2.String(), "serializing two memos built from the same plan must be byte-identical")
}
