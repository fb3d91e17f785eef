package cost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

func TestScanCostMatchesLiteralScenario(t *testing.T) {
	p := NewDefaultCoster()
	c := p.PlanCost(plan.TagPhysicalScan, plan.TablePayload("t1"), nil, nil)
	require.Equal(t, float64(1000), c.IO)
	require.Equal(t, float64(0), c.Compute)
}

func TestSelfJoinHashJoinCostMatchesLiteralScenario(t *testing.T) {
	coster := NewDefaultCoster()
	carder := NewDefaultCarder()

	scanProps := carder.DeriveLogical(plan.TagPhysicalScan, plan.TablePayload("t1"), nil)
	scanCost := coster.PlanCost(plan.TagPhysicalScan, plan.TablePayload("t1"), nil, nil)

	joinProps := carder.DeriveLogical(plan.TagPhysicalHashJoin, memo.Payload{}, []*memo.LogicalProps{scanProps, scanProps})
	require.Equal(t, float64(1000), joinProps.RowCount)

	joinCost := coster.PlanCost(plan.TagPhysicalHashJoin, memo.Payload{}, []*memo.LogicalProps{scanProps, scanProps}, []memo.Cost{scanCost, scanCost})
	require.Equal(t, float64(5000), coster.Weight(joinCost))
}

func TestNestedLoopJoinMoreExpensiveThanHashJoin(t *testing.T) {
	coster := NewDefaultCoster()
	carder := NewDefaultCarder()
	scanProps := carder.DeriveLogical(plan.TagPhysicalScan, plan.TablePayload("t1"), nil)
	scanCost := coster.PlanCost(plan.TagPhysicalScan, plan.TablePayload("t1"), nil, nil)

	hashCost := coster.PlanCost(plan.TagPhysicalHashJoin, memo.Payload{}, []*memo.LogicalProps{scanProps, scanProps}, []memo.Cost{scanCost, scanCost})
	nlCost := coster.PlanCost(plan.TagPhysicalNestedLoopJoin, memo.Payload{}, []*memo.LogicalProps{scanProps, scanProps}, []memo.Cost{scanCost, scanCost})

	require.Greater(t, coster.Weight(nlCost), coster.Weight(hashCost))
}

func TestEmptyRelationRowCountZero(t *testing.T) {
	carder := NewDefaultCarder()
	props := carder.DeriveLogical(plan.TagPhysicalEmptyRelation, memo.Payload{}, nil)
	require.Equal(t, float64(0), props.RowCount)
}

func TestEnforceOnlyForSortRequirements(t *testing.T) {
	carder := NewDefaultCarder()
	_, _, ok := carder.Enforce(memo.PhysicalProps{}, memo.PhysicalProps{})
	require.False(t, ok)

	want := memo.PhysicalProps{SortCols: []memo.SortKey{{Col: memo.ColumnRef{Table: 0, Col: 0}, Asc: true}}}
	tag, _, ok := carder.Enforce(memo.PhysicalProps{}, want)
	require.True(t, ok)
	require.Equal(t, plan.TagEnforcerSort, tag)
}
