package cascade_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/cascade"
	"github.com/quantumish/cascadeopt/catalog"
	"github.com/quantumish/cascadeopt/cost"
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

func eqPredicate(in *plan.Interner) *plan.Node {
	colA, _ := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(0, 0), nil)
	colB, _ := in.InternPred(plan.TagColumnRef, plan.ColumnRefPayload(1, 0), nil)
	eq, _ := in.InternPred(plan.TagBinaryOp, plan.OpPayload(plan.OpEq), []*plan.Node{colA, colB})
	return eq
}

func selfJoinPlan(t *testing.T) *plan.Node {
	in := plan.NewInterner()
	left, err := in.Intern(plan.TagScan, plan.TablePayload("t1"), nil)
	require.NoError(t, err)
	right, err := in.Intern(plan.TagScan, plan.TablePayload("t1"), nil)
	require.NoError(t, err)
	pred := eqPredicate(in)
	join, err := in.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{left, right, pred})
	require.NoError(t, err)
	return join
}

func twoTableJoinPlan(t *testing.T) *plan.Node {
	in := plan.NewInterner()
	left, err := in.Intern(plan.TagScan, plan.TablePayload("a"), nil)
	require.NoError(t, err)
	right, err := in.Intern(plan.TagScan, plan.TablePayload("b"), nil)
	require.NoError(t, err)
	pred := eqPredicate(in)
	join, err := in.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{left, right, pred})
	require.NoError(t, err)
	return join
}

func joinWithFalsePredicatePlan(t *testing.T) *plan.Node {
	in := plan.NewInterner()
	left, err := in.Intern(plan.TagScan, plan.TablePayload("a"), nil)
	require.NoError(t, err)
	right, err := in.Intern(plan.TagScan, plan.TablePayload("b"), nil)
	require.NoError(t, err)
	pred, err := in.InternPred(plan.TagConst, plan.BoolPayload(false), nil)
	require.NoError(t, err)
	join, err := in.Intern(plan.TagJoin, plan.JoinKindPayload(plan.JoinInner), []*plan.Node{left, right, pred})
	require.NoError(t, err)
	return join
}

func newOptimizer(t *testing.T, m *memo.Memo, opts cascade.Options) *cascade.Optimizer {
	reg, err := catalog.Default()
	require.NoError(t, err)
	return cascade.New(m, reg, opts)
}

func TestSelfJoinPicksHashJoin(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err := m.AddPlan(selfJoinPlan(t))
	require.NoError(t, err)

	opt := newOptimizer(t, m, cascade.DefaultOptions())
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	require.Equal(t, cascade.StatusComplete, res.Status)
	require.NotNil(t, res.Plan)
	require.Equal(t, plan.TagPhysicalHashJoin, res.Plan.Tag)
	require.Equal(t, 5000.0, res.WeightedCost)
}

func TestSimpleScanPicksPhysicalScan(t *testing.T) {
	in := plan.NewInterner()
	scan, err := in.Intern(plan.TagScan, plan.TablePayload("t"), nil)
	require.NoError(t, err)

	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err = m.AddPlan(scan)
	require.NoError(t, err)

	opt := newOptimizer(t, m, cascade.DefaultOptions())
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	require.Equal(t, cascade.StatusComplete, res.Status)
	require.Equal(t, plan.TagPhysicalScan, res.Plan.Tag)
	require.Equal(t, 1000.0, res.WeightedCost)
}

func TestEmptyRelationEliminatesAlwaysFalseJoin(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err := m.AddPlan(joinWithFalsePredicatePlan(t))
	require.NoError(t, err)

	opt := newOptimizer(t, m, cascade.DefaultOptions())
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	require.Equal(t, cascade.StatusComplete, res.Status)
	require.NotNil(t, res.Plan)
	require.Equal(t, plan.TagPhysicalEmptyRelation, res.Plan.Tag)
}

// TestMaxWeightedCostPruningReportsPartial exercises Options.MaxWeightedCost,
// the cost-ceiling pruning bound (spec.md §4.E upper-bound pruning): set low
// enough that no winner's cost fits under it, every candidate is pruned away
// and the result is Partial with no plan. This is a distinct mechanism from
// Options.BudgetTasks/BudgetWallMS below; see TestBudgetTasksCutoffReportsPartial.
func TestMaxWeightedCostPruningReportsPartial(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err := m.AddPlan(selfJoinPlan(t))
	require.NoError(t, err)

	opts := cascade.DefaultOptions()
	opts.MaxWeightedCost = 10
	opt := newOptimizer(t, m, opts)
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	require.Equal(t, cascade.StatusPartial, res.Status)
	require.Nil(t, res.Plan)
}

// TestBudgetTasksCutoffReportsPartial exercises Options.BudgetTasks (spec.md
// §4.E/§6/§8, "Budget"): a budget of 1 lets only the root group's own
// OptimizeGroup task run before the very next task-equivalent call
// (ExploreGroup) finds the budget spent, so the search unwinds with no
// physical alternative ever proposed for the root group — a genuine
// task-exhaustion cutoff, independent of MaxWeightedCost (left at its
// unlimited default here).
func TestBudgetTasksCutoffReportsPartial(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err := m.AddPlan(selfJoinPlan(t))
	require.NoError(t, err)

	opts := cascade.DefaultOptions()
	opts.BudgetTasks = 1
	opt := newOptimizer(t, m, opts)
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	require.Equal(t, cascade.StatusPartial, res.Status)
	require.Nil(t, res.Plan)
}

func TestEmptyMemoIsInfeasible(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	opt := newOptimizer(t, m, cascade.DefaultOptions())
	res, err := opt.Optimize(context.Background())
	require.NoError(t, err)
	require.Equal(t, cascade.StatusInfeasible, res.Status)
}

func TestReoptimizationSwitchesWinnerAfterStatsChange(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	joinNode := twoTableJoinPlan(t)
	root, err := m.AddPlan(joinNode)
	require.NoError(t, err)

	rootGrp := m.Group(root)
	require.Len(t, rootGrp.Members, 1)
	logicalJoin := m.Expr(rootGrp.Members[0])
	require.Len(t, logicalJoin.ChildGroups, 3)
	scanB := logicalJoin.ChildGroups[1]

	opt := newOptimizer(t, m, cascade.DefaultOptions())
	res1, err := opt.Optimize(context.Background())
	require.NoError(t, err)
	require.Equal(t, cascade.StatusComplete, res1.Status)
	require.Equal(t, plan.TagPhysicalHashJoin, res1.Plan.Tag, "with both sides at the default row count, hash join has the lower cost")

	require.NoError(t, m.SetRowCount(scanB, 1))
	res2, err := opt.Reoptimize(context.Background())
	require.NoError(t, err)
	require.Equal(t, cascade.StatusComplete, res2.Status)
	require.Equal(t, plan.TagPhysicalNestedLoopJoin, res2.Plan.Tag, "once the build side is tiny, the nested-loop join becomes cheaper")
	require.Less(t, res2.WeightedCost, res1.WeightedCost)
}

func TestOptimizeIsDeterministicAcrossRuns(t *testing.T) {
	run := func() []string {
		m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
		_, err := m.AddPlan(selfJoinPlan(t))
		require.NoError(t, err)
		opt := newOptimizer(t, m, cascade.DefaultOptions())
		_, err = opt.Optimize(context.Background())
		require.NoError(t, err)
		entries := m.StepLog().Entries()
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.String()
		}
		return out
	}
	a := run()
	b := run()
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
}

func TestOptimizeStrictErrorsOnInfeasible(t *testing.T) {
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	opt := newOptimizer(t, m, cascade.DefaultOptions())
	_, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	// A memo with no root is infeasible by construction (there is nothing
	// to optimize); OptimizeStrict must surface that as an error.
	_, err = opt.OptimizeStrict(context.Background())
	require.Error(t, err)
	require.True(t, cascade.ErrInfeasible.Is(err))
}
