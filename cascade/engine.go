package cascade

import (
	"context"
	"math"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
	"github.com/quantumish/cascadeopt/rules"
)

// Status classifies the outcome of an Optimize call.
type Status int

const (
	// StatusInfeasible means the full search (no budget involved) found
	// no implementation satisfying the requested properties.
	StatusInfeasible Status = iota
	// StatusPartial means the search stopped before exhausting every
	// alternative, either because Options.BudgetTasks/BudgetWallMS ran out
	// (spec.md §4.E/§6, "Budget") or because Options.MaxWeightedCost's
	// pruning bound eliminated every candidate before one could win. A
	// higher budget, or a higher MaxWeightedCost, might still find (or
	// find a better) winner.
	StatusPartial
	// StatusComplete means a winner was found for the root group.
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusInfeasible:
		return "infeasible"
	case StatusPartial:
		return "partial"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StageSpec configures one optimization pass (spec.md §4.E, "multi-stage
// optimization"). Kinds restricts which rule.Kind values may fire during
// this stage; a nil/empty Kinds allows every kind.
type StageSpec struct {
	Name  string       `yaml:"name"`
	Kinds []rules.Kind `yaml:"kinds,omitempty"`
}

// Options configures an Optimizer run.
type Options struct {
	// Stages lists the optimization passes to run in order. A memo
	// carries its applied-rule history across stages (AdvanceStage), so a
	// later stage can re-fire rules the earlier one skipped if it enables
	// a Kind the earlier stage didn't.
	Stages []StageSpec `yaml:"stages"`
	// MaxWeightedCost bounds the total weighted cost a winner may carry;
	// zero means unlimited. Only meaningful when PruneEnabled is true. This
	// is a cost-ceiling used for upper-bound pruning (spec.md §4.E), not
	// the task/wall-clock Budget below: it can only ever make the search
	// find the *same* winner with less work, or find none at all if the
	// ceiling is set below every winner's true cost (spec.md §8, testable
	// property 5).
	MaxWeightedCost float64 `yaml:"max_weighted_cost"`
	// PruneEnabled turns on upper-bound pruning (spec.md §4.E). Disabling
	// it must never change which plan wins, only how much of the search
	// space is visited to find it (spec.md §8, testable property 5).
	PruneEnabled bool `yaml:"prune_enabled"`
	// BudgetTasks caps the number of task-equivalent calls (OptimizeGroup,
	// ExploreGroup, ExploreExpression, ApplyRule, OptimizeExpression; see
	// Optimizer.task) a single Optimize call may make; zero means
	// unlimited. Spent across every stage of a single Optimize call, not
	// reset per stage. Exceeding it stops the search and reports whatever
	// winners were already found as StatusPartial (spec.md §4.E/§6,
	// "Budget"; §8, "Budget cutoff").
	BudgetTasks int `yaml:"budget_tasks"`
	// BudgetWallMS caps wall-clock time in milliseconds from the start of
	// Optimize; zero means unlimited. Checked at the same call sites as
	// BudgetTasks.
	BudgetWallMS int64 `yaml:"budget_wall_ms"`

	Logger *logrus.Logger     `yaml:"-"`
	Tracer opentracing.Tracer `yaml:"-"`
}

// DefaultOptions returns a single-stage, unbounded, pruning-enabled
// configuration logging through logrus's standard logger.
func DefaultOptions() Options {
	return Options{
		Stages:       []StageSpec{{Name: "default"}},
		PruneEnabled: true,
	}
}

// OptimizationResult is what Optimize returns: the winning plan (if any),
// its cost, and enough metadata to explain or persist the run.
type OptimizationResult struct {
	RunID        string
	Stage        int
	Status       Status
	Plan         *plan.Node
	Cost         memo.Cost
	WeightedCost float64
	StepCount    int
}

// Optimizer drives a Memo through the Cascades search (component E of the
// optimizer design): exploring transformations, deriving physical
// implementations, costing them, and proposing winners, bottom-up from
// whatever groups a given subgoal's expressions reference.
type Optimizer struct {
	memo     *memo.Memo
	registry *rules.Registry
	opts     Options
	runID    string

	ctx              context.Context
	currentStage     int
	currentStageKind map[rules.Kind]bool // nil means every kind is allowed
	log              *logrus.Entry

	taskCount int
	deadline  time.Time // zero value means no wall-clock budget
	budgetHit bool
}

// New builds an Optimizer bound to m and reg. opts.Logger/opts.Tracer
// default to logrus's and opentracing's globals when nil; opts.Stages
// defaults to a single unrestricted stage when empty.
func New(m *memo.Memo, reg *rules.Registry, opts Options) *Optimizer {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = opentracing.GlobalTracer()
	}
	if len(opts.Stages) == 0 {
		opts.Stages = []StageSpec{{Name: "default"}}
	}
	runID := ""
	if id, err := uuid.NewV4(); err == nil {
		runID = id.String()
	}
	o := &Optimizer{memo: m, registry: reg, opts: opts, runID: runID}
	o.log = opts.Logger.WithFields(logrus.Fields{"system": "cascade", "run_id": runID})
	return o
}

// RunID returns the run identifier assigned at construction. It is
// attached to the engine's log entries and Optimize span and returned in
// every OptimizationResult.
func (o *Optimizer) RunID() string { return o.runID }

// Optimize runs every configured stage against the memo's root group and
// returns the best winner found, or a non-Complete status if none was.
func (o *Optimizer) Optimize(ctx context.Context) (*OptimizationResult, error) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, o.opts.Tracer, "cascade.Optimize")
	defer span.Finish()
	span.SetTag("run_id", o.runID)
	o.ctx = ctx
	o.taskCount = 0
	o.budgetHit = false
	o.deadline = time.Time{}
	if o.opts.BudgetWallMS > 0 {
		o.deadline = time.Now().Add(time.Duration(o.opts.BudgetWallMS) * time.Millisecond)
	}

	root := o.memo.Root()
	if !root.Valid() {
		return &OptimizationResult{RunID: o.runID, Status: StatusInfeasible}, nil
	}

	bound := o.opts.MaxWeightedCost
	if bound <= 0 {
		bound = math.Inf(1)
	}

	for idx, stage := range o.opts.Stages {
		o.currentStage = idx
		o.currentStageKind = kindSet(stage.Kinds)
		o.log.WithFields(logrus.Fields{"stage": idx, "name": stage.Name}).Info("entering optimization stage")
		if err := o.OptimizeGroup(root, memo.PhysicalProps{}, bound); err != nil {
			return nil, err
		}
		if idx < len(o.opts.Stages)-1 {
			o.memo.AdvanceStage()
		}
	}

	return o.result(root), nil
}

// Reoptimize clears every subgoal's winner (preserving applied-rule
// history, so already-explored transformations are not repeated) and runs
// Optimize again. Intended for use after refined statistics have been fed
// back into the memo via Memo.SetRowCount (spec.md §4.F).
func (o *Optimizer) Reoptimize(ctx context.Context) (*OptimizationResult, error) {
	o.memo.ClearWinners()
	return o.Optimize(ctx)
}

// OptimizeStrict is Optimize but turns a non-Complete status into an
// error, for callers that have no use for a partial result.
func (o *Optimizer) OptimizeStrict(ctx context.Context) (*OptimizationResult, error) {
	res, err := o.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case StatusPartial:
		return nil, ErrBudgetExceeded.New(int(o.memo.Root()))
	case StatusInfeasible:
		return nil, ErrInfeasible.New(int(o.memo.Root()))
	}
	return res, nil
}

func (o *Optimizer) result(root memo.GroupID) *OptimizationResult {
	res := &OptimizationResult{RunID: o.runID, Stage: o.memo.Stage(), StepCount: o.memo.StepLog().Len()}
	w := o.memo.Winner(root, memo.PhysicalProps{})
	if w == nil {
		res.Status = StatusInfeasible
		if o.budgetHit || (!math.IsInf(o.opts.MaxWeightedCost, 0) && o.opts.MaxWeightedCost > 0) {
			res.Status = StatusPartial
		}
		return res
	}
	node, ok := rules.MaterializeGroup(o.memo, root)
	if !ok {
		res.Status = StatusPartial
		return res
	}
	res.Plan = node
	res.Cost = w.Cost
	res.WeightedCost = w.Weighted
	res.Status = StatusComplete
	if o.budgetHit {
		res.Status = StatusPartial
	}
	return res
}

func (o *Optimizer) ruleAllowed(r rules.Rule) bool {
	if o.currentStageKind == nil {
		return true
	}
	return o.currentStageKind[r.Kind()]
}

func kindSet(kinds []rules.Kind) map[rules.Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	s := make(map[rules.Kind]bool, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

func (o *Optimizer) canceled() bool {
	if o.ctx == nil {
		return false
	}
	select {
	case <-o.ctx.Done():
		return true
	default:
		return false
	}
}

// task counts one task-equivalent call (OptimizeGroup, ExploreGroup,
// ExploreExpression, ApplyRule or OptimizeExpression; see search.go's call
// sites) against Options.BudgetTasks/BudgetWallMS and reports whether the
// caller may proceed. Once either limit is hit, every subsequent task call
// returns false for the rest of this Optimize invocation (o.budgetHit
// latches), so the search unwinds without doing further work rather than
// stopping only the one subgoal that happened to hit the ceiling.
func (o *Optimizer) task() bool {
	if o.budgetHit {
		return false
	}
	o.taskCount++
	if o.opts.BudgetTasks > 0 && o.taskCount > o.opts.BudgetTasks {
		o.budgetHit = true
		return false
	}
	if !o.deadline.IsZero() && !time.Now().Before(o.deadline) {
		o.budgetHit = true
		return false
	}
	return true
}
