package cascade

import (
	"github.com/sirupsen/logrus"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
	"github.com/quantumish/cascadeopt/rules"
)

// OptimizeGroup is the engine's entry point for a single subgoal
// (spec.md §4.E): ensure group's logical alternatives are fully explored,
// every logical member has a physical implementation, every physical
// member is costed, and the cheapest is recorded as the group's winner
// under props. Costing a non-zero subgoal is a two-step composition: first
// the zero-properties winner is secured, then an enforcer is layered on
// top of it if needed (spec.md §9, Open Question 2 — this implementation
// resolves "what does a non-trivial subgoal search look like" by treating
// every PhysicalProps as "the zero-props plan, possibly enforced").
func (o *Optimizer) OptimizeGroup(g memo.GroupID, props memo.PhysicalProps, upperBound float64) error {
	if o.canceled() {
		return o.ctx.Err()
	}
	if w := o.memo.Winner(g, props); w != nil {
		return nil
	}
	if !o.task() {
		return nil
	}

	if !isZeroProps(props) {
		if err := o.OptimizeGroup(g, memo.PhysicalProps{}, upperBound); err != nil {
			return err
		}
		return o.enforce(g, props, upperBound)
	}

	if err := o.exploreGroup(g); err != nil {
		return err
	}

	grp := o.memo.Group(g)
	if grp == nil {
		return nil
	}
	for i := 0; i < len(grp.Members); i++ {
		eid := grp.Members[i]
		ge := o.memo.Expr(eid)
		if ge == nil || ge.Tag.IsPhysical() {
			continue
		}
		if err := o.implement(g, eid); err != nil {
			return err
		}
		grp = o.memo.Group(g)
	}

	grp = o.memo.Group(g)
	for i := 0; i < len(grp.Members); i++ {
		eid := grp.Members[i]
		ge := o.memo.Expr(eid)
		if ge == nil || !ge.Tag.IsPhysical() {
			continue
		}
		if err := o.optimizeExpr(g, eid, upperBound); err != nil {
			return err
		}
		grp = o.memo.Group(g)
	}

	if o.memo.Winner(g, memo.PhysicalProps{}) == nil {
		o.memo.MarkImpossible(g, memo.PhysicalProps{})
	}
	return nil
}

// exploreGroup fires every transformation rule (ExploreExpression, spec.md
// §4.E) against every member of g, including members that transformations
// themselves add mid-loop, until the member set stops growing. Child
// groups referenced by a member are explored first so a transformation
// pattern matching against a child sees every logical form that child can
// take, not just the one it happened to be built with.
func (o *Optimizer) exploreGroup(g memo.GroupID) error {
	if !o.task() {
		return nil
	}
	if grp := o.memo.Group(g); grp != nil {
		if grp.InProgress {
			return nil
		}
		grp.InProgress = true
		defer func() { grp.InProgress = false }()
	}
	for i := 0; ; i++ {
		grp := o.memo.Group(g)
		if grp == nil || i >= len(grp.Members) {
			return nil
		}
		if err := o.exploreExpr(g, grp.Members[i]); err != nil {
			return err
		}
	}
}

func (o *Optimizer) exploreExpr(g memo.GroupID, e memo.ExprID) error {
	if o.canceled() {
		return o.ctx.Err()
	}
	if !o.task() {
		return nil
	}
	ge := o.memo.Expr(e)
	if ge == nil {
		return nil
	}
	for _, cg := range ge.ChildGroups {
		if o.isScalarGroup(cg) {
			continue
		}
		if err := o.exploreGroup(cg); err != nil {
			return err
		}
	}

	stage := o.memo.Stage()
	for _, r := range o.registry.ForKindAndStage(rules.Transformation, stage) {
		if !o.ruleAllowed(r) {
			continue
		}
		if o.memo.HasApplied(g, e, r.ID(), stage) {
			continue
		}
		if err := o.fireRule(g, e, r); err != nil {
			return err
		}
	}
	return nil
}

// implement fires every implementation rule applicable to a logical member
// e of g, producing its physical alternatives (spec.md §4.C: implementation
// rules "produce a physical expression for a logical one").
func (o *Optimizer) implement(g memo.GroupID, e memo.ExprID) error {
	stage := o.memo.Stage()
	for _, r := range o.registry.ForKindAndStage(rules.Implementation, stage) {
		if !o.ruleAllowed(r) {
			continue
		}
		if o.memo.HasApplied(g, e, r.ID(), stage) {
			continue
		}
		if err := o.fireRule(g, e, r); err != nil {
			return err
		}
	}
	return nil
}

// fireRule matches r against e, applies it to every binding found, and
// inserts every replacement back into g, then records (g, e, r) as
// attempted regardless of whether any binding matched (invariant 6: a rule
// is attempted against a given expression at most once per stage). A rule
// application error is caught and logged as rule_failed rather than
// propagated (spec.md §7: rule failures are non-fatal).
func (o *Optimizer) fireRule(g memo.GroupID, e memo.ExprID, r rules.Rule) error {
	if !o.task() {
		return nil
	}
	stage := o.memo.Stage()
	for _, b := range rules.MatchExpr(o.memo, e, r.Pattern()) {
		repls, err := r.Apply(b, o.memo)
		if err != nil {
			o.memo.LogRuleFailed(g, e, r.ID(), err.Error())
			o.log.WithFields(logrus.Fields{"group": g, "expr": e, "rule": r.ID()}).WithError(err).Warn("rule application failed")
			continue
		}
		for _, repl := range repls {
			if err := o.insertReplacement(g, e, r.ID(), repl); err != nil {
				o.memo.LogRuleFailed(g, e, r.ID(), err.Error())
				o.log.WithFields(logrus.Fields{"group": g, "expr": e, "rule": r.ID()}).WithError(err).Warn("rule replacement rejected")
			}
		}
	}
	if err := o.memo.RecordApplied(g, e, r.ID(), stage); err != nil && !memo.ErrAlreadyApplied.Is(err) {
		return err
	}
	return nil
}

// insertReplacement walks a rule's replacement tree, recursively interning
// any genuinely new structure and resolving plan.TagPlaceholder leaves to
// the existing group they reference (spec.md §4.A: Placeholder "never
// appears in a materialized plan"; here it is the seam a rule uses to
// refer to an already-bound group without rebuilding it), then adds the
// replacement's root to target.
func (o *Optimizer) insertReplacement(target memo.GroupID, source memo.ExprID, ruleID uint16, n *plan.Node) error {
	childGroups := make([]memo.GroupID, len(n.Children))
	for i, c := range n.Children {
		if c.Tag == plan.TagPlaceholder {
			childGroups[i] = memo.GroupID(c.Payload.GroupRef)
			continue
		}
		cg, err := o.memo.InternChild(c)
		if err != nil {
			return err
		}
		childGroups[i] = cg
	}
	exprID, _, err := o.memo.AddExprToGroup(target, n.Tag, n.Payload, childGroups)
	if err != nil {
		return err
	}
	o.memo.LogPlanStep(target, source, exprID, ruleID)
	return nil
}

// optimizeExpr costs a single physical member of g (OptimizeExpression,
// spec.md §4.E): recursively optimize each non-scalar child group under
// zero properties, accumulate their winners' cost, add this expression's
// own marginal cost, and propose the total as g's winner. A scalar child
// (a predicate) contributes no cost and needs no winner of its own; its
// sole member stands in directly (spec.md §9, resolving how predicate
// children interact with costing: they are fixed, not searched).
func (o *Optimizer) optimizeExpr(g memo.GroupID, e memo.ExprID, upperBound float64) error {
	if o.canceled() {
		return o.ctx.Err()
	}
	if !o.task() {
		return nil
	}
	ge := o.memo.Expr(e)
	if ge == nil {
		return nil
	}
	childWinners := make([]memo.ExprID, len(ge.ChildGroups))
	childCosts := make([]memo.Cost, len(ge.ChildGroups))
	running := 0.0

	for i, cg := range ge.ChildGroups {
		if o.isScalarGroup(cg) {
			childWinners[i] = o.scalarMember(cg)
			continue
		}
		remaining := upperBound - running
		if o.opts.PruneEnabled && remaining < 0 {
			return nil
		}
		if err := o.OptimizeGroup(cg, memo.PhysicalProps{}, remaining); err != nil {
			return err
		}
		w := o.memo.Winner(cg, memo.PhysicalProps{})
		if w == nil {
			return nil
		}
		childWinners[i] = w.ExprID
		childCosts[i] = w.Cost
		running += o.memo.Weight(w.Cost)
	}

	cost, err := o.memo.PlanCost(e, childWinners, childCosts)
	if err != nil {
		return err
	}
	weighted := o.memo.Weight(cost)
	if o.opts.PruneEnabled && upperBound < weighted {
		return nil
	}
	_, err = o.memo.ProposeWinner(g, memo.PhysicalProps{}, e, childWinners, cost)
	return err
}

// enforce resolves a non-zero subgoal on top of g's already-secured
// zero-properties winner. The enforcer node is materialized into a
// brand-new standalone group (rather than referenced as a child of g
// itself) to sidestep the memo's group-level cycle check, which would
// otherwise treat "g enforced" as a child of g; this is a deliberate
// simplification recorded in the grounding ledger.
func (o *Optimizer) enforce(g memo.GroupID, props memo.PhysicalProps, upperBound float64) error {
	if o.memo.Winner(g, props) != nil {
		return nil
	}
	base := o.memo.Winner(g, memo.PhysicalProps{})
	if base == nil {
		o.memo.MarkImpossible(g, props)
		return nil
	}

	tag, payload, ok := o.memo.Enforce(memo.PhysicalProps{}, props)
	if !ok {
		o.memo.MarkImpossible(g, props)
		return nil
	}

	baseNode, ok := rules.MaterializeGroup(o.memo, g)
	if !ok {
		o.memo.MarkImpossible(g, props)
		return nil
	}
	enforcerNode := &plan.Node{Tag: tag, Payload: payload, Children: []*plan.Node{baseNode}}
	newGroup, err := o.memo.InternChild(enforcerNode)
	if err != nil {
		return err
	}
	if err := o.OptimizeGroup(newGroup, memo.PhysicalProps{}, upperBound); err != nil {
		return err
	}
	w := o.memo.Winner(newGroup, memo.PhysicalProps{})
	if w == nil {
		o.memo.MarkImpossible(g, props)
		return nil
	}
	_, err = o.memo.ProposeWinner(g, props, w.ExprID, w.ChildWinners, w.Cost)
	return err
}

func isZeroProps(p memo.PhysicalProps) bool {
	return len(p.SortCols) == 0 && p.Limit == 0
}

func (o *Optimizer) isScalarGroup(g memo.GroupID) bool {
	grp := o.memo.Group(g)
	if grp == nil || len(grp.Members) == 0 {
		return false
	}
	e := o.memo.Expr(grp.Members[0])
	return e != nil && e.Tag.IsScalar()
}

func (o *Optimizer) scalarMember(g memo.GroupID) memo.ExprID {
	grp := o.memo.Group(g)
	if grp == nil || len(grp.Members) == 0 {
		return 0
	}
	return grp.Members[0]
}
