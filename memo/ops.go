package memo

import "github.com/quantumish/cascadeopt/plan"

// AddPlan inserts a free-standing plan (see package plan) into the memo
// recursively: children first, parent last, deduplicating at every level
// (spec.md §4.B). The returned GroupID is set as the memo's Root.
func (m *Memo) AddPlan(n *plan.Node) (GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.addPlan(n)
	if err != nil {
		return 0, err
	}
	m.root = g
	return g, nil
}

// InternChild interns n into the memo exactly like AddPlan but without
// updating Root: the entry point a rule's replacement uses to insert new
// structure below the group it is rewriting (spec.md §4.C). A Placeholder
// leaf (plan.TagPlaceholder, carrying a PayloadGroupRef) resolves to the
// existing group it names instead of allocating anything.
func (m *Memo) InternChild(n *plan.Node) (GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPlan(n)
}

func (m *Memo) addPlan(n *plan.Node) (GroupID, error) {
	if n == nil {
		return 0, ErrInvalidPlan.New("nil node")
	}
	if n.Tag == plan.TagPlaceholder {
		g := GroupID(n.Payload.GroupRef)
		if m.group(g) == nil {
			return 0, ErrInvalidPlan.New("placeholder references unknown group " + g.String())
		}
		return g, nil
	}
	childGroups := make([]GroupID, len(n.Children))
	for i, c := range n.Children {
		cg, err := m.addPlan(c)
		if err != nil {
			return 0, err
		}
		childGroups[i] = cg
	}

	if existing := m.lookupExpr(n.Tag, n.Payload, childGroups); existing != nil {
		return existing.Group, nil
	}

	if m.anyCycle(childGroups) {
		return 0, ErrInvalidPlan.New("insertion would create a group-level cycle")
	}

	g := m.allocGroup()
	e := m.allocExpr(n.Tag, n.Payload, childGroups, g.ID)
	g.Members = append(g.Members, e.ID)
	g.LogicalProps = m.deriveLogicalProps(e)
	return g.ID, nil
}

// anyCycle always reports false: a fresh group cannot cycle back to
// itself, since its children are inserted first and it does not exist
// yet. Insertion into an existing group (AddExprToGroup) checks with
// wouldCycle instead.
func (m *Memo) anyCycle(childGroups []GroupID) bool { return false }

// AddExprToGroup inserts a rule-produced replacement node into `target`
// (spec.md §4.C, "Application": "Each replacement is add_plan-ed back
// into the original group; if it lands in a different group with a
// different schema, the replacement is rejected"). If a structurally
// equal expression already belongs to a different group, the two groups
// are merged (when schemas match) or ErrRuleBug is returned (when they
// don't).
func (m *Memo) AddExprToGroup(target GroupID, tag Tag, payload Payload, childGroups []GroupID) (ExprID, GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.group(target) == nil {
		return 0, 0, m.errInternal("AddExprToGroup: no such group %d", target)
	}
	if m.wouldCycle(target, childGroups) {
		return 0, 0, ErrInvalidPlan.New("rule application would create a group-level cycle")
	}

	if existing := m.lookupExpr(tag, payload, childGroups); existing != nil {
		if existing.Group == target {
			return existing.ID, target, nil
		}
		if !m.group(target).LogicalProps.SameSchema(m.group(existing.Group).LogicalProps) {
			return 0, 0, ErrRuleBug.New("schema mismatch merging group " + target.String() + " with group " + existing.Group.String())
		}
		merged, err := m.mergeGroups(target, existing.Group)
		if err != nil {
			return 0, 0, err
		}
		return existing.ID, merged, nil
	}

	e := m.allocExpr(tag, payload, childGroups, target)
	grp := m.group(target)
	grp.Members = append(grp.Members, e.ID)

	newProps := m.deriveLogicalProps(e)
	if grp.LogicalProps != nil && !grp.LogicalProps.SameSchema(newProps) {
		// Roll the insertion back: the rule produced a replacement that
		// does not belong to this group's equivalence class. This is a
		// rule bug, not an engine invariant violation, so it must not be
		// fatal (spec.md §7).
		m.removeExpr(e)
		return 0, 0, ErrRuleBug.New("schema mismatch inserting expr into group " + target.String())
	}
	if grp.LogicalProps == nil {
		grp.LogicalProps = newProps
	}
	return e.ID, target, nil
}

func (m *Memo) removeExpr(e *GroupExpr) {
	delete(m.exprByID, e.ID)
	key := structuralKey(e.Tag, e.Payload, e.ChildGroups)
	bucket := m.exprTable[key]
	for i, cand := range bucket {
		if cand.ID == e.ID {
			m.exprTable[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	grp := m.group(e.Group)
	if grp != nil {
		for i, mid := range grp.Members {
			if mid == e.ID {
				grp.Members = append(grp.Members[:i], grp.Members[i+1:]...)
				break
			}
		}
	}
	for _, cg := range e.ChildGroups {
		if refs, ok := m.referrers[cg]; ok {
			delete(refs, e.ID)
		}
	}
}

// MergeGroups is required when a rule proves two existing groups equal
// (spec.md §4.B). One id survives; the other's members, winners and
// applied-rule bits are absorbed, every reference to the losing id in
// other group-expressions is rewritten to the survivor, and subgoals are
// recombined by taking the min-cost winner per key. The merge is rejected
// with ErrInternal if the two groups' LogicalProps don't match.
func (m *Memo) MergeGroups(a, b GroupID) (GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeGroups(a, b)
}

func (m *Memo) mergeGroups(a, b GroupID) (GroupID, error) {
	if a == b {
		return a, nil
	}
	ga, gb := m.group(a), m.group(b)
	if ga == nil || gb == nil {
		return 0, m.errInternal("mergeGroups: unknown group")
	}
	if !ga.LogicalProps.SameSchema(gb.LogicalProps) {
		return 0, m.errInternal("mergeGroups(%d,%d): schema mismatch", a, b)
	}

	survivor, loser := ga, gb
	// Lower id survives, deterministically, independent of call order.
	if gb.ID < ga.ID {
		survivor, loser = gb, ga
	}

	// Absorb members: re-key every expression table entry for the loser's
	// members, since their structural key embeds the (now stale) loser id
	// only through being *children* of other expressions, not through
	// their own group id; member expressions themselves just get
	// reparented.
	for _, eid := range loser.Members {
		e := m.exprByID[eid]
		e.Group = survivor.ID
		survivor.Members = append(survivor.Members, eid)
	}

	// Rewrite every referrer of the loser to point at the survivor
	// instead, re-keying the expression table since the structural key
	// includes child group ids.
	for eid := range m.referrers[loser.ID] {
		e := m.exprByID[eid]
		oldKey := structuralKey(e.Tag, e.Payload, e.ChildGroups)
		newChildren := make([]GroupID, len(e.ChildGroups))
		for i, cg := range e.ChildGroups {
			if cg == loser.ID {
				newChildren[i] = survivor.ID
			} else {
				newChildren[i] = cg
			}
		}
		m.rekeyExpr(e, oldKey, newChildren)
		refs, ok := m.referrers[survivor.ID]
		if !ok {
			refs = make(map[ExprID]struct{})
			m.referrers[survivor.ID] = refs
		}
		refs[eid] = struct{}{}
	}
	delete(m.referrers, loser.ID)

	// Recombine subgoals: for every key present in either group, keep the
	// strictly-lower-cost winner.
	for key, sg := range loser.Subgoals {
		cur, ok := survivor.Subgoals[key]
		if !ok {
			survivor.Subgoals[key] = sg
			continue
		}
		if sg.Winner != nil && (cur.Winner == nil || sg.Winner.Weighted < cur.Winner.Weighted) {
			cur.Winner = sg.Winner
		}
		cur.Impossible = cur.Impossible && sg.Impossible
	}

	// Merge applied-rule bitsets.
	for k := range loser.Explored {
		survivor.Explored[k] = struct{}{}
	}

	if m.root == loser.ID {
		m.root = survivor.ID
	}
	m.groups[loser.ID] = nil
	return survivor.ID, nil
}

func (m *Memo) rekeyExpr(e *GroupExpr, oldKey uint64, newChildren []GroupID) {
	bucket := m.exprTable[oldKey]
	for i, cand := range bucket {
		if cand.ID == e.ID {
			m.exprTable[oldKey] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	e.ChildGroups = newChildren
	newKey := structuralKey(e.Tag, e.Payload, newChildren)
	m.exprTable[newKey] = append(m.exprTable[newKey], e)
}

// GetLogicalProps returns (lazily computing if necessary) the cached
// logical properties of a group.
func (m *Memo) GetLogicalProps(id GroupID) *LogicalProps {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(id)
	if g == nil {
		return nil
	}
	if g.LogicalProps == nil && len(g.Members) > 0 {
		g.LogicalProps = m.deriveLogicalProps(m.exprByID[g.Members[0]])
	}
	return g.LogicalProps
}

func (m *Memo) deriveLogicalProps(e *GroupExpr) *LogicalProps {
	if m.props == nil {
		return &LogicalProps{}
	}
	childProps := make([]*LogicalProps, len(e.ChildGroups))
	for i, cg := range e.ChildGroups {
		childProps[i] = m.GetLogicalPropsLocked(cg)
	}
	return m.props.DeriveLogical(e.Tag, e.Payload, childProps)
}

// GetLogicalPropsLocked is GetLogicalProps without re-acquiring the
// mutex, for use by callers already holding it (deriveLogicalProps during
// AddPlan/AddExprToGroup).
func (m *Memo) GetLogicalPropsLocked(id GroupID) *LogicalProps {
	g := m.group(id)
	if g == nil {
		return nil
	}
	if g.LogicalProps == nil && len(g.Members) > 0 {
		g.LogicalProps = m.deriveLogicalProps(m.exprByID[g.Members[0]])
	}
	return g.LogicalProps
}

// RecordApplied marks (group, expr, rule) as attempted in the given
// stage. Idempotent in the sense that it reports the prior state; a
// second attempt in the same stage is an error the caller (ApplyRule
// task) treats as a no-op, not a failure (invariant 6).
func (m *Memo) RecordApplied(group GroupID, expr ExprID, ruleID uint16, stage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return m.errInternal("RecordApplied: no such group %d", group)
	}
	if g.hasApplied(expr, ruleID, stage) {
		return ErrAlreadyApplied.New(int(ruleID), int(expr), stage)
	}
	g.markApplied(expr, ruleID, stage)
	return nil
}

// HasApplied reports whether (group, expr, rule) was already attempted in
// the given stage, without recording anything.
func (m *Memo) HasApplied(group GroupID, expr ExprID, ruleID uint16, stage int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return false
	}
	return g.hasApplied(expr, ruleID, stage)
}

// ProposeWinner accepts a candidate winner for (group, subgoal) iff there
// is no current winner or the new cost is strictly lower (spec.md §4.B,
// invariant 4). It returns whether the proposal was accepted and appends
// a decide_winner step either way (spec.md §3, step log entries are
// produced "for traceability" regardless of outcome).
func (m *Memo) ProposeWinner(group GroupID, props PhysicalProps, expr ExprID, childWinners []ExprID, c Cost) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return false, m.errInternal("ProposeWinner: no such group %d", group)
	}
	sg := g.subgoal(props)
	weighted := m.cost.Weight(c)
	accepted := sg.Winner == nil || weighted < sg.Winner.Weighted
	if accepted {
		sg.Winner = &Winner{ExprID: expr, ChildWinners: append([]ExprID(nil), childWinners...), Cost: c, Weighted: weighted}
		sg.Impossible = false
	}
	m.log.append(StepEntry{
		Stage:               m.stage,
		Kind:                StepDecideWinner,
		GroupID:             group,
		ProposedWinnerExpr:  expr,
		ChildrenWinnerExprs: append([]ExprID(nil), childWinners...),
		TotalWeightedCost:   weighted,
		cost:                c,
	})
	return accepted, nil
}

// MarkImpossible records that no implementation of `group` under `props`
// could be found in the current stage.
func (m *Memo) MarkImpossible(group GroupID, props PhysicalProps) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return
	}
	sg := g.subgoal(props)
	if sg.Winner == nil {
		sg.Impossible = true
	}
}

// Winner returns the current winner for (group, props), or nil.
func (m *Memo) Winner(group GroupID, props PhysicalProps) *Winner {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(group)
	if g == nil {
		return nil
	}
	sg, ok := g.Subgoals[props.Normalize()]
	if !ok {
		return nil
	}
	return sg.Winner
}

// ClearWinners resets every group's winners and Impossible flags between
// re-optimization stages, preserving applied-rule history (spec.md
// §4.B/§4.E).
func (m *Memo) ClearWinners() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g == nil {
			continue
		}
		for _, sg := range g.Subgoals {
			sg.Winner = nil
			sg.Impossible = false
		}
		g.InProgress = false
	}
	// Cost caches are keyed on a child-winner signature; once winners are
	// cleared, a re-optimization pass may supply refined statistics (see
	// Memo.SetRowCount) that change a cached cost even when the signature
	// would otherwise match, so every cache must be invalidated too.
	for _, e := range m.exprByID {
		e.costCached = false
	}
}

// LogPlanStep appends an apply_rule entry. Used by the task engine
// (package cascade); exported so cascade never needs direct access to the
// StepLog's mutation API.
func (m *Memo) LogPlanStep(group GroupID, appliedExpr, producedExpr ExprID, ruleID uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.append(StepEntry{
		Stage: m.stage, Kind: StepApplyRule, GroupID: group,
		AppliedExprID: appliedExpr, ProducedExprID: producedExpr, RuleID: ruleID,
	})
}

// LogRuleFailed appends a rule_failed entry (spec.md §7: "the task engine
// catches [rule application failures] and tags the step as rule_failed").
func (m *Memo) LogRuleFailed(group GroupID, expr ExprID, ruleID uint16, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.append(StepEntry{
		Stage: m.stage, Kind: StepRuleFailed, GroupID: group,
		AppliedExprID: expr, RuleID: ruleID, Detail: reason,
	})
}

// LogExplore appends an explore-phase marker entry to the step log.
func (m *Memo) LogExplore(group GroupID, expr ExprID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.append(StepEntry{Stage: m.stage, Kind: StepExplore, GroupID: group, AppliedExprID: expr})
}
