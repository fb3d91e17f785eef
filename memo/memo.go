package memo

import (
	"fmt"
	"sync"

	"gopkg.in/src-d/go-errors.v1"
)

// Error kinds surfaced by the memo itself. The task engine (package
// cascade) adds BudgetExceeded and Infeasible to complete the taxonomy
// from spec.md §7. Of the four here, Internal is always fatal and RuleBug
// always non-fatal-but-reported, independent of which engine drives the
// memo; InvalidPlan rejects a malformed plan and AlreadyApplied marks a
// repeated rule attempt.
var (
	// ErrInternal marks an invariant violation inside the memo (e.g. a
	// merge of two groups with differing schemas). Fatal.
	ErrInternal = errors.NewKind("memo: internal invariant violation: %s")
	// ErrRuleBug marks a rule-produced replacement that does not belong
	// in the group it was inserted into (incompatible schema). Non-fatal:
	// callers are expected to skip the rule and continue.
	ErrRuleBug = errors.NewKind("memo: rule produced incompatible replacement: %s")
	// ErrInvalidPlan marks a plan that violates a tag's arity/structural
	// constraints, or whose insertion would create a cycle at the group
	// level.
	ErrInvalidPlan = errors.NewKind("memo: invalid plan: %s")
	// ErrAlreadyApplied marks a second RecordApplied call for the same
	// (group, expr, rule) in the same stage (invariant 6).
	ErrAlreadyApplied = errors.NewKind("memo: rule %d already applied to expr %d in stage %d")
)

// Memo is the Cascades memo table: component B of the optimizer design.
// A Memo owns its own groups, its own expression table, and its own step
// log; there is no cross-instance sharing (spec.md §5).
type Memo struct {
	mu sync.Mutex

	cost  CostProvider
	props PropertyProvider

	groups   []*Group // index 0 unused; GroupID 0 is invalid
	exprByID map[ExprID]*GroupExpr

	// exprTable is the process-wide expression table: (tag, payload,
	// child_groups) -> owning group. A hit on insertion returns the
	// existing group (spec.md §4.B, "Group insertion algorithm").
	exprTable map[uint64][]*GroupExpr

	// referrers[g] is the set of expressions that reference group g as a
	// child, needed to rewrite references when g is merged away
	// (spec.md §4.B, merge_groups: "all references to the losing id in
	// other group-expressions are rewritten").
	referrers map[GroupID]map[ExprID]struct{}

	nextExprID  ExprID
	nextGroupID GroupID

	stage int
	log   *StepLog

	root GroupID
}

// New creates an empty Memo bound to the given providers.
func New(costP CostProvider, propsP PropertyProvider) *Memo {
	return &Memo{
		cost:      costP,
		props:     propsP,
		groups:    []*Group{nil},
		exprByID:  make(map[ExprID]*GroupExpr),
		exprTable: make(map[uint64][]*GroupExpr),
		referrers: make(map[GroupID]map[ExprID]struct{}),
		log:       newStepLog(),
	}
}

// Stage returns the index of the optimization stage currently in effect;
// stages are numbered from 0 and advance via AdvanceStage.
func (m *Memo) Stage() int { return m.stage }

// AdvanceStage moves the memo to the next stage. Applied-rule history and
// winners persist unless the caller also calls ClearWinners.
func (m *Memo) AdvanceStage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage++
}

// Group returns the group with the given id, or nil if none exists.
func (m *Memo) Group(id GroupID) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.group(id)
}

func (m *Memo) group(id GroupID) *Group {
	if int(id) <= 0 || int(id) >= len(m.groups) {
		return nil
	}
	return m.groups[id]
}

// Expr returns the group-expression with the given id, or nil.
func (m *Memo) Expr(id ExprID) *GroupExpr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exprByID[id]
}

// Root returns the group id of the plan most recently inserted via
// AddPlan at the top level, or 0 if none yet.
func (m *Memo) Root() GroupID { return m.root }

// NumGroups returns the number of allocated groups (1-indexed; group ids
// run 1..NumGroups()).
func (m *Memo) NumGroups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups) - 1
}

// StepLog returns the memo's step log, for tracing/explain (component H).
func (m *Memo) StepLog() *StepLog { return m.log }

func (m *Memo) allocGroup() *Group {
	id := m.nextGroupID + 1
	m.nextGroupID = id
	g := newGroup(id)
	m.groups = append(m.groups, g)
	return g
}

func (m *Memo) allocExpr(tag Tag, payload Payload, childGroups []GroupID, group GroupID) *GroupExpr {
	id := m.nextExprID + 1
	m.nextExprID = id
	e := &GroupExpr{ID: id, Tag: tag, Payload: payload, ChildGroups: append([]GroupID(nil), childGroups...), Group: group}
	m.exprByID[id] = e
	key := structuralKey(tag, payload, childGroups)
	m.exprTable[key] = append(m.exprTable[key], e)
	for _, cg := range childGroups {
		refs, ok := m.referrers[cg]
		if !ok {
			refs = make(map[ExprID]struct{})
			m.referrers[cg] = refs
		}
		refs[id] = struct{}{}
	}
	return e
}

// lookupExpr returns the existing group-expression with the given
// structural key, if any.
func (m *Memo) lookupExpr(tag Tag, payload Payload, childGroups []GroupID) *GroupExpr {
	key := structuralKey(tag, payload, childGroups)
	for _, cand := range m.exprTable[key] {
		if cand.Tag == tag && cand.Payload.Equal(payload) && sameGroups(cand.ChildGroups, childGroups) {
			return cand
		}
	}
	return nil
}

func sameGroups(a, b []GroupID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// wouldCycle reports whether inserting an expression with the given child
// groups into `target` would make target (transitively, through those
// children) depend on itself. Cheap, conservative DFS bounded by the
// number of groups; the memo is small in practice (bounded by distinct
// logical subplans), so this is not a hot path.
func (m *Memo) wouldCycle(target GroupID, childGroups []GroupID) bool {
	seen := make(map[GroupID]bool)
	var visit func(g GroupID) bool
	visit = func(g GroupID) bool {
		if g == target {
			return true
		}
		if seen[g] {
			return false
		}
		seen[g] = true
		grp := m.group(g)
		if grp == nil {
			return false
		}
		for _, eid := range grp.Members {
			e := m.exprByID[eid]
			for _, cg := range e.ChildGroups {
				if visit(cg) {
					return true
				}
			}
		}
		return false
	}
	for _, cg := range childGroups {
		if visit(cg) {
			return true
		}
	}
	return false
}

func (m *Memo) errInternal(format string, args ...interface{}) error {
	return ErrInternal.New(fmt.Sprintf(format, args...))
}
