package memo

// exploredKey packs an (ExprID, ruleID, stage) triple into the sparse bitset key
// Group.Explored uses. spec.md §3 describes this as "a sparse bitset
// keyed by (expr_id, rule_id)"; a map[uint64]struct{} is the natural Go
// shape for a sparse bitset indexed by a composite key, without the
// unused-capacity cost a dense []bool indexed by expr_id*numRules would
// carry once either dimension grows.
type exploredKey uint64

func makeExploredKey(expr ExprID, ruleID uint16, stage int) exploredKey {
	return exploredKey(uint64(stage)<<48 | uint64(ruleID)<<32 | uint64(uint32(expr)))
}

// Group is an equivalence class of logically equal plan expressions
// (spec.md §3). Groups are created on first insertion and persist across
// optimization stages until the Memo is dropped.
type Group struct {
	ID      GroupID
	Members []ExprID

	// LogicalProps is computed once from any member and cached; it must
	// be identical across every member (invariant 3).
	LogicalProps *LogicalProps

	// Subgoals maps a normalized required-physical-properties key to what
	// is currently known about satisfying it.
	Subgoals map[SubgoalKey]*Subgoal

	// Explored records which (expr_id, rule_id) pairs have been attempted
	// in which stage, enforcing rule-firing idempotence (invariant 6).
	Explored map[exploredKey]struct{}

	// InProgress is set while ExploreGroup is active for this group, used
	// for cycle avoidance (a group's subtree may not be re-entered while
	// already being explored in the same stage).
	InProgress bool
}

func newGroup(id GroupID) *Group {
	return &Group{
		ID:       id,
		Subgoals: make(map[SubgoalKey]*Subgoal),
		Explored: make(map[exploredKey]struct{}),
	}
}

// subgoal returns (creating if necessary) the Subgoal for the given
// required properties.
func (g *Group) subgoal(props PhysicalProps) *Subgoal {
	key := props.Normalize()
	sg, ok := g.Subgoals[key]
	if !ok {
		sg = newSubgoal(props)
		g.Subgoals[key] = sg
	}
	return sg
}

// hasApplied reports whether (expr, ruleID) was already attempted in the
// given stage.
func (g *Group) hasApplied(expr ExprID, ruleID uint16, stage int) bool {
	_, ok := g.Explored[makeExploredKey(expr, ruleID, stage)]
	return ok
}

func (g *Group) markApplied(expr ExprID, ruleID uint16, stage int) {
	g.Explored[makeExploredKey(expr, ruleID, stage)] = struct{}{}
}

// GroupExpr is a node whose children are group ids rather than node
// references: the atomic unit of rule firing (spec.md §3).
type GroupExpr struct {
	ID          ExprID
	Tag         Tag
	Payload     Payload
	ChildGroups []GroupID
	Group       GroupID

	// childCostSig caches the signature of the children's winner set the
	// last time this expression's cost was computed, so repeated
	// OptimizeExpression tasks over unchanged children skip re-invoking
	// the cost provider (spec.md §4.D: "Results are memoised on the
	// group-expression").
	childCostSig uint64
	cachedCost   Cost
	costCached   bool
}

func structuralKey(tag Tag, payload Payload, children []GroupID) uint64 {
	return contentHash(tag, payload, children)
}
