package memo

// CostProvider computes the cost of a single group-expression given its
// tag, payload and its children's already-known stats and costs, and
// reduces a Cost to the scalar weight the engine compares winners by. It
// must be deterministic and cheap: it is called once per (expr_id,
// children-cost-signature) and the result is memoised on the
// group-expression (spec.md §4.D). Concrete cost formulas are an external
// collaborator by design (spec.md §1); package cost supplies one small
// deterministic default.
type CostProvider interface {
	PlanCost(tag Tag, payload Payload, childStats []*LogicalProps, childCosts []Cost) Cost
	Weight(c Cost) float64
	// LowerBound returns a cheap lower bound on the cost of optimizing a
	// group. The task engine in package cascade does not call it; its
	// upper-bound pruning counts a not-yet-optimized child as costing 0.
	// Returning 0 unconditionally is a valid (if weak) policy.
	LowerBound(props *LogicalProps) float64
}

// PropertyProvider derives logical and physical properties for an
// operator and answers whether a set of actual physical properties
// satisfies a required set, optionally producing an enforcer node when
// they don't.
type PropertyProvider interface {
	DeriveLogical(tag Tag, payload Payload, childProps []*LogicalProps) *LogicalProps
	DerivePhysical(tag Tag, payload Payload, childPhysical []PhysicalProps) PhysicalProps
	Satisfies(have, want PhysicalProps) bool
	// Enforce returns an enforcer tag/payload that introduces `want` on
	// top of a plan that currently has `have`, or ok=false if none of
	// this provider's enforcers can do so.
	Enforce(have, want PhysicalProps) (tag Tag, payload Payload, ok bool)
}
