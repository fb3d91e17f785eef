// Package cost supplies the default, deterministic CostProvider /
// PropertyProvider pair the engine uses when a host does not bring its
// own statistics and cost model (spec.md §4.D: "concrete numbers come
// from the host's cost.Provider / statistics collector, never computed
// here" — this package is that default collaborator, not a statistics
// collector). Every number it produces is a small closed-form function
// of its inputs so the literal end-to-end costs in spec.md §8 are
// reproducible byte-for-byte.
package cost

import (
	"math"

	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

// DefaultRowCount is the cardinality assumed for any base table the
// provider has no statistics for. It is the only cardinality constant
// this package hard-codes; everything else derives from it.
const DefaultRowCount = 1000

// FilterSelectivity is the fraction of input rows a Filter/Join's
// attached predicate is assumed to let through, absent any real
// statistics. 1.0 means "no selectivity modeling" (a filter never
// discards rows under this default), which keeps scan/self-join costs
// matching the literal scenarios; a host wanting selectivity pushdown
// supplies its own PropertyProvider.
const FilterSelectivity = 1.0

// Provider is the default CostProvider: a small per-tag table of cost
// formulas over rows, compute and IO, named after the teacher's
// Coster/Carder split (sql/memo: NewDefaultCoster, NewDefaultCarder).
type Provider struct{}

// NewDefaultCoster returns the default CostProvider.
func NewDefaultCoster() *Provider { return &Provider{} }

func sumCosts(childCosts []memo.Cost) memo.Cost {
	var total memo.Cost
	for _, c := range childCosts {
		total = total.Add(c)
	}
	return total
}

func rowCountAt(childStats []*memo.LogicalProps, i int) float64 {
	if i >= len(childStats) || childStats[i] == nil {
		return DefaultRowCount
	}
	return childStats[i].RowCount
}

// PlanCost implements memo.CostProvider. Each physical operator
// contributes its own marginal cost on top of the already-known cost of
// its children (childCosts). The logical Scan tag is costed like
// PhysicalScan and EnforcerSort like PhysicalSort; the no-op operators
// (project, limit, union, empty relation, values) and every other
// logical tag contribute zero marginal cost.
func (Provider) PlanCost(tag memo.Tag, payload memo.Payload, childStats []*memo.LogicalProps, childCosts []memo.Cost) memo.Cost {
	total := sumCosts(childCosts)

	switch tag {
	case plan.TagScan, plan.TagPhysicalScan:
		return total.Add(memo.Cost{IO: DefaultRowCount})

	case plan.TagPhysicalHashJoin:
		left, right := rowCountAt(childStats, 0), rowCountAt(childStats, 1)
		output := joinOutputRows(left, right)
		// Build the smaller/first side into a hash table, probe with the
		// other, then materialize the joined output.
		return total.Add(memo.Cost{Compute: left + right + output})

	case plan.TagPhysicalNestedLoopJoin:
		left, right := rowCountAt(childStats, 0), rowCountAt(childStats, 1)
		return total.Add(memo.Cost{Compute: left * right})

	case plan.TagPhysicalMergeJoin:
		left, right := rowCountAt(childStats, 0), rowCountAt(childStats, 1)
		return total.Add(memo.Cost{Compute: left + right})

	case plan.TagPhysicalFilter:
		return total.Add(memo.Cost{Compute: rowCountAt(childStats, 0)})

	case plan.TagPhysicalHashAggregate:
		rows := rowCountAt(childStats, 0)
		return total.Add(memo.Cost{Compute: 2 * rows})

	case plan.TagPhysicalStreamAggregate:
		rows := rowCountAt(childStats, 0)
		return total.Add(memo.Cost{Compute: rows})

	case plan.TagPhysicalSort, plan.TagEnforcerSort:
		rows := rowCountAt(childStats, 0)
		if rows < 1 {
			rows = 1
		}
		return total.Add(memo.Cost{Compute: rows * math.Log2(rows+1)})

	case plan.TagPhysicalProject, plan.TagPhysicalLimit,
		plan.TagPhysicalUnion, plan.TagPhysicalEmptyRelation, plan.TagPhysicalValues:
		return total

	default:
		// Logical tags are never costed directly: OptimizeExpression only
		// ever invokes PlanCost on a physical expression (spec.md §4.E).
		return total
	}
}

// Weight reduces a Cost vector to the scalar the engine compares winners
// by: a flat, unweighted sum of every component.
func (Provider) Weight(c memo.Cost) float64 {
	return c.Compute + c.IO + c.Network
}

// LowerBound returns 0 unconditionally — a valid, if weak, policy
// (spec.md §4.D/§4.E).
func (Provider) LowerBound(props *memo.LogicalProps) float64 { return 0 }

// joinOutputRows estimates the row count of an equi-join as the smaller
// input, the standard key/foreign-key heuristic: every row on the larger
// side finds at most one match on the smaller.
func joinOutputRows(left, right float64) float64 {
	if left < right {
		return left
	}
	return right
}
