package cost

import (
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

// Properties is the default PropertyProvider: every base table is
// assumed to expose a single integer column ("col0"); relational
// operators derive their schema and row count from that assumption the
// way Provider derives cost from DefaultRowCount.
type Properties struct{}

// NewDefaultCarder returns the default PropertyProvider.
func NewDefaultCarder() *Properties { return &Properties{} }

func tableName(payload memo.Payload) string {
	if payload.Kind == plan.PayloadTable {
		return payload.Str
	}
	return ""
}

func baseSchema() []memo.ColumnDef {
	return []memo.ColumnDef{{Name: "col0", Type: "int"}}
}

func baseColumnRefs() []memo.ColumnRef {
	return []memo.ColumnRef{{Table: 0, Col: 0}}
}

func propsAt(childProps []*memo.LogicalProps, i int) *memo.LogicalProps {
	if i >= len(childProps) || childProps[i] == nil {
		return &memo.LogicalProps{}
	}
	return childProps[i]
}

// DeriveLogical implements memo.PropertyProvider.
func (Properties) DeriveLogical(tag memo.Tag, payload memo.Payload, childProps []*memo.LogicalProps) *memo.LogicalProps {
	switch tag {
	case plan.TagScan, plan.TagPhysicalScan, plan.TagValues, plan.TagPhysicalValues:
		return &memo.LogicalProps{
			Schema:     baseSchema(),
			ColumnRefs: baseColumnRefs(),
			RowCount:   DefaultRowCount,
		}

	case plan.TagEmptyRelation, plan.TagPhysicalEmptyRelation:
		cols := 1
		if payload.Kind == plan.PayloadInt && payload.Int > 0 {
			cols = int(payload.Int)
		}
		schema := make([]memo.ColumnDef, cols)
		refs := make([]memo.ColumnRef, cols)
		for i := range schema {
			schema[i] = memo.ColumnDef{Name: "col0", Type: "int"}
			refs[i] = memo.ColumnRef{Table: 0, Col: 0}
		}
		return &memo.LogicalProps{Schema: schema, ColumnRefs: refs, RowCount: 0}

	case plan.TagJoin, plan.TagPhysicalHashJoin, plan.TagPhysicalNestedLoopJoin, plan.TagPhysicalMergeJoin:
		left, right := propsAt(childProps, 0), propsAt(childProps, 1)
		schema := append(append([]memo.ColumnDef{}, left.Schema...), right.Schema...)
		refs := append(append([]memo.ColumnRef{}, left.ColumnRefs...), right.ColumnRefs...)
		return &memo.LogicalProps{
			Schema:     schema,
			ColumnRefs: refs,
			RowCount:   joinOutputRows(left.RowCount, right.RowCount),
		}

	case plan.TagFilter, plan.TagPhysicalFilter:
		p := propsAt(childProps, 0)
		return &memo.LogicalProps{
			Schema:     p.Schema,
			ColumnRefs: p.ColumnRefs,
			RowCount:   p.RowCount * FilterSelectivity,
		}

	case plan.TagProject, plan.TagPhysicalProject,
		plan.TagSort, plan.TagPhysicalSort, plan.TagEnforcerSort,
		plan.TagLimit, plan.TagPhysicalLimit:
		p := propsAt(childProps, 0)
		out := *p
		return &out

	case plan.TagAggregate, plan.TagPhysicalHashAggregate, plan.TagPhysicalStreamAggregate:
		p := propsAt(childProps, 0)
		return &memo.LogicalProps{Schema: p.Schema, ColumnRefs: p.ColumnRefs, RowCount: p.RowCount}

	case plan.TagUnion, plan.TagPhysicalUnion, plan.TagIntersect, plan.TagExcept:
		left, right := propsAt(childProps, 0), propsAt(childProps, 1)
		return &memo.LogicalProps{Schema: left.Schema, ColumnRefs: left.ColumnRefs, RowCount: left.RowCount + right.RowCount}

	default:
		if len(childProps) > 0 {
			return propsAt(childProps, 0)
		}
		return &memo.LogicalProps{}
	}
}

// DerivePhysical implements memo.PropertyProvider. The default provider
// never establishes a sort order itself: every operator, Sort and
// EnforcerSort included, passes its first child's physical properties
// through unchanged (a join's physical order is whatever its build/outer
// side already has), and an operator with no children has none.
func (Properties) DerivePhysical(tag memo.Tag, payload memo.Payload, childPhysical []memo.PhysicalProps) memo.PhysicalProps {
	switch tag {
	case plan.TagPhysicalSort, plan.TagEnforcerSort:
		if len(childPhysical) == 0 {
			return memo.PhysicalProps{}
		}
		return childPhysical[0]
	default:
		if len(childPhysical) == 0 {
			return memo.PhysicalProps{}
		}
		return childPhysical[0]
	}
}

// Satisfies implements memo.PropertyProvider by delegating to the
// default structural check shared with the memo package's own subgoal
// bookkeeping.
func (Properties) Satisfies(have, want memo.PhysicalProps) bool {
	return memo.Satisfies(have, want)
}

// Enforce returns a TagEnforcerSort node whenever want asks for an
// ordering have does not provide; it cannot enforce a Limit by itself
// (limits are pushed by rules, not conjured by an enforcer).
func (Properties) Enforce(have, want memo.PhysicalProps) (memo.Tag, memo.Payload, bool) {
	if len(want.SortCols) == 0 {
		return plan.TagInvalid, memo.Payload{}, false
	}
	if memo.Satisfies(have, want) {
		return plan.TagInvalid, memo.Payload{}, false
	}
	return plan.TagEnforcerSort, memo.Payload{}, true
}
