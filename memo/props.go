package memo

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnDef describes one output column of a group, used to populate
// LogicalProps.Schema.
type ColumnDef struct {
	Name string
	Type string
}

// ColumnRef names a column by its originating table ordinal and position,
// matching plan.ColumnRefPayload's (Table, Col) pair.
type ColumnRef struct {
	Table int
	Col   int
}

func (c ColumnRef) String() string { return fmt.Sprintf("%d.%d", c.Table, c.Col) }

// ColumnStat is a minimal per-column statistic cached alongside a group's
// row count estimate; the concrete numbers come from the host's
// cost.Provider / statistics collector, never computed here.
type ColumnStat struct {
	NDV        float64
	NullFrac   float64
	MinLiteral string
	MaxLiteral string
}

// LogicalProps are computed once from any member of a group and are
// invariant across the group (spec.md §3 invariant 3: "every member of a
// group has identical output schema and column-ref set").
type LogicalProps struct {
	Schema     []ColumnDef
	ColumnRefs []ColumnRef
	// FDKeys holds candidate key sets (functional dependencies reduced to
	// "this column set determines the whole row"); nil means none known.
	FDKeys   [][]ColumnRef
	RowCount float64
	ColStats map[ColumnRef]*ColumnStat
}

// SameSchema reports whether two LogicalProps describe the same output
// schema and column-ref set, the check Memo.MergeGroups uses to reject an
// attempted merge of groups with incompatible shapes.
func (p *LogicalProps) SameSchema(o *LogicalProps) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.Schema) != len(o.Schema) || len(p.ColumnRefs) != len(o.ColumnRefs) {
		return false
	}
	for i := range p.Schema {
		if p.Schema[i] != o.Schema[i] {
			return false
		}
	}
	for i := range p.ColumnRefs {
		if p.ColumnRefs[i] != o.ColumnRefs[i] {
			return false
		}
	}
	return true
}

// PhysicalProps is a required-physical-properties key: the "subgoal" a
// group is optimized under. The zero value requires nothing.
type PhysicalProps struct {
	// SortCols is the required output ordering, outermost first. A column
	// may be required ascending or descending.
	SortCols []SortKey
	// Limit, if non-zero, requires the plan to produce no more than this
	// many rows (used by enforcers/implementations that can push a LIMIT).
	Limit int64
}

type SortKey struct {
	Col ColumnRef
	Asc bool
}

// Normalize returns a canonical, comparable form of the properties. Two
// PhysicalProps that normalize to the same SubgoalKey are treated as the
// same subgoal (spec.md §9, Open Question 2): this implementation's
// policy is structural equality after sorting nothing (sort order is
// significant) and treating a zero Limit as "unset".
func (p PhysicalProps) Normalize() SubgoalKey {
	var b strings.Builder
	for _, sk := range p.SortCols {
		fmt.Fprintf(&b, "%s:%v;", sk.Col, sk.Asc)
	}
	if p.Limit != 0 {
		fmt.Fprintf(&b, "limit=%d;", p.Limit)
	}
	return SubgoalKey(b.String())
}

// SubgoalKey is the normalized form of a PhysicalProps, used as a map key
// inside Group.Subgoals.
type SubgoalKey string

// Satisfies reports whether `have` physical properties satisfy `want`,
// used by the task engine when deciding whether an already-computed
// winner can serve a new request without enforcement. This default
// policy requires an exact ordering match on a prefix; a real
// cost.PropertyProvider is free to be more permissive (e.g. recognizing
// that a longer sort order satisfies a shorter required prefix).
func Satisfies(have, want PhysicalProps) bool {
	if len(want.SortCols) > len(have.SortCols) {
		return false
	}
	for i, sk := range want.SortCols {
		if have.SortCols[i] != sk {
			return false
		}
	}
	if want.Limit != 0 && (have.Limit == 0 || have.Limit > want.Limit) {
		return false
	}
	return true
}

// sortedColumnRefs is a helper used by property derivation to produce a
// deterministic ColumnRefs slice regardless of map iteration order.
func sortedColumnRefs(set map[ColumnRef]struct{}) []ColumnRef {
	out := make([]ColumnRef, 0, len(set))
	for cr := range set {
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Col < out[j].Col
	})
	return out
}
