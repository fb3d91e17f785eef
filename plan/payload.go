package plan

import (
	"bytes"
	"fmt"
	"time"
)

// PayloadKind discriminates the scalar/structural value a Node carries
// alongside its Tag. Only the fields relevant to the active Kind are
// populated; the rest are left at their zero value so that two Payloads
// built independently from the same logical value compare equal.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadBool
	PayloadInt
	PayloadUint
	PayloadFloat
	PayloadDecimal
	PayloadDate
	PayloadInterval
	PayloadString
	PayloadBinary
	PayloadTable    // table name: Scan, Values
	PayloadColumnRef
	PayloadJoinKind
	PayloadOp       // BinaryOp, LogicalOp, UnaryOp, Cast, Like, InList, Between
	PayloadFunc     // FuncCall name
	PayloadSortOrder
	PayloadGroupRef // Placeholder(group-id)
)

// Payload is a tagged scalar/structural value. It is comparable with
// Equal (not with ==, since it embeds a []byte and a time.Time) and is
// the unit hashed by the Interner alongside a Node's Tag and children.
type Payload struct {
	Kind PayloadKind

	Bool     bool
	Int      int64
	Uint     uint64
	Width    int  // integer bit width, for PayloadInt/PayloadUint
	Float    float64
	Decimal  string // decimal values are carried as their canonical text form
	Date     time.Time
	Interval string
	Str      string // table name, function name, decimal/interval text, etc.
	Bin      []byte

	Table int // PayloadColumnRef: ordinal of the source table/child
	Col   int // PayloadColumnRef: ordinal of the column within that source

	Join JoinKind
	Op   OpKind

	Asc bool // PayloadSortOrder

	GroupRef int // PayloadGroupRef: the group id a Placeholder binds to
}

// Equal reports whether two payloads carry the same logical value.
func (p Payload) Equal(o Payload) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case PayloadNone:
		return true
	case PayloadBool:
		return p.Bool == o.Bool
	case PayloadInt:
		return p.Int == o.Int && p.Width == o.Width
	case PayloadUint:
		return p.Uint == o.Uint && p.Width == o.Width
	case PayloadFloat:
		return p.Float == o.Float
	case PayloadDecimal:
		return p.Decimal == o.Decimal
	case PayloadDate:
		return p.Date.Equal(o.Date)
	case PayloadInterval:
		return p.Interval == o.Interval
	case PayloadString, PayloadTable, PayloadFunc:
		return p.Str == o.Str
	case PayloadBinary:
		return bytes.Equal(p.Bin, o.Bin)
	case PayloadColumnRef:
		return p.Table == o.Table && p.Col == o.Col
	case PayloadJoinKind:
		return p.Join == o.Join
	case PayloadOp:
		return p.Op == o.Op
	case PayloadSortOrder:
		return p.Asc == o.Asc
	case PayloadGroupRef:
		return p.GroupRef == o.GroupRef
	}
	return false
}

// Hashable returns a representation of the payload suitable for hashing:
// plain values only, no time.Time/[]byte, so hashstructure's output does
// not depend on unexported internal representation.
func (p Payload) Hashable() interface{} {
	return [...]interface{}{
		p.Kind, p.Bool, p.Int, p.Uint, p.Width, p.Float, p.Decimal,
		p.Date.UTC().UnixNano(), p.Interval, p.Str, string(p.Bin),
		p.Table, p.Col, p.Join, p.Op, p.Asc, p.GroupRef,
	}
}

func (p Payload) String() string {
	switch p.Kind {
	case PayloadNone:
		return ""
	case PayloadBool:
		return fmt.Sprintf("%v", p.Bool)
	case PayloadInt:
		return fmt.Sprintf("%d", p.Int)
	case PayloadUint:
		return fmt.Sprintf("%d", p.Uint)
	case PayloadFloat:
		return fmt.Sprintf("%g", p.Float)
	case PayloadDecimal:
		return p.Decimal
	case PayloadDate:
		return p.Date.Format("2006-01-02")
	case PayloadInterval:
		return p.Interval
	case PayloadString:
		return fmt.Sprintf("%q", p.Str)
	case PayloadBinary:
		return fmt.Sprintf("0x%x", p.Bin)
	case PayloadTable, PayloadFunc:
		return p.Str
	case PayloadColumnRef:
		return fmt.Sprintf("%d.%d", p.Table, p.Col)
	case PayloadJoinKind:
		return p.Join.String()
	case PayloadOp:
		return p.Op.String()
	case PayloadSortOrder:
		if p.Asc {
			return "asc"
		}
		return "desc"
	case PayloadGroupRef:
		return fmt.Sprintf("g%d", p.GroupRef)
	}
	return "?"
}

// Constructors for the common payload shapes; these mirror how callers in
// practice build a Node (a table name, a typed literal, a column
// reference) without having to populate the Payload struct by hand.

func TablePayload(name string) Payload { return Payload{Kind: PayloadTable, Str: name} }

func BoolPayload(v bool) Payload { return Payload{Kind: PayloadBool, Bool: v} }

func IntPayload(v int64, width int) Payload {
	return Payload{Kind: PayloadInt, Int: v, Width: width}
}

func UintPayload(v uint64, width int) Payload {
	return Payload{Kind: PayloadUint, Uint: v, Width: width}
}

func FloatPayload(v float64) Payload { return Payload{Kind: PayloadFloat, Float: v} }

func DecimalPayload(v string) Payload { return Payload{Kind: PayloadDecimal, Decimal: v} }

func DatePayload(v time.Time) Payload { return Payload{Kind: PayloadDate, Date: v} }

func IntervalPayload(v string) Payload { return Payload{Kind: PayloadInterval, Interval: v} }

func StringPayload(v string) Payload { return Payload{Kind: PayloadString, Str: v} }

func BinaryPayload(v []byte) Payload { return Payload{Kind: PayloadBinary, Bin: v} }

func ColumnRefPayload(table, col int) Payload {
	return Payload{Kind: PayloadColumnRef, Table: table, Col: col}
}

func JoinKindPayload(k JoinKind) Payload { return Payload{Kind: PayloadJoinKind, Join: k} }

func OpPayload(o OpKind) Payload { return Payload{Kind: PayloadOp, Op: o} }

func FuncPayload(name string) Payload { return Payload{Kind: PayloadFunc, Str: name} }

func SortOrderPayload(asc bool) Payload { return Payload{Kind: PayloadSortOrder, Asc: asc} }

func GroupRefPayload(gid int) Payload { return Payload{Kind: PayloadGroupRef, GroupRef: gid} }

// EmptyRelationPayload encodes the output column count an EmptyRelation
// node must report, so its derived schema can be made to match the group
// a join-elimination rule replaces (EmptyRelation has no children of its
// own to derive a schema from). Reuses PayloadInt rather than adding a new
// PayloadKind for a single integer.
func EmptyRelationPayload(cols int) Payload { return Payload{Kind: PayloadInt, Int: int64(cols)} }
