// Package plan defines the closed set of node tags used throughout the
// optimizer: logical and physical relational operators, and the scalar
// predicate operators that can appear as their arguments. A Node is
// immutable once built and is interned so structurally equal nodes share
// identity (see Interner).
package plan

// Tag identifies the variant of a Node. The set is closed: every handler
// that dispatches on Tag (cost providers, property providers, rules) is
// expected to cover every value that can legally appear in its position
// (relational vs. scalar).
type Tag uint16

const (
	TagInvalid Tag = iota

	// Logical relational operators.
	TagScan
	TagProject
	TagFilter
	TagJoin
	TagAggregate
	TagSort
	TagLimit
	TagUnion
	TagIntersect
	TagExcept
	TagEmptyRelation
	TagValues

	// Physical relational operators. Each has a logical counterpart above.
	TagPhysicalScan
	TagPhysicalProject
	TagPhysicalFilter
	TagPhysicalHashJoin
	TagPhysicalNestedLoopJoin
	TagPhysicalMergeJoin
	TagPhysicalSort
	TagPhysicalLimit
	TagPhysicalUnion
	TagPhysicalEmptyRelation
	TagPhysicalValues
	TagPhysicalHashAggregate
	TagPhysicalStreamAggregate

	// Enforcer: a node, returned by a property provider's Enforce, that
	// introduces a physical property without changing the logical result
	// (e.g. a sort order).
	TagEnforcerSort

	// Scalar / predicate tags.
	TagConst
	TagColumnRef
	TagBinaryOp
	TagLogicalOp
	TagUnaryOp
	TagCast
	TagLike
	TagInList
	TagBetween
	TagFuncCall
	TagSortOrder

	// TagList has variable arity. TagInList and TagFuncCall are not
	// arity-checked either (see FixedArity). Used to group a variable
	// number of children (projection lists, IN-list members, GROUP BY
	// keys, ORDER BY keys).
	TagList

	// TagPlaceholder appears in the replacement nodes a rule's Apply
	// returns, naming an existing group through a PayloadGroupRef; the memo
	// resolves it to that group on insertion, so it never appears in a
	// materialized plan or in the memo.
	TagPlaceholder
)

var tagNames = map[Tag]string{
	TagInvalid:                "invalid",
	TagScan:                   "scan",
	TagProject:                "project",
	TagFilter:                 "filter",
	TagJoin:                   "join",
	TagAggregate:              "aggregate",
	TagSort:                   "sort",
	TagLimit:                  "limit",
	TagUnion:                  "union",
	TagIntersect:              "intersect",
	TagExcept:                 "except",
	TagEmptyRelation:          "emptyrelation",
	TagValues:                 "values",
	TagPhysicalScan:           "tablescan",
	TagPhysicalProject:        "physicalproject",
	TagPhysicalFilter:         "physicalfilter",
	TagPhysicalHashJoin:       "hashjoin",
	TagPhysicalNestedLoopJoin: "nestedloopjoin",
	TagPhysicalMergeJoin:      "mergejoin",
	TagPhysicalSort:           "physicalsort",
	TagPhysicalLimit:          "physicallimit",
	TagPhysicalUnion:          "physicalunion",
	TagPhysicalEmptyRelation:  "physicalemptyrelation",
	TagPhysicalValues:         "physicalvalues",
	TagPhysicalHashAggregate:  "hashaggregate",
	TagPhysicalStreamAggregate: "streamaggregate",
	TagEnforcerSort:           "enforcersort",
	TagConst:                  "const",
	TagColumnRef:              "colref",
	TagBinaryOp:               "binop",
	TagLogicalOp:              "logicop",
	TagUnaryOp:                "unop",
	TagCast:                   "cast",
	TagLike:                   "like",
	TagInList:                 "inlist",
	TagBetween:                "between",
	TagFuncCall:               "func",
	TagSortOrder:              "sortorder",
	TagList:                   "list",
	TagPlaceholder:            "placeholder",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "unknown"
}

// TagByName returns the tag whose String() form is name, or TagInvalid if
// none matches. Used by the textual persistence format to parse tag names
// back out of a serialized memo (package memo, persist.go).
func TagByName(name string) Tag {
	for t, n := range tagNames {
		if n == name {
			return t
		}
	}
	return TagInvalid
}

// IsPhysical reports whether the tag denotes a physical implementation
// rather than a logical operator or a scalar/predicate node.
func (t Tag) IsPhysical() bool {
	switch t {
	case TagPhysicalScan, TagPhysicalProject, TagPhysicalFilter,
		TagPhysicalHashJoin, TagPhysicalNestedLoopJoin, TagPhysicalMergeJoin,
		TagPhysicalSort, TagPhysicalLimit, TagPhysicalUnion,
		TagPhysicalEmptyRelation, TagPhysicalValues,
		TagPhysicalHashAggregate, TagPhysicalStreamAggregate, TagEnforcerSort:
		return true
	}
	return false
}

// IsScalar reports whether the tag is a predicate/scalar tag rather than a
// relational (logical or physical) one.
func (t Tag) IsScalar() bool {
	switch t {
	case TagConst, TagColumnRef, TagBinaryOp, TagLogicalOp, TagUnaryOp,
		TagCast, TagLike, TagInList, TagBetween, TagFuncCall, TagSortOrder,
		TagList, TagPlaceholder:
		return true
	}
	return false
}

// FixedArity returns the arity a tag requires and whether that arity is
// fixed. TagList, TagInList and TagFuncCall report fixed=false and accept
// any number of children; every other tag has a single, fixed arity
// enforced by the Interner.
func (t Tag) FixedArity() (n int, fixed bool) {
	switch t {
	case TagList:
		return 0, false
	case TagScan, TagPhysicalScan, TagConst, TagColumnRef, TagEmptyRelation,
		TagPhysicalEmptyRelation, TagValues, TagPhysicalValues, TagPlaceholder:
		return 0, true
	case TagProject, TagPhysicalProject,
		TagSort, TagPhysicalSort, TagLimit, TagPhysicalLimit,
		TagAggregate, TagPhysicalHashAggregate, TagPhysicalStreamAggregate,
		TagUnaryOp, TagCast, TagEnforcerSort:
		return 1, true
	case TagFilter, TagPhysicalFilter, TagUnion, TagPhysicalUnion,
		TagIntersect, TagExcept, TagBinaryOp, TagLogicalOp, TagSortOrder:
		return 2, true
	case TagJoin, TagPhysicalHashJoin, TagPhysicalNestedLoopJoin,
		TagPhysicalMergeJoin:
		// left, right, predicate. The predicate is a scalar child (often a
		// TagBinaryOp or a TagConst true literal for cross joins); it
		// carries no relational winner and costs nothing on its own.
		return 3, true
	case TagLike, TagBetween:
		return 3, true
	case TagInList, TagFuncCall:
		return 0, false // variable number of arguments, wrapped in a TagList child
	}
	return 0, true
}

// JoinKind is the sub-tag carried in the Payload of a TagJoin (or physical
// join) node, distinguishing the kind of join.
type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
	JoinSemi
	JoinAnti
	JoinCross
)

var joinKindNames = map[JoinKind]string{
	JoinInner:     "inner",
	JoinLeftOuter: "left",
	JoinRightOuter: "right",
	JoinFullOuter: "full",
	JoinSemi:      "semi",
	JoinAnti:      "anti",
	JoinCross:     "cross",
}

func (k JoinKind) String() string {
	if n, ok := joinKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// OpKind is the payload carried by TagBinaryOp, TagLogicalOp and TagUnaryOp
// nodes identifying the concrete operator.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpNot
	OpPlus
	OpMinus
	OpMul
	OpDiv
)

var opKindNames = map[OpKind]string{
	OpEq: "=", OpNeq: "!=", OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">=",
	OpAnd: "and", OpOr: "or", OpNot: "not",
	OpPlus: "+", OpMinus: "-", OpMul: "*", OpDiv: "/",
}

func (o OpKind) String() string {
	if n, ok := opKindNames[o]; ok {
		return n
	}
	return "unknown"
}
