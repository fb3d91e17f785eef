package rules

import (
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/plan"
)

// Kind classifies what shape of node a Rule produces (spec.md §4.C,
// "Kinds & stages").
type Kind uint8

const (
	// Transformation rules rewrite a logical expression into an
	// equivalent logical expression (join commute, predicate pushdown).
	Transformation Kind = iota
	// Implementation rules produce a physical expression for a logical
	// one (HashJoin for Join, IndexScan for Scan).
	Implementation
	// Enforcer rules introduce a node establishing a physical property
	// (Sort, Exchange) that its child does not already guarantee.
	Enforcer
)

func (k Kind) String() string {
	switch k {
	case Transformation:
		return "transformation"
	case Implementation:
		return "implementation"
	case Enforcer:
		return "enforcer"
	default:
		return "unknown"
	}
}

// Rule is a stable-id, pure function from a binding to zero or more
// replacement nodes, gated by a stage mask (spec.md §4.C, "Rule registry
// interface"). Implementations must be side-effect free: Apply may be
// called against bindings that the task engine ultimately discards.
type Rule interface {
	ID() uint16
	Kind() Kind
	// StageMask reports which optimization stages (bit i set means
	// stage i) may fire this rule.
	StageMask() uint32
	Pattern() *Pattern
	Apply(b *Binding, m *memo.Memo) ([]*plan.Node, error)
}

// StageMaskAll matches every stage; a rule with this mask fires in every
// optimization pass the engine runs.
const StageMaskAll uint32 = ^uint32(0)

// StageBit returns the mask bit for a single stage index, for rules that
// only fire in specific stages (e.g. an enforcer rule reserved for the
// final physical stage).
func StageBit(stage int) uint32 {
	if stage < 0 || stage >= 32 {
		return 0
	}
	return 1 << uint(stage)
}

// AppliesToStage reports whether mask includes stage.
func AppliesToStage(mask uint32, stage int) bool {
	return mask&StageBit(stage) != 0
}

// Func adapts a plain function into a Rule, for rules with no state
// beyond their id/kind/mask/pattern — the common case.
type Func struct {
	RuleID    uint16
	RuleKind  Kind
	Mask      uint32
	Pat       *Pattern
	ApplyFunc func(b *Binding, m *memo.Memo) ([]*plan.Node, error)
}

func (f *Func) ID() uint16         { return f.RuleID }
func (f *Func) Kind() Kind         { return f.RuleKind }
func (f *Func) StageMask() uint32  { return f.Mask }
func (f *Func) Pattern() *Pattern  { return f.Pat }
func (f *Func) Apply(b *Binding, m *memo.Memo) ([]*plan.Node, error) {
	return f.ApplyFunc(b, m)
}
