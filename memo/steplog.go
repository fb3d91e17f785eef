package memo

import "fmt"

// StepKind identifies the kind of event recorded in the step log
// (spec.md §3, "Step log entry").
type StepKind string

const (
	StepApplyRule   StepKind = "apply_rule"
	StepDecideWinner StepKind = "decide_winner"
	StepExplore     StepKind = "explore"
	StepRuleFailed  StepKind = "rule_failed"
)

// StepEntry is one line of the step log: (stage, seq, kind, group_id,
// expr_id?, produced_expr_id?, rule_id?, cost?) per spec.md §3.
type StepEntry struct {
	Stage int
	Seq   int
	Kind  StepKind

	GroupID GroupID

	// apply_rule / rule_failed fields.
	AppliedExprID  ExprID
	ProducedExprID ExprID
	RuleID         uint16
	Detail         string

	// decide_winner fields.
	ProposedWinnerExpr  ExprID
	ChildrenWinnerExprs []ExprID
	TotalWeightedCost   float64
	cost                Cost
}

// StepLog is the ordered, append-only record every state-changing engine
// operation appends to (component H). Order is stable for a given input
// and rule registry (spec.md §5: "task execution order is deterministic
// ... Determinism is a testable property").
type StepLog struct {
	entries []StepEntry
	seq     int
}

func newStepLog() *StepLog { return &StepLog{} }

func (l *StepLog) append(e StepEntry) {
	e.Seq = l.seq
	l.seq++
	l.entries = append(l.entries, e)
}

// Entries returns the full ordered step log.
func (l *StepLog) Entries() []StepEntry { return l.entries }

// Len returns the number of recorded steps.
func (l *StepLog) Len() int { return len(l.entries) }

// CountApplyRule returns the number of apply_rule entries recorded, used
// by idempotence tests (spec.md §8, property 3 and 6).
func (l *StepLog) CountApplyRule() int {
	n := 0
	for _, e := range l.entries {
		if e.Kind == StepApplyRule {
			n++
		}
	}
	return n
}

func (e StepEntry) String() string {
	switch e.Kind {
	case StepApplyRule:
		return fmt.Sprintf("step=%d/%d apply_rule group_id=%d applied_expr_id=%d produced_expr_id=%d rule_id=%d",
			e.Stage, e.Seq, e.GroupID, e.AppliedExprID, e.ProducedExprID, e.RuleID)
	case StepRuleFailed:
		return fmt.Sprintf("step=%d/%d rule_failed group_id=%d applied_expr_id=%d rule_id=%d detail=%q",
			e.Stage, e.Seq, e.GroupID, e.AppliedExprID, e.RuleID, e.Detail)
	case StepDecideWinner:
		return fmt.Sprintf("step=%d/%d decide_winner group_id=%d proposed_winner_expr=%d children_winner_exprs=%v total_weighted_cost=%g",
			e.Stage, e.Seq, e.GroupID, e.ProposedWinnerExpr, e.ChildrenWinnerExprs, e.TotalWeightedCost)
	case StepExplore:
		return fmt.Sprintf("step=%d/%d explore group_id=%d expr_id=%d", e.Stage, e.Seq, e.GroupID, e.AppliedExprID)
	}
	return fmt.Sprintf("step=%d/%d %s group_id=%d", e.Stage, e.Seq, e.Kind, e.GroupID)
}
