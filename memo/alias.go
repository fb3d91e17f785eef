package memo

import (
	"fmt"

	"github.com/mitchellh/hashstructure"

	"github.com/quantumish/cascadeopt/plan"
)

// Tag and Payload are re-exported from package plan so that memo's public
// API (GroupExpr.Tag, Memo.AddPlan, Rule.Apply) reads naturally without
// forcing every caller to import plan directly.
type Tag = plan.Tag
type Payload = plan.Payload

const (
	TagPlaceholder = plan.TagPlaceholder
)

// contentHash computes the group-expression structural key over (tag,
// payload, child_groups): "the tuple (tag, payload, child_groups) maps to
// exactly one group" (spec.md §4.B). It reuses hashstructure for the same
// cross-process-stable reason package plan does for Node.Hash.
func contentHash(tag Tag, payload Payload, children []GroupID) uint64 {
	h, err := hashstructure.Hash(struct {
		Tag      Tag
		Payload  interface{}
		Children []GroupID
	}{tag, payload.Hashable(), children}, nil)
	if err != nil {
		panic(fmt.Sprintf("memo: structural hash: %v", err))
	}
	return h
}
