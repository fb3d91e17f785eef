package plan

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure"
)

// Interner de-duplicates Nodes: two calls to Intern with equal (tag,
// payload, children) return the same *Node (invariant 1, spec.md §3:
// "two nodes with equal (tag, payload, child identities) share the same
// identity"). Hashing is delegated to hashstructure, which produces a
// hash that depends only on its input's field values, not on process
// state, so Node.Hash is stable across processes.
type Interner struct {
	mu      sync.Mutex
	buckets map[uint64][]*Node
}

func NewInterner() *Interner {
	return &Interner{buckets: make(map[uint64][]*Node)}
}

// hashKey is the structure hashed to obtain a Node's content hash; it
// must only reference already-interned children by their own stable
// hash, never by pointer, so the result does not depend on allocation
// order or address.
type hashKey struct {
	Tag      Tag
	Payload  interface{}
	Children []uint64
}

func contentHash(tag Tag, payload Payload, children []*Node) uint64 {
	childHashes := make([]uint64, len(children))
	for i, c := range children {
		childHashes[i] = c.Hash()
	}
	h, err := hashstructure.Hash(hashKey{Tag: tag, Payload: payload.Hashable(), Children: childHashes}, nil)
	if err != nil {
		// hashstructure only fails on unhashable types (channels, funcs),
		// none of which appear in hashKey; a failure here is a bug in this
		// package, not a condition callers can usefully recover from.
		panic(fmt.Sprintf("plan: content hash: %v", err))
	}
	return h
}

// Intern returns the canonical Node for (tag, payload, children),
// allocating a new one only if no structurally equal Node already exists.
// It validates the tag's declared arity (Tag.FixedArity) before interning.
func (in *Interner) Intern(tag Tag, payload Payload, children []*Node) (*Node, error) {
	if n, fixed := tag.FixedArity(); fixed && n != len(children) {
		return nil, fmt.Errorf("plan: %s requires %d children, got %d", tag, n, len(children))
	}
	h := contentHash(tag, payload, children)

	in.mu.Lock()
	defer in.mu.Unlock()

	for _, cand := range in.buckets[h] {
		if cand.Tag == tag && cand.Payload.Equal(payload) && sameChildren(cand.Children, children) {
			return cand, nil
		}
	}
	node := &Node{Tag: tag, Payload: payload, Children: children, hash: h}
	in.buckets[h] = append(in.buckets[h], node)
	return node, nil
}

// InternPred is Intern restricted to predicate/scalar tags, matching the
// contract split in spec.md §4.A (intern vs. intern_pred). The underlying
// interning logic is identical; the split exists to keep relational and
// predicate construction call sites self-documenting.
func (in *Interner) InternPred(tag Tag, payload Payload, children []*Node) (*Node, error) {
	if !tag.IsScalar() {
		return nil, fmt.Errorf("plan: InternPred called with relational tag %s", tag)
	}
	return in.Intern(tag, payload, children)
}

func sameChildren(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Size returns the number of distinct interned nodes, for diagnostics.
func (in *Interner) Size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, b := range in.buckets {
		n += len(b)
	}
	return n
}
