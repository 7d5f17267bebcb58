package lifecycle

import "github.com/jaennil/guide_helper/backend/tileengine/internal/entity"

type MutationKind uint8

const (
	MutationAttach MutationKind = iota
	MutationDetach
)

func (k MutationKind) String() string {
	if k == MutationDetach {
		return "detach"
	}
	return "attach"
}

// Mutation is a structural change to the render scene. It is never applied
// while the index is being walked.
type Mutation struct {
	Kind MutationKind
	Key  entity.TileKey
}

// MutationQueue defers scene mutations to the next sync point. Order is
// preserved.
type MutationQueue struct {
	pending []Mutation
}

func (q *MutationQueue) Attach(k entity.TileKey) {
	q.pending = append(q.pending, Mutation{Kind: MutationAttach, Key: k})
}

func (q *MutationQueue) Detach(k entity.TileKey) {
	q.pending = append(q.pending, Mutation{Kind: MutationDetach, Key: k})
}

func (q *MutationQueue) Len() int {
	return len(q.pending)
}

// Drain returns the pending mutations and empties the queue.
func (q *MutationQueue) Drain() []Mutation {
	out := q.pending
	q.pending = nil
	return out
}
