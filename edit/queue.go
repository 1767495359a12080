package edit

import (
	"sync"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// Queue is the thread-safe external ingress queue: UI/network/script
// threads push intents here; the engine thread alone drains it at phase
// boundaries, applying ingress-time coalescing.
type Queue struct {
	mu       sync.Mutex
	items    []Intent
	capacity int
}

// NewQueue returns a queue bounded to capacity pending intents (0 means
// unbounded).
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Push enqueues in, returning edit.ReasonQueueFull if the queue is at
// capacity.
func (q *Queue) Push(in Intent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return errQueueFull(q.capacity)
	}
	q.items = append(q.items, in)
	return nil
}

// Len reports the number of intents currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type ingressKey struct {
	target id.NodeId
	kind   Kind
}

// isAppendLike reports whether in must be preserved in full, in arrival
// order: structural ops, trigger or append-flagged parameter writes, and
// reference retargets. store is consulted read-only to resolve a
// parameter's declared Append flag; it is never mutated here.
func isAppendLike(in Intent, store *graph.Store) bool {
	switch in.Kind {
	case KindCreateNode, KindMoveNode, KindDeleteNode, KindReplaceSlot:
		return true
	case KindSetParam:
		if in.Value.Kind() == value.KindTrigger {
			return true
		}
		// Reference retargets are kept in full: collapsing a run of them
		// would erase intermediate targets history capture may depend on.
		if in.Value.Kind() == value.KindReference {
			return true
		}
		if nd, ok := store.Resolve(in.Target); ok && nd.Data.Kind == schema.DataParameter {
			return nd.Data.Parameter.Append
		}
		return false
	case KindPatchMeta:
		return false
	default:
		return false
	}
}

// Drain atomically empties the queue and returns its contents coalesced:
// runs of intents to the same (target, kind) collapse to the last one
// for state-like targets (SetParam on a non-append parameter, PatchMeta,
// whose patches merge field-wise); append-like intents are kept in full,
// in their original relative order.
func (q *Queue) Drain(store *graph.Store) []Intent {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	out := make([]Intent, 0, len(items))
	lastState := make(map[ingressKey]int) // ingressKey -> index into out

	for _, in := range items {
		if isAppendLike(in, store) {
			out = append(out, in)
			continue
		}
		key := ingressKey{target: in.Target, kind: in.Kind}
		if idx, ok := lastState[key]; ok {
			if in.Kind == KindPatchMeta {
				in.MetaPatch = event.MergeMetaPatch(out[idx].MetaPatch, in.MetaPatch)
			}
			out[idx] = in
			continue
		}
		lastState[key] = len(out)
		out = append(out, in)
	}
	return out
}
