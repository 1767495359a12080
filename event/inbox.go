package event

import (
	"sort"

	"github.com/goldencore/core/id"
)

// Inbox is a per-node ordered event buffer since the node's last Process
// call. Coalesced events for the same (kind, target) are compacted to
// the latest as they arrive; appended events are always kept, in arrival
// order. Exactly one owner (the node itself, mediated by
// edit.Applier/route) ever writes to an Inbox.
type Inbox struct {
	appended  []Event
	coalesced map[coalesceKey]Event
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{coalesced: make(map[coalesceKey]Event)}
}

// Push delivers ev into the inbox, coalescing it with any pending event
// of the same (kind, target) if ev is not appended. MetaChanged coalesces
// per node with its sparse patches merged, later fields overwriting
// earlier ones, so no touched field is lost within the window.
func (ib *Inbox) Push(ev Event) {
	if ev.IsAppended() {
		ib.appended = append(ib.appended, ev)
		return
	}
	key := coalesceKey{kind: ev.Kind, target: ev.Target}
	if ev.Kind == KindMetaChanged {
		if prev, ok := ib.coalesced[key]; ok {
			ev.Meta = MergeMetaPatch(prev.Meta, ev.Meta)
		}
	}
	ib.coalesced[key] = ev
}

// Pending reports whether the inbox holds any event, the scheduler's
// definition of a pending node.
func (ib *Inbox) Pending() bool {
	return len(ib.appended) > 0 || len(ib.coalesced) > 0
}

// Len returns the number of events a Drain would currently return,
// without draining.
func (ib *Inbox) Len() int {
	return len(ib.appended) + len(ib.coalesced)
}

// EarliestTime returns the minimum EventTime across all pending events.
// Arena order is already a total order over pending nodes, so this is a
// diagnostic/inspection surface rather than a scheduling input.
func (ib *Inbox) EarliestTime() (Time, bool) {
	var (
		best  Time
		found bool
	)
	consider := func(t Time) {
		if !found || t.Less(best) {
			best = t
			found = true
		}
	}
	for _, ev := range ib.appended {
		consider(ev.Time)
	}
	for _, ev := range ib.coalesced {
		consider(ev.Time)
	}
	return best, found
}

// subtreeDirtyCapHit is the touched-set size at which PushSubtreeDirty
// stops adding entries and falls back to Overflowed bookkeeping.
const subtreeDirtyCapHit = subtreeDirtyCap

// PushSubtreeDirty merges a summarized bubbling event into whatever
// SubtreeDirty event is already pending for scope (or starts a new one),
// unioning the touched set up to a small cap before degrading to an
// Overflowed flag.
func (ib *Inbox) PushSubtreeDirty(scope id.NodeId, touched []id.NodeId, t Time) {
	key := coalesceKey{kind: KindSubtreeDirty, target: scope}
	existing, ok := ib.coalesced[key]
	if !ok {
		existing = Event{
			Time:   t,
			Kind:   KindSubtreeDirty,
			Target: scope,
			Dirty:  SubtreeDirtyPayload{Scope: scope, Touched: make(map[id.NodeId]struct{})},
		}
	} else if t.Less(existing.Time) {
		// keep the earliest time seen for this window, consistent with
		// EventTime ordering of the first contributing event.
	} else {
		existing.Time = t
	}
	if !existing.Dirty.Overflowed {
		for _, n := range touched {
			if len(existing.Dirty.Touched) >= subtreeDirtyCapHit {
				existing.Dirty.Overflowed = true
				break
			}
			existing.Dirty.Touched[n] = struct{}{}
		}
	}
	ib.coalesced[key] = existing
}

// Drain atomically returns all pending events in strict EventTime order
// and resets the inbox to empty.
func (ib *Inbox) Drain() []Event {
	out := make([]Event, 0, ib.Len())
	out = append(out, ib.appended...)
	for _, ev := range ib.coalesced {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Less(out[j].Time) })
	ib.appended = ib.appended[:0]
	ib.coalesced = make(map[coalesceKey]Event)
	return out
}
