// Package route implements Golden Core's subscription and bubbling
// routing: direct/subtree subscriber dispatch plus implicit structural
// and summarized bubbling, both terminating in a push onto the target
// node's event.Inbox. Table is the single fan-out point every applied
// mutation routes through.
package route

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/id"
)

// Delivery selects how a matched event reaches a subscriber.
type Delivery uint8

const (
	// Raw delivers the event unmodified.
	Raw Delivery = iota
	// Summarized collapses a sequence of matching events in a tick into
	// at most one SubtreeDirty event per scope.
	Summarized
)

// Filter is a disjunction of atomic filters: a subscription matches if
// ANY populated field matches. An entirely empty Filter matches nothing.
type Filter struct {
	// Nodes / Params both test "does the event target this exact node";
	// they are separate fields only so a subscription reads naturally at
	// the call site, both are id.NodeId under the hood.
	Nodes  []id.NodeId
	Params []id.NodeId
	// SubtreeRoots matches when the event's target is the root itself or
	// a descendant of it.
	SubtreeRoots []id.NodeId
	// Kinds matches on event kind alone, regardless of target.
	Kinds []event.Kind
}

func containsNode(list []id.NodeId, x id.NodeId) bool {
	for _, n := range list {
		if n == x {
			return true
		}
	}
	return false
}

func containsKind(list []event.Kind, k event.Kind) bool {
	for _, kk := range list {
		if kk == k {
			return true
		}
	}
	return false
}

// matchesDirect reports whether ev matches this filter's node/param/kind
// atoms, ignoring SubtreeRoots (handled separately by the router, which
// needs the ancestor chain).
func (f Filter) matchesDirect(ev event.Event) bool {
	if len(f.Nodes) > 0 && containsNode(f.Nodes, ev.Target) {
		return true
	}
	if len(f.Params) > 0 && containsNode(f.Params, ev.Target) {
		return true
	}
	if len(f.Kinds) > 0 && containsKind(f.Kinds, ev.Kind) {
		return true
	}
	return false
}

// matchesSubtreeRoot reports whether any of f's SubtreeRoots appears in
// ancestors (which must include the event's own target as ancestors[0]),
// returning the nearest matching root.
func (f Filter) matchesSubtreeRoot(ancestors []id.NodeId) (id.NodeId, bool) {
	if len(f.SubtreeRoots) == 0 {
		return id.Invalid, false
	}
	for _, a := range ancestors {
		if containsNode(f.SubtreeRoots, a) {
			return a, true
		}
	}
	return id.Invalid, false
}

// Subscription is one listener registration.
type Subscription struct {
	Subscriber id.NodeId
	Filter     Filter
	Delivery   Delivery
}

// SubscriptionId identifies a registered Subscription for Unsubscribe.
type SubscriptionId uint64
