package route

import (
	"sort"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
)

// BubbleKind enumerates the bubbling depth policies.
type BubbleKind uint8

const (
	ParentOnly BubbleKind = iota
	UntilManagerBoundary
	MaxDepth
	ToRoot
)

// BubblePolicy pairs a BubbleKind with its parameter (only meaningful
// for MaxDepth).
type BubblePolicy struct {
	Kind  BubbleKind
	Depth int
}

// effectiveDepth returns the maximum number of ancestor hops to bubble,
// or -1 for unlimited (ToRoot / UntilManagerBoundary, which terminate on
// a different condition).
func (p BubblePolicy) effectiveDepth() int {
	switch p.Kind {
	case ParentOnly:
		return 1
	case MaxDepth:
		return p.Depth
	default:
		return -1
	}
}

// BubbleConfig maps event kinds to their bubbling policy. Kinds absent
// from the map fall back to ParentOnly; the defaults bubble structural
// and lifecycle kinds one hop and ParamChanged/MetaChanged as summarized
// SubtreeDirty up to the nearest manager boundary.
type BubbleConfig map[event.Kind]BubblePolicy

// DefaultBubbleConfig returns the stock per-kind policies.
func DefaultBubbleConfig() BubbleConfig {
	return BubbleConfig{
		event.KindChildAdded:     {Kind: ParentOnly},
		event.KindChildRemoved:   {Kind: ParentOnly},
		event.KindChildReplaced:  {Kind: ParentOnly},
		event.KindChildMoved:     {Kind: ParentOnly},
		event.KindChildReordered: {Kind: ParentOnly},
		event.KindNodeCreated:    {Kind: ParentOnly},
		event.KindNodeDeleted:    {Kind: ParentOnly},
		event.KindParamChanged:   {Kind: UntilManagerBoundary},
		event.KindMetaChanged:    {Kind: UntilManagerBoundary},
	}
}

func (c BubbleConfig) policyFor(k event.Kind) BubblePolicy {
	if p, ok := c[k]; ok {
		return p
	}
	return BubblePolicy{Kind: ParentOnly}
}

// Table holds the subscription side tables and bubbling configuration.
type Table struct {
	next         SubscriptionId
	subs         map[SubscriptionId]Subscription
	bySubscriber map[id.NodeId][]SubscriptionId
	Bubble       BubbleConfig
}

func NewTable() *Table {
	return &Table{
		subs:         make(map[SubscriptionId]Subscription),
		bySubscriber: make(map[id.NodeId][]SubscriptionId),
		Bubble:       DefaultBubbleConfig(),
	}
}

// Subscribe registers sub and returns an id for later Unsubscribe.
func (t *Table) Subscribe(sub Subscription) SubscriptionId {
	t.next++
	sid := t.next
	t.subs[sid] = sub
	t.bySubscriber[sub.Subscriber] = append(t.bySubscriber[sub.Subscriber], sid)
	return sid
}

func (t *Table) Unsubscribe(sid SubscriptionId) {
	sub, ok := t.subs[sid]
	if !ok {
		return
	}
	delete(t.subs, sid)
	list := t.bySubscriber[sub.Subscriber]
	for i, s := range list {
		if s == sid {
			t.bySubscriber[sub.Subscriber] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// DropForNode removes every subscription owned by n; the applier calls
// it atomically with n's deletion.
func (t *Table) DropForNode(n id.NodeId) {
	for _, sid := range t.bySubscriber[n] {
		delete(t.subs, sid)
	}
	delete(t.bySubscriber, n)
}

// ancestorChain returns [n, parent(n), grandparent(n), ..., root], i.e.
// n itself followed by every ancestor up to (and including) the root.
func ancestorChain(store *graph.Store, n id.NodeId) []id.NodeId {
	chain := []id.NodeId{n}
	cur := n
	for {
		nd, ok := store.Resolve(cur)
		if !ok || !nd.Parent().IsValid() {
			break
		}
		cur = nd.Parent()
		chain = append(chain, cur)
	}
	return chain
}

func isManagerBoundary(store *graph.Store, n id.NodeId) bool {
	nd, ok := store.Resolve(n)
	if !ok {
		return false
	}
	desc, ok := store.Registry().Lookup(nd.TypeId())
	if !ok {
		return false
	}
	return desc.ManagerBoundary
}

// RouteEvent delivers ev to every matching subscriber and bubble target,
// pushing into the respective node's Inbox at most once each.
func (t *Table) RouteEvent(store *graph.Store, ev event.Event) {
	delivered := make(map[id.NodeId]bool)

	deliverRaw := func(target id.NodeId) {
		if delivered[target] {
			return
		}
		delivered[target] = true
		if nd, ok := store.Resolve(target); ok {
			nd.Inbox.Push(ev)
		}
	}
	deliverDirty := func(target, scope id.NodeId) {
		if delivered[target] {
			return
		}
		delivered[target] = true
		if nd, ok := store.Resolve(target); ok {
			nd.Inbox.PushSubtreeDirty(scope, []id.NodeId{ev.Target}, ev.Time)
		}
	}

	ancestors := ancestorChain(store, ev.Target)

	// Step (a)/(b): explicit subscriptions, direct then subtree, visited
	// in registration order so that a subscriber holding both a Raw and a
	// Summarized subscription resolves the same way on every run.
	sids := make([]SubscriptionId, 0, len(t.subs))
	for sid := range t.subs {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })
	for _, sid := range sids {
		sub := t.subs[sid]
		if sub.Filter.matchesDirect(ev) {
			if sub.Delivery == Summarized {
				deliverDirty(sub.Subscriber, ev.Target)
			} else {
				deliverRaw(sub.Subscriber)
			}
			continue
		}
		if root, ok := sub.Filter.matchesSubtreeRoot(ancestors); ok {
			if sub.Delivery == Summarized {
				deliverDirty(sub.Subscriber, root)
			} else {
				deliverRaw(sub.Subscriber)
			}
		}
	}

	// Step: implicit bubbling, nearest-ancestor first.
	policy := t.Bubble.policyFor(ev.Kind)
	depthLimit := policy.effectiveDepth()
	depth := 0
	for _, anc := range ancestors[1:] {
		if depthLimit >= 0 && depth >= depthLimit {
			break
		}
		depth++
		if policy.Kind == UntilManagerBoundary {
			deliverDirty(anc, anc)
			if isManagerBoundary(store, anc) {
				break
			}
			continue
		}
		deliverRaw(anc)
		if policy.Kind == ParentOnly {
			break
		}
	}
}
