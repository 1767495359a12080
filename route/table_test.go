package route

import (
	"testing"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

func newTestStore(t *testing.T, managerBoundaryTypes map[id.NodeTypeId]bool) *graph.Store {
	t.Helper()
	r := schema.NewRegistry()
	for _, typeId := range []id.NodeTypeId{"Folder", "Manager", "Leaf"} {
		if err := r.Register(schema.TypeDescriptor{
			TypeId:          typeId,
			DataKind:        schema.DataContainer,
			Container:       schema.ContainerSpec{Allowed: schema.AnyType()},
			ManagerBoundary: managerBoundaryTypes[typeId],
		}); err != nil {
			t.Fatalf("register %s: %v", typeId, err)
		}
	}
	return graph.NewStore(r)
}

// buildChain creates root -> mid -> leaf, each a Folder unless its type is
// given in types, and returns the three handles.
func buildChain(t *testing.T, s *graph.Store, midType, leafType id.NodeTypeId) (root, mid, leaf id.NodeId) {
	t.Helper()
	var err error
	root, _, err = s.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.NodeData{Kind: schema.DataContainer, Container: graph.ContainerData{Allowed: schema.AnyType()}})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	mid, _, err = s.CreateNode(root, midType, graph.NodeMeta{Enabled: true}, graph.NodeData{Kind: schema.DataContainer, Container: graph.ContainerData{Allowed: schema.AnyType()}})
	if err != nil {
		t.Fatalf("create mid: %v", err)
	}
	leaf, _, err = s.CreateNode(mid, leafType, graph.NodeMeta{Enabled: true}, graph.NodeData{Kind: schema.DataContainer, Container: graph.ContainerData{Allowed: schema.AnyType()}})
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	return root, mid, leaf
}

func TestDirectSubscriptionReceivesMatchingEvent(t *testing.T) {
	s := newTestStore(t, nil)
	root, _, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Nodes: []id.NodeId{leaf}}, Delivery: Raw})

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindMetaChanged, Target: leaf}
	tab.RouteEvent(s, ev)

	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 1 {
		t.Fatalf("expected the direct subscriber to receive 1 event, got %d", rootNode.Inbox.Len())
	}
}

func TestSubtreeRootSubscriptionMatchesDescendant(t *testing.T) {
	s := newTestStore(t, nil)
	root, mid, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{SubtreeRoots: []id.NodeId{mid}}, Delivery: Raw})

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindChildAdded, Target: leaf}
	tab.RouteEvent(s, ev)

	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 1 {
		t.Fatal("expected the subtree-root subscriber to receive the descendant's event")
	}
}

func TestParentOnlyBubblesOneHop(t *testing.T) {
	s := newTestStore(t, nil)
	root, mid, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindChildAdded, Target: leaf}
	tab.RouteEvent(s, ev)

	midNode, _ := s.Resolve(mid)
	if midNode.Inbox.Len() != 1 {
		t.Fatal("expected ChildAdded to bubble to the immediate parent")
	}
	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 0 {
		t.Fatal("ParentOnly bubbling must not reach the grandparent")
	}
}

func TestUntilManagerBoundaryStopsAtManager(t *testing.T) {
	s := newTestStore(t, map[id.NodeTypeId]bool{"Manager": true})
	root, mid, leaf := buildChain(t, s, "Manager", "Leaf")
	tab := NewTable()

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindParamChanged, Target: leaf, Param: value.Int(1)}
	tab.RouteEvent(s, ev)

	midNode, _ := s.Resolve(mid)
	if midNode.Inbox.Len() != 1 {
		t.Fatal("expected a SubtreeDirty delivery at the manager boundary")
	}
	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 0 {
		t.Fatal("bubbling must stop at the manager boundary and not reach the grandparent")
	}
}

func TestUntilManagerBoundaryReachesRootWhenNoManager(t *testing.T) {
	s := newTestStore(t, nil)
	root, mid, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindParamChanged, Target: leaf, Param: value.Int(1)}
	tab.RouteEvent(s, ev)

	midNode, _ := s.Resolve(mid)
	rootNode, _ := s.Resolve(root)
	if midNode.Inbox.Len() != 1 || rootNode.Inbox.Len() != 1 {
		t.Fatal("with no manager boundary present, summarized bubbling should reach every ancestor up to the root")
	}
}

func TestEachSubscriberDeliveredAtMostOnce(t *testing.T) {
	s := newTestStore(t, nil)
	root, _, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Nodes: []id.NodeId{leaf}}, Delivery: Raw})
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Kinds: []event.Kind{event.KindMetaChanged}}, Delivery: Raw})

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindMetaChanged, Target: leaf}
	tab.RouteEvent(s, ev)

	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 1 {
		t.Fatalf("expected at most one delivery to a subscriber matched by two filters, got %d", rootNode.Inbox.Len())
	}
}

func TestMixedDeliverySameSubscriberResolvesByRegistrationOrder(t *testing.T) {
	s := newTestStore(t, nil)
	root, _, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Nodes: []id.NodeId{leaf}}, Delivery: Raw})
	tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Nodes: []id.NodeId{leaf}}, Delivery: Summarized})

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindMetaChanged, Target: leaf}
	tab.RouteEvent(s, ev)

	rootNode, _ := s.Resolve(root)
	drained := rootNode.Inbox.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(drained))
	}
	if drained[0].Kind != event.KindMetaChanged {
		t.Fatalf("the earlier-registered Raw subscription must win deterministically, got %v", drained[0].Kind)
	}
}

func TestDropForNodeRemovesSubscriptions(t *testing.T) {
	s := newTestStore(t, nil)
	root, _, leaf := buildChain(t, s, "Folder", "Leaf")
	tab := NewTable()
	sid := tab.Subscribe(Subscription{Subscriber: root, Filter: Filter{Nodes: []id.NodeId{leaf}}, Delivery: Raw})
	tab.DropForNode(root)

	ev := event.Event{Time: event.Time{Tick: 1}, Kind: event.KindChildAdded, Target: leaf}
	tab.RouteEvent(s, ev)

	rootNode, _ := s.Resolve(root)
	if rootNode.Inbox.Len() != 0 {
		t.Fatal("a dropped subscription must not receive further events")
	}
	tab.Unsubscribe(sid) // no-op, already dropped; must not panic
}
