package edit

import (
	"testing"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

func queueTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	if err := r.Register(schema.TypeDescriptor{
		TypeId:   "Plain",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:        value.KindInt,
			Default:     value.Int(0),
			Constraints: value.Constraints{Kind: value.KindInt},
		},
	}); err != nil {
		t.Fatalf("register Plain: %v", err)
	}
	if err := r.Register(schema.TypeDescriptor{
		TypeId:   "Appended",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:        value.KindInt,
			Default:     value.Int(0),
			Append:      true,
			Constraints: value.Constraints{Kind: value.KindInt},
		},
	}); err != nil {
		t.Fatalf("register Appended: %v", err)
	}
	return r
}

func TestQueuePushRespectsCapacity(t *testing.T) {
	q := NewQueue(2)
	store := graph.NewStore(queueTestRegistry(t))
	plain, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	if err := q.Push(SetParam(plain, value.Int(1), EndOfTick)); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(SetParam(plain, value.Int(2), EndOfTick)); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if err := q.Push(SetParam(plain, value.Int(3), EndOfTick)); err == nil {
		t.Fatal("expected queue full error at capacity")
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued intents, got %d", q.Len())
	}
}

func TestDrainCoalescesStateLikeSetParam(t *testing.T) {
	store := graph.NewStore(queueTestRegistry(t))
	plain, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	q := NewQueue(0)
	for i := 1; i <= 5; i++ {
		if err := q.Push(SetParam(plain, value.Int(int64(i)), EndOfTick)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	drained := q.Drain(store)
	if len(drained) != 1 {
		t.Fatalf("expected a single coalesced SetParam, got %d", len(drained))
	}
	if drained[0].Value.Int() != 5 {
		t.Fatalf("expected the last-written value to survive, got %d", drained[0].Value.Int())
	}
}

func TestDrainKeepsTriggerAndAppendParamsInFull(t *testing.T) {
	store := graph.NewStore(queueTestRegistry(t))
	appended, _, _ := store.CreateNode(id.Invalid, "Appended", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Appended")))
	q := NewQueue(0)
	for i := 1; i <= 3; i++ {
		if err := q.Push(SetParam(appended, value.Int(int64(i)), EndOfTick)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	drained := q.Drain(store)
	if len(drained) != 3 {
		t.Fatalf("expected all 3 append-flagged writes kept, got %d", len(drained))
	}
	for i, in := range drained {
		if in.Value.Int() != int64(i+1) {
			t.Fatalf("expected append-like intents to preserve arrival order, got %+v", drained)
		}
	}
}

func TestDrainKeepsStructuralOpsInOrderAmongCoalescedOnes(t *testing.T) {
	store := graph.NewStore(queueTestRegistry(t))
	plain, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	other, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	q := NewQueue(0)
	q.Push(SetParam(plain, value.Int(1), EndOfTick))
	q.Push(DeleteNode(other, EndOfTick))
	q.Push(SetParam(plain, value.Int(2), EndOfTick))

	drained := q.Drain(store)
	if len(drained) != 2 {
		t.Fatalf("expected the coalesced SetParam plus the structural delete, got %d: %+v", len(drained), drained)
	}
	foundDelete, foundSetParam := false, false
	for _, in := range drained {
		if in.Kind == KindDeleteNode {
			foundDelete = true
		}
		if in.Kind == KindSetParam && in.Value.Int() == 2 {
			foundSetParam = true
		}
	}
	if !foundDelete || !foundSetParam {
		t.Fatalf("unexpected drain contents: %+v", drained)
	}
}

func TestDrainMergesPatchMetaFields(t *testing.T) {
	store := graph.NewStore(queueTestRegistry(t))
	plain, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	q := NewQueue(0)
	label := "renamed"
	enabled := false
	q.Push(PatchMeta(plain, event.MetaPatch{Label: &label}, EndOfTick))
	q.Push(PatchMeta(plain, event.MetaPatch{Enabled: &enabled}, EndOfTick))

	drained := q.Drain(store)
	if len(drained) != 1 {
		t.Fatalf("expected both patches squashed into one intent, got %d", len(drained))
	}
	got := drained[0].MetaPatch
	if got.Label == nil || *got.Label != "renamed" {
		t.Fatalf("expected the first patch's label to survive the merge, got %+v", got)
	}
	if got.Enabled == nil || *got.Enabled != false {
		t.Fatalf("expected the second patch's enabled present, got %+v", got)
	}
}

func TestDrainEmptiesTheQueue(t *testing.T) {
	store := graph.NewStore(queueTestRegistry(t))
	plain, _, _ := store.CreateNode(id.Invalid, "Plain", graph.NodeMeta{Enabled: true}, graph.DefaultData(mustType(t, store, "Plain")))
	q := NewQueue(0)
	q.Push(SetParam(plain, value.Int(1), EndOfTick))
	q.Drain(store)
	if q.Len() != 0 {
		t.Fatal("drain must leave the queue empty")
	}
	if len(q.Drain(store)) != 0 {
		t.Fatal("draining an empty queue should return nothing")
	}
}

func mustType(t *testing.T, s *graph.Store, typeId id.NodeTypeId) *schema.TypeDescriptor {
	t.Helper()
	desc, ok := s.Registry().Lookup(typeId)
	if !ok {
		t.Fatalf("type %q not registered", typeId)
	}
	return desc
}
