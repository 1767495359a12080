package history

import (
	"testing"

	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/route"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

func historyTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(r.Register(schema.TypeDescriptor{
		TypeId:    "Folder",
		DataKind:  schema.DataContainer,
		Container: schema.ContainerSpec{Allowed: schema.AnyType()},
	}))
	must(r.Register(schema.TypeDescriptor{
		TypeId:   "Slider",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:        value.KindInt,
			Default:     value.Int(0),
			Constraints: value.Constraints{Kind: value.KindInt},
		},
	}))
	return r
}

type harness struct {
	t       *testing.T
	store   *graph.Store
	applier *edit.Applier
	mgr     *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := graph.NewStore(historyTestRegistry(t))
	return &harness{
		t:       t,
		store:   store,
		applier: edit.NewApplier(store, route.NewTable()),
		mgr:     NewManager(),
	}
}

// apply threads one intent through the same Before/After bookkeeping the
// engine performs around edit.Applier.Apply within an open session.
func (h *harness) apply(token uint64, in edit.Intent, now event.Time) edit.Result {
	h.t.Helper()
	tracked := h.mgr.Effective(token, in.Origin, in.Undoable)
	if tracked {
		h.mgr.BeforeApply(token, h.store, in)
	}
	res, err := h.applier.Apply(in, now)
	if err != nil {
		h.t.Fatalf("apply %v: %v", in.Kind, err)
	}
	if tracked {
		h.mgr.AfterApply(token, h.applier, in, res)
	}
	return res
}

func TestUndoRedoSingleSetParam(t *testing.T) {
	h := newHarness(t)
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	slider, _, _ := h.store.CreateNode(id.Invalid, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))

	tok := h.mgr.Begin(edit.OriginUI, "set slider")
	h.apply(tok, edit.SetParam(slider, value.Int(9), edit.EndOfTick), event.Time{Tick: 1})
	if _, committed := h.mgr.End(tok); !committed {
		t.Fatal("expected the outermost session to commit a history entry")
	}

	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	nd, _ := h.store.Resolve(slider)
	if nd.Data.Parameter.Value.Int() != 0 {
		t.Fatalf("expected undo to restore the pre-session value 0, got %d", nd.Data.Parameter.Value.Int())
	}

	ok, err = h.mgr.Redo(h.applier, event.Time{Tick: 3})
	if err != nil || !ok {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	nd, _ = h.store.Resolve(slider)
	if nd.Data.Parameter.Value.Int() != 9 {
		t.Fatalf("expected redo to restore the committed value 9, got %d", nd.Data.Parameter.Value.Int())
	}
}

func TestUndoOfMultiEditGestureRestoresAllThreeInOneStep(t *testing.T) {
	h := newHarness(t)
	folderDesc, _ := h.store.Registry().Lookup("Folder")
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	root, _, _ := h.store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	other, _, _ := h.store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	slider, _, _ := h.store.CreateNode(root, "Slider", graph.NodeMeta{Enabled: true, Label: "old"}, graph.DefaultData(sliderDesc))

	tok := h.mgr.Begin(edit.OriginUI, "drag gesture")
	h.apply(tok, edit.SetParam(slider, value.Int(5), edit.EndOfTick), event.Time{Tick: 1})
	newLabel := "new"
	h.apply(tok, edit.PatchMeta(slider, event.MetaPatch{Label: &newLabel}, edit.EndOfTick), event.Time{Tick: 1})
	h.apply(tok, edit.MoveNode(slider, other, 0, edit.EndOfTick), event.Time{Tick: 1})
	entry, committed := h.mgr.End(tok)
	if !committed {
		t.Fatal("expected the gesture to commit as one entry")
	}
	if len(entry.Inverse) != 3 {
		t.Fatalf("expected 3 grouped inverse ops, got %d", len(entry.Inverse))
	}

	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}

	nd, _ := h.store.Resolve(slider)
	if nd.Data.Parameter.Value.Int() != 0 {
		t.Fatalf("expected value restored to 0, got %d", nd.Data.Parameter.Value.Int())
	}
	if nd.Meta.Label != "old" {
		t.Fatalf("expected label restored to %q, got %q", "old", nd.Meta.Label)
	}
	if nd.Parent() != root {
		t.Fatalf("expected parent restored to root, got %v", nd.Parent())
	}
}

func TestNestedSessionsOnlyOutermostCommits(t *testing.T) {
	h := newHarness(t)
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	slider, _, _ := h.store.CreateNode(id.Invalid, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))

	outer := h.mgr.Begin(edit.OriginUI, "outer")
	inner := h.mgr.Begin(edit.OriginUI, "inner")
	h.apply(inner, edit.SetParam(slider, value.Int(1), edit.EndOfTick), event.Time{Tick: 1})
	if _, committed := h.mgr.End(inner); committed {
		t.Fatal("a nested session must never commit on its own")
	}
	if h.mgr.IsOpen(inner) {
		t.Fatal("ending the inner session must close it")
	}
	if !h.mgr.IsOpen(outer) {
		t.Fatal("the outer session must remain open after the inner one ends")
	}
	_, committed := h.mgr.End(outer)
	if !committed {
		t.Fatal("expected the outermost session to commit the merged entry")
	}
}

func TestTriggerValuesAreNeverCaptured(t *testing.T) {
	h := newHarness(t)
	r := h.store.Registry()
	if err := r.Register(schema.TypeDescriptor{
		TypeId:   "Button",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:        value.KindTrigger,
			Default:     value.Trigger(),
			Constraints: value.Constraints{Kind: value.KindTrigger},
		},
	}); err != nil {
		t.Fatalf("register Button: %v", err)
	}
	buttonDesc, _ := r.Lookup("Button")
	button, _, _ := h.store.CreateNode(id.Invalid, "Button", graph.NodeMeta{Enabled: true}, graph.DefaultData(buttonDesc))

	tok := h.mgr.Begin(edit.OriginUI, "press")
	h.apply(tok, edit.SetParam(button, value.Trigger(), edit.Immediate), event.Time{Tick: 1})
	entry, committed := h.mgr.End(tok)
	if committed {
		t.Fatalf("a session containing only a trigger press must not commit any undo entry, got %+v", entry)
	}
}

func TestSetValueNoopStillCommitsAHarmlessEntry(t *testing.T) {
	h := newHarness(t)
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	slider, _, _ := h.store.CreateNode(id.Invalid, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))

	tok := h.mgr.Begin(edit.OriginUI, "noop")
	h.apply(tok, edit.SetParam(slider, value.Int(0), edit.EndOfTick), event.Time{Tick: 1})
	_, committed := h.mgr.End(tok)
	if !committed {
		t.Fatal("a session that touched a target still commits, even if the write produced no observable change")
	}
	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undoing a no-op entry must still succeed: ok=%v err=%v", ok, err)
	}
	nd, _ := h.store.Resolve(slider)
	if nd.Data.Parameter.Value.Int() != 0 {
		t.Fatalf("expected the value to remain 0 after undoing a no-op, got %d", nd.Data.Parameter.Value.Int())
	}
}

func TestCanUndoCanRedoReflectStackState(t *testing.T) {
	h := newHarness(t)
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	slider, _, _ := h.store.CreateNode(id.Invalid, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))

	if h.mgr.CanUndo() || h.mgr.CanRedo() {
		t.Fatal("a fresh manager should report no undo/redo available")
	}
	tok := h.mgr.Begin(edit.OriginUI, "set")
	h.apply(tok, edit.SetParam(slider, value.Int(1), edit.EndOfTick), event.Time{Tick: 1})
	h.mgr.End(tok)
	if !h.mgr.CanUndo() || h.mgr.CanRedo() {
		t.Fatal("after a commit, undo should be available and redo should not")
	}
	h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if h.mgr.CanUndo() || !h.mgr.CanRedo() {
		t.Fatal("after an undo, redo should be available and undo should not")
	}
}

func TestUndoDeleteNodeRecreatesSubtree(t *testing.T) {
	h := newHarness(t)
	folderDesc, _ := h.store.Registry().Lookup("Folder")
	sliderDesc, _ := h.store.Registry().Lookup("Slider")
	root, _, _ := h.store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	child, _, _ := h.store.CreateNode(root, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	grandchild, _, _ := h.store.CreateNode(child, "Slider", graph.NodeMeta{Enabled: true, Label: "gc"}, graph.DefaultData(sliderDesc))
	_ = grandchild

	tok := h.mgr.Begin(edit.OriginUI, "delete")
	h.apply(tok, edit.DeleteNode(child, edit.EndOfTick), event.Time{Tick: 1})
	if _, committed := h.mgr.End(tok); !committed {
		t.Fatal("expected the delete to commit a history entry")
	}
	if _, ok := h.store.Resolve(child); ok {
		t.Fatal("child should be gone after delete")
	}

	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	kids := h.store.Children(root)
	if len(kids) != 1 {
		t.Fatalf("expected the deleted subtree root to be recreated under its original parent, got %d children", len(kids))
	}
	recreatedGrandkids := h.store.Children(kids[0])
	if len(recreatedGrandkids) != 1 {
		t.Fatalf("expected the grandchild to be recreated along with its parent, got %d", len(recreatedGrandkids))
	}
	gcNode, _ := h.store.Resolve(recreatedGrandkids[0])
	if gcNode.Meta.Label != "gc" {
		t.Fatalf("expected the recreated grandchild to preserve its meta, got label %q", gcNode.Meta.Label)
	}
}

func TestUndoDeleteReconcilesDeclaredEagerChild(t *testing.T) {
	h := newHarness(t)
	r := h.store.Registry()
	if err := r.Register(schema.TypeDescriptor{
		TypeId:    "Rig",
		DataKind:  schema.DataContainer,
		Container: schema.ContainerSpec{Allowed: schema.AnyType()},
		EagerChildren: []schema.EagerChild{
			{DeclId: "gain", Type: "Slider"},
		},
	}); err != nil {
		t.Fatalf("register Rig: %v", err)
	}
	folderDesc, _ := r.Lookup("Folder")
	rigDesc, _ := r.Lookup("Rig")
	root, _, _ := h.store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	rig, _, _ := h.store.CreateNode(root, "Rig", graph.NodeMeta{Enabled: true}, graph.DefaultData(rigDesc))
	gain := h.store.Children(rig)[0]
	gainNode, _ := h.store.Resolve(gain)
	gainUuid := gainNode.Meta.Uuid
	if _, _, _, err := h.store.SetValue(gain, value.Int(11)); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	tok := h.mgr.Begin(edit.OriginUI, "delete rig")
	h.apply(tok, edit.DeleteNode(rig, edit.EndOfTick), event.Time{Tick: 1})
	h.mgr.End(tok)

	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	recreated := h.store.Children(root)
	if len(recreated) != 1 {
		t.Fatalf("expected one recreated rig, got %d", len(recreated))
	}
	kids := h.store.Children(recreated[0])
	if len(kids) != 1 {
		t.Fatalf("expected the declared eager child restored onto the skeleton, not duplicated: got %d children", len(kids))
	}
	restored, _ := h.store.Resolve(kids[0])
	if restored.Data.Parameter.Value.Int() != 11 {
		t.Fatalf("expected the eager child's overridden value restored, got %d", restored.Data.Parameter.Value.Int())
	}
	if restored.Meta.Uuid != gainUuid {
		t.Fatalf("expected the eager child's uuid rebound to its pre-delete identity")
	}
}

func TestReplaceSlotInverseIsNoopWithoutPriorOccupant(t *testing.T) {
	h := newHarness(t)
	r := h.store.Registry()
	if err := r.Register(schema.TypeDescriptor{
		TypeId:   "Light",
		DataKind: schema.DataNone,
		PotentialSlots: []schema.PotentialSlot{
			{DeclId: "color", Allowed: schema.AnyType()},
		},
	}); err != nil {
		t.Fatalf("register Light: %v", err)
	}
	if err := r.Register(schema.TypeDescriptor{
		TypeId:   "ColorParam",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:        value.KindColorRgba,
			Default:     value.MakeColor(value.ColorRgba{}),
			Constraints: value.Constraints{Kind: value.KindColorRgba},
		},
	}); err != nil {
		t.Fatalf("register ColorParam: %v", err)
	}
	lightDesc, _ := r.Lookup("Light")
	colorDesc, _ := r.Lookup("ColorParam")
	light, _, _ := h.store.CreateNode(id.Invalid, "Light", graph.NodeMeta{Enabled: true}, graph.DefaultData(lightDesc))

	tok := h.mgr.Begin(edit.OriginUI, "materialize slot")
	h.apply(tok, edit.ReplaceSlot(light, "color", "ColorParam", graph.DefaultData(colorDesc), edit.EndOfTick), event.Time{Tick: 1})
	h.mgr.End(tok)

	occupantBefore, hadOccupant := h.store.SlotOccupant(light, "color")
	if !hadOccupant {
		t.Fatal("expected the slot to be materialized before undo")
	}

	ok, err := h.mgr.Undo(h.applier, event.Time{Tick: 2})
	if err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	occupantAfter, stillOccupied := h.store.SlotOccupant(light, "color")
	if !stillOccupied {
		t.Fatal("undoing a first materialization is a documented no-op: the slot stays occupied")
	}
	if occupantAfter != occupantBefore {
		t.Fatal("the no-op inverse must leave the same occupant in place")
	}
}
