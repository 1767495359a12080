package edit

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/route"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// Applier is the single component that ever calls graph.Store's mutators
// on the live edit path. It turns one Intent into a graph mutation plus
// the Event(s) that describe it, routes those events through the
// subscription/bubbling table, and hands the caller a Result for
// logging, history capture, and Ack purposes.
//
// Applier does not decide propagation timing (engine's scheduler does
// that by choosing when to call Apply) and does not invoke node
// behavior callbacks (engine does that, since it alone owns ProcessCtx).
type Applier struct {
	store  *graph.Store
	routes *route.Table
	seq    uint32
}

func NewApplier(store *graph.Store, routes *route.Table) *Applier {
	return &Applier{store: store, routes: routes}
}

// ResetSeq zeroes the per-(tick,micro) sequence counter; the engine calls
// this at the start of every tick and every stabilization/flush round.
func (a *Applier) ResetSeq() { a.seq = 0 }

func (a *Applier) nextSeq() uint32 {
	s := a.seq
	a.seq++
	return s
}

// SlotOccupant exposes the current occupant of a potential slot, if any,
// so the engine can run Destroy on it before issuing a ReplaceSlot
// intent (destroy must happen while the node still resolves).
func (a *Applier) SlotOccupant(parent id.NodeId, decl id.DeclId) (id.NodeId, bool) {
	return a.store.SlotOccupant(parent, decl)
}

// Store exposes the read surface engine/history need without giving them
// a second path to Store's mutators (those stay unexported-by-convention
// outside this package: every exported Store method is a primitive meant
// for Applier alone to call).
func (a *Applier) Store() *graph.Store { return a.store }

func (a *Applier) emit(at event.Time, ev event.Event) event.Event {
	ev.Time = at
	a.routes.RouteEvent(a.store, ev)
	return ev
}

// Apply performs one intent's validation and mutation, emits and routes
// the resulting event(s), and returns a Result. now.Seq is ignored and
// replaced by the Applier's own per-window counter; now.Tick/now.Micro
// must already be set by the caller to the current scheduler window.
func (a *Applier) Apply(in Intent, now event.Time) (Result, error) {
	switch in.Kind {
	case KindSetParam:
		return a.applySetParam(in, now)
	case KindPatchMeta:
		return a.applyPatchMeta(in, now)
	case KindCreateNode:
		return a.applyCreateNode(in, now)
	case KindMoveNode:
		return a.applyMoveNode(in, now)
	case KindDeleteNode:
		return a.applyDeleteNode(in, now)
	case KindReplaceSlot:
		return a.applyReplaceSlot(in, now)
	default:
		return Result{}, errUnknownIntentKind(in.Kind)
	}
}

func (a *Applier) applySetParam(in Intent, now event.Time) (Result, error) {
	_, newVal, changed, err := a.store.SetValue(in.Target, in.Value)
	if err != nil {
		return Result{}, err
	}
	nd, _ := a.store.Resolve(in.Target)
	p := nd.Data.Parameter
	// Trigger writes are momentary facts, not state: they always produce
	// an event even though the stored value never differs.
	appended := p.Append || newVal.Kind() == value.KindTrigger
	emit := appended || changed || p.ChangePolicy == schema.ChangeAlways
	if !emit {
		return Result{}, nil
	}
	ev := event.Event{
		Kind:     event.KindParamChanged,
		Target:   in.Target,
		Param:    newVal,
		Appended: appended,
	}
	ev = a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()}, ev)
	return Result{Events: []event.Event{ev}}, nil
}

func (a *Applier) applyPatchMeta(in Intent, now event.Time) (Result, error) {
	changed, err := a.store.PatchMeta(in.Target, in.MetaPatch, false)
	if err != nil {
		return Result{}, err
	}
	if len(changed) == 0 {
		return Result{}, nil
	}
	ev := event.Event{Kind: event.KindMetaChanged, Target: in.Target, Meta: in.MetaPatch}
	ev = a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()}, ev)
	return Result{Events: []event.Event{ev}}, nil
}

func (a *Applier) applyCreateNode(in Intent, now event.Time) (Result, error) {
	handle, index, err := a.store.CreateNode(in.Parent, in.TypeId, in.InitMeta, in.InitData)
	if err != nil {
		return Result{}, err
	}
	var events []event.Event
	events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
		event.Event{Kind: event.KindNodeCreated, Target: handle, Struct: event.StructuralPayload{TypeId: in.TypeId}}))
	if in.Parent.IsValid() {
		events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
			event.Event{Kind: event.KindChildAdded, Target: in.Parent, Struct: event.StructuralPayload{Parent: in.Parent, Child: handle, Index: index, TypeId: in.TypeId}}))
	}
	return Result{Events: events, CreatedNode: handle}, nil
}

func (a *Applier) applyMoveNode(in Intent, now event.Time) (Result, error) {
	oldParent, oldIndex, newIndex, err := a.store.Move(in.Target, in.Parent, in.Index)
	if err != nil {
		return Result{}, err
	}
	kind := event.KindChildMoved
	if oldParent == in.Parent {
		kind = event.KindChildReordered
	}
	var events []event.Event
	if oldParent != in.Parent && oldParent.IsValid() {
		events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
			event.Event{Kind: event.KindChildRemoved, Target: oldParent, Struct: event.StructuralPayload{Parent: oldParent, Child: in.Target, Index: oldIndex}}))
	}
	events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
		event.Event{
			Kind:   kind,
			Target: in.Parent,
			Struct: event.StructuralPayload{Parent: in.Parent, Child: in.Target, Index: newIndex, OldIndex: oldIndex},
		}))
	return Result{Events: events}, nil
}

// applyDeleteNode removes in.Target's whole subtree leaves-first,
// dropping subscriptions and freeing each node as it goes. It does not
// invoke Destroy behavior; the caller (engine) must have already done so
// for every node in Store.PlanDelete(in.Target) before calling Apply.
func (a *Applier) applyDeleteNode(in Intent, now event.Time) (Result, error) {
	plan := a.store.PlanDelete(in.Target)
	var events []event.Event
	var deleted []id.NodeId
	for _, victim := range plan {
		parent, index, ok := a.store.RemoveOne(victim)
		if !ok {
			continue
		}
		a.routes.DropForNode(victim)
		deleted = append(deleted, victim)
		events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
			event.Event{Kind: event.KindNodeDeleted, Target: victim}))
		if parent.IsValid() {
			events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
				event.Event{Kind: event.KindChildRemoved, Target: parent, Struct: event.StructuralPayload{Parent: parent, Child: victim, Index: index}}))
		}
	}
	if len(deleted) == 0 {
		return Result{}, &graphDanglingErr
	}
	return Result{Events: events, DeletedNodes: deleted}, nil
}

func (a *Applier) applyReplaceSlot(in Intent, now event.Time) (Result, error) {
	oldChild, newChild, index, err := a.store.ReplaceSlot(in.Parent, in.Decl, in.TypeId, in.InitData)
	if err != nil {
		return Result{}, err
	}
	var events []event.Event
	if oldChild.IsValid() {
		events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
			event.Event{Kind: event.KindNodeDeleted, Target: oldChild}))
	}
	events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
		event.Event{Kind: event.KindNodeCreated, Target: newChild, Struct: event.StructuralPayload{TypeId: in.TypeId}}))
	events = append(events, a.emit(event.Time{Tick: now.Tick, Micro: now.Micro, Seq: a.nextSeq()},
		event.Event{Kind: event.KindChildReplaced, Target: in.Parent, Struct: event.StructuralPayload{Parent: in.Parent, Child: newChild, OldChild: oldChild, Index: index}}))
	return Result{Events: events, ReplacedOld: oldChild, ReplacedNew: newChild}, nil
}

var graphDanglingErr = graph.Error{Reason: graph.ReasonDanglingHandle, Detail: "delete: target does not resolve"}
