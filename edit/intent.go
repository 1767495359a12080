// Package edit implements Golden Core's single mutation chokepoint:
// typed edit intents, the Propagation policy that selects which
// scheduler phase applies them, and the Applier that is the only
// component allowed to call graph.Store's mutators on the live path.
// Funneling every mutation through one place is what keeps event
// emission, history capture, and invariant checking in lockstep.
package edit

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// Origin says where an intent came from, used for default Propagation
// selection and for history's non-undoable-origin configuration.
type Origin uint8

const (
	OriginInternal Origin = iota
	OriginUI
	OriginNetwork
	OriginScript
)

// Propagation selects the scheduler phase an edit applies in.
type Propagation uint8

const (
	Immediate Propagation = iota
	EndOfTick
	NextTick
)

// Kind discriminates Intent's closed operation set.
type Kind uint8

const (
	KindSetParam Kind = iota
	KindPatchMeta
	KindCreateNode
	KindMoveNode
	KindDeleteNode
	KindReplaceSlot
)

// Intent is one edit request, either produced internally by a node's
// Process/Update/Init/Destroy call or pushed externally onto the
// ingress queue.
type Intent struct {
	Kind        Kind
	Origin      Origin
	Propagation Propagation
	// Undoable, when false, applies the edit but excludes it from
	// history.
	Undoable bool
	// Session binds this intent to an open edit session (history.Token);
	// zero means ungrouped.
	Session uint64

	Target id.NodeId     // SetParam / PatchMeta / MoveNode / DeleteNode
	Parent id.NodeId     // CreateNode / MoveNode (new parent) / ReplaceSlot
	TypeId id.NodeTypeId // CreateNode / ReplaceSlot
	Decl   id.DeclId     // ReplaceSlot
	Index  int           // MoveNode (-1 = append at end)

	Value     value.Value
	MetaPatch event.MetaPatch
	InitMeta  graph.NodeMeta
	InitData  graph.NodeData
}

func SetParam(target id.NodeId, v value.Value, prop Propagation) Intent {
	return Intent{Kind: KindSetParam, Propagation: prop, Undoable: true, Target: target, Value: v}
}

func PatchMeta(target id.NodeId, patch event.MetaPatch, prop Propagation) Intent {
	return Intent{Kind: KindPatchMeta, Propagation: prop, Undoable: true, Target: target, MetaPatch: patch}
}

func CreateNode(parent id.NodeId, t id.NodeTypeId, meta graph.NodeMeta, data graph.NodeData, prop Propagation) Intent {
	return Intent{Kind: KindCreateNode, Propagation: prop, Undoable: true, Parent: parent, TypeId: t, InitMeta: meta, InitData: data}
}

func MoveNode(target, newParent id.NodeId, index int, prop Propagation) Intent {
	return Intent{Kind: KindMoveNode, Propagation: prop, Undoable: true, Target: target, Parent: newParent, Index: index}
}

func DeleteNode(target id.NodeId, prop Propagation) Intent {
	return Intent{Kind: KindDeleteNode, Propagation: prop, Undoable: true, Target: target}
}

func ReplaceSlot(parent id.NodeId, decl id.DeclId, t id.NodeTypeId, data graph.NodeData, prop Propagation) Intent {
	return Intent{Kind: KindReplaceSlot, Propagation: prop, Undoable: true, Parent: parent, Decl: decl, TypeId: t, InitData: data}
}

// Result is what a successful Apply produced.
type Result struct {
	Events       []event.Event
	CreatedNode  id.NodeId
	ReplacedOld  id.NodeId
	ReplacedNew  id.NodeId
	DeletedNodes []id.NodeId // leaves-first order actually removed
}
