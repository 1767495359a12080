// Package event implements Golden Core's event envelopes, the (tick,
// micro, seq) total order, and the per-node inbox with its
// coalesced/appended classification.
package event

import (
	"fmt"

	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// Time is the total-order key (tick, micro, seq). tick increments only at
// EngineTick boundary; micro increments per stabilization or
// immediate-flush round within a tick; seq orders events within a
// (tick, micro).
type Time struct {
	Tick  uint64
	Micro uint32
	Seq   uint32
}

// Less orders Time lexicographically on (tick, micro, seq).
func (t Time) Less(o Time) bool {
	if t.Tick != o.Tick {
		return t.Tick < o.Tick
	}
	if t.Micro != o.Micro {
		return t.Micro < o.Micro
	}
	return t.Seq < o.Seq
}

func (t Time) String() string {
	return fmt.Sprintf("(%d,%d,%d)", t.Tick, t.Micro, t.Seq)
}

// Kind enumerates the closed event kind set.
type Kind uint8

const (
	KindParamChanged Kind = iota
	KindChildAdded
	KindChildRemoved
	KindChildReplaced
	KindChildMoved
	KindChildReordered
	KindNodeCreated
	KindNodeDeleted
	KindMetaChanged
	// KindSubtreeDirty is a synthetic kind produced by route's bubbling
	// summarization, never produced directly by the applier.
	KindSubtreeDirty
)

func (k Kind) String() string {
	switch k {
	case KindParamChanged:
		return "ParamChanged"
	case KindChildAdded:
		return "ChildAdded"
	case KindChildRemoved:
		return "ChildRemoved"
	case KindChildReplaced:
		return "ChildReplaced"
	case KindChildMoved:
		return "ChildMoved"
	case KindChildReordered:
		return "ChildReordered"
	case KindNodeCreated:
		return "NodeCreated"
	case KindNodeDeleted:
		return "NodeDeleted"
	case KindMetaChanged:
		return "MetaChanged"
	case KindSubtreeDirty:
		return "SubtreeDirty"
	default:
		return "Unknown"
	}
}

// defaultAppended says whether a Kind is coalesced (state-like) or appended
// (stream-like) by default. ParamChanged is special-cased by the emitter
// (see Appended field on Event) because its classification depends on
// the value kind (Trigger) and the parameter's declared Append flag, not
// just its Kind.
func (k Kind) defaultAppended() bool {
	switch k {
	case KindParamChanged, KindMetaChanged, KindSubtreeDirty:
		return false
	default:
		return true
	}
}

// MetaPatch is the sparse set of NodeMeta fields a MetaChanged event
// carries; nil pointers mean "unchanged".
type MetaPatch struct {
	ShortName        *string
	Enabled          *bool
	Label            *string
	Description      *string
	Tags             *[]string
	SemanticsHint    *string
	PresentationHint *string
}

// MergeMetaPatch overlays over onto base field-wise: fields over sets win,
// fields it leaves nil keep base's value. MetaChanged coalesces per node
// with patches merged this way, so an earlier patch's label is not lost
// when a later patch in the same window only touches enabled.
func MergeMetaPatch(base, over MetaPatch) MetaPatch {
	out := base
	if over.ShortName != nil {
		out.ShortName = over.ShortName
	}
	if over.Enabled != nil {
		out.Enabled = over.Enabled
	}
	if over.Label != nil {
		out.Label = over.Label
	}
	if over.Description != nil {
		out.Description = over.Description
	}
	if over.Tags != nil {
		out.Tags = over.Tags
	}
	if over.SemanticsHint != nil {
		out.SemanticsHint = over.SemanticsHint
	}
	if over.PresentationHint != nil {
		out.PresentationHint = over.PresentationHint
	}
	return out
}

// StructuralPayload carries the kind-specific data for structural and
// lifecycle events, enough for a consumer to update a cached child list
// without re-querying the graph.
type StructuralPayload struct {
	Parent   id.NodeId
	Child    id.NodeId
	OldChild id.NodeId // ChildReplaced only
	Index    int
	OldIndex int // ChildMoved/ChildReordered only
	TypeId   id.NodeTypeId
}

// SubtreeDirtyPayload is the summarized bubbling payload: a capped set
// of touched descendants, with an Overflowed flag once the cap is
// exceeded so memory stays bounded.
type SubtreeDirtyPayload struct {
	Scope      id.NodeId
	Touched    map[id.NodeId]struct{}
	Overflowed bool
}

const subtreeDirtyCap = 32

// Event is one fact produced by a successful apply.
type Event struct {
	Time   Time
	Kind   Kind
	Target id.NodeId // the node the event is fundamentally about
	Param  value.Value
	Meta   MetaPatch
	Struct StructuralPayload
	Dirty  SubtreeDirtyPayload
	// Appended overrides Kind.defaultAppended for ParamChanged: true when
	// the value is Trigger or the parameter declares Append.
	Appended bool
}

// IsAppended reports whether this event must never be coalesced.
func (e Event) IsAppended() bool {
	if e.Kind == KindParamChanged {
		return e.Appended || e.Param.Kind() == value.KindTrigger
	}
	return e.Kind.defaultAppended()
}

// coalesceKey identifies state-like events eligible to supersede one
// another within one inbox: only the latest per (kind, target) survives
// the current coalescing window.
type coalesceKey struct {
	kind   Kind
	target id.NodeId
}
