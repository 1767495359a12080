package dto

import (
	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// Msg names one envelope's payload shape.
type Msg string

const (
	MsgHello        Msg = "Hello"
	MsgHelloAck     Msg = "HelloAck"
	MsgGetSnapshot  Msg = "GetSnapshot"
	MsgSnapshot     Msg = "Snapshot"
	MsgSubscribe    Msg = "Subscribe"
	MsgBeginEdit    Msg = "BeginEdit"
	MsgBeginEditAck Msg = "BeginEditAck"
	MsgEndEdit      Msg = "EndEdit"
	MsgSetParam     Msg = "SetParam"
	MsgPatchMeta    Msg = "PatchMeta"
	MsgCreateNode   Msg = "CreateNode"
	MsgMoveNode     Msg = "MoveNode"
	MsgDeleteNode   Msg = "DeleteNode"
	MsgEventBatch   Msg = "EventBatch"
	MsgAck          Msg = "Ack"
)

// Envelope is the one message shape every client<->engine exchange
// uses. Payload is left as `any` (json.RawMessage at the
// transport boundary a concrete collaborator would add); this package
// only fixes the shapes Payload may validly hold, per Msg.
type Envelope struct {
	MsgType Msg    `json:"msg"`
	ReqId   string `json:"req_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// --- Client -> Engine payloads ---

type HelloPayload struct {
	ProtocolVersion string    `json:"protocol_version"`
	RootScope       id.NodeId `json:"root_scope"`
}

type GetSnapshotPayload struct {
	Scope         id.NodeId `json:"scope"`
	IncludeSchema bool      `json:"include_schema"`
}

type SubscribePayload struct {
	Scope id.NodeId  `json:"scope"`
	From  event.Time `json:"from"`
}

type BeginEditPayload struct {
	Origin edit.Origin `json:"origin"`
	Label  string      `json:"label"`
}

type EndEditPayload struct {
	EditSessionId uint64 `json:"edit_session_id"`
}

type SetParamPayload struct {
	Session     uint64           `json:"session"`
	ParamNodeId id.NodeId        `json:"param_node_id"`
	Value       value.Value      `json:"value"`
	Propagation edit.Propagation `json:"propagation"`
}

type PatchMetaPayload struct {
	Session     uint64           `json:"session"`
	NodeId      id.NodeId        `json:"node_id"`
	Patch       event.MetaPatch  `json:"patch"`
	Propagation edit.Propagation `json:"propagation"`
}

type CreateNodePayload struct {
	Session     uint64           `json:"session"`
	Parent      id.NodeId        `json:"parent"`
	TypeId      id.NodeTypeId    `json:"type_id"`
	Propagation edit.Propagation `json:"propagation"`
}

type MoveNodePayload struct {
	Session     uint64           `json:"session"`
	NodeId      id.NodeId        `json:"node_id"`
	NewParent   id.NodeId        `json:"new_parent"`
	Index       int              `json:"index"`
	Propagation edit.Propagation `json:"propagation"`
}

type DeleteNodePayload struct {
	Session     uint64           `json:"session"`
	NodeId      id.NodeId        `json:"node_id"`
	Propagation edit.Propagation `json:"propagation"`
}

// --- Engine -> Client payloads ---

type HelloAckPayload struct {
	ProtocolVersion string `json:"protocol_version"`
}

type SnapshotPayload struct {
	AsOf event.Time `json:"as_of"`
	Tree *Tree      `json:"tree"`
}

// EventPayload is the wire shape of one event.Event; payloads carry
// enough data for a client to update its caches incrementally.
type EventPayload struct {
	Time   event.Time               `json:"time"`
	Kind   event.Kind               `json:"kind"`
	Target id.NodeId                `json:"target"`
	Value  *value.Value             `json:"value,omitempty"`
	Meta   *event.MetaPatch         `json:"meta,omitempty"`
	Struct *event.StructuralPayload `json:"struct,omitempty"`
	Dirty  *DirtyPayload            `json:"dirty,omitempty"`
}

// DirtyPayload is the wire form of event.SubtreeDirtyPayload: Touched is
// re-expressed as a slice since a set isn't a stable JSON shape.
type DirtyPayload struct {
	Scope      id.NodeId   `json:"scope"`
	Touched    []id.NodeId `json:"touched"`
	Overflowed bool        `json:"overflowed"`
}

// EventToPayload converts an engine event into its wire form.
func EventToPayload(e event.Event) EventPayload {
	p := EventPayload{Time: e.Time, Kind: e.Kind, Target: e.Target}
	switch e.Kind {
	case event.KindParamChanged:
		v := e.Param
		p.Value = &v
	case event.KindMetaChanged:
		m := e.Meta
		p.Meta = &m
	case event.KindSubtreeDirty:
		touched := make([]id.NodeId, 0, len(e.Dirty.Touched))
		for n := range e.Dirty.Touched {
			touched = append(touched, n)
		}
		p.Dirty = &DirtyPayload{Scope: e.Dirty.Scope, Touched: touched, Overflowed: e.Dirty.Overflowed}
	default:
		s := e.Struct
		p.Struct = &s
	}
	return p
}

type EventBatchPayload struct {
	Tick   uint64         `json:"tick"`
	Events []EventPayload `json:"events"`
}

// ErrorDto is the structured rejection carried by a failed intent's
// Ack. Code is the closed reason name (edit.Reason / graph.Reason /
// persist.Reason String form).
type ErrorDto struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckPayload struct {
	Ok    bool      `json:"ok"`
	Error *ErrorDto `json:"error,omitempty"`
}

type BeginEditAckPayload struct {
	EditSessionId uint64 `json:"edit_session_id"`
}
