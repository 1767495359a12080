// Package graph implements Golden Core's node arena: a generational-handle
// store of typed nodes with intrusive parent/child/sibling links, the
// uuid side index, and the structural mutation primitives the edit
// pipeline (package edit) composes into full operations. graph itself
// never constructs events, it only reports enough about what changed for
// the caller to do so.
//
// Children hang off an intrusive doubly linked sibling list rather than
// a per-parent map so that Move/reorder are O(1) and iteration order is
// deterministic without any auxiliary bookkeeping.
package graph

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// NodeMeta is the descriptive state every node carries.
type NodeMeta struct {
	Uuid             id.NodeUuid
	DeclId           *id.DeclId
	ShortName        string
	Enabled          bool
	Label            string
	Description      string
	Tags             []string
	SemanticsHint    string
	PresentationHint string
}

// Clone returns a deep copy of m (Tags is a distinct backing slice).
func (m NodeMeta) Clone() NodeMeta {
	c := m
	if m.DeclId != nil {
		d := *m.DeclId
		c.DeclId = &d
	}
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	return c
}

// ContainerData is the runtime instance of schema.ContainerSpec.
type ContainerData struct {
	Allowed schema.AllowedTypes
	Folders schema.FolderPolicy
	Limits  schema.Limits
}

// ParameterData is the runtime instance of a DataParameter node.
type ParameterData struct {
	Value        value.Value
	Default      value.Value
	ReadOnly     bool
	UpdatePolicy schema.UpdatePolicy
	SavePolicy   schema.SavePolicy
	ChangePolicy schema.ChangePolicy
	Constraints  value.Constraints
	Append       bool
}

// CustomData wraps an opaque blob a node type defines and the runtime
// never introspects.
type CustomData struct {
	Blob any
}

// NodeData is the closed tagged union of a node's typed payload.
type NodeData struct {
	Kind      schema.DataKind
	Container ContainerData
	Parameter ParameterData
	Custom    CustomData
}

// Node is one arena entry. Linkage fields are unexported: only Store
// mutates them, via the primitives in store.go. Meta/Data/Behavior are
// exported for read access by edit, route, engine, persist, and dto,
// which all treat them as read-only except through Store's mutator
// methods.
type Node struct {
	id     id.NodeId
	typeId id.NodeTypeId

	parent     id.NodeId
	firstChild id.NodeId
	lastChild  id.NodeId
	prev       id.NodeId
	next       id.NodeId

	Meta     NodeMeta
	Data     NodeData
	Behavior *schema.Behavior
	Inbox    *event.Inbox
}

func (n *Node) ID() id.NodeId          { return n.id }
func (n *Node) TypeId() id.NodeTypeId  { return n.typeId }
func (n *Node) Parent() id.NodeId      { return n.parent }
func (n *Node) FirstChild() id.NodeId  { return n.firstChild }
func (n *Node) LastChild() id.NodeId   { return n.lastChild }
func (n *Node) PrevSibling() id.NodeId { return n.prev }
func (n *Node) NextSibling() id.NodeId { return n.next }
func (n *Node) HasChildren() bool      { return n.firstChild.IsValid() }
