// Package id defines the identifier types of the Golden Core data model:
// session-local generational handles, stable persisted identity, schema
// declaration keys, and registered type names.
//
// NodeId pairs an arena index with a generation counter that invalidates
// stale handles after slot reuse. It is an explicit exported struct
// because handles cross package boundaries (graph, event, edit, engine)
// rather than staying private to one owner.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeId is a session-local handle into the graph arena. It is never
// persisted and never sent to peers as stable identity; NodeUuid serves
// that role. The zero value is the invalid handle.
type NodeId struct {
	index uint32
	gen   uint32
}

// Invalid is the zero-value NodeId; Store.Resolve never returns it as live.
var Invalid = NodeId{}

// NewNodeId constructs a handle from an arena slot index and generation.
// Only graph.Store should call this.
func NewNodeId(index, gen uint32) NodeId { return NodeId{index: index, gen: gen} }

// Index returns the arena slot this handle addresses.
func (n NodeId) Index() uint32 { return n.index }

// Generation returns the generation this handle was minted for.
func (n NodeId) Generation() uint32 { return n.gen }

// IsValid reports whether n is not the zero handle. It does not imply the
// handle still resolves to a live node; use graph.Store.Resolve for that.
func (n NodeId) IsValid() bool { return n != Invalid }

func (n NodeId) String() string {
	return fmt.Sprintf("Node#%d.%d", n.index, n.gen)
}

// Less gives NodeId a total order used by the scheduler's deterministic
// arena-order iteration and by deterministic iteration over id-keyed
// maps in tests.
func (n NodeId) Less(o NodeId) bool {
	if n.index != o.index {
		return n.index < o.index
	}
	return n.gen < o.gen
}

// MarshalText renders the wire form a dto.Tree or EventBatch payload
// carries a NodeId in (session-scoped only: a client must treat it as
// opaque and never persist it).
func (n NodeId) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses the String() form back into a NodeId. Only valid
// for round-tripping within the session that minted it.
func (n *NodeId) UnmarshalText(b []byte) error {
	var idx, gen uint32
	if _, err := fmt.Sscanf(string(b), "Node#%d.%d", &idx, &gen); err != nil {
		return fmt.Errorf("id: parse node handle %q: %w", b, err)
	}
	*n = NodeId{index: idx, gen: gen}
	return nil
}

// NodeUuid is the 128-bit stable identity persisted across save/load and
// used by Reference values. Two NodeUuid values are equal iff they denote
// the same logical node across the node's lifetime (re-parenting, slot
// replacement with preserved identity, etc. never change it).
type NodeUuid uuid.UUID

// NilUuid is the zero NodeUuid, used as a sentinel for "no uuid assigned
// yet" in code paths that allocate one lazily.
var NilUuid = NodeUuid(uuid.Nil)

// NewUuid mints a fresh random NodeUuid (version 4).
func NewUuid() NodeUuid { return NodeUuid(uuid.New()) }

// ParseUuid parses the canonical string form produced by String.
func ParseUuid(s string) (NodeUuid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilUuid, fmt.Errorf("id: parse uuid %q: %w", s, err)
	}
	return NodeUuid(u), nil
}

func (u NodeUuid) String() string { return uuid.UUID(u).String() }

// IsNil reports whether u is the zero uuid.
func (u NodeUuid) IsNil() bool { return u == NilUuid }

func (u NodeUuid) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *NodeUuid) UnmarshalText(b []byte) error {
	parsed, err := ParseUuid(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// DeclId is a schema declaration key, unique within a single parent's
// declared scope. It has no uniqueness guarantee across different
// parents or different schemas.
type DeclId string

// NodeTypeId names a registered node type (schema.Registry key).
type NodeTypeId string
