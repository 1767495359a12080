// Package schema implements the node type registry: the declaration-time
// descriptors a schema front end compiles down to, and the capability-set
// dispatch table for node behavior. A type's Behavior is a closed set of
// optional callbacks bound once at registration and looked up by
// NodeTypeId at runtime, rather than a deep type hierarchy.
package schema

import (
	"fmt"
	"sync"

	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// DataKind says which NodeData variant a type instantiates.
type DataKind uint8

const (
	DataNone DataKind = iota
	DataContainer
	DataParameter
	DataCustom
)

// FolderPolicy controls whether a Container may hold folder-like children.
type FolderPolicy uint8

const (
	FoldersAllowed FolderPolicy = iota
	FoldersForbidden
)

// AllowedTypes restricts what NodeTypeId values a Container may parent.
// A nil Set with Any==true means unrestricted.
type AllowedTypes struct {
	Any bool
	Set map[id.NodeTypeId]struct{}
}

func AnyType() AllowedTypes { return AllowedTypes{Any: true} }

func OnlyTypes(types ...id.NodeTypeId) AllowedTypes {
	set := make(map[id.NodeTypeId]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return AllowedTypes{Set: set}
}

func (a AllowedTypes) Permits(t id.NodeTypeId) bool {
	if a.Any {
		return true
	}
	_, ok := a.Set[t]
	return ok
}

// Limits bounds a Container's child count. Zero means unbounded.
type Limits struct {
	MaxChildren int
}

// ContainerSpec is the declaration-time shape of a DataContainer node.
type ContainerSpec struct {
	Allowed AllowedTypes
	Folders FolderPolicy
	Limits  Limits
}

// ParameterSpec is the declaration-time shape of a DataParameter node.
type ParameterSpec struct {
	Kind         value.Kind
	Default      value.Value
	ReadOnly     bool
	UpdatePolicy UpdatePolicy
	SavePolicy   SavePolicy
	ChangePolicy ChangePolicy
	Constraints  value.Constraints
	// Append marks a parameter whose ParamChanged events are always
	// appended (stream-like), even for non-Trigger kinds. Trigger-kind
	// parameters are always append, regardless of this flag.
	Append bool
}

// UpdatePolicy selects the default propagation phase for edits to a
// parameter.
type UpdatePolicy uint8

const (
	PolicyImmediate UpdatePolicy = iota
	PolicyEndOfTick
	PolicyNextTick
)

// SavePolicy controls whether a parameter's value is persisted: Delta
// (the default) writes the value only when it differs from the declared
// default, Full writes it whenever the node's record is emitted at all,
// None never writes it.
type SavePolicy uint8

const (
	SaveDelta SavePolicy = iota
	SaveFull
	SaveNone
)

// ChangePolicy controls whether an event is emitted only on an actual
// value change or on every write.
type ChangePolicy uint8

const (
	ChangeOnValueChange ChangePolicy = iota
	ChangeAlways
)

// PotentialSlot declares an optional child identity whose concrete type
// may be one of an allowed set; at runtime the slot is either absent or
// materialized as exactly one child.
type PotentialSlot struct {
	DeclId  id.DeclId
	Allowed AllowedTypes
	// DefaultType, if non-empty, is materialized automatically when the
	// skeleton is built (persist.Load phase 1); an empty DefaultType
	// leaves the slot absent until replace_slot or a Case B load record
	// materializes it.
	DefaultType id.NodeTypeId
}

// EagerChild declares a child that always exists for every instance of
// the parent type, identified within the parent's declared scope by
// DeclId; persisted Delta records resolve against it on load.
type EagerChild struct {
	DeclId id.DeclId
	Type   id.NodeTypeId
}

// EnumDef describes one enum type referenced by ParameterSpec.Constraints
// when Kind==KindEnum.
type EnumDef struct {
	EnumId   string
	Variants []VariantDef
}

type VariantDef struct {
	VariantId string
	Label     string
}

// Behavior is the capability set a node type may implement: Init runs
// once before the first Process call, Update (optional, nil if absent)
// runs during the continuous-update pass, Process runs when the node is
// pending, Destroy runs once before removal. All four run on the engine
// thread only and must not block.
//
// The function signatures take `any` for the ProcessCtx-shaped argument
// to avoid an import cycle between schema and engine; engine.ProcessCtx
// satisfies the real parameter type nodes receive, and engine performs
// the (safe, engine-internal) type assertion.
type Behavior struct {
	Init    func(ctx any)
	Update  func(ctx any) // nil => type does not implement continuous update
	Process func(ctx any)
	Destroy func(ctx any)
}

func (b Behavior) HasUpdate() bool { return b.Update != nil }

// TypeDescriptor is the full compiled schema for one registered node
// type.
type TypeDescriptor struct {
	TypeId   id.NodeTypeId
	DataKind DataKind

	Container ContainerSpec
	Parameter ParameterSpec

	EagerChildren  []EagerChild
	PotentialSlots []PotentialSlot

	// ManagerBoundary flags that bubbling of summarized events should
	// terminate at nodes of this type.
	ManagerBoundary bool

	Behavior Behavior

	// Category/DisplayOrder are UI hints only, never read by the engine
	// itself.
	Category     string
	DisplayOrder int
}

// Registry maps NodeTypeId to its compiled descriptor, plus the global
// enum definition table referenced by parameter constraints.
type Registry struct {
	mu    sync.RWMutex
	types map[id.NodeTypeId]*TypeDescriptor
	enums map[string]EnumDef
}

func NewRegistry() *Registry {
	return &Registry{
		types: make(map[id.NodeTypeId]*TypeDescriptor),
		enums: make(map[string]EnumDef),
	}
}

func (r *Registry) Register(desc TypeDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[desc.TypeId]; exists {
		return fmt.Errorf("schema: type %q already registered", desc.TypeId)
	}
	d := desc
	r.types[desc.TypeId] = &d
	return nil
}

// Lookup returns the descriptor for t, or (nil, false) if unregistered
// (edit.ErrTypeNotRegistered in the applier).
func (r *Registry) Lookup(t id.NodeTypeId) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[t]
	return d, ok
}

func (r *Registry) RegisterEnum(def EnumDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[def.EnumId] = def
}

func (r *Registry) LookupEnum(enumId string) (EnumDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.enums[enumId]
	return d, ok
}

// FindSlot looks up a declared slot by DeclId.
func (d *TypeDescriptor) FindSlot(decl id.DeclId) (PotentialSlot, bool) {
	for _, s := range d.PotentialSlots {
		if s.DeclId == decl {
			return s, true
		}
	}
	return PotentialSlot{}, false
}

// FindEagerChild looks up a declared eager child by DeclId.
func (d *TypeDescriptor) FindEagerChild(decl id.DeclId) (EagerChild, bool) {
	for _, c := range d.EagerChildren {
		if c.DeclId == decl {
			return c, true
		}
	}
	return EagerChild{}, false
}
