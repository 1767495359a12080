package graph

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

type slot struct {
	gen   uint32
	alive bool
	node  *Node
}

// Store is the arena of nodes. Every exported mutator is a primitive
// intended to be called by exactly one caller in the whole engine:
// edit.Applier (persist.Load and history replay reuse the same
// primitives when reconciling offline state). Node code and UI/network
// code never touch a Store directly.
type Store struct {
	registry *schema.Registry

	slots    []slot
	freeList []uint32

	uuidIndex map[id.NodeUuid]id.NodeId

	// slotUuid/slotOccupant back potential-slot UUID stability: a slot's
	// identity is reserved the moment its declaring parent is created,
	// independent of whether it is materialized yet.
	slotUuid     map[id.NodeId]map[id.DeclId]id.NodeUuid
	slotOccupant map[id.NodeId]map[id.DeclId]id.NodeId
}

// NewStore constructs an empty arena bound to reg for type lookups.
func NewStore(reg *schema.Registry) *Store {
	return &Store{
		registry:     reg,
		uuidIndex:    make(map[id.NodeUuid]id.NodeId),
		slotUuid:     make(map[id.NodeId]map[id.DeclId]id.NodeUuid),
		slotOccupant: make(map[id.NodeId]map[id.DeclId]id.NodeId),
	}
}

// Registry returns the schema registry this store validates against.
func (s *Store) Registry() *schema.Registry { return s.registry }

// Resolve returns the live node for n, or (nil, false) if n is stale,
// forgotten, or the zero handle.
func (s *Store) Resolve(n id.NodeId) (*Node, bool) {
	if !n.IsValid() || int(n.Index()) >= len(s.slots) {
		return nil, false
	}
	sl := s.slots[n.Index()]
	if !sl.alive || sl.gen != n.Generation() {
		return nil, false
	}
	return sl.node, true
}

// ResolveUuid looks up a node by stable identity via the side index.
func (s *Store) ResolveUuid(u id.NodeUuid) (id.NodeId, bool) {
	n, ok := s.uuidIndex[u]
	return n, ok
}

// RebindUuid changes n's stable identity and updates the uuid side index
// accordingly. Used when reconciling a loaded or replayed record's uuid
// onto a node already instantiated from the schema skeleton; never
// called from the live edit pipeline.
func (s *Store) RebindUuid(n id.NodeId, newUuid id.NodeUuid) error {
	nd, ok := s.Resolve(n)
	if !ok {
		return errDanglingHandle("rebind_uuid: stale handle")
	}
	if newUuid.IsNil() || newUuid == nd.Meta.Uuid {
		return nil
	}
	if _, dup := s.uuidIndex[newUuid]; dup {
		return errValidationFailed("uuid", "uuid already present in process")
	}
	delete(s.uuidIndex, nd.Meta.Uuid)
	nd.Meta.Uuid = newUuid
	s.uuidIndex[newUuid] = n
	return nil
}

// AllLive returns every live NodeId in arena order (ascending slot
// index), the order the scheduler iterates for determinism.
func (s *Store) AllLive() []id.NodeId {
	out := make([]id.NodeId, 0, len(s.slots))
	for i, sl := range s.slots {
		if sl.alive {
			out = append(out, id.NewNodeId(uint32(i), sl.gen))
		}
	}
	return out
}

// Children returns n's children in sibling order by walking the
// intrusive list.
func (s *Store) Children(n id.NodeId) []id.NodeId {
	nd, ok := s.Resolve(n)
	if !ok {
		return nil
	}
	var out []id.NodeId
	for c := nd.firstChild; c.IsValid(); {
		cn, ok := s.Resolve(c)
		if !ok {
			break
		}
		out = append(out, c)
		c = cn.next
	}
	return out
}

// indexOf returns the 0-based position of child within parent's sibling
// list, or -1 if not found.
func (s *Store) indexOf(parent, child id.NodeId) int {
	i := 0
	pn, ok := s.Resolve(parent)
	if !ok {
		return -1
	}
	for c := pn.firstChild; c.IsValid(); i++ {
		if c == child {
			return i
		}
		cn, ok := s.Resolve(c)
		if !ok {
			return -1
		}
		c = cn.next
	}
	return -1
}

func (s *Store) allocate(n *Node) id.NodeId {
	if len(s.freeList) > 0 {
		idx := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		gen := s.slots[idx].gen + 1
		hid := id.NewNodeId(idx, gen)
		n.id = hid
		s.slots[idx] = slot{gen: gen, alive: true, node: n}
		return hid
	}
	idx := uint32(len(s.slots))
	hid := id.NewNodeId(idx, 1)
	n.id = hid
	s.slots = append(s.slots, slot{gen: 1, alive: true, node: n})
	return hid
}

func (s *Store) free(n id.NodeId) {
	idx := n.Index()
	s.slots[idx] = slot{gen: s.slots[idx].gen, alive: false}
	s.freeList = append(s.freeList, idx)
}

// reserveSlotUuids mints a stable uuid for every PotentialSlot the given
// type declares, the moment a node of that type is created, so that
// ReplaceSlot calls before the first materialization already have a uuid
// to preserve.
func (s *Store) reserveSlotUuids(parent id.NodeId, desc *schema.TypeDescriptor) {
	if len(desc.PotentialSlots) == 0 {
		return
	}
	m := make(map[id.DeclId]id.NodeUuid, len(desc.PotentialSlots))
	for _, slotDecl := range desc.PotentialSlots {
		m[slotDecl.DeclId] = id.NewUuid()
	}
	s.slotUuid[parent] = m
	s.slotOccupant[parent] = make(map[id.DeclId]id.NodeId)
}

// CreateNode allocates a new node of typeId under parent (parent may be
// id.Invalid only for the very first/root node a caller creates) and
// appends it as the last child. It validates type registration and
// (for non-root creates) the parent's container rules (invariant 4).
// Container data whose AllowedTypes is the zero value takes the type's
// declared AllowedTypes. On success it returns the new handle and the
// 0-based index it was inserted at.
func (s *Store) CreateNode(parent id.NodeId, typeId id.NodeTypeId, meta NodeMeta, data NodeData) (id.NodeId, int, error) {
	desc, ok := s.registry.Lookup(typeId)
	if !ok {
		return id.Invalid, 0, errTypeNotRegistered(typeId)
	}

	if parent.IsValid() {
		parentNode, ok := s.Resolve(parent)
		if !ok {
			return id.Invalid, 0, errDanglingHandle("create: parent handle is stale")
		}
		if err := s.checkCanParent(parentNode, typeId); err != nil {
			return id.Invalid, 0, err
		}
	}

	if data.Kind == schema.DataContainer && !data.Container.Allowed.Any && data.Container.Allowed.Set == nil {
		data.Container.Allowed = desc.Container.Allowed
	}

	if meta.Uuid.IsNil() {
		meta.Uuid = id.NewUuid()
	}
	if _, dup := s.uuidIndex[meta.Uuid]; dup {
		return id.Invalid, 0, errValidationFailed("uuid", "uuid already present in process (invariant 3)")
	}

	n := &Node{
		typeId:   typeId,
		parent:   id.Invalid,
		Meta:     meta,
		Data:     data,
		Behavior: behaviorOrNil(desc),
		Inbox:    event.NewInbox(),
	}
	handle := s.allocate(n)
	s.uuidIndex[meta.Uuid] = handle
	s.reserveSlotUuids(handle, desc)
	s.instantiateEagerChildren(handle, desc)
	s.materializeDefaultSlots(handle, desc)

	index := 0
	if parent.IsValid() {
		index = s.appendChild(parent, handle)
	}
	return handle, index, nil
}

// instantiateEagerChildren recursively creates every declared eager
// child of a freshly created node, so a declared child exists for every
// instance of its parent type regardless of which code path created the
// node: a live CreateNode edit, a ReplaceSlot materialization, or
// persist.Load's schema skeleton phase.
func (s *Store) instantiateEagerChildren(parent id.NodeId, desc *schema.TypeDescriptor) {
	for _, ec := range desc.EagerChildren {
		childDesc, ok := s.registry.Lookup(ec.Type)
		if !ok {
			continue
		}
		declCopy := ec.DeclId
		meta := NodeMeta{DeclId: &declCopy, Enabled: true}
		if _, _, err := s.CreateNode(parent, ec.Type, meta, DefaultData(childDesc)); err != nil {
			continue
		}
	}
}

// materializeDefaultSlots instantiates every PotentialSlot that declares a
// DefaultType, the moment its parent is created (schema.PotentialSlot
// "materialized automatically when the skeleton is built"). Slots with no
// DefaultType stay absent until a live replace_slot edit or a Case B load
// record materializes them.
func (s *Store) materializeDefaultSlots(parent id.NodeId, desc *schema.TypeDescriptor) {
	for _, slotDecl := range desc.PotentialSlots {
		if slotDecl.DefaultType == "" {
			continue
		}
		childDesc, ok := s.registry.Lookup(slotDecl.DefaultType)
		if !ok {
			continue
		}
		if _, _, _, err := s.ReplaceSlot(parent, slotDecl.DeclId, slotDecl.DefaultType, DefaultData(childDesc)); err != nil {
			continue
		}
	}
}

// DefaultData builds the zero-state NodeData for a freshly instantiated
// node of the given type: Container copies its schema-declared shape,
// Parameter starts at its declared default value, Custom starts with a
// nil blob until Init or a loaded record sets it.
func DefaultData(desc *schema.TypeDescriptor) NodeData {
	switch desc.DataKind {
	case schema.DataContainer:
		return NodeData{Kind: schema.DataContainer, Container: ContainerData{
			Allowed: desc.Container.Allowed,
			Folders: desc.Container.Folders,
			Limits:  desc.Container.Limits,
		}}
	case schema.DataParameter:
		return NodeData{Kind: schema.DataParameter, Parameter: ParameterData{
			Value:        desc.Parameter.Default,
			Default:      desc.Parameter.Default,
			ReadOnly:     desc.Parameter.ReadOnly,
			UpdatePolicy: desc.Parameter.UpdatePolicy,
			SavePolicy:   desc.Parameter.SavePolicy,
			ChangePolicy: desc.Parameter.ChangePolicy,
			Constraints:  desc.Parameter.Constraints,
			Append:       desc.Parameter.Append,
		}}
	case schema.DataCustom:
		return NodeData{Kind: schema.DataCustom}
	default:
		return NodeData{}
	}
}

func behaviorOrNil(desc *schema.TypeDescriptor) *schema.Behavior {
	b := desc.Behavior
	return &b
}

// checkCanParent enforces the leaf-only convention for Parameter/Custom
// data: only None and Container nodes may parent children, and Container
// nodes additionally enforce their declared AllowedTypes/Limits.
func (s *Store) checkCanParent(parentNode *Node, childType id.NodeTypeId) error {
	switch parentNode.Data.Kind {
	case schema.DataNone:
		return nil
	case schema.DataContainer:
		c := parentNode.Data.Container
		if !c.Allowed.Permits(childType) {
			return errParentForbidsType("child type not in parent's allowed set")
		}
		if c.Limits.MaxChildren > 0 {
			n := 0
			for cur := parentNode.firstChild; cur.IsValid(); n++ {
				cn, ok := s.Resolve(cur)
				if !ok {
					break
				}
				cur = cn.next
			}
			if n >= c.Limits.MaxChildren {
				return errCapacityExceeded("parent container at MaxChildren limit")
			}
		}
		return nil
	default:
		return errParentForbidsType("parent node type does not accept children")
	}
}

// appendChild links child as the new last child of parent and returns
// its 0-based index. Caller must have already validated the link.
func (s *Store) appendChild(parent, child id.NodeId) int {
	pn, _ := s.Resolve(parent)
	cn, _ := s.Resolve(child)
	cn.parent = parent
	index := 0
	if pn.lastChild.IsValid() {
		last, _ := s.Resolve(pn.lastChild)
		last.next = child
		cn.prev = pn.lastChild
		index = s.indexOf(parent, pn.lastChild) + 1
		pn.lastChild = child
	} else {
		pn.firstChild = child
		pn.lastChild = child
	}
	return index
}

// insertChildAt links child into parent's sibling list at the given
// 0-based index (clamped to [0, len]).
func (s *Store) insertChildAt(parent, child id.NodeId, index int) int {
	pn, _ := s.Resolve(parent)
	cn, _ := s.Resolve(child)
	cn.parent = parent

	if index < 0 {
		index = 0
	}
	if !pn.firstChild.IsValid() || index >= s.childCount(parent) {
		return s.appendChild(parent, child)
	}

	// walk to the current occupant of `index`, insert before it.
	at := pn.firstChild
	for i := 0; i < index; i++ {
		atNode, _ := s.Resolve(at)
		at = atNode.next
	}
	atNode, _ := s.Resolve(at)
	cn.next = at
	cn.prev = atNode.prev
	if atNode.prev.IsValid() {
		prevNode, _ := s.Resolve(atNode.prev)
		prevNode.next = child
	} else {
		pn.firstChild = child
	}
	atNode.prev = child
	return index
}

func (s *Store) childCount(parent id.NodeId) int {
	pn, ok := s.Resolve(parent)
	if !ok {
		return 0
	}
	n := 0
	for c := pn.firstChild; c.IsValid(); n++ {
		cn, ok := s.Resolve(c)
		if !ok {
			break
		}
		c = cn.next
	}
	return n
}

// unlinkChild removes child from its current parent's sibling list
// without freeing it, returning the parent and the index it occupied.
func (s *Store) unlinkChild(child id.NodeId) (parent id.NodeId, oldIndex int) {
	cn, ok := s.Resolve(child)
	if !ok {
		return id.Invalid, -1
	}
	parent = cn.parent
	oldIndex = s.indexOf(parent, child)
	pn, ok := s.Resolve(parent)
	if ok {
		if cn.prev.IsValid() {
			prevNode, _ := s.Resolve(cn.prev)
			prevNode.next = cn.next
		} else {
			pn.firstChild = cn.next
		}
		if cn.next.IsValid() {
			nextNode, _ := s.Resolve(cn.next)
			nextNode.prev = cn.prev
		} else {
			pn.lastChild = cn.prev
		}
	}
	cn.parent = id.Invalid
	cn.prev = id.Invalid
	cn.next = id.Invalid
	return parent, oldIndex
}

// Move detaches n from its current parent and re-attaches it under
// newParent at index. Returns the previous parent/index and the index n
// now occupies.
func (s *Store) Move(n, newParent id.NodeId, index int) (oldParent id.NodeId, oldIndex, newIndex int, err error) {
	cn, ok := s.Resolve(n)
	if !ok {
		return id.Invalid, 0, 0, errDanglingHandle("move: stale handle")
	}
	newParentNode, ok := s.Resolve(newParent)
	if !ok {
		return id.Invalid, 0, 0, errDanglingHandle("move: stale new parent")
	}
	if err := s.checkCanParent(newParentNode, cn.typeId); err != nil {
		return id.Invalid, 0, 0, err
	}
	oldParent, oldIndex = s.unlinkChild(n)
	newIndex = s.insertChildAt(newParent, n, index)
	return oldParent, oldIndex, newIndex, nil
}

// PlanDelete returns the subtree rooted at n in leaves-first (post-order)
// deletion order. It does not mutate the store.
func (s *Store) PlanDelete(n id.NodeId) []id.NodeId {
	var order []id.NodeId
	var walk func(id.NodeId)
	walk = func(cur id.NodeId) {
		for _, c := range s.Children(cur) {
			walk(c)
		}
		order = append(order, cur)
	}
	walk(n)
	return order
}

// RemoveOne unlinks and frees a single node (already destroyed by the
// caller if it had behavior), returning its former parent and index so
// the caller can emit ChildRemoved. It is the caller's responsibility to
// call this in the leaves-first order PlanDelete produced.
func (s *Store) RemoveOne(n id.NodeId) (parent id.NodeId, index int, ok bool) {
	nd, live := s.Resolve(n)
	if !live {
		return id.Invalid, -1, false
	}
	parent, index = s.unlinkChild(n)
	delete(s.uuidIndex, nd.Meta.Uuid)
	delete(s.slotUuid, n)
	delete(s.slotOccupant, n)
	if occ, ok := s.slotOccupant[parent]; ok {
		for decl, occupant := range occ {
			if occupant == n {
				delete(occ, decl)
			}
		}
	}
	s.free(n)
	return parent, index, true
}

// SlotOccupant returns the node currently materialized in parent's
// potential slot decl, if any.
func (s *Store) SlotOccupant(parent id.NodeId, decl id.DeclId) (id.NodeId, bool) {
	occ, ok := s.slotOccupant[parent][decl]
	return occ, ok && occ.IsValid()
}

// ReplaceSlot atomically detaches whatever currently occupies parent's
// potential slot decl (if anything) and attaches a freshly created node
// of newType/newData in its place, preserving the slot's reserved uuid
// across concrete type swaps.
func (s *Store) ReplaceSlot(parent id.NodeId, decl id.DeclId, newType id.NodeTypeId, newData NodeData) (oldChild, newChild id.NodeId, index int, err error) {
	parentNode, ok := s.Resolve(parent)
	if !ok {
		return id.Invalid, id.Invalid, 0, errDanglingHandle("replace_slot: stale parent")
	}
	desc, ok := s.registry.Lookup(parentNode.typeId)
	if !ok {
		return id.Invalid, id.Invalid, 0, errTypeNotRegistered(parentNode.typeId)
	}
	slotDecl, ok := desc.FindSlot(decl)
	if !ok {
		return id.Invalid, id.Invalid, 0, errSlotMismatch("parent has no potential slot with this decl_id")
	}
	if !slotDecl.Allowed.Permits(newType) {
		return id.Invalid, id.Invalid, 0, errSlotMismatch("new type not permitted by slot")
	}
	newDesc, ok := s.registry.Lookup(newType)
	if !ok {
		return id.Invalid, id.Invalid, 0, errTypeNotRegistered(newType)
	}

	reserved := s.slotUuid[parent][decl]
	if reserved.IsNil() {
		reserved = id.NewUuid()
		if s.slotUuid[parent] == nil {
			s.slotUuid[parent] = make(map[id.DeclId]id.NodeUuid)
		}
		s.slotUuid[parent][decl] = reserved
	}

	index = s.childCount(parent)
	if occ, ok := s.slotOccupant[parent][decl]; ok && occ.IsValid() {
		for _, victim := range s.PlanDelete(occ) {
			if victim == occ {
				index = s.indexOf(parent, victim)
			}
			s.RemoveOne(victim)
		}
		oldChild = occ
	}

	declCopy := decl
	meta := NodeMeta{Uuid: reserved, DeclId: &declCopy}
	n := &Node{
		typeId:   newType,
		Meta:     meta,
		Data:     newData,
		Behavior: behaviorOrNil(newDesc),
		Inbox:    event.NewInbox(),
	}
	handle := s.allocate(n)
	s.uuidIndex[reserved] = handle
	s.reserveSlotUuids(handle, newDesc)
	s.instantiateEagerChildren(handle, newDesc)
	s.materializeDefaultSlots(handle, newDesc)
	index = s.insertChildAt(parent, handle, index)

	if s.slotOccupant[parent] == nil {
		s.slotOccupant[parent] = make(map[id.DeclId]id.NodeId)
	}
	s.slotOccupant[parent][decl] = handle

	return oldChild, handle, index, nil
}

// PatchMeta shallow-merges patch into n's meta, returning the set of
// fields that actually changed (or, with always set, every field the
// patch names).
func (s *Store) PatchMeta(n id.NodeId, patch event.MetaPatch, always bool) ([]string, error) {
	nd, ok := s.Resolve(n)
	if !ok {
		return nil, errDanglingHandle("patch_meta: stale handle")
	}
	var changed []string
	set := func(field string, differs bool, apply func()) {
		if differs || always {
			changed = append(changed, field)
		}
		apply()
	}
	if patch.ShortName != nil {
		set("short_name", nd.Meta.ShortName != *patch.ShortName, func() { nd.Meta.ShortName = *patch.ShortName })
	}
	if patch.Enabled != nil {
		set("enabled", nd.Meta.Enabled != *patch.Enabled, func() { nd.Meta.Enabled = *patch.Enabled })
	}
	if patch.Label != nil {
		set("label", nd.Meta.Label != *patch.Label, func() { nd.Meta.Label = *patch.Label })
	}
	if patch.Description != nil {
		set("description", nd.Meta.Description != *patch.Description, func() { nd.Meta.Description = *patch.Description })
	}
	if patch.Tags != nil {
		set("tags", true, func() { nd.Meta.Tags = append([]string(nil), (*patch.Tags)...) })
	}
	if patch.SemanticsHint != nil {
		set("semantics_hint", nd.Meta.SemanticsHint != *patch.SemanticsHint, func() { nd.Meta.SemanticsHint = *patch.SemanticsHint })
	}
	if patch.PresentationHint != nil {
		set("presentation_hint", nd.Meta.PresentationHint != *patch.PresentationHint, func() { nd.Meta.PresentationHint = *patch.PresentationHint })
	}
	return changed, nil
}

// SetValue validates v against the parameter's constraints and, if
// accepted, writes it, returning the old and new (possibly clamped)
// value plus whether the value actually changed.
func (s *Store) SetValue(n id.NodeId, v value.Value) (oldVal, newVal value.Value, changed bool, err error) {
	nd, ok := s.Resolve(n)
	if !ok {
		return value.Value{}, value.Value{}, false, errDanglingHandle("set_value: stale handle")
	}
	if nd.Data.Kind != schema.DataParameter {
		return value.Value{}, value.Value{}, false, errValidationFailed("kind", "target is not a Parameter node")
	}
	p := &nd.Data.Parameter
	if p.ReadOnly {
		return value.Value{}, value.Value{}, false, errValidationFailed("read_only", "parameter is read-only")
	}
	accepted, verr := p.Constraints.Validate(v)
	if verr != nil {
		return value.Value{}, value.Value{}, false, errValidationFailed("value", verr.Error())
	}
	oldVal = p.Value
	p.Value = accepted
	changed = !value.Equal(oldVal, accepted)
	return oldVal, accepted, changed, nil
}
