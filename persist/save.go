package persist

import (
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// Save produces the persisted record tree rooted at root: a Full record
// for root and every dynamic or potential-slot descendant, a Delta (or
// omitted) record for every schema-declared eager child, plus whatever
// reference-closure bindings the saved values require.
func Save(store *graph.Store, reg *schema.Registry, root id.NodeId) (*File, error) {
	if _, ok := store.Resolve(root); !ok {
		return nil, &Error{Reason: ReasonMalformedRecord, Detail: "save: root handle does not resolve"}
	}
	forced := closureForcedSet(store, root)
	rec := fullRecord(store, reg, root, forced)
	return &File{Version: CurrentVersion, Root: rec}, nil
}

// closureForcedSet computes every declared node (Meta.DeclId != nil)
// that must be saved solely because a live Reference value targets it or
// one of its declared descendants, even though it would otherwise have
// no overrides of its own and no other reason to appear. Without these
// bindings a reloaded reference could not re-attach to its target's
// regenerated skeleton node.
func closureForcedSet(store *graph.Store, root id.NodeId) map[id.NodeId]bool {
	forced := make(map[id.NodeId]bool)
	var walk func(id.NodeId)
	walk = func(n id.NodeId) {
		nd, ok := store.Resolve(n)
		if !ok {
			return
		}
		if nd.Data.Kind == schema.DataParameter && nd.Data.Parameter.Value.Kind() == value.KindReference {
			ref := nd.Data.Parameter.Value.Reference()
			if target, ok := store.ResolveUuid(ref.Uuid); ok {
				forceChain(store, target, forced)
			}
		}
		for _, c := range store.Children(n) {
			walk(c)
		}
	}
	walk(root)
	return forced
}

// forceChain marks n and every declared ancestor of n as forced, stopping
// as soon as it reaches a node with no DeclId (a dynamic node, or the
// overall root): those are always saved Full by the general recursion
// regardless, so nothing above them needs forcing.
func forceChain(store *graph.Store, n id.NodeId, forced map[id.NodeId]bool) {
	cur := n
	for {
		nd, ok := store.Resolve(cur)
		if !ok || nd.Meta.DeclId == nil || forced[cur] {
			return
		}
		forced[cur] = true
		parent := nd.Parent()
		if !parent.IsValid() {
			return
		}
		cur = parent
	}
}

func fullRecord(store *graph.Store, reg *schema.Registry, n id.NodeId, forced map[id.NodeId]bool) Record {
	nd, _ := store.Resolve(n)
	rec := Record{
		Type: nd.TypeId(),
		Uuid: nd.Meta.Uuid,
		Meta: fullMetaRecord(nd.Meta),
		Data: fullDataRecord(nd.Data),
	}
	if nd.Meta.DeclId != nil {
		rec.DeclId = *nd.Meta.DeclId
	}
	rec.Children = childRecords(store, reg, n, forced)
	return rec
}

func childRecords(store *graph.Store, reg *schema.Registry, parent id.NodeId, forced map[id.NodeId]bool) []Record {
	pnd, _ := store.Resolve(parent)
	desc, _ := reg.Lookup(pnd.TypeId())
	var out []Record
	for _, c := range store.Children(parent) {
		rec, ok := saveChild(store, reg, desc, c, forced)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

// saveChild classifies one child against its parent's schema: dynamic
// children save Full, potential-slot materializations save Full with
// their decl_id, and schema-declared eager children save as Delta or are
// omitted entirely when they carry no overrides and nothing forces them.
func saveChild(store *graph.Store, reg *schema.Registry, parentDesc *schema.TypeDescriptor, n id.NodeId, forced map[id.NodeId]bool) (Record, bool) {
	nd, ok := store.Resolve(n)
	if !ok {
		return Record{}, false
	}
	if nd.Meta.DeclId == nil {
		return fullRecord(store, reg, n, forced), true
	}
	decl := *nd.Meta.DeclId
	if parentDesc != nil {
		if _, isSlot := parentDesc.FindSlot(decl); isSlot {
			rec := fullRecord(store, reg, n, forced)
			rec.DeclId = decl
			return rec, true
		}
	}
	return deltaRecord(store, reg, n, decl, forced)
}

func deltaRecord(store *graph.Store, reg *schema.Registry, n id.NodeId, decl id.DeclId, forced map[id.NodeId]bool) (Record, bool) {
	nd, _ := store.Resolve(n)
	metaRec, metaOverridden := overriddenMeta(nd.Meta)
	dataRec, dataOverridden := overriddenData(nd)
	children := childRecords(store, reg, n, forced)

	include := metaOverridden || dataOverridden || len(children) > 0 || forced[n]
	if !include {
		return Record{}, false
	}

	rec := Record{DeclId: decl, Children: children}
	if metaOverridden || dataOverridden || forced[n] {
		rec.Uuid = nd.Meta.Uuid
	}
	if metaOverridden {
		rec.Meta = metaRec
	}
	if dataOverridden {
		rec.Data = dataRec
	}
	return rec, true
}

// overriddenMeta reports which of m's fields differ from defaultMeta,
// returning a MetaRecord populated with only those fields.
func overriddenMeta(m graph.NodeMeta) (*MetaRecord, bool) {
	def := defaultMeta()
	var rec MetaRecord
	any := false
	if m.ShortName != def.ShortName {
		v := m.ShortName
		rec.ShortName = &v
		any = true
	}
	if m.Enabled != def.Enabled {
		v := m.Enabled
		rec.Enabled = &v
		any = true
	}
	if m.Label != def.Label {
		v := m.Label
		rec.Label = &v
		any = true
	}
	if m.Description != def.Description {
		v := m.Description
		rec.Description = &v
		any = true
	}
	if len(m.Tags) > 0 {
		v := append([]string(nil), m.Tags...)
		rec.Tags = &v
		any = true
	}
	if m.SemanticsHint != def.SemanticsHint {
		v := m.SemanticsHint
		rec.SemanticsHint = &v
		any = true
	}
	if m.PresentationHint != def.PresentationHint {
		v := m.PresentationHint
		rec.PresentationHint = &v
		any = true
	}
	if !any {
		return nil, false
	}
	return &rec, true
}

// overriddenData reports whether a Parameter node's value counts as an
// override worth a Delta record, per its SavePolicy: SaveNone never,
// SaveFull always, SaveDelta only when the value differs from its own
// declared default. A Custom node counts when it carries a non-nil blob.
// Container and None nodes never carry data overrides of their own; a
// Container's state is entirely its children list.
func overriddenData(nd *graph.Node) (*DataRecord, bool) {
	switch nd.Data.Kind {
	case schema.DataParameter:
		p := nd.Data.Parameter
		switch {
		case p.SavePolicy == schema.SaveNone:
			return nil, false
		case p.SavePolicy == schema.SaveDelta && value.Equal(p.Value, p.Default):
			return nil, false
		}
		v := p.Value
		return &DataRecord{Value: &v}, true
	case schema.DataCustom:
		if nd.Data.Custom.Blob == nil {
			return nil, false
		}
		return &DataRecord{Custom: nd.Data.Custom.Blob}, true
	default:
		return nil, false
	}
}

func fullMetaRecord(m graph.NodeMeta) *MetaRecord {
	tags := append([]string(nil), m.Tags...)
	return &MetaRecord{
		ShortName:        &m.ShortName,
		Enabled:          &m.Enabled,
		Label:            &m.Label,
		Description:      &m.Description,
		Tags:             &tags,
		SemanticsHint:    &m.SemanticsHint,
		PresentationHint: &m.PresentationHint,
	}
}

// fullDataRecord builds the data payload of a Full record, honoring the
// parameter's SavePolicy the same way overriddenData does: a SaveNone
// value stays out of the file even when its node saves Full, and a
// SaveDelta value at its declared default is omitted (the loader's
// skeleton restores the default on its own).
func fullDataRecord(d graph.NodeData) *DataRecord {
	switch d.Kind {
	case schema.DataParameter:
		p := d.Parameter
		switch {
		case p.SavePolicy == schema.SaveNone:
			return nil
		case p.SavePolicy == schema.SaveDelta && value.Equal(p.Value, p.Default):
			return nil
		}
		v := p.Value
		return &DataRecord{Value: &v}
	case schema.DataCustom:
		return &DataRecord{Custom: d.Custom.Blob}
	default:
		return nil
	}
}
