package persist

import (
	"fmt"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// Load instantiates file's record tree under parent (id.Invalid for a
// standalone root) against reg's schema, in three phases: a schema
// skeleton is built first (graph.Store's CreateNode/ReplaceSlot already
// recurse through every declared eager child and reserve every potential
// slot's uuid), then file.Root's records are applied top-down to
// reconcile overrides onto that skeleton, then every Reference value in
// the loaded subtree is resolved against the now-complete uuid index.
func Load(store *graph.Store, reg *schema.Registry, parent id.NodeId, file *File, opts Options) (id.NodeId, error) {
	if err := migrate(file); err != nil {
		return id.Invalid, err
	}
	root := file.Root
	if !root.IsFull() {
		return id.Invalid, &Error{Reason: ReasonMalformedRecord, Detail: "root record must be Full (type present)"}
	}
	desc, ok := reg.Lookup(root.Type)
	if !ok {
		return id.Invalid, &Error{Reason: ReasonMalformedRecord, Detail: fmt.Sprintf("unregistered root type %q", root.Type)}
	}
	rootId, _, err := store.CreateNode(parent, root.Type, defaultMeta(), graph.DefaultData(desc))
	if err != nil {
		return id.Invalid, err
	}
	if err := applyOverrides(store, reg, rootId, root, opts); err != nil {
		return id.Invalid, err
	}
	resolveReferences(store)
	return rootId, nil
}

// applyOverrides rebinds uuid and applies whatever meta/data overrides
// rec carries onto the already-instantiated skeleton node n, then walks
// rec.Children.
func applyOverrides(store *graph.Store, reg *schema.Registry, n id.NodeId, rec Record, opts Options) error {
	if !rec.Uuid.IsNil() {
		if err := store.RebindUuid(n, rec.Uuid); err != nil {
			return err
		}
	}
	if rec.Meta != nil {
		applyMetaRecord(store, n, rec.Meta)
	}
	if rec.Data != nil {
		if err := applyDataRecord(store, n, rec.Data); err != nil {
			return err
		}
	}
	return applyChildren(store, reg, n, rec.Children, opts)
}

func applyChildren(store *graph.Store, reg *schema.Registry, parent id.NodeId, records []Record, opts Options) error {
	for _, rec := range records {
		if err := applyOneRecord(store, reg, parent, rec, opts); err != nil {
			return err
		}
	}
	return nil
}

// applyOneRecord dispatches one child record of parent to the matching
// reconciliation case: a Delta overriding a schema-declared eager child,
// a Full record carrying a decl_id materializing a potential slot, or a
// plain Full record creating a dynamic child.
func applyOneRecord(store *graph.Store, reg *schema.Registry, parent id.NodeId, rec Record, opts Options) error {
	pnd, ok := store.Resolve(parent)
	if !ok {
		return &Error{Reason: ReasonMalformedRecord, Detail: "load: parent no longer resolves"}
	}
	desc, _ := reg.Lookup(pnd.TypeId())

	switch {
	case rec.IsFull() && rec.DeclId != "":
		return applyCaseB(store, reg, desc, parent, rec, opts)
	case rec.IsFull():
		return applyCaseC(store, reg, parent, rec, opts)
	default:
		return applyCaseA(store, reg, desc, parent, rec, opts)
	}
}

func applyCaseA(store *graph.Store, reg *schema.Registry, parentDesc *schema.TypeDescriptor, parent id.NodeId, rec Record, opts Options) error {
	child, ok := findDeclaredChild(store, parent, rec.DeclId)
	if !ok {
		if opts.Strict {
			return errUnknownDeclId(parent.String(), string(rec.DeclId))
		}
		return nil
	}
	return applyOverrides(store, reg, child, rec, opts)
}

func findDeclaredChild(store *graph.Store, parent id.NodeId, decl id.DeclId) (id.NodeId, bool) {
	for _, c := range store.Children(parent) {
		nd, ok := store.Resolve(c)
		if ok && nd.Meta.DeclId != nil && *nd.Meta.DeclId == decl {
			return c, true
		}
	}
	return id.Invalid, false
}

func applyCaseB(store *graph.Store, reg *schema.Registry, parentDesc *schema.TypeDescriptor, parent id.NodeId, rec Record, opts Options) error {
	if parentDesc == nil {
		return errSlotTypeMismatch(string(rec.DeclId), string(rec.Type))
	}
	slot, ok := parentDesc.FindSlot(rec.DeclId)
	if !ok {
		if opts.Strict {
			return errUnknownDeclId(parent.String(), string(rec.DeclId))
		}
		return nil
	}
	if !slot.Allowed.Permits(rec.Type) {
		return errSlotTypeMismatch(string(rec.DeclId), string(rec.Type))
	}
	newDesc, ok := reg.Lookup(rec.Type)
	if !ok {
		return &Error{Reason: ReasonMalformedRecord, Detail: fmt.Sprintf("unregistered type %q for slot %q", rec.Type, rec.DeclId)}
	}
	_, newChild, _, err := store.ReplaceSlot(parent, rec.DeclId, rec.Type, graph.DefaultData(newDesc))
	if err != nil {
		return err
	}
	return applyOverrides(store, reg, newChild, rec, opts)
}

func applyCaseC(store *graph.Store, reg *schema.Registry, parent id.NodeId, rec Record, opts Options) error {
	desc, ok := reg.Lookup(rec.Type)
	if !ok {
		return &Error{Reason: ReasonMalformedRecord, Detail: fmt.Sprintf("unregistered type %q for dynamic child", rec.Type)}
	}
	handle, _, err := store.CreateNode(parent, rec.Type, defaultMeta(), graph.DefaultData(desc))
	if err != nil {
		return err
	}
	return applyOverrides(store, reg, handle, rec, opts)
}

func applyMetaRecord(store *graph.Store, n id.NodeId, m *MetaRecord) {
	patch := event.MetaPatch{
		ShortName:        m.ShortName,
		Enabled:          m.Enabled,
		Label:            m.Label,
		Description:      m.Description,
		Tags:             m.Tags,
		SemanticsHint:    m.SemanticsHint,
		PresentationHint: m.PresentationHint,
	}
	store.PatchMeta(n, patch, true)
}

func applyDataRecord(store *graph.Store, n id.NodeId, d *DataRecord) error {
	nd, ok := store.Resolve(n)
	if !ok {
		return &Error{Reason: ReasonMalformedRecord, Detail: "load: target no longer resolves while applying data"}
	}
	switch nd.Data.Kind {
	case schema.DataParameter:
		if d.Value != nil {
			nd.Data.Parameter.Value = *d.Value
		}
	case schema.DataCustom:
		nd.Data.Custom.Blob = d.Custom
	}
	return nil
}

// resolveReferences is Load's final phase: rewrite every Reference
// value's CachedId against the store's uuid index now that the whole
// loaded subtree exists. A target uuid that isn't present resolves to
// id.Invalid -- a legal dangling reference.
func resolveReferences(store *graph.Store) {
	for _, n := range store.AllLive() {
		nd, ok := store.Resolve(n)
		if !ok || nd.Data.Kind != schema.DataParameter {
			continue
		}
		if nd.Data.Parameter.Value.Kind() != value.KindReference {
			continue
		}
		ref := nd.Data.Parameter.Value.Reference()
		cached := id.Invalid
		if target, ok := store.ResolveUuid(ref.Uuid); ok {
			cached = target
		}
		nd.Data.Parameter.Value = value.MakeReference(value.Reference{Uuid: ref.Uuid, CachedId: cached})
	}
}
