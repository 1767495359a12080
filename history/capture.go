package history

import (
	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// touchState holds the pre-session snapshot of one state-like target
// (value / meta / structural position) plus the store it was captured
// from, so the forward (redo) op can read the live final state at
// session-commit time instead of tracking every intermediate write.
type touchState struct {
	store *graph.Store

	preValue value.Value

	preMeta       graph.NodeMeta
	touchedFields map[string]bool

	preParent id.NodeId
	preIndex  int
}

func (ts *touchState) inverseOp(key touchKey) Op {
	target := key.target
	switch key.kind {
	case touchSetParam:
		v := ts.preValue
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.SetParam(target, v, edit.Immediate), now)
			return err
		}
	case touchPatchMeta:
		patch := metaPatchFromFields(ts.preMeta, ts.touchedFields)
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.PatchMeta(target, patch, edit.Immediate), now)
			return err
		}
	case touchMove:
		parent, index := ts.preParent, ts.preIndex
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.MoveNode(target, parent, index, edit.Immediate), now)
			return err
		}
	default:
		return func(a Applicator, now event.Time) error { return nil }
	}
}

func (ts *touchState) forwardOp(key touchKey) Op {
	target := key.target
	store := ts.store
	nd, ok := store.Resolve(target)
	if !ok {
		return func(a Applicator, now event.Time) error { return nil }
	}
	switch key.kind {
	case touchSetParam:
		v := nd.Data.Parameter.Value
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.SetParam(target, v, edit.Immediate), now)
			return err
		}
	case touchPatchMeta:
		patch := metaPatchFromFields(nd.Meta, ts.touchedFields)
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.PatchMeta(target, patch, edit.Immediate), now)
			return err
		}
	case touchMove:
		parent := nd.Parent()
		index := indexInParent(store, parent, target)
		return func(a Applicator, now event.Time) error {
			_, err := a.Apply(edit.MoveNode(target, parent, index, edit.Immediate), now)
			return err
		}
	default:
		return func(a Applicator, now event.Time) error { return nil }
	}
}

func markPatchFields(dst map[string]bool, p event.MetaPatch) {
	if p.ShortName != nil {
		dst["short_name"] = true
	}
	if p.Enabled != nil {
		dst["enabled"] = true
	}
	if p.Label != nil {
		dst["label"] = true
	}
	if p.Description != nil {
		dst["description"] = true
	}
	if p.Tags != nil {
		dst["tags"] = true
	}
	if p.SemanticsHint != nil {
		dst["semantics_hint"] = true
	}
	if p.PresentationHint != nil {
		dst["presentation_hint"] = true
	}
}

func metaPatchFromFields(m graph.NodeMeta, fields map[string]bool) event.MetaPatch {
	var p event.MetaPatch
	if fields["short_name"] {
		v := m.ShortName
		p.ShortName = &v
	}
	if fields["enabled"] {
		v := m.Enabled
		p.Enabled = &v
	}
	if fields["label"] {
		v := m.Label
		p.Label = &v
	}
	if fields["description"] {
		v := m.Description
		p.Description = &v
	}
	if fields["tags"] {
		v := append([]string(nil), m.Tags...)
		p.Tags = &v
	}
	if fields["semantics_hint"] {
		v := m.SemanticsHint
		p.SemanticsHint = &v
	}
	if fields["presentation_hint"] {
		v := m.PresentationHint
		p.PresentationHint = &v
	}
	return p
}

func indexInParent(store *graph.Store, parent, child id.NodeId) int {
	for i, c := range store.Children(parent) {
		if c == child {
			return i
		}
	}
	return -1
}

// subtreeSnapshot is a full-fidelity, store-independent copy of one node
// and its descendants, enough to recreate the subtree from scratch
// (used by DeleteNode/ReplaceSlot inverses, since the original nodes no
// longer resolve once deleted).
type subtreeSnapshot struct {
	TypeId   id.NodeTypeId
	Meta     graph.NodeMeta
	Data     graph.NodeData
	Children []subtreeSnapshot
}

func snapshotSubtree(store *graph.Store, n id.NodeId) subtreeSnapshot {
	nd, ok := store.Resolve(n)
	if !ok {
		return subtreeSnapshot{}
	}
	kids := store.Children(n)
	children := make([]subtreeSnapshot, 0, len(kids))
	for _, c := range kids {
		children = append(children, snapshotSubtree(store, c))
	}
	return subtreeSnapshot{TypeId: nd.TypeId(), Meta: nd.Meta.Clone(), Data: nd.Data, Children: children}
}

// recreateSubtree replays snap under parent at the given sibling index
// (index<0 means "append"), preserving every node's original uuid
// (carried in snap.Meta.Uuid) so uuid-keyed references keep resolving
// after an undo of delete.
func recreateSubtree(a Applicator, now event.Time, parent id.NodeId, index int, snap subtreeSnapshot) (id.NodeId, error) {
	res, err := a.Apply(edit.CreateNode(parent, snap.TypeId, snap.Meta, snap.Data, edit.Immediate), now)
	if err != nil {
		return id.Invalid, err
	}
	root := res.CreatedNode
	if index >= 0 {
		if cur := indexInParent(a.Store(), parent, root); cur != index {
			if _, err := a.Apply(edit.MoveNode(root, parent, index, edit.Immediate), now); err != nil {
				return root, err
			}
		}
	}
	return root, restoreChildren(a, now, root, snap.Children)
}

// restoreChildren reconciles snapshot children onto a freshly created
// parent the same way persist.Load's Phase 2 reconciles records onto the
// schema skeleton: CreateNode has already instantiated the parent's
// declared eager children and default slots, so a snapshot child carrying
// a DeclId is restored onto the existing declared child (or materialized
// into its declared slot) instead of being created a second time.
func restoreChildren(a Applicator, now event.Time, parent id.NodeId, snaps []subtreeSnapshot) error {
	store := a.Store()
	for _, cs := range snaps {
		if cs.Meta.DeclId != nil {
			decl := *cs.Meta.DeclId
			if slotDeclared(store, parent, decl) {
				res, err := a.Apply(edit.ReplaceSlot(parent, decl, cs.TypeId, cs.Data, edit.Immediate), now)
				if err != nil {
					return err
				}
				if err := restoreOnto(a, now, res.ReplacedNew, cs); err != nil {
					return err
				}
				continue
			}
			if existing, ok := declaredChildOf(store, parent, decl); ok {
				if err := restoreOnto(a, now, existing, cs); err != nil {
					return err
				}
				continue
			}
		}
		if _, err := recreateSubtree(a, now, parent, -1, cs); err != nil {
			return err
		}
	}
	return nil
}

// restoreOnto rewrites an already-instantiated node's identity, meta, and
// data from its snapshot, then recurses into its children. Like
// persist.Load, it writes the overrides directly on the store rather than
// through Apply: the node's reappearance is already announced by its
// ancestor's creation event, and replaying a read-only or trigger value
// through SetParam's validation would wrongly reject it.
func restoreOnto(a Applicator, now event.Time, n id.NodeId, snap subtreeSnapshot) error {
	store := a.Store()
	if !snap.Meta.Uuid.IsNil() {
		if err := store.RebindUuid(n, snap.Meta.Uuid); err != nil {
			return err
		}
	}
	nd, ok := store.Resolve(n)
	if !ok {
		return nil
	}
	nd.Meta = snap.Meta.Clone()
	nd.Data = snap.Data
	return restoreChildren(a, now, n, snap.Children)
}

func declaredChildOf(store *graph.Store, parent id.NodeId, decl id.DeclId) (id.NodeId, bool) {
	for _, c := range store.Children(parent) {
		nd, ok := store.Resolve(c)
		if ok && nd.Meta.DeclId != nil && *nd.Meta.DeclId == decl {
			return c, true
		}
	}
	return id.Invalid, false
}

func slotDeclared(store *graph.Store, parent id.NodeId, decl id.DeclId) bool {
	pnd, ok := store.Resolve(parent)
	if !ok {
		return false
	}
	desc, ok := store.Registry().Lookup(pnd.TypeId())
	if !ok {
		return false
	}
	_, declared := desc.FindSlot(decl)
	return declared
}

// beforeApply captures pre-mutation state the first time this session
// sees target touched by in.Kind.
func (s *session) beforeApply(store *graph.Store, in edit.Intent) {
	switch in.Kind {
	case edit.KindSetParam:
		if in.Value.Kind() == value.KindTrigger {
			return // momentary; not meaningfully undoable
		}
		key := touchKey{touchSetParam, in.Target}
		if _, ok := s.touched[key]; ok {
			return
		}
		nd, ok := store.Resolve(in.Target)
		if !ok {
			return
		}
		s.touched[key] = &touchState{store: store, preValue: nd.Data.Parameter.Value}
		s.order = append(s.order, orderItem{state: &key})

	case edit.KindPatchMeta:
		key := touchKey{touchPatchMeta, in.Target}
		ts, ok := s.touched[key]
		if !ok {
			nd, ok2 := store.Resolve(in.Target)
			if !ok2 {
				return
			}
			ts = &touchState{store: store, preMeta: nd.Meta.Clone(), touchedFields: make(map[string]bool)}
			s.touched[key] = ts
			s.order = append(s.order, orderItem{state: &key})
		}
		markPatchFields(ts.touchedFields, in.MetaPatch)

	case edit.KindMoveNode:
		key := touchKey{touchMove, in.Target}
		if _, ok := s.touched[key]; ok {
			return
		}
		nd, ok := store.Resolve(in.Target)
		if !ok {
			return
		}
		parent := nd.Parent()
		s.touched[key] = &touchState{store: store, preParent: parent, preIndex: indexInParent(store, parent, in.Target)}
		s.order = append(s.order, orderItem{state: &key})

	case edit.KindDeleteNode:
		nd, ok := store.Resolve(in.Target)
		if !ok {
			return
		}
		parent := nd.Parent()
		s.pendingDelete = &pendingStructural{
			snap:   snapshotSubtree(store, in.Target),
			parent: parent,
			index:  indexInParent(store, parent, in.Target),
		}

	case edit.KindReplaceSlot:
		occ, ok := store.SlotOccupant(in.Parent, in.Decl)
		s.pendingReplace = &pendingStructural{hadOld: ok}
		if ok {
			s.pendingReplace.snap = snapshotSubtree(store, occ)
		}
	}
}

// afterApply builds the append-like sequence ops for Create/Delete/
// ReplaceSlot, which need the post-mutation handle (Create) or the
// pre-mutation snapshot already stashed by beforeApply (Delete/Replace).
func (s *session) afterApply(a Applicator, in edit.Intent, res edit.Result) {
	switch in.Kind {
	case edit.KindCreateNode:
		nd, ok := a.Store().Resolve(res.CreatedNode)
		if !ok {
			return
		}
		meta := nd.Meta.Clone()
		data := nd.Data
		parent, typeId := in.Parent, in.TypeId
		cell := res.CreatedNode
		op := seqOp{
			inverse: func(a Applicator, now event.Time) error {
				_, err := a.Apply(edit.DeleteNode(cell, edit.Immediate), now)
				return err
			},
			forward: func(a Applicator, now event.Time) error {
				r, err := a.Apply(edit.CreateNode(parent, typeId, meta, data, edit.Immediate), now)
				if err == nil {
					cell = r.CreatedNode
				}
				return err
			},
		}
		s.appendSeq(op)

	case edit.KindDeleteNode:
		pd := s.pendingDelete
		s.pendingDelete = nil
		if pd == nil {
			return
		}
		var cell id.NodeId
		op := seqOp{
			inverse: func(a Applicator, now event.Time) error {
				root, err := recreateSubtree(a, now, pd.parent, pd.index, pd.snap)
				cell = root
				return err
			},
			forward: func(a Applicator, now event.Time) error {
				if !cell.IsValid() {
					return nil
				}
				_, err := a.Apply(edit.DeleteNode(cell, edit.Immediate), now)
				return err
			},
		}
		s.appendSeq(op)

	case edit.KindReplaceSlot:
		pr := s.pendingReplace
		s.pendingReplace = nil
		parent, decl := in.Parent, in.Decl
		newType, newData := in.TypeId, in.InitData
		op := seqOp{
			inverse: func(a Applicator, now event.Time) error {
				if pr == nil || !pr.hadOld {
					// no prior occupant: the slot has no "empty" operation
					// in the edit vocabulary, so the best available
					// inverse is to leave the replacement in place.
					// Documented limitation (DESIGN.md).
					return nil
				}
				_, err := a.Apply(edit.ReplaceSlot(parent, decl, pr.snap.TypeId, pr.snap.Data, edit.Immediate), now)
				return err
			},
			forward: func(a Applicator, now event.Time) error {
				_, err := a.Apply(edit.ReplaceSlot(parent, decl, newType, newData, edit.Immediate), now)
				return err
			},
		}
		s.appendSeq(op)
	}
}

func (s *session) appendSeq(op seqOp) {
	idx := len(s.seqOps)
	s.seqOps = append(s.seqOps, op)
	s.order = append(s.order, orderItem{state: nil, seq: idx})
}
