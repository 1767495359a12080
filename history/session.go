// Package history implements Golden Core's undo/redo layer: nestable
// edit sessions, pre-session capture of state-like targets, and the
// undo/redo stacks built from the resulting inverse/forward operation
// sequences. Replay never touches the graph directly; every Op drives an
// Applicator, so undone edits take the exact same path applied ones did.
package history

import (
	"sync"

	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
)

// Applicator is the surface a replayed Op drives. edit.Applier satisfies
// it directly; the engine passes its own wrapper instead so that replayed
// edits run the same lifecycle hooks (Destroy before delete, Init after
// create) and land in the same outbound event batch as live edits.
type Applicator interface {
	Apply(in edit.Intent, now event.Time) (edit.Result, error)
	Store() *graph.Store
}

// Op is one step of an undo or redo replay.
type Op func(a Applicator, now event.Time) error

// Entry is one committed history unit: the session's effective forward
// ops and their inverses.
type Entry struct {
	Label   string
	Origin  edit.Origin
	Inverse []Op
	Forward []Op
}

type touchKind uint8

const (
	touchSetParam touchKind = iota
	touchPatchMeta
	touchMove
)

type touchKey struct {
	kind   touchKind
	target id.NodeId
}

type orderItem struct {
	state *touchKey // non-nil for a state-like first-touch
	seq   int       // valid (>=0) for an append-like sequence step
}

type pendingStructural struct {
	snap   subtreeSnapshot
	parent id.NodeId
	index  int
	hadOld bool
}

type session struct {
	token  uint64
	parent uint64
	origin edit.Origin
	label  string

	touched map[touchKey]*touchState
	order   []orderItem
	seqOps  []seqOp

	pendingDelete  *pendingStructural
	pendingReplace *pendingStructural
}

type seqOp struct {
	inverse Op
	forward Op
}

// Manager owns every open session plus the committed undo/redo stacks.
// One Manager belongs to exactly one engine instance.
type Manager struct {
	mu    sync.Mutex
	next  uint64
	open  map[uint64]*session
	stack []uint64

	undo []Entry
	redo []Entry

	// NonUndoableOrigins marks origins whose edits always apply with
	// Undoable=false regardless of the Intent's own flag (typical for
	// network-replicated edits from peers).
	NonUndoableOrigins map[edit.Origin]bool
}

func NewManager() *Manager {
	return &Manager{
		open:               make(map[uint64]*session),
		NonUndoableOrigins: make(map[edit.Origin]bool),
	}
}

// Begin opens a new edit session, nesting it under whatever session is
// currently open. Nested sessions never commit on their own; only the
// outermost commits to history.
func (m *Manager) Begin(origin edit.Origin, label string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	tok := m.next
	var parent uint64
	if len(m.stack) > 0 {
		parent = m.stack[len(m.stack)-1]
	}
	m.open[tok] = &session{
		token:   tok,
		parent:  parent,
		origin:  origin,
		label:   label,
		touched: make(map[touchKey]*touchState),
	}
	m.stack = append(m.stack, tok)
	return tok
}

// IsOpen reports whether token names a currently open session.
func (m *Manager) IsOpen(token uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[token]
	return ok
}

// Effective resolves whether an intent bound to token, from origin,
// should be tracked for undo at all.
func (m *Manager) Effective(token uint64, origin edit.Origin, undoable bool) bool {
	if !undoable || token == 0 {
		return false
	}
	if m.NonUndoableOrigins[origin] {
		return false
	}
	return m.IsOpen(token)
}

// BeforeApply captures pre-mutation state the first time a state-like or
// structural target is touched within token's session. Call before the
// apply; no-op if token is not an open session.
func (m *Manager) BeforeApply(token uint64, store *graph.Store, in edit.Intent) {
	m.mu.Lock()
	sess, ok := m.open[token]
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.beforeApply(store, in)
}

// AfterApply records the structural identity needed to build inverse/
// forward replay ops for Create/Delete/ReplaceSlot, which cannot be known
// until the mutation has actually happened. No-op if err != nil or token
// is not an open session.
func (m *Manager) AfterApply(token uint64, applier Applicator, in edit.Intent, res edit.Result) {
	m.mu.Lock()
	sess, ok := m.open[token]
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.afterApply(applier, in, res)
}

// End closes token's session. If it was nested, its captures merge into
// the parent session and nothing commits yet. If it was outermost, a
// history Entry is built and pushed onto the undo stack, clearing redo.
func (m *Manager) End(token uint64) (Entry, bool) {
	m.mu.Lock()
	sess, ok := m.open[token]
	if !ok {
		m.mu.Unlock()
		return Entry{}, false
	}
	delete(m.open, token)
	if len(m.stack) > 0 && m.stack[len(m.stack)-1] == token {
		m.stack = m.stack[:len(m.stack)-1]
	}
	if sess.parent != 0 {
		parent := m.open[sess.parent]
		m.mu.Unlock()
		if parent != nil {
			parent.merge(sess)
		}
		return Entry{}, false
	}
	m.mu.Unlock()

	entry := sess.build()
	if len(entry.Inverse) == 0 {
		return entry, false
	}
	m.mu.Lock()
	m.undo = append(m.undo, entry)
	m.redo = nil
	m.mu.Unlock()
	return entry, true
}

// Undo replays the most recent committed entry's inverses in reverse
// order and pushes it onto the redo stack.
func (m *Manager) Undo(a Applicator, now event.Time) (bool, error) {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	entry := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.mu.Unlock()

	for i := len(entry.Inverse) - 1; i >= 0; i-- {
		if err := entry.Inverse[i](a, now); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	m.redo = append(m.redo, entry)
	m.mu.Unlock()
	return true, nil
}

// Redo replays the most recently undone entry's forward ops in order.
func (m *Manager) Redo(a Applicator, now event.Time) (bool, error) {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return false, nil
	}
	entry := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.mu.Unlock()

	for _, op := range entry.Forward {
		if err := op(a, now); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	m.undo = append(m.undo, entry)
	m.mu.Unlock()
	return true, nil
}

// CanUndo/CanRedo let callers (e.g. a UI affordance) gray out controls.
func (m *Manager) CanUndo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.redo) > 0 }

func (s *session) merge(child *session) {
	for k, v := range child.touched {
		if _, exists := s.touched[k]; !exists {
			s.touched[k] = v
		}
	}
	base := len(s.seqOps)
	s.seqOps = append(s.seqOps, child.seqOps...)
	for _, it := range child.order {
		if it.state != nil {
			if _, exists := s.touched[*it.state]; exists {
				// only add to order if this key isn't already represented
				// in the parent's order (first-touch-wins).
				present := false
				for _, existing := range s.order {
					if existing.state != nil && *existing.state == *it.state {
						present = true
						break
					}
				}
				if !present {
					s.order = append(s.order, it)
				}
			}
			continue
		}
		s.order = append(s.order, orderItem{seq: base + it.seq})
	}
}

func (s *session) build() Entry {
	entry := Entry{Label: s.label, Origin: s.origin}
	for _, it := range s.order {
		if it.state != nil {
			ts := s.touched[*it.state]
			entry.Inverse = append(entry.Inverse, ts.inverseOp(*it.state))
			entry.Forward = append(entry.Forward, ts.forwardOp(*it.state))
			continue
		}
		op := s.seqOps[it.seq]
		entry.Inverse = append(entry.Inverse, op.inverse)
		entry.Forward = append(entry.Forward, op.forward)
	}
	return entry
}
