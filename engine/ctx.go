package engine

import (
	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
)

// Phase names the pass a ProcessCtx call happens in.
type Phase uint8

const (
	PhaseTick Phase = iota
	PhaseStabilize
	PhaseFlushImmediate
)

func (p Phase) String() string {
	switch p {
	case PhaseTick:
		return "Tick"
	case PhaseStabilize:
		return "Stabilize"
	case PhaseFlushImmediate:
		return "FlushImmediate"
	default:
		return "Unknown"
	}
}

// ProcessCtx is the argument every Init/Update/Process/Destroy behavior
// closure receives. It is valid only for the duration of one call: the
// engine drains a fresh Inbox view into it before the call and discards
// it after, so node code must not stash it.
type ProcessCtx struct {
	eng   *Engine
	self  id.NodeId
	phase Phase
	now   event.Time

	inbox []event.Event
}

// Self returns the node this call is being made for.
func (c *ProcessCtx) Self() id.NodeId { return c.self }

// Phase reports which pass is driving this call.
func (c *ProcessCtx) Phase() Phase { return c.phase }

// Time returns the EventTime origin this call's emitted edits will be
// stamped relative to.
func (c *ProcessCtx) Time() event.Time { return c.now }

// Store gives read access to the graph. Mutating through it directly
// would bypass the single edit.Applier chokepoint; node code must go
// through Emit instead.
func (c *ProcessCtx) Store() *graph.Store { return c.eng.store }

// Inbox returns the events delivered to Self since its last Process call
// (already drained atomically before this call began).
func (c *ProcessCtx) Inbox() []event.Event { return c.inbox }

// Emit submits an edit intent on Self's behalf. Internal emissions are
// never history-tracked: undo scope is the user-facing edit session, and
// a reactive node's side effects are a consequence of the triggering
// session's edit, not separately undoable entries.
func (c *ProcessCtx) Emit(in edit.Intent) {
	in.Origin = edit.OriginInternal
	c.eng.submitInternal(in, c.phase)
}
