package engine

import (
	"github.com/goldencore/core/dto"
	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/history"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/internal/corelog"
	"github.com/goldencore/core/persist"
	"github.com/goldencore/core/route"
	"github.com/goldencore/core/schema"
)

// EventBatch is what publishBatch hands to outbound subscribers: every
// event applied since the previous publish, in EventTime order.
type EventBatch struct {
	Tick   uint64
	Events []event.Event
}

// Engine is one independently constructible runtime instance; it owns
// all of its state, so several engines coexist in one process.
// EngineTick, FlushImmediate, Undo, and Redo are not safe to call
// concurrently with one another; the scheduler is single-threaded by
// design. Queue() is the one surface safe to use from other goroutines.
type Engine struct {
	store    *graph.Store
	registry *schema.Registry
	routes   *route.Table
	applier  *edit.Applier
	queue    *edit.Queue
	hist     *history.Manager
	cfg      Config
	log      corelog.Logger
	metrics  *metrics

	tick           uint64
	lastMicro      uint32
	nextTickStaged []edit.Intent
	currentBatch   []event.Event
	eventLog       []event.Event
	outbound       chan EventBatch
}

// New constructs an Engine bound to reg, empty of nodes.
func New(reg *schema.Registry, cfg Config, log corelog.Logger) *Engine {
	if log == nil {
		log = corelog.Nop()
	}
	store := graph.NewStore(reg)
	routes := route.NewTable()
	return &Engine{
		store:    store,
		registry: reg,
		routes:   routes,
		applier:  edit.NewApplier(store, routes),
		queue:    edit.NewQueue(cfg.IngressCapacity),
		hist:     history.NewManager(),
		cfg:      cfg,
		log:      log,
		metrics:  newMetrics(),
		outbound: make(chan EventBatch, 16),
	}
}

func (e *Engine) Store() *graph.Store          { return e.store }
func (e *Engine) RegistryOf() *schema.Registry { return e.registry }
func (e *Engine) Queue() *edit.Queue           { return e.queue }
func (e *Engine) Tick() uint64                 { return e.tick }
func (e *Engine) CanUndo() bool                { return e.hist.CanUndo() }
func (e *Engine) CanRedo() bool                { return e.hist.CanRedo() }

// Outbound returns the channel EventBatches are published to.
func (e *Engine) Outbound() <-chan EventBatch { return e.outbound }

// now is the (tick, micro) window the next apply stamps its events into.
// Seq within the window is the applier's own counter.
func (e *Engine) now() event.Time {
	return event.Time{Tick: e.tick, Micro: e.lastMicro}
}

// BeginEdit/EndEdit group a run of edits into one undo unit. Intents
// applied with this token set on Intent.Session are captured for
// history if Intent.Undoable and the origin is not configured
// non-undoable.
func (e *Engine) BeginEdit(origin edit.Origin, label string) uint64 {
	return e.hist.Begin(origin, label)
}

func (e *Engine) EndEdit(token uint64) (history.Entry, bool) {
	return e.hist.End(token)
}

// replay adapts the engine into the history.Applicator a replayed Op
// drives, so undone/redone edits pass through the same lifecycle hooks
// and outbound event export as live ones.
type replay struct{ e *Engine }

func (r replay) Apply(in edit.Intent, now event.Time) (edit.Result, error) {
	return r.e.applyOne(0, in, PhaseFlushImmediate)
}

func (r replay) Store() *graph.Store { return r.e.store }

// Undo/Redo run outside the tick loop as their own flush-immediate-style
// round: micro advances, tick does not, and any newly pending nodes
// drain before a partial EventBatch publishes.
func (e *Engine) Undo() (bool, error) {
	e.bumpMicro()
	ok, err := e.hist.Undo(replay{e}, e.now())
	if ok {
		e.drainPending(PhaseFlushImmediate, e.cfg.MaxNodesPerRound)
		e.publishBatch()
	}
	return ok, err
}

func (e *Engine) Redo() (bool, error) {
	e.bumpMicro()
	ok, err := e.hist.Redo(replay{e}, e.now())
	if ok {
		e.drainPending(PhaseFlushImmediate, e.cfg.MaxNodesPerRound)
		e.publishBatch()
	}
	return ok, err
}

func (e *Engine) bumpMicro() event.Time {
	e.lastMicro++
	e.applier.ResetSeq()
	return e.now()
}

// FlushImmediate applies a single Immediate-propagation external intent
// outside the normal tick cadence, then drains whatever becomes pending
// as a result. tick does not change; Update is not called.
func (e *Engine) FlushImmediate(in edit.Intent) (edit.Result, error) {
	e.bumpMicro()
	res, err := e.applyOne(in.Session, in, PhaseFlushImmediate)
	if err != nil {
		return res, err
	}
	e.drainPending(PhaseFlushImmediate, e.cfg.MaxNodesPerRound)
	e.publishBatch()
	return res, nil
}

// submitInternal routes one edit emitted by a node's behavior callback
// during Update/Process/Init/Destroy.
func (e *Engine) submitInternal(in edit.Intent, phase Phase) {
	switch in.Propagation {
	case edit.NextTick:
		e.nextTickStaged = append(e.nextTickStaged, in)
	case edit.Immediate:
		e.bumpMicro()
		if _, err := e.applyOne(0, in, PhaseFlushImmediate); err == nil {
			e.drainPending(PhaseFlushImmediate, e.cfg.MaxNodesPerRound)
		}
	default:
		e.applyOne(0, in, phase)
	}
}

// EngineTick executes one normal tick: staged and ingress applies, the
// continuous update pass, end-of-tick applies, the reactive process
// pass, stabilization rounds, and the batch publish, in that order.
func (e *Engine) EngineTick() {
	// Step 1: apply last tick's NextTick-staged edits, then drain ingress
	// and bucket by Propagation. These applies continue the current
	// (tick, micro) window so their events never sort before work an
	// earlier flush in the same tick already stamped.
	staged := e.nextTickStaged
	e.nextTickStaged = nil
	for _, in := range staged {
		e.applyOne(in.Session, in, PhaseTick)
	}

	ingress := e.queue.Drain(e.store)
	var endOfTickBuf []edit.Intent
	for _, in := range ingress {
		switch in.Propagation {
		case edit.Immediate:
			e.applyOne(in.Session, in, PhaseTick)
		case edit.NextTick:
			e.nextTickStaged = append(e.nextTickStaged, in)
		default:
			endOfTickBuf = append(endOfTickBuf, in)
		}
	}

	e.tick++
	e.metrics.ticks.Inc()
	e.lastMicro = 0
	e.applier.ResetSeq()

	// Step 2: continuous update pass.
	for _, n := range e.store.AllLive() {
		nd, ok := e.store.Resolve(n)
		if !ok || nd.Behavior == nil || nd.Behavior.Update == nil {
			continue
		}
		ctx := &ProcessCtx{eng: e, self: n, phase: PhaseTick, now: e.now()}
		e.safeCall("update", n, func() { nd.Behavior.Update(ctx) })
	}

	// Step 3: apply collected EndOfTick edits.
	for _, in := range endOfTickBuf {
		e.applyOne(in.Session, in, PhaseTick)
	}

	// Step 4: reactive process pass, micro stays 0.
	e.drainPending(PhaseTick, e.cfg.MaxNodesPerRound)

	// Step 5: stabilization rounds.
	round := 0
	for e.anyPending() && round < e.cfg.MaxStabilizationRounds {
		round++
		e.metrics.stabilizationRounds.Inc()
		e.bumpMicro()
		snapshot := e.pendingSnapshot()
		budget := e.cfg.MaxNodesPerRound
		for i, n := range snapshot {
			if budget > 0 && i >= budget {
				e.metrics.budgetExceeded.Inc()
				e.log.Warnf("stabilization round %d: node budget %d exceeded, remaining work rolls forward", round, budget)
				break
			}
			e.processNode(n, PhaseStabilize)
		}
	}
	if round >= e.cfg.MaxStabilizationRounds && e.anyPending() {
		e.metrics.budgetExceeded.Inc()
		e.log.Warnf("max_stabilization_rounds (%d) exceeded with pending work remaining", e.cfg.MaxStabilizationRounds)
	}

	// Step 6: publish.
	e.publishBatch()
}

// safeCall runs one behavior callback, containing a panic to the node
// that raised it: the fault is logged with event time and node id, edits
// already emitted stay applied, and the engine moves on.
func (e *Engine) safeCall(kind string, n id.NodeId, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.nodeFaults.Inc()
			e.log.Errorf("node %v faulted during %s at %v: %v", n, kind, e.now(), r)
		}
	}()
	fn()
}

func (e *Engine) processNode(n id.NodeId, phase Phase) {
	nd, ok := e.store.Resolve(n)
	if !ok {
		return
	}
	if nd.Behavior == nil || nd.Behavior.Process == nil {
		nd.Inbox.Drain()
		return
	}
	inboxEvents := nd.Inbox.Drain()
	ctx := &ProcessCtx{eng: e, self: n, phase: phase, now: e.now(), inbox: inboxEvents}
	e.safeCall("process", n, func() { nd.Behavior.Process(ctx) })
}

func (e *Engine) nextPending() (id.NodeId, bool) {
	for _, n := range e.store.AllLive() {
		if nd, ok := e.store.Resolve(n); ok && nd.Inbox.Pending() {
			return n, true
		}
	}
	return id.Invalid, false
}

func (e *Engine) anyPending() bool {
	_, ok := e.nextPending()
	return ok
}

func (e *Engine) pendingSnapshot() []id.NodeId {
	var out []id.NodeId
	for _, n := range e.store.AllLive() {
		if nd, ok := e.store.Resolve(n); ok && nd.Inbox.Pending() {
			out = append(out, n)
		}
	}
	return out
}

// drainPending repeatedly selects the lowest-arena-index pending node
// and calls Process on it, discovering newly pending work as it goes,
// until nothing is pending or budget is exceeded.
func (e *Engine) drainPending(phase Phase, budget int) {
	processed := 0
	for {
		n, ok := e.nextPending()
		if !ok {
			return
		}
		if budget > 0 && processed >= budget {
			e.metrics.budgetExceeded.Inc()
			e.log.Warnf("reactive pass node budget %d exceeded, remaining work rolls forward", budget)
			return
		}
		processed++
		e.processNode(n, phase)
	}
}

// applyOne is the single entry point every apply (ingress, internal
// emission, undo/redo replay) funnels through: it runs Destroy hooks
// ahead of structural removal, tracks history if the intent is bound to
// an open, undoable session, applies via edit.Applier, runs Init on a
// freshly created node, and records events for export.
func (e *Engine) applyOne(token uint64, in edit.Intent, phase Phase) (edit.Result, error) {
	if in.Kind == edit.KindDeleteNode {
		e.runDestroy(in.Target, phase)
	}
	if in.Kind == edit.KindReplaceSlot {
		if occ, ok := e.applier.SlotOccupant(in.Parent, in.Decl); ok {
			e.runDestroy(occ, phase)
		}
	}

	tracked := e.hist.Effective(token, in.Origin, in.Undoable)
	if tracked {
		e.hist.BeforeApply(token, e.store, in)
	}

	res, err := e.applier.Apply(in, e.now())
	if err != nil {
		e.metrics.editErrors.Inc()
		return res, err
	}
	e.metrics.editsApplied.Inc()

	if tracked {
		e.hist.AfterApply(token, e.applier, in, res)
	}
	e.recordEvents(res.Events)

	if in.Kind == edit.KindCreateNode {
		e.runInit(res.CreatedNode, phase)
	}
	return res, nil
}

func (e *Engine) runDestroy(target id.NodeId, phase Phase) {
	for _, v := range e.store.PlanDelete(target) {
		nd, ok := e.store.Resolve(v)
		if !ok || nd.Behavior == nil || nd.Behavior.Destroy == nil {
			continue
		}
		ctx := &ProcessCtx{eng: e, self: v, phase: phase, now: e.now()}
		e.safeCall("destroy", v, func() { nd.Behavior.Destroy(ctx) })
	}
}

func (e *Engine) runInit(target id.NodeId, phase Phase) {
	nd, ok := e.store.Resolve(target)
	if !ok || nd.Behavior == nil || nd.Behavior.Init == nil {
		return
	}
	ctx := &ProcessCtx{eng: e, self: target, phase: phase, now: e.now()}
	e.safeCall("init", target, func() { nd.Behavior.Init(ctx) })
}

func (e *Engine) recordEvents(events []event.Event) {
	if len(events) == 0 {
		return
	}
	e.metrics.eventsEmitted.Add(float64(len(events)))
	e.currentBatch = append(e.currentBatch, events...)
	e.eventLog = append(e.eventLog, events...)
	if max := e.cfg.EventLogRingSize; max > 0 && len(e.eventLog) > max {
		e.eventLog = e.eventLog[len(e.eventLog)-max:]
	}
}

func (e *Engine) publishBatch() {
	batch := EventBatch{Tick: e.tick, Events: e.currentBatch}
	e.currentBatch = nil
	e.metrics.ingressQueueDepth.Set(float64(e.queue.Len()))
	select {
	case e.outbound <- batch:
	default:
		e.log.Warnf("outbound batch channel full, dropping batch for tick %d", batch.Tick)
	}
}

// Snapshot produces a read-only DTO projection of the current graph,
// stamped with the (tick, micro) window it was taken in. It runs on the
// engine thread between phases; the returned tree is the caller's to
// keep.
func (e *Engine) Snapshot() *dto.Tree {
	tree := dto.Export(e.store, e.registry)
	tree.AsOf = e.now()
	return tree
}

// LoadProject instantiates file's record tree into this engine's graph
// (under no parent, as a root scope), honoring Config.StrictSchemaLoad:
// when set, an unknown declared record is a load error instead of being
// skipped. Call before the first tick; loading does not emit events.
func (e *Engine) LoadProject(file *persist.File) (id.NodeId, error) {
	root, err := persist.Load(e.store, e.registry, id.Invalid, file,
		persist.Options{Strict: e.cfg.StrictSchemaLoad})
	if err != nil {
		e.log.Errorf("load project: %v", err)
		return id.Invalid, err
	}
	return root, nil
}

// SaveProject produces the persisted record tree rooted at root.
func (e *Engine) SaveProject(root id.NodeId) (*persist.File, error) {
	return persist.Save(e.store, e.registry, root)
}

// EventLog returns the retained ring of past events, oldest first.
func (e *Engine) EventLog() []event.Event { return e.eventLog }

// Loop runs EngineTick n times, the bounded-ticks shape cmd/goldencore's
// run subcommand drives against a scripted ingress file.
func (e *Engine) Loop(n int) {
	for i := 0; i < n; i++ {
		e.EngineTick()
	}
}
