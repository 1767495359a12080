// Package engine implements Golden Core's single-threaded cooperative
// scheduler: EngineTick's sub-passes, FlushImmediate, ProcessCtx, and
// the budgets that bound stabilization without ever deadlocking. One
// phase runs at a time and one node call runs to completion before the
// next; the phase boundaries are the only points external state
// (ingress, outbound batches) is exchanged.
package engine

// Config bounds one Engine's scheduling behavior.
type Config struct {
	// MaxStabilizationRounds caps end-of-tick stabilization rounds; a
	// reactive dependency chain no longer than this converges within a
	// single tick.
	MaxStabilizationRounds int
	// MaxNodesPerRound caps how many pending nodes one stabilization
	// round or reactive-process pass drains; 0 means unbounded.
	MaxNodesPerRound int
	// IngressCapacity bounds the external ingress queue; 0 means
	// unbounded.
	IngressCapacity int
	// EventLogRingSize bounds how many past events Engine retains for
	// export/inspection beyond the current tick's batch.
	EventLogRingSize int
	// StrictSchemaLoad, when true, makes Engine.LoadProject treat an
	// unknown declared record as an error instead of silently skipping
	// it.
	StrictSchemaLoad bool
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() Config {
	return Config{
		MaxStabilizationRounds: 8,
		MaxNodesPerRound:       0,
		IngressCapacity:        0,
		EventLogRingSize:       4096,
		StrictSchemaLoad:       false,
	}
}
