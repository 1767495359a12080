package persist

import "github.com/goldencore/core/graph"

// defaultMeta is the convention Save's override detection compares
// against and Load's skeleton phase constructs nodes with: every field
// zero except Enabled, which defaults true. graph.Store's own
// instantiateEagerChildren uses the same convention for eager children it
// builds outside of persist (a live CreateNode edit, for instance); the
// two are kept in sync by hand since graph cannot import persist.
func defaultMeta() graph.NodeMeta {
	return graph.NodeMeta{Enabled: true}
}
