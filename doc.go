// Package core is the root of Golden Core, a deterministic in-process
// node-graph runtime: a generational-handle graph (package graph), a
// typed value domain and schema registry (packages value and schema), a
// single-chokepoint edit pipeline (package edit), a coalescing event and
// subscription system (packages event and route), a single-threaded
// cooperative scheduler (package engine), nestable undo/redo (package
// history), and save/load (package persist).
//
// Every package here is independently usable; this file exists only to
// give the module root something to document. cmd/goldencore is a small
// CLI harness over engine and persist; it is not this module's product
// surface.
package core
