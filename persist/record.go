// Package persist implements Golden Core's save/load algorithm: a
// rooted Full/Delta record tree with reference closure on save, and a
// three-phase skeleton/reconcile/resolve-references load. Saves are
// atomic (write to a sibling temp file, then rename); the top-level
// envelope carries a format version dispatched to a migrator on load.
package persist

import (
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/value"
)

// CurrentVersion is the format version persist.Save stamps into every
// file it writes.
const CurrentVersion = "1"

// MetaRecord is the sparse set of NodeMeta fields a record may override.
// A Full record sets every field; a Delta record sets only the fields
// Save decided are overridden (see overriddenMeta in save.go).
type MetaRecord struct {
	ShortName        *string   `json:"short_name,omitempty"`
	Enabled          *bool     `json:"enabled,omitempty"`
	Label            *string   `json:"label,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Tags             *[]string `json:"tags,omitempty"`
	SemanticsHint    *string   `json:"semantics_hint,omitempty"`
	PresentationHint *string   `json:"presentation_hint,omitempty"`
}

// DataRecord carries the persisted payload of a Parameter or Custom node.
// Container nodes never populate this (their state is the children list
// itself); None nodes never populate it either.
type DataRecord struct {
	Value  *value.Value `json:"value,omitempty"`
	Custom any          `json:"custom,omitempty"`
}

// Record is one node in the save/load tree. A record is Full iff Type is
// non-empty. Full+DeclId is reserved for potential-slot
// materializations; plain Full (no DeclId) is a dynamic child; Delta (no
// Type) is a schema-declared eager child with overrides, or a
// reference-closure UUID-binding record ({decl_id, uuid} only).
type Record struct {
	Type   id.NodeTypeId `json:"type,omitempty"`
	Uuid   id.NodeUuid   `json:"uuid,omitempty"`
	DeclId id.DeclId     `json:"decl_id,omitempty"`

	Meta *MetaRecord `json:"meta,omitempty"`
	Data *DataRecord `json:"data,omitempty"`

	Children []Record `json:"children,omitempty"`
}

// IsFull reports whether r carries a Type and therefore instantiates a
// node rather than overriding a declared one.
func (r Record) IsFull() bool { return r.Type != "" }

// File is the top-level persisted shape.
type File struct {
	Version string `json:"version"`
	Root    Record `json:"root"`
}
