// Package dto implements Golden Core's wire-shape projections: the
// read-only tree a snapshot export produces, and the client<->engine
// message envelopes built on top of it. Nothing in this package mutates
// an engine; dto.Export is the only function that reads a live store,
// and it reads it once, to completion, producing a value the caller may
// keep after the engine moves on. graph.Node stays mutable and
// engine-owned; dto.NodeDto is an immutable copy taken at one instant.
package dto

import (
	"github.com/goldencore/core/event"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// ParamDto is the wire shape of a Parameter node's data.
type ParamDto struct {
	Value            value.Value         `json:"value"`
	ValueType        value.Kind          `json:"value_type"`
	ReadOnly         bool                `json:"read_only"`
	UpdatePolicy     schema.UpdatePolicy `json:"update_policy"`
	ChangePolicy     schema.ChangePolicy `json:"change_policy"`
	Constraints      value.Constraints   `json:"constraints"`
	PresentationHint string              `json:"presentation,omitempty"`
	SemanticsHint    string              `json:"semantics,omitempty"`
}

// NodeDto is the wire shape of one node. Children is ordered the way
// Store.Children returns it.
type NodeDto struct {
	NodeId      id.NodeId     `json:"node_id"`
	Uuid        id.NodeUuid   `json:"uuid"`
	Type        id.NodeTypeId `json:"type"`
	DeclId      *id.DeclId    `json:"decl_id,omitempty"`
	ShortName   string        `json:"short_name"`
	Enabled     bool          `json:"enabled"`
	Label       string        `json:"label,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`

	DataKind schema.DataKind `json:"data_kind"`
	Param    *ParamDto       `json:"param,omitempty"`
	Custom   any             `json:"custom,omitempty"`

	Children []id.NodeId `json:"children"`
}

// VariantDto mirrors schema.VariantDef on the wire.
type VariantDto struct {
	VariantId string `json:"variant_id"`
	Label     string `json:"label"`
}

// EnumDef is the wire shape of a registered enum.
type EnumDef struct {
	EnumId   string       `json:"enum_id"`
	Variants []VariantDto `json:"variants"`
}

// Tree is the immutable export produced by engine.Snapshot: the DTO
// node list plus the schema fragment (enum definitions) its parameters
// reference. Nodes is flat (arena order) so a UI client can look up any
// node without re-walking Children chains; RootId names the entry point
// of the scope the snapshot was taken for. NodeId is a struct, not a
// valid JSON object key, hence a slice rather than a map keyed by it.
type Tree struct {
	AsOf   event.Time `json:"as_of"`
	RootId id.NodeId  `json:"root_id"`
	Nodes  []NodeDto  `json:"nodes"`
	Enums  []EnumDef  `json:"enums,omitempty"`
}
