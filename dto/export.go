package dto

import (
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
)

// Export walks store's live nodes in arena order and produces the
// immutable Tree handed to the outbound queue. AsOf is left zero here;
// engine.Snapshot stamps it with the engine's current EventTime after
// calling Export.
func Export(store *graph.Store, reg *schema.Registry) *Tree {
	live := store.AllLive()
	nodes := make([]NodeDto, 0, len(live))
	for _, n := range live {
		nd, ok := store.Resolve(n)
		if !ok {
			continue
		}
		nodes = append(nodes, nodeToDto(store, n, nd))
	}

	var enums []EnumDef
	if reg != nil {
		enums = exportEnums(reg, nodes)
	}

	var root id.NodeId
	if len(live) > 0 {
		root = rootOf(store, live[0])
	}

	return &Tree{RootId: root, Nodes: nodes, Enums: enums}
}

// rootOf walks parent links up to the scope root. Exported snapshots are
// always whole-process today (no partial-scope export is implemented,
// per Non-goals' "network transport framing" excluding the scoping
// protocol that would drive a partial GetSnapshot{scope}); RootId still
// names the true root so a client can orient the flat Nodes list.
func rootOf(store *graph.Store, n id.NodeId) id.NodeId {
	cur := n
	for {
		nd, ok := store.Resolve(cur)
		if !ok || !nd.Parent().IsValid() {
			return cur
		}
		cur = nd.Parent()
	}
}

func nodeToDto(store *graph.Store, n id.NodeId, nd *graph.Node) NodeDto {
	out := NodeDto{
		NodeId:      n,
		Uuid:        nd.Meta.Uuid,
		Type:        nd.TypeId(),
		DeclId:      nd.Meta.DeclId,
		ShortName:   nd.Meta.ShortName,
		Enabled:     nd.Meta.Enabled,
		Label:       nd.Meta.Label,
		Description: nd.Meta.Description,
		Tags:        nd.Meta.Tags,
		DataKind:    nd.Data.Kind,
		Children:    store.Children(n),
	}
	switch nd.Data.Kind {
	case schema.DataParameter:
		p := nd.Data.Parameter
		out.Param = &ParamDto{
			Value:            p.Value,
			ValueType:        p.Value.Kind(),
			ReadOnly:         p.ReadOnly,
			UpdatePolicy:     p.UpdatePolicy,
			ChangePolicy:     p.ChangePolicy,
			Constraints:      p.Constraints,
			PresentationHint: nd.Meta.PresentationHint,
			SemanticsHint:    nd.Meta.SemanticsHint,
		}
	case schema.DataCustom:
		out.Custom = nd.Data.Custom.Blob
	}
	return out
}

func exportEnums(reg *schema.Registry, nodes []NodeDto) []EnumDef {
	seen := make(map[string]bool)
	var out []EnumDef
	for _, nd := range nodes {
		if nd.Param == nil || nd.Param.Constraints.Enum.EnumId == "" {
			continue
		}
		enumId := nd.Param.Constraints.Enum.EnumId
		if seen[enumId] {
			continue
		}
		seen[enumId] = true
		def, ok := reg.LookupEnum(enumId)
		if !ok {
			continue
		}
		variants := make([]VariantDto, 0, len(def.Variants))
		for _, v := range def.Variants {
			variants = append(variants, VariantDto{VariantId: v.VariantId, Label: v.Label})
		}
		out = append(out, EnumDef{EnumId: def.EnumId, Variants: variants})
	}
	return out
}
