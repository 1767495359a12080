package dto

import (
	"testing"

	"github.com/goldencore/core/event"
	"github.com/goldencore/core/graph"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

func dtoTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(r.Register(schema.TypeDescriptor{
		TypeId:    "Folder",
		DataKind:  schema.DataContainer,
		Container: schema.ContainerSpec{Allowed: schema.AnyType()},
	}))
	must(r.Register(schema.TypeDescriptor{
		TypeId:   "Slider",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:    value.KindEnum,
			Default: value.MakeEnum(value.Enum{EnumId: "mode", VariantId: "a"}),
			Constraints: value.Constraints{
				Kind: value.KindEnum,
				Enum: value.EnumConstraint{EnumId: "mode"},
			},
		},
	}))
	r.RegisterEnum(schema.EnumDef{
		EnumId: "mode",
		Variants: []schema.VariantDef{
			{VariantId: "a", Label: "A"},
			{VariantId: "b", Label: "B"},
		},
	})
	return r
}

func TestExportProducesFlatNodeListWithChildren(t *testing.T) {
	reg := dtoTestRegistry(t)
	store := graph.NewStore(reg)
	folderDesc, _ := reg.Lookup("Folder")
	root, _, err := store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true, Label: "root"}, graph.DefaultData(folderDesc))
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	sliderDesc, _ := reg.Lookup("Slider")
	child, _, err := store.CreateNode(root, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	tree := Export(store, reg)
	if tree.RootId != root {
		t.Fatalf("expected RootId %v, got %v", root, tree.RootId)
	}
	if len(tree.Nodes) != 2 {
		t.Fatalf("expected 2 flat nodes, got %d", len(tree.Nodes))
	}

	var rootDto, childDto *NodeDto
	for i := range tree.Nodes {
		switch tree.Nodes[i].NodeId {
		case root:
			rootDto = &tree.Nodes[i]
		case child:
			childDto = &tree.Nodes[i]
		}
	}
	if rootDto == nil || childDto == nil {
		t.Fatal("expected both root and child present in the flat node list")
	}
	if len(rootDto.Children) != 1 || rootDto.Children[0] != child {
		t.Fatalf("expected root's Children to list the slider, got %v", rootDto.Children)
	}
	if childDto.Param == nil {
		t.Fatal("expected the slider's DTO to carry a Param payload")
	}
	if childDto.Param.ValueType != value.KindEnum {
		t.Fatalf("expected ValueType KindEnum, got %v", childDto.Param.ValueType)
	}
}

func TestExportCollectsReferencedEnumsOnce(t *testing.T) {
	reg := dtoTestRegistry(t)
	store := graph.NewStore(reg)
	folderDesc, _ := reg.Lookup("Folder")
	root, _, err := store.CreateNode(id.Invalid, "Folder", graph.NodeMeta{Enabled: true}, graph.DefaultData(folderDesc))
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	sliderDesc, _ := reg.Lookup("Slider")
	store.CreateNode(root, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))
	store.CreateNode(root, "Slider", graph.NodeMeta{Enabled: true}, graph.DefaultData(sliderDesc))

	tree := Export(store, reg)
	if len(tree.Enums) != 1 {
		t.Fatalf("expected the mode enum collected exactly once despite 2 sliders, got %d", len(tree.Enums))
	}
	if tree.Enums[0].EnumId != "mode" || len(tree.Enums[0].Variants) != 2 {
		t.Fatalf("unexpected enum export: %+v", tree.Enums[0])
	}
}

func TestExportOnEmptyStoreHasNoNodes(t *testing.T) {
	reg := dtoTestRegistry(t)
	store := graph.NewStore(reg)
	tree := Export(store, reg)
	if len(tree.Nodes) != 0 {
		t.Fatalf("expected no nodes for an empty store, got %d", len(tree.Nodes))
	}
	if tree.RootId.IsValid() {
		t.Fatal("expected a zero RootId for an empty store")
	}
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	target := id.NewNodeId(3, 1)
	env := Envelope{
		MsgType: MsgSetParam,
		ReqId:   "req-1",
		Payload: SetParamPayload{
			Session:     7,
			ParamNodeId: target,
			Value:       value.Int(9),
		},
	}
	b, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	decoded, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if decoded.MsgType != MsgSetParam || decoded.ReqId != "req-1" {
		t.Fatalf("unexpected envelope header after round trip: %+v", decoded)
	}

	var payload SetParamPayload
	if err := DecodePayload(decoded.Payload, &payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.Session != 7 || payload.ParamNodeId != target || payload.Value.Int() != 9 {
		t.Fatalf("unexpected decoded payload: %+v", payload)
	}
}

func TestEventToPayloadParamChangedCarriesValue(t *testing.T) {
	ev := event.Event{
		Time:   event.Time{Tick: 1},
		Kind:   event.KindParamChanged,
		Target: id.NewNodeId(1, 1),
		Param:  value.Int(42),
	}
	p := EventToPayload(ev)
	if p.Value == nil || p.Value.Int() != 42 {
		t.Fatalf("expected the payload to carry the param value, got %+v", p)
	}
	if p.Meta != nil || p.Struct != nil {
		t.Fatal("expected only Value populated for a ParamChanged event")
	}
}

func TestEventToPayloadSubtreeDirtyCarriesTouchedSlice(t *testing.T) {
	scope := id.NewNodeId(1, 1)
	a, b := id.NewNodeId(2, 1), id.NewNodeId(3, 1)
	ev := event.Event{
		Time:   event.Time{Tick: 1},
		Kind:   event.KindSubtreeDirty,
		Target: scope,
		Dirty: event.SubtreeDirtyPayload{
			Scope:   scope,
			Touched: map[id.NodeId]struct{}{a: {}, b: {}},
		},
	}
	p := EventToPayload(ev)
	if p.Dirty == nil || len(p.Dirty.Touched) != 2 {
		t.Fatalf("expected 2 touched entries in the dirty payload, got %+v", p.Dirty)
	}
}
