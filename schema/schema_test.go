package schema

import (
	"testing"

	"github.com/goldencore/core/value"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	desc := TypeDescriptor{TypeId: "Folder", DataKind: DataContainer, Container: ContainerSpec{Allowed: AnyType()}}
	if err := r.Register(desc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := r.Lookup("Folder")
	if !ok {
		t.Fatal("expected Folder to be registered")
	}
	if got.DataKind != DataContainer {
		t.Fatalf("unexpected data kind: %v", got.DataKind)
	}
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	desc := TypeDescriptor{TypeId: "Folder", DataKind: DataContainer}
	if err := r.Register(desc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(desc); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistryUnknownLookup(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("Nope"); ok {
		t.Fatal("expected lookup of unregistered type to fail")
	}
}

func TestAllowedTypesPermits(t *testing.T) {
	any := AnyType()
	if !any.Permits("whatever") {
		t.Fatal("AnyType should permit everything")
	}
	only := OnlyTypes("A", "B")
	if !only.Permits("A") || only.Permits("C") {
		t.Fatal("OnlyTypes should permit exactly its declared set")
	}
}

func TestFindSlotAndEagerChild(t *testing.T) {
	desc := TypeDescriptor{
		TypeId:         "Light",
		PotentialSlots: []PotentialSlot{{DeclId: "color", Allowed: AnyType()}},
		EagerChildren:  []EagerChild{{DeclId: "intensity", Type: "Parameter"}},
	}
	if _, ok := desc.FindSlot("color"); !ok {
		t.Fatal("expected to find declared slot")
	}
	if _, ok := desc.FindSlot("missing"); ok {
		t.Fatal("did not expect to find an undeclared slot")
	}
	if _, ok := desc.FindEagerChild("intensity"); !ok {
		t.Fatal("expected to find declared eager child")
	}
}

func TestRegistryEnums(t *testing.T) {
	r := NewRegistry()
	r.RegisterEnum(EnumDef{EnumId: "mode", Variants: []VariantDef{{VariantId: "fast", Label: "Fast"}}})
	def, ok := r.LookupEnum("mode")
	if !ok {
		t.Fatal("expected enum to be registered")
	}
	if len(def.Variants) != 1 || def.Variants[0].VariantId != "fast" {
		t.Fatalf("unexpected enum variants: %+v", def.Variants)
	}
}

func TestParameterSpecDefault(t *testing.T) {
	spec := ParameterSpec{Kind: value.KindInt, Default: value.Int(7)}
	if spec.Default.Int() != 7 {
		t.Fatalf("unexpected default: %v", spec.Default.Int())
	}
}
