package main

import (
	"github.com/goldencore/core/schema"
	"github.com/goldencore/core/value"
)

// demoRegistry is a minimal two-type schema used only so the run
// subcommand has something concrete to instantiate. A real embedder
// registers its own domain types; this package never does.
func demoRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	_ = reg.Register(schema.TypeDescriptor{
		TypeId:    "demo.root",
		DataKind:  schema.DataContainer,
		Container: schema.ContainerSpec{Allowed: schema.AnyType()},
		EagerChildren: []schema.EagerChild{
			{DeclId: "counter", Type: "demo.value"},
		},
	})
	_ = reg.Register(schema.TypeDescriptor{
		TypeId:   "demo.value",
		DataKind: schema.DataParameter,
		Parameter: schema.ParameterSpec{
			Kind:    value.KindInt,
			Default: value.Int(0),
		},
	})
	return reg
}
