// Package value implements Golden Core's typed parameter value domain: a
// closed Value variant set and the type-dependent Constraints checked by
// the edit pipeline before a value is written.
package value

import (
	"encoding/json"
	"fmt"

	"github.com/goldencore/core/id"
)

// Kind discriminates the Value variants. It is a closed set; adding a
// variant is a schema-breaking change handled the same way everywhere
// (value, persist, dto).
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindVec2
	KindVec3
	KindColorRgba
	KindTrigger
	KindEnum
	KindReference
)

var kindNames = map[Kind]string{
	KindBool: "bool", KindInt: "int", KindFloat: "float", KindString: "string",
	KindVec2: "vec2", KindVec3: "vec3", KindColorRgba: "color_rgba",
	KindTrigger: "trigger", KindEnum: "enum", KindReference: "reference",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, s := range kindNames {
		m[s] = k
	}
	return m
}()

// MarshalJSON renders Kind as its lowercase wire name rather than its
// ordinal, so persist records and dto payloads stay readable across a
// schema's lifetime even if variant order ever changes.
func (k Kind) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("value: unknown Kind %d", k)
	}
	return json.Marshal(name)
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, ok := namesToKind[name]
	if !ok {
		return fmt.Errorf("value: unknown Kind name %q", name)
	}
	*k = parsed
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindVec2:
		return "Vec2"
	case KindVec3:
		return "Vec3"
	case KindColorRgba:
		return "ColorRgba"
	case KindTrigger:
		return "Trigger"
	case KindEnum:
		return "Enum"
	case KindReference:
		return "Reference"
	default:
		return "Unknown"
	}
}

// Vec2 is a 2-component float vector.
type Vec2 struct{ X, Y float64 }

// Vec3 is a 3-component float vector.
type Vec3 struct{ X, Y, Z float64 }

// ColorRgba is a linear RGBA color, each channel conventionally in [0,1]
// but not clamped by this package; Constraints.Validate accepts any
// channel values unchanged.
type ColorRgba struct{ R, G, B, A float64 }

// Enum is a value of a declared enum: the enum's id plus the chosen
// variant id. Validity against the enum's variant set is a schema concern
// checked by Constraints.Validate.
type Enum struct {
	EnumId    string
	VariantId string
}

// Reference is a weak pointer to another node by stable identity. CachedId
// is a resolver-maintained hint, never an owning link: it may be the zero
// id.Invalid when dangling, which is legal. Only Uuid goes on the wire;
// the cache is a session-local handle, so persisted and exported forms
// drop it and a loader re-resolves it against the uuid index.
type Reference struct {
	Uuid     id.NodeUuid `json:"uuid"`
	CachedId id.NodeId   `json:"-"`
}

// Resolved reports whether the reference currently has a live cached
// target. Callers must not infer the target is still live without going
// through the graph's resolver; this just reflects the last-known cache.
func (r Reference) Resolved() bool { return r.CachedId.IsValid() }

// Value is a closed tagged union over the ten variants above. Exactly one
// of the typed fields is meaningful, selected by Kind. A zero Value is
// Kind()==KindBool, value false -- callers that need a "no value" concept
// use a pointer or an Option-shaped wrapper at the call site (e.g.
// persist.DataRecord.Value is *Value).
type Value struct {
	kind Kind

	b   bool
	i   int64
	f   float64
	s   string
	v2  Vec2
	v3  Vec3
	col ColorRgba
	en  Enum
	ref Reference
}

func (v Value) Kind() Kind { return v.kind }

func Bool(b bool) Value               { return Value{kind: KindBool, b: b} }
func Int(i int64) Value               { return Value{kind: KindInt, i: i} }
func Float(f float64) Value           { return Value{kind: KindFloat, f: f} }
func String(s string) Value           { return Value{kind: KindString, s: s} }
func MakeVec2(v Vec2) Value           { return Value{kind: KindVec2, v2: v} }
func MakeVec3(v Vec3) Value           { return Value{kind: KindVec3, v3: v} }
func MakeColor(c ColorRgba) Value     { return Value{kind: KindColorRgba, col: c} }
func Trigger() Value                  { return Value{kind: KindTrigger} }
func MakeEnum(e Enum) Value           { return Value{kind: KindEnum, en: e} }
func MakeReference(r Reference) Value { return Value{kind: KindReference, ref: r} }

// ZeroFor returns the zero value for a given kind.
func ZeroFor(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindString:
		return String("")
	case KindVec2:
		return MakeVec2(Vec2{})
	case KindVec3:
		return MakeVec3(Vec3{})
	case KindColorRgba:
		return MakeColor(ColorRgba{})
	case KindTrigger:
		return Trigger()
	case KindEnum:
		return MakeEnum(Enum{})
	case KindReference:
		return MakeReference(Reference{})
	default:
		return Value{}
	}
}

// Accessors panic if Kind() does not match; callers that aren't certain of
// the kind should switch on Kind() first.

func (v Value) Bool() bool {
	v.mustBe(KindBool)
	return v.b
}
func (v Value) Int() int64 {
	v.mustBe(KindInt)
	return v.i
}
func (v Value) Float() float64 {
	v.mustBe(KindFloat)
	return v.f
}
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return fmt.Sprintf("%s(%+v)", v.kind, v.Raw())
	}
}
func (v Value) Vec2() Vec2 {
	v.mustBe(KindVec2)
	return v.v2
}
func (v Value) Vec3() Vec3 {
	v.mustBe(KindVec3)
	return v.v3
}
func (v Value) Color() ColorRgba {
	v.mustBe(KindColorRgba)
	return v.col
}
func (v Value) Enum() Enum {
	v.mustBe(KindEnum)
	return v.en
}
func (v Value) Reference() Reference {
	v.mustBe(KindReference)
	return v.ref
}

// Raw returns the underlying payload as an any, for generic code (logging,
// DTO encoding) that switches on Kind() itself.
func (v Value) Raw() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindVec2:
		return v.v2
	case KindVec3:
		return v.v3
	case KindColorRgba:
		return v.col
	case KindTrigger:
		return struct{}{}
	case KindEnum:
		return v.en
	case KindReference:
		return v.ref
	default:
		return nil
	}
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: accessed as %s but Kind()==%s", k, v.kind))
	}
}

// wireValue is Value's on-the-wire shape (persist records and dto
// payloads both round-trip through this, since Value's real fields are
// unexported and kind-discriminated).
type wireValue struct {
	Kind Kind            `json:"kind"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Raw())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Kind: v.kind, Raw: raw})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case KindBool:
		var x bool
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = Bool(x)
	case KindInt:
		var x int64
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = Int(x)
	case KindFloat:
		var x float64
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = Float(x)
	case KindString:
		var x string
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = String(x)
	case KindVec2:
		var x Vec2
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = MakeVec2(x)
	case KindVec3:
		var x Vec3
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = MakeVec3(x)
	case KindColorRgba:
		var x ColorRgba
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = MakeColor(x)
	case KindTrigger:
		*v = Trigger()
	case KindEnum:
		var x Enum
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = MakeEnum(x)
	case KindReference:
		var x Reference
		if err := json.Unmarshal(w.Raw, &x); err != nil {
			return err
		}
		*v = MakeReference(x)
	default:
		return fmt.Errorf("value: unknown Kind %d in wire value", w.Kind)
	}
	return nil
}

// Equal reports deep equality including Kind.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindVec2:
		return a.v2 == b.v2
	case KindVec3:
		return a.v3 == b.v3
	case KindColorRgba:
		return a.col == b.col
	case KindTrigger:
		return true
	case KindEnum:
		return a.en == b.en
	case KindReference:
		return a.ref == b.ref
	default:
		return false
	}
}
