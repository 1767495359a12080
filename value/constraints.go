package value

import (
	"fmt"
	"regexp"
)

// ClampMode selects how a numeric constraint handles an out-of-range
// write: Clamp silently saturates, Reject fails validation.
type ClampMode uint8

const (
	ClampSaturate ClampMode = iota
	ClampReject
)

// Numeric holds min/max/step/clamp for Int and Float parameters. A zero
// Numeric (Min==Max==0, HasRange==false) means unconstrained.
type Numeric struct {
	HasRange bool
	Min, Max float64
	HasStep  bool
	Step     float64
	Mode     ClampMode
}

// StringConstraint holds max length and an optional validation pattern.
// Pattern, when non-empty, is a regexp a string value must fully match.
type StringConstraint struct {
	HasMaxLen bool
	MaxLen    int
	Pattern   string // empty means unconstrained
}

// EnumConstraint restricts an Enum value to a declared set of variant ids
// for a given EnumId.
type EnumConstraint struct {
	EnumId   string
	Variants []string
}

// ReferenceConstraint hints at what node types a Reference should target;
// advisory only -- resolution just requires the uuid to name a live node,
// not that the target matches this hint.
type ReferenceConstraint struct {
	TargetKindHint string
}

// Constraints bundles the type-dependent constraint for a parameter. At
// most one of the typed fields is meaningful for a given value Kind.
type Constraints struct {
	Kind      Kind
	Numeric   Numeric
	Str       StringConstraint
	Enum      EnumConstraint
	Reference ReferenceConstraint
}

// Validate checks v against c, returning the clamped/accepted value and an
// error describing the first violated rule. When Mode==ClampSaturate,
// numeric out-of-range values are saturated instead of rejected and nil
// error is returned with the saturated value.
func (c Constraints) Validate(v Value) (Value, error) {
	if v.Kind() != c.Kind {
		return v, fmt.Errorf("value: kind mismatch: constraint is for %s, value is %s", c.Kind, v.Kind())
	}
	switch c.Kind {
	case KindInt:
		return c.validateInt(v)
	case KindFloat:
		return c.validateFloat(v)
	case KindString:
		return c.validateString(v)
	case KindEnum:
		return c.validateEnum(v)
	default:
		return v, nil
	}
}

func (c Constraints) validateInt(v Value) (Value, error) {
	n := v.Int()
	if c.Numeric.HasStep && c.Numeric.Step > 0 {
		steps := float64(n) / c.Numeric.Step
		n = int64(steps+0.5) * int64(c.Numeric.Step)
	}
	if !c.Numeric.HasRange {
		return Int(n), nil
	}
	min, max := int64(c.Numeric.Min), int64(c.Numeric.Max)
	if n < min || n > max {
		if c.Numeric.Mode == ClampReject {
			return v, fmt.Errorf("value: int %d out of range [%d,%d]", n, min, max)
		}
		if n < min {
			n = min
		} else {
			n = max
		}
	}
	return Int(n), nil
}

func (c Constraints) validateFloat(v Value) (Value, error) {
	f := v.Float()
	if c.Numeric.HasStep && c.Numeric.Step > 0 {
		f = float64(int64(f/c.Numeric.Step+0.5)) * c.Numeric.Step
	}
	if !c.Numeric.HasRange {
		return Float(f), nil
	}
	if f < c.Numeric.Min || f > c.Numeric.Max {
		if c.Numeric.Mode == ClampReject {
			return v, fmt.Errorf("value: float %g out of range [%g,%g]", f, c.Numeric.Min, c.Numeric.Max)
		}
		if f < c.Numeric.Min {
			f = c.Numeric.Min
		} else {
			f = c.Numeric.Max
		}
	}
	return Float(f), nil
}

func (c Constraints) validateString(v Value) (Value, error) {
	s := v.String()
	if c.Str.HasMaxLen && len(s) > c.Str.MaxLen {
		return v, fmt.Errorf("value: string length %d exceeds max %d", len(s), c.Str.MaxLen)
	}
	if c.Str.Pattern != "" {
		re, err := regexp.Compile(c.Str.Pattern)
		if err != nil {
			return v, fmt.Errorf("value: invalid string pattern %q: %w", c.Str.Pattern, err)
		}
		if !re.MatchString(s) {
			return v, fmt.Errorf("value: string %q does not match pattern %q", s, c.Str.Pattern)
		}
	}
	return v, nil
}

func (c Constraints) validateEnum(v Value) (Value, error) {
	e := v.Enum()
	if len(c.Enum.Variants) == 0 {
		return v, nil
	}
	for _, variant := range c.Enum.Variants {
		if variant == e.VariantId {
			return v, nil
		}
	}
	return v, fmt.Errorf("value: enum variant %q not in allowed set for %q", e.VariantId, c.Enum.EnumId)
}
