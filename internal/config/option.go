package config

import "fmt"

// Kind names the dynamic type an Option currently holds, per SPEC_FULL's
// "Dynamic option typing" design note: a tagged union rather than a
// family of generated per-type structs, since the free-form option
// surfaces (opcode whitelists, per-port group tags) are otherwise
// identical except for their element type.
type Kind int

// Recognized Option kinds.
const (
	KindBool Kind = iota
	KindInt64
	KindUint64
	KindFloat
	KindString
	KindValueless
)

// Bounds restricts a numeric Option to a closed range, when set.
type Bounds struct {
	Min, Max float64
	Set      bool
}

// Option is one dynamically-typed configuration leaf: a value with a
// declared Kind, an optional whitelist (SetOfValues) and an optional
// numeric range (Bounds). Only the field matching Kind is meaningful.
type Option struct {
	Kind        Kind
	BoolVal     bool
	Int64Val    int64
	Uint64Val   uint64
	FloatVal    float64
	StringVal   string
	SetOfValues []string
	Bounds      Bounds
}

// Validate checks the value against SetOfValues and Bounds, when set.
func (o Option) Validate() error {
	if len(o.SetOfValues) > 0 && o.Kind == KindString {
		for _, v := range o.SetOfValues {
			if v == o.StringVal {
				return nil
			}
		}
		return fmt.Errorf("config: value %q not in allowed set %v", o.StringVal, o.SetOfValues)
	}
	if o.Bounds.Set {
		var v float64
		switch o.Kind {
		case KindInt64:
			v = float64(o.Int64Val)
		case KindUint64:
			v = float64(o.Uint64Val)
		case KindFloat:
			v = o.FloatVal
		default:
			return nil
		}
		if v < o.Bounds.Min || v > o.Bounds.Max {
			return fmt.Errorf("config: value %v outside bounds [%v, %v]", v, o.Bounds.Min, o.Bounds.Max)
		}
	}
	return nil
}
