package values

import (
	"unicode/utf16"

	"derkjs/pkg/value"
)

// StringObject is the dynamic-string heap object of spec.md §3.2: an
// immutable UTF-16 code-unit sequence exposed to scripts as an object
// with String.prototype as its prototype, carrying a `length` property
// (code-unit count). Instances are never interned; `==`/`===` compare
// two strings by content (Equal), with identical handles short-circuiting
// (spec.md §4.2).
type StringObject struct {
	ObjectBase
	units []uint16 // UTF-16 code units, matching ES5 string indexing
}

func NewDynamicString(s string, proto value.Value) *StringObject {
	return &StringObject{
		ObjectBase: newObjectBase(ClassString, proto),
		units:      utf16.Encode([]rune(s)),
	}
}

func (s *StringObject) AsString() string {
	return string(utf16.Decode(s.units))
}

func (s *StringObject) TypeOf() string { return "string" }

// Len returns the code-unit count (spec.md §3.2 `length`).
func (s *StringObject) Len() int { return len(s.units) }

// CharCodeAt returns the code unit at i and true, or (0, false) if i is
// out of range (used by String.prototype.charCodeAt).
func (s *StringObject) CharCodeAt(i int) (uint16, bool) {
	if i < 0 || i >= len(s.units) {
		return 0, false
	}
	return s.units[i], true
}

// PrimitiveValue implements value.primitiveValueOf so ToNumber/ToString
// on a boxed String wrapper defer to the code-unit sequence; dynamic
// strings are their own primitive value.
func (s *StringObject) PrimitiveValue() (value.Value, bool) {
	return value.Ref(s), true
}

// OnAccessorMut implements spec.md §3.2: strings reject all property
// writes (immutable) except their own `length`, which is itself
// non-writable — so every write is rejected, silently per spec.md §4.9's
// "fail silently" policy for non-writable targets.
func (s *StringObject) OnAccessorMut(key string, newVal value.Value) (value.Value, bool) {
	return newVal, true // handled=true, value unchanged: always a no-op.
}

// Equal implements content equality for the VM's string comparison in
// strictEquals
// (spec.md §4.2: "equality by content must still be preserved ... when
// handles differ").
func (s *StringObject) Equal(o *StringObject) bool {
	if s == o {
		return true
	}
	if len(s.units) != len(o.units) {
		return false
	}
	for i := range s.units {
		if s.units[i] != o.units[i] {
			return false
		}
	}
	return true
}

func (s *StringObject) Less(o *StringObject) bool {
	n := len(s.units)
	if len(o.units) < n {
		n = len(o.units)
	}
	for i := 0; i < n; i++ {
		if s.units[i] != o.units[i] {
			return s.units[i] < o.units[i]
		}
	}
	return len(s.units) < len(o.units)
}
