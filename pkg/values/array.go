package values

import (
	"strconv"

	"derkjs/pkg/intern"
	"derkjs/pkg/value"
)

// ArrayObject specializes PlainObject so integer-keyed writes maintain a
// contiguous `length` (spec.md §3.2/§3.5). Non-integer keys behave as
// regular own properties; `length` is exposed to the property store as an
// ordinary own property whose writes are intercepted by OnAccessorMut so
// the VM's generic Set path doesn't need array-specific code. Index keys
// are interned like any other property name (spec.md §4.4 has one
// `get_prop`/`set_prop` pair, not a separate indexing opcode), so the
// array keeps a handle to the owning VM's interner to mint/look up the
// numeric-string keys it touches when truncating or joining.
type ArrayObject struct {
	ObjectBase
	table     *intern.Table
	lengthKey *intern.Key
}

func NewArray(proto value.Value, table *intern.Table) *ArrayObject {
	a := &ArrayObject{
		ObjectBase: newObjectBase(ClassArray, proto),
		table:      table,
		lengthKey:  table.Intern("length"),
	}
	a.DefineOwn(a.lengthKey, Descriptor{Value: value.Num(0), Writable: true, Enumerable: false, Configurable: false})
	return a
}

func (a *ArrayObject) AsString() string {
	// Array.prototype.toString without a user override: Array.prototype.join(",").
	return a.Join(",")
}

// Length returns the tracked length (spec.md §3.5 invariant).
func (a *ArrayObject) Length() int {
	d, _ := a.GetOwn(a.lengthKey)
	return int(d.Value.ToNumber())
}

func (a *ArrayObject) setLengthRaw(n int) {
	a.DefineOwn(a.lengthKey, Descriptor{Value: value.Num(float64(n)), Writable: true, Enumerable: false, Configurable: false})
}

// ParseIndex reports whether name is a canonical array index string
// ("0", "1", "2", ... — no leading zeros, no sign) and its value.
func ParseIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	if name == "0" {
		return 0, true
	}
	if name[0] < '1' || name[0] > '9' {
		return 0, false
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// OnAccessorMut implements spec.md §4.9's array interception: writing
// `length` truncates (deleting indices >= n in order) or pads with holes,
// writing a new maximum integer index grows `length` to index+1, and
// every other key is a plain own-property write handled by the generic
// Set path (handled=false here).
func (a *ArrayObject) OnAccessorMut(key string, newVal value.Value) (value.Value, bool) {
	if key == "length" {
		n := int(newVal.ToNumber())
		if n < 0 {
			n = 0
		}
		old := a.Length()
		if n < old {
			for i := n; i < old; i++ {
				if k, ok := a.table.Lookup(strconv.Itoa(i)); ok {
					a.DeleteOwn(k)
				}
			}
		}
		a.setLengthRaw(n)
		return value.Num(float64(n)), true
	}
	if idx, ok := ParseIndex(key); ok {
		if idx >= a.Length() {
			a.setLengthRaw(idx + 1)
		}
	}
	return newVal, false
}

// Join implements Array.prototype.join's default separator handling
// (also used by AsString/Array.prototype.toString). Holes and
// null/undefined elements join as the empty string, per ES5 15.4.4.5.
func (a *ArrayObject) Join(sep string) string {
	n := a.Length()
	pieces := make([]string, n)
	for i := 0; i < n; i++ {
		k, ok := a.table.Lookup(strconv.Itoa(i))
		if !ok {
			continue
		}
		d, found := a.GetOwn(k)
		if !found || d.Value.IsNullish() {
			continue
		}
		pieces[i] = d.Value.ToString()
	}
	out := ""
	for i, p := range pieces {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// Elements materializes the dense [0, Length()) view as a Value slice,
// with holes reported as undefined; used by natives (push/pop/reverse/
// spread) that need a plain Go slice to work with.
func (a *ArrayObject) Elements() []value.Value {
	n := a.Length()
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		k, ok := a.table.Lookup(strconv.Itoa(i))
		if !ok {
			out[i] = value.UndefinedValue
			continue
		}
		d, found := a.GetOwn(k)
		if !found {
			out[i] = value.UndefinedValue
			continue
		}
		out[i] = d.Value
	}
	return out
}

// SetElement writes index i directly (bypassing OnAccessorMut's generic
// dispatch), growing length as needed; used by natives implementing
// push/reverse/splice-like methods.
func (a *ArrayObject) SetElement(i int, v value.Value) {
	k := a.table.Intern(strconv.Itoa(i))
	a.DefineOwn(k, defaultDescriptor(v))
	if i >= a.Length() {
		a.setLengthRaw(i + 1)
	}
}
