package values

import "derkjs/pkg/value"

// PlainObject is the generic key/value container of spec.md §3.2.
type PlainObject struct {
	ObjectBase
}

// NewPlainObject constructs a plain object with the given prototype
// (spec.md §3.4 Object.create semantics live one level up, in the VM/
// natives layer, which calls this).
func NewPlainObject(proto value.Value) *PlainObject {
	return &PlainObject{ObjectBase: newObjectBase(ClassPlain, proto)}
}

// AsString implements the default as_string hook (spec.md §3.2).
func (o *PlainObject) AsString() string { return "[object Object]" }
