package values

import (
	"derkjs/pkg/intern"
	"derkjs/pkg/value"
)

// accessorMutBearer is implemented by classes with an on_accessor_mut hook.
type accessorMutBearer interface {
	OnAccessorMut(key string, newVal value.Value) (value.Value, bool)
}

// Set implements spec.md §4.9 set(key, value) / §3.4 step 3 (write):
//   - an own writable property is overwritten in place
//   - an own non-writable property makes the write a silent no-op
//   - otherwise, if an inherited property of that name is non-writable,
//     the write is a silent no-op (can't shadow a non-writable inherited
//     data property, per ES5)
//   - otherwise a new own property is created on receiver, unless
//     receiver is non-extensible, in which case the write is a no-op.
//
// Array/string classes get first refusal via OnAccessorMut so `length`
// tracking and string immutability don't need special-casing here.
func Set(receiver value.Value, k *intern.Key, name string, v value.Value) {
	if !receiver.IsHeapRef() {
		return
	}
	obj := receiver.AsHeapObject()
	base, ok := obj.(propertyBearer)
	if !ok {
		return
	}

	if am, ok := obj.(accessorMutBearer); ok {
		adjusted, handled := am.OnAccessorMut(name, v)
		if handled {
			return
		}
		v = adjusted
	}

	setter, ok := obj.(ownPropertySetter)
	if !ok {
		return
	}

	if d, exists := setter.GetOwn(k); exists {
		if !d.Writable {
			return
		}
		d.Value = v
		setter.DefineOwn(k, d)
		return
	}

	if d, found := Lookup(base.Prototype(), k); found && !d.Writable {
		return
	}

	if !setter.Extensible() {
		return
	}
	setter.DefineOwn(k, defaultDescriptor(v))
}

// ownPropertySetter is the subset every ObjectBase-embedding type exposes
// for defining/overwriting own properties.
type ownPropertySetter interface {
	GetOwn(k *intern.Key) (Descriptor, bool)
	DefineOwn(k *intern.Key, d Descriptor)
	Extensible() bool
}
