// Package values implements the polymorphic heap-object hierarchy of
// spec.md §3.2/§3.3/§3.4: a common ObjectBase (property store + prototype
// pointer) specialized into plain objects, arrays, dynamic strings,
// lambdas, natives, and captures. Rather than language-level inheritance
// the hierarchy is a tagged variant plus a small capability table
// (Stringer / Callable / AccessorMut), mirroring the teacher's own
// polymorphic object design (pkg/vm/object.go) while replacing its
// hidden-class Shape machinery with the flat ordered descriptor list
// spec.md §4.9 asks for (property access here need only be "O(1)
// expected", not inline-cached).
package values

import (
	"derkjs/pkg/intern"
	"derkjs/pkg/value"
)

// Class tags the concrete variant of a heap object (spec.md §3.2).
type Class uint8

const (
	ClassPlain Class = iota
	ClassArray
	ClassString
	ClassLambda
	ClassNative
	ClassCapture
)

func (c Class) String() string {
	switch c {
	case ClassPlain:
		return "Object"
	case ClassArray:
		return "Array"
	case ClassString:
		return "String"
	case ClassLambda, ClassNative:
		return "Function"
	case ClassCapture:
		return "Capture"
	default:
		return "Object"
	}
}

// mark is the tri-state GC mark field from spec.md §4.8.
type mark uint8

const (
	markUnknown mark = iota
	markLive
	markDead
)

// Descriptor is the per-property record of spec.md §3.3. The default for
// newly created own properties is {true,true,true} (writable, enumerable,
// configurable).
type Descriptor struct {
	Value        value.Value
	Writable     bool
	Enumerable   bool
	Configurable bool
}

func defaultDescriptor(v value.Value) Descriptor {
	return Descriptor{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

// propertyStore is the ordered key -> descriptor map of spec.md §3.3/§4.9.
// Key comparison is always pointer equality against an *intern.Key.
type propertyStore struct {
	order []*intern.Key
	index map[*intern.Key]int
	descs []Descriptor
}

func newPropertyStore() propertyStore {
	return propertyStore{index: make(map[*intern.Key]int)}
}

func (s *propertyStore) getOwn(k *intern.Key) (Descriptor, bool) {
	i, ok := s.index[k]
	if !ok {
		return Descriptor{}, false
	}
	return s.descs[i], true
}

// defineOwn creates or overwrites an own property unconditionally (used by
// DefineOwn for internal setup, bypassing the writable check that Set
// enforces for ordinary assignment).
func (s *propertyStore) defineOwn(k *intern.Key, d Descriptor) {
	if i, ok := s.index[k]; ok {
		s.descs[i] = d
		return
	}
	s.index[k] = len(s.order)
	s.order = append(s.order, k)
	s.descs = append(s.descs, d)
}

// deleteOwn removes an own property if configurable, returning false only
// when the key exists and is non-configurable. Absent keys report success
// per ES5 `delete`.
func (s *propertyStore) deleteOwn(k *intern.Key) bool {
	i, ok := s.index[k]
	if !ok {
		return true
	}
	if !s.descs[i].Configurable {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	s.descs = append(s.descs[:i], s.descs[i+1:]...)
	delete(s.index, k)
	for key, idx := range s.index {
		if idx > i {
			s.index[key] = idx - 1
		}
	}
	return true
}

func (s *propertyStore) keysOrdered() []*intern.Key {
	out := make([]*intern.Key, len(s.order))
	copy(out, s.order)
	return out
}

// Stringer is the class's as_string hook (spec.md §3.2).
type Stringer interface {
	AsString() string
}

// CallContext is the minimal surface a Callable needs from its caller
// (the VM) to run: argument materialization and `this` are passed
// directly, so CallContext only needs to expose allocation for natives
// that build new heap objects mid-call.
type CallContext interface {
	Intern(name string) *intern.Key
	AllocatePlain(proto value.Value) *PlainObject
	AllocateArray(proto value.Value) *ArrayObject
	AllocateString(s string, proto value.Value) *StringObject
	Throw(v value.Value) error
	NewError(class, message string) value.Value
}

// Callable is implemented by lambdas and natives (spec.md §3.2 `call`).
type Callable interface {
	Call(ctx CallContext, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error)
	IsConstructor() bool
}

// AccessorMut is the spec.md §4.9/§9 `on_accessor_mut` hook: arrays use it
// to maintain `length`, strings use it to reject writes. Per the spec's
// resolved Open Question (spec.md §9), the hook receives the key so arrays
// can tell a `length` write from an ordinary integer-keyed write.
type AccessorMut interface {
	OnAccessorMut(key string, newVal value.Value) (adjusted value.Value, handled bool)
}

// ObjectBase is the common state every heap object variant embeds:
// class tag, prototype pointer, own property store, extensibility, and
// the GC mark field.
type ObjectBase struct {
	class      Class
	proto      value.Value
	props      propertyStore
	extensible bool
	mark       mark
}

func newObjectBase(class Class, proto value.Value) ObjectBase {
	return ObjectBase{class: class, proto: proto, props: newPropertyStore(), extensible: true}
}

func (o *ObjectBase) ClassName() string  { return o.class.String() }
func (o *ObjectBase) IsCallable() bool   { return o.class == ClassLambda || o.class == ClassNative }
func (o *ObjectBase) Class() Class       { return o.class }
func (o *ObjectBase) Prototype() value.Value {
	return o.proto
}
func (o *ObjectBase) SetPrototype(p value.Value) { o.proto = p }
func (o *ObjectBase) Extensible() bool           { return o.extensible }

// Freeze implements Object.freeze: every own property becomes
// non-writable/non-configurable and the object becomes non-extensible.
// Idempotent, as spec.md §3.3 requires.
func (o *ObjectBase) Freeze() {
	for i := range o.props.descs {
		o.props.descs[i].Writable = false
		o.props.descs[i].Configurable = false
	}
	o.extensible = false
}

// Seal implements Object.seal: own properties become non-configurable
// (writability is untouched) and the object becomes non-extensible.
func (o *ObjectBase) Seal() {
	for i := range o.props.descs {
		o.props.descs[i].Configurable = false
	}
	o.extensible = false
}

func (o *ObjectBase) IsFrozen() bool {
	if o.extensible {
		return false
	}
	for _, d := range o.props.descs {
		if d.Writable || d.Configurable {
			return false
		}
	}
	return true
}

func (o *ObjectBase) IsSealed() bool {
	if o.extensible {
		return false
	}
	for _, d := range o.props.descs {
		if d.Configurable {
			return false
		}
	}
	return true
}

// GetOwn implements spec.md §4.9 get_own.
func (o *ObjectBase) GetOwn(k *intern.Key) (Descriptor, bool) {
	return o.props.getOwn(k)
}

// OwnKeys returns own property keys in insertion order (spec.md §3.3: an
// "ordered" map).
func (o *ObjectBase) OwnKeys() []*intern.Key {
	return o.props.keysOrdered()
}

// DefineOwn installs or overwrites an own property descriptor unconditionally.
func (o *ObjectBase) DefineOwn(k *intern.Key, d Descriptor) {
	o.props.defineOwn(k, d)
}

// DeleteOwn implements spec.md §4.9 delete.
func (o *ObjectBase) DeleteOwn(k *intern.Key) bool {
	return o.props.deleteOwn(k)
}

// GCMark/SetGCUnknown/SetGCLive/SetGCDead/IsGCLive implement the GC
// tri-state field (spec.md §4.8).
func (o *ObjectBase) GCMark() uint8    { return uint8(o.mark) }
func (o *ObjectBase) SetGCUnknown()    { o.mark = markUnknown }
func (o *ObjectBase) SetGCLive()       { o.mark = markLive }
func (o *ObjectBase) SetGCDead()       { o.mark = markDead }
func (o *ObjectBase) IsGCLive() bool   { return o.mark == markLive }

// Traverse visits the prototype and every own property value; the
// GC's mark phase uses this default for plain objects, and each
// specialized class's Traverse additionally visits its own extra edges
// (array holes excluded, capture parent, lambda's capture, ...).
func (o *ObjectBase) Traverse(visit func(value.Value)) {
	visit(o.proto)
	for _, d := range o.props.descs {
		visit(d.Value)
	}
}

// Lookup walks the prototype chain per spec.md §3.4 and returns the first
// descriptor found for k, or false if no object on the chain has it. The
// object that owns the descriptor is not reported.
func Lookup(start value.Value, k *intern.Key) (Descriptor, bool) {
	cur := start
	for {
		if !cur.IsHeapRef() {
			return Descriptor{}, false
		}
		obj, ok := cur.AsHeapObject().(propertyBearer)
		if !ok {
			return Descriptor{}, false
		}
		if d, found := obj.GetOwn(k); found {
			return d, true
		}
		cur = obj.Prototype()
	}
}

// propertyBearer is the subset of every heap object variant that
// participates in prototype-chain lookup.
type propertyBearer interface {
	GetOwn(*intern.Key) (Descriptor, bool)
	Prototype() value.Value
}

// Get implements spec.md §3.4 read semantics on a heap_ref Value: own
// wins (even if undefined), otherwise walk the prototype chain, otherwise
// undefined. Non-object Values (there is no primitive string/number
// property holder in this model — see spec.md §3.2) always yield undefined
// here; callers needing ToObject boxing perform it before calling Get.
func Get(v value.Value, k *intern.Key) value.Value {
	if !v.IsHeapRef() {
		return value.UndefinedValue
	}
	obj, ok := v.AsHeapObject().(propertyBearer)
	if !ok {
		return value.UndefinedValue
	}
	if d, ok := obj.GetOwn(k); ok {
		return d.Value
	}
	if d, ok := Lookup(obj.Prototype(), k); ok {
		return d.Value
	}
	return value.UndefinedValue
}
