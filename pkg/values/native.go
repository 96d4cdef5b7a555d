package values

import "derkjs/pkg/value"

// NativeFunc is a host-provided callable (spec.md §4.10): invoked with
// the current call context, the `this` binding, and the arguments
// gathered from the operand stack. It returns a value or an error. The
// error returned by ctx.Throw makes the VM unwind with the thrown script
// value; any other error becomes a bad_operation runtime error.
type NativeFunc func(ctx CallContext, this value.Value, args []value.Value) (value.Value, error)

// NativeObject wraps a host function so it participates in the same
// calling convention as lambdas (spec.md §4.10: "Native callees observe
// the same calling convention as lambdas").
type NativeObject struct {
	ObjectBase
	Name       string
	Fn         NativeFunc
	properties *PlainObject
	isCtor     bool
}

func NewNative(proto value.Value, name string, fn NativeFunc) *NativeObject {
	return &NativeObject{ObjectBase: newObjectBase(ClassNative, proto), Name: name, Fn: fn}
}

func (n *NativeObject) AsString() string { return "function " + n.Name + "() { [native code] }" }

func (n *NativeObject) Call(ctx CallContext, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	return n.Fn(ctx, this, args)
}

func (n *NativeObject) IsConstructor() bool    { return n.isCtor }
func (n *NativeObject) SetConstructor(b bool)  { n.isCtor = b }

func (n *NativeObject) Traverse(visit func(value.Value)) {
	n.ObjectBase.Traverse(visit)
	if n.properties != nil {
		visit(value.Ref(n.properties))
	}
}
