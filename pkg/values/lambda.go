package values

import (
	"derkjs/pkg/bytecode"
	"derkjs/pkg/value"
)

// LambdaObject is the bytecode-callable heap class of spec.md §3.2: it
// carries an instruction range within the global program (entry offset,
// parameter count, local slot count, source span) and an optional capture
// object modeling its closure environment. It does not itself know how to
// execute — pkg/vm's dispatcher reads Proto/Capture to set up a frame.
type LambdaObject struct {
	ObjectBase
	Proto      *bytecode.FunctionProto
	FuncID     int
	Capture    *CaptureObject // nil for closures with no free variables
	Name       string
	properties *PlainObject // lazily created .prototype etc.
	isCtor     bool
}

func NewLambda(proto value.Value, fnProto *bytecode.FunctionProto, funcID int, name string, capture *CaptureObject) *LambdaObject {
	return &LambdaObject{
		ObjectBase: newObjectBase(ClassLambda, proto),
		Proto:      fnProto,
		FuncID:     funcID,
		Capture:    capture,
		Name:       name,
		isCtor:     true,
	}
}

func (l *LambdaObject) AsString() string {
	return "function " + l.Name + "() { [bytecode] }"
}

// IsConstructor reports whether `new` may target this lambda. Per the
// spec.md §9 Open Question resolution, every ordinary lambda may be used
// as a constructor; arrow functions are excluded by the compiler never
// marking them callable via OpNew (out of scope for this runtime, which
// only sees the bytecode it's handed).
func (l *LambdaObject) IsConstructor() bool { return l.isCtor }

func (l *LambdaObject) SetConstructor(v bool) { l.isCtor = v }

// Call is implemented by pkg/vm (it needs access to the frame stack that
// lives there); LambdaObject only carries the data. Satisfying the
// Callable interface here would create an import cycle, so the VM wraps
// lambdas in its own invocation path instead of calling this method
// directly — see vm.Frame.
func (l *LambdaObject) Call(ctx CallContext, this value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	panic("LambdaObject.Call must be dispatched by the VM, not invoked directly")
}

// Traverse visits the prototype, own properties, and the capture chain
// (spec.md §4.8 mark phase: "for captures, the parent capture").
func (l *LambdaObject) Traverse(visit func(value.Value)) {
	l.ObjectBase.Traverse(visit)
	if l.properties != nil {
		visit(value.Ref(l.properties))
	}
	if l.Capture != nil {
		visit(value.Ref(l.Capture))
	}
}

// CaptureObject is the first-class lexical-environment heap object of
// spec.md §3.2/§9: it holds the captured slots plus a back-reference to
// its parent capture. `ref_upvalue depth slot` walks `depth` parents then
// reads `slot`.
type CaptureObject struct {
	ObjectBase
	Parent *CaptureObject
	Slots  []value.Value
}

func NewCapture(proto value.Value, parent *CaptureObject, slotCount int) *CaptureObject {
	return &CaptureObject{
		ObjectBase: newObjectBase(ClassCapture, proto),
		Parent:     parent,
		Slots:      make([]value.Value, slotCount),
	}
}

// Resolve walks `depth` parents then returns a pointer to `slot`, letting
// the VM read or write through it (ref_upvalue's addressing, spec.md §4.5).
func (c *CaptureObject) Resolve(depth, slot int) *value.Value {
	cur := c
	for i := 0; i < depth; i++ {
		cur = cur.Parent
	}
	return &cur.Slots[slot]
}

func (c *CaptureObject) AsString() string { return "[object Capture]" }

// Traverse visits own properties (rarely used on captures) and every
// captured slot plus the parent chain — the GC hazard spec.md §4.8 calls
// out by name ("FIX GC to track DEAD CAPTURE OBJECTS"): a capture is a
// root only while a frame running its lambda is on the frame stack (the
// VM's Roots lists each frame's capture); otherwise it stays alive only
// through a live Lambda's Traverse or a child capture's Parent edge.
func (c *CaptureObject) Traverse(visit func(value.Value)) {
	c.ObjectBase.Traverse(visit)
	for _, s := range c.Slots {
		visit(s)
	}
	if c.Parent != nil {
		visit(value.Ref(c.Parent))
	}
}
