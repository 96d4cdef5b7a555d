package natives

import (
	"bytes"
	"math"
	"testing"

	"derkjs/pkg/bytecode"
	"derkjs/pkg/program"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
	"derkjs/pkg/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	v := vm.New(bytecode.NewProgram(), vm.DefaultConfig())
	if err := program.New(Install).Load(v, bytecode.NewProgram()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return v
}

func nativeFn(t *testing.T, v *vm.VM, name string) values.NativeFunc {
	t.Helper()
	g, ok := v.Global(name)
	if !ok || !g.IsHeapRef() {
		t.Fatalf("global %q was not installed", name)
	}
	n, ok := g.AsHeapObject().(*values.NativeObject)
	if !ok {
		t.Fatalf("global %q is not a native function", name)
	}
	return n.Fn
}

func TestInstallRegistersGlobals(t *testing.T) {
	v := newTestVM(t)
	for _, name := range []string{"console", "clock", "isNaN", "parseInt", "parseFloat", "Object", "Error"} {
		if _, ok := v.Global(name); !ok {
			t.Errorf("Install did not register global %q", name)
		}
	}
}

func TestConsoleLogWritesToStdout(t *testing.T) {
	v := newTestVM(t)
	var buf bytes.Buffer
	v.Stdout = &buf

	console, ok := v.Global("console")
	if !ok {
		t.Fatal("console global missing")
	}
	logKey := v.Table.Intern("log")
	d, ok := values.Lookup(console, logKey)
	if !ok {
		t.Fatal("console.log missing")
	}
	fn := d.Value.AsHeapObject().(*values.NativeObject).Fn
	if _, err := fn(v, value.UndefinedValue, []value.Value{value.Num(1), value.Num(2)}); err != nil {
		t.Fatalf("console.log: %v", err)
	}
	if buf.String() != "1 2\n" {
		t.Errorf("console.log wrote %q, want %q", buf.String(), "1 2\n")
	}
}

func TestClockNowReturnsNumber(t *testing.T) {
	v := newTestVM(t)
	clock, ok := v.Global("clock")
	if !ok {
		t.Fatal("clock global missing")
	}
	obj := clock.AsHeapObject().(*values.PlainObject)
	d, ok := obj.GetOwn(v.Table.Intern("now"))
	if !ok {
		t.Fatal("clock.now missing")
	}
	fn := d.Value.AsHeapObject().(*values.NativeObject).Fn
	got, err := fn(v, value.UndefinedValue, nil)
	if err != nil {
		t.Fatalf("clock.now: %v", err)
	}
	if !got.IsNumber() || got.ToNumber() <= 0 {
		t.Errorf("clock.now() = %v, want a positive number", got)
	}
}

func TestIsNaNGlobal(t *testing.T) {
	v := newTestVM(t)
	fn := nativeFn(t, v, "isNaN")
	got, err := fn(v, value.UndefinedValue, []value.Value{value.Num(math.NaN())})
	if err != nil {
		t.Fatalf("isNaN: %v", err)
	}
	if !got.Truthy() {
		t.Error("isNaN(NaN) must be true")
	}
	got, err = fn(v, value.UndefinedValue, []value.Value{value.Num(3)})
	if err != nil {
		t.Fatalf("isNaN: %v", err)
	}
	if got.Truthy() {
		t.Error("isNaN(3) must be false")
	}
}

func TestParseIntImpl(t *testing.T) {
	cases := []struct {
		s     string
		radix value.Value
		want  float64
	}{
		{"42", value.UndefinedValue, 42},
		{"  -7", value.UndefinedValue, -7},
		{"0x1F", value.UndefinedValue, 31},
		{"ff", value.Num(16), 255},
		{"not a number", value.UndefinedValue, math.NaN()},
	}
	for _, c := range cases {
		got := parseIntImpl(c.s, c.radix)
		if math.IsNaN(c.want) {
			if !math.IsNaN(got) {
				t.Errorf("parseIntImpl(%q) = %v, want NaN", c.s, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("parseIntImpl(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestParseFloatImpl(t *testing.T) {
	if got := parseFloatImpl("3.25abc"); got != 3.25 {
		t.Errorf("parseFloatImpl = %v, want 3.25", got)
	}
	if got := parseFloatImpl("xyz"); !math.IsNaN(got) {
		t.Errorf("parseFloatImpl(non-numeric) = %v, want NaN", got)
	}
}

func TestObjectStatics(t *testing.T) {
	v := newTestVM(t)
	objectCtor, _ := v.Global("Object")
	ctorObj := objectCtor.AsHeapObject().(*values.PlainObject)

	call := func(name string, args ...value.Value) value.Value {
		d, ok := ctorObj.GetOwn(v.Table.Intern(name))
		if !ok {
			t.Fatalf("Object.%s missing", name)
		}
		fn := d.Value.AsHeapObject().(*values.NativeObject).Fn
		got, err := fn(v, value.UndefinedValue, args)
		if err != nil {
			t.Fatalf("Object.%s: %v", name, err)
		}
		return got
	}

	plain := values.NewPlainObject(v.Protos.Object)
	v.Heap.Allocate(plain)
	ref := value.Ref(plain)

	if got := call("isFrozen", ref); got.Truthy() {
		t.Error("a fresh object must not be frozen")
	}
	call("freeze", ref)
	if got := call("isFrozen", ref); !got.Truthy() {
		t.Error("isFrozen must be true after freeze")
	}

	sealed := values.NewPlainObject(v.Protos.Object)
	v.Heap.Allocate(sealed)
	sref := value.Ref(sealed)
	call("seal", sref)
	if got := call("isSealed", sref); !got.Truthy() {
		t.Error("isSealed must be true after seal")
	}

	created := call("create", v.Protos.Object)
	if !created.IsHeapRef() {
		t.Fatal("Object.create must return a heap object")
	}
	if got := call("getPrototypeOf", created); got != v.Protos.Object {
		t.Error("Object.create's result must chain to the given prototype")
	}

	plain.DefineOwn(v.Table.Intern("a"), values.Descriptor{Value: value.Num(1), Enumerable: true})
	plain.DefineOwn(v.Table.Intern("hidden"), values.Descriptor{Value: value.Num(2), Enumerable: false})
	keys := call("keys", ref)
	arr, ok := keys.AsHeapObject().(*values.ArrayObject)
	if !ok {
		t.Fatal("Object.keys must return an array")
	}
	if arr.Length() != 1 {
		t.Errorf("Object.keys returned %d keys, want 1 (only the enumerable one)", arr.Length())
	}
}

func TestArrayProtoMethods(t *testing.T) {
	v := newTestVM(t)
	arr := values.NewArray(v.Protos.Array, v.Table)
	v.Heap.Allocate(arr)
	this := value.Ref(arr)

	proto := v.Protos.Array.AsHeapObject().(*values.PlainObject)
	call := func(name string, args ...value.Value) value.Value {
		d, ok := proto.GetOwn(v.Table.Intern(name))
		if !ok {
			t.Fatalf("Array.prototype.%s missing", name)
		}
		fn := d.Value.AsHeapObject().(*values.NativeObject).Fn
		got, err := fn(v, this, args)
		if err != nil {
			t.Fatalf("Array.prototype.%s: %v", name, err)
		}
		return got
	}

	if got := call("push", value.Num(1), value.Num(2)); got.ToNumber() != 2 {
		t.Errorf("push returned length %v, want 2", got.ToNumber())
	}
	if got := call("join", value.Ref(values.NewDynamicString("-", v.Protos.String))); got.ToString() != "1-2" {
		t.Errorf("join = %q, want %q", got.ToString(), "1-2")
	}
	call("reverse")
	if els := arr.Elements(); els[0].ToNumber() != 2 || els[1].ToNumber() != 1 {
		t.Error("reverse did not swap the elements in place")
	}
	if got := call("pop"); got.ToNumber() != 1 {
		t.Errorf("pop returned %v, want 1 (reversed order)", got.ToNumber())
	}
	if arr.Length() != 1 {
		t.Errorf("array length after pop = %d, want 1", arr.Length())
	}
}

func TestStringProtoMethods(t *testing.T) {
	v := newTestVM(t)
	s := values.NewDynamicString("Hi", v.Protos.String)
	v.Heap.Allocate(s)
	this := value.Ref(s)

	proto := v.Protos.String.AsHeapObject().(*values.PlainObject)
	call := func(name string, args ...value.Value) value.Value {
		d, ok := proto.GetOwn(v.Table.Intern(name))
		if !ok {
			t.Fatalf("String.prototype.%s missing", name)
		}
		fn := d.Value.AsHeapObject().(*values.NativeObject).Fn
		got, err := fn(v, this, args)
		if err != nil {
			t.Fatalf("String.prototype.%s: %v", name, err)
		}
		return got
	}

	if got := call("charCodeAt", value.Num(0)); got.ToNumber() != float64('H') {
		t.Errorf("charCodeAt(0) = %v, want %v", got.ToNumber(), float64('H'))
	}
	if got := call("charAt", value.Num(1)); got.ToString() != "i" {
		t.Errorf("charAt(1) = %q, want %q", got.ToString(), "i")
	}
	if got := call("toUpperCase"); got.ToString() != "HI" {
		t.Errorf("toUpperCase = %q, want %q", got.ToString(), "HI")
	}
	if got := call("toLowerCase"); got.ToString() != "hi" {
		t.Errorf("toLowerCase = %q, want %q", got.ToString(), "hi")
	}
}

func TestFunctionProtoCallForwards(t *testing.T) {
	v := newTestVM(t)
	target := values.NewNative(v.Protos.Function, "target", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		return value.Num(this.ToNumber() + args[0].ToNumber()), nil
	})
	v.Heap.Allocate(target)

	proto := v.Protos.Function.AsHeapObject().(*values.PlainObject)
	d, ok := proto.GetOwn(v.Table.Intern("call"))
	if !ok {
		t.Fatal("Function.prototype.call missing")
	}
	callFn := d.Value.AsHeapObject().(*values.NativeObject).Fn

	got, err := callFn(v, value.Ref(target), []value.Value{value.Num(10), value.Num(5)})
	if err != nil {
		t.Fatalf("Function.prototype.call: %v", err)
	}
	if got.ToNumber() != 15 {
		t.Errorf("call forwarded this=10,args=[5] => %v, want 15", got.ToNumber())
	}
}

func TestErrorConstructor(t *testing.T) {
	v := newTestVM(t)
	ctor, ok := v.Global("Error")
	if !ok {
		t.Fatal("Error global missing")
	}
	native := ctor.AsHeapObject().(*values.NativeObject)
	if !native.IsConstructor() {
		t.Error("Error must be usable with new")
	}
	got, err := native.Fn(v, value.UndefinedValue, []value.Value{value.Ref(values.NewDynamicString("boom", v.Protos.String))})
	if err != nil {
		t.Fatalf("Error(...): %v", err)
	}
	obj, ok := got.AsHeapObject().(*values.PlainObject)
	if !ok {
		t.Fatal("Error(...) must return a heap object")
	}
	d, ok := obj.GetOwn(v.Table.Intern("message"))
	if !ok || d.Value.ToString() != "boom" {
		t.Error("Error(...)'s message property must carry the constructor argument")
	}
}
