// Package natives implements the host-provided callables of spec.md
// §4.10/§6.1: console, clock, the free functions (isNaN/parseInt/
// parseFloat), the Error constructor, and the prototype methods the test
// suite exercises. Every function here follows the teacher's own
// register-then-implement convention (pkg/builtins/console.go's
// registerConsole + consoleLogImpl pattern) translated to this runtime's
// values.NativeFunc signature instead of a typed-function-value system.
package natives

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"derkjs/pkg/value"
	"derkjs/pkg/values"
	"derkjs/pkg/vm"
)

// Install wires every built-in onto v: free globals (console, clock,
// isNaN, ...) and the prototype methods reachable through normal
// property lookup (Array.prototype.push, ...). Satisfies
// program.NativeInstaller.
func Install(v *vm.VM) {
	registerConsole(v)
	registerClock(v)
	registerGlobalFunctions(v)
	registerObjectStatics(v)
	registerArrayProto(v)
	registerStringProto(v)
	registerFunctionProto(v)
	registerErrorCtor(v)
}

func method(v *vm.VM, obj *values.PlainObject, name string, fn values.NativeFunc) {
	n := values.NewNative(v.Protos.Function, name, fn)
	v.Heap.Allocate(n)
	obj.DefineOwn(v.Table.Intern(name), values.Descriptor{Value: value.Ref(n), Writable: true, Enumerable: false, Configurable: true})
}

func newPlain(v *vm.VM, proto value.Value) *values.PlainObject {
	obj := values.NewPlainObject(proto)
	v.Heap.Allocate(obj)
	return obj
}

// --- console -----------------------------------------------------------

func registerConsole(v *vm.VM) {
	console := newPlain(v, v.Protos.Object)
	method(v, console, "log", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.ToString()
		}
		if v.Stdout != nil {
			v.Stdout.WriteString(strings.Join(parts, " ") + "\n")
		} else {
			fmt.Println(strings.Join(parts, " "))
		}
		return value.UndefinedValue, nil
	})
	method(v, console, "readln", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		if len(args) > 0 && v.Stdout != nil {
			v.Stdout.WriteString(args[0].ToString())
		}
		var line string
		fmt.Scanln(&line)
		return value.Ref(ctx.AllocateString(line, v.Protos.String)), nil
	})
	v.SetGlobal("console", value.Ref(console))
}

// --- clock ---------------------------------------------------------------

func registerClock(v *vm.VM) {
	clock := newPlain(v, v.Protos.Object)
	method(v, clock, "now", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		return value.Num(float64(time.Now().UnixMilli())), nil
	})
	v.SetGlobal("clock", value.Ref(clock))
}

// --- free functions ------------------------------------------------------

func registerGlobalFunctions(v *vm.VM) {
	global := func(name string, fn values.NativeFunc) {
		n := values.NewNative(v.Protos.Function, name, fn)
		v.Heap.Allocate(n)
		v.SetGlobal(name, value.Ref(n))
	}

	global("isNaN", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(math.IsNaN(arg(args, 0).ToNumber())), nil
	})
	global("parseInt", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		return value.Num(parseIntImpl(arg(args, 0).ToString(), arg(args, 1))), nil
	})
	global("parseFloat", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		return value.Num(parseFloatImpl(arg(args, 0).ToString())), nil
	})
}

func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.UndefinedValue
	}
	return args[i]
}

func parseIntImpl(s string, radixArg value.Value) float64 {
	s = strings.TrimSpace(s)
	radix := 10
	if radixArg.IsNumber() && radixArg.AsNumber() != 0 {
		radix = int(radixArg.AsNumber())
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if (radix == 16 || radix == 10) && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		s, radix = s[2:], 16
	}
	end := 0
	for end < len(s) && digitValue(s[end]) < radix {
		end++
	}
	if end == 0 {
		return math.NaN()
	}
	n, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		return math.NaN()
	}
	if neg {
		n = -n
	}
	return float64(n)
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 99
	}
}

func parseFloatImpl(s string) float64 {
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 {
		if _, err := strconv.ParseFloat(s[:end], 64); err == nil {
			break
		}
		end--
	}
	if end == 0 {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// --- Object statics --------------------------------------------------------

func registerObjectStatics(v *vm.VM) {
	objectCtor := newPlain(v, v.Protos.Function)
	method(v, objectCtor, "freeze", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		if o, ok := heapObj(arg(args, 0)); ok {
			o.Freeze()
		}
		return arg(args, 0), nil
	})
	method(v, objectCtor, "seal", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		if o, ok := heapObj(arg(args, 0)); ok {
			o.Seal()
		}
		return arg(args, 0), nil
	})
	method(v, objectCtor, "isFrozen", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		o, ok := heapObj(arg(args, 0))
		return value.Bool(ok && o.IsFrozen()), nil
	})
	method(v, objectCtor, "isSealed", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		o, ok := heapObj(arg(args, 0))
		return value.Bool(ok && o.IsSealed()), nil
	})
	method(v, objectCtor, "create", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		proto := arg(args, 0)
		if !proto.IsHeapRef() {
			proto = value.NullValue
		}
		return value.Ref(ctx.AllocatePlain(proto)), nil
	})
	method(v, objectCtor, "keys", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		o, ok := heapObj(arg(args, 0))
		arr := ctx.AllocateArray(v.Protos.Array)
		if ok {
			i := 0
			for _, k := range o.OwnKeys() {
				d, _ := o.GetOwn(k)
				if !d.Enumerable {
					continue
				}
				arr.SetElement(i, value.Ref(ctx.AllocateString(k.Name(), v.Protos.String)))
				i++
			}
		}
		return value.Ref(arr), nil
	})
	method(v, objectCtor, "getPrototypeOf", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		o, ok := heapObj(arg(args, 0))
		if !ok {
			return value.NullValue, nil
		}
		return o.Prototype(), nil
	})
	v.SetGlobal("Object", value.Ref(objectCtor))
}

func heapObj(v value.Value) (*values.ObjectBase, bool) {
	if !v.IsHeapRef() {
		return nil, false
	}
	switch o := v.AsHeapObject().(type) {
	case *values.PlainObject:
		return &o.ObjectBase, true
	case *values.ArrayObject:
		return &o.ObjectBase, true
	default:
		return nil, false
	}
}

// --- Array.prototype -------------------------------------------------------

func registerArrayProto(v *vm.VM) {
	p := v.Protos.Array
	arr := func(this value.Value) (*values.ArrayObject, bool) {
		if !this.IsHeapRef() {
			return nil, false
		}
		a, ok := this.AsHeapObject().(*values.ArrayObject)
		return a, ok
	}
	arrayMethod(v, p, "push", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		a, ok := arr(this)
		if !ok {
			return value.UndefinedValue, nil
		}
		n := a.Length()
		for i, x := range args {
			a.SetElement(n+i, x)
		}
		return value.Num(float64(a.Length())), nil
	})
	arrayMethod(v, p, "pop", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		a, ok := arr(this)
		if !ok || a.Length() == 0 {
			return value.UndefinedValue, nil
		}
		els := a.Elements()
		last := els[len(els)-1]
		a.OnAccessorMut("length", value.Num(float64(len(els)-1)))
		return last, nil
	})
	arrayMethod(v, p, "join", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		a, ok := arr(this)
		if !ok {
			return value.UndefinedValue, nil
		}
		sep := ","
		if len(args) > 0 && !args[0].IsUndefined() {
			sep = args[0].ToString()
		}
		return value.Ref(ctx.AllocateString(a.Join(sep), v.Protos.String)), nil
	})
	arrayMethod(v, p, "reverse", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		a, ok := arr(this)
		if !ok {
			return this, nil
		}
		els := a.Elements()
		for i, j := 0, len(els)-1; i < j; i, j = i+1, j-1 {
			els[i], els[j] = els[j], els[i]
		}
		for i, el := range els {
			a.SetElement(i, el)
		}
		return this, nil
	})
}

func arrayMethod(v *vm.VM, proto value.Value, name string, fn values.NativeFunc) {
	if !proto.IsHeapRef() {
		return
	}
	obj, ok := proto.AsHeapObject().(*values.PlainObject)
	if !ok {
		return
	}
	method(v, obj, name, fn)
}

// --- String.prototype --------------------------------------------------

func registerStringProto(v *vm.VM) {
	proto, ok := v.Protos.String.AsHeapObject().(*values.PlainObject)
	if !ok {
		return
	}
	str := func(this value.Value) (*values.StringObject, bool) {
		if !this.IsHeapRef() {
			return nil, false
		}
		s, ok := this.AsHeapObject().(*values.StringObject)
		return s, ok
	}
	method(v, proto, "charCodeAt", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		s, ok := str(this)
		if !ok {
			return value.Num(math.NaN()), nil
		}
		idx := int(arg(args, 0).ToNumber())
		code, found := s.CharCodeAt(idx)
		if !found {
			return value.Num(math.NaN()), nil
		}
		return value.Num(float64(code)), nil
	})
	method(v, proto, "charAt", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		s, ok := str(this)
		if !ok {
			return value.Ref(ctx.AllocateString("", v.Protos.String)), nil
		}
		idx := int(arg(args, 0).ToNumber())
		code, found := s.CharCodeAt(idx)
		if !found {
			return value.Ref(ctx.AllocateString("", v.Protos.String)), nil
		}
		return value.Ref(ctx.AllocateString(string(rune(code)), v.Protos.String)), nil
	})
	method(v, proto, "toUpperCase", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		s, ok := str(this)
		if !ok {
			return this, nil
		}
		return value.Ref(ctx.AllocateString(strings.ToUpper(s.AsString()), v.Protos.String)), nil
	})
	method(v, proto, "toLowerCase", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		s, ok := str(this)
		if !ok {
			return this, nil
		}
		return value.Ref(ctx.AllocateString(strings.ToLower(s.AsString()), v.Protos.String)), nil
	})
}

// --- Function.prototype --------------------------------------------------

// registerFunctionProto implements Function.prototype.call (spec.md
// §4.10: "they may be invoked through Function.prototype.call"). Per the
// resolved Open Question (spec.md §9), call's own arity is treated as
// zero: it forwards whatever this VM's calling convention already
// computed for thisArg/args rather than modeling a variadic signature
// of its own.
func registerFunctionProto(v *vm.VM) {
	proto, ok := v.Protos.Function.AsHeapObject().(*values.PlainObject)
	if !ok {
		return
	}
	method(v, proto, "call", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		if !this.IsHeapRef() || !this.AsHeapObject().IsCallable() {
			return value.UndefinedValue, fmt.Errorf("Function.prototype.call invoked on a non-function")
		}
		newThis := arg(args, 0)
		var rest []value.Value
		if len(args) > 1 {
			rest = args[1:]
		}
		return v.CallValue(this, newThis, rest)
	})
}

// --- Error -----------------------------------------------------------------

func registerErrorCtor(v *vm.VM) {
	ctor := values.NewNative(v.Protos.Function, "Error", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		msg := ""
		if len(args) > 0 {
			msg = args[0].ToString()
		}
		return ctx.NewError("Error", msg), nil
	})
	ctor.SetConstructor(true)
	v.Heap.Allocate(ctor)
	v.SetGlobal("Error", value.Ref(ctor))
}
