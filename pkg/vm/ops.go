package vm

import (
	"math"

	"derkjs/pkg/bytecode"
	"derkjs/pkg/errors"
	"derkjs/pkg/intern"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
)

// step executes one instruction against frame, which is always
// &vm.frames[len(vm.frames)-1] at call time — handlers that push/pop
// frames re-fetch it themselves rather than mutate the caller's copy.
func (vm *VM) step(frame *Frame, ins bytecode.Instruction) error {
	switch ins.Op {
	case bytecode.OpPutConst:
		return vm.push(vm.Program.Constants[ins.A])
	case bytecode.OpPutImm:
		return vm.push(immediateValues[ins.A])
	case bytecode.OpPutLocalRef:
		ref := &localRef{idx: frame.Base + int(ins.A)}
		return vm.push(value.Ref(ref))
	case bytecode.OpCopy:
		return vm.push(vm.peek())
	case bytecode.OpDrop:
		vm.pop()
		return nil

	case bytecode.OpGetProp:
		obj := vm.pop()
		key := vm.pop()
		v, err := vm.getProp(frame, obj, key)
		if err != nil {
			return err
		}
		return vm.push(v)
	case bytecode.OpSetProp:
		obj := vm.pop()
		key := vm.pop()
		val := vm.pop()
		if err := vm.setProp(frame, obj, key, val); err != nil {
			return err
		}
		return vm.push(val)
	case bytecode.OpEmplace:
		return vm.emplace(frame)

	case bytecode.OpAdd:
		return vm.binaryOp(frame)
	case bytecode.OpSub:
		return vm.binaryNumeric(frame, func(a, b float64) float64 { return a - b })
	case bytecode.OpMul:
		return vm.binaryNumeric(frame, func(a, b float64) float64 { return a * b })
	case bytecode.OpDiv:
		return vm.binaryNumeric(frame, func(a, b float64) float64 { return a / b })
	case bytecode.OpMod:
		return vm.binaryNumeric(frame, math.Mod)
	case bytecode.OpBitAnd:
		return vm.binaryInt32(frame, func(a, b int32) int32 { return a & b })
	case bytecode.OpBitOr:
		return vm.binaryInt32(frame, func(a, b int32) int32 { return a | b })
	case bytecode.OpBitXor:
		return vm.binaryInt32(frame, func(a, b int32) int32 { return a ^ b })
	case bytecode.OpShl:
		return vm.binaryShift(frame, func(a int32, s uint32) int32 { return a << (s & 31) })
	case bytecode.OpShr:
		return vm.binaryShift(frame, func(a int32, s uint32) int32 { return a >> (s & 31) })
	case bytecode.OpUShr:
		b := vm.pop()
		a := vm.pop()
		shift := b.ToUint32() & 31
		return vm.push(value.Num(float64(a.ToUint32() >> shift)))

	case bytecode.OpEq:
		b := vm.pop()
		a := vm.pop()
		return vm.push(value.Bool(abstractEquals(a, b)))
	case bytecode.OpNeq:
		b := vm.pop()
		a := vm.pop()
		return vm.push(value.Bool(!abstractEquals(a, b)))
	case bytecode.OpStrictEq:
		b := vm.pop()
		a := vm.pop()
		return vm.push(value.Bool(strictEquals(a, b)))
	case bytecode.OpStrictNeq:
		b := vm.pop()
		a := vm.pop()
		return vm.push(value.Bool(!strictEquals(a, b)))
	case bytecode.OpLt:
		return vm.compare(frame, func(c int, ok bool) bool { return ok && c < 0 })
	case bytecode.OpGt:
		return vm.compare(frame, func(c int, ok bool) bool { return ok && c > 0 })
	case bytecode.OpLe:
		return vm.compare(frame, func(c int, ok bool) bool { return ok && c <= 0 })
	case bytecode.OpGe:
		return vm.compare(frame, func(c int, ok bool) bool { return ok && c >= 0 })

	case bytecode.OpNeg:
		a := vm.pop()
		return vm.push(value.Num(-a.ToNumber()))
	case bytecode.OpNot:
		a := vm.pop()
		return vm.push(value.Bool(!a.Truthy()))
	case bytecode.OpBitNot:
		a := vm.pop()
		return vm.push(value.Num(float64(^a.ToInt32())))
	case bytecode.OpNumify:
		a := vm.pop()
		return vm.push(value.Num(a.ToNumber()))
	case bytecode.OpStrcat:
		b := vm.pop()
		a := vm.pop()
		return vm.push(vm.newString(a.ToString() + b.ToString()))
	case bytecode.OpTypeof:
		a := vm.pop()
		return vm.push(vm.newString(a.TypeOf()))
	case bytecode.OpVoid:
		vm.pop()
		return vm.push(value.UndefinedValue)

	case bytecode.OpJump:
		frame.IP = int(ins.A)
		return nil
	case bytecode.OpJumpIf:
		if vm.peek().Truthy() {
			frame.IP = int(ins.A)
		} else {
			vm.pop()
		}
		return nil
	case bytecode.OpJumpElse:
		if !vm.peek().Truthy() {
			frame.IP = int(ins.A)
		} else {
			vm.pop()
		}
		return nil

	case bytecode.OpCall:
		return vm.doCall(frame, int(ins.A), false)
	case bytecode.OpTailCall:
		return vm.doCall(frame, int(ins.A), true)
	case bytecode.OpNew:
		return vm.doNew(frame, int(ins.A))
	case bytecode.OpRet:
		return vm.doReturn(frame)
	case bytecode.OpRefUpvalue:
		if frame.Capture == nil {
			return errors.BadOperationf(vm.pos(frame), "no enclosing capture for ref_upvalue")
		}
		ptr := frame.Capture.Resolve(int(ins.A), int(ins.B))
		return vm.push(value.Ref(&upvalRef{ptr: ptr}))
	case bytecode.OpCatch:
		return nil // marker only; meaningful during unwind, a no-op in straight-line execution
	case bytecode.OpThrow:
		v := vm.pop()
		return vm.Throw(v)
	case bytecode.OpHalt:
		return errors.Abortf(vm.pos(frame), "halt")

	case bytecode.OpClosure:
		lambda, err := vm.buildClosure(frame, int(ins.A))
		if err != nil {
			return err
		}
		if _, aerr := vm.Heap.Allocate(lambda); aerr != nil {
			return errors.BadHeapAllocf(vm.pos(frame), "%s", aerr.Error())
		}
		return vm.push(value.Ref(lambda))

	default:
		return errors.Abortf(vm.pos(frame), "unimplemented opcode %s", ins.Op)
	}
}

// immediateValues is indexed by OpPutImm's operand A (compiler-assigned:
// 0=undefined, 1=null, 2=true, 3=false).
var immediateValues = [4]value.Value{
	0: value.UndefinedValue,
	1: value.NullValue,
	2: value.TrueValue,
	3: value.FalseValue,
}

func (vm *VM) newString(s string) value.Value {
	obj := values.NewDynamicString(s, vm.Protos.String)
	vm.Heap.Allocate(obj)
	return value.Ref(obj)
}

// propertyKey coerces a Value used as a property-access key into its
// canonical interned name (spec.md §3.2/§4.9): strings use their
// content, everything else uses ToString (so `a[0]` and `a["0"]` share a
// key, matching array index semantics).
func (vm *VM) propertyKey(v value.Value) *intern.Key {
	return vm.Table.Intern(v.ToString())
}

// getProp also serves as the dereference step for local/upvalue reads:
// a compiled read of a local or captured identifier emits
// `put_local_ref`/`ref_upvalue` followed by `get_prop` with a throwaway
// key, since the reference object carries its own addressing and the
// key is irrelevant once obj is one of the two reference kinds. This
// keeps `get_prop` the single read path ref and property access share,
// matching emplace being the single write path they share.
func (vm *VM) getProp(frame *Frame, obj, key value.Value) (value.Value, error) {
	if obj.IsHeapRef() {
		switch ref := obj.AsHeapObject().(type) {
		case *localRef:
			return vm.stack[ref.idx], nil
		case *upvalRef:
			return *ref.ptr, nil
		}
	}
	if !obj.IsHeapRef() {
		return value.UndefinedValue, errors.BadPropertyAccessf(vm.pos(frame), "cannot read property '%s' of %s", key.ToString(), obj.ToString())
	}
	return values.Get(obj, vm.propertyKey(key)), nil
}

func (vm *VM) setProp(frame *Frame, obj, key, val value.Value) error {
	if !obj.IsHeapRef() {
		return errors.BadPropertyAccessf(vm.pos(frame), "cannot set property '%s' of %s", key.ToString(), obj.ToString())
	}
	values.Set(obj, vm.propertyKey(key), key.ToString(), val)
	return nil
}

// binaryOp implements `+`, which per spec.md §4.3 is string
// concatenation "if either operand is a string" and numeric addition
// otherwise.
func (vm *VM) binaryOp(frame *Frame) error {
	b := vm.pop()
	a := vm.pop()
	if a.TypeOf() == "string" || b.TypeOf() == "string" {
		return vm.push(vm.newString(a.ToString() + b.ToString()))
	}
	return vm.push(value.Num(a.ToNumber() + b.ToNumber()))
}

func (vm *VM) binaryNumeric(frame *Frame, f func(a, b float64) float64) error {
	b := vm.pop()
	a := vm.pop()
	return vm.push(value.Num(f(a.ToNumber(), b.ToNumber())))
}

func (vm *VM) binaryInt32(frame *Frame, f func(a, b int32) int32) error {
	b := vm.pop()
	a := vm.pop()
	return vm.push(value.Num(float64(f(a.ToInt32(), b.ToInt32()))))
}

func (vm *VM) binaryShift(frame *Frame, f func(a int32, shift uint32) int32) error {
	b := vm.pop()
	a := vm.pop()
	return vm.push(value.Num(float64(f(a.ToInt32(), b.ToUint32()&31))))
}

// compare implements `< > <= >=` (spec.md §4.3): lexicographic on code
// units when both operands are strings, numeric otherwise. take receives
// (sign, ok) where ok is false when either side was NaN (every ES5
// relational comparison involving NaN is false).
func (vm *VM) compare(frame *Frame, take func(sign int, ok bool) bool) error {
	b := vm.pop()
	a := vm.pop()
	if as, aok := asStringObject(a); aok {
		if bs, bok := asStringObject(b); bok {
			switch {
			case as.Equal(bs):
				return vm.push(value.Bool(take(0, true)))
			case as.Less(bs):
				return vm.push(value.Bool(take(-1, true)))
			default:
				return vm.push(value.Bool(take(1, true)))
			}
		}
	}
	an, bn := a.ToNumber(), b.ToNumber()
	if math.IsNaN(an) || math.IsNaN(bn) {
		return vm.push(value.Bool(take(0, false)))
	}
	switch {
	case an < bn:
		return vm.push(value.Bool(take(-1, true)))
	case an > bn:
		return vm.push(value.Bool(take(1, true)))
	default:
		return vm.push(value.Bool(take(0, true)))
	}
}

func asStringObject(v value.Value) (*values.StringObject, bool) {
	if !v.IsHeapRef() {
		return nil, false
	}
	s, ok := v.AsHeapObject().(*values.StringObject)
	return s, ok
}

// abstractEquals implements the ES5 §11.9.3 `==` algorithm restricted to
// the types this runtime has: undefined/null are mutually equal and
// equal only to each other; same-kind compares structurally; number<->
// string coerces the string; boolean coerces to number on either side;
// object<->primitive is not unboxed further since this model's only
// boxed type (String) already participates via strictEquals/ToNumber.
func abstractEquals(a, b value.Value) bool {
	if a.Kind() == b.Kind() {
		return strictEquals(a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	if a.IsNumber() && isStringValue(b) {
		return a.AsNumber() == b.ToNumber()
	}
	if isStringValue(a) && b.IsNumber() {
		return a.ToNumber() == b.AsNumber()
	}
	if a.IsBoolean() {
		return abstractEquals(value.Num(a.AsNumber()), b)
	}
	if b.IsBoolean() {
		return abstractEquals(a, value.Num(b.AsNumber()))
	}
	return false
}

func isStringValue(v value.Value) bool {
	_, ok := asStringObject(v)
	return ok
}

// strictEquals implements `===`: numbers and booleans compare by value,
// strings compare by content even across distinct handles (spec.md
// §4.2), everything else by payload identity.
func strictEquals(a, b value.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if as, aok := asStringObject(a); aok {
		if bs, bok := asStringObject(b); bok {
			return as.Equal(bs)
		}
		return false
	}
	if a.IsNumber() {
		return a.AsNumber() == b.AsNumber() // NaN ever compares false via direct float ==
	}
	return a.Same(b)
}
