package vm

import (
	"testing"

	"derkjs/pkg/bytecode"
	"derkjs/pkg/errors"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
)

// emit is a tiny assembler convenience: append ins to p and return nothing,
// since every test program below only needs sequential offsets.
func emit(p *bytecode.Program, ins ...bytecode.Instruction) {
	for _, i := range ins {
		p.Emit(i)
	}
}

func TestRunArithmeticAndReturn(t *testing.T) {
	p := bytecode.NewProgram()
	ten := p.AddConstant(value.Num(10))
	five := p.AddConstant(value.Num(5))
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(ten)},
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(five)},
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: 0, NameConstID: -1})

	vm := New(p, DefaultConfig())
	got, err := vm.Run(entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ToNumber() != 15 {
		t.Errorf("result = %v, want 15", got.ToNumber())
	}
}

// TestRunCallWithLocalRead exercises put_local_ref + get_prop as the
// dereference path for reading a parameter's value (see DESIGN.md Open
// Question 5): double(x) { return x + x }.
func TestRunCallWithLocalRead(t *testing.T) {
	p := bytecode.NewProgram()
	twentyOne := p.AddConstant(value.Num(21))

	doubleOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0}, // dummy key
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> x
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> x again
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	double := p.AddFunction(bytecode.FunctionProto{EntryOffset: doubleOff, ParamCount: 1, LocalCount: 1, NameConstID: -1})

	entryOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0}, // thisArg
		bytecode.Instruction{Op: bytecode.OpClosure, A: int32(double)},
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(twentyOne)},
		bytecode.Instruction{Op: bytecode.OpCall, A: 1},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: entryOff, NameConstID: -1})

	vm := New(p, DefaultConfig())
	got, err := vm.Run(entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ToNumber() != 42 {
		t.Errorf("result = %v, want 42", got.ToNumber())
	}
	if len(vm.frames) != 0 {
		t.Errorf("frames left over after return: %d", len(vm.frames))
	}
}

// TestRunTailCall checks that a tail call from A into B computes B's
// result and returns it straight to A's caller.
func TestRunTailCall(t *testing.T) {
	p := bytecode.NewProgram()
	one := p.AddConstant(value.Num(1))
	two := p.AddConstant(value.Num(2))
	ten := p.AddConstant(value.Num(10))

	bOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> y
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(two)},
		bytecode.Instruction{Op: bytecode.OpMul}, // y*2
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	funcB := p.AddFunction(bytecode.FunctionProto{EntryOffset: bOff, ParamCount: 1, LocalCount: 1, NameConstID: -1})

	aOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0}, // thisArg for the tail call
		bytecode.Instruction{Op: bytecode.OpClosure, A: int32(funcB)},
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> x
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(one)},
		bytecode.Instruction{Op: bytecode.OpAdd}, // x+1 (arg0 for funcB)
		bytecode.Instruction{Op: bytecode.OpTailCall, A: 1},
	)
	funcA := p.AddFunction(bytecode.FunctionProto{EntryOffset: aOff, ParamCount: 1, LocalCount: 1, NameConstID: -1})

	entryOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpClosure, A: int32(funcA)},
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(ten)},
		bytecode.Instruction{Op: bytecode.OpCall, A: 1},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: entryOff, NameConstID: -1})

	vm := New(p, DefaultConfig())
	got, err := vm.Run(entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ToNumber() != 22 {
		t.Errorf("result = %v, want 22", got.ToNumber())
	}
}

// TestRunClosureCapture builds a function returning a closure over its own
// parameter, then calls that closure (spec.md §4.5 "Closures").
func TestRunClosureCapture(t *testing.T) {
	p := bytecode.NewProgram()
	one := p.AddConstant(value.Num(1))
	seven := p.AddConstant(value.Num(7))

	innerOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpRefUpvalue, A: 0, B: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> captured x
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(one)},
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	inner := p.AddFunction(bytecode.FunctionProto{EntryOffset: innerOff, NameConstID: -1})

	outerOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpClosure, A: int32(inner)},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	outer := p.AddFunction(bytecode.FunctionProto{
		EntryOffset: outerOff, ParamCount: 1, LocalCount: 1, NameConstID: -1,
		UpvalueRefs: nil,
	})
	// inner captures outer's local slot 0 (its param x) at depth 0.
	p.Functions[inner].UpvalueRefs = []bytecode.UpvalueRef{{Depth: 0, Slot: 0}}

	entryOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0}, // thisArg for outer
		bytecode.Instruction{Op: bytecode.OpClosure, A: int32(outer)},
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(seven)},
		bytecode.Instruction{Op: bytecode.OpCall, A: 1}, // -> inner lambda
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpEmplace}, // stash lambda in scratch local 0
		bytecode.Instruction{Op: bytecode.OpDrop},
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0}, // thisArg for inner
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> inner lambda as callee
		bytecode.Instruction{Op: bytecode.OpCall, A: 0},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: entryOff, LocalCount: 1, NameConstID: -1})

	vm := New(p, DefaultConfig())
	got, err := vm.Run(entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ToNumber() != 8 {
		t.Errorf("result = %v, want 8", got.ToNumber())
	}
}

// TestRunThrowCatch exercises unwind()'s catch-scan-and-resume path within
// a single function (spec.md §4.6).
func TestRunThrowCatch(t *testing.T) {
	p := bytecode.NewProgram()
	msg := p.AddConstant(value.Num(99))
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(msg)},
		bytecode.Instruction{Op: bytecode.OpThrow},
		bytecode.Instruction{Op: bytecode.OpCatch},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: 0, NameConstID: -1})

	vm := New(p, DefaultConfig())
	got, err := vm.Run(entry)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ToNumber() != 99 {
		t.Errorf("caught value = %v, want 99", got.ToNumber())
	}
}

// TestRunUncaughtThrow checks that a throw with no reachable catch surfaces
// as *errors.UncaughtScriptError rather than a Go panic or envelope error.
func TestRunUncaughtThrow(t *testing.T) {
	p := bytecode.NewProgram()
	msg := p.AddConstant(value.Num(42))
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(msg)},
		bytecode.Instruction{Op: bytecode.OpThrow},
	)
	entry := p.AddFunction(bytecode.FunctionProto{EntryOffset: 0, NameConstID: -1})

	vm := New(p, DefaultConfig())
	_, err := vm.Run(entry)
	if err == nil {
		t.Fatal("expected an error from an uncaught throw")
	}
	uncaught, ok := err.(*errors.UncaughtScriptError)
	if !ok {
		t.Fatalf("err = %T, want *errors.UncaughtScriptError", err)
	}
	if uncaught.Message() != "42" {
		t.Errorf("Message() = %q, want %q", uncaught.Message(), "42")
	}
}

func TestCallValueReentersForNative(t *testing.T) {
	p := bytecode.NewProgram()
	vm := New(p, DefaultConfig())

	var gotArgs []value.Value
	native := values.NewNative(value.UndefinedValue, "add", func(ctx values.CallContext, this value.Value, args []value.Value) (value.Value, error) {
		gotArgs = args
		return value.Num(args[0].ToNumber() + args[1].ToNumber()), nil
	})
	callee := value.Ref(native)

	got, err := vm.CallValue(callee, value.UndefinedValue, []value.Value{value.Num(2), value.Num(3)})
	if err != nil {
		t.Fatalf("CallValue: %v", err)
	}
	if got.ToNumber() != 5 {
		t.Errorf("result = %v, want 5", got.ToNumber())
	}
	if len(gotArgs) != 2 || gotArgs[0].ToNumber() != 2 || gotArgs[1].ToNumber() != 3 {
		t.Errorf("native saw args %v", gotArgs)
	}
}

// TestCallValueReentersForLambda checks CallValue's lambda path: it must
// push a genuine call-site and drive enterLambda/runUntil rather than
// panic through LambdaObject.Call (pkg/values/lambda_test.go covers that
// panic in isolation).
func TestCallValueReentersForLambda(t *testing.T) {
	p := bytecode.NewProgram()
	one := p.AddConstant(value.Num(1))
	fnOff := len(p.Code)
	emit(p,
		bytecode.Instruction{Op: bytecode.OpPutImm, A: 0},
		bytecode.Instruction{Op: bytecode.OpPutLocalRef, A: 0},
		bytecode.Instruction{Op: bytecode.OpGetProp}, // -> arg0
		bytecode.Instruction{Op: bytecode.OpPutConst, A: int32(one)},
		bytecode.Instruction{Op: bytecode.OpAdd},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	fn := &bytecode.FunctionProto{EntryOffset: fnOff, ParamCount: 1, LocalCount: 1, NameConstID: -1}
	funcID := p.AddFunction(*fn)

	vm := New(p, DefaultConfig())
	lambda := values.NewLambda(value.UndefinedValue, &p.Functions[funcID], funcID, "f", nil)
	if _, err := vm.Heap.Allocate(lambda); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	got, err := vm.CallValue(value.Ref(lambda), value.UndefinedValue, []value.Value{value.Num(9)})
	if err != nil {
		t.Fatalf("CallValue: %v", err)
	}
	if got.ToNumber() != 10 {
		t.Errorf("result = %v, want 10", got.ToNumber())
	}
	if len(vm.frames) != 0 {
		t.Errorf("frames left over after CallValue: %d", len(vm.frames))
	}
}
