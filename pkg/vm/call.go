package vm

import (
	"derkjs/pkg/errors"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
)

// callSite reads the [thisArg, callee, arg0..arg(argc-1)] region already
// on the stack (spec.md §4.5 frame-layout diagram) without popping it —
// a lambda callee turns this region directly into the new frame's
// locals; a native callee still needs the same shape to materialize its
// arguments slice.
type callSite struct {
	thisIdx, calleeIdx, argsStart, argc int
}

func (vm *VM) readCallSite(argc int) callSite {
	n := len(vm.stack)
	return callSite{thisIdx: n - argc - 2, calleeIdx: n - argc - 1, argsStart: n - argc, argc: argc}
}

func (vm *VM) doCall(frame *Frame, argc int, isTail bool) error {
	cs := vm.readCallSite(argc)
	thisArg := vm.stack[cs.thisIdx]
	calleeVal := vm.stack[cs.calleeIdx]
	if !calleeVal.IsHeapRef() || !calleeVal.AsHeapObject().IsCallable() {
		return errors.BadOperationf(vm.pos(frame), "value is not callable")
	}

	switch callee := calleeVal.AsHeapObject().(type) {
	case *values.LambdaObject:
		return vm.enterLambda(frame, callee, cs, thisArg, value.UndefinedValue, false, isTail)
	case *values.NativeObject:
		args := make([]value.Value, argc)
		copy(args, vm.stack[cs.argsStart:])
		result, err := callee.Fn(vm, thisArg, args)
		vm.stack = vm.stack[:cs.thisIdx]
		if err != nil {
			return vm.nativeErr(frame, err)
		}
		if isTail {
			return vm.returnFromFrame(frame, result)
		}
		if perr := vm.push(result); perr != nil {
			return perr
		}
		return nil
	default:
		return errors.BadOperationf(vm.pos(frame), "value is not callable")
	}
}

// nativeErr turns a Go error from a NativeFunc into either a pending
// script throw (if the native already called ctx.Throw, the error IS the
// *thrown sentinel) or a bad_operation envelope error otherwise.
func (vm *VM) nativeErr(frame *Frame, err error) error {
	if _, ok := err.(*thrown); ok {
		return err
	}
	return errors.BadOperationf(vm.pos(frame), "%s", err.Error())
}

// enterLambda binds argc arguments already on the stack into a new
// frame's locals (or, for a tail call, replaces the current frame in
// place) per spec.md §4.5's RBSP layout and §4.5 "Tail position".
func (vm *VM) enterLambda(frame *Frame, callee *values.LambdaObject, cs callSite, thisArg, newTarget value.Value, isCtor, isTail bool) error {
	fn := callee.Proto
	params := make([]value.Value, fn.ParamCount)
	for i := 0; i < fn.ParamCount; i++ {
		if i < cs.argc {
			params[i] = vm.stack[cs.argsStart+i]
		} else {
			params[i] = value.UndefinedValue
		}
	}

	if isTail {
		vm.stack = vm.stack[:frame.CallBase]
		base := len(vm.stack)
		vm.stack = append(vm.stack, params...)
		for i := fn.ParamCount; i < fn.LocalCount; i++ {
			vm.stack = append(vm.stack, value.UndefinedValue)
		}
		frame.Lambda = callee
		frame.FuncID = callee.FuncID
		frame.IP = fn.EntryOffset
		frame.Base = base
		frame.This = thisArg
		frame.NewTarget = newTarget
		frame.Capture = callee.Capture
		frame.IsCtor = isCtor
		return nil
	}

	if vm.Config.CallDepthLimit > 0 && len(vm.frames) >= vm.Config.CallDepthLimit {
		return errors.Abortf(vm.pos(frame), "call depth limit exceeded (%d)", vm.Config.CallDepthLimit)
	}

	callBase := cs.thisIdx
	vm.stack = vm.stack[:cs.argsStart]
	base := len(vm.stack)
	vm.stack = append(vm.stack, params...)
	for i := fn.ParamCount; i < fn.LocalCount; i++ {
		vm.stack = append(vm.stack, value.UndefinedValue)
	}
	vm.frames = append(vm.frames, Frame{
		Lambda:    callee,
		FuncID:    callee.FuncID,
		IP:        fn.EntryOffset,
		Base:      base,
		CallBase:  callBase,
		This:      thisArg,
		NewTarget: newTarget,
		Capture:   callee.Capture,
		IsCtor:    isCtor,
	})
	return nil
}

// doNew implements spec.md §4.5 "Constructor protocol": a fresh plain
// object with prototype callee.prototype becomes thisArg; the eventual
// return value is swapped for that object if the callee didn't return a
// heap object itself (see returnFromFrame).
func (vm *VM) doNew(frame *Frame, argc int) error {
	cs := vm.readCallSite(argc)
	calleeVal := vm.stack[cs.calleeIdx]
	if !calleeVal.IsHeapRef() || !calleeVal.AsHeapObject().IsCallable() {
		return errors.BadOperationf(vm.pos(frame), "value is not a constructor")
	}

	proto := vm.Protos.Object
	protoKey := vm.Table.Intern("prototype")
	if d, ok := values.Lookup(calleeVal, protoKey); ok && d.Value.IsHeapRef() {
		proto = d.Value
	}
	fresh, err := vm.allocatePlain(proto)
	if err != nil {
		return err
	}
	freshVal := value.Ref(fresh)

	switch callee := calleeVal.AsHeapObject().(type) {
	case *values.LambdaObject:
		if !callee.IsConstructor() {
			return errors.BadOperationf(vm.pos(frame), "value is not a constructor")
		}
		return vm.enterLambda(frame, callee, cs, freshVal, calleeVal, true, false)
	case *values.NativeObject:
		args := make([]value.Value, argc)
		copy(args, vm.stack[cs.argsStart:])
		result, nerr := callee.Fn(vm, freshVal, args)
		vm.stack = vm.stack[:cs.thisIdx]
		if nerr != nil {
			return vm.nativeErr(frame, nerr)
		}
		if !result.IsHeapRef() {
			result = freshVal
		}
		return vm.push(result)
	default:
		return errors.BadOperationf(vm.pos(frame), "value is not a constructor")
	}
}

// doReturn pops the return value and resumes the caller (spec.md §4.5:
// "A return writes its value at RBSP-1, discards the rest of the
// callee's region, and resumes the caller" — implemented here as
// truncate-to-call-site then push the single result).
func (vm *VM) doReturn(frame *Frame) error {
	retVal := vm.pop()
	return vm.returnFromFrame(frame, retVal)
}

func (vm *VM) returnFromFrame(frame *Frame, retVal value.Value) error {
	if frame.IsCtor && !retVal.IsHeapRef() {
		retVal = frame.This
	}
	vm.stack = vm.stack[:frame.CallBase]
	vm.frames = vm.frames[:len(vm.frames)-1]
	return vm.push(retVal)
}

// buildClosure implements spec.md §4.5 "Closures": a lambda created
// inside another function captures its lexical environment into a fresh
// CaptureObject, snapshotting each referenced slot by value at creation
// time (a documented simplification — see DESIGN.md — of a live-cell
// model) per FunctionProto.UpvalueRefs.
func (vm *VM) buildClosure(frame *Frame, funcID int) (*values.LambdaObject, error) {
	fn := &vm.Program.Functions[funcID]
	var capture *values.CaptureObject
	if len(fn.UpvalueRefs) > 0 {
		capture = values.NewCapture(vm.Protos.Capture, frame.Capture, len(fn.UpvalueRefs))
		for i, uv := range fn.UpvalueRefs {
			if uv.Depth == 0 {
				capture.Slots[i] = vm.stack[frame.Base+uv.Slot]
			} else if frame.Capture != nil {
				capture.Slots[i] = *frame.Capture.Resolve(uv.Depth-1, uv.Slot)
			}
		}
	}
	name := ""
	if fn.NameConstID >= 0 && fn.NameConstID < len(vm.Program.Constants) {
		name = vm.Program.Constants[fn.NameConstID].ToString()
	}
	lambda := values.NewLambda(vm.Protos.Function, fn, funcID, name, capture)
	return lambda, nil
}

// upvalRef and localRef are the heap-object wrappers put_local_ref and
// ref_upvalue push: assignable handles threaded through the operand
// stack so `emplace` can write back through whichever one it pops,
// without the Value union needing a dedicated "reference" kind.
type localRef struct{ idx int }

func (r *localRef) ClassName() string { return "Reference" }
func (r *localRef) IsCallable() bool  { return false }

type upvalRef struct{ ptr *value.Value }

func (r *upvalRef) ClassName() string { return "Reference" }
func (r *upvalRef) IsCallable() bool  { return false }

// emplace implements spec.md §4.4 `emplace`: pop (value, ref), write
// value through ref, and push it back so assignment remains an
// expression (matching `set_prop`'s push-the-written-value convention).
func (vm *VM) emplace(frame *Frame) error {
	refVal := vm.pop()
	val := vm.pop()
	if !refVal.IsHeapRef() {
		return errors.BadOperationf(vm.pos(frame), "emplace target is not a reference")
	}
	switch ref := refVal.AsHeapObject().(type) {
	case *localRef:
		vm.stack[ref.idx] = val
	case *upvalRef:
		*ref.ptr = val
	default:
		return errors.BadOperationf(vm.pos(frame), "emplace target is not a reference")
	}
	return vm.push(val)
}
