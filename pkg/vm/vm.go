// Package vm implements the stack-based, tail-call-threaded bytecode
// dispatcher of spec.md §4.5: an operand stack shared by every frame, a
// bounded call-depth counter, and a straight switch-dispatch loop over
// *bytecode.Program. It owns the heap, the GC, and the intern table for
// one running program, and implements values.CallContext so natives can
// allocate and throw through the same VM that is calling them — mirroring
// the teacher's own vm.VM (pkg/vm/vm.go), with the register file and
// hidden-class call machinery replaced by the spec's RBSP stack layout.
package vm

import (
	"fmt"

	"derkjs/pkg/bytecode"
	"derkjs/pkg/errors"
	"derkjs/pkg/gc"
	"derkjs/pkg/heap"
	"derkjs/pkg/intern"
	"derkjs/pkg/source"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
)

// Config bounds the resources of spec.md §5 "Resource policy".
type Config struct {
	StackSize      int // operand stack capacity; overflow is fatal
	CallDepthLimit int // max live frames; overshoot is fatal
	GCThreshold    int // live-object count that triggers a collection before allocating
	HeapCap        int // hard live-object cap; 0 = unbounded
}

// DefaultConfig matches the teacher's own conservative defaults, scaled
// for a tree-walking-free bytecode VM rather than a register machine.
func DefaultConfig() Config {
	return Config{StackSize: 64 * 1024, CallDepthLimit: 1024, GCThreshold: 4096, HeapCap: 0}
}

// Prototypes holds the well-known built-in prototypes the loader installs
// (spec.md §6.1 preloads); the VM consults these when it needs to
// allocate a primitive-wrapper heap object itself (string concatenation,
// typeof results, array literals).
type Prototypes struct {
	Object   value.Value
	Function value.Value
	Array    value.Value
	String   value.Value
	Error    value.Value
	Capture  value.Value
}

// VM executes one loaded *bytecode.Program to completion. Not safe for
// concurrent use (spec.md §5: "single-threaded, synchronous").
type VM struct {
	Program *bytecode.Program
	Table   *intern.Table
	Heap    *heap.Heap
	GC      *gc.GC
	Protos  Prototypes
	Config  Config

	stack      []value.Value
	frames     []Frame
	pendingErr value.Value
	hasPending bool

	// Globals holds every preloaded top-level binding (spec.md §6.1):
	// console, clock, isNaN, parseInt, parseFloat, the Error constructor,
	// and so on. Strict-mode top-level `this` is undefined (no implicit
	// global object), so these are reached only through preload
	// resolution, never through a property get on `this`.
	Globals map[string]value.Value

	// Stdout is where console.log and friends write; defaults to nil,
	// meaning natives wire their own target. Exposed so cmd/derkjs and
	// tests can capture output without poking at the natives package.
	Stdout StdoutWriter

	// sources lazily wraps Program.Sources entries in *source.SourceFile
	// so error positions carry a name/content pair (spec.md §6.2) instead
	// of a bare byte span; built on first use per index, not up front,
	// since most programs never throw.
	sources []*source.SourceFile
}

// StdoutWriter is the minimal surface console.log needs; satisfied by
// *bufio.Writer, os.Stdout, or a bytes.Buffer in tests.
type StdoutWriter interface {
	WriteString(s string) (int, error)
}

// New constructs a VM with a fresh heap, GC, and intern table, bound to
// prog. Prototypes are left as UndefinedValue until SetPrototypes is
// called by the loader (pkg/program).
func New(prog *bytecode.Program, cfg Config) *VM {
	h := heap.New(cfg.HeapCap, cfg.GCThreshold)
	vm := &VM{
		Program: prog,
		Table:   intern.New(),
		Heap:    h,
		Config:  cfg,
		stack:   make([]value.Value, 0, cfg.StackSize),
		Globals: make(map[string]value.Value),
	}
	vm.GC = gc.New(h, vm)
	h.Bind(vm.GC)
	return vm
}

// SetPrototypes installs the well-known prototypes; called once by the
// loader after it has allocated them (spec.md §6.1 preloads).
func (vm *VM) SetPrototypes(p Prototypes) { vm.Protos = p }

// SetGlobal/Global install and retrieve a preloaded top-level binding.
func (vm *VM) SetGlobal(name string, v value.Value) { vm.Globals[name] = v }
func (vm *VM) Global(name string) (value.Value, bool) {
	v, ok := vm.Globals[name]
	return v, ok
}

// Frame is the per-call activation record of spec.md §4.5/§4.6: caller's
// instruction pointer is implicit (frames below on vm.frames retain
// theirs), so Frame itself only needs this call's own state.
type Frame struct {
	Lambda      *values.LambdaObject
	// FuncID indexes Program.Functions for this frame's own body, used to
	// bound the catch scan (functionEnd) during unwinding. Set directly
	// rather than read off Lambda, since the Run()-created entry frame has
	// no LambdaObject to read it from.
	FuncID      int
	IP          int
	Base        int // RBSP: stack index of arg0/local0 for this frame
	CallBase    int // stack index to truncate to (and overwrite with the result) on return
	This        value.Value
	NewTarget   value.Value
	Capture     *values.CaptureObject
	IsCtor      bool
}

// Run pushes an initial frame for entryFuncID (no arguments, `this` =
// undefined) and executes until it returns, halts, or an error escapes.
func (vm *VM) Run(entryFuncID int) (value.Value, error) {
	fn := &vm.Program.Functions[entryFuncID]
	vm.stack = append(vm.stack, value.UndefinedValue, value.UndefinedValue) // synthetic thisArg, callee
	callBase := len(vm.stack) - 2
	base := len(vm.stack)
	for i := 0; i < fn.LocalCount; i++ {
		vm.stack = append(vm.stack, value.UndefinedValue)
	}
	vm.frames = append(vm.frames, Frame{
		Lambda:    nil,
		FuncID:    entryFuncID,
		IP:        fn.EntryOffset,
		Base:      base,
		CallBase:  callBase,
		This:      value.UndefinedValue,
		NewTarget: value.UndefinedValue,
	})
	return vm.loop()
}

// loop is the dispatch loop proper (spec.md §4.5: "each opcode handler
// computes its effect, then transfers to the handler selected by the next
// instruction"). Go's switch compiles to a jump table for a dense,
// contiguous tag like OpCode, which is the idiomatic stand-in for
// threaded dispatch the spec itself calls optional (§REDESIGN FLAGS).
func (vm *VM) loop() (value.Value, error) {
	for {
		if len(vm.frames) == 0 {
			return value.UndefinedValue, nil
		}
		frame := &vm.frames[len(vm.frames)-1]
		if frame.IP >= len(vm.Program.Code) {
			return value.UndefinedValue, errors.Abortf(vm.pos(frame), "instruction pointer ran off the end of the program")
		}
		ins := vm.Program.Code[frame.IP]
		frame.IP++

		err := vm.step(frame, ins)
		if err != nil {
			if th, ok := err.(*thrown); ok {
				if uncaught := vm.unwind(th.V); uncaught != nil {
					return value.UndefinedValue, uncaught
				}
				continue
			}
			return value.UndefinedValue, err
		}
		if done, retVal := vm.halted(); done {
			return retVal, nil
		}
	}
}

// halted reports whether the top-level frame has returned (frames empty)
// and, if so, the value left on the stack for the caller of Run.
func (vm *VM) halted() (bool, value.Value) {
	if len(vm.frames) > 0 {
		return false, value.UndefinedValue
	}
	if len(vm.stack) == 0 {
		return true, value.UndefinedValue
	}
	return true, vm.stack[len(vm.stack)-1]
}

func (vm *VM) pos(frame *Frame) errors.Position {
	ip := frame.IP - 1
	if ip < 0 || ip >= len(vm.Program.Code) {
		return errors.Position{}
	}
	ins := vm.Program.Code[ip]
	pos := errors.Position{StartPos: ins.Span.Start, EndPos: ins.Span.End}
	if sf := vm.sourceFile(ins.SourceIx); sf != nil {
		pos.Source = sf
		pos.Line, pos.Column = sf.PositionAt(ins.Span.Start)
	}
	return pos
}

// sourceFile returns the cached *source.SourceFile for Program.Sources[ix],
// building it on first use. A negative or out-of-range ix (no source
// attached to this instruction) reports nil.
func (vm *VM) sourceFile(ix int32) *source.SourceFile {
	if ix < 0 || int(ix) >= len(vm.Program.Sources) {
		return nil
	}
	if vm.sources == nil {
		vm.sources = make([]*source.SourceFile, len(vm.Program.Sources))
	}
	if int(ix) >= len(vm.sources) {
		grown := make([]*source.SourceFile, len(vm.Program.Sources))
		copy(grown, vm.sources)
		vm.sources = grown
	}
	if vm.sources[ix] == nil {
		name := fmt.Sprintf("<source %d>", ix)
		vm.sources[ix] = source.NewSourceFile(name, "", vm.Program.Sources[ix])
	}
	return vm.sources[ix]
}

// push/pop are the operand-stack primitives; push enforces spec.md §5's
// "operand stack is bounded; overflow is fatal".
func (vm *VM) push(v value.Value) error {
	if vm.Config.StackSize > 0 && len(vm.stack) >= vm.Config.StackSize {
		return errors.Abortf(errors.Position{}, "operand stack overflow (limit %d)", vm.Config.StackSize)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() value.Value {
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) popN(n int) []value.Value {
	if n == 0 {
		return nil
	}
	out := make([]value.Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out
}

func (vm *VM) describeThrown(v value.Value) string {
	if !v.IsHeapRef() {
		return v.ToString()
	}
	if msg := values.Get(v, vm.Table.Intern("message")); msg.IsHeapRef() || msg.IsNumber() || msg.IsBoolean() {
		return msg.ToString()
	}
	return v.ToString()
}

// CallValue re-enters the VM to invoke callee synchronously, used by
// Function.prototype.call (spec.md §4.10: native callees "may be invoked
// through Function.prototype.call", and §5: natives "may not re-enter
// the VM except through the defined call path"). Native callees run
// inline; lambda callees get a real frame and the dispatch loop runs
// until that frame (and only that frame) has returned.
func (vm *VM) CallValue(callee, this value.Value, args []value.Value) (value.Value, error) {
	if !callee.IsHeapRef() || !callee.AsHeapObject().IsCallable() {
		return value.UndefinedValue, errors.BadOperationf(errors.Position{}, "value is not callable")
	}
	if native, ok := callee.AsHeapObject().(*values.NativeObject); ok {
		return native.Fn(vm, this, args)
	}
	lambda, ok := callee.AsHeapObject().(*values.LambdaObject)
	if !ok {
		return value.UndefinedValue, errors.BadOperationf(errors.Position{}, "value is not callable")
	}
	if err := vm.push(this); err != nil {
		return value.UndefinedValue, err
	}
	if err := vm.push(callee); err != nil {
		return value.UndefinedValue, err
	}
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return value.UndefinedValue, err
		}
	}
	targetDepth := len(vm.frames)
	var caller *Frame
	if len(vm.frames) > 0 {
		caller = &vm.frames[len(vm.frames)-1]
	} else {
		caller = &Frame{}
	}
	if err := vm.enterLambda(caller, lambda, vm.readCallSite(len(args)), this, value.UndefinedValue, false, false); err != nil {
		return value.UndefinedValue, err
	}
	return vm.runUntil(targetDepth)
}

// runUntil executes instructions until the frame stack depth returns to
// targetDepth (i.e. the frame CallValue just pushed has returned) or an
// error escapes.
func (vm *VM) runUntil(targetDepth int) (value.Value, error) {
	for len(vm.frames) > targetDepth {
		frame := &vm.frames[len(vm.frames)-1]
		if frame.IP >= len(vm.Program.Code) {
			return value.UndefinedValue, errors.Abortf(vm.pos(frame), "instruction pointer ran off the end of the program")
		}
		ins := vm.Program.Code[frame.IP]
		frame.IP++
		if err := vm.step(frame, ins); err != nil {
			if th, ok := err.(*thrown); ok {
				if uncaught := vm.unwind(th.V); uncaught != nil {
					return value.UndefinedValue, uncaught
				}
				continue
			}
			return value.UndefinedValue, err
		}
	}
	if len(vm.stack) == 0 {
		return value.UndefinedValue, nil
	}
	return vm.pop(), nil
}

func (vm *VM) String() string {
	return fmt.Sprintf("vm{frames=%d stack=%d}", len(vm.frames), len(vm.stack))
}
