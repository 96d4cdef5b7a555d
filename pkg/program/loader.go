// Package program implements the loader of spec.md §6.1/§2 "Program
// loader / preloads": it bootstraps the well-known prototype chain, lets
// the native bridge attach its built-ins, then walks the compiled
// program's preload list installing each lexeme into its declared entity
// space and resolving it back into the constant pool so the bytecode
// that references it by index finds the right handle.
package program

import (
	"derkjs/pkg/bytecode"
	"derkjs/pkg/value"
	"derkjs/pkg/values"
	"derkjs/pkg/vm"
)

// NativeInstaller is satisfied by pkg/natives.Install itself (a plain
// func(v *vm.VM)); kept as a named function type here so this package
// doesn't import natives directly (natives already imports vm, and vm
// must not import program, so program depends on natives through this
// narrow seam instead of the reverse).
type NativeInstaller func(v *vm.VM)

// Loader bootstraps a VM's prototype chain and preloads before Run.
type Loader struct {
	Natives NativeInstaller
}

// New constructs a Loader; natives may be nil for tests that only need
// the bare prototype chain with no built-ins installed.
func New(natives NativeInstaller) *Loader {
	return &Loader{Natives: natives}
}

// LoadImage turns a decoded bytecode.Image into a runnable *bytecode.Program
// bound to v: it builds the instruction/function/preload skeleton,
// bootstraps prototypes and natives (string constants need v.Protos.String
// to exist before they can become StringObjects), fills the constant pool
// in the exact order the compiler emitted it so OpPutConst operand indices
// still line up, then resolves preloads, which may append further
// constants after the compiler's own.
func (l *Loader) LoadImage(v *vm.VM, img *bytecode.Image) (*bytecode.Program, error) {
	prog, specs, err := img.Skeleton()
	if err != nil {
		return nil, err
	}
	if err := l.bootstrap(v); err != nil {
		return nil, err
	}
	for _, c := range specs {
		resolved, err := l.resolveConst(v, c)
		if err != nil {
			return nil, err
		}
		prog.AddConstant(resolved)
	}
	if err := l.resolvePreloads(v, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func (l *Loader) resolveConst(v *vm.VM, c bytecode.ConstSpec) (value.Value, error) {
	switch c.Kind {
	case "undefined":
		return value.UndefinedValue, nil
	case "null":
		return value.NullValue, nil
	case "boolean":
		return value.Bool(c.Bool), nil
	case "number":
		return value.Num(c.Number), nil
	case "string":
		str := values.NewDynamicString(c.Str, v.Protos.String)
		if _, err := v.Heap.Allocate(str); err != nil {
			return value.Value{}, err
		}
		return value.Ref(str), nil
	default:
		return value.Value{}, &badConstKindError{c.Kind}
	}
}

type badConstKindError struct{ kind string }

func (e *badConstKindError) Error() string { return "program: unknown constant kind " + e.kind }

// Load bootstraps v's well-known prototypes (spec.md §3.4's root has a
// null prototype), installs natives, and resolves every preload item
// against a *bytecode.Program whose constant pool is already populated
// (a hand-built test fixture, typically). Call once, before vm.Run.
func (l *Loader) Load(v *vm.VM, prog *bytecode.Program) error {
	if err := l.bootstrap(v); err != nil {
		return err
	}
	return l.resolvePreloads(v, prog)
}

// bootstrap allocates the well-known prototype chain and installs natives;
// shared by Load and LoadImage, which differ only in when the constant
// pool gets filled relative to this step.
func (l *Loader) bootstrap(v *vm.VM) error {
	objectProto := values.NewPlainObject(value.NullValue)
	if _, err := v.Heap.Allocate(objectProto); err != nil {
		return err
	}
	functionProto := values.NewPlainObject(value.Ref(objectProto))
	arrayProto := values.NewPlainObject(value.Ref(objectProto))
	stringProto := values.NewPlainObject(value.Ref(objectProto))
	errorProto := values.NewPlainObject(value.Ref(objectProto))
	captureProto := values.NewPlainObject(value.NullValue)
	for _, obj := range []*values.PlainObject{functionProto, arrayProto, stringProto, errorProto, captureProto} {
		if _, err := v.Heap.Allocate(obj); err != nil {
			return err
		}
	}

	v.SetPrototypes(vm.Prototypes{
		Object:   value.Ref(objectProto),
		Function: value.Ref(functionProto),
		Array:    value.Ref(arrayProto),
		String:   value.Ref(stringProto),
		Error:    value.Ref(errorProto),
		Capture:  value.Ref(captureProto),
	})

	if l.Natives != nil {
		l.Natives(v)
	}
	return nil
}

// resolvePreloads implements spec.md §6.1's loader contract: "seeds the
// constant pool and heap, establishing identity for well-known objects
// (global this, built-in prototypes, interned keys)". key_str preloads
// are interned for identity and need no heap object of their own;
// recognized heap_obj/constant lexemes are wired to the prototypes/this
// Load just built, and unrecognized ones are left unresolved.
func (l *Loader) resolvePreloads(v *vm.VM, prog *bytecode.Program) error {
	globalThis := value.UndefinedValue // strict-mode top-level `this` is undefined (ES5 §10.4.3)

	for i := range prog.Preloads {
		p := &prog.Preloads[i]
		switch p.Location {
		case bytecode.LocKeyStr:
			v.Table.Intern(p.Lexeme)
		case bytecode.LocHeapObj, bytecode.LocConstant:
			resolved, ok := wellKnown(v, p.Lexeme, globalThis)
			if !ok {
				continue // lexeme is produced by the external compiler's own constants, not this loader
			}
			p.Index = prog.AddConstant(resolved)
		case bytecode.LocImmediate, bytecode.LocCodeChunk, bytecode.LocTemp:
			// No loader-side work: immediates are self-describing, code
			// chunks are already addressed by function id, and temps are
			// reserved scratch slots the compiler owns.
		}
	}
	return nil
}

func wellKnown(v *vm.VM, lexeme string, globalThis value.Value) (value.Value, bool) {
	switch lexeme {
	case "globalThis", "this":
		return globalThis, true
	case "Object.prototype":
		return v.Protos.Object, true
	case "Function.prototype":
		return v.Protos.Function, true
	case "Array.prototype":
		return v.Protos.Array, true
	case "String.prototype":
		return v.Protos.String, true
	case "Error.prototype":
		return v.Protos.Error, true
	default:
		if g, ok := v.Global(lexeme); ok {
			return g, true
		}
		return value.Value{}, false
	}
}
