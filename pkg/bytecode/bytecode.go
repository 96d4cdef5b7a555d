// Package bytecode defines the instruction encoding and program image
// described in spec.md §4.4/§6.1: fixed-size instruction records tagged
// by entity space, a constant pool, and a dense function table. This is
// the sole interchange format between the external compiler and the
// runtime core — everything downstream (pkg/vm) only ever reads a
// *bytecode.Program, it never builds one from source.
package bytecode

import (
	"fmt"

	"derkjs/pkg/value"
)

// OpCode is the fixed-size instruction tag of spec.md §4.4.
type OpCode uint8

const (
	// Stack/locals
	OpPutConst    OpCode = iota // operand: const index -> pushes Constants[idx]
	OpPutImm                    // operand: immediate undefined/null/true/false
	OpPutLocalRef               // operand: local slot index -> pushes a reference to that slot
	OpCopy                      // duplicates top of stack
	OpDrop                      // pops and discards top of stack

	// Property ops
	OpGetProp // pops (key, obj) pushes obj[key]
	OpSetProp // pops (value, key, obj) pushes value, writes obj[key]=value
	OpEmplace // pops (value, ref) binds value under the reference pushed by put_local_ref/ref_upvalue

	// Arithmetic / comparison / logical (binary: pop b,a push a OP b; unary: pop a push OP a)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpUShr
	OpEq
	OpNeq
	OpStrictEq
	OpStrictNeq
	OpLt
	OpGt
	OpLe
	OpGe
	OpNeg    // unary -
	OpNot    // unary !
	OpBitNot // unary ~
	OpNumify // ToNumber (unary +), also used by prefix ++/-- after add/sub 1
	OpStrcat // explicit string concatenation (+ when either side is object-string)
	OpTypeof // unary typeof
	OpVoid   // evaluate and discard, yield undefined

	// Control flow. Both conditional jumps peek the top-of-stack condition:
	// the branch that "takes the other side" of a short-circuit expression
	// pops it (it's about to be replaced by the other operand's value), the
	// branch that short-circuits leaves it in place as the expression's
	// result (spec.md §4.4's "pops its condition only on the branch that
	// yields 'take the other side'").
	OpJump     // unconditional, operand: absolute target
	OpJumpIf   // truthy: jump to A, value stays; falsy: pop, fall through
	OpJumpElse // falsy: jump to A, value stays; truthy: pop, fall through

	// Calls
	OpCall       // operand: argc. Stack: [thisArg, callee, arg0..argN-1] -> [result]
	OpTailCall   // same stack shape as OpCall but replaces the current frame
	OpNew        // operand: argc. Stack: [thisArg, callee, arg0..argN-1] -> [result]; thisArg is ignored and replaced by a fresh object
	OpRet        // pop return value, pop frame
	OpRefUpvalue // operands: depth, slot -> pushes a reference into an enclosing capture
	OpCatch      // marker instruction scanned for during unwinding; a no-op when executed normally
	OpThrow      // pop value, begin unwinding
	OpHalt       // request immediate vm_abort termination

	// Closures
	OpClosure // operand: function id -> build a Lambda + capture, push it

	numOpCodes
)

var mnemonics = [numOpCodes]string{
	OpPutConst: "put_const", OpPutImm: "put_imm", OpPutLocalRef: "put_local_ref",
	OpCopy: "copy", OpDrop: "drop",
	OpGetProp: "get_prop", OpSetProp: "set_prop", OpEmplace: "emplace",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpBitAnd: "bit_and", OpBitOr: "bit_or", OpBitXor: "bit_xor",
	OpShl: "shl", OpShr: "shr", OpUShr: "ushr",
	OpEq: "eq", OpNeq: "neq", OpStrictEq: "streq", OpStrictNeq: "strneq",
	OpLt: "lt", OpGt: "gt", OpLe: "le", OpGe: "ge",
	OpNeg: "neg", OpNot: "not", OpBitNot: "bitnot", OpNumify: "numify",
	OpStrcat: "strcat", OpTypeof: "typeof", OpVoid: "void",
	OpJump: "jump", OpJumpIf: "jump_if", OpJumpElse: "jump_else",
	OpCall: "call", OpTailCall: "tail_call", OpNew: "new", OpRet: "ret",
	OpRefUpvalue: "ref_upvalue", OpCatch: "catch", OpThrow: "throw", OpHalt: "halt",
	OpClosure: "closure",
}

func (op OpCode) String() string {
	if int(op) < len(mnemonics) && mnemonics[op] != "" {
		return mnemonics[op]
	}
	return fmt.Sprintf("op(%d)", op)
}

// Instruction is a fixed-size record: an opcode plus up to three operands,
// each drawn from the entity spaces of spec.md §4.4 (the concrete space a
// given operand belongs to is implied by the opcode, not stored per-
// instruction, since it is fixed at compile time for each opcode).
type Instruction struct {
	Op       OpCode
	A, B, C  int32 // operand meaning depends on Op; unused operands are 0
	SourceIx int32 // index into Program.Sources, or -1 if none
	Span     Span  // byte range within that source, for error reporting
}

// Span is a half-open byte range into a source string (spec.md §6.2).
type Span struct {
	Start, End int
}

// FunctionProto is one entry of the dense function table (spec.md §6.1):
// (entry_offset, param_count, local_count, name_const_id).
type FunctionProto struct {
	EntryOffset int
	ParamCount  int
	LocalCount  int
	NameConstID int
	Variadic    bool
	// UpvalueRefs describes, for each upvalue slot a closure over this
	// function needs, where to capture it from: Depth 0 means "the
	// immediately enclosing function's locals/capture", matching the
	// ref_upvalue addressing scheme (spec.md §4.5 "Closures").
	UpvalueRefs []UpvalueRef
}

// UpvalueRef names one captured variable: Depth parents up, then Slot.
type UpvalueRef struct {
	Depth int
	Slot  int
}

// Program is the compiled program image consumed by the runtime core
// (spec.md §6.1). It is produced entirely by the external compiler (or by
// the snippet-recompile callback, spec.md §6.3, which appends to it) and
// is otherwise immutable: existing offsets never shift (spec.md §3.5).
type Program struct {
	Code      []Instruction
	Constants []value.Value
	Functions []FunctionProto
	Preloads  []Preload
	Sources   []string // spec.md §6.2 ordered source-map list
	// EntryFuncID names the top-level thunk pkg/vm.Run starts from; set
	// by whatever builds the image (the external compiler, or a test
	// harness assembling one directly).
	EntryFuncID int
}

// PreloadLocation is the entity space a preload item installs into
// (spec.md §6.1).
type PreloadLocation uint8

const (
	LocConstant PreloadLocation = iota
	LocHeapObj
	LocKeyStr
	LocImmediate
	LocCodeChunk
	LocTemp
)

func (l PreloadLocation) String() string {
	switch l {
	case LocConstant:
		return "constant"
	case LocHeapObj:
		return "heap_obj"
	case LocKeyStr:
		return "key_str"
	case LocImmediate:
		return "immediate"
	case LocCodeChunk:
		return "code_chunk"
	case LocTemp:
		return "temp"
	default:
		return "?"
	}
}

// Preload is one (lexeme, entity, location) triple from spec.md §6.1.
type Preload struct {
	Lexeme   string
	Location PreloadLocation
	// Index is the constant-pool / function-table index this preload
	// resolves to once installed; filled in by the loader (pkg/program).
	Index int
}

// NewProgram returns an empty, appendable program image; the
// snippet-recompile path (spec.md §6.3) and the loader both build on it.
func NewProgram() *Program {
	return &Program{}
}

// AddConstant appends v to the constant pool and returns its stable index.
func (p *Program) AddConstant(v value.Value) int {
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// AddFunction appends a function prototype and returns its function id.
func (p *Program) AddFunction(f FunctionProto) int {
	p.Functions = append(p.Functions, f)
	return len(p.Functions) - 1
}

// AddSource appends a source string and returns its stable index.
func (p *Program) AddSource(src string) int {
	p.Sources = append(p.Sources, src)
	return len(p.Sources) - 1
}

// Emit appends an instruction and returns its absolute offset (entry
// offsets in FunctionProto refer to offsets returned by this method).
func (p *Program) Emit(i Instruction) int {
	p.Code = append(p.Code, i)
	return len(p.Code) - 1
}

// Disassemble renders the program's instruction stream for debugging,
// matching the teacher's own DisassembleChunk convention.
func (p *Program) Disassemble(name string) string {
	out := fmt.Sprintf("== %s ==\n", name)
	for i, ins := range p.Code {
		out += fmt.Sprintf("%04d %-12s %6d %6d %6d\n", i, ins.Op, ins.A, ins.B, ins.C)
	}
	return out
}
