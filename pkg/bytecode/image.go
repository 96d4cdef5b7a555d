package bytecode

import "encoding/json"

// Image is the on-disk, JSON-encoded form of a program (spec.md §6.1,
// SPEC_FULL.md §6.4): everything in Program except the constant pool,
// which ConstSpec encodes losslessly since a raw value.Value cannot
// represent a not-yet-allocated string (strings are heap objects in this
// runtime, so string constants need a live VM/heap to become real
// Values — see pkg/program.Loader.LoadImage).
type Image struct {
	Code        []InstructionSpec `json:"code"`
	Constants   []ConstSpec       `json:"constants"`
	Functions   []FunctionSpec    `json:"functions"`
	Preloads    []PreloadSpec     `json:"preloads"`
	Sources     []string          `json:"sources"`
	EntryFuncID int               `json:"entry_func_id"`
}

// InstructionSpec mirrors Instruction in a JSON-friendly shape; mnemonics
// are accepted for Op so hand-written test fixtures don't need to know
// numeric opcode values.
type InstructionSpec struct {
	Op       string `json:"op"`
	A        int32  `json:"a,omitempty"`
	B        int32  `json:"b,omitempty"`
	C        int32  `json:"c,omitempty"`
	SourceIx int32  `json:"source,omitempty"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
}

// ConstSpec is one constant-pool entry in a portable, kind-tagged form.
type ConstSpec struct {
	Kind   string  `json:"kind"` // "undefined" | "null" | "boolean" | "number" | "string"
	Bool   bool    `json:"bool,omitempty"`
	Number float64 `json:"number,omitempty"`
	Str    string  `json:"string,omitempty"`
}

// FunctionSpec mirrors FunctionProto.
type FunctionSpec struct {
	EntryOffset int                `json:"entry_offset"`
	ParamCount  int                `json:"param_count"`
	LocalCount  int                `json:"local_count"`
	NameConstID int                `json:"name_const_id"`
	Variadic    bool               `json:"variadic,omitempty"`
	UpvalueRefs []UpvalueRefSpec   `json:"upvalues,omitempty"`
}

// UpvalueRefSpec mirrors UpvalueRef.
type UpvalueRefSpec struct {
	Depth int `json:"depth"`
	Slot  int `json:"slot"`
}

// PreloadSpec mirrors Preload; Location is the string form of
// PreloadLocation so images stay readable/hand-editable.
type PreloadSpec struct {
	Lexeme   string `json:"lexeme"`
	Location string `json:"location"`
}

var mnemonicToOp = func() map[string]OpCode {
	m := make(map[string]OpCode, numOpCodes)
	for i, name := range mnemonics {
		if name != "" {
			m[name] = OpCode(i)
		}
	}
	return m
}()

var locationByName = map[string]PreloadLocation{
	"constant":   LocConstant,
	"heap_obj":   LocHeapObj,
	"key_str":    LocKeyStr,
	"immediate":  LocImmediate,
	"code_chunk": LocCodeChunk,
	"temp":       LocTemp,
}

// DecodeImage parses a JSON program image.
func DecodeImage(data []byte) (*Image, error) {
	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// Skeleton builds the opcode/function/source/preload-shaped parts of a
// Program directly from the image (everything except the constant pool,
// which needs a live heap to resolve string constants into).
func (img *Image) Skeleton() (*Program, []ConstSpec, error) {
	p := &Program{
		Sources:     append([]string(nil), img.Sources...),
		EntryFuncID: img.EntryFuncID,
	}
	for _, ins := range img.Code {
		op, ok := mnemonicToOp[ins.Op]
		if !ok {
			return nil, nil, &unknownOpError{ins.Op}
		}
		p.Code = append(p.Code, Instruction{
			Op: op, A: ins.A, B: ins.B, C: ins.C,
			SourceIx: ins.SourceIx,
			Span:     Span{Start: ins.Start, End: ins.End},
		})
	}
	for _, fn := range img.Functions {
		refs := make([]UpvalueRef, len(fn.UpvalueRefs))
		for i, r := range fn.UpvalueRefs {
			refs[i] = UpvalueRef{Depth: r.Depth, Slot: r.Slot}
		}
		p.Functions = append(p.Functions, FunctionProto{
			EntryOffset: fn.EntryOffset, ParamCount: fn.ParamCount,
			LocalCount: fn.LocalCount, NameConstID: fn.NameConstID,
			Variadic: fn.Variadic, UpvalueRefs: refs,
		})
	}
	for _, pl := range img.Preloads {
		loc, ok := locationByName[pl.Location]
		if !ok {
			return nil, nil, &unknownLocationError{pl.Location}
		}
		p.Preloads = append(p.Preloads, Preload{Lexeme: pl.Lexeme, Location: loc})
	}
	return p, img.Constants, nil
}

type unknownOpError struct{ name string }

func (e *unknownOpError) Error() string { return "bytecode: unknown opcode mnemonic " + e.name }

type unknownLocationError struct{ name string }

func (e *unknownLocationError) Error() string {
	return "bytecode: unknown preload location " + e.name
}
