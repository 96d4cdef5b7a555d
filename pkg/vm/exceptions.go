package vm

import (
	"derkjs/pkg/bytecode"
	"derkjs/pkg/errors"
	"derkjs/pkg/value"
)

// thrown wraps a script-visible value in flight during unwinding (spec.md
// §4.7's "pending error slot"); it is never returned to a caller outside
// this package — loop() always resolves it into either a resumed frame
// or an *errors.UncaughtScriptError.
type thrown struct{ V value.Value }

func (t *thrown) Error() string { return "thrown: " + t.V.ToString() }

// Throw satisfies values.CallContext for natives: it records the value
// and returns the sentinel error the dispatch loop recognizes.
func (vm *VM) Throw(v value.Value) error {
	vm.pendingErr, vm.hasPending = v, true
	return &thrown{V: v}
}

// functionEnd returns the exclusive upper bound of funcID's instruction
// range: the smallest EntryOffset strictly greater than its own, or the
// end of the program if it is the last function. Used to bound the
// linear catch scan to the current function (spec.md §4.6: "the frame is
// searched linearly for the next catch instruction").
func (vm *VM) functionEnd(funcID int) int {
	if funcID < 0 || funcID >= len(vm.Program.Functions) {
		return len(vm.Program.Code)
	}
	start := vm.Program.Functions[funcID].EntryOffset
	end := len(vm.Program.Code)
	for i, fn := range vm.Program.Functions {
		if i == funcID {
			continue
		}
		if fn.EntryOffset > start && fn.EntryOffset < end {
			end = fn.EntryOffset
		}
	}
	return end
}

// unwind implements spec.md §4.6's throwing state: starting at the
// current frame, scan forward for the next `catch` instruction within
// the same function; if found, truncate the operand stack to the end
// of the frame's parameter/local slots, push the thrown value (for the compiler's
// following put_local_ref/emplace to bind), resume at the instruction
// after the marker, and clear the pending-error slot. Otherwise pop the
// frame (it never catches) and retry in the caller. If no frame catches,
// return an UncaughtScriptError (spec.md §4.7).
func (vm *VM) unwind(v value.Value) *errors.UncaughtScriptError {
	for len(vm.frames) > 0 {
		frame := &vm.frames[len(vm.frames)-1]
		end := vm.functionEnd(frame.FuncID)
		for ip := frame.IP; ip < end; ip++ {
			if vm.Program.Code[ip].Op == bytecode.OpCatch {
				top := frame.Base
				if frame.FuncID >= 0 && frame.FuncID < len(vm.Program.Functions) {
					fn := &vm.Program.Functions[frame.FuncID]
					top += max(fn.ParamCount, fn.LocalCount)
				}
				vm.stack = vm.stack[:min(top, len(vm.stack))]
				vm.stack = append(vm.stack, v)
				frame.IP = ip + 1
				vm.hasPending = false
				return nil
			}
		}
		vm.stack = vm.stack[:frame.CallBase]
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	return &errors.UncaughtScriptError{Msg: vm.describeThrown(v)}
}
