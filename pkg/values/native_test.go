package values

import (
	"testing"

	"derkjs/pkg/value"
)

func TestNativeCallDelegatesToFn(t *testing.T) {
	called := false
	n := NewNative(value.UndefinedValue, "double", func(ctx CallContext, this value.Value, args []value.Value) (value.Value, error) {
		called = true
		if len(args) != 1 {
			t.Fatalf("args len = %d, want 1", len(args))
		}
		return value.Num(args[0].ToNumber() * 2), nil
	})

	result, err := n.Call(nil, value.UndefinedValue, []value.Value{value.Num(21)}, value.UndefinedValue)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !called {
		t.Fatal("Call must invoke the wrapped NativeFunc")
	}
	if result.ToNumber() != 42 {
		t.Errorf("result = %v, want 42", result.ToNumber())
	}
}

func TestNativeIsConstructor(t *testing.T) {
	n := NewNative(value.UndefinedValue, "Thing", func(CallContext, value.Value, []value.Value) (value.Value, error) {
		return value.UndefinedValue, nil
	})
	if n.IsConstructor() {
		t.Error("a fresh NativeObject must not be a constructor by default")
	}
	n.SetConstructor(true)
	if !n.IsConstructor() {
		t.Error("SetConstructor(true) must make IsConstructor report true")
	}
}

func TestNativeAsString(t *testing.T) {
	n := NewNative(value.UndefinedValue, "foo", nil)
	if got := n.AsString(); got != "function foo() { [native code] }" {
		t.Errorf("AsString() = %q", got)
	}
}

func TestNativeIsCallable(t *testing.T) {
	n := NewNative(value.UndefinedValue, "foo", nil)
	if !n.IsCallable() {
		t.Error("NativeObject must report IsCallable() true")
	}
}
