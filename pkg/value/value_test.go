package value

import (
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", UndefinedValue, false},
		{"null", NullValue, false},
		{"false", FalseValue, false},
		{"true", TrueValue, true},
		{"zero", Num(0), false},
		{"negZero", Num(math.Copysign(0, -1)), false},
		{"nan", Num(math.NaN()), false},
		{"one", Num(1), true},
		{"negOne", Num(-1), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"undefined", UndefinedValue, "undefined"},
		{"null", NullValue, "object"},
		{"boolean", TrueValue, "boolean"},
		{"number", Num(1), "number"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.TypeOf(); got != c.want {
				t.Errorf("TypeOf() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	if got := UndefinedValue.ToNumber(); !math.IsNaN(got) {
		t.Errorf("undefined.ToNumber() = %v, want NaN", got)
	}
	if got := NullValue.ToNumber(); got != 0 {
		t.Errorf("null.ToNumber() = %v, want 0", got)
	}
	if got := TrueValue.ToNumber(); got != 1 {
		t.Errorf("true.ToNumber() = %v, want 1", got)
	}
	if got := FalseValue.ToNumber(); got != 0 {
		t.Errorf("false.ToNumber() = %v, want 0", got)
	}
	if got := Num(42).ToNumber(); got != 42 {
		t.Errorf("Num(42).ToNumber() = %v, want 42", got)
	}
}

func TestNumberToString(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{1e21, "1e+21"},
	}
	for _, c := range cases {
		if got := NumberToString(c.in); got != c.want {
			t.Errorf("NumberToString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestToStringPrimitives(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"undefined", UndefinedValue, "undefined"},
		{"null", NullValue, "null"},
		{"true", TrueValue, "true"},
		{"false", FalseValue, "false"},
		{"number", Num(3.5), "3.5"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.ToString(); got != c.want {
				t.Errorf("ToString() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestSame(t *testing.T) {
	if !Num(1).Same(Num(1)) {
		t.Error("Num(1).Same(Num(1)) = false, want true")
	}
	if Num(1).Same(Num(2)) {
		t.Error("Num(1).Same(Num(2)) = true, want false")
	}
	if Num(1).Same(TrueValue) {
		t.Error("different kinds must never be Same")
	}
	if !UndefinedValue.Same(UndefinedValue) {
		t.Error("UndefinedValue.Same(UndefinedValue) = false, want true")
	}
}

func TestToInt32ToUint32(t *testing.T) {
	if got := Num(4294967296 + 5).ToInt32(); got != 5 {
		t.Errorf("ToInt32 wraparound: got %d, want 5", got)
	}
	if got := Num(-1).ToUint32(); got != 4294967295 {
		t.Errorf("ToUint32(-1) = %d, want 4294967295", got)
	}
	if got := Num(math.NaN()).ToInt32(); got != 0 {
		t.Errorf("ToInt32(NaN) = %d, want 0", got)
	}
}

// stubObject is a minimal HeapObject for exercising Value's HeapRef paths
// without depending on pkg/values (which itself depends on this package).
type stubObject struct {
	name     string
	callable bool
}

func (s *stubObject) ClassName() string { return s.name }
func (s *stubObject) IsCallable() bool  { return s.callable }

func TestHeapRef(t *testing.T) {
	obj := &stubObject{name: "Stub"}
	v := Ref(obj)
	if !v.IsHeapRef() {
		t.Fatal("Ref value must be IsHeapRef")
	}
	if v.AsHeapObject() != obj {
		t.Error("AsHeapObject did not round-trip the same pointer")
	}
	if v.TypeOf() != "object" {
		t.Errorf("TypeOf() = %q, want object", v.TypeOf())
	}

	callable := Ref(&stubObject{name: "Fn", callable: true})
	if callable.TypeOf() != "function" {
		t.Errorf("TypeOf() of callable heap ref = %q, want function", callable.TypeOf())
	}

	other := Ref(obj)
	if !v.Same(other) {
		t.Error("two Refs to the same object must be Same")
	}
	if v.Same(Ref(&stubObject{name: "Stub"})) {
		t.Error("Refs to distinct objects must not be Same")
	}
}
