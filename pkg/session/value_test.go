package session

import (
	"math"
	"testing"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() || v.Kind() != KindNull {
		t.Fatalf("zero Value kind = %v, want null", v.Kind())
	}
	if !v.Equal(Null()) {
		t.Fatal("zero Value should equal Null()")
	}
}

func TestValue_Accessors(t *testing.T) {
	if b, ok := Bool(true).Bool(); !ok || !b {
		t.Errorf("Bool accessor = %v, %v", b, ok)
	}
	if i, ok := Int(-7).Int(); !ok || i != -7 {
		t.Errorf("Int accessor = %v, %v", i, ok)
	}
	if f, ok := Float(1.5).Float(); !ok || f != 1.5 {
		t.Errorf("Float accessor = %v, %v", f, ok)
	}
	if s, ok := String("x").Str(); !ok || s != "x" {
		t.Errorf("Str accessor = %v, %v", s, ok)
	}
	if _, ok := String("x").Int(); ok {
		t.Error("Int() on string should report false")
	}
}

func TestValue_BytesAreCopied(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Bytes(src)
	src[0] = 9

	got, ok := v.BytesValue()
	if !ok || got[0] != 1 {
		t.Fatalf("Bytes() did not copy input: %v", got)
	}
	got[1] = 9
	again, _ := v.BytesValue()
	if again[1] != 2 {
		t.Fatal("BytesValue() did not return a copy")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int same", Int(3), Int(3), true},
		{"int vs float", Int(3), Float(3), false},
		{"nan", Float(math.NaN()), Float(math.NaN()), true},
		{"signed zero", Float(0), Float(math.Copysign(0, -1)), false},
		{"nil vs empty bytes", Bytes(nil), Bytes([]byte{}), true},
		{"list order", List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{"nested map", Map(map[string]Value{"a": List(String("x"))}), Map(map[string]Value{"a": List(String("x"))}), true},
		{"map missing key", Map(map[string]Value{"a": Null()}), Map(map[string]Value{"b": Null()}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count": 3,
		"ratio": float32(0.5),
		"name":  "alice",
		"tags":  []any{"a", uint8(2), nil},
		"raw":   []byte("hi"),
		"ok":    true,
	})
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}

	want := Map(map[string]Value{
		"count": Int(3),
		"ratio": Float(0.5),
		"name":  String("alice"),
		"tags":  List(String("a"), Int(2), Null()),
		"raw":   Bytes([]byte("hi")),
		"ok":    Bool(true),
	})
	if !v.Equal(want) {
		t.Fatalf("FromAny() = %#v, want %#v", v.Any(), want.Any())
	}
}

func TestFromAny_Rejects(t *testing.T) {
	if _, err := FromAny(struct{}{}); err == nil {
		t.Error("FromAny(struct{}) should fail")
	}
	if _, err := FromAny(uint64(math.MaxUint64)); err == nil {
		t.Error("FromAny(MaxUint64) should fail")
	}
	if _, err := FromAny([]any{make(chan int)}); err == nil {
		t.Error("FromAny with nested unsupported type should fail")
	}
}

func TestValue_AnyRoundTrip(t *testing.T) {
	orig := List(Int(1), Map(map[string]Value{"k": Bytes([]byte{0xff})}), Null())
	back, err := FromAny(orig.Any())
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	if !back.Equal(orig) {
		t.Fatal("Any/FromAny round trip changed the value")
	}
}

func TestValue_Depth(t *testing.T) {
	if d := Int(1).Depth(); d != 0 {
		t.Errorf("scalar depth = %d, want 0", d)
	}
	v := List(Map(map[string]Value{"a": List()}))
	if d := v.Depth(); d != 3 {
		t.Errorf("depth = %d, want 3", d)
	}
}
