package object

import "testing"

func TestStringHashKey(t *testing.T) {
	hello1 := &String{Value: "Hello World"}
	hello2 := &String{Value: "Hello World"}
	diff1 := &String{Value: "My name is johnny"}
	diff2 := &String{Value: "My name is johnny"}

	if hello1.HashKey() != hello2.HashKey() {
		t.Error("strings with same content have different hash keys")
	}
	if diff1.HashKey() != diff2.HashKey() {
		t.Error("strings with same content have different hash keys")
	}
	if hello1.HashKey() == diff1.HashKey() {
		t.Error("strings with different content have same hash keys")
	}
}

func TestIntegerAndBooleanHashKeysDontCollide(t *testing.T) {
	one := &Integer{Value: 1}
	boolTrue := &Boolean{Value: true}

	if one.HashKey() == boolTrue.HashKey() {
		t.Error("Integer(1) and Boolean(true) must not collide (Type disambiguates)")
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		obj      Object
		expected bool
	}{
		{&Boolean{Value: false}, false},
		{&Boolean{Value: true}, true},
		{NilValue, false},
		{&Integer{Value: 0}, false},
		{&Integer{Value: 1}, true},
		{&Integer{Value: -1}, true},
		{&String{Value: ""}, true},
		{&Array{}, true},
	}

	for _, tt := range tests {
		if got := IsTruthy(tt.obj); got != tt.expected {
			t.Errorf("IsTruthy(%s) = %v, want %v", tt.obj.Inspect(), got, tt.expected)
		}
	}
}

func TestTypeStr(t *testing.T) {
	tests := []struct {
		obj      Object
		expected string
	}{
		{&Integer{Value: 1}, "int"},
		{&Boolean{Value: true}, "bool"},
		{&String{Value: "x"}, "string"},
		{&Array{}, "array"},
		{&Hash{Pairs: map[HashKey]HashPair{}}, "hash"},
		{NilValue, "nil"},
	}

	for _, tt := range tests {
		if got := TypeStr(tt.obj); got != tt.expected {
			t.Errorf("TypeStr(%v) = %q, want %q", tt.obj, got, tt.expected)
		}
	}
}
