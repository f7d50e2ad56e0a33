// Package object defines Monkey's runtime value model: the tagged union of
// values the VM pushes, pops, and stores.
package object

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kristofer/monkey/pkg/code"
)

// Type tags the concrete kind of an Object.
type Type string

const (
	INTEGER_OBJ           Type = "INTEGER"
	BOOLEAN_OBJ           Type = "BOOLEAN"
	STRING_OBJ            Type = "STRING"
	ARRAY_OBJ             Type = "ARRAY"
	HASH_OBJ              Type = "HASH"
	NIL_OBJ               Type = "NIL"
	COMPILED_FUNCTION_OBJ Type = "COMPILED_FUNCTION"
	CLOSURE_OBJ           Type = "CLOSURE"
	BUILTIN_OBJ           Type = "BUILTIN"
)

// Object is any Monkey runtime value.
type Object interface {
	Type() Type
	Inspect() string
}

// Integer is a signed 64-bit integer value.
type Integer struct{ Value int64 }

func (i *Integer) Type() Type      { return INTEGER_OBJ }
func (i *Integer) Inspect() string { return fmt.Sprintf("%d", i.Value) }
func (i *Integer) HashKey() HashKey {
	return HashKey{Type: i.Type(), Value: uint64(i.Value)}
}

// Boolean is a true/false value.
type Boolean struct{ Value bool }

func (b *Boolean) Type() Type      { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string { return fmt.Sprintf("%t", b.Value) }
func (b *Boolean) HashKey() HashKey {
	var v uint64
	if b.Value {
		v = 1
	}
	return HashKey{Type: b.Type(), Value: v}
}

// String is a UTF-8 text value; indexing and length are by Unicode scalar
// value, handled by callers via []rune(s.Value).
type String struct{ Value string }

func (s *String) Type() Type      { return STRING_OBJ }
func (s *String) Inspect() string { return s.Value }
func (s *String) HashKey() HashKey {
	h := fnv64a(s.Value)
	return HashKey{Type: s.Type(), Value: h, Str: s.Value}
}

// fnv64a is a small non-cryptographic hash used only to build HashKey.Value
// for strings; collisions are fine since HashKey also carries the string
// itself in Str (HashKey is the map key, and Go's map compares every field
// with ==).
func fnv64a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Nil is Monkey's absence-of-value.
type Nil struct{}

func (n *Nil) Type() Type      { return NIL_OBJ }
func (n *Nil) Inspect() string { return "nil" }

// NilValue is the single shared Nil instance; the VM and builtins push this
// rather than allocating a fresh Nil each time.
var NilValue = &Nil{}

// Array is an ordered, heterogeneous list of values.
type Array struct{ Elements []Object }

func (a *Array) Type() Type { return ARRAY_OBJ }
func (a *Array) Inspect() string {
	var elems []string
	for _, e := range a.Elements {
		elems = append(elems, e.Inspect())
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// Hashable is the restricted subset of Object types that may key a Hash:
// Integer, Boolean, String.
type Hashable interface {
	Object
	HashKey() HashKey
}

// HashKey is the comparable key Go's map uses internally; Type disambiguates
// values that might otherwise collide (e.g. Integer(1) and Boolean(true)
// both hashing to 1).
type HashKey struct {
	Type  Type
	Value uint64
	Str   string // the string itself for STRING keys; "" otherwise
}

// HashPair keeps both the original key object (for Inspect/iteration) and
// its value, since HashKey alone has lost the original key's Inspect-able
// form.
type HashPair struct {
	Key   Object
	Value Object
}

// Hash maps Hashable keys to values. Hash printing sorts keys for
// deterministic output.
type Hash struct {
	Pairs map[HashKey]HashPair
}

func (h *Hash) Type() Type { return HASH_OBJ }
func (h *Hash) Inspect() string {
	pairs := make([]string, 0, len(h.Pairs))
	for _, pair := range h.Pairs {
		pairs = append(pairs, fmt.Sprintf("%s: %s", pair.Key.Inspect(), pair.Value.Inspect()))
	}
	sort.Strings(pairs)
	return "#{" + strings.Join(pairs, ", ") + "}"
}

// CompiledFunction is the bytecode body of a function literal, stored in
// the compiler's constant pool.
type CompiledFunction struct {
	Instructions  code.Instructions
	NumLocals     int
	NumParameters int
	Name          string // "" for anonymous functions, used only in diagnostics
}

func (cf *CompiledFunction) Type() Type { return COMPILED_FUNCTION_OBJ }
func (cf *CompiledFunction) Inspect() string {
	return fmt.Sprintf("CompiledFunction[%s]", cf.Name)
}

// Closure pairs a CompiledFunction with the values it captured from
// enclosing scopes at the moment it was created.
type Closure struct {
	Fn   *CompiledFunction
	Free []Object
}

func (c *Closure) Type() Type      { return CLOSURE_OBJ }
func (c *Closure) Inspect() string { return fmt.Sprintf("Closure[%s]", c.Fn.Name) }

// BuiltinFunction is the Go implementation backing a built-in Monkey
// function such as len or puts.
type BuiltinFunction func(args ...Object) (Object, error)

// Builtin wraps a BuiltinFunction so it can flow through the stack like any
// other Object.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() Type      { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string { return fmt.Sprintf("builtin function %s", b.Name) }

// IsTruthy reports whether obj counts as true in a conditional: false,
// nil, and Integer(0) are falsy; everything else is truthy.
func IsTruthy(obj Object) bool {
	switch o := obj.(type) {
	case *Boolean:
		return o.Value
	case *Nil:
		return false
	case *Integer:
		return o.Value != 0
	default:
		return true
	}
}

// TypeStr returns a short, lowercase type name used in error messages
// ("type mismatch: string + bool").
func TypeStr(obj Object) string {
	switch obj.(type) {
	case *Integer:
		return "int"
	case *Boolean:
		return "bool"
	case *String:
		return "string"
	case *Array:
		return "array"
	case *Hash:
		return "hash"
	case *Nil:
		return "nil"
	case *CompiledFunction:
		return "function"
	case *Closure:
		return "function"
	case *Builtin:
		return "builtin"
	default:
		return "unknown"
	}
}
