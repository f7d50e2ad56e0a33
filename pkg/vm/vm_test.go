package vm

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/monkey/internal/errs"
	"github.com/kristofer/monkey/pkg/compiler"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/parser"
)

type vmTestCase struct {
	input    string
	expected interface{}
}

func runVM(t *testing.T, input string) (object.Object, error) {
	t.Helper()

	program, err := parser.Parse(input)
	require.NoError(t, err, "parse error for %q", input)

	c := compiler.New()
	require.NoError(t, c.Compile(program), "compile error for %q", input)

	machine := New(c.Bytecode())
	if err := machine.Run(); err != nil {
		return nil, err
	}

	top, err := machine.StackTop()
	require.NoError(t, err, "no value on the stack after running %q", input)
	return top, nil
}

func runVMTests(t *testing.T, tests []vmTestCase) {
	t.Helper()

	for _, tt := range tests {
		top, err := runVM(t, tt.input)
		require.NoError(t, err, "vm error for %q", tt.input)
		requireObject(t, tt.expected, top, tt.input)
	}
}

func requireObject(t *testing.T, expected interface{}, actual object.Object, input string) {
	t.Helper()

	if expected == nil {
		require.IsType(t, &object.Nil{}, actual, "input %q", input)
		return
	}

	switch want := expected.(type) {
	case int:
		integer, ok := actual.(*object.Integer)
		require.True(t, ok, "input %q: expected Integer, got %T (%s)", input, actual, actual.Inspect())
		require.Equal(t, int64(want), integer.Value, "input %q", input)
	case int64:
		integer, ok := actual.(*object.Integer)
		require.True(t, ok, "input %q: expected Integer, got %T (%s)", input, actual, actual.Inspect())
		require.Equal(t, want, integer.Value, "input %q", input)
	case bool:
		boolean, ok := actual.(*object.Boolean)
		require.True(t, ok, "input %q: expected Boolean, got %T (%s)", input, actual, actual.Inspect())
		require.Equal(t, want, boolean.Value, "input %q", input)
	case string:
		str, ok := actual.(*object.String)
		require.True(t, ok, "input %q: expected String, got %T (%s)", input, actual, actual.Inspect())
		require.Equal(t, want, str.Value, "input %q", input)
	case []int:
		arr, ok := actual.(*object.Array)
		require.True(t, ok, "input %q: expected Array, got %T (%s)", input, actual, actual.Inspect())
		require.Len(t, arr.Elements, len(want), "input %q", input)
		for i, el := range want {
			requireObject(t, el, arr.Elements[i], input)
		}
	default:
		t.Fatalf("unhandled expected type %T", expected)
	}
}

func requireVMError(t *testing.T, input string, wantSubstring string) {
	t.Helper()

	_, err := runVM(t, input)
	require.Error(t, err, "expected a vm error for %q", input)

	var e *errs.Error
	require.ErrorAs(t, err, &e, "input %q", input)
	require.Equal(t, errs.Vm, e.Category, "input %q", input)
	require.Contains(t, e.Message, wantSubstring, "input %q", input)
}

func TestIntegerArithmetic(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"1", 1},
		{"2 + 3", 5},
		{"1 - 2", -1},
		{"4 * 5", 20},
		{"7 / 2", 3},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"-3", -3},
		{"-(2 + 3)", -5},
		{"5 * (2 + 10)", 60},
		{"5 + 2 * 10", 25},
		{"2 * 3 ^ 2", 18},
		{"50 / 2 * 2 + 10 - 5", 55},
	})
}

func TestExponentSaturatesOnOverflow(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"2 ^ 62", int64(1) << 62},
		{"2 ^ 63", int64(math.MaxInt64)},
		{"2 ^ 1000", int64(math.MaxInt64)},
		{"0 ^ 0", 1},
		{"0 ^ 5", 0},
	})
}

func TestBooleanExpressions(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"true", true},
		{"false", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"1 < 2", true},
		{"2 < 1", false},
		{"1 <= 1", true},
		{"2 > 1", true},
		{"2 >= 3", false},
		{"true == true", true},
		{"true != false", true},
		{"(1 < 2) == true", true},
		{"!true", false},
		{"!0", true},
		{"!5", false},
		{"!nil", true},
		{"!!true", true},
	})
}

func TestConditionals(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"if true { 10 }", 10},
		{"if true { 10 } else { 20 }", 10},
		{"if false { 10 } else { 20 }", 20},
		{"if false { 10 } else { 20 }; 3333", 3333},
		{"if 1 { 10 }", 10},
		{"if 0 { 10 } else { 20 }", 20},
		{"if nil { 10 } else { 20 }", 20},
		{"if false { 10 }", nil},
		{"if 1 < 2 { 10 } else { 20 }", 10},
		{"if false { 1 } else if false { 2 } else { 3 }", 3},
	})
}

func TestGlobalLetStatements(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"let a = 5 * 5; a", 25},
		{"let one = 1; let two = 2; one + two", 3},
		{"let one = 1; let two = one + one; one + two", 3},
	})
}

func TestBlocksAreExpressions(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"{ 1; 2; 3 }", 3},
		{"let a = { let b = 2; b * 3 }; a", 6},
		{"{}", nil},
		{"{ let a = 1; }", nil},
	})
}

func TestStringExpressions(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{`"monkey"`, "monkey"},
		{`"mon" + "key"`, "monkey"},
		{`"mon" + "key" + "banana"`, "monkeybanana"},
		{`"hello"[1]`, "e"},
		{`"héllo"[1]`, "é"},
	})
}

func TestArrayLiteralsAndIndexing(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"[]", []int{}},
		{"[1, 2, 3]", []int{1, 2, 3}},
		{"[1 + 2, 3 * 4, 5 + 6]", []int{3, 12, 11}},
		{"[1, 2, 3][1]", 2},
		{"[[1, 1, 1]][0][0]", 1},
		{"[1, 2, 3][1 + 1]", 3},
	})
}

func TestHashLiteralsAndIndexing(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{`#{1: 2, 2: 3}[2]`, 3},
		{`#{"a": 1, "b": 2}["b"]`, 2},
		{`#{true: 10, false: 20}[1 == 1]`, 10},
		{`#{1 + 1: 2 * 2}[2]`, 4},
	})
}

func TestCallingFunctions(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"let f = fn(){ 5 + 10 }; f()", 15},
		{"fn(){}()", nil},
		{"let identity = fn(x){ x }; identity(42)", 42},
		{"let add = fn(a, b){ a + b }; add(1, 2)", 3},
		{"let add = fn(a, b){ a + b }; add(add(1, 2), add(3, 4))", 10},
		{"let f = fn(){ let a = 1; let b = 2; a + b }; f()", 3},
		{"let f = fn(){ return 99; 100 }; f()", 99},
		{"let f = fn(){ return; }; f()", nil},
		{"let early = fn(){ if true { return 1 }; 2 }; early()", 1},
		// Functions are values: pass and return them.
		{"let apply = fn(f, x){ f(x) }; apply(fn(n){ n * 2 }, 21)", 42},
	})
}

func TestClosures(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"let make = fn(x){ fn(y){ x + y } }; make(3)(5)", 8},
		{"fn(a){ fn(b){ fn(c){ a + b + c } } }(1)(2)(3)", 6},
		{"let wrapper = fn(){ let a = 1; let g = fn(){ a }; g() }; wrapper()", 1},
		{
			`let makeAdder = fn(x){ fn(y){ x + y } };
			let addTwo = makeAdder(2);
			let addTen = makeAdder(10);
			addTwo(3) + addTen(3)`,
			18,
		},
	})
}

func TestRecursiveFunctions(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{
			`let fib = fn(n){ if n <= 1 { n } else { fib(n - 1) + fib(n - 2) } };
			fib(13)`,
			233,
		},
		{
			`let countdown = fn(n){ if n == 0 { 0 } else { countdown(n - 1) } };
			countdown(100)`,
			0,
		},
	})
}

func TestTopLevelReturnEndsTheRun(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{"return 5; 10", 5},
		{"return; 10", nil},
	})
}

func TestBuiltins(t *testing.T) {
	runVMTests(t, []vmTestCase{
		{`len("")`, 0},
		{`len("hello")`, 5},
		{`len("héllo")`, 5},
		{"len([1, 2, 3])", 3},
		{"len(#{1: 1, 2: 2})", 2},
		{`puts("hello")`, nil},
	})

	requireVMError(t, "len(1)", "argument to len not supported")
	requireVMError(t, `len("a", "b")`, "wrong number of arguments")
}

func TestRuntimeErrors(t *testing.T) {
	requireVMError(t, "2 / 0", "division by zero")
	requireVMError(t, "2 % 0", "modulo by zero")
	requireVMError(t, "2 ^ -1", "negative exponent")
	requireVMError(t, `"abc" + true`, "type mismatch: string + bool")
	requireVMError(t, "true + false", "type mismatch: bool + bool")
	requireVMError(t, "true > false", "unsupported comparison on bool")
	requireVMError(t, "-true", "unsupported type for negation")
	requireVMError(t, "[1, 2][5]", "index out of bounds: 5")
	requireVMError(t, "[1, 2][-1]", "index out of bounds: -1")
	requireVMError(t, `"ab"[9]`, "index out of bounds: 9")
	requireVMError(t, "5[0]", "index operator not supported")
	requireVMError(t, "#{1: 1}[[1]]", "unusable as hash key: array")
	requireVMError(t, "#{[1]: 1}", "unusable as hash key: array")
	requireVMError(t, "#{1: 1}[2]", "key not found: 2")
	requireVMError(t, "5(1)", "not callable: int")
	requireVMError(t, "fn(){}(1, 2)", "wrong number of arguments: want 0, got 2")
}

func TestRunawayRecursionIsStopped(t *testing.T) {
	requireVMError(t, "let f = fn(){ f() }; f()", "too many nested calls")
}

func TestClosureCapturesValueAtCreation(t *testing.T) {
	// The captured x is the one the enclosing function held when the
	// closure was built, not the x of the function that later calls it.
	top, err := runVM(t, `
		let snapshot = fn(x){
			let capture = fn(){ x };
			let shadowed = fn(x){ capture() };
			shadowed(999)
		};
		snapshot(7)`)
	require.NoError(t, err)
	requireObject(t, 7, top, "closure snapshot")
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	// First turn defines a global, second turn reads it: the REPL wiring of
	// a persistent Compiler plus carried-over globals.
	c := compiler.New()

	program, err := parser.Parse("let g = 7;")
	require.NoError(t, err)
	require.NoError(t, c.Compile(program))
	first := NewWithGlobals(c.ResetInstructions(), make([]object.Object, GlobalsSize))
	require.NoError(t, first.Run())

	program, err = parser.Parse("g * 6")
	require.NoError(t, err)
	require.NoError(t, c.Compile(program))
	second := NewWithGlobals(c.ResetInstructions(), first.Globals())
	require.NoError(t, second.Run())

	top, err := second.StackTop()
	require.NoError(t, err)
	requireObject(t, 42, top, "g * 6")
}

func TestRunIDsAreUnique(t *testing.T) {
	program, err := parser.Parse("1")
	require.NoError(t, err)
	c := compiler.New()
	require.NoError(t, c.Compile(program))

	a := New(c.Bytecode())
	b := New(c.Bytecode())
	require.NotEmpty(t, a.RunID())
	require.NotEqual(t, a.RunID(), b.RunID())
}

func TestStackTopAfterTrailingLet(t *testing.T) {
	program, err := parser.Parse("let a = 1;")
	require.NoError(t, err)
	c := compiler.New()
	require.NoError(t, c.Compile(program))

	machine := New(c.Bytecode())
	require.NoError(t, machine.Run())

	// "let" at the end of the program still yields Nil, so the stack is
	// never empty after a successful run of a non-empty program.
	top, err := machine.StackTop()
	require.NoError(t, err)
	require.IsType(t, &object.Nil{}, top)
}

func TestErrorRenderingNamesTheVmCategory(t *testing.T) {
	_, err := runVM(t, "2 / 0")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Vm error:"), "got %q", err.Error())
}
