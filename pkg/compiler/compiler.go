// Package compiler compiles a Monkey AST into bytecode: a flat instruction
// sequence, a constants pool, and closures built from lexical symbol
// resolution.
package compiler

import (
	"github.com/kristofer/monkey/internal/errs"
	"github.com/kristofer/monkey/pkg/ast"
	"github.com/kristofer/monkey/pkg/code"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/symboltable"
	"github.com/kristofer/monkey/pkg/token"
)

const (
	maxConstants = 1<<16 - 1 // u16 constant/global index
	maxLiteral   = 1<<16 - 1 // u16 Array/Hash element count
	maxLocals    = 1<<8 - 1  // u8 local/free/builtin index
	maxArgs      = 1<<8 - 1  // u8 call argument count
)

// Builtins is the fixed, index-stable table of built-in functions,
// registered in the symbol table under their declared indices so every
// Compiler (and therefore every compiled program) agrees on them.
var Builtins = []*object.Builtin{
	{Name: "len", Fn: builtinLen},
	{Name: "puts", Fn: builtinPuts},
}

// EmittedInstruction records an opcode and the byte offset at which it was
// emitted, used to detect "was the last thing we emitted a Return" when
// closing out a function body.
type EmittedInstruction struct {
	Opcode   code.Opcode
	Position int
}

// compilationScope holds the in-progress instruction buffer for one
// function body (or the top level). The compiler keeps a stack of these so
// a nested function literal can be compiled without disturbing the
// enclosing scope's instructions.
type compilationScope struct {
	instructions        code.Instructions
	lastInstruction     EmittedInstruction
	previousInstruction EmittedInstruction
}

// Bytecode is the compiler's output: everything the VM needs to run.
type Bytecode struct {
	Instructions code.Instructions
	Constants    []object.Object
}

// Compiler walks an AST and emits bytecode. A Compiler is reusable across
// multiple top-level compiles (e.g. successive REPL turns): constants and
// the symbol table persist between calls, so previously defined globals
// stay visible and constant indices stay stable.
type Compiler struct {
	constants   []object.Object
	symbolTable *symboltable.SymbolTable

	scopes     []compilationScope
	scopeIndex int
}

// New creates a Compiler with a fresh global symbol table and the built-in
// functions pre-registered.
func New() *Compiler {
	symbolTable := symboltable.New()
	for i, b := range Builtins {
		symbolTable.DefineBuiltin(i, b.Name)
	}

	return &Compiler{
		symbolTable: symbolTable,
		scopes:      []compilationScope{{}},
	}
}

// NewWithState creates a Compiler that continues from a prior symbol table
// and constant pool, for a REPL turn that must see previously defined
// globals and reuse previously interned constants.
func NewWithState(symbolTable *symboltable.SymbolTable, constants []object.Object) *Compiler {
	c := New()
	c.symbolTable = symbolTable
	c.constants = constants
	return c
}

// SymbolTable exposes the compiler's symbol table, so a REPL driver can
// hand it to the next turn's Compiler via NewWithState.
func (c *Compiler) SymbolTable() *symboltable.SymbolTable { return c.symbolTable }

// Compile compiles an entire program: its statements are compiled with the
// same value-producing-last-statement rule as a block, so the VM's stack
// top after a run holds the value of the last top-level expression. This
// is what the REPL displays.
func (c *Compiler) Compile(program *ast.Program) error {
	return c.compileStatements(program.Statements)
}

// Bytecode returns the compiled program so far.
func (c *Compiler) Bytecode() *Bytecode {
	return &Bytecode{
		Instructions: c.currentInstructions(),
		Constants:    c.constants,
	}
}

// ResetInstructions clears the current (top-level) instruction buffer
// while keeping constants and the symbol table intact, returning the
// instructions compiled so far as a Bytecode. This is what lets a REPL
// reuse one Compiler turn after turn without re-running already-compiled
// instructions.
func (c *Compiler) ResetInstructions() *Bytecode {
	// A failed compile can leave function scopes open; unwind them so the
	// next turn starts at the top level again.
	for c.scopeIndex > 0 {
		c.leaveScope()
	}

	old := c.currentInstructions()
	c.scopes[0] = compilationScope{}

	constants := make([]object.Object, len(c.constants))
	copy(constants, c.constants)

	return &Bytecode{Instructions: old, Constants: constants}
}

func (c *Compiler) currentInstructions() code.Instructions {
	return c.scopes[c.scopeIndex].instructions
}

func (c *Compiler) compileStatements(stmts []ast.Statement) error {
	if len(stmts) == 0 {
		c.emit(code.OpNil)
		return nil
	}

	last := len(stmts) - 1
	for i, stmt := range stmts {
		if err := c.compileStatement(stmt, i == last); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(stmt ast.Statement, isLast bool) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		if !isLast {
			c.emit(code.OpPop)
		}
		return nil

	case *ast.LetStatement:
		// The name is defined before its value is compiled, so a function
		// literal bound by "let" can refer to itself recursively.
		symbol := c.symbolTable.Define(s.Name.Value)
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		if symbol.Scope == symboltable.GlobalScope && symbol.Index > maxConstants {
			return errs.New(errs.Compiler, s.Pos(), "too many globals: %d", symbol.Index)
		}
		if symbol.Scope == symboltable.LocalScope && symbol.Index > maxLocals {
			return errs.New(errs.Compiler, s.Pos(), "too many locals in function: %d", symbol.Index)
		}
		if symbol.Scope == symboltable.GlobalScope {
			c.emit(code.OpSetGlobal, symbol.Index)
		} else {
			c.emit(code.OpSetLocal, symbol.Index)
		}
		// A "let" statement leaves nothing on the stack; if it's the last
		// statement in a block, the block still must yield a value.
		if isLast {
			c.emit(code.OpNil)
		}
		return nil

	case *ast.ReturnStatement:
		if s.ReturnValue != nil {
			if err := c.compileExpression(s.ReturnValue); err != nil {
				return err
			}
		} else {
			c.emit(code.OpNil)
		}
		c.emit(code.OpReturn)
		return nil

	default:
		return errs.New(errs.Compiler, stmt.Pos(), "unknown statement type: %T", stmt)
	}
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		idx, err := c.addConstant(&object.Integer{Value: e.Value}, e.Pos())
		if err != nil {
			return err
		}
		c.emit(code.OpConstant, idx)

	case *ast.StringLiteral:
		idx, err := c.addConstant(&object.String{Value: e.Value}, e.Pos())
		if err != nil {
			return err
		}
		c.emit(code.OpConstant, idx)

	case *ast.Boolean:
		if e.Value {
			c.emit(code.OpTrue)
		} else {
			c.emit(code.OpFalse)
		}

	case *ast.NilLiteral:
		c.emit(code.OpNil)

	case *ast.ArrayLiteral:
		if len(e.Elements) > maxLiteral {
			return errs.New(errs.Compiler, e.Pos(), "array literal too large: %d elements", len(e.Elements))
		}
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.emit(code.OpArray, len(e.Elements))

	case *ast.HashLiteral:
		if len(e.Pairs) > maxLiteral {
			return errs.New(errs.Compiler, e.Pos(), "hash literal too large: %d pairs", len(e.Pairs))
		}
		for _, pair := range e.Pairs {
			if err := c.compileExpression(pair.Key); err != nil {
				return err
			}
			if err := c.compileExpression(pair.Value); err != nil {
				return err
			}
		}
		c.emit(code.OpHash, len(e.Pairs))

	case *ast.IndexExpression:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.emit(code.OpIndex)

	case *ast.PrefixExpression:
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "-":
			c.emit(code.OpPrefixMinus)
		case "!":
			c.emit(code.OpPrefixNot)
		default:
			return errs.New(errs.Compiler, e.Pos(), "unknown prefix operator: %s", e.Operator)
		}

	case *ast.InfixExpression:
		return c.compileInfixExpression(e)

	case *ast.Identifier:
		symbol, ok := c.symbolTable.Resolve(e.Value)
		if !ok {
			return errs.New(errs.Compiler, e.Pos(), "undefined identifier: %s", e.Value)
		}
		c.loadSymbol(symbol)

	case *ast.Block:
		return c.compileStatements(e.Statements)

	case *ast.IfExpression:
		return c.compileIfExpression(e)

	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(e)

	case *ast.CallExpression:
		if err := c.compileExpression(e.Function); err != nil {
			return err
		}
		if len(e.Arguments) > maxArgs {
			return errs.New(errs.Compiler, e.Pos(), "too many arguments: %d", len(e.Arguments))
		}
		for _, arg := range e.Arguments {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		c.emit(code.OpCall, len(e.Arguments))

	default:
		return errs.New(errs.Compiler, expr.Pos(), "unknown expression type: %T", expr)
	}

	return nil
}

// compileInfixExpression compiles both operands and the operator opcode.
// "<" and "<=" have no opcodes of their own: the operands are emitted in
// reverse order and GreaterThan/GreaterEq reused.
func (c *Compiler) compileInfixExpression(e *ast.InfixExpression) error {
	if e.Operator == "<" || e.Operator == "<=" {
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
	} else {
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
	}

	switch e.Operator {
	case "+":
		c.emit(code.OpAdd)
	case "-":
		c.emit(code.OpSub)
	case "*":
		c.emit(code.OpMul)
	case "/":
		c.emit(code.OpDiv)
	case "^":
		c.emit(code.OpExponent)
	case "%":
		c.emit(code.OpModulo)
	case "==":
		c.emit(code.OpEquals)
	case "!=":
		c.emit(code.OpNotEquals)
	case ">":
		c.emit(code.OpGreaterThan)
	case ">=":
		c.emit(code.OpGreaterEq)
	case "<":
		c.emit(code.OpGreaterThan)
	case "<=":
		c.emit(code.OpGreaterEq)
	default:
		return errs.New(errs.Compiler, e.Pos(), "unknown infix operator: %s", e.Operator)
	}

	return nil
}

// compileIfExpression emits a conditional jump past the consequence, then
// an unconditional jump past the alternative, back-patching both
// placeholder operands once their targets are known.
func (c *Compiler) compileIfExpression(e *ast.IfExpression) error {
	if err := c.compileExpression(e.Condition); err != nil {
		return err
	}

	jumpNotTruthyPos := c.emit(code.OpJumpNotTruthy, 9999)

	if err := c.compileExpression(e.Consequence); err != nil {
		return err
	}

	jumpPos := c.emit(code.OpJump, 9999)

	afterConsequence := len(c.currentInstructions())
	c.changeOperand(jumpNotTruthyPos, afterConsequence)

	if e.Alternative == nil {
		c.emit(code.OpNil)
	} else if err := c.compileExpression(e.Alternative); err != nil {
		return err
	}

	afterAlternative := len(c.currentInstructions())
	c.changeOperand(jumpPos, afterAlternative)

	return nil
}

// compileFunctionLiteral pushes a new scope, defines parameters as locals,
// compiles the body, and wraps the resulting CompiledFunction constant in
// an OpClosure that loads every free variable the body captured, in the
// order the body first resolved them (the order of its GetFree indices).
func (c *Compiler) compileFunctionLiteral(fl *ast.FunctionLiteral) error {
	c.enterScope()

	for _, param := range fl.Parameters {
		c.symbolTable.Define(param.Value)
	}

	if err := c.compileStatements(fl.Body.Statements); err != nil {
		return err
	}

	if !c.lastInstructionIs(code.OpReturn) {
		c.emit(code.OpReturn)
	}

	freeSymbols := c.symbolTable.FreeSymbols
	numLocals := c.symbolTable.NumDefinitions()
	if numLocals > maxLocals+1 {
		return errs.New(errs.Compiler, fl.Pos(), "too many locals in function: %d", numLocals)
	}
	instructions := c.leaveScope()

	for _, sym := range freeSymbols {
		c.loadSymbol(sym)
	}

	compiledFn := &object.CompiledFunction{
		Instructions:  instructions,
		NumLocals:     numLocals,
		NumParameters: len(fl.Parameters),
		Name:          fl.Name,
	}
	fnIndex, err := c.addConstant(compiledFn, fl.Pos())
	if err != nil {
		return err
	}

	c.emit(code.OpClosure, fnIndex, len(freeSymbols))
	return nil
}

func (c *Compiler) loadSymbol(s symboltable.Symbol) {
	switch s.Scope {
	case symboltable.GlobalScope:
		c.emit(code.OpGetGlobal, s.Index)
	case symboltable.LocalScope:
		c.emit(code.OpGetLocal, s.Index)
	case symboltable.FreeScope:
		c.emit(code.OpGetFree, s.Index)
	case symboltable.BuiltinScope:
		c.emit(code.OpGetBuiltin, s.Index)
	}
}

func (c *Compiler) addConstant(obj object.Object, pos token.Position) (int, error) {
	if len(c.constants) > maxConstants {
		return 0, errs.New(errs.Compiler, pos, "too many constants: %d", len(c.constants))
	}
	c.constants = append(c.constants, obj)
	return len(c.constants) - 1, nil
}

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	ins := code.Make(op, operands...)
	pos := c.addInstruction(ins)

	c.scopes[c.scopeIndex].previousInstruction = c.scopes[c.scopeIndex].lastInstruction
	c.scopes[c.scopeIndex].lastInstruction = EmittedInstruction{Opcode: op, Position: pos}

	return pos
}

func (c *Compiler) addInstruction(ins code.Instructions) int {
	pos := len(c.currentInstructions())
	updated := append(c.currentInstructions(), ins...)
	c.scopes[c.scopeIndex].instructions = updated
	return pos
}

func (c *Compiler) lastInstructionIs(op code.Opcode) bool {
	if len(c.currentInstructions()) == 0 {
		return false
	}
	return c.scopes[c.scopeIndex].lastInstruction.Opcode == op
}

func (c *Compiler) changeOperand(opPos int, operand int) {
	op := code.Opcode(c.currentInstructions()[opPos])
	newInstruction := code.Make(op, operand)
	c.replaceInstruction(opPos, newInstruction)
}

func (c *Compiler) replaceInstruction(pos int, newInstruction code.Instructions) {
	ins := c.currentInstructions()
	for i := 0; i < len(newInstruction); i++ {
		ins[pos+i] = newInstruction[i]
	}
}

func (c *Compiler) enterScope() {
	c.scopes = append(c.scopes, compilationScope{})
	c.scopeIndex++
	c.symbolTable = symboltable.NewEnclosed(c.symbolTable)
}

func (c *Compiler) leaveScope() code.Instructions {
	instructions := c.currentInstructions()

	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--
	c.symbolTable = c.symbolTable.Outer

	return instructions
}
