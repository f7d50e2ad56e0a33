// Package errs defines the position-tagged error model shared by every
// stage of the pipeline (lexer, parser, compiler, vm).
//
// Every stage is fallible and surfaces a single error at the first failure,
// tagged with the source position at which it was recognized. Nothing in
// this package renders color or writes to a stream; that belongs to the
// caller (cmd/monkey), so this package stays free of presentation
// dependencies and can be imported from every other package.
package errs

import (
	"fmt"

	"github.com/kristofer/monkey/pkg/token"
)

// Category classifies which stage raised an error.
type Category string

const (
	IO       Category = "IO"
	Lexer    Category = "Lexer"
	Parser   Category = "Parser"
	Compiler Category = "Compiler"
	Vm       Category = "Vm"
)

// Error is a single, position-tagged diagnostic.
type Error struct {
	Category Category
	Position token.Position
	Message  string
}

// New builds an Error at pos in the given category.
func New(category Category, pos token.Position, format string, args ...interface{}) *Error {
	return &Error{
		Category: category,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IOError wraps a startup IO failure. Position is the zero value since IO
// failures (missing file, permission denied) have no source location.
func IOError(err error) *Error {
	return &Error{Category: IO, Message: err.Error()}
}

// Error implements the error interface, rendering the two-line diagnostic
// format: "At line L, column C:\n    <category> error: <message>".
func (e *Error) Error() string {
	return fmt.Sprintf("At line %d, column %d:\n    %s error: %s",
		e.Position.Line, e.Position.Column, e.Category, e.Message)
}
