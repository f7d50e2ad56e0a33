package compiler

import (
	"fmt"

	"github.com/kristofer/monkey/internal/errs"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/token"
)

// builtinLen implements len(x): character count for a string, element
// count for an array or hash.
func builtinLen(args ...object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, errs.New(errs.Vm, token.Position{}, "wrong number of arguments to len: got %d, want 1", len(args))
	}

	switch arg := args[0].(type) {
	case *object.String:
		return &object.Integer{Value: int64(len([]rune(arg.Value)))}, nil
	case *object.Array:
		return &object.Integer{Value: int64(len(arg.Elements))}, nil
	case *object.Hash:
		return &object.Integer{Value: int64(len(arg.Pairs))}, nil
	default:
		return nil, errs.New(errs.Vm, token.Position{}, "argument to len not supported, got %s", object.TypeStr(args[0]))
	}
}

// builtinPuts prints each argument's Inspect() form on its own line and
// returns Nil.
func builtinPuts(args ...object.Object) (object.Object, error) {
	for _, arg := range args {
		fmt.Println(arg.Inspect())
	}
	return object.NilValue, nil
}
