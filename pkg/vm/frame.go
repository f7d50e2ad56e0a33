package vm

import (
	"github.com/kristofer/monkey/pkg/code"
	"github.com/kristofer/monkey/pkg/object"
)

// Frame is one call's execution context: the closure being run, its
// instruction pointer, and the stack slot its locals start at. The
// top-level program runs in a Frame too, wrapping its instructions in a
// closure with no free variables and no parameters.
type Frame struct {
	cl          *object.Closure
	ip          int
	basePointer int
}

// NewFrame creates a Frame for cl, with locals starting at basePointer.
func NewFrame(cl *object.Closure, basePointer int) *Frame {
	return &Frame{cl: cl, ip: -1, basePointer: basePointer}
}

// Instructions returns the frame's closure's instruction buffer.
func (f *Frame) Instructions() code.Instructions {
	return f.cl.Fn.Instructions
}

// HasMoreInstructions reports whether fetch-decode-execute should continue
// in this frame; Run pops the frame once this goes false.
func (f *Frame) HasMoreInstructions() bool {
	return f.ip+1 < len(f.Instructions())
}
