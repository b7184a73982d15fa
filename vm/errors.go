package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorClass identifies which AS3 error class a runtime failure maps to.
type ErrorClass uint8

const (
	ErrTypeError ErrorClass = iota
	ErrReferenceError
	ErrArgumentError
	ErrRangeError
	ErrVerifyError
	ErrEvalError
)

// String returns the AS3 class name for the error class.
func (c ErrorClass) String() string {
	switch c {
	case ErrTypeError:
		return "TypeError"
	case ErrReferenceError:
		return "ReferenceError"
	case ErrArgumentError:
		return "ArgumentError"
	case ErrRangeError:
		return "RangeError"
	case ErrVerifyError:
		return "VerifyError"
	case ErrEvalError:
		return "EvalError"
	}
	return "Error"
}

// AVM2 error kind codes surfaced by the runtime. The numeric values match
// the codes Flash Player reports in "Error #NNNN" messages.
const (
	KOutOfRangeError              = 1002
	KCallOfNonFunctionError       = 1006
	KConvertNullToObjectError     = 1009
	KConvertUndefinedToObjectError = 1010
	KUndefinedVarError            = 1065
	KWrongArgumentCountError      = 1063
	KClassNotFoundError           = 1014
	KCheckTypeFailedError         = 1034
	KCantUseInstanceofOnNonObjectError = 1040
	KInvalidRangeError            = 1506
	KConstructOfNonFunctionError  = 1115
	KFilterError                  = 1123
)

// ASError is a typed runtime failure that is catchable by an AS3 exception
// handler. It carries the boxed error value pushed onto the operand stack
// when a handler matches.
type ASError struct {
	Class   ErrorClass
	Kind    int
	Message string

	value Value // lazily boxed error object
}

// Error implements the error interface.
func (e *ASError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: Error #%d", e.Class, e.Kind)
	}
	return fmt.Sprintf("%s: Error #%d: %s", e.Class, e.Kind, e.Message)
}

// Value returns the boxed error object for handler dispatch, creating it on
// first use.
func (e *ASError) Value(sys *SystemState) Value {
	if e.value == nil {
		obj := NewObject(sys.ErrorClassFor(e.Class))
		obj.setDynamicVar("message", sys.BoxString(e.Message))
		obj.setDynamicVar("errorID", sys.BoxInt(int32(e.Kind)))
		e.value = obj
	}
	e.value.IncRef()
	return e.value
}

func throwTypeError(kind int, msg string) *ASError {
	return &ASError{Class: ErrTypeError, Kind: kind, Message: msg}
}

func throwReferenceError(kind int, msg string) *ASError {
	return &ASError{Class: ErrReferenceError, Kind: kind, Message: msg}
}

func throwRangeError(kind int, msg string) *ASError {
	return &ASError{Class: ErrRangeError, Kind: kind, Message: msg}
}

// ThrownValue carries an arbitrary value raised by the throw opcode. It
// owns one reference to Val until a handler consumes it.
type ThrownValue struct {
	Val Value
}

func (t *ThrownValue) Error() string {
	return "uncaught exception: " + t.Val.ToDebugString()
}

// ---------------------------------------------------------------------------
// Fatal failures
// ---------------------------------------------------------------------------

// ParseError indicates a malformed method body. It is never catchable by an
// AS3 handler and terminates the invocation.
type ParseError struct {
	Opcode uint8
	Offset uint32
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x at offset %d", e.Opcode, e.Offset)
}

// StackError indicates an operand stack depth violation relative to the
// method's declared max_stack. Like ParseError it is not catchable.
type StackError struct {
	Overflow bool
	Depth    int
	Limit    int
}

func (e *StackError) Error() string {
	if e.Overflow {
		return fmt.Sprintf("operand stack overflow: depth %d exceeds max_stack %d", e.Depth, e.Limit)
	}
	return fmt.Sprintf("operand stack underflow at depth %d", e.Depth)
}

// IsCatchable reports whether err may be handled by an exception handler in
// the current frame. ParseError and StackError are always fatal.
func IsCatchable(err error) bool {
	var as *ASError
	if errors.As(err, &as) {
		return true
	}
	var tv *ThrownValue
	return errors.As(err, &tv)
}
