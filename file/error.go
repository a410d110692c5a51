package file

import (
	"errors"
	"fmt"
)

// Kind classifies an evaluation failure. The kind is part of the engine's
// contract: callers branch on it, and the resolver retry logic depends on
// InvocationError being distinguishable from every other kind.
type Kind int

const (
	GenericError Kind = iota
	TypeConversionError
	NotAssignable
	CallOnNull
	PropertyNotReadable
	PropertyNotWritable
	PropertyReadOnNull
	PropertyWriteOnNull
	MethodNotFound
	MethodAmbiguous
	ArgumentCount
	SelectionCriteriaNotBool
	InvalidSelectionTarget
	NotIncrementable
	NotDecrementable
	InstanceofNeedsType
	NoOrdering
	BeanResolutionFailed

	// InvocationError wraps a genuine failure raised by invoked user code.
	// Errors of this kind are never treated as accessor staleness and are
	// never retried.
	InvocationError
)

var kindNames = map[Kind]string{
	GenericError:             "error",
	TypeConversionError:      "type conversion error",
	NotAssignable:            "not assignable",
	CallOnNull:               "call on null target",
	PropertyNotReadable:      "property not readable",
	PropertyNotWritable:      "property not writable",
	PropertyReadOnNull:       "property read on null target",
	PropertyWriteOnNull:      "property write on null target",
	MethodNotFound:           "method not found",
	MethodAmbiguous:          "ambiguous method",
	ArgumentCount:            "incorrect argument count",
	SelectionCriteriaNotBool: "selection criteria must be boolean",
	InvalidSelectionTarget:   "invalid type for selection/projection",
	NotIncrementable:         "operand not incrementable",
	NotDecrementable:         "operand not decrementable",
	InstanceofNeedsType:      "instanceof needs a type operand",
	NoOrdering:               "no ordering defined",
	BeanResolutionFailed:     "external reference resolution failed",
	InvocationError:          "exception during invocation",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "error"
}

// Error is the single error type the engine surfaces. Location is attached
// lazily by the evaluator when the inner layer did not have position
// context; Bind renders a source snippet into the message.
type Error struct {
	Kind     Kind
	Location Location
	Message  string
	Snippet  string
	Prev     error
}

func NewError(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Location: loc,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Kind != GenericError {
		msg = e.Kind.String() + ": " + msg
	}
	if e.Snippet != "" {
		msg += "\n" + e.Snippet + " " + e.Location.String()
	}
	return msg
}

func (e *Error) Wrap(err error) *Error {
	e.Prev = err
	return e
}

func (e *Error) Unwrap() error {
	return e.Prev
}

// Bind attaches a snippet of source to the error message.
func (e *Error) Bind(source Source) *Error {
	if !source.IsZero() && e.Snippet == "" {
		e.Snippet = source.Snippet(e.Location)
	}
	return e
}

// KindOf extracts the kind of err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return GenericError, false
}

// Is reports whether err is an evaluation error of kind k.
func Is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
