package native

import (
	"errors"
	"fmt"
)

// ExceptionKind classifies native failures.
type ExceptionKind uint8

const (
	// KindRuntime is a recoverable failure that carries a message.
	KindRuntime ExceptionKind = iota
	// KindBadAlloc reports that a memory request could not be satisfied.
	KindBadAlloc
)

func (k ExceptionKind) String() string {
	switch k {
	case KindRuntime:
		return "runtime_error"
	case KindBadAlloc:
		return "bad_alloc"
	default:
		return fmt.Sprintf("ExceptionKind(%d)", uint8(k))
	}
}

// Exception is the error type returned by native entry points.
type Exception struct {
	Kind ExceptionKind
	Msg  string
	err  error
}

func (e *Exception) Error() string {
	return e.Msg
}

func (e *Exception) Unwrap() error {
	return e.err
}

// RuntimeError creates a KindRuntime exception with a formatted message.
func RuntimeError(format string, args ...any) *Exception {
	return &Exception{Kind: KindRuntime, Msg: fmt.Sprintf(format, args...)}
}

// wrapRuntime creates a KindRuntime exception around err.
func wrapRuntime(err error, format string, args ...any) *Exception {
	return &Exception{
		Kind: KindRuntime,
		Msg:  fmt.Sprintf(format, args...) + ": " + err.Error(),
		err:  err,
	}
}

// BadAlloc creates a KindBadAlloc exception around the failed allocation.
func BadAlloc(err error) *Exception {
	msg := "bad allocation"
	if err != nil {
		msg = "bad allocation: " + err.Error()
	}
	return &Exception{Kind: KindBadAlloc, Msg: msg, err: err}
}

// AsException returns the *Exception in err's chain, if any.
func AsException(err error) (*Exception, bool) {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}
