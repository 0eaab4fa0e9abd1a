package knnbridge

import (
	"errors"
	"fmt"

	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/hupe1980/knnbridge/internal/mmap"
	"github.com/hupe1980/knnbridge/internal/native"
	"github.com/hupe1980/knnbridge/internal/packer"
	"github.com/hupe1980/knnbridge/internal/resource"
)

var (
	// ErrInvalidArgument reports a malformed or inconsistent input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceExhausted reports that native memory could not be obtained.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrOperationFailed reports any other native failure.
	ErrOperationFailed = errors.New("operation failed")
	// ErrPendingRuntimeFailure reports that a failure raised on the caller
	// side aborted the operation before the next native call.
	ErrPendingRuntimeFailure = errors.New("pending runtime failure")
)

var (
	// ErrInvalidHandle is returned for nil, destroyed or foreign handles.
	ErrInvalidHandle = fmt.Errorf("%w: invalid or destroyed handle", ErrInvalidArgument)
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = fmt.Errorf("%w: k must be positive", ErrInvalidArgument)
	// ErrLengthMismatch is returned when ids and vectors differ in length.
	ErrLengthMismatch = fmt.Errorf("%w: ids and vectors differ in length", ErrInvalidArgument)
	// ErrInvalidBatch is returned for nil or freed batches.
	ErrInvalidBatch = fmt.Errorf("%w: invalid or freed batch", ErrInvalidArgument)
	// ErrNotInitialized is returned when InitLibrary has not been called.
	ErrNotInitialized = fmt.Errorf("%w: library not initialized", ErrOperationFailed)
)

const unknownExceptionMessage = "unknown exception occurred"

// Kind classifies bridge errors.
type Kind uint8

const (
	KindNone Kind = iota
	KindInvalidArgument
	KindResourceExhausted
	KindOperationFailed
	KindPendingRuntimeFailure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindOperationFailed:
		return "operation_failed"
	case KindPendingRuntimeFailure:
		return "pending_runtime_failure"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindOperationFailed:
		return ErrOperationFailed
	case KindPendingRuntimeFailure:
		return ErrPendingRuntimeFailure
	default:
		return nil
	}
}

// Error is the single error type returned by bridge operations.
//
// errors.Is matches the sentinel of its Kind as well as anything in the
// wrapped cause chain.
type Error struct {
	Kind Kind
	// Op is the operation that failed.
	Op string
	// Message is the failure text; native messages are carried verbatim.
	Message string

	cause error
}

func (e *Error) Error() string {
	return "knnbridge: " + e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or KindNone if err is nil or was not
// produced by the bridge.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindInvalidArgument, KindResourceExhausted, KindPendingRuntimeFailure, KindOperationFailed} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindNone
}

// pendingFailure marks a caller-side failure observed at a checkpoint.
type pendingFailure struct {
	err error
}

func (p *pendingFailure) Error() string { return p.err.Error() }

func (p *pendingFailure) Unwrap() error { return p.err }

func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, cause: cause}
}

// translate maps any failure raised while running op to exactly one *Error.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var be *Error
	if errors.As(err, &be) {
		return err
	}

	var pf *pendingFailure
	if errors.As(err, &pf) {
		return newError(KindPendingRuntimeFailure, op, pf.err.Error(), pf.err)
	}
	var se *packer.SourceError
	if errors.As(err, &se) {
		return newError(KindPendingRuntimeFailure, op, se.Err.Error(), se.Err)
	}

	if isInvalidArgument(err) {
		return newError(KindInvalidArgument, op, err.Error(), err)
	}
	if isBadAlloc(err) {
		return newError(KindResourceExhausted, op, err.Error(), err)
	}
	if ex, ok := native.AsException(err); ok {
		return newError(KindOperationFailed, op, ex.Msg, err)
	}
	return newError(KindOperationFailed, op, err.Error(), err)
}

func isInvalidArgument(err error) bool {
	var de *packer.DimensionError
	return errors.Is(err, ErrInvalidArgument) ||
		errors.As(err, &de) ||
		errors.Is(err, packer.ErrEmptyVector) ||
		errors.Is(err, packer.ErrInvalidLayout) ||
		errors.Is(err, blobstore.ErrInvalidLocation) ||
		errors.Is(err, blobstore.ErrUnsupportedScheme)
}

func isBadAlloc(err error) bool {
	if ex, ok := native.AsException(err); ok && ex.Kind == native.KindBadAlloc {
		return true
	}
	var ae *packer.AllocError
	return errors.As(err, &ae) ||
		errors.Is(err, resource.ErrMemoryLimitExceeded) ||
		mmap.IsOutOfMemory(err)
}

// recoverNative converts a recovered panic value into an *Error.
func recoverNative(op string, r any) error {
	switch v := r.(type) {
	case error:
		return translate(op, v)
	case string:
		return newError(KindOperationFailed, op, v, nil)
	default:
		return newError(KindOperationFailed, op, unknownExceptionMessage, nil)
	}
}

// guard runs fn, translating its error and any panic escaping from the
// native layer. fn's deferred releases run before the panic is recovered.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverNative(op, r)
		}
	}()
	return translate(op, fn())
}
