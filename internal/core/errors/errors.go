package errors

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"
)

// Error kinds. A DomainError built by one of the constructors below matches
// its kind with errors.Is.
var (
	ErrMissingColumn     = errors.New("missing column")
	ErrResolution        = errors.New("duplicate resolution failed")
	ErrInvalidParentPath = errors.New("invalid parent path")
	ErrInvalidType       = errors.New("invalid item type")
	ErrPathNotFound      = errors.New("path not found")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrCyclicMove        = errors.New("cyclic move")
	ErrRemotePush        = errors.New("remote push failed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrRootImmutable     = errors.New("root node is immutable")
)

type DomainError struct {
	Code    ErrorCode
	Kind    error
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxColumns   = "columns"
	CtxGroup     = "group"
	CtxSession   = "session"
	CtxType      = "type"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a context value, wrapping foreign errors as internal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost DomainError, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

func kind(code ErrorCode, k error, msg string) *DomainError {
	return &DomainError{Code: code, Kind: k, Message: msg}
}

func MissingColumn(columns ...string) error {
	return kind(CodeValidationError, ErrMissingColumn,
		fmt.Sprintf("missing column(s): %s", strings.Join(columns, ", "))).
		WithContext(CtxColumns, columns)
}

func Resolution(groupKey, msg string) error {
	return kind(CodeConflict, ErrResolution, msg).WithContext(CtxGroup, groupKey)
}

func InvalidParentPath(path, msg string) error {
	return kind(CodeValidationError, ErrInvalidParentPath, msg).WithContext(CtxPath, path)
}

func InvalidType(raw string) error {
	return kind(CodeValidationError, ErrInvalidType, fmt.Sprintf("unrecognized item type %q", raw)).
		WithContext(CtxType, raw)
}

func PathNotFound(path string) error {
	return kind(CodeNotFound, ErrPathNotFound, "no node at path").WithContext(CtxPath, path)
}

func DuplicateName(path, msg string) error {
	return kind(CodeConflict, ErrDuplicateName, msg).WithContext(CtxPath, path)
}

func CyclicMove(source, destination string) error {
	return kind(CodeValidationError, ErrCyclicMove,
		fmt.Sprintf("cannot move %q under itself (%q)", source, destination)).
		WithContext(CtxPath, source)
}

func RemotePush(err error, msg string) error {
	de := kind(CodeUnavailable, ErrRemotePush, msg)
	de.Err = err
	return de
}

func SessionNotFound(session string) error {
	return kind(CodeNotFound, ErrSessionNotFound, "no tree for session").WithContext(CtxSession, session)
}

func RootImmutable(op string) error {
	return kind(CodeValidationError, ErrRootImmutable, "operation not allowed on the root node").
		WithContext(CtxOperation, op)
}
