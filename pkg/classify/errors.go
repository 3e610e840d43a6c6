package classify

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the pipeline can surface.
//
// A Kind is itself an error so it can be used as an errors.Is target:
//
//	if errors.Is(err, classify.EmptyRecording) { ... }
type Kind int

const (
	// PermissionDenied means microphone access was not granted.
	PermissionDenied Kind = iota + 1
	// DeviceUnavailable means the microphone is busy, missing or failed.
	DeviceUnavailable
	// NotRecording means stop was requested without an active capture.
	NotRecording
	// UnsupportedFormat means the recording cannot be converted.
	UnsupportedFormat
	// EmptyRecording means the recording holds no audio.
	EmptyRecording
	// ShapeMismatch means a tensor does not match the backend contract.
	ShapeMismatch
	// BackendUnavailable means the model is not loaded or the server is
	// unreachable or returned an error status.
	BackendUnavailable
	// InferenceError means the backend ran but produced no usable result.
	InferenceError
	// NetworkTimeout means the remote request exceeded its deadline.
	NetworkTimeout
)

var kindNames = map[Kind]string{
	PermissionDenied:   "PermissionDenied",
	DeviceUnavailable:  "DeviceUnavailable",
	NotRecording:       "NotRecording",
	UnsupportedFormat:  "UnsupportedFormat",
	EmptyRecording:     "EmptyRecording",
	ShapeMismatch:      "ShapeMismatch",
	BackendUnavailable: "BackendUnavailable",
	InferenceError:     "InferenceError",
	NetworkTimeout:     "NetworkTimeout",
}

// Kinds returns all kinds in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := PermissionDenied; k <= NetworkTimeout; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error implements the error interface.
func (k Kind) Error() string {
	return "classify: " + k.String()
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("classify: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("classify: unknown kind %q", b)
}

// Error is a typed pipeline failure.
type Error struct {
	// Kind is the failure category.
	Kind Kind
	// Op names the step that failed, e.g. "capture.start" or "remote.predict".
	Op string
	// Err is the underlying cause, if any.
	Err error
}

// NewError returns an *Error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf returns an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := "classify: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, if err carries one.
func KindOf(err error) (Kind, bool) {
	if e, ok := AsError(err); ok {
		return e.Kind, true
	}
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return 0, false
}

// Ensure returns err as an *Error. Errors that already carry a kind keep
// it; anything else is wrapped with the fallback kind and op. A nil err
// stays nil.
func Ensure(err error, fallback Kind, op string) error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	if k, ok := KindOf(err); ok {
		return &Error{Kind: k, Op: op}
	}
	return &Error{Kind: fallback, Op: op, Err: err}
}
