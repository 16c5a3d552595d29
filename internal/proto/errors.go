package proto

import (
	"errors"
	"fmt"
)

// WireKind classifies codec failures.
type WireKind int

const (
	// BadFraming: the input does not start with the magic number.
	BadFraming WireKind = iota
	// IncompatibleVersion: the message version exceeds the preferred pair.
	IncompatibleVersion
	// Truncated: the input ended before the message was complete.
	Truncated
	// BadType: an unknown type tag was encountered.
	BadType
	// MessageTooBig: a length-limited field exceeds its 1-byte bound.
	MessageTooBig
)

func (k WireKind) String() string {
	switch k {
	case BadFraming:
		return "bad framing"
	case IncompatibleVersion:
		return "incompatible version"
	case Truncated:
		return "truncated"
	case BadType:
		return "bad type"
	case MessageTooBig:
		return "message too big"
	}
	return "unknown"
}

// WireError is the codec's error type.
type WireError struct {
	Kind WireKind
	Msg  string
}

func (e *WireError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func wireErr(kind WireKind, format string, args ...any) *WireError {
	return &WireError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsWireKind reports whether err is a WireError of the given kind.
func IsWireKind(err error, kind WireKind) bool {
	var we *WireError
	return errors.As(err, &we) && we.Kind == kind
}

// ProtoError is a request-level failure whose reason is surfaced to the
// client in an err response. Codec failures are never ProtoErrors.
type ProtoError struct {
	Reason string
}

func (e *ProtoError) Error() string {
	return e.Reason
}

// Errorf builds a ProtoError from a format string.
func Errorf(format string, args ...any) *ProtoError {
	return &ProtoError{Reason: fmt.Sprintf(format, args...)}
}
