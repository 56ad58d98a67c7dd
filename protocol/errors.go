package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Decode failure kinds. Every failed decode attempt resolves to exactly
// one of these; none of them abort the pipeline. Marker misses are the
// common case in a continuous capture and carry no diagnostics.
var (
	ErrNoData         = errors.New("bit buffer holds no rows")
	ErrNoPreamble     = errors.New("preamble not found")
	ErrBadLength      = errors.New("row too short for frame")
	ErrSanityCheck    = errors.New("field sanity check failed")
	ErrIntegrityCheck = errors.New("integrity check failed")
)

// A DecodeError attaches frame diagnostics to a failure kind. It unwraps
// to its kind, so callers classify with errors.Is against the sentinels
// above.
type DecodeError struct {
	Kind   error
	Detail string

	// Raw holds the extracted frame bytes when the failure occurred past
	// extraction, for hex dumps. Never consulted for control flow.
	Raw []byte
}

func (e *DecodeError) Error() string {
	s := e.Kind.Error()
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if len(e.Raw) > 0 {
		s += " [" + hex.EncodeToString(e.Raw) + "]"
	}
	return s
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// Errf builds a DecodeError of the given kind with formatted detail.
func Errf(kind error, raw []byte, format string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
		Raw:    raw,
	}
}
