package topojson

import "fmt"

// DecodeError reports a malformed topology. Decoding never returns a partial
// collection together with a DecodeError.
type DecodeError struct {
	Object string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "topojson: "
	if e.Object != "" {
		msg += fmt.Sprintf("object %q: ", e.Object)
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrorf(object, format string, args ...any) *DecodeError {
	return &DecodeError{Object: object, Reason: fmt.Sprintf(format, args...)}
}
