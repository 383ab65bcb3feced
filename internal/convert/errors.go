package convert

import (
	"fmt"

	"github.com/pkg/errors"
)

// UnknownFormatError is returned when neither the explicit format nor the
// file extension matches a registered converter.
type UnknownFormatError struct {
	Input string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("convert: unknown format %q", e.Input)
}

// UnavailableFormatError is returned when a format is known but its
// converter was compiled out of this build.
type UnavailableFormatError struct {
	Format     string
	Dependency string
}

func (e *UnavailableFormatError) Error() string {
	return fmt.Sprintf("convert: format %s is not available in this build (requires %s)", e.Format, e.Dependency)
}

// ConversionError wraps a failure to read a corrupt or unsupported source.
type ConversionError struct {
	Format string
	Cause  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert: %s: %v", e.Format, e.Cause)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

// conversionErrorf wraps err with a message into a ConversionError.
// A nil err produces a ConversionError carrying only the message.
func conversionErrorf(format string, err error, msg string, args ...any) *ConversionError {
	if err == nil {
		return &ConversionError{Format: format, Cause: errors.Errorf(msg, args...)}
	}
	return &ConversionError{Format: format, Cause: errors.Wrapf(err, msg, args...)}
}
