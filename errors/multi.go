package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If no non-nil error is provided, nil is returned. If only one non-nil
// error is provided, it is returned unchanged.
func Append(errs ...error) error {
	var flat []error
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if m, ok := e.(*multiErr); ok {
			flat = append(flat, m.errors...)
			continue
		}
		flat = append(flat, e)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &multiErr{errors: flat}
	}
}

// multiErr represents a collection of errors, for example all field
// validation failures of a single message.
type multiErr struct {
	errors []error
}

func (e *multiErr) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s", len(e.errors), strings.Join(msgs, "\n\t"))
}

// Unpack returns all errors clubbed together.
func (e *multiErr) Unpack() []error {
	return e.errors
}

// ABCICode returns the code of the first error, consistent with a fail
// fast approach.
func (e *multiErr) ABCICode() uint32 {
	return abciCode(e.errors[0])
}

type unpacker interface {
	Unpack() []error
}
