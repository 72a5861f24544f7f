package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field wraps err with the name of the attribute it was found on. It
// returns nil if err is nil.
//
// Use Go naming for the field name, for example ChannelID or Amount, and
// dot notation for nested attributes, for example Service.QualityScore.
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, field: fieldName, desc: description}
}

// AppendField adds the error of a single field, if any, to errorsOrNil.
func AppendField(errorsOrNil error, fieldName string, fieldErrOrNil error) error {
	return Append(errorsOrNil, Field(fieldName, fieldErrOrNil, ""))
}

type fieldError struct {
	parent error
	field  string
	desc   string
}

func (err *fieldError) Error() string {
	if err.desc == "" {
		return fmt.Sprintf("field %q: %s", err.field, err.parent)
	}
	return fmt.Sprintf("field %q: %s: %s", err.field, err.desc, err.parent)
}

func (err *fieldError) Cause() error {
	return err.parent
}

func (err *fieldError) Field() string {
	return err.field
}

type fielder interface {
	Field() string
}

// FieldErrors returns all errors created for fieldName.
func FieldErrors(err error, fieldName string) []error {
	var res []error
	walkFields(err, func(name string, fe error) {
		if name == fieldName {
			res = append(res, fe)
		}
	})
	return res
}

// Fields returns the names of every field reported by err, in order and
// without repetition.
func Fields(err error) []string {
	var names []string
	seen := make(map[string]bool)
	walkFields(err, func(name string, _ error) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	return names
}

// walkFields calls fn for every field error found in err, descending into
// multi errors and wrapped causes. A field error is not descended into.
func walkFields(err error, fn func(string, error)) {
	for !isNilErr(err) {
		if f, ok := err.(fielder); ok {
			fn(f.Field(), err)
			return
		}
		if u, ok := err.(unpacker); ok {
			for _, e := range u.Unpack() {
				walkFields(e, fn)
			}
			return
		}
		c, ok := err.(causer)
		if !ok {
			return
		}
		err = c.Cause()
	}
}
