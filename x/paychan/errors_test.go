package paychan

import (
	"fmt"
	"testing"

	"github.com/iov-one/microchan/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		want Class
	}{
		"nil":               {nil, Internal},
		"signature":         {errors.Wrap(ErrInvalidSignature, "payer"), Authorization},
		"not a party":       {errors.Wrap(errors.ErrUnauthorized, "closer"), Authorization},
		"missing channel":   {errors.Wrap(errors.ErrNotFound, "chan"), NotFound},
		"stale sequence":    {ErrInvalidSequence, StateConflict},
		"no funds":          {errors.Wrap(errors.ErrInsufficientAmount, "deposit"), StateConflict},
		"duplicate dispute": {errors.ErrDuplicate, StateConflict},
		"field error":       {errors.Field("Amount", ErrInvalidAmount, "zero"), Validation},
		"multi error":       {errors.Append(errors.Field("ID", errors.ErrInput, "bad"), nil), Validation},
		"database":          {errors.ErrDatabase, Internal},
		"plain error":       {fmt.Errorf("boom"), Internal},
		"not configured":    {errors.Wrap(errors.ErrState, "config"), Internal},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassNames(t *testing.T) {
	assert.Equal(t, "validation", Validation.String())
	assert.Equal(t, "state_conflict", StateConflict.String())
	assert.Equal(t, "authorization", Authorization.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "internal", Internal.String())
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, uint32(1021), ErrDuplicateChannel.ABCICode())
	assert.Equal(t, uint32(1036), ErrDisputeNotOpen.ABCICode())
	assert.Equal(t, uint32(1028), errors.Code(errors.Wrap(ErrInvalidSignature, "x")))
}
