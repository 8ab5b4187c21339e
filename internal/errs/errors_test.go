package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	assert.Equal(t, "[busy] lock wait", New(ErrKindBusy, "lock wait").Error())

	cause := errors.New("driver: bad connection")
	assert.Equal(t, "[connection_lost] transient fault: driver: bad connection",
		Wrap(ErrKindConnectionLost, "transient fault", cause).Error())
}

func TestKindOf_Chain(t *testing.T) {
	cause := errors.New("boom")
	inner := Wrap(ErrKindBusy, "inner", cause)
	outer := Wrap(ErrKindRetryExhausted, "gave up", inner)

	assert.Equal(t, ErrKindRetryExhausted, KindOf(outer), "outermost kind wins")
	assert.Equal(t, ErrKindBusy, KindOf(fmt.Errorf("ctx: %w", inner)))
	assert.Equal(t, ErrKindUnknown, KindOf(cause))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))

	assert.ErrorIs(t, outer, cause)
	var e *Error
	assert.ErrorAs(t, outer, &e)
}

func TestTransient(t *testing.T) {
	for k := ErrKindUnknown; k <= ErrKindClosed; k++ {
		want := k == ErrKindConnectionLost || k == ErrKindBusy
		assert.Equal(t, want, k.Transient(), k.String())
	}
	assert.True(t, IsTransient(New(ErrKindBusy, "x")))
	assert.False(t, IsTransient(New(ErrKindRetryExhausted, "x")))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		pred func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindTimeout, IsTimeout},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindPermissionDenied, IsPermissionDenied},
		{ErrKindConnectionLost, IsConnectionLost},
		{ErrKindBusy, IsBusy},
		{ErrKindRetryExhausted, IsRetryExhausted},
		{ErrKindClosed, IsClosed},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.True(t, tt.pred(New(tt.kind, "x")))
			assert.False(t, tt.pred(New(ErrKindUnknown, "x")))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}
