package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: product not found",
		(&AppError{Code: CodeNotFound, Message: "product not found"}).Error())
	assert.Equal(t, "STORAGE_ERROR: write cart: disk full",
		(&AppError{Code: CodeStorage, Message: "write cart", Err: errors.New("disk full")}).Error())
	assert.Nil(t, (&AppError{}).Unwrap())
}

func TestConstructors(t *testing.T) {
	nf := NotFound("product", "42")
	assert.Equal(t, "product with id 42 not found", nf.Message)
	assert.ErrorIs(t, nf, ErrNotFound)

	in := InvalidInput("quantity is required")
	assert.Equal(t, http.StatusBadRequest, in.Status)
	assert.ErrorIs(t, in, ErrInvalidInput)

	cause := errors.New("quota exceeded")
	st := Storage("save cart", cause)
	assert.ErrorIs(t, st, ErrStorage)
	assert.ErrorIs(t, st, cause)
	assert.Equal(t, http.StatusServiceUnavailable, st.Status)
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrValidation, "product 7: empty name")
	assert.Equal(t, "product 7: empty name: validation failed", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"app error in chain", fmt.Errorf("add: %w", InvalidInput("bad quantity")), http.StatusBadRequest, CodeInvalidInput, "bad quantity"},
		{"not found hides detail", fmt.Errorf("lookup 9: %w", ErrNotFound), http.StatusNotFound, CodeNotFound, "resource not found"},
		{"conflict passes through", fmt.Errorf("cart changed: %w", ErrConflict), http.StatusConflict, CodeConflict, "cart changed: conflict"},
		{"capacity", fmt.Errorf("qty 500: %w", ErrCapacity), http.StatusUnprocessableEntity, CodeCapacity, "qty 500: quantity out of bounds"},
		{"validation", Wrap(ErrValidation, "bad id"), http.StatusUnprocessableEntity, CodeValidation, "bad id: validation failed"},
		{"storage hides cause", errors.Join(ErrStorage, errors.New("ECONNRESET")), http.StatusServiceUnavailable, CodeStorage, "cart storage is unavailable"},
		{"unavailable", ErrServiceUnavail, http.StatusServiceUnavailable, CodeServiceUnavailable, "service unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal, internalMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := Describe(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, message)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	seen := map[error]bool{}
	for _, c := range classes {
		assert.False(t, seen[c.sentinel], c.code)
		seen[c.sentinel] = true
	}
	assert.Len(t, seen, 7)
}
