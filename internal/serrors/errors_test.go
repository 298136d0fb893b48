package serrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_WrapsAndUnwraps(t *testing.T) {
	underlying := errors.New("missing value")
	err := NewConfigError("index.include", underlying)

	assert.Equal(t, "config error for field index.include: missing value", err.Error())
	assert.True(t, errors.Is(err, underlying))
	assert.False(t, err.Timestamp.IsZero())
}

func TestStoreUnavailableError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewStoreUnavailableError("graph", underlying)

	assert.Equal(t, "graph", err.Store)
	assert.Equal(t, "graph store unavailable: connection refused", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func TestExtractorError(t *testing.T) {
	underlying := errors.New("parse failed")
	err := NewExtractorError("src/a.ts", underlying)

	assert.Equal(t, "extraction failed for src/a.ts: parse failed", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func TestWriteRejectionError_WithAndWithoutUnderlying(t *testing.T) {
	withErr := NewWriteRejectionError("missing endpoint", errors.New("symbol not found"))
	assert.Equal(t, "row rejected: missing endpoint: symbol not found", withErr.Error())

	bare := NewWriteRejectionError("missing endpoint", nil)
	assert.Equal(t, "row rejected: missing endpoint", bare.Error())
}

func TestQueryError(t *testing.T) {
	underlying := errors.New("syntax error")
	err := NewQueryError("MATCH (n) RETURN n", underlying)

	assert.Contains(t, err.Error(), "syntax error")
	assert.Contains(t, err.Error(), "MATCH (n) RETURN n")
	assert.True(t, errors.Is(err, underlying))
}

func TestMultiError_FiltersNilsAndCollapsesSingle(t *testing.T) {
	err1 := errors.New("row 1 rejected")
	err2 := errors.New("row 2 rejected")

	multi := NewMultiError([]error{err1, nil, err2, nil})
	assert.Len(t, multi.Errors, 2)
	assert.Contains(t, multi.Error(), "2 errors")

	single := NewMultiError([]error{err1})
	assert.Equal(t, err1.Error(), single.Error())
}

func TestMultiError_AllNilReturnsNil(t *testing.T) {
	assert.Nil(t, NewMultiError([]error{nil, nil}))
	assert.Nil(t, NewMultiError(nil))
}

func TestMultiError_Unwrap(t *testing.T) {
	err1 := errors.New("a")
	err2 := errors.New("b")
	multi := NewMultiError([]error{err1, err2})

	unwrapped := multi.Unwrap()
	assert.Equal(t, []error{err1, err2}, unwrapped)
}
