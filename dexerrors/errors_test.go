package dexerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParts(t *testing.T) {
	assert.Equal(t, "C12", GetErrorCode(ErrCIPutCapacity))
	assert.Equal(t, "IPutCapacity", GetErrorName(ErrCIPutCapacity))
	assert.Equal(t, "C12_IPutCapacity", GetErrorCodeWithName(ErrCIPutCapacity))
	assert.Equal(t, "More than 3 non-zero field stores.", GetErrorDesc(ErrCIPutCapacity))
	assert.Equal(t, "No Error", GetErrorName(nil))
	assert.Equal(t, "", GetErrorCode(nil))
}

func TestWrappedErrors(t *testing.T) {
	err := fmt.Errorf("method 7: %w", ErrFSameClassForwarding)
	assert.Equal(t, "F1", GetErrorCode(err))
	assert.Equal(t, "F1_SameClassForwarding", GetErrorCodeWithName(err))
	assert.ErrorIs(t, err, ErrFSameClassForwarding)
}

func TestCodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, err := range All {
		code := GetErrorCode(err)
		require.NotEmpty(t, code, err.Error())
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true

		got, ok := Lookup(code)
		require.True(t, ok)
		assert.Equal(t, err, got)
	}
	_, ok := Lookup("Z9")
	assert.False(t, ok)
}

func TestGetErrorNames(t *testing.T) {
	names := GetErrorNames([]error{ErrSEmptyCode, ErrRUnresolvedField})
	assert.Equal(t, []string{"EmptyCode", "UnresolvedField"}, names)
}
