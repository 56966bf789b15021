package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "Stub.Fit")
		panic("bad candidate")
	}

	err := fit()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "Stub.Fit", panicErr.Operation)
	assert.Equal(t, "bad candidate", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in Stub.Fit: bad candidate", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "Stub.Fit")
		return nil
	}
	assert.NoError(t, fit())
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	fit := func() (err error) {
		defer Recover(&err, "Stub.Fit")
		err = original
		panic("panic after error")
	}

	err := fit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Stub.Fit")
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("returned error is passed through", func(t *testing.T) {
		original := fmt.Errorf("function error")
		err := SafeExecute("op", func() error { return original })
		assert.Same(t, original, err)
	})

	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("op", func() error {
			var m map[string]int
			m["boom"] = 1
			return nil
		})
		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "op", panicErr.Operation)
	})
}
