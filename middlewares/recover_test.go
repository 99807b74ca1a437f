package middlewares_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/middlewares"
)

func runRecover(mw internal.Middleware, h internal.HandlerFunc) error {
	ctx := newTestContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/send", nil))
	return mw(h)(ctx)
}

func TestRecover(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("template exploded")

	tests := []struct {
		name  string
		value any
	}{
		{"string", "boom"},
		{"int", 42},
		{"error", sentinel},
		{"struct", struct{ Field string }{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := runRecover(middlewares.Recover(), func(internal.Context) error {
				panic(tt.value)
			})
			pe, ok := middlewares.AsPanicError(err)
			require.True(t, ok)
			require.Equal(t, tt.value, pe.Value)
			require.NotEmpty(t, pe.Stack)
			require.Equal(t, fmt.Sprintf("panic: %v", tt.value), pe.Error())
		})
	}

	t.Run("error panic value unwraps", func(t *testing.T) {
		t.Parallel()
		err := runRecover(middlewares.Recover(), func(internal.Context) error { panic(sentinel) })
		require.ErrorIs(t, err, sentinel)
	})

	t.Run("passes through without panic", func(t *testing.T) {
		t.Parallel()
		want := errors.New("plain")
		err := runRecover(middlewares.Recover(), func(internal.Context) error { return want })
		require.ErrorIs(t, err, want)
		require.False(t, middlewares.IsPanicError(err))
	})

	t.Run("stack capture can be disabled", func(t *testing.T) {
		t.Parallel()
		err := runRecover(middlewares.Recover(middlewares.WithRecoverDisablePrintStack()), func(internal.Context) error {
			panic("boom")
		})
		pe, ok := middlewares.AsPanicError(err)
		require.True(t, ok)
		require.Nil(t, pe.Stack)
	})

	t.Run("stack is truncated to the configured size", func(t *testing.T) {
		t.Parallel()
		err := runRecover(middlewares.Recover(middlewares.WithRecoverStackSize(64)), func(internal.Context) error {
			panic("boom")
		})
		pe, ok := middlewares.AsPanicError(err)
		require.True(t, ok)
		require.LessOrEqual(t, len(pe.Stack), 64)
	})

	t.Run("abort handler panics propagate", func(t *testing.T) {
		t.Parallel()
		require.PanicsWithValue(t, http.ErrAbortHandler, func() {
			_ = runRecover(middlewares.Recover(), func(internal.Context) error {
				panic(http.ErrAbortHandler)
			})
		})
	})
}
