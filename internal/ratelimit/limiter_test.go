package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowConnectionRejectsAfterLimit(t *testing.T) {
	l, err := New("2-M", "100-M", nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, l.AllowConnection(ctx, "1.2.3.4"))
	require.True(t, l.AllowConnection(ctx, "1.2.3.4"))
	require.False(t, l.AllowConnection(ctx, "1.2.3.4"))
}

func TestAllowConnectionIsPerKey(t *testing.T) {
	l, err := New("1-M", "100-M", nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, l.AllowConnection(ctx, "1.2.3.4"))
	require.False(t, l.AllowConnection(ctx, "1.2.3.4"))
	require.True(t, l.AllowConnection(ctx, "5.6.7.8"))
}

func TestAllowCommandRejectsAfterLimit(t *testing.T) {
	l, err := New("100-M", "3-M", nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.True(t, l.AllowCommand(ctx, "session-1"))
	}
	require.False(t, l.AllowCommand(ctx, "session-1"))
}

func TestNewRejectsInvalidRateFormat(t *testing.T) {
	_, err := New("not-a-rate", "100-M", nil)
	require.Error(t, err)

	_, err = New("100-M", "not-a-rate", nil)
	require.Error(t, err)
}
