package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

func TestFakeSandbox_PersistentVariables(t *testing.T) {
	policy := types.DevelopmentPolicy()

	s := NewFakeSandbox()
	require.NoError(t, s.Load([]byte("int x = 10;"), nil))
	_, err := s.Invoke(context.Background(), policy)
	require.NoError(t, err)

	require.NoError(t, s.Load([]byte("Console.WriteLine(x + 5);"), nil))
	res, err := s.Invoke(context.Background(), policy)
	require.NoError(t, err)
	require.NotNil(t, res.ReturnValue)
	assert.Equal(t, "15", *res.ReturnValue)
}

func TestFakeSandbox_IsolationBetweenSandboxes(t *testing.T) {
	policy := types.DevelopmentPolicy()

	a := NewFakeSandbox()
	b := NewFakeSandbox()
	require.NoError(t, a.Load([]byte("int x = 10;"), nil))
	require.NoError(t, b.Load([]byte("int x = 10;"), nil))
	_, err := a.Invoke(context.Background(), policy)
	require.NoError(t, err)
	_, err = b.Invoke(context.Background(), policy)
	require.NoError(t, err)

	require.NoError(t, a.Load([]byte("Console.WriteLine(x);"), nil))
	resA, err := a.Invoke(context.Background(), policy)
	require.NoError(t, err)
	assert.Equal(t, "10", *resA.ReturnValue)

	require.NoError(t, b.Load([]byte("Console.WriteLine(x);"), nil))
	resB, err := b.Invoke(context.Background(), policy)
	require.NoError(t, err)
	assert.Equal(t, "10", *resB.ReturnValue)
}

func TestFakeSandbox_DisposeIsCollectible(t *testing.T) {
	s := NewFakeSandbox()
	assert.True(t, s.Alive())
	require.NoError(t, s.Dispose())
	assert.False(t, s.Alive())
	assert.NoError(t, s.Dispose()) // idempotent
}

func TestFakeSandbox_BlockedModuleRefused(t *testing.T) {
	s := NewFakeSandbox()
	err := s.LoadWithPolicy([]byte("int x = 1;"), []string{"System.IO"}, types.ProductionPolicy())
	assert.ErrorIs(t, err, ErrBlockedModule)
}

func TestFakeSandbox_InvokeAfterDisposeFails(t *testing.T) {
	s := NewFakeSandbox()
	require.NoError(t, s.Dispose())
	_, err := s.Invoke(context.Background(), types.DevelopmentPolicy())
	assert.ErrorIs(t, err, ErrDisposed)
}
