package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCompiler_SucceedsOnBalancedSource(t *testing.T) {
	var c FakeCompiler
	res, err := c.Compile(context.Background(), "Console.WriteLine(1);", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []byte("Console.WriteLine(1);"), res.ArtifactBytes)
}

func TestFakeCompiler_FlagsUnbalancedBraces(t *testing.T) {
	var c FakeCompiler
	res, err := c.Compile(context.Background(), "if (true) {", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "COMPILE_ERROR", res.Diagnostics[0].Code)
}

func TestFakeCompiler_IgnoresBracesInsideStringLiteral(t *testing.T) {
	var c FakeCompiler
	res, err := c.Compile(context.Background(), `Console.WriteLine("{");`, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}
