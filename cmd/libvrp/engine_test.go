package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultEngineIsShared(t *testing.T) {
	require.True(t, initDefault(2))
	e := defaultEngine()
	require.NotNil(t, e)
	require.Same(t, e, defaultEngine())
	require.False(t, initDefault(8))

	done := make(chan string, 1)
	call := e.GetRoutingLocations(`{`, nil, func(p string) { done <- p })
	call.Wait()
	require.Contains(t, <-done, `"code":"ValidationError"`)
}

func TestNewEngineIsIndependent(t *testing.T) {
	a, b := newEngine(1), newEngine(1)
	require.NotSame(t, a, b)
	require.NoError(t, a.Close())

	done := make(chan string, 1)
	b.ConvertToPragmatic("xml", []string{"x"}, nil, func(p string) { done <- p }).Wait()
	require.Contains(t, <-done, "E0005")
	require.NoError(t, b.Close())
}
