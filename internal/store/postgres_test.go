package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(schema)
	require.Len(t, stmts, 4)
	require.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS solves")
	for _, s := range stmts {
		require.NotContains(t, s, "--")
	}
}

func TestListSolvesQuery(t *testing.T) {
	q, args := listSolvesQuery("", "", 10)
	require.NotContains(t, q, "WHERE")
	require.Contains(t, q, "LIMIT $1")
	require.Equal(t, []any{10}, args)

	q, args = listSolvesQuery("failed", "abc", 5)
	require.Contains(t, q, "status=$1")
	require.Contains(t, q, "WHERE id=$2")
	require.Contains(t, q, "LIMIT $3")
	require.Equal(t, []any{"failed", "abc", 5}, args)
}

func TestNullIfEmpty(t *testing.T) {
	require.Nil(t, nullIfEmpty(""))
	require.Equal(t, "x", nullIfEmpty("x"))
}
