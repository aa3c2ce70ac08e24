package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifetimes/internal/accessor"
)

func openStub(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, conn
}

func TestOpen_EnsuresTable(t *testing.T) {
	_, conn := openStub(t)

	require.NotEmpty(t, conn.execs)
	assert.Contains(t, strings.ToUpper(conn.execs[0]), "CREATE TABLE IF NOT EXISTS LIFETIMES_KV")
}

func TestOpen_Errors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, fmt.Errorf("open fail")
	})
	_, err := Open(context.Background(), "postgres://example")
	restore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open fail")

	db, conn := newStubDB()
	conn.failPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	_, err = Open(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := openStub(t)

	_, ok, err := s.Get(ctx, "money")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "money", []byte("2")))
	value, ok, err := s.Get(ctx, "money")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), value)

	require.NoError(t, s.Remove(ctx, "money"))
	_, ok, err = s.Get(ctx, "money")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ExecFailureSurfacesAsStoreError(t *testing.T) {
	ctx := context.Background()
	s, conn := openStub(t)
	money, err := accessor.NewPersistedDefault(s, "money", accessor.WithDefault(1))
	require.NoError(t, err)

	conn.failExec = true
	err = money.Put(ctx, 2)
	assert.ErrorIs(t, err, accessor.ErrStore)
	assert.Contains(t, err.Error(), "exec fail")
}

// TestStore_Integration runs against a real server when
// LIFETIMES_TEST_POSTGRES_DSN is set.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("LIFETIMES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIFETIMES_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	money, err := accessor.NewPersistedDefault(s, "integration-money", accessor.WithDefault(1))
	require.NoError(t, err)
	require.NoError(t, money.Put(ctx, 2))
	v, _, err := money.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	require.NoError(t, money.Clear(ctx))
	v, _, err = money.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
