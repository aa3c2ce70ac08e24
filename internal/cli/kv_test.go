package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kvArgs(db string, args ...string) []string {
	return append(args, "--backend", "sqlite", "--db", db)
}

func TestKVCommandSetGetRemove(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kv.db")

	out, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "set", "theme", `"dark"`)...)
	require.NoError(t, err)
	assert.Contains(t, out, "set theme")

	out, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "theme")...)
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out)

	_, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "rm", "theme")...)
	require.NoError(t, err)

	_, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "theme")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKVCommandGetDefault(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kv.db")

	out, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "volume", "--default", "11")...)
	require.NoError(t, err)
	assert.Equal(t, "11\n", out)

	_, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "set", "volume", "3")...)
	require.NoError(t, err)

	out, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "volume", "--default", "11")...)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestKVCommandSetNullRemoves(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kv.db")

	_, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "set", "money", "5")...)
	require.NoError(t, err)
	_, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "set", "money", "null")...)
	require.NoError(t, err)

	out, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "money", "--default", "1")...)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "get", "money")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKVCommandJSONValues(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kv.db")

	_, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), kvArgs(db, "set", "prefs", `{"font":"mono","size":12}`)...)
	require.NoError(t, err)

	out, err := execute(t, NewKVCommand(&RootOptions{Format: "json"}), kvArgs(db, "get", "prefs")...)
	require.NoError(t, err)

	var data KVOutput
	resp := decodeResponse(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, data.Found)
	assert.Equal(t, map[string]any{"font": "mono", "size": 12.0}, data.Value)
}

func TestKVCommandMemoryBackend(t *testing.T) {
	out, err := execute(t, NewKVCommand(&RootOptions{Format: "json"}), "get", "k", "--backend", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_KEY_NOT_FOUND", resp.Error.Code)
}

func TestKVCommandUnknownBackend(t *testing.T) {
	_, err := execute(t, NewKVCommand(&RootOptions{Format: "text"}), "get", "k", "--backend", "redis")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown backend "redis"`)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "plain", parseValue("plain"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, 42.0, parseValue("42"))
	assert.Equal(t, true, parseValue("true"))
	assert.Nil(t, parseValue("null"))
}
