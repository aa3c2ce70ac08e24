package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lifetimes/internal/accessor"
	"github.com/roach88/lifetimes/internal/config"
	"github.com/roach88/lifetimes/internal/kv"
	"github.com/roach88/lifetimes/internal/kv/postgres"
	"github.com/roach88/lifetimes/internal/store"
)

// KVOptions holds flags shared by the kv subcommands.
type KVOptions struct {
	*RootOptions
	Backend  string // memory | sqlite | postgres
	Database string
	DSN      string
	Default  string // JSON or bare string; used by get
}

// KVOutput is the JSON payload of the kv subcommands.
type KVOutput struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// NewKVCommand creates the kv command and its get, set and rm subcommands.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KVOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write persisted values",
		Long: `Read and write values through a persisted accessor. Values are stored
as JSON; arguments that are not valid JSON are stored as strings.

The backend is chosen with --backend or LIFETIMES_KV_BACKEND. The memory
backend does not outlive the command and is useful only for trying flags.

Examples:
  lifetimes kv set theme '"dark"'
  lifetimes kv get theme --default light
  lifetimes kv rm theme
  lifetimes kv get volume --backend postgres --dsn postgres://localhost/lifetimes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "key/value backend (memory|sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path (default from LIFETIMES_DB)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "Postgres DSN (default from LIFETIMES_POSTGRES_DSN)")

	get := &cobra.Command{
		Use:           "get <key>",
		Short:         "Print a value, or the default when absent",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKVGet(cmd.Context(), opts, args[0], cmd)
		},
	}
	get.Flags().StringVar(&opts.Default, "default", "", "value returned when the key is absent")

	set := &cobra.Command{
		Use:           "set <key> <value>",
		Short:         "Store a value",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKVSet(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	rm := &cobra.Command{
		Use:           "rm <key>",
		Short:         "Remove a value",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKVRemove(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.AddCommand(get, set, rm)
	return cmd
}

// openKV opens the configured backend. The returned close func is never nil.
func (o *KVOptions) openKV(ctx context.Context) (kv.Store, func() error, error) {
	cfg := o.settings()
	backend := o.Backend
	if backend == "" {
		backend = cfg.KVBackend
	}

	switch backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), func() error { return nil }, nil
	case config.BackendSQLite:
		path := o.Database
		if path == "" {
			path = cfg.DB
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendPostgres:
		dsn := o.DSN
		if dsn == "" {
			dsn = cfg.PostgresDSN
		}
		st, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func (o *KVOptions) persisted(ctx context.Context, key string, extra ...accessor.Option[any]) (*accessor.PersistedDefault[any], func() error, error) {
	st, closeFn, err := o.openKV(ctx)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open key/value store", err)
	}
	opts := append([]accessor.Option[any]{accessor.WithLogger[any](o.logger())}, extra...)
	p, err := accessor.NewPersistedDefault(st, key, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, WrapExitError(ExitCommandError, "invalid key", err)
	}
	return p, closeFn, nil
}

func runKVGet(ctx context.Context, opts *KVOptions, key string, cmd *cobra.Command) error {
	ctx = orBackground(ctx)
	var extra []accessor.Option[any]
	if cmd.Flags().Changed("default") {
		extra = append(extra, accessor.WithDefault[any](parseValue(opts.Default)))
	}
	p, closeFn, err := opts.persisted(ctx, key, extra...)
	if err != nil {
		return err
	}
	defer closeFn()

	value, ok, err := p.Get(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read value", err)
	}

	f := opts.formatter(cmd)
	if !ok {
		if f.Format == "json" {
			if err := f.Error("E_KEY_NOT_FOUND", "key not found", key); err != nil {
				return err
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("key not found: %s", key))
	}
	if f.Format == "json" {
		return f.Success(KVOutput{Key: key, Value: value, Found: true})
	}
	return writeValue(f.Writer, value)
}

func runKVSet(ctx context.Context, opts *KVOptions, key, raw string, cmd *cobra.Command) error {
	ctx = orBackground(ctx)
	p, closeFn, err := opts.persisted(ctx, key)
	if err != nil {
		return err
	}
	defer closeFn()

	value := parseValue(raw)
	var write *any
	if value != nil {
		write = &value
	}
	if err := p.Set(ctx, write); err != nil {
		return WrapExitError(ExitCommandError, "failed to write value", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(KVOutput{Key: key, Value: value, Found: true})
	}
	_, err = fmt.Fprintf(f.Writer, "set %s\n", key)
	return err
}

func runKVRemove(ctx context.Context, opts *KVOptions, key string, cmd *cobra.Command) error {
	ctx = orBackground(ctx)
	p, closeFn, err := opts.persisted(ctx, key)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := p.Clear(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to remove value", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(KVOutput{Key: key})
	}
	_, err = fmt.Fprintf(f.Writer, "removed %s\n", key)
	return err
}

// parseValue decodes raw as JSON, falling back to the raw string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func writeValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
