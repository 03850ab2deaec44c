package sqltable

import (
	"fmt"
	"time"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

const (
	defaultMaxOpenConns = 10
	defaultQueryTimeout = 30 * time.Second
)

// Config configures the SQL backend for one foreign table. Connection
// settings come from the server options, table settings from the table
// options; unrecognized options on either level are ignored.
type Config struct {
	// DSN is the lib/pq connection string. Required, server-level.
	DSN string

	// Table is the backing table name. Defaults to the descriptor's
	// table name.
	Table string

	// KeyColumn carries the row identity. Defaults to the first
	// declared column.
	KeyColumn string

	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int

	// QueryTimeout bounds each statement the backend issues.
	QueryTimeout time.Duration

	// MigrationsDir, when set, points at a directory of golang-migrate
	// SQL files applied before first use to bootstrap the backing
	// table.
	MigrationsDir string
}

// ParseConfig derives the backend configuration from a descriptor.
func ParseConfig(desc *fdw.Descriptor) (Config, error) {
	c := Config{
		Table:        desc.TableOptions.String("table", desc.Table),
		KeyColumn:    desc.TableOptions.String("key_column", ""),
		MaxOpenConns: desc.ServerOptions.Int("max_open_conns", defaultMaxOpenConns),
		QueryTimeout: desc.ServerOptions.Duration("query_timeout", defaultQueryTimeout),
	}

	c.DSN = desc.ServerOptions.String("dsn", desc.TableOptions.String("dsn", ""))
	if c.DSN == "" {
		return c, fmt.Errorf("dsn option is required for %s: %w", desc.QualifiedName(), fdw.ErrUnsupported)
	}

	if c.KeyColumn == "" {
		if len(desc.Columns) == 0 {
			return c, fmt.Errorf("table %s declares no columns: %w", desc.QualifiedName(), fdw.ErrUnsupported)
		}
		c.KeyColumn = desc.Columns[0].Name
	}
	if desc.ColumnIndex(c.KeyColumn) < 0 {
		return c, fmt.Errorf("key column %q not in %s: %w", c.KeyColumn, desc.QualifiedName(), fdw.ErrUnsupported)
	}

	c.MigrationsDir = desc.TableOptions.String("migrations_dir", desc.ServerOptions.String("migrations_dir", ""))

	return c, nil
}
