// Package main provides a small host-side utility around the adapter
// layer: it loads a catalog of foreign tables, binds the backend
// registry, and drives scan or smoke sequences against a chosen table.
// It doubles as the wiring example for embedding the driver in a host
// engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/txn2/fdw-bridge/pkg/catalog"
	"github.com/txn2/fdw-bridge/pkg/fdw"
	"github.com/txn2/fdw-bridge/pkg/host"
	"github.com/txn2/fdw-bridge/pkg/registry"
	"github.com/txn2/fdw-bridge/pkg/session"
)

// Version is the release version, set at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath  string
	table       string
	smoke       bool
	verbose     bool
	showVersion bool
}

func parseFlags() cliOptions {
	opts := cliOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to catalog file")
	flag.StringVar(&opts.table, "table", "", "Qualified table to scan (default: list bound tables)")
	flag.BoolVar(&opts.smoke, "smoke", false, "Run an insert/scan/delete round trip instead of a plain scan")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("fdw-bridge version %s\n", Version)
		return nil
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if opts.configPath == "" {
		return fmt.Errorf("a catalog is required, pass -config")
	}

	cat, err := catalog.Load(opts.configPath)
	if err != nil {
		return err
	}

	reg := registry.NewRegistry()
	registry.RegisterBuiltinFactories(reg)
	for _, tbl := range cat.Tables {
		desc, err := cat.Descriptor(tbl)
		if err != nil {
			return err
		}
		if err := reg.Bind(desc, tbl.Backend); err != nil {
			return err
		}
	}

	mgr := session.NewManager(reg, 0, logger)
	defer func() { _ = mgr.Close() }()
	driver := host.NewDriver(mgr, logger)

	if opts.table == "" {
		for _, name := range reg.Tables() {
			fmt.Println(name)
		}
		return nil
	}

	ctx := context.Background()
	sess := mgr.Open(ctx)
	defer func() { _ = mgr.CloseSession(sess) }()

	if opts.smoke {
		return smoke(ctx, driver, reg, sess, opts.table)
	}
	return scan(ctx, driver, sess, opts.table)
}

// scan drains one full scan sequence of the table and prints the rows.
func scan(ctx context.Context, driver *host.Driver, sessionID, table string) error {
	h, err := driver.BeginScan(ctx, sessionID, table, nil)
	if err != nil {
		return err
	}
	defer func() { _ = driver.EndScan(h) }()

	count := 0
	for {
		row, ok, err := driver.IterateScan(h)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Println(renderRow(row))
		count++
	}
	slog.Info("scan complete", "table", table, "rows", count)
	return nil
}

// smoke inserts a synthetic row, scans it back, and deletes it again,
// exercising the whole modify and scan surface against a live backend.
func smoke(ctx context.Context, driver *host.Driver, reg *registry.Registry, sessionID, table string) error {
	binding, err := reg.Resolve(table)
	if err != nil {
		return err
	}
	row := syntheticRow(binding.Descriptor)

	h, err := driver.BeginModify(ctx, sessionID, table)
	if err != nil {
		return err
	}
	if err := driver.ExecInsert(h, row); err != nil {
		_ = driver.EndModify(h)
		return fmt.Errorf("smoke insert: %w", err)
	}
	id, err := driver.Identity(h, row)
	if err != nil {
		_ = driver.EndModify(h)
		return err
	}
	if err := driver.EndModify(h); err != nil {
		return err
	}
	slog.Info("smoke row inserted", "table", table, "identity", id)

	if err := scan(ctx, driver, sessionID, table); err != nil {
		return err
	}

	h, err = driver.BeginModify(ctx, sessionID, table)
	if err != nil {
		return err
	}
	if err := driver.ExecDelete(h, id); err != nil {
		_ = driver.EndModify(h)
		return fmt.Errorf("smoke delete: %w", err)
	}
	if err := driver.EndModify(h); err != nil {
		return err
	}
	slog.Info("smoke row deleted", "table", table, "identity", id)
	return nil
}

// syntheticRow builds one schema-conformant row with a unique key.
func syntheticRow(desc *fdw.Descriptor) fdw.Row {
	row := make(fdw.Row, len(desc.Columns))
	for i, col := range desc.Columns {
		switch col.Type {
		case fdw.TypeText:
			row[i] = fdw.Text(fmt.Sprintf("smoke-%s-%d", col.Name, os.Getpid()))
		case fdw.TypeInt:
			row[i] = fdw.Int(int64(os.Getpid()))
		case fdw.TypeFloat:
			row[i] = fdw.Float(float64(os.Getpid()))
		case fdw.TypeBool:
			row[i] = fdw.Bool(true)
		case fdw.TypeBytes:
			row[i] = fdw.Bytes([]byte{0x01})
		default:
			row[i] = fdw.Null()
		}
	}
	return row
}

func renderRow(row fdw.Row) string {
	out := ""
	for i, cell := range row {
		if i > 0 {
			out += "\t"
		}
		out += cell.String()
	}
	return out
}
