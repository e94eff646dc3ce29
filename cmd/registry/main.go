// Command registry copies the location registry between its YAML form and
// the SQLite store used when REGISTRY_SOURCE=sqlite.
//
// Usage:
//
//	go run ./cmd/registry import -db data/habstatus.db -file config/locations.yaml
//	go run ./cmd/registry export -db data/habstatus.db > locations.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/hab-status-etl/internal/adapter/registryfile"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/sqlite"
)

const usage = "usage: registry <import|export> -db PATH [-file PATH]"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "registry:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet("registry "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "data/habstatus.db", "SQLite database path")
	filePath := fs.String("file", "config/locations.yaml", "registry YAML path (import only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "import":
		return importRegistry(ctx, *dbPath, *filePath, stdout)
	case "export":
		return exportRegistry(ctx, *dbPath, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func importRegistry(ctx context.Context, dbPath, filePath string, stdout io.Writer) error {
	h, err := registryfile.NewLoader(filePath).LoadHierarchy(ctx)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveHierarchy(ctx, h); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d regions, %d cities, %d beaches into %s\n",
		len(h.Regions()), len(h.Cities()), len(h.Beaches()), dbPath)
	return nil
}

func exportRegistry(ctx context.Context, dbPath string, stdout io.Writer) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	h, err := store.LoadHierarchy(ctx)
	if err != nil {
		return err
	}
	return registryfile.Encode(stdout, h)
}
