package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hab-status-etl/internal/adapter/registryfile"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/sqlite"
)

var registryFixture = filepath.Join("..", "..", "internal", "adapter", "registryfile", "testdata", "locations.yaml")

func TestRun_ImportThenExport(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "registry.db")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"import", "-db", db, "-file", registryFixture}, &out, io.Discard))
	assert.Contains(t, out.String(), "imported 1 regions, 2 cities, 3 beaches")

	out.Reset()
	require.NoError(t, run(ctx, []string{"export", "-db", db}, &out, io.Discard))

	exported, err := registryfile.Parse(&out)
	require.NoError(t, err)
	want, err := registryfile.NewLoader(registryFixture).LoadHierarchy(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Beaches(), exported.Beaches())
}

func TestRun_ExportEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	err := run(context.Background(), []string{"export", "-db", db}, io.Discard, io.Discard)
	require.ErrorIs(t, err, sqlite.ErrEmptyRegistry)
}

func TestRun_Usage(t *testing.T) {
	require.Error(t, run(context.Background(), nil, io.Discard, io.Discard))

	err := run(context.Background(), []string{"sync"}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "sync"`)
}
