package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbopuffer/lambada/pkg/fetch"
	"github.com/turbopuffer/lambada/pkg/lambada"
)

func TestSelectVariants(t *testing.T) {
	all, err := selectVariants("")
	require.NoError(t, err)
	assert.Equal(t, lambada.Variants(), all)

	some, err := selectVariants(" de, ja,,de ")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "de", some[0].Name)
	assert.Equal(t, "ja", some[1].Name)

	_, err = selectVariants("de,xx")
	assert.ErrorIs(t, err, lambada.ErrUnknownVariant)
}

func TestPrefetchBundled(t *testing.T) {
	dir := t.TempDir()
	contents := `{"text": "one"}` + "\n" + `{"text": "two"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, lambada.BundledJapaneseFile), []byte(contents), 0o644))

	v, err := lambada.Lookup("ja")
	require.NoError(t, err)
	loader := lambada.NewLoader(fetch.New(t.TempDir(), fetch.WithOffline(true)), dir)

	n, err := prefetch(context.Background(), loader, v)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrefetchOfflineMiss(t *testing.T) {
	v, err := lambada.Lookup("en")
	require.NoError(t, err)
	loader := lambada.NewLoader(fetch.New(t.TempDir(), fetch.WithOffline(true)), t.TempDir())

	_, err = prefetch(context.Background(), loader, v)
	assert.ErrorIs(t, err, fetch.ErrOffline)
	assert.ErrorIs(t, err, lambada.ErrFetch)
}

func TestEvictBundledWithoutCache(t *testing.T) {
	v, err := lambada.Lookup("ja")
	require.NoError(t, err)
	assert.NoError(t, evict(fetch.New(t.TempDir()), v))
}
