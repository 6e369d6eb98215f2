package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbopuffer/lambada/pkg/lambada"
	"gopkg.in/yaml.v3"
)

func TestWriteVariants(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVariants(&buf, lambada.Variants()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(lambada.Variants())+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "default "))
	assert.Contains(t, lines[len(lines)-1], "bundled:"+lambada.BundledJapaneseFile)
}

func TestWriteInfo(t *testing.T) {
	v, err := lambada.Lookup("fr")
	require.NoError(t, err)
	want := lambada.Describe(v)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeInfo(&buf, want, "json"))
		var got lambada.Info
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, want, got)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeInfo(&buf, want, "yaml"))
		var got lambada.Info
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, want, got)
	})

	t.Run("unsupported", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, writeInfo(&buf, want, "toml"))
	})
}
