package subcmd_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/amonks/catalog/subcmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArg(t *testing.T) {
	sc := subcmd.New("sync-artist", "sync one artist").SetArg("id", "string", "spotify artist id")
	sc.SetOutput(io.Discard)

	require.NoError(t, sc.Parse([]string{"4Xx"}))
	assert.Equal(t, "4Xx", sc.Value())

	sc = subcmd.New("sync-artist", "sync one artist").SetArg("id", "string", "spotify artist id")
	sc.SetOutput(io.Discard)
	assert.ErrorContains(t, sc.Parse(nil), "expected one <id>")
}

func TestNoArg(t *testing.T) {
	sc := subcmd.New("progress", "report progress")
	verbose := sc.Bool("v", false, "verbose")
	require.NoError(t, sc.Parse([]string{"-v"}))
	assert.True(t, *verbose)

	sc = subcmd.New("progress", "report progress")
	assert.ErrorContains(t, sc.Parse([]string{"extra"}), "unexpected argument 'extra'")
}

func TestUsage(t *testing.T) {
	sc := subcmd.New("sync-artist", "sync one artist").SetArg("id", "string", "spotify artist id")
	sc.String("x", "", "an x")

	var buf bytes.Buffer
	sc.PrintUsage(&buf, "sync one artist")
	assert.Contains(t, buf.String(), "catalog sync-artist [flags] <id>")
	assert.Contains(t, buf.String(), "spotify artist id")
	assert.Contains(t, buf.String(), "an x")
}
