package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: "debug", Dir: dir, Name: "test"})
	require.NoError(t, err)

	cl := l.Component("pipeline")
	cl.Info().Str("symbol", "BTC").Msg("cycle complete")
	l.Debug().Msg("debug visible")
	l.Trace().Msg("trace hidden")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "test_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"component":"pipeline"`)
	assert.Contains(t, string(raw), `"symbol":"BTC"`)
	assert.Contains(t, string(raw), "debug visible")
	assert.NotContains(t, string(raw), "trace hidden")
}

func TestNewDefaultsToInfo(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: "shouting", Dir: dir})
	require.NoError(t, err)
	l.Debug().Msg("debug hidden")
	l.Info().Msg("info visible")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "fusion_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "info visible")
	assert.NotContains(t, string(raw), "debug hidden")
	assert.NoError(t, Nop().Close())
}
