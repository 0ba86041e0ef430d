package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggingState() {
	mu.Lock()
	defer mu.Unlock()
	baseWriter = os.Stderr
	baseComponent = ""
	broadcaster = nil
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestInitSetsLevelAndComponent(t *testing.T) {
	t.Cleanup(resetLoggingState)

	Init(Config{Format: "json", Level: "debug", Component: "axengine"})

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Equal(t, "axengine", baseComponent)
	assert.NotNil(t, Broadcaster())
}

func TestParseLevelDefaults(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"DEBUG": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "parseLevel(%q)", input)
	}
}

func TestSelectWriterKnownFormats(t *testing.T) {
	assert.NotNil(t, selectWriter("json"))
	assert.NotNil(t, selectWriter("console"))
	assert.NotNil(t, selectWriter("auto"))
	assert.Equal(t, os.Stderr, selectWriter("unknown"))
}

func TestIsLevelEnabled(t *testing.T) {
	t.Cleanup(resetLoggingState)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	assert.True(t, IsLevelEnabled(zerolog.InfoLevel))
	assert.True(t, IsLevelEnabled(zerolog.WarnLevel))
	assert.False(t, IsLevelEnabled(zerolog.DebugLevel))

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	assert.True(t, IsLevelEnabled(zerolog.DebugLevel))
}

func TestWithRequestIDGeneratesWhenBlank(t *testing.T) {
	ctx, id := WithRequestID(nil, "")
	require.NotNil(t, ctx)
	assert.NotEmpty(t, id)

	got, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestWithRequestIDKeepsExplicitID(t *testing.T) {
	ctx, id := WithRequestID(nil, "custom-123")
	assert.Equal(t, "custom-123", id)
	got, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "custom-123", got)
}

func TestWithRequestIDTrimsWhitespace(t *testing.T) {
	_, id := WithRequestID(nil, "   ")
	assert.NotEmpty(t, id)
}

func TestRollingFileWriterCreatesAndWrites(t *testing.T) {
	t.Cleanup(resetLoggingState)

	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	Init(Config{Format: "json", Level: "info", FilePath: logFile, MaxSizeMB: 1})
	log.Info().Msg("test message")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRollingFileWriterRotatesPastMaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	w := &rollingFileWriter{path: path, maxBytes: 8}
	_, err := w.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second line that forces rotation\n"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "expected a rotated sibling file")
	_ = w.closeLocked()
}

func TestCompressAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log.20260101T000000")
	require.NoError(t, os.WriteFile(path, []byte("rotated contents"), 0o600))

	compressAndRemove(path)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "expected original rotated file removed")

	gz, err := os.Stat(path + ".gz")
	require.NoError(t, err)
	assert.Greater(t, gz.Size(), int64(0))
}
