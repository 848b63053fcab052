package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Info("job.started", map[string]any{"analysisId": "abc", "attempt": 1})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "job.started", entry["msg"])
	assert.Equal(t, "abc", entry["analysisId"])
	assert.NotEmpty(t, entry["ts"])
}

func TestInitRespectsLevelAndDir(t *testing.T) {
	dir := t.TempDir()
	closeFn, err := Init(Options{Level: "warn", Dir: dir})
	require.NoError(t, err)

	Info("dropped", nil)
	Warn("kept", map[string]any{"k": "v"})
	closeFn()
	t.Cleanup(func() { SetOutput(os.Stdout) })

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.True(t, strings.Contains(string(data), `"msg":"kept"`))
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("nonsense").String())
	assert.Equal(t, "debug", parseLevel(" DEBUG ").String())
}
