package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/haproxy-sync/internal/topology"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testSnapshot() topology.Snapshot {
	return topology.Snapshot{
		"web": {
			Port: "80",
			Endpoints: map[string]topology.Endpoint{
				"c2": {Name: "c2", Address: "10.0.0.2:9000"},
				"c1": {Name: "c1", Address: "10.0.0.1:9000"},
			},
		},
		"api": {
			Port: "8080",
			Endpoints: map[string]topology.Endpoint{
				"c1": {Name: "c1", Address: "10.0.1.1:9000"},
			},
		},
	}
}

// TestRenderAndWrite tests rendering against the embedded default template
func TestRenderAndWrite(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "haproxy.cfg")
	renderer, err := NewFileRenderer("", dest, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, renderer.RenderAndWrite(testSnapshot()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	output := string(data)

	assert.Contains(t, output, "listen web")
	assert.Contains(t, output, "bind *:80")
	assert.Contains(t, output, "server c1 10.0.0.1:9000 check")
	assert.Contains(t, output, "server c2 10.0.0.2:9000 check")
	assert.Contains(t, output, "listen api")
	assert.Contains(t, output, "bind *:8080")

	// Services render in name order, backends in endpoint name order
	assert.Less(t, strings.Index(output, "listen api"), strings.Index(output, "listen web"))
	assert.Less(t, strings.Index(output, "server c1 10.0.0.1"), strings.Index(output, "server c2 10.0.0.2"))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

// TestRenderDeterministic tests that repeated renders of the same snapshot
// produce byte-identical output
func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "haproxy.cfg")
	renderer, err := NewFileRenderer("", dest, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, renderer.RenderAndWrite(testSnapshot()))
	first, err := os.ReadFile(dest)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, renderer.RenderAndWrite(testSnapshot()))
		again, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestRenderReplacesPriorContent tests that the destination is fully
// replaced, not appended to
func TestRenderReplacesPriorContent(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "haproxy.cfg")
	require.NoError(t, os.WriteFile(dest, []byte("stale configuration that must disappear"), 0644))

	renderer, err := NewFileRenderer("", dest, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, renderer.RenderAndWrite(testSnapshot()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale configuration")
}

// TestRenderEmptySnapshot tests that an empty topology still renders the
// static template sections
func TestRenderEmptySnapshot(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "haproxy.cfg")
	renderer, err := NewFileRenderer("", dest, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, renderer.RenderAndWrite(topology.Snapshot{}))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "defaults")
	assert.NotContains(t, string(data), "listen")
}

// TestRenderCustomTemplate tests the template file override
func TestRenderCustomTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "custom.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte("{{range .Services}}{{.Name}}:{{.Port}}\n{{end}}"), 0644))

	dest := filepath.Join(dir, "haproxy.cfg")
	renderer, err := NewFileRenderer(tmplPath, dest, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, renderer.RenderAndWrite(testSnapshot()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "api:8080\nweb:80\n", string(data))
}

// TestRenderWriteFailure tests that a write failure surfaces as an error
// and leaves no destination file behind
func TestRenderWriteFailure(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "missing", "haproxy.cfg")
	renderer, err := NewFileRenderer("", dest, testLogger(t))
	require.NoError(t, err)

	err = renderer.RenderAndWrite(testSnapshot())
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
