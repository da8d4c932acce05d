package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scuffcommander/pkg/action"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const generalOnlyConfig = `port: 9090
plugins:
  - type: General
`

const actionsYAML = `actions:
  wait:
    tag: Single
    content:
      tag: General
      content:
        tag: Delay
        content: 0
  brb:
    tag: If
    content:
      - query:
          tag: OBS
          content: CurrentProgramScene
        target: Live
      - tag: Single
        content:
          tag: OBS
          content:
            tag: ProgramSceneChange
            content: BRB
      - null
`

func newConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(generalOnlyConfig), 0o600))
	return dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scuffcommander version dev\n", out)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "config", "init", "--config-dir", dir, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))

	_, err = execute(t, "config", "init", "--config-dir", dir, "--force=false")
	assert.Error(t, err)

	out, err = execute(t, "config", "show", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8080")
	assert.Contains(t, out, "type: VTS")
}

func TestConfigSeal(t *testing.T) {
	dir := newConfigDir(t)

	_, err := execute(t, "config", "seal", "hunter2", "--config-dir", dir, "--secret", "")
	assert.ErrorContains(t, err, "no secret configured")

	secret, err := execute(t, "config", "secret")
	require.NoError(t, err)
	require.Len(t, secret, 65)

	out, err := execute(t, "config", "seal", "hunter2", "--config-dir", dir, "--secret", secret[:64])
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
}

func TestActionsLifecycle(t *testing.T) {
	dir := newConfigDir(t)
	docPath := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(actionsYAML), 0o644))

	out, err := execute(t, "actions", "import", docPath, "--config-dir", dir, "--resolve=false")
	require.NoError(t, err)
	assert.Equal(t, "Imported 2 actions\n", out)
	assert.FileExists(t, filepath.Join(dir, "actions.db"))

	out, err = execute(t, "actions", "list", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "General-Delay(0s)")
	assert.Contains(t, out, `if OBS-CurrentProgramScene == "Live"`)

	doc, err := readDocument(docPath)
	require.NoError(t, err)
	out, err = execute(t, "actions", "show", "brb", "--config-dir", dir, "--raw=true")
	require.NoError(t, err)
	assert.Equal(t, action.Describe("brb", doc.Actions["brb"]), out)

	out, err = execute(t, "actions", "export", "--config-dir", dir, "--format", "yaml", "--output", "")
	require.NoError(t, err)
	assert.Contains(t, out, "tag: ProgramSceneChange")

	out, err = execute(t, "run", "wait", "--config-dir", dir, "--file", "")
	require.NoError(t, err)
	assert.Equal(t, "Success\n", out)

	_, err = execute(t, "run", "brb", "--config-dir", dir, "--file", "")
	assert.ErrorContains(t, err, "OBS not configured")

	_, err = execute(t, "run", "missing", "--config-dir", dir, "--file", "")
	assert.ErrorContains(t, err, "action with ID missing not configured")

	out, err = execute(t, "actions", "delete", "wait", "--config-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "Deleted wait\n", out)
}

func TestEncodeDocument(t *testing.T) {
	doc, err := readDocument(writeTemp(t, "actions.yaml", actionsYAML))
	require.NoError(t, err)

	data, err := encodeDocument(doc, "json")
	require.NoError(t, err)
	again, err := readDocument(writeTemp(t, "actions.json", string(data)))
	require.NoError(t, err)
	assert.Equal(t, doc, again)

	_, err = encodeDocument(doc, "toml")
	assert.Error(t, err)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
