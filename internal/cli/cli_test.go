package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/pilot/internal/config"
)

const defaultTestTimeout = 5 * time.Second

// testGlobals creates a Globals struct with captured stdout/stderr.
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format: format,
		Stdout: stdout,
		Stderr: stderr,
		Config: config.Default(),
	}, stdout, stderr
}

const helloGraph = `{
  "processes": [
    {"name": "main", "argument": 0, "actions": [
      {"op": "write", "channel": "main-greeter", "payload": "hi"},
      {"op": "read", "channel": "greeter-main"}
    ]},
    {"name": "greeter", "argument": 0, "actions": [
      {"op": "read", "channel": "main-greeter"},
      {"op": "write", "channel": "greeter-main", "payload": "hi back"}
    ]}
  ],
  "channels": [
    {"name": "main-greeter", "producer": "main", "consumer": "greeter"},
    {"name": "greeter-main", "producer": "greeter", "consumer": "main"}
  ]
}`

const deadlyEmbraceGraph = `{
  "processes": [
    {"name": "A", "argument": 0, "actions": [{"op": "read", "channel": "B-A"}]},
    {"name": "B", "argument": 1, "actions": [{"op": "read", "channel": "A-B"}]}
  ],
  "channels": [
    {"name": "A-B", "producer": "A", "consumer": "B"},
    {"name": "B-A", "producer": "B", "consumer": "A"}
  ]
}`

func writeTempGraph(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersionCmd_Run(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&VersionCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "pilot version")
	})

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, (&VersionCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), `"type":"version"`)
	})
}

func TestRunCmd_CleanRun(t *testing.T) {
	path := writeTempGraph(t, helloGraph)
	globals, stdout, _ := testGlobals("ndjson")

	err := (&RunCmd{Graph: path, Timeout: defaultTestTimeout}).Run(globals)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"run_end"`)
	assert.NotContains(t, stdout.String(), `"deadlock"`)
}

func TestRunCmd_DeadlyEmbrace(t *testing.T) {
	path := writeTempGraph(t, deadlyEmbraceGraph)
	globals, stdout, _ := testGlobals("ndjson")

	err := (&RunCmd{Graph: path, Timeout: defaultTestTimeout}).Run(globals)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), `"deadlock"`)
	assert.Contains(t, stdout.String(), "Conflicting channels create deadly embrace")
}

const readCycleGraph = `{
  "processes": [
    {"name": "P0", "argument": 0, "actions": [{"op": "read", "channel": "P2-P0"}]},
    {"name": "P1", "argument": 1, "actions": [{"op": "read", "channel": "P0-P1"}]},
    {"name": "P2", "argument": 2, "actions": [{"op": "read", "channel": "P1-P2"}]}
  ],
  "channels": [
    {"name": "P0-P1", "producer": "P0", "consumer": "P1"},
    {"name": "P1-P2", "producer": "P1", "consumer": "P2"},
    {"name": "P2-P0", "producer": "P2", "consumer": "P0"}
  ]
}`

func TestRunCmd_ReadCycle_TextFormatPrintsTrace(t *testing.T) {
	path := writeTempGraph(t, readCycleGraph)
	globals, stdout, stderr := testGlobals("text")

	err := (&RunCmd{Graph: path, Timeout: defaultTestTimeout}).Run(globals)
	require.Error(t, err)

	combined := stdout.String() + stderr.String()
	assert.Contains(t, combined, "Operation creates circular wait with above processes")
	assert.Contains(t, stderr.String(), "P0")
	assert.Contains(t, stderr.String(), "P1")
	assert.Contains(t, stderr.String(), "P2")
}

func TestInspectCmd_Run(t *testing.T) {
	path := writeTempGraph(t, helloGraph)

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, (&InspectCmd{Graph: path}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "registry", result["type"])
		assert.EqualValues(t, 2, result["processes"])
		assert.EqualValues(t, 2, result["channels"])
	})

	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&InspectCmd{Graph: path}).Run(globals))
		assert.Contains(t, stdout.String(), "Processes")
		assert.Contains(t, stdout.String(), "Channels")
	})
}

func TestAnalyzeCmd_Run(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.ndjson")
	lines := []string{
		`{"type":"event","process":"main","opcode":"Wri","raw":"C\t0\tWri\t1"}`,
		`{"type":"event","process":"greeter","opcode":"Rea","raw":"C\t1\tRea\t1"}`,
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0644))

	globals, stdout, _ := testGlobals("ndjson")
	require.NoError(t, (&AnalyzeCmd{File: logPath}).Run(globals))
	assert.Contains(t, stdout.String(), `"analysis"`)
}

func TestQueryCmd_FiltersByProcess(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.ndjson")
	lines := []string{
		`{"type":"event","process":"main","opcode":"Wri","raw":"C\t0\tWri\t1"}`,
		`{"type":"event","process":"greeter","opcode":"Rea","raw":"C\t1\tRea\t1"}`,
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0644))

	globals, stdout, _ := testGlobals("ndjson")
	err := (&QueryCmd{File: logPath, Process: []string{"greeter"}}).Run(globals)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "greeter")
	assert.NotContains(t, stdout.String(), `"process":"main"`)
}

func TestDoctorCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals("text")
	require.NoError(t, (&DoctorCmd{}).Run(globals))
	assert.Contains(t, stdout.String(), "pilot doctor")
}
