package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/replay"
	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

var fixtureDir = filepath.Join("..", "..", "internal", "replay", "testdata")

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := Execute(context.Background())
	return out.String(), err
}

func TestReplayFixtures(t *testing.T) {
	t.Setenv("FEASIBILITY_DB", filepath.Join(t.TempDir(), "cli.db"))
	paths, err := filepath.Glob(filepath.Join(fixtureDir, "*.json"))
	require.NoError(t, err)

	out, err := execute(t, "", append([]string{"replay", "--json=false", "--record"}, paths...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed")

	out, err = execute(t, "", "inspect", "--json=true", "--request", "req-manpower")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "success", list[0]["reason"])

	out, err = execute(t, "", "inspect", "--json=false", list[0]["session_id"].(string))
	require.NoError(t, err)
	assert.Contains(t, out, "manpower: 4 workers available, 5 required")
	assert.Contains(t, out, "evaluating -> advancing")
}

func TestReplayMismatchExitCode(t *testing.T) {
	f, err := replay.LoadFixture(filepath.Join(fixtureDir, "manpower_retry.json"))
	require.NoError(t, err)
	f.Expected.Reason = "attempts_exhausted"
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wrong.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = execute(t, "", "replay", "--json=false", "--record=false", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMismatch))
	assert.Equal(t, exitMismatch, exitCode(err))
}

func TestEvaluateFromStdin(t *testing.T) {
	out, err := execute(t, `{"manpower":{"total_workforce":9,"committed_workers":3,"required":5}}`, "evaluate", "--json=true")
	require.NoError(t, err)

	var v gate.Verdict
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.False(t, v.Feasible)
	assert.Len(t, v.Reasons, 5, "five domains missing")

	out, err = execute(t, `{"manpower":{"total_workforce":1,"committed_workers":0,"required":5}}`, "evaluate", "--json=false", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "NOT FEASIBLE")
	assert.Contains(t, out, "[insufficient_manpower] manpower: 1 workers available, 5 required")
}

func TestConfigErrorExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_attempts: 0\n"), 0o600))

	_, err := execute(t, "{}", "evaluate", "--config", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrConfig))
	assert.Equal(t, exitConfig, exitCode(err))
	configPath = ""
}

func TestTraceFlushedOnFailedReplay(t *testing.T) {
	t.Cleanup(func() {
		traceOut = false
		otel.SetTracerProvider(noop.NewTracerProvider())
	})
	f, err := replay.LoadFixture(filepath.Join(fixtureDir, "manpower_retry.json"))
	require.NoError(t, err)
	f.Expected.Reason = "no_more_alternatives"
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wrong.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	var spans bytes.Buffer
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&spans)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs([]string{"replay", "--trace", "--json=false", "--record=false", "--log-level", "error", path})

	err = Execute(context.Background())
	require.ErrorIs(t, err, errMismatch)
	assert.Contains(t, spans.String(), "orchestrator.Session.Run")
	assert.Nil(t, tracer)

	_, span := otel.Tracer("after").Start(context.Background(), "late")
	assert.False(t, span.IsRecording(), "provider is shut down")
	span.End()
}
