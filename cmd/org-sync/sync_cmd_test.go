package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSyncCmd_DryRunWritesNothing(t *testing.T) {
	repo := useMemory(t)

	out, err := execute(t, "", "sync", "--file", exportFixture, "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "Preview (dry run)")
	require.Contains(t, out, "created:   8")
	require.NotContains(t, out, "Apply these changes?")
	require.Zero(t, repo.Len())
}

func TestSyncCmd_ConfirmApplies(t *testing.T) {
	repo := useMemory(t)

	out, err := execute(t, "y\n", "sync", "--file", exportFixture)
	require.NoError(t, err)
	require.Contains(t, out, "Apply these changes? [y/N] ")
	require.Contains(t, out, "Applied")
	require.Equal(t, 8, repo.Len())

	out, err = execute(t, "", "sync", "--file", exportFixture)
	require.NoError(t, err)
	require.Contains(t, out, "unchanged: 8")
	require.Contains(t, out, "Nothing to apply.")
	require.NotContains(t, out, "Apply these changes?")
}

func TestSyncCmd_DeclineAborts(t *testing.T) {
	repo := useMemory(t)

	for _, answer := range []string{"n\n", "\n", ""} {
		out, err := execute(t, answer, "sync", "--file", exportFixture)
		require.NoError(t, err)
		require.Contains(t, out, "Aborted.")
	}
	require.Zero(t, repo.Len())
}

func TestSyncCmd_StructuredOutput(t *testing.T) {
	repo := useMemory(t)

	out, err := execute(t, "", "sync", "--file", exportFixture, "--type", "Ministerie", "--yes", "--format", "json")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, "apply", report["mode"])
	require.EqualValues(t, 6, report["created"])
	require.Equal(t, 6, repo.Len())

	out, err = execute(t, "", "sync", "--file", exportFixture, "--type", "Ministerie", "--yes", "--format", "yaml")
	require.NoError(t, err)
	report = nil
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, "dry_run", report["mode"])
	require.Equal(t, 6, report["unchanged"])
	require.Equal(t, 0, report["created"])
}

func TestSyncCmd_UsageErrors(t *testing.T) {
	useMemory(t)

	_, err := execute(t, "", "sync", "--file", exportFixture, "--format", "json")
	require.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "", "sync", "--file", exportFixture, "--format", "xml", "--yes")
	require.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "", "sync", "--file", exportFixture, "--url", "http://localhost/export.xml")
	require.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "", "sync", "--file", filepath.Join(t.TempDir(), "missing.xml"), "--dry-run")
	require.Equal(t, exitUsage, exitCode(err))
}

func TestSyncCmd_MalformedDocument(t *testing.T) {
	repo := useMemory(t)

	malformed := filepath.Join("..", "..", "modules", "organization", "infrastructure", "registry", "testdata", "malformed.xml")
	_, err := execute(t, "", "sync", "--file", malformed, "--yes")
	require.Equal(t, exitValidation, exitCode(err))
	require.Zero(t, repo.Len())
}

func TestSyncCmd_Download(t *testing.T) {
	repo := useMemory(t)
	export, err := os.ReadFile(exportFixture)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exportOO.xml" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(export)
	}))
	defer srv.Close()

	_, err = execute(t, "", "sync", "--url", srv.URL+"/exportOO.xml", "--yes")
	require.NoError(t, err)
	require.Equal(t, 8, repo.Len())

	_, err = execute(t, "", "sync", "--url", srv.URL+"/down.xml", "--yes")
	require.Equal(t, exitFetch, exitCode(err))
}

func TestSyncCmd_WritesMetricsTextfile(t *testing.T) {
	useMemory(t)
	path := filepath.Join(t.TempDir(), "org_sync.prom")

	_, err := execute(t, "", "sync", "--file", exportFixture, "--dry-run", "--metrics-file", path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `org_sync_runs_total{mode="dry_run",status="ok"}`)
}

func TestSyncCmd_NodeErrorsExitCode(t *testing.T) {
	repo := useMemory(t)
	misplaced := filepath.Join("..", "..", "modules", "organization", "infrastructure", "registry", "testdata", "export_misplaced.xml")
	path := filepath.Join(t.TempDir(), "org_sync.prom")

	out, err := execute(t, "", "sync", "--file", misplaced, "--yes")
	require.Equal(t, exitNodeErrors, exitCode(err))
	require.Contains(t, out, "Applied")
	require.Contains(t, out, "Error processing Amsterdam: root organization type cannot have a parent: Gemeente")
	require.Equal(t, 2, repo.Len())

	out, err = execute(t, "", "sync", "--file", misplaced, "--dry-run", "--metrics-file", path)
	require.Equal(t, exitNodeErrors, exitCode(err))
	require.Contains(t, out, "unchanged: 2")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `org_sync_runs_total{mode="dry_run",status="partial"}`)
}
