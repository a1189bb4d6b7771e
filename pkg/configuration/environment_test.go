package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "ORGSYNC_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "cmd", "org-sync")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("ORGSYNC_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("ORGSYNC_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("ORGSYNC_TEST_ENV_LOAD"))
}

func TestParse_Defaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.parse())

	require.Equal(t, "https://organisaties.overheid.nl/archive/exportOO.xml", c.Registry.URL)
	require.Equal(t, 120*time.Second, c.Registry.Timeout)
	require.Equal(t, 2, c.Registry.Retries)
	require.Contains(t, c.Database.Opts, "dbname=orgsync")
}

func TestParse_RejectsInvalidRegistry(t *testing.T) {
	t.Setenv("REGISTRY_RETRIES", "50")

	c := &Configuration{}
	err := c.parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "REGISTRY_RETRIES")
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	require.Equal(t, logrus.PanicLevel, ParseLogLevel("silent"))
	require.Equal(t, logrus.ErrorLevel, ParseLogLevel("nonsense"))
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
