package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgsync/modules/organization/infrastructure/persistence"
	"github.com/iota-uz/orgsync/pkg/configuration"
)

var exportFixture = filepath.Join("..", "..", "modules", "organization", "infrastructure", "registry", "testdata", "export_small.xml")

// useMemory points every command at one shared in-memory repository and a config
// that needs no environment.
func useMemory(t *testing.T) *persistence.MemoryOrgUnitRepository {
	t.Helper()
	repo := persistence.NewMemoryOrgUnitRepository()
	prevConfig, prevStore := useConfig, openStore
	useConfig = func() *configuration.Configuration {
		return &configuration.Configuration{
			Registry: configuration.RegistryOptions{Timeout: 5 * time.Second},
		}
	}
	openStore = func(context.Context, *configuration.Configuration, string) (store, error) {
		return &memoryStore{repo: repo}, nil
	}
	t.Cleanup(func() {
		useConfig, openStore = prevConfig, prevStore
	})
	return repo
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, 1, exitCode(context.Canceled))
	require.Equal(t, exitFetch, exitCode(withCode(exitFetch, context.DeadlineExceeded)))
	require.Nil(t, withCode(exitDB, nil))

	wrapped := withCode(exitValidation, context.Canceled)
	require.ErrorIs(t, wrapped, context.Canceled)
	require.Equal(t, context.Canceled.Error(), wrapped.Error())
}
