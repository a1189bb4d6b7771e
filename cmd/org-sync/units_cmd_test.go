package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitsCmd_CreateShowList(t *testing.T) {
	useMemory(t)

	ministry := createUnit(t, "--name", "Ministerie van Testzaken", "--type", "ministerie", "--abbr", "MinTZ")
	directie := createUnit(t, "--name", "Directie Proeven", "--type", "directie", "--parent", ministry.ID)
	require.Equal(t, ministry.ID, directie.ParentID)

	out, err := execute(t, "", "units", "show", directie.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Ministerie van Testzaken > Directie Proeven")
	require.Contains(t, out, "Directie (directie)")

	out, err = execute(t, "", "units", "list", "--roots", "--format", "json")
	require.NoError(t, err)
	var roots []unitView
	require.NoError(t, json.Unmarshal([]byte(out), &roots))
	require.Len(t, roots, 1)
	require.Equal(t, []string{"MinTZ"}, roots[0].Abbreviations)

	out, err = execute(t, "", "units", "list", "--parent", ministry.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Directie Proeven")
	require.NotContains(t, out, "Ministerie van Testzaken (MinTZ)")

	out, err = execute(t, "", "units", "search", "proeven")
	require.NoError(t, err)
	require.Contains(t, out, "Directie Proeven")

	out, err = execute(t, "", "units", "descendants", ministry.ID, "--format", "json")
	require.NoError(t, err)
	var below []unitView
	require.NoError(t, json.Unmarshal([]byte(out), &below))
	require.Len(t, below, 1)
	require.Equal(t, directie.ID, below[0].ID)
}

func TestUnitsCmd_ListEmpty(t *testing.T) {
	useMemory(t)

	out, err := execute(t, "", "units", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No organization units.")

	_, err = execute(t, "", "units", "list", "--type", "kantoor")
	require.Equal(t, exitUsage, exitCode(err))
}

func TestUnitsCmd_ValidationExitCodes(t *testing.T) {
	useMemory(t)

	_, err := execute(t, "", "units", "create", "--name", "Zwevende directie", "--type", "directie")
	require.Equal(t, exitValidation, exitCode(err))

	_, err = execute(t, "", "units", "create", "--name", "X", "--type", "kantoor")
	require.Equal(t, exitValidation, exitCode(err))

	_, err = execute(t, "", "units", "show", "not-a-uuid")
	require.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "", "units", "show", "6f1d3c52-93a4-4a0c-9a36-4d2a4f0e0b11")
	require.Equal(t, exitValidation, exitCode(err))

	gemeente := createUnit(t, "--name", "Testdorp", "--type", "gemeente")
	_, err = execute(t, "", "units", "move", gemeente.ID)
	require.Equal(t, exitUsage, exitCode(err))
	_, err = execute(t, "", "units", "move", gemeente.ID, "--root", "--parent", gemeente.ID)
	require.Equal(t, exitUsage, exitCode(err))
}

func TestUnitsCmd_MoveRenameDissolve(t *testing.T) {
	useMemory(t)

	a := createUnit(t, "--name", "Ministerie A", "--type", "ministerie")
	b := createUnit(t, "--name", "Ministerie B", "--type", "ministerie")
	d := createUnit(t, "--name", "Directie Wisselend", "--type", "directie", "--parent", a.ID)

	out, err := execute(t, "", "units", "move", d.ID, "--parent", b.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Moved Directie Wisselend")

	_, err = execute(t, "", "units", "move", d.ID, "--root")
	require.Equal(t, exitValidation, exitCode(err))

	out, err = execute(t, "", "units", "rename", d.ID, "Directie", "Vast", "--format", "json")
	require.NoError(t, err)
	var renamed unitView
	require.NoError(t, json.Unmarshal([]byte(out), &renamed))
	require.Equal(t, "Directie Vast", renamed.Name)
	require.Len(t, renamed.PreviousNames, 1)
	require.Equal(t, "Directie Wisselend", renamed.PreviousNames[0].Name)

	out, err = execute(t, "", "units", "dissolve", a.ID, "--successor", b.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Dissolved Ministerie A")

	out, err = execute(t, "", "units", "show", a.ID, "--format", "json")
	require.NoError(t, err)
	var detail unitDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	require.Equal(t, "dissolved", detail.Status)
	require.Len(t, detail.SuccessorChain, 1)
	require.Equal(t, b.ID, detail.SuccessorChain[0].ID)

	out, err = execute(t, "", "units", "show", b.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Ministerie A")
}

func TestUnitsCmd_DeleteRestorePurge(t *testing.T) {
	repo := useMemory(t)

	parent := createUnit(t, "--name", "Gemeente Proef", "--type", "gemeente")
	child := createUnit(t, "--name", "Afdeling Burgerzaken", "--type", "afdeling", "--parent", parent.ID)

	_, err := execute(t, "", "units", "delete", parent.ID)
	require.Equal(t, exitValidation, exitCode(err))

	_, err = execute(t, "", "units", "purge", child.ID, "--yes")
	require.Equal(t, exitValidation, exitCode(err))

	out, err := execute(t, "", "units", "delete", child.ID)
	require.NoError(t, err)
	require.Contains(t, out, child.ID+" deleted")

	out, err = execute(t, "", "units", "list", "--include-deleted", "--format", "json")
	require.NoError(t, err)
	var all []unitView
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 2)

	out, err = execute(t, "", "units", "restore", child.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Restored Afdeling Burgerzaken")

	_, err = execute(t, "", "units", "delete", child.ID)
	require.NoError(t, err)

	out, err = execute(t, "n\n", "units", "purge", child.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Aborted.")
	require.Equal(t, 2, repo.Len())

	out, err = execute(t, "y\n", "units", "purge", child.ID, "--format", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "status: purged")
	require.Equal(t, 1, repo.Len())
}

func TestUnitsCmd_SyncedUnitsAreProtected(t *testing.T) {
	useMemory(t)

	_, err := execute(t, "", "sync", "--file", exportFixture, "--type", "Ministerie", "--yes")
	require.NoError(t, err)

	out, err := execute(t, "", "units", "list", "--type", "ministerie", "--format", "json")
	require.NoError(t, err)
	var ministries []unitView
	require.NoError(t, json.Unmarshal([]byte(out), &ministries))
	require.NotEmpty(t, ministries)

	out, err = execute(t, "", "units", "search", "Identiteit", "--format", "json")
	require.NoError(t, err)
	var hits []unitView
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	var leaf unitView
	for _, h := range hits {
		if h.Name == "Afdeling Identiteit & Toegang" {
			leaf = h
		}
	}
	require.NotEmpty(t, leaf.ID)
	require.Empty(t, leaf.TOOI)

	// nested registry units carry no TOOI and may be removed by hand
	_, err = execute(t, "", "units", "delete", leaf.ID)
	require.NoError(t, err)

	for _, m := range ministries {
		if m.TOOI == "" {
			continue
		}
		_, err = execute(t, "", "units", "delete", m.ID)
		require.Equal(t, exitValidation, exitCode(err))
	}
}

func createUnit(t *testing.T, args ...string) unitView {
	t.Helper()
	out, err := execute(t, "", append([]string{"units", "create", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var v unitView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.NotEmpty(t, v.ID)
	return v
}
