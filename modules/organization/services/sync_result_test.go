package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncResult_Add(t *testing.T) {
	a := SyncResult{Created: 1, Errors: []string{"a"}}
	b := SyncResult{Updated: 2, Unchanged: 1}
	c := SyncResult{Created: 3, Errors: []string{"c1", "c2"}}

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))
	require.Equal(t, left, right)
	require.Equal(t, SyncResult{Created: 4, Updated: 2, Unchanged: 1, Errors: []string{"a", "c1", "c2"}}, left)

	require.Equal(t, b, SyncResult{}.Add(b))
	require.Nil(t, SyncResult{}.Add(SyncResult{}).Errors)
}

func TestSyncResult_Helpers(t *testing.T) {
	r := SyncResult{Unchanged: 5}
	require.False(t, r.HasChanges())
	require.Equal(t, 5, r.Total())

	r = r.Add(SyncResult{Updated: 1, Errors: []string{"boom"}})
	require.True(t, r.HasChanges())
	require.True(t, r.HasErrors())
	require.Equal(t, 6, r.Total())
	require.Equal(t, "0 created, 1 updated, 5 unchanged, 1 errors", r.String())
}
