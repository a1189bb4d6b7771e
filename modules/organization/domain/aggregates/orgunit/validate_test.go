package orgunit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCheckPlacement(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		child     Type
		parent    Type
		hasParent bool
		wantErr   error
	}{
		{name: "ministerie as root", child: TypeMinisterie},
		{name: "ministerie under gemeente", child: TypeMinisterie, parent: TypeGemeente, hasParent: true, wantErr: ErrRootTypeWithParent},
		{name: "dg under ministerie", child: TypeDirectoraatGeneraal, parent: TypeMinisterie, hasParent: true},
		{name: "dg under directie", child: TypeDirectoraatGeneraal, parent: TypeDirectie, hasParent: true, wantErr: ErrIncompatibleParent},
		{name: "dg without parent", child: TypeDirectoraatGeneraal, wantErr: ErrParentRequired},
		{name: "directie under agentschap", child: TypeDirectie, parent: TypeAgentschap, hasParent: true},
		{name: "afdeling under afdeling", child: TypeAfdeling, parent: TypeAfdeling, hasParent: true},
		{name: "afdeling under waterschap", child: TypeAfdeling, parent: TypeWaterschap, hasParent: true, wantErr: ErrIncompatibleParent},
		{name: "inspectie under dg", child: TypeInspectie, parent: TypeDirectoraatGeneraal, hasParent: true},
		{name: "onderdeel anywhere", child: TypeOrganisatieonderdeel, parent: TypeAfdeling, hasParent: true},
		{name: "onderdeel as root", child: TypeOrganisatieonderdeel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPlacement(tc.child, tc.parent, tc.hasParent)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCheckNoCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := newTestUnit("root", nil)
	child := newTestUnit("child", &root.ID)
	grandchild := newTestUnit("grandchild", &child.ID)
	lookup := mapLookup{root.ID: root, child.ID: child, grandchild.ID: grandchild}

	t.Run("moving root under its grandchild", func(t *testing.T) {
		require.ErrorIs(t, CheckNoCycle(ctx, lookup, root.ID, &grandchild.ID), ErrCircularReference)
	})

	t.Run("self parent", func(t *testing.T) {
		require.ErrorIs(t, CheckNoCycle(ctx, lookup, child.ID, &child.ID), ErrCircularReference)
	})

	t.Run("valid move", func(t *testing.T) {
		require.NoError(t, CheckNoCycle(ctx, lookup, grandchild.ID, &root.ID))
	})

	t.Run("no parent", func(t *testing.T) {
		require.NoError(t, CheckNoCycle(ctx, lookup, child.ID, nil))
	})
}

func TestCheckSuccession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newTestUnit("a", nil)
	b := newTestUnit("b", nil)
	c := newTestUnit("c", nil)
	b.SuccessorID = &c.ID
	c.SuccessorID = &a.ID
	lookup := mapLookup{a.ID: a, b.ID: b, c.ID: c}

	require.ErrorIs(t, CheckSuccession(ctx, lookup, a.ID, a.ID), ErrCircularSuccession)
	require.ErrorIs(t, CheckSuccession(ctx, lookup, a.ID, b.ID), ErrCircularSuccession)

	c.SuccessorID = nil
	require.NoError(t, CheckSuccession(ctx, lookup, a.ID, b.ID))
}

type mapLookup map[uuid.UUID]*Unit

func (m mapLookup) GetByIDWithDeleted(_ context.Context, id uuid.UUID) (*Unit, error) {
	u, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func newTestUnit(name string, parentID *uuid.UUID) *Unit {
	u := New(name, TypeOrganisatieonderdeel, parentID)
	u.ID = uuid.New()
	return u
}
