package orgunit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUnit_Rename(t *testing.T) {
	u := New("Digitale Overheid", TypeDirectie, nil)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.True(t, u.Rename("Digitale Samenleving", at))
	require.Equal(t, "Digitale Samenleving", u.Name)
	require.Equal(t, "Digitale Samenleving", u.Label)
	require.Equal(t, []PreviousName{{Name: "Digitale Overheid", Until: "2024-01-01"}}, u.PreviousNames)

	require.False(t, u.Rename("Digitale Samenleving", at))
	require.False(t, u.Rename("  ", at))
	require.Len(t, u.PreviousNames, 1)
}

func TestUnit_Dissolve(t *testing.T) {
	u := New("Oud", TypeAgentschap, nil)
	u.Dissolve(nil)
	require.False(t, u.IsActive)
	require.False(t, u.HasSuccessor())

	successor := uuid.New()
	u.Dissolve(&successor)
	require.True(t, u.HasSuccessor())
	require.Equal(t, successor, *u.SuccessorID)
}

func TestUnit_CloneIsDeep(t *testing.T) {
	parent := uuid.New()
	u := New("Unit", TypeDirectie, &parent)
	u.Abbreviations = []string{"U"}

	c := u.Clone()
	c.Abbreviations[0] = "X"
	*c.ParentID = uuid.New()

	require.Equal(t, "U", u.Abbreviations[0])
	require.Equal(t, parent, *u.ParentID)
}

func TestTypeFromRegistryName(t *testing.T) {
	got, ok := TypeFromRegistryName("ministerie")
	require.True(t, ok)
	require.Equal(t, TypeMinisterie, got)

	got, ok = TypeFromRegistryName("Politie en brandweer")
	require.True(t, ok)
	require.Equal(t, TypePolitie, got)

	_, ok = TypeFromRegistryName("Directie")
	require.False(t, ok)

	_, err := ParseType("nope")
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestClassificationNames(t *testing.T) {
	names := ClassificationNames([]Classification{{Name: "b"}, {Name: " a "}, {Name: "b"}, {Name: ""}})
	require.Equal(t, []string{"a", "b"}, names)
}

func TestCreateDTO_Ok(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dto := &CreateDTO{
			Name:          "  Ministerie van Financiën ",
			Type:          "Ministerie",
			Abbreviations: []string{" FIN ", ""},
			TOOI:          "https://identifier.overheid.nl/tooi/id/ministerie/mnre1090",
		}
		errs, ok := dto.Ok()
		require.True(t, ok, errs)

		u, err := dto.ToEntity()
		require.NoError(t, err)
		require.Equal(t, "Ministerie van Financiën", u.Name)
		require.Equal(t, TypeMinisterie, u.Type)
		require.Equal(t, []string{"FIN"}, u.Abbreviations)
		require.True(t, u.IsActive)
	})

	t.Run("invalid", func(t *testing.T) {
		dto := &CreateDTO{
			Type: "bogus",
			TOOI: "https://example.org/x",
			OIN:  "123",
		}
		errs, ok := dto.Ok()
		require.False(t, ok)
		require.Contains(t, errs, "Name")
		require.Contains(t, errs, "Type")
		require.Contains(t, errs, "TOOI")
		require.Contains(t, errs, "OIN")
		require.NotContains(t, errs, "_")
		require.Equal(t, "is required", errs["Name"])
		require.Equal(t, "must start with "+tooiPrefix, errs["TOOI"])
	})
}
