package composables

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseTx_NoPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}

func TestInTx_NoPool(t *testing.T) {
	called := false
	err := InTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNoPool)
	require.False(t, called)
}

func TestInSavepoint_WithoutTxRunsDirectly(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := InSavepoint(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)

	require.NoError(t, InSavepoint(context.Background(), func(context.Context) error { return nil }))
}

func TestUseLogger(t *testing.T) {
	require.Nil(t, UseLogger(context.Background()))

	logger := logrus.New()
	ctx := WithLogger(context.Background(), logrus.NewEntry(logger))
	entry := UseLogger(ctx)
	require.NotNil(t, entry)
	require.Same(t, logger, entry.Logger)
}
