package specs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appspecs "github.com/bryanwahyu/qa-scanlog/internal/application/specs"
	"github.com/bryanwahyu/qa-scanlog/internal/config"
	scansdomain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/specs"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db"
)

func newService(t *testing.T) *appspecs.Service {
	t.Helper()
	store, err := db.Open(context.Background(), config.Database{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return appspecs.NewService(store.Specs)
}

func TestApply(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	list, err := svc.Apply(ctx, "", &domain.ModelSpec{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	_, err = svc.Apply(ctx, appspecs.ActionAdd, &domain.ModelSpec{Prefix: "  "})
	assert.ErrorIs(t, err, scansdomain.ErrInvalidInput)

	list, err = svc.Apply(ctx, appspecs.ActionAdd, &domain.ModelSpec{Prefix: " B2 ", PowerMin: 1, PowerMax: 2, PFMin: 0.5, RPMMin: 10, RPMMax: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B2", list[0].Prefix)

	_, err = svc.Apply(ctx, appspecs.ActionAdd, &domain.ModelSpec{Prefix: "A1", PowerMax: 5})
	require.NoError(t, err)

	list, err = svc.Apply(ctx, appspecs.ActionUpdate, &domain.ModelSpec{Prefix: "b2", PowerMin: 3, PowerMax: 4, PFMin: 0.7, RPMMin: 1, RPMMax: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A1", list[0].Prefix)
	assert.Equal(t, 3.0, list[1].PowerMin)

	list, err = svc.Apply(ctx, appspecs.ActionDelete, &domain.ModelSpec{Prefix: "A1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Apply(ctx, "truncate", &domain.ModelSpec{Prefix: "A1"})
	assert.EqualError(t, err, "Unknown action: truncate")
}
