package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/testutil"
	"volunteer-hub/models"
)

func TestProfileService_UpsertInvalidatesRole(t *testing.T) {
	store, _ := newTestStore(t)
	roles := NewRoleService(store, time.Hour, testutil.Logger())
	profiles := NewProfileService(store, roles, testutil.Logger())
	ctx := context.Background()

	require.NoError(t, profiles.Upsert(ctx, models.UserProfile{ID: "u1", Name: "Uma", Email: "uma@example.com", Role: "parent"}))
	assert.False(t, roles.IsAdmin(ctx, "u1"))

	require.NoError(t, profiles.Upsert(ctx, models.UserProfile{ID: "u1", Name: "Uma", Email: "uma@example.com", Role: "Admin"}))
	assert.True(t, roles.IsAdmin(ctx, "u1"))

	doc, err := store.Get(ctx, models.UserPath("u1"))
	require.NoError(t, err)
	assert.Equal(t, "admin", doc.Fields[models.FieldRole])
}

func TestProfileService_SyncAll(t *testing.T) {
	store, _ := newTestStore(t)
	profiles := NewProfileService(store, NewRoleService(store, time.Minute, testutil.Logger()), testutil.Logger())

	n := profiles.SyncAll(context.Background(), []models.UserProfile{
		{ID: "u1", Name: "Uma"},
		{ID: ""},
		{ID: "u2", Name: "Ugo", Role: "superuser"},
	})
	assert.Equal(t, 2, n)

	p, err := store.Get(context.Background(), models.UserPath("u2"))
	require.NoError(t, err)
	assert.Equal(t, "parent", p.Fields[models.FieldRole])
}
