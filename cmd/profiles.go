package cmd

import (
	"context"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/models"
	"volunteer-hub/services"
)

const usersCollection = "users"

func profileFromRecord(r *core.Record) models.UserProfile {
	return models.UserProfile{
		ID:    r.Id,
		Name:  r.GetString("name"),
		Email: r.GetString("email"),
		Role:  models.Role(r.GetString("role")),
	}
}

func profileFromRow(row dbx.NullStringMap) models.UserProfile {
	return models.UserProfile{
		ID:    row["id"].String,
		Name:  row["name"].String,
		Email: row["email"].String,
		Role:  models.Role(row["role"].String),
	}
}

// syncProfiles mirrors every auth user into the document store on startup,
// catching up on changes made while the server was down.
func syncProfiles(ctx context.Context, app core.App, profiles *services.ProfileService, log *slog.Logger) {
	var rows []dbx.NullStringMap
	if err := app.DB().NewQuery("SELECT id, name, email, role FROM " + usersCollection).All(&rows); err != nil {
		log.Error("failed to read users for profile sync", sl.Err(err))
		return
	}

	batch := make([]models.UserProfile, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, profileFromRow(row))
	}
	synced := profiles.SyncAll(ctx, batch)
	log.Info("synced user profiles", slog.Int("synced", synced), slog.Int("total", len(rows)))
}

// guardRole rejects user record writes that set or change the role field
// unless a superuser makes them. The collection rules block the same
// writes; this keeps the mirror safe if those rules are edited.
func guardRole(e *core.RecordRequestEvent) error {
	if e.HasSuperuserAuth() {
		return e.Next()
	}
	before := ""
	if !e.Record.IsNew() {
		before = e.Record.Original().GetString(models.FieldRole)
	}
	if e.Record.GetString(models.FieldRole) != before {
		return apis.NewForbiddenError("Only a superuser can change roles", nil)
	}
	return e.Next()
}

// setupProfileHooks keeps users/{id} documents in step with the users
// collection. The record write is never failed by a mirror error.
func setupProfileHooks(app core.App, profiles *services.ProfileService, log *slog.Logger) {
	mirror := func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := profiles.Upsert(e.Request.Context(), profileFromRecord(e.Record)); err != nil {
			log.Error("failed to mirror user profile", slog.String("user_id", e.Record.Id), sl.Err(err))
		}
		return nil
	}

	app.OnRecordCreateRequest(usersCollection).BindFunc(guardRole)
	app.OnRecordUpdateRequest(usersCollection).BindFunc(guardRole)
	app.OnRecordCreateRequest(usersCollection).BindFunc(mirror)
	app.OnRecordUpdateRequest(usersCollection).BindFunc(mirror)
}
