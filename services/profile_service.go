package services

import (
	"context"
	"fmt"
	"log/slog"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/models"
)

// ProfileService mirrors auth users into users/{id} documents, which is
// where rosters and role resolution read them from.
type ProfileService struct {
	store docstore.Writer
	roles *RoleService
	log   *slog.Logger
}

func NewProfileService(store docstore.Writer, roles *RoleService, log *slog.Logger) *ProfileService {
	return &ProfileService{
		store: store,
		roles: roles,
		log:   log.With(slog.String("component", "profile_service")),
	}
}

// Upsert replaces the stored profile and drops the cached role.
func (s *ProfileService) Upsert(ctx context.Context, p models.UserProfile) error {
	if p.ID == "" {
		return fmt.Errorf("upsert profile: empty user id")
	}
	p.Role = models.ParseRole(string(p.Role))

	if err := s.store.Set(ctx, models.UserPath(p.ID), p.Fields(), false); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	s.roles.Invalidate(p.ID)
	return nil
}

// SyncAll upserts every profile and returns how many were written. One
// failing profile does not stop the others.
func (s *ProfileService) SyncAll(ctx context.Context, profiles []models.UserProfile) int {
	synced := 0
	for _, p := range profiles {
		if err := s.Upsert(ctx, p); err != nil {
			s.log.Error("failed to sync profile", slog.String("user_id", p.ID), sl.Err(err))
			continue
		}
		synced++
	}
	return synced
}
