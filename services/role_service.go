package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/internal/status"
	"volunteer-hub/models"
)

type roleEntry struct {
	role    models.Role
	expires time.Time
}

// RoleService resolves a user's role from their profile document. Anything
// short of a readable admin profile resolves to parent.
type RoleService struct {
	store docstore.Reader
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]roleEntry
}

func NewRoleService(store docstore.Reader, ttl time.Duration, log *slog.Logger) *RoleService {
	return &RoleService{
		store: store,
		ttl:   ttl,
		log:   log.With(slog.String("component", "role_service")),
		now:   time.Now,
		cache: make(map[string]roleEntry),
	}
}

func (s *RoleService) Resolve(ctx context.Context, userID string) models.Role {
	if userID == "" {
		return models.RoleParent
	}

	s.mu.RLock()
	entry, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		return entry.role
	}

	doc, err := s.store.Get(ctx, models.UserPath(userID))
	switch {
	case errors.Is(err, status.ErrNotFound):
		s.remember(userID, models.RoleParent)
		return models.RoleParent
	case err != nil:
		// not cached, the next call retries the lookup
		s.log.Warn("role lookup failed, defaulting to parent", slog.String("user_id", userID), sl.Err(err))
		return models.RoleParent
	}

	profile, err := models.ProfileFromDocument(doc)
	if err != nil {
		s.log.Error("malformed profile, defaulting to parent", slog.String("user_id", userID), sl.Err(err))
		s.remember(userID, models.RoleParent)
		return models.RoleParent
	}
	s.remember(userID, profile.Role)
	return profile.Role
}

func (s *RoleService) remember(userID string, role models.Role) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[userID] = roleEntry{role: role, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

// Invalidate drops the cached role of userID.
func (s *RoleService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

func (s *RoleService) IsAdmin(ctx context.Context, userID string) bool {
	return s.Resolve(ctx, userID) == models.RoleAdmin
}

// RequireAdmin returns status.ErrPermissionDenied unless userID is an admin.
func (s *RoleService) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: not signed in", status.ErrPermissionDenied)
	}
	if !s.IsAdmin(ctx, userID) {
		return fmt.Errorf("%w: admin role required", status.ErrPermissionDenied)
	}
	return nil
}
