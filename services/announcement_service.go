package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/models"
)

type AnnouncementService struct {
	store docstore.Store
	roles *RoleService
	log   *slog.Logger
	now   func() time.Time
}

func NewAnnouncementService(store docstore.Store, roles *RoleService, log *slog.Logger) *AnnouncementService {
	return &AnnouncementService{
		store: store,
		roles: roles,
		log:   log.With(slog.String("component", "announcement_service")),
		now:   time.Now,
	}
}

func (s *AnnouncementService) Post(ctx context.Context, actorID string, in models.AnnouncementInput) (models.Announcement, error) {
	const op = "services.AnnouncementService.Post"

	if err := s.roles.RequireAdmin(ctx, actorID); err != nil {
		return models.Announcement{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := models.Validate(in); err != nil {
		return models.Announcement{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	id, err := s.store.Add(ctx, models.AnnouncementsCollection, in.Fields(actorID, now))
	if err != nil {
		return models.Announcement{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("announcement posted", slog.String("announcement_id", id))
	return models.Announcement{
		ID:        id,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: now,
		CreatedBy: actorID,
	}, nil
}

func announcementsQuery() docstore.Query {
	return docstore.Query{
		Collection: models.AnnouncementsCollection,
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
	}
}

// List returns announcements newest first.
func (s *AnnouncementService) List(ctx context.Context) ([]models.Announcement, error) {
	docs, err := s.store.List(ctx, announcementsQuery())
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return decodeAll(s.log, docs, models.AnnouncementFromDocument), nil
}

func (s *AnnouncementService) ListenAnnouncements(ctx context.Context, fn func([]models.Announcement, error)) (docstore.Subscription, error) {
	return s.store.Subscribe(ctx, announcementsQuery(), func(snap docstore.Snapshot) {
		if snap.Err != nil {
			fn(nil, snap.Err)
			return
		}
		fn(decodeAll(s.log, snap.Docs, models.AnnouncementFromDocument), nil)
	})
}
