package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/status"
	"volunteer-hub/internal/testutil"
	"volunteer-hub/models"
)

func newTestAnnouncementService(t *testing.T) *AnnouncementService {
	t.Helper()
	store, _ := newTestStore(t)
	seedProfile(t, store, "admin1", "Ada", "", models.RoleAdmin)
	return NewAnnouncementService(store, NewRoleService(store, time.Minute, testutil.Logger()), testutil.Logger())
}

func TestAnnouncementService_PostAndListNewestFirst(t *testing.T) {
	svc := newTestAnnouncementService(t)
	ctx := context.Background()

	now := baseTime
	svc.now = func() time.Time { return now }
	_, err := svc.Post(ctx, "admin1", models.AnnouncementInput{Title: "First", Message: "Welcome"})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = svc.Post(ctx, "admin1", models.AnnouncementInput{Title: "Second", Message: "Thanks"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)
	assert.Equal(t, "First", list[1].Title)
}

func TestAnnouncementService_PostRules(t *testing.T) {
	svc := newTestAnnouncementService(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, "parent1", models.AnnouncementInput{Title: "Hi", Message: "x"})
	assert.ErrorIs(t, err, status.ErrPermissionDenied)

	_, err = svc.Post(ctx, "admin1", models.AnnouncementInput{Title: "Hi"})
	assert.ErrorIs(t, err, status.ErrInvalidInput)
}

func TestAnnouncementService_Listen(t *testing.T) {
	svc := newTestAnnouncementService(t)
	ctx := context.Background()

	var mu sync.Mutex
	var titles []string
	sub, err := svc.ListenAnnouncements(ctx, func(list []models.Announcement, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		titles = titles[:0]
		for _, a := range list {
			titles = append(titles, a.Title)
		}
	})
	require.NoError(t, err)
	defer sub.Remove()

	_, err = svc.Post(ctx, "admin1", models.AnnouncementInput{Title: "Parking", Message: "Use lot B"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(titles) == 1 && titles[0] == "Parking"
	}, testutil.WaitFor, testutil.Tick)
}
