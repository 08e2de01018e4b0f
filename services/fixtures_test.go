package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/testutil"
	"volunteer-hub/models"
)

var baseTime = time.Date(2026, 4, 18, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*docstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	client, mr := testutil.NewRedis(t)
	return docstore.NewRedisStore(client, docstore.WithLogger(testutil.Logger())), mr
}

func seedEvent(t *testing.T, store *docstore.RedisStore, eventID string) {
	t.Helper()
	in := models.EventInput{Title: "Spring Fair " + eventID, StartAt: baseTime, EndAt: baseTime.Add(4 * time.Hour)}
	require.NoError(t, store.Set(context.Background(), models.EventPath(eventID), in.Fields("admin", baseTime), false))
}

// seedTask writes a task whose createdAt grows with order, so boards list
// tasks in seeding order.
func seedTask(t *testing.T, store *docstore.RedisStore, eventID, taskID string, slots, filled, order int) {
	t.Helper()
	in := models.TaskInput{Title: "Task " + taskID, Slots: slots}
	fields := in.Fields("admin", baseTime.Add(time.Duration(order)*time.Minute))
	fields[models.FieldFilledCount] = models.FilledCountFields(filled)[models.FieldFilledCount]
	require.NoError(t, store.Set(context.Background(), models.TaskPath(eventID, taskID), fields, false))
}

func seedSignup(t *testing.T, store *docstore.RedisStore, eventID, taskID, userID string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), models.SignupPath(eventID, taskID, userID), models.SignupFields(baseTime), false))
}

func seedProfile(t *testing.T, store *docstore.RedisStore, id, name, email string, role models.Role) {
	t.Helper()
	p := models.UserProfile{ID: id, Name: name, Email: email, Role: role}
	require.NoError(t, store.Set(context.Background(), models.UserPath(id), p.Fields(), false))
}

func readTaskDoc(t *testing.T, store *docstore.RedisStore, eventID, taskID string) models.VolunteerTask {
	t.Helper()
	doc, err := store.Get(context.Background(), models.TaskPath(eventID, taskID))
	require.NoError(t, err)
	task, err := models.TaskFromDocument(eventID, doc)
	require.NoError(t, err)
	return task
}

func signupIDs(t *testing.T, store *docstore.RedisStore, eventID, taskID string) []string {
	t.Helper()
	docs, err := store.List(context.Background(), docstore.Query{Collection: models.SignupsPath(eventID, taskID)})
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, message any) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}
