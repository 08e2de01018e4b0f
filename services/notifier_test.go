package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"volunteer-hub/config"
	"volunteer-hub/internal/testutil"
	"volunteer-hub/models"
	"volunteer-hub/monitoring"
	"volunteer-hub/utils"
)

func TestTaskNotifier_PublishesTaskUpdate(t *testing.T) {
	pub := new(MockPublisher)
	n := NewTaskNotifier(pub, monitoring.NewMonitor(), testutil.Logger())
	n.now = func() time.Time { return baseTime }

	want := models.TaskUpdate{
		Type:      models.TaskUpdateType,
		EventID:   "e1",
		TaskID:    "t1",
		Operation: OperationSignup,
		Timestamp: baseTime,
	}
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	}), "event-e1", want).Return(nil).Once()

	n.TaskUpdated(context.Background(), "e1", "t1", OperationSignup)
	pub.AssertExpectations(t)
}

func TestTaskNotifier_SurvivesCancelledCaller(t *testing.T) {
	pub := new(MockPublisher)
	n := NewTaskNotifier(pub, nil, testutil.Logger())

	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), "event-e1", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.TaskUpdated(ctx, "e1", "t1", OperationCancel)
	pub.AssertExpectations(t)
}

func TestTaskNotifier_SwallowsFailures(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("pubnub down"))

	n := NewTaskNotifier(pub, monitoring.NewMonitor(), testutil.Logger())
	assert.NotPanics(t, func() {
		n.TaskUpdated(context.Background(), "e1", "t1", OperationSignup)
	})
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestTaskNotifier_NilAndNoop(t *testing.T) {
	var n *TaskNotifier
	assert.NotPanics(t, func() { n.TaskUpdated(context.Background(), "e1", "t1", OperationSignup) })

	n = NewTaskNotifier(nil, nil, testutil.Logger())
	assert.NotPanics(t, func() { n.TaskUpdated(context.Background(), "e1", "t1", OperationSignup) })
}

func TestPubNubPublisher_OpenBreakerFailsFast(t *testing.T) {
	breaker := utils.NewCircuitBreaker(utils.Settings{Name: "pubnub", MinRequests: 1, FailureRatio: 0.5, Timeout: time.Hour})
	_, _ = breaker.Execute(context.Background(), func() (any, error) { return nil, errors.New("trip") })
	assert.Equal(t, utils.StateOpen, breaker.State())

	p := NewPubNubPublisher(&config.Config{PubNubUserID: "test", PubNubPublishKey: "pub", PubNubSubscribeKey: "sub"}, breaker)
	err := p.Publish(context.Background(), "event-e1", map[string]string{"type": "ping"})
	assert.ErrorIs(t, err, utils.ErrOpenState)
}

func TestEventChannel(t *testing.T) {
	assert.Equal(t, "event-abc", EventChannel("abc"))
}
