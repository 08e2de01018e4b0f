package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"volunteer-hub/config"
	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/models"
	"volunteer-hub/monitoring"
	"volunteer-hub/utils"
)

const publishTimeout = 3 * time.Second

// Publisher fans a message out to realtime clients.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// PubNubPublisher publishes through PubNub behind a circuit breaker, so a
// PubNub outage costs one fast failure per call instead of a timeout.
type PubNubPublisher struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubPublisher(cfg *config.Config, breaker *utils.CircuitBreaker) *PubNubPublisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	return &PubNubPublisher{
		pn:      pubnub.NewPubNub(pnConfig),
		breaker: breaker,
	}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message any) error {
	_, err := p.breaker.Execute(ctx, func() (any, error) {
		resp, st, err := p.pn.PublishWithContext(ctx).
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			return nil, err
		}
		if st.StatusCode >= 400 {
			return nil, fmt.Errorf("pubnub publish to %s: status %d", channel, st.StatusCode)
		}
		return resp, nil
	})
	return err
}

// NoopPublisher drops every message; used when PubNub is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// TaskNotifier tells clients watching an event that one of its tasks changed.
type TaskNotifier struct {
	pub     Publisher
	log     *slog.Logger
	monitor *monitoring.Monitor
	now     func() time.Time
}

func NewTaskNotifier(pub Publisher, monitor *monitoring.Monitor, log *slog.Logger) *TaskNotifier {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &TaskNotifier{
		pub:     pub,
		log:     log.With(slog.String("component", "task_notifier")),
		monitor: monitor,
		now:     time.Now,
	}
}

func EventChannel(eventID string) string {
	return "event-" + eventID
}

// TaskUpdated publishes a task_update message. The change it reports has
// already committed, so failures are logged and swallowed.
func (n *TaskNotifier) TaskUpdated(ctx context.Context, eventID, taskID, operation string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := models.TaskUpdate{
		Type:      models.TaskUpdateType,
		EventID:   eventID,
		TaskID:    taskID,
		Operation: operation,
		Timestamp: n.now(),
	}
	if err := n.pub.Publish(ctx, EventChannel(eventID), msg); err != nil {
		n.monitor.TrackNotification("failed")
		n.log.Warn("failed to publish task update",
			slog.String("event_id", eventID),
			slog.String("task_id", taskID),
			sl.Err(err),
		)
		return
	}
	n.monitor.TrackNotification("sent")
}
