package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/status"
	"volunteer-hub/models"
	"volunteer-hub/monitoring"
)

// BoardSource reads event documents and streams their tasks.
type BoardSource interface {
	docstore.Reader
	docstore.Subscriber
}

type boardEntry struct {
	board    *TaskBoard
	lastUsed time.Time
}

// BoardRegistry shares one live TaskBoard per event between all requests.
// Boards nobody asked for within the idle TTL are stopped but keep their
// cache, so the next request restarts them without a blank board. Boards
// parked for another idle TTL are closed and forgotten.
type BoardRegistry struct {
	ctx     context.Context
	src     BoardSource
	monitor *monitoring.Monitor
	log     *slog.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	boards map[string]*boardEntry
}

// NewBoardRegistry creates a registry whose boards live at most as long
// as ctx.
func NewBoardRegistry(ctx context.Context, src BoardSource, idleTTL time.Duration, monitor *monitoring.Monitor, log *slog.Logger) *BoardRegistry {
	return &BoardRegistry{
		ctx:     ctx,
		src:     src,
		monitor: monitor,
		log:     log.With(slog.String("component", "board_registry")),
		idleTTL: idleTTL,
		now:     time.Now,
		boards:  make(map[string]*boardEntry),
	}
}

// Board returns the live board of eventID, starting it if needed. A board
// is only created for an event that exists.
func (r *BoardRegistry) Board(ctx context.Context, eventID string) (*TaskBoard, error) {
	if eventID == "" {
		return nil, fmt.Errorf("board: %w: event id required", status.ErrInvalidInput)
	}
	r.mu.Lock()
	_, known := r.boards[eventID]
	r.mu.Unlock()
	if !known {
		if _, err := r.src.Get(ctx, models.EventPath(eventID)); err != nil {
			return nil, fmt.Errorf("board for event %s: %w", eventID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.boards[eventID]
	if !ok {
		entry = &boardEntry{board: NewTaskBoard(r.src, eventID, r.monitor, r.log)}
		r.boards[eventID] = entry
	}
	if !entry.board.Live() {
		if err := entry.board.Start(r.ctx); err != nil {
			return nil, fmt.Errorf("start board for event %s: %w", eventID, err)
		}
		r.log.Debug("task board started", slog.String("event_id", eventID))
	}
	entry.lastUsed = r.now()
	r.reportLocked()
	return entry.board, nil
}

// StopIdle stops boards unused for longer than the idle TTL and closes
// boards unused for twice as long. It returns how many boards it stopped
// and how many it evicted.
func (r *BoardRegistry) StopIdle() (stopped, evicted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for eventID, entry := range r.boards {
		idle := now.Sub(entry.lastUsed)
		switch {
		case idle >= 2*r.idleTTL:
			entry.board.Close()
			delete(r.boards, eventID)
			evicted++
			r.log.Debug("task board evicted", slog.String("event_id", eventID))
		case idle >= r.idleTTL && entry.board.Live():
			entry.board.Stop()
			stopped++
			r.log.Debug("task board parked", slog.String("event_id", eventID))
		}
	}
	r.reportLocked()
	return stopped, evicted
}

// Drop closes the board of a deleted event and forgets it.
func (r *BoardRegistry) Drop(eventID string) {
	r.mu.Lock()
	entry, ok := r.boards[eventID]
	delete(r.boards, eventID)
	r.reportLocked()
	r.mu.Unlock()

	if ok {
		entry.board.Close()
	}
	r.monitor.ForgetEvent(eventID)
}

// Run parks idle boards every interval until ctx is done.
func (r *BoardRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stopped, evicted := r.StopIdle(); stopped+evicted > 0 {
				r.log.Info("parked idle task boards", slog.Int("stopped", stopped), slog.Int("evicted", evicted))
			}
		}
	}
}

// Close closes every board.
func (r *BoardRegistry) Close() {
	r.mu.Lock()
	boards := r.boards
	r.boards = make(map[string]*boardEntry)
	r.reportLocked()
	r.mu.Unlock()

	for _, entry := range boards {
		entry.board.Close()
	}
}

func (r *BoardRegistry) reportLocked() {
	active := 0
	for _, entry := range r.boards {
		if entry.board.Live() {
			active++
		}
	}
	r.monitor.SetActiveBoards(active)
}
