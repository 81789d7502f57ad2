package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotify/internal/database"
	"slotify/internal/domain"
	"slotify/internal/metrics"
	"slotify/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskCalendarCreate = "calendar_create"
	TaskCalendarDelete = "calendar_delete"
	TaskNotify         = "notify"
)

// taskPayload is persisted in SyncTask.Payload as JSON.
type taskPayload struct {
	BookingID  int64           `json:"booking_id"`
	BusinessID int64           `json:"business_id,omitempty"`
	Booking    *models.Booking `json:"booking,omitempty"`
	EventID    string          `json:"event_id,omitempty"`
	Event      string          `json:"event,omitempty"`
}

// SyncWorker drains the persistent side-effect queue: mirroring
// bookings to the external calendar and notifying owners. Tasks are
// written to the database first for durability, pushed through Redis
// when available, and retried with exponential backoff; exhausted tasks
// land in a dead-letter list.
type SyncWorker struct {
	db            *database.DB
	calendar      domain.CalendarWriter
	notifier      domain.Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        zerolog.Logger
}

func NewSyncWorker(db *database.DB, cal domain.CalendarWriter, notifier domain.Notifier, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	return &SyncWorker{
		db:            db,
		calendar:      cal,
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   retry.normalized(),
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "sync:queue",
		deadLetterKey: "sync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger.With().Str("component", "sync_worker").Logger(),
	}
}

func (w *SyncWorker) EnqueueCalendarCreate(ctx context.Context, booking *models.Booking) error {
	return w.enqueue(ctx, TaskCalendarCreate, taskPayload{
		BookingID:  booking.ID,
		BusinessID: booking.BusinessID,
		Booking:    booking,
	})
}

func (w *SyncWorker) EnqueueCalendarDelete(ctx context.Context, bookingID int64, eventID string, businessID int64) error {
	if eventID == "" {
		return nil
	}
	return w.enqueue(ctx, TaskCalendarDelete, taskPayload{
		BookingID:  bookingID,
		BusinessID: businessID,
		EventID:    eventID,
	})
}

func (w *SyncWorker) EnqueueNotify(ctx context.Context, booking *models.Booking, event string) error {
	return w.enqueue(ctx, TaskNotify, taskPayload{
		BookingID:  booking.ID,
		BusinessID: booking.BusinessID,
		Booking:    booking,
		Event:      event,
	})
}

// enqueue persists the task, then schedules it via Redis or the
// in-memory channel. The database row survives a crash either way.
func (w *SyncWorker) enqueue(ctx context.Context, taskType string, payload taskPayload) error {
	if payload.BookingID == 0 {
		return errors.New("booking id is required")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	syncTask := models.SyncTask{
		TaskType:  taskType,
		BookingID: payload.BookingID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, syncTask); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("in-memory queue full, task left for polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload taskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(ctx, task.TaskType, payload); err != nil {
		metrics.IncSyncTask(task.TaskType, "retry")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(task.TaskType, "completed")
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *SyncWorker) handleTask(ctx context.Context, taskType string, payload taskPayload) error {
	switch taskType {
	case TaskCalendarCreate:
		if w.calendar == nil || payload.Booking == nil {
			return nil
		}
		eventID, err := w.calendar.CreateEvent(ctx, payload.BusinessID, payload.Booking)
		if err != nil {
			return err
		}
		return w.db.SetCalendarEventID(ctx, payload.BookingID, eventID)
	case TaskCalendarDelete:
		if w.calendar == nil || payload.EventID == "" {
			return nil
		}
		return w.calendar.DeleteEvent(ctx, payload.BusinessID, payload.EventID)
	case TaskNotify:
		if w.notifier == nil || payload.Booking == nil {
			return nil
		}
		business, err := w.db.GetBusiness(ctx, payload.BusinessID)
		if err != nil {
			return err
		}
		return w.notifier.NotifyBooking(ctx, business.NotifyChatID, payload.Booking, payload.Event)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		metrics.IncSyncTask(task.TaskType, "failed")
		if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, err error) {
	metrics.IncSyncTask(task.TaskType, "failed")
	if uerr := w.db.UpdateSyncTaskStatus(ctx, task.ID, "failed", err.Error(), nil); uerr != nil {
		w.logger.Error().Err(uerr).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *SyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
