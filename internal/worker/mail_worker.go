package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/database"
	"campusbook/internal/domain"
	"campusbook/internal/mail"
	"campusbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// mailPayload is persisted in MailTask.Payload as JSON. Messages are rendered
// at enqueue time, so the worker only has to deliver them.
type mailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MailWorker drains the mail_queue outbox and delivers messages over SMTP.
// Tasks are scheduled through redis when it is up; the DB poll loop picks up
// whatever redis loses.
type MailWorker struct {
	db            *database.DB
	mailer        domain.Mailer
	renderer      *mail.Renderer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.MailTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewMailWorker builds a worker with sane defaults.
func NewMailWorker(db *database.DB, mailer domain.Mailer, renderer *mail.Renderer, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *MailWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	childLogger := logger.With().Str("component", "mail_worker").Logger()

	return &MailWorker{
		db:            db,
		mailer:        mailer,
		renderer:      renderer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.MailTask, models.DefaultDispatchQueueSize),
		redisQueueKey: "mail:queue",
		deadLetterKey: "mail:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        &childLogger,
	}
}

// EnqueueSignatoryRequest renders and queues the approval request for one
// signatory.
func (w *MailWorker) EnqueueSignatoryRequest(ctx context.Context, booking *models.Booking, signatory *models.Signatory) error {
	subject, body, err := w.renderer.SignatoryRequest(booking, signatory)
	if err != nil {
		return err
	}
	return w.enqueue(ctx, models.TaskSignatoryRequest, booking.ID, signatory.ID, signatory.Email, subject, body)
}

// EnqueueDirectorEscalation renders and queues the final-decision mail.
func (w *MailWorker) EnqueueDirectorEscalation(ctx context.Context, booking *models.Booking, reservation *models.Reservation, director *models.Signatory) error {
	subject, body, err := w.renderer.DirectorEscalation(booking, reservation, director)
	if err != nil {
		return err
	}
	return w.enqueue(ctx, models.TaskDirectorEscalation, booking.ID, director.ID, director.Email, subject, body)
}

func (w *MailWorker) enqueue(ctx context.Context, taskType string, bookingID, signatoryID int64, to, subject, body string) error {
	if to == "" {
		return errors.New("recipient address is required")
	}

	payloadBytes, err := json.Marshal(mailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.MailTask{
		TaskType:    taskType,
		BookingID:   bookingID,
		SignatoryID: signatoryID,
		Payload:     string(payloadBytes),
		Status:      "pending",
	}
	if err := w.db.CreateMailTask(ctx, &task); err != nil {
		return fmt.Errorf("persist mail task: %w", err)
	}

	// Сначала redis, при сбое — внутренняя очередь
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *MailWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Mail worker started")
	defer w.logger.Info().Msg("Mail worker stopped")

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

		tasks, err := w.db.GetPendingMailTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending mail tasks")
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

func (w *MailWorker) tryLocalQueue() (models.MailTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.MailTask{}, false
	}
}

func (w *MailWorker) tryRedis(ctx context.Context) (models.MailTask, bool) {
	if w.redis == nil {
		return models.MailTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.MailTask{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP error")
		return models.MailTask{}, false
	}
	if len(res) != 2 {
		return models.MailTask{}, false
	}
	var task models.MailTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.MailTask{}, false
	}
	return task, true
}

func (w *MailWorker) processTask(ctx context.Context, task *models.MailTask) {
	var payload mailPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateMailTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task completed")
	}
}

func (w *MailWorker) retryOrFail(ctx context.Context, task *models.MailTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		if err := w.db.UpdateMailTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateMailTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task for retry")
	}
}

func (w *MailWorker) failTask(ctx context.Context, task *models.MailTask, cause error) {
	if err := w.db.UpdateMailTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *MailWorker) pushRedis(ctx context.Context, task models.MailTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *MailWorker) pushDeadLetter(ctx context.Context, task *models.MailTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push deadletter task")
	}
}
