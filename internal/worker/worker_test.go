package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"campusbook/internal/database"
	"campusbook/internal/mail"
	"campusbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	sends []string // "to|subject"
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, to+"|"+subject)
	return nil
}

func newTestDB(t *testing.T) *database.DB {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWorker(t *testing.T, db *database.DB, mailer *fakeMailer, redisClient *redis.Client, retry RetryPolicy) *MailWorker {
	logger := zerolog.Nop()
	return NewMailWorker(db, mailer, mail.NewRenderer("https://bookings.example.edu"), redisClient, retry, &logger)
}

func testBookingAndSignatory() (*models.Booking, *models.Signatory) {
	booking := &models.Booking{
		ID:            1,
		RequesterName: "tester",
		FacilityName:  "Auditorium",
		StartsAt:      time.Now(),
		EndsAt:        time.Now().Add(2 * time.Hour),
		Purpose:       "rehearsal",
	}
	signatory := &models.Signatory{ID: 5, Role: models.RoleDean, Email: "dean@example.edu", Token: "tok"}
	return booking, signatory
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	var status string
	var retryCount int
	var nextRetry sql.NullTime
	err := db.QueryRow(`SELECT status, retry_count, next_retry_at FROM mail_queue WHERE id = ?`, id).
		Scan(&status, &retryCount, &nextRetry)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	return status, retryCount, nextRetry
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	w := newTestWorker(t, db, mailer, nil, RetryPolicy{})

	booking, signatory := testBookingAndSignatory()
	ctx := context.Background()
	if err := w.EnqueueSignatoryRequest(ctx, booking, signatory); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if len(mailer.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(mailer.sends))
	}
	if !strings.HasPrefix(mailer.sends[0], "dean@example.edu|") {
		t.Fatalf("unexpected recipient: %s", mailer.sends[0])
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	w := newTestWorker(t, db, mailer, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})

	booking, signatory := testBookingAndSignatory()
	ctx := context.Background()
	if err := w.EnqueueSignatoryRequest(ctx, booking, signatory); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid {
		t.Fatalf("expected next_retry_at to be set")
	}
}

func TestProcessTaskExhaustsRetries(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("mailbox unavailable")}
	w := newTestWorker(t, db, mailer, nil, RetryPolicy{MaxRetries: 1})

	booking, signatory := testBookingAndSignatory()
	ctx := context.Background()
	if err := w.EnqueueSignatoryRequest(ctx, booking, signatory); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestEnqueueViaRedis(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	w := newTestWorker(t, db, &fakeMailer{}, client, RetryPolicy{})

	booking, signatory := testBookingAndSignatory()
	ctx := context.Background()
	if err := w.EnqueueSignatoryRequest(ctx, booking, signatory); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// в локальную очередь задача не попадает, она ушла в redis
	if _, ok := w.tryLocalQueue(); ok {
		t.Fatalf("expected empty local queue when redis accepts the task")
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	if task.TaskType != models.TaskSignatoryRequest {
		t.Fatalf("unexpected task type: %s", task.TaskType)
	}
}

func TestDeadLetterOnFailure(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mailer := &fakeMailer{err: errors.New("permanent failure")}
	w := newTestWorker(t, db, mailer, client, RetryPolicy{MaxRetries: 1})

	booking, signatory := testBookingAndSignatory()
	ctx := context.Background()
	if err := w.EnqueueSignatoryRequest(ctx, booking, signatory); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	w.processTask(ctx, &task)

	if n, err := client.LLen(ctx, w.deadLetterKey).Result(); err != nil || n != 1 {
		t.Fatalf("expected one deadletter entry, got %d (err=%v)", n, err)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	if d := p.NextDelay(1); d != time.Second {
		t.Fatalf("attempt 1: got %v", d)
	}
	if d := p.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt 2: got %v", d)
	}
	if d := p.NextDelay(10); d != 5*time.Second {
		t.Fatalf("attempt 10: expected clamp to 5s, got %v", d)
	}
	if d := p.NextDelay(0); d != time.Second {
		t.Fatalf("attempt 0: expected floor of 1s, got %v", d)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3}
	if p.Exhausted(2) {
		t.Fatal("attempt 2 of 3 should not be exhausted")
	}
	if !p.Exhausted(3) {
		t.Fatal("attempt 3 of 3 should be exhausted")
	}
}
