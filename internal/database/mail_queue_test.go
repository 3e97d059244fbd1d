package database

import (
	"context"
	"testing"
	"time"

	"campusbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailQueue_CreateAndDrain(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.MailTask{
		TaskType:    models.TaskSignatoryRequest,
		BookingID:   1,
		SignatoryID: 7,
		Payload:     `{"email":"adviser@example.edu"}`,
		Status:      "pending",
	}
	require.NoError(t, db.CreateMailTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingMailTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.TaskSignatoryRequest, pending[0].TaskType)
	assert.Equal(t, int64(7), pending[0].SignatoryID)

	require.NoError(t, db.UpdateMailTaskStatus(ctx, task.ID, "completed", "", nil))

	pending, err = db.GetPendingMailTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMailQueue_RetryScheduling(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.MailTask{
		TaskType:  models.TaskDirectorEscalation,
		BookingID: 2,
		Payload:   `{}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateMailTask(ctx, task))

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateMailTaskStatus(ctx, task.ID, "retry", "smtp timeout", &future))

	// до next_retry_at задача не выдается
	pending, err := db.GetPendingMailTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateMailTaskStatus(ctx, task.ID, "retry", "smtp timeout", &past))

	pending, err = db.GetPendingMailTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "smtp timeout", *pending[0].LastError)
}

func TestMailQueue_FailedTasks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.MailTask{TaskType: models.TaskSignatoryRequest, BookingID: 3, Payload: `{}`, Status: "pending"}
	require.NoError(t, db.CreateMailTask(ctx, task))
	require.NoError(t, db.UpdateMailTaskStatus(ctx, task.ID, "failed", "mailbox unavailable", nil))

	failed, err := db.GetFailedMailTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.NotNil(t, failed[0].ProcessedAt)
}
