package database

import (
	"context"
	"testing"

	"campusbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullLedger() []models.Signatory {
	return []models.Signatory{
		{Role: models.RoleAdviser, Email: "adviser@example.edu", Token: "tok-adviser"},
		{Role: models.RoleDean, Email: "dean@example.edu", Token: "tok-dean"},
		{Role: models.RoleSchoolPresident, Email: "president@example.edu", Token: "tok-president"},
		{Role: models.RoleSchoolDirector, Email: "director@example.edu", Token: "tok-director"},
	}
}

func TestPromoteToReview(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	reservation, err := db.PromoteToReview(context.Background(), booking.ID, fullLedger())
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, reservation.Status)
	assert.NotNil(t, reservation.AdminApprovedAt)
	assert.Nil(t, reservation.DirectorNotifiedAt)
	require.Len(t, reservation.Signatories, 4)
	for _, s := range reservation.Signatories {
		assert.Equal(t, models.SignatoryPending, s.Status)
		assert.NotZero(t, s.ID)
	}

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, got.Status)
}

func TestPromoteToReview_RepeatIsInvalidTransition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	_, err := db.PromoteToReview(context.Background(), booking.ID, fullLedger())
	require.NoError(t, err)

	_, err = db.PromoteToReview(context.Background(), booking.ID, fullLedger())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// повторный вызов не плодит вторую резервацию
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reservations WHERE booking_id = ?`, booking.ID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPromoteToReview_DuplicateRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	_, err := db.PromoteToReview(context.Background(), booking.ID, []models.Signatory{
		{Role: models.RoleAdviser, Email: "a@example.edu", Token: "t1"},
		{Role: models.RoleAdviser, Email: "b@example.edu", Token: "t2"},
	})
	assert.ErrorIs(t, err, ErrDuplicateRole)

	// вся промоция откатывается целиком
	got, getErr := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusPrebooking, got.Status)
	_, err = db.GetReservationByBookingID(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestPromoteToReview_MissingBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.PromoteToReview(context.Background(), 42, fullLedger())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestFinalizeBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	_, err := db.PromoteToReview(context.Background(), booking.ID, fullLedger())
	require.NoError(t, err)

	// лестница согласована, но бронь не закрыта: ровно тот случай,
	// который закрывает ручная финализация
	_, err = db.Exec(`UPDATE signatories SET status = ?`, models.SignatoryApproved)
	require.NoError(t, err)

	changed, err := db.FinalizeBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	reservation, err := db.GetReservationByBookingID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reservation.Status)
	assert.NotNil(t, reservation.FinalApprovedAt)

	changed, err = db.FinalizeBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFinalizeBooking_RequiresCompleteLedger(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	// без резервации финализировать нечего
	_, err := db.FinalizeBooking(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reservation, err := db.PromoteToReview(context.Background(), booking.ID, fullLedger())
	require.NoError(t, err)

	// одна подпись из четырех недостаточна
	_, err = db.Exec(`UPDATE signatories SET status = ? WHERE id = ?`,
		models.SignatoryApproved, reservation.Signatories[0].ID)
	require.NoError(t, err)

	_, err = db.FinalizeBooking(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, got.Status)
}
