package database

import (
	"context"
	"os"
	"testing"
	"time"

	"campusbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func seedTestCatalog(t *testing.T, db *DB) {
	ctx := context.Background()
	require.NoError(t, db.SeedFacilities(ctx, []models.Facility{
		{ID: 1, Name: "Auditorium", Location: "Main Hall", Capacity: 300, IsActive: true},
		{ID: 2, Name: "Gymnasium", Capacity: 150, IsActive: true},
	}))
	require.NoError(t, db.SeedEquipment(ctx, []models.Equipment{
		{ID: 1, Name: "Projector", TotalQuantity: 4, IsActive: true},
		{ID: 2, Name: "Microphone", TotalQuantity: 10, IsActive: true},
	}))
}

func createTestUser(t *testing.T, db *DB, email string) *models.User {
	user := &models.User{Name: "Test Requester", Email: email}
	require.NoError(t, db.CreateOrUpdateUser(context.Background(), user))
	return user
}

func createTestBooking(t *testing.T, db *DB, requesterID int64) *models.Booking {
	booking := &models.Booking{
		RequesterID:   requesterID,
		RequesterName: "Test Requester",
		FacilityID:    1,
		FacilityName:  "Auditorium",
		StartsAt:      time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		EndsAt:        time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC),
		Purpose:       "Orientation assembly",
		Participants:  120,
		AdviserEmail:  "adviser@example.edu",
		DeanEmail:     "dean@example.edu",
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestCreateBooking_WithEquipmentAndAttachments(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")

	booking := &models.Booking{
		RequesterID:   user.ID,
		RequesterName: user.Name,
		FacilityID:    1,
		FacilityName:  "Auditorium",
		StartsAt:      time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		EndsAt:        time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC),
		Purpose:       "Science fair",
		Participants:  80,
		Equipment: []models.EquipmentLine{
			{EquipmentID: 1, Quantity: 2},
			{EquipmentID: 2, Quantity: 5},
		},
		Attachments: []models.Attachment{
			{FileName: "floor-plan.pdf", FileURL: "https://files.example.edu/floor-plan.pdf"},
		},
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	assert.NotZero(t, booking.ID)
	assert.Equal(t, models.StatusPrebooking, booking.Status)

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "Science fair", got.Purpose)
	require.Len(t, got.Equipment, 2)
	assert.Equal(t, "Projector", got.Equipment[0].Name)
	assert.Equal(t, int64(2), got.Equipment[0].Quantity)
	assert.Equal(t, int64(5), got.Equipment[1].Quantity)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "floor-plan.pdf", got.Attachments[0].FileName)
}

func TestGetBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	inRange, err := db.GetBookingsByDateRange(context.Background(),
		time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, booking.ID, inRange[0].ID)

	outOfRange, err := db.GetBookingsByDateRange(context.Background(),
		time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, outOfRange)
}

func TestCountOverlapping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	// пересечение по времени и площадке
	count, err := db.CountOverlapping(context.Background(), 1,
		time.Date(2026, 9, 10, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// другая площадка
	count, err = db.CountOverlapping(context.Background(), 2,
		time.Date(2026, 9, 10, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// denied bookings do not block the slot
	changed, err := db.DenyBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	count, err = db.CountOverlapping(context.Background(), 1,
		time.Date(2026, 9, 10, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestDenyBooking_TerminalIsNoop(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	user := createTestUser(t, db, "requester@example.edu")
	booking := createTestBooking(t, db, user.ID)

	changed, err := db.DenyBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = db.DenyBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, got.Status)
}

func TestCancelBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	owner := createTestUser(t, db, "owner@example.edu")
	stranger := createTestUser(t, db, "stranger@example.edu")
	booking := createTestBooking(t, db, owner.ID)

	err := db.CancelBooking(context.Background(), booking.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, db.CancelBooking(context.Background(), booking.ID, owner.ID))

	_, err = db.GetBooking(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBooking_TerminalRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	owner := createTestUser(t, db, "owner@example.edu")
	booking := createTestBooking(t, db, owner.ID)

	_, err := db.DenyBooking(context.Background(), booking.ID)
	require.NoError(t, err)

	err = db.CancelBooking(context.Background(), booking.ID, owner.ID)
	assert.ErrorIs(t, err, ErrTerminalBooking)
}

func TestCancelBooking_RemovesSignatoryLedger(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedTestCatalog(t, db)
	owner := createTestUser(t, db, "owner@example.edu")
	booking := createTestBooking(t, db, owner.ID)

	_, err := db.PromoteToReview(context.Background(), booking.ID, []models.Signatory{
		{Role: models.RoleAdviser, Email: "adviser@example.edu", Token: "tok-adviser"},
		{Role: models.RoleSchoolDirector, Email: "director@example.edu", Token: "tok-director"},
	})
	require.NoError(t, err)

	require.NoError(t, db.CancelBooking(context.Background(), booking.ID, owner.ID))

	_, err = db.GetReservationByBookingID(context.Background(), booking.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM signatories`).Scan(&count))
	assert.Zero(t, count)
}
