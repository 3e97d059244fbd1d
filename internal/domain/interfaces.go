package domain

import (
	"context"
	"time"

	"campusbook/internal/database"
	"campusbook/internal/models"
)

// Store is the persistence surface the approval service depends on.
type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	CountOverlapping(ctx context.Context, facilityID int64, from, to time.Time) (int64, error)
	DenyBooking(ctx context.Context, bookingID int64) (bool, error)
	CancelBooking(ctx context.Context, bookingID, requesterID int64) error

	PromoteToReview(ctx context.Context, bookingID int64, signatories []models.Signatory) (*models.Reservation, error)
	GetReservationByBookingID(ctx context.Context, bookingID int64) (*models.Reservation, error)
	GetSignatoryByID(ctx context.Context, id int64) (*models.Signatory, error)
	ApplyDecision(ctx context.Context, signatoryID int64, decision string) (*database.DecisionResult, error)
	FinalizeBooking(ctx context.Context, bookingID int64) (bool, error)

	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	GetFacilityByID(id int64) (*models.Facility, error)
	GetEquipmentByID(id int64) (*models.Equipment, error)
	GetActiveFacilities() []models.Facility
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Mailer delivers a single rendered message. Implementations must be safe for
// concurrent use by the dispatch worker.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// MailEnqueuer hands rendered mail off to the outbox so delivery failures
// never affect approval state.
type MailEnqueuer interface {
	EnqueueSignatoryRequest(ctx context.Context, booking *models.Booking, signatory *models.Signatory) error
	EnqueueDirectorEscalation(ctx context.Context, booking *models.Booking, reservation *models.Reservation, director *models.Signatory) error
}

// LinkGuard rate-limits the public approval-link endpoints per caller.
type LinkGuard interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Notifier pushes short operational alerts to admins.
type Notifier interface {
	NotifyAdmins(text string)
}
