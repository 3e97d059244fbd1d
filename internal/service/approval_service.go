package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/config"
	"campusbook/internal/database"
	"campusbook/internal/domain"
	"campusbook/internal/events"
	"campusbook/internal/metrics"
	"campusbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ApprovalService orchestrates the booking lifecycle: submission, the admin
// review gate, the signatory ladder and the director's final decision. All
// state transitions happen in the store; the service resolves signatories,
// validates input and fans out events and mail after commits.
type ApprovalService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	mail     domain.MailEnqueuer
	notifier domain.Notifier
	cfg      config.ApprovalsConfig
	logger   *zerolog.Logger
}

func NewApprovalService(store domain.Store, eventBus domain.EventPublisher, mail domain.MailEnqueuer, notifier domain.Notifier, cfg config.ApprovalsConfig, logger *zerolog.Logger) *ApprovalService {
	childLogger := logger.With().Str("component", "approval_service").Logger()
	return &ApprovalService{
		store:    store,
		eventBus: eventBus,
		mail:     mail,
		notifier: notifier,
		cfg:      cfg,
		logger:   &childLogger,
	}
}

// SubmitBookingRequest carries everything a requester provides up front.
type SubmitBookingRequest struct {
	RequesterName  string
	RequesterEmail string
	Phone          string
	FacilityID     int64
	StartsAt       time.Time
	EndsAt         time.Time
	Purpose        string
	Participants   int64
	Policy         string
	AdviserEmail   string
	DeanEmail      string
	Equipment      []models.EquipmentLine
	Attachments    []models.Attachment
}

// SubmitBooking validates the request, upserts the requester and stores the
// booking as a prebooking awaiting admin review.
func (s *ApprovalService) SubmitBooking(ctx context.Context, req SubmitBookingRequest) (*models.Booking, error) {
	if !req.StartsAt.Before(req.EndsAt) {
		return nil, database.ErrInvalidWindow
	}

	facility, err := s.store.GetFacilityByID(req.FacilityID)
	if err != nil {
		return nil, err
	}

	for i := range req.Equipment {
		line := &req.Equipment[i]
		if line.Quantity < 1 {
			return nil, database.ErrInvalidQuantity
		}
		equipment, err := s.store.GetEquipmentByID(line.EquipmentID)
		if err != nil {
			return nil, err
		}
		if line.Quantity > equipment.TotalQuantity {
			return nil, fmt.Errorf("%w: %s has only %d available", database.ErrInvalidQuantity, equipment.Name, equipment.TotalQuantity)
		}
		line.Name = equipment.Name
	}

	user := &models.User{Name: req.RequesterName, Email: req.RequesterEmail, Phone: req.Phone}
	if err := s.store.CreateOrUpdateUser(ctx, user); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		RequesterID:   user.ID,
		RequesterName: user.Name,
		FacilityID:    facility.ID,
		FacilityName:  facility.Name,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Purpose:       req.Purpose,
		Participants:  req.Participants,
		Policy:        req.Policy,
		AdviserEmail:  req.AdviserEmail,
		DeanEmail:     req.DeanEmail,
		Equipment:     req.Equipment,
		Attachments:   req.Attachments,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingSubmitted, booking, "", "")
	metrics.IncTransition(models.StatusPrebooking)

	if s.notifier != nil {
		s.notifier.NotifyAdmins(fmt.Sprintf("New booking #%d: %s, %s (%s)",
			booking.ID, booking.FacilityName, booking.StartsAt.Format("02.01.2006 15:04"), booking.RequesterName))
	}

	return booking, nil
}

// AdminApprove moves a prebooking into review: it resolves the signatory
// roster, creates the reservation with the ledger in one transaction and
// queues the approval request mails. Returns false when the booking already
// left prebooking.
func (s *ApprovalService) AdminApprove(ctx context.Context, bookingID int64) (bool, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}

	signatories := s.resolveSignatories(ctx, booking)
	if len(signatories) == 0 {
		return false, errors.New("no signatory could be resolved for the booking")
	}

	reservation, err := s.store.PromoteToReview(ctx, bookingID, signatories)
	if errors.Is(err, database.ErrInvalidTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	booking.Status = models.StatusInReview
	s.publishEvent(events.EventReviewStarted, booking, "", "")
	metrics.IncTransition(models.StatusInReview)

	// директор получает письмо только при эскалации
	for i := range reservation.Signatories {
		sig := &reservation.Signatories[i]
		if sig.Role == models.RoleSchoolDirector {
			continue
		}
		if err := s.mail.EnqueueSignatoryRequest(ctx, booking, sig); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).Str("role", sig.Role).Msg("Failed to enqueue signatory request")
		}
	}

	return true, nil
}

// resolveSignatories builds the ledger for a booking. Roles whose address
// cannot be resolved are skipped with a warning; the ladder shrinks rather
// than blocking the whole review.
func (s *ApprovalService) resolveSignatories(ctx context.Context, booking *models.Booking) []models.Signatory {
	roleEmails := map[string]struct{ email, name string }{
		models.RoleAdviser:         {booking.AdviserEmail, ""},
		models.RoleDean:            {booking.DeanEmail, ""},
		models.RoleSchoolPresident: {s.cfg.PresidentEmail, s.cfg.PresidentName},
		models.RoleSchoolDirector:  {s.cfg.DirectorEmail, s.cfg.DirectorName},
	}

	var signatories []models.Signatory
	for _, role := range models.SignatoryRoles {
		entry := roleEmails[role]
		if !config.ValidEmail(entry.email) {
			s.logger.Warn().Int64("booking_id", booking.ID).Str("role", role).Msg("Signatory role skipped, no valid address")
			metrics.IncDroppedSignatory()
			continue
		}

		sig := models.Signatory{
			Role:  role,
			Email: entry.email,
			Name:  entry.name,
			Token: uuid.NewString(),
		}
		if user, err := s.store.GetUserByEmail(ctx, entry.email); err == nil {
			sig.UserID = &user.ID
			if sig.Name == "" {
				sig.Name = user.Name
			}
		}
		signatories = append(signatories, sig)
	}
	return signatories
}

// SignatoryDecide authenticates an approval-link hit and applies the
// decision. Token mismatch returns ErrForbidden without touching state.
func (s *ApprovalService) SignatoryDecide(ctx context.Context, signatoryID int64, token, decision string) (*database.DecisionResult, error) {
	signatory, err := s.store.GetSignatoryByID(ctx, signatoryID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(signatory.Token), []byte(token)) != 1 {
		return nil, database.ErrForbidden
	}

	result, err := s.store.ApplyDecision(ctx, signatoryID, decision)
	if err != nil {
		return nil, err
	}
	if result.Outcome == database.OutcomeNoop {
		return result, nil
	}

	metrics.IncDecision(signatory.Role, decision)

	booking, err := s.store.GetBooking(ctx, result.BookingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", result.BookingID).Msg("Failed to load booking after decision")
		return result, nil
	}

	if decision == models.DecisionApprove {
		s.publishEvent(events.EventSignatoryApproved, booking, signatory.Role, signatory.Name)
	} else {
		s.publishEvent(events.EventSignatoryDenied, booking, signatory.Role, signatory.Name)
	}

	switch result.Outcome {
	case database.OutcomeDenied:
		metrics.IncTransition(models.StatusDenied)
		s.publishEvent(events.EventBookingDenied, booking, signatory.Role, signatory.Name)

	case database.OutcomeDirectorPending:
		metrics.IncTransition(models.StatusPending)
		s.publishEvent(events.EventDirectorEscalated, booking, "", "")
		if err := s.mail.EnqueueDirectorEscalation(ctx, booking, result.Reservation, result.Director); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to enqueue director escalation")
		}

	case database.OutcomeFinalized:
		metrics.IncTransition(models.StatusApproved)
		s.publishEvent(events.EventBookingApproved, booking, signatory.Role, signatory.Name)
	}

	return result, nil
}

// DenyBooking is the admin denial. Any non-terminal booking can be denied.
func (s *ApprovalService) DenyBooking(ctx context.Context, bookingID int64) (bool, error) {
	changed, err := s.store.DenyBooking(ctx, bookingID)
	if err != nil || !changed {
		return changed, err
	}

	metrics.IncTransition(models.StatusDenied)
	if booking, err := s.store.GetBooking(ctx, bookingID); err == nil {
		s.publishEvent(events.EventBookingDenied, booking, "", "")
	}
	return true, nil
}

// FinalizeBooking records the final approval for a booking whose signatory
// ledger is already complete. Normally the last decision closes the booking
// on its own; this entry exists to recover one that was left open.
func (s *ApprovalService) FinalizeBooking(ctx context.Context, bookingID int64) (bool, error) {
	changed, err := s.store.FinalizeBooking(ctx, bookingID)
	if err != nil || !changed {
		return changed, err
	}

	metrics.IncTransition(models.StatusApproved)
	if booking, err := s.store.GetBooking(ctx, bookingID); err == nil {
		s.publishEvent(events.EventBookingApproved, booking, "", "")
	}
	return true, nil
}

// CancelBooking removes a requester's own non-terminal booking entirely.
func (s *ApprovalService) CancelBooking(ctx context.Context, bookingID, requesterID int64) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.store.CancelBooking(ctx, bookingID, requesterID); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingCanceled, booking, "", "")
	return nil
}

// CheckAvailability reports whether a facility window is free of other
// non-denied bookings.
func (s *ApprovalService) CheckAvailability(ctx context.Context, facilityID int64, from, to time.Time) (*models.Availability, error) {
	if !from.Before(to) {
		return nil, database.ErrInvalidWindow
	}
	if _, err := s.store.GetFacilityByID(facilityID); err != nil {
		return nil, err
	}

	count, err := s.store.CountOverlapping(ctx, facilityID, from, to)
	if err != nil {
		return nil, err
	}

	return &models.Availability{
		FacilityID: facilityID,
		From:       from,
		To:         to,
		Available:  count == 0,
		Conflicts:  count,
	}, nil
}

func (s *ApprovalService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *ApprovalService) GetReservation(ctx context.Context, bookingID int64) (*models.Reservation, error) {
	return s.store.GetReservationByBookingID(ctx, bookingID)
}

func (s *ApprovalService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.store.GetBookingsByDateRange(ctx, start, end)
}

func (s *ApprovalService) GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	return s.store.GetBookingsByStatus(ctx, status)
}

func (s *ApprovalService) ListFacilities() []models.Facility {
	return s.store.GetActiveFacilities()
}

func (s *ApprovalService) publishEvent(eventType string, booking *models.Booking, role, name string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		RequesterID:   booking.RequesterID,
		RequesterName: booking.RequesterName,
		FacilityID:    booking.FacilityID,
		FacilityName:  booking.FacilityName,
		Status:        booking.Status,
		StartsAt:      booking.StartsAt,
		EndsAt:        booking.EndsAt,
		Purpose:       booking.Purpose,
		SignatoryRole: role,
		SignatoryName: name,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
