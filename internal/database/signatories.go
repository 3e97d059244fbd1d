package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/models"
)

// DecisionOutcome names what a signatory decision did to the reservation.
type DecisionOutcome string

const (
	// OutcomeNoop: the signatory had already decided or the booking is
	// terminal; nothing was written.
	OutcomeNoop DecisionOutcome = "noop"
	// OutcomeRecorded: the approval was stored, ledger still incomplete.
	OutcomeRecorded DecisionOutcome = "recorded"
	// OutcomeDenied: the decision denied the whole booking.
	OutcomeDenied DecisionOutcome = "denied"
	// OutcomeDirectorPending: all non-director approvals are in, the
	// director was marked as notified for the first time.
	OutcomeDirectorPending DecisionOutcome = "director_pending"
	// OutcomeFinalized: every signatory approved, booking is approved.
	OutcomeFinalized DecisionOutcome = "finalized"
)

// DecisionResult carries everything the service layer needs to publish events
// and queue mail after the transaction commits.
type DecisionResult struct {
	Outcome     DecisionOutcome
	BookingID   int64
	Signatory   *models.Signatory
	Reservation *models.Reservation
	// Director is set on OutcomeDirectorPending so the escalation mail can
	// be queued without a second read.
	Director *models.Signatory
}

// ApplyDecision records a signatory decision and advances the reservation
// state machine inside a single transaction, so the completeness check and
// the resulting promotion see one consistent snapshot.
//
// Decision handling:
//   - deny short-circuits: signatory, reservation and booking all go denied;
//   - approve is recorded, then the ledger is re-evaluated: full approval
//     finalizes the booking, full non-director approval notifies the
//     director exactly once, anything else is just recorded.
func (db *DB) ApplyDecision(ctx context.Context, signatoryID int64, decision string) (*DecisionResult, error) {
	if decision != models.DecisionApprove && decision != models.DecisionDeny {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	signatory, err := scanSignatory(tx.QueryRowContext(ctx,
		`SELECT id, reservation_id, role, user_id, name, email, status, decided_at, token, created_at, updated_at
         FROM signatories WHERE id = ?`, signatoryID))
	if err != nil {
		return nil, err
	}

	reservation, err := db.scanReservation(tx.QueryRowContext(ctx,
		reservationSelect+` WHERE id = ?`, signatory.ReservationID))
	if err != nil {
		return nil, err
	}

	var bookingStatus string
	if err := tx.QueryRowContext(ctx,
		`SELECT status FROM bookings WHERE id = ?`, reservation.BookingID).Scan(&bookingStatus); err != nil {
		return nil, fmt.Errorf("failed to read booking status: %w", err)
	}

	result := &DecisionResult{
		BookingID:   reservation.BookingID,
		Signatory:   signatory,
		Reservation: reservation,
	}

	// повторный клик по ссылке ничего не меняет
	if signatory.Decided() || models.IsTerminalStatus(bookingStatus) {
		result.Outcome = OutcomeNoop
		return result, nil
	}

	now := time.Now()

	if decision == models.DecisionDeny {
		if err := db.markSignatory(ctx, tx, signatory, models.SignatoryDenied, now); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			models.StatusDenied, now, reservation.ID); err != nil {
			return nil, fmt.Errorf("failed to deny reservation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
			models.StatusDenied, now, reservation.BookingID); err != nil {
			return nil, fmt.Errorf("failed to deny booking: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit denial: %w", err)
		}
		reservation.Status = models.StatusDenied
		result.Outcome = OutcomeDenied
		return result, nil
	}

	if err := db.markSignatory(ctx, tx, signatory, models.SignatoryApproved, now); err != nil {
		return nil, err
	}

	ledger, err := db.getSignatories(ctx, tx, reservation.ID)
	if err != nil {
		return nil, err
	}
	reservation.Signatories = ledger

	switch {
	case reservation.AllApproved():
		if err := finalizeTx(ctx, tx, reservation.BookingID, now); err != nil {
			return nil, err
		}
		reservation.Status = models.StatusApproved
		reservation.FinalApprovedAt = &now
		result.Outcome = OutcomeFinalized

	case reservation.NonDirectorsApproved() && reservation.DirectorNotifiedAt == nil:
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, director_notified_at = ?, updated_at = ? WHERE id = ?`,
			models.StatusPending, now, now, reservation.ID); err != nil {
			return nil, fmt.Errorf("failed to mark director notified: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
			models.StatusPending, now, reservation.BookingID); err != nil {
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
		reservation.Status = models.StatusPending
		reservation.DirectorNotifiedAt = &now
		if director := reservation.SignatoryByRole(models.RoleSchoolDirector); director != nil {
			result.Director = director
		}
		result.Outcome = OutcomeDirectorPending

	default:
		result.Outcome = OutcomeRecorded
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit decision: %w", err)
	}
	return result, nil
}

func (db *DB) markSignatory(ctx context.Context, tx *sql.Tx, s *models.Signatory, status string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE signatories SET status = ?, decided_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, now, now, s.ID, models.SignatoryPending)
	if err != nil {
		return fmt.Errorf("failed to update signatory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("signatory changed concurrently")
	}
	s.Status = status
	s.DecidedAt = &now
	return nil
}
