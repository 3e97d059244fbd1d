package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/models"

	"github.com/mattn/go-sqlite3"
)

// PromoteToReview is the admin approval step. In one transaction it moves a
// prebooking to in_review, creates the reservation and inserts the signatory
// ledger. Returns ErrInvalidTransition when the booking already left
// prebooking, so callers can treat a repeat call as a no-op.
func (db *DB) PromoteToReview(ctx context.Context, bookingID int64, signatories []models.Signatory) (*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, bookingID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read booking status: %w", err)
	}
	if status != models.StatusPrebooking {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusInReview, now, bookingID); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (booking_id, status, admin_approved_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		bookingID, models.StatusInReview, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	reservationID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation id: %w", err)
	}

	reservation := &models.Reservation{
		ID:              reservationID,
		BookingID:       bookingID,
		Status:          models.StatusInReview,
		AdminApprovedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for i := range signatories {
		s := &signatories[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO signatories (reservation_id, role, user_id, name, email, status, token, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			reservationID, s.Role, s.UserID, s.Name, s.Email, models.SignatoryPending, s.Token, now, now)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return nil, ErrDuplicateRole
			}
			return nil, fmt.Errorf("failed to insert signatory %s: %w", s.Role, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get signatory id: %w", err)
		}
		s.ID = id
		s.ReservationID = reservationID
		s.Status = models.SignatoryPending
		s.CreatedAt = now
		s.UpdatedAt = now
	}
	reservation.Signatories = signatories

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}
	return reservation, nil
}

// GetReservationByBookingID loads a reservation with its signatory ledger.
func (db *DB) GetReservationByBookingID(ctx context.Context, bookingID int64) (*models.Reservation, error) {
	reservation, err := db.scanReservation(db.QueryRowContext(ctx, reservationSelect+` WHERE booking_id = ?`, bookingID))
	if err != nil {
		return nil, err
	}
	if reservation.Signatories, err = db.getSignatories(ctx, db.DB, reservation.ID); err != nil {
		return nil, err
	}
	return reservation, nil
}

const reservationSelect = `SELECT id, booking_id, status, admin_approved_at, director_notified_at,
       final_approved_at, created_at, updated_at FROM reservations`

func (db *DB) scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var adminAt, directorAt, finalAt sql.NullTime
	err := row.Scan(&r.ID, &r.BookingID, &r.Status, &adminAt, &directorAt, &finalAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}
	r.AdminApprovedAt = timePtr(adminAt)
	r.DirectorNotifiedAt = timePtr(directorAt)
	r.FinalApprovedAt = timePtr(finalAt)
	return &r, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (db *DB) getSignatories(ctx context.Context, q querier, reservationID int64) ([]models.Signatory, error) {
	query := `SELECT id, reservation_id, role, user_id, name, email, status, decided_at, token, created_at, updated_at
              FROM signatories WHERE reservation_id = ? ORDER BY id`
	rows, err := q.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get signatories: %w", err)
	}
	defer rows.Close()

	var signatories []models.Signatory
	for rows.Next() {
		s, err := scanSignatory(rows)
		if err != nil {
			return nil, err
		}
		signatories = append(signatories, *s)
	}
	return signatories, rows.Err()
}

func scanSignatory(row rowScanner) (*models.Signatory, error) {
	var s models.Signatory
	var userID sql.NullInt64
	var name sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(&s.ID, &s.ReservationID, &s.Role, &userID, &name, &s.Email, &s.Status, &decidedAt, &s.Token, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSignatoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan signatory: %w", err)
	}
	if userID.Valid {
		s.UserID = &userID.Int64
	}
	s.Name = name.String
	s.DecidedAt = timePtr(decidedAt)
	return &s, nil
}

func (db *DB) GetSignatoryByID(ctx context.Context, id int64) (*models.Signatory, error) {
	query := `SELECT id, reservation_id, role, user_id, name, email, status, decided_at, token, created_at, updated_at
              FROM signatories WHERE id = ?`
	return scanSignatory(db.QueryRowContext(ctx, query, id))
}

// FinalizeBooking records the final approval for a booking whose ledger is
// complete. Returns false without writing when the booking is already
// terminal, and ErrInvalidTransition when there is no reservation yet or any
// signatory has not approved. The decision path finalizes on its own; this is
// the recovery entry for a ledger that is done but was not closed.
func (db *DB) FinalizeBooking(ctx context.Context, bookingID int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, bookingID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrBookingNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read booking status: %w", err)
	}
	if models.IsTerminalStatus(status) {
		return false, nil
	}

	reservation, err := db.scanReservation(tx.QueryRowContext(ctx, reservationSelect+` WHERE booking_id = ?`, bookingID))
	if errors.Is(err, ErrReservationNotFound) {
		return false, ErrInvalidTransition
	}
	if err != nil {
		return false, err
	}
	if reservation.Signatories, err = db.getSignatories(ctx, tx, reservation.ID); err != nil {
		return false, err
	}
	if !reservation.AllApproved() {
		return false, ErrInvalidTransition
	}

	if err := finalizeTx(ctx, tx, bookingID, time.Now()); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit finalize: %w", err)
	}
	return true, nil
}

func finalizeTx(ctx context.Context, tx *sql.Tx, bookingID int64, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusApproved, now, bookingID); err != nil {
		return fmt.Errorf("failed to approve booking: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, final_approved_at = ?, updated_at = ? WHERE booking_id = ?`,
		models.StatusApproved, now, now, bookingID); err != nil {
		return fmt.Errorf("failed to approve reservation: %w", err)
	}
	return nil
}
