package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/models"
)

// CreateBooking inserts a booking together with its equipment lines and
// attachment references in one transaction.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `INSERT INTO bookings (
				requester_id, requester_name, facility_id, facility_name,
				starts_at, ends_at, purpose, participants, policy,
				adviser_email, dean_email, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		booking.RequesterID,
		booking.RequesterName,
		booking.FacilityID,
		booking.FacilityName,
		booking.StartsAt,
		booking.EndsAt,
		booking.Purpose,
		booking.Participants,
		booking.Policy,
		booking.AdviserEmail,
		booking.DeanEmail,
		models.StatusPrebooking,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range booking.Equipment {
		line := &booking.Equipment[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booking_equipment (booking_id, equipment_id, quantity) VALUES (?, ?, ?)`,
			id, line.EquipmentID, line.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert equipment line: %w", err)
		}
		lineID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get equipment line id: %w", err)
		}
		line.ID = lineID
		line.BookingID = id
	}

	for i := range booking.Attachments {
		att := &booking.Attachments[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booking_attachments (booking_id, file_name, file_url, created_at) VALUES (?, ?, ?, ?)`,
			id, att.FileName, att.FileURL, now)
		if err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
		attID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get attachment id: %w", err)
		}
		att.ID = attID
		att.BookingID = id
		att.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.Status = models.StatusPrebooking
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if booking.Equipment, err = db.getEquipmentLines(ctx, id); err != nil {
		return nil, err
	}
	if booking.Attachments, err = db.getAttachments(ctx, id); err != nil {
		return nil, err
	}
	return booking, nil
}

const bookingSelect = `SELECT id, requester_id, requester_name, facility_id, facility_name,
       starts_at, ends_at, purpose, participants, COALESCE(policy, ''),
       COALESCE(adviser_email, ''), COALESCE(dean_email, ''), status, created_at, updated_at
       FROM bookings`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.RequesterID, &b.RequesterName, &b.FacilityID, &b.FacilityName,
		&b.StartsAt, &b.EndsAt, &b.Purpose, &b.Participants, &b.Policy,
		&b.AdviserEmail, &b.DeanEmail, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	return &b, nil
}

func (db *DB) getEquipmentLines(ctx context.Context, bookingID int64) ([]models.EquipmentLine, error) {
	query := `SELECT be.id, be.booking_id, be.equipment_id, COALESCE(e.name, ''), be.quantity
              FROM booking_equipment be
              LEFT JOIN equipment e ON e.id = be.equipment_id
              WHERE be.booking_id = ?
              ORDER BY be.id`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment lines: %w", err)
	}
	defer rows.Close()

	var lines []models.EquipmentLine
	for rows.Next() {
		var l models.EquipmentLine
		if err := rows.Scan(&l.ID, &l.BookingID, &l.EquipmentID, &l.Name, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan equipment line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (db *DB) getAttachments(ctx context.Context, bookingID int64) ([]models.Attachment, error) {
	query := `SELECT id, booking_id, file_name, file_url, created_at
              FROM booking_attachments WHERE booking_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var atts []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.BookingID, &a.FileName, &a.FileURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

// GetBookingsByDateRange returns bookings whose window intersects [start, end),
// newest first. Equipment lines are not loaded.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := bookingSelect + ` WHERE starts_at < ? AND ends_at > ? ORDER BY starts_at DESC`
	rows, err := db.QueryContext(ctx, query, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetBookingsByStatus returns bookings in the given status, newest first.
func (db *DB) GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, bookingSelect+` WHERE status = ? ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by status: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// CountOverlapping counts non-denied bookings for a facility whose window
// intersects [from, to).
func (db *DB) CountOverlapping(ctx context.Context, facilityID int64, from, to time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings
              WHERE facility_id = ? AND status != ? AND starts_at < ? AND ends_at > ?`
	var count int64
	if err := db.QueryRowContext(ctx, query, facilityID, models.StatusDenied, to, from).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return count, nil
}

// DenyBooking moves a booking and its reservation (when one exists) to
// denied. Returns false without writing when the booking is already terminal.
func (db *DB) DenyBooking(ctx context.Context, bookingID int64) (bool, error) {
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

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusDenied, now, bookingID); err != nil {
		return false, fmt.Errorf("failed to deny booking: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE booking_id = ?`,
		models.StatusDenied, now, bookingID); err != nil {
		return false, fmt.Errorf("failed to deny reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit deny: %w", err)
	}
	return true, nil
}

// CancelBooking hard-deletes a booking with its equipment lines, attachments,
// reservation and signatories. Only the requester may cancel, and only while
// the booking is not terminal.
func (db *DB) CancelBooking(ctx context.Context, bookingID, requesterID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var ownerID int64
	var status string
	err = tx.QueryRowContext(ctx, `SELECT requester_id, status FROM bookings WHERE id = ?`, bookingID).Scan(&ownerID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read booking: %w", err)
	}
	if ownerID != requesterID {
		return ErrForbidden
	}
	if models.IsTerminalStatus(status) {
		return ErrTerminalBooking
	}

	// signatories and the reservation go first; booking_equipment and
	// attachments cascade from the booking row
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM signatories WHERE reservation_id IN (SELECT id FROM reservations WHERE booking_id = ?)`,
		bookingID); err != nil {
		return fmt.Errorf("failed to delete signatories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_equipment WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to delete equipment lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_attachments WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancel: %w", err)
	}
	return nil
}
