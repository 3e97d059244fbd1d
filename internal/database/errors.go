package database

import "errors"

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSignatoryNotFound   = errors.New("signatory not found")
	ErrFacilityNotFound    = errors.New("facility not found")
	ErrEquipmentNotFound   = errors.New("equipment not found")
	ErrUserNotFound        = errors.New("user not found")

	// ErrInvalidTransition is returned when a state-changing operation is
	// invoked against an aggregate that is not in the required starting
	// status. The service layer turns it into a boolean no-op.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateRole is returned when a second signatory with the same
	// role is inserted for a reservation.
	ErrDuplicateRole = errors.New("duplicate signatory role")

	ErrForbidden = errors.New("forbidden")

	// ErrTerminalBooking is returned when a cancel targets a booking whose
	// status can no longer change (approved or denied).
	ErrTerminalBooking = errors.New("booking is in a terminal status")

	ErrInvalidWindow   = errors.New("booking window start must precede end")
	ErrInvalidQuantity = errors.New("equipment quantity must be at least 1")
)
