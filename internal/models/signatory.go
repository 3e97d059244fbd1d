package models

import "time"

// Signatory is one required approver for a reservation. The token is a
// bearer credential embedded in the emailed approve/deny links; it is
// generated once at creation and never rotated.
type Signatory struct {
	ID            int64      `json:"id"`
	ReservationID int64      `json:"reservation_id"`
	Role          string     `json:"role"` // adviser, dean, school_president, school_director
	UserID        *int64     `json:"user_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email"`
	Status        string     `json:"status"` // pending, approved, denied
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	Token         string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Decided reports whether this signatory already acted. A decided signatory
// is never mutated again.
func (s *Signatory) Decided() bool {
	return s.Status != SignatoryPending
}
