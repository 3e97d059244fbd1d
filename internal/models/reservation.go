package models

import "time"

// Reservation is the approval-tracking aggregate derived from a booking once
// an administrator pre-approves it. Its status mirrors the booking and owns
// the set of signatories whose decisions drive the workflow.
type Reservation struct {
	ID                 int64       `json:"id"`
	BookingID          int64       `json:"booking_id"`
	Status             string      `json:"status"` // mirrors booking status
	AdminApprovedAt    *time.Time  `json:"admin_approved_at,omitempty"`
	DirectorNotifiedAt *time.Time  `json:"director_notified_at,omitempty"`
	FinalApprovedAt    *time.Time  `json:"final_approved_at,omitempty"`
	Signatories        []Signatory `json:"signatories,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// SignatoryByRole returns the signatory holding the given role, or nil.
// Roles are unique per reservation, enforced at insert time.
func (r *Reservation) SignatoryByRole(role string) *Signatory {
	for i := range r.Signatories {
		if r.Signatories[i].Role == role {
			return &r.Signatories[i]
		}
	}
	return nil
}

// AllApproved reports whether every existing signatory has approved.
// Roles that were never created (unresolved emails) do not count.
func (r *Reservation) AllApproved() bool {
	if len(r.Signatories) == 0 {
		return false
	}
	for i := range r.Signatories {
		if r.Signatories[i].Status != SignatoryApproved {
			return false
		}
	}
	return true
}

// NonDirectorsApproved reports whether every signatory except the school
// director has approved.
func (r *Reservation) NonDirectorsApproved() bool {
	seen := false
	for i := range r.Signatories {
		if r.Signatories[i].Role == RoleSchoolDirector {
			continue
		}
		seen = true
		if r.Signatories[i].Status != SignatoryApproved {
			return false
		}
	}
	return seen
}
