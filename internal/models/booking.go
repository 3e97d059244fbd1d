package models

import "time"

type Booking struct {
	ID            int64            `json:"id"`
	RequesterID   int64            `json:"requester_id"`
	RequesterName string           `json:"requester_name"`
	FacilityID    int64            `json:"facility_id"`
	FacilityName  string           `json:"facility_name"`
	StartsAt      time.Time        `json:"starts_at"`
	EndsAt        time.Time        `json:"ends_at"`
	Purpose       string           `json:"purpose"`
	Participants  int64            `json:"participants"`
	Policy        string           `json:"policy,omitempty"`
	AdviserEmail  string           `json:"adviser_email,omitempty"`
	DeanEmail     string           `json:"dean_email,omitempty"`
	Status        string           `json:"status"` // prebooking, in_review, pending, approved, denied
	Equipment     []EquipmentLine  `json:"equipment,omitempty"`
	Attachments   []Attachment     `json:"attachments,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EquipmentLine is one requested catalog item with its quantity.
type EquipmentLine struct {
	ID          int64  `json:"id"`
	BookingID   int64  `json:"booking_id"`
	EquipmentID int64  `json:"equipment_id"`
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
}

// Attachment is a reference to an uploaded file; the file itself lives
// outside this service.
type Attachment struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
}

// IsTerminal reports whether the booking can still change state.
func (b *Booking) IsTerminal() bool {
	return IsTerminalStatus(b.Status)
}
