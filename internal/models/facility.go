package models

import "time"

// Facility is a bookable room or venue. Facilities are seeded from the
// catalog file at startup and mirrored into the database.
type Facility struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Location  string    `yaml:"location" json:"location,omitempty"`
	Capacity  int64     `yaml:"capacity" json:"capacity"`
	SortOrder int64     `yaml:"sort_order" json:"sort_order"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// Equipment is a catalog item that can be attached to a booking with a
// quantity.
type Equipment struct {
	ID            int64     `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description" json:"description,omitempty"`
	TotalQuantity int64     `yaml:"total_quantity" json:"total_quantity"`
	IsActive      bool      `yaml:"is_active" json:"is_active"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at"`
}

// Availability describes how a facility is occupied within a window.
type Availability struct {
	FacilityID int64     `json:"facility_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Available  bool      `json:"available"`
	Conflicts  int64     `json:"conflicts"`
}
