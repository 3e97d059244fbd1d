package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(StatusApproved))
	assert.True(t, IsTerminalStatus(StatusDenied))
	assert.False(t, IsTerminalStatus(StatusPrebooking))
	assert.False(t, IsTerminalStatus(StatusInReview))
	assert.False(t, IsTerminalStatus(StatusPending))
}

func TestReservation_SignatoryByRole(t *testing.T) {
	res := &Reservation{
		Signatories: []Signatory{
			{Role: RoleAdviser, Status: SignatoryPending},
			{Role: RoleDean, Status: SignatoryApproved},
		},
	}

	dean := res.SignatoryByRole(RoleDean)
	assert.NotNil(t, dean)
	assert.Equal(t, SignatoryApproved, dean.Status)
	assert.Nil(t, res.SignatoryByRole(RoleSchoolDirector))
}

func TestReservation_AllApproved(t *testing.T) {
	res := &Reservation{}
	assert.False(t, res.AllApproved(), "empty ledger must not count as approved")

	res.Signatories = []Signatory{
		{Role: RoleAdviser, Status: SignatoryApproved},
		{Role: RoleDean, Status: SignatoryPending},
	}
	assert.False(t, res.AllApproved())

	res.Signatories[1].Status = SignatoryApproved
	assert.True(t, res.AllApproved())
}

func TestReservation_NonDirectorsApproved(t *testing.T) {
	res := &Reservation{
		Signatories: []Signatory{
			{Role: RoleAdviser, Status: SignatoryApproved},
			{Role: RoleDean, Status: SignatoryApproved},
			{Role: RoleSchoolDirector, Status: SignatoryPending},
		},
	}
	assert.True(t, res.NonDirectorsApproved(), "director must be excluded from the check")

	res.Signatories[0].Status = SignatoryPending
	assert.False(t, res.NonDirectorsApproved())

	onlyDirector := &Reservation{Signatories: []Signatory{{Role: RoleSchoolDirector, Status: SignatoryPending}}}
	assert.False(t, onlyDirector.NonDirectorsApproved())
}

func TestSignatory_Decided(t *testing.T) {
	s := &Signatory{Status: SignatoryPending}
	assert.False(t, s.Decided())
	s.Status = SignatoryDenied
	assert.True(t, s.Decided())
}
