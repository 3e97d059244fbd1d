package models

const (
	StatusPrebooking = "prebooking"
	StatusInReview   = "in_review"
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusDenied     = "denied"
)

const (
	SignatoryPending  = "pending"
	SignatoryApproved = "approved"
	SignatoryDenied   = "denied"
)

const (
	RoleAdviser         = "adviser"
	RoleDean            = "dean"
	RoleSchoolPresident = "school_president"
	RoleSchoolDirector  = "school_director"
)

// SignatoryRoles lists every role a reservation expects, in the order
// signatories are created and rendered in mail templates.
var SignatoryRoles = []string{RoleAdviser, RoleDean, RoleSchoolPresident, RoleSchoolDirector}

const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
)

const (
	TaskSignatoryRequest   = "signatory_request"
	TaskDirectorEscalation = "director_escalation"
)

const (
	// DefaultDispatchQueueSize размер очереди воркера рассылки
	DefaultDispatchQueueSize = 256

	// DefaultLinkRateLimit запросов на ссылку согласования в окне
	DefaultLinkRateLimit = 10

	// DefaultLinkRateWindow окно ограничения частоты в секундах
	DefaultLinkRateWindow = 60
)

// IsTerminalStatus reports whether a booking or reservation status can no
// longer change.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusDenied
}

// IsSignatoryRole reports whether role is one of the four expected roles.
func IsSignatoryRole(role string) bool {
	for _, r := range SignatoryRoles {
		if r == role {
			return true
		}
	}
	return false
}
