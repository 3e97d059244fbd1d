package models

import "time"

// MailTask is a queued outbound email. Tasks are written to the mail_queue
// table after a state transition commits and drained by the dispatch worker,
// so a slow or failing mail server can never roll back approval state.
type MailTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"` // signatory_request, director_escalation
	BookingID   int64      `json:"booking_id"`
	SignatoryID int64      `json:"signatory_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"` // pending, retry, completed, failed
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
