package sessions

import "time"

// Session is the externally owned therapy session this service reads.
// Transcript holds the stored (encrypted) text.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PatientID  string    `json:"patient_id"`
	Title      string    `json:"title"`
	Transcript string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
