package models

import "time"

// Submission is the contact form payload. It binds from either a JSON body or
// form-encoded parameters; any client-sent timestamp is ignored.
type Submission struct {
	FullName      string `json:"fullName" form:"fullName"`
	Email         string `json:"email" form:"email"`
	Phone         string `json:"phone" form:"phone"`
	StreetAddress string `json:"streetAddress" form:"streetAddress"`
	City          string `json:"city" form:"city"`
	Postcode      string `json:"postcode" form:"postcode"`
	Comments      string `json:"comments" form:"comments"`
}

// Record is a validated submission stamped with the server's clock.
type Record struct {
	Submission
	Timestamp time.Time
}

// PersistedRecord is a Record that has been appended to the table. Row is its
// durable identity.
type PersistedRecord struct {
	Record
	Row int
}

// Receipt is what the ingestion pipeline hands back to the caller on success.
type Receipt struct {
	Row       int
	Timestamp time.Time
}

// SubmissionResponse is the wire shape returned to the submitting client.
type SubmissionResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RowNumber int    `json:"rowNumber,omitempty"`
	Timestamp string `json:"timestamp"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ISOTimestamp renders t the way browsers do for Date.toISOString.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
