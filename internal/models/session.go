package models

// SessionStatus represents the status of a conversion session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusConverting SessionStatus = "converting"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// ConversionSession represents one asynchronous conversion of uploaded files.
type ConversionSession struct {
	ID               string         `json:"id" msgpack:"id"`
	FileIDs          []string       `json:"fileIds" msgpack:"fileIds"`
	Strategy         string         `json:"strategy" msgpack:"strategy"`
	Status           SessionStatus  `json:"status" msgpack:"status"`
	Progress         float64        `json:"progress" msgpack:"progress"` // 0-100
	FilesDone        int            `json:"filesDone" msgpack:"filesDone"`
	DiagramCount     int            `json:"diagramCount" msgpack:"diagramCount"`
	RungCount        int            `json:"rungCount" msgpack:"rungCount"`
	FindingCount     int            `json:"findingCount" msgpack:"findingCount"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty" msgpack:"processingTimeMs,omitempty"`
	StartTime        int64          `json:"startTime,omitempty" msgpack:"startTime,omitempty"` // Unix ms
	EndTime          int64          `json:"endTime,omitempty" msgpack:"endTime,omitempty"`     // Unix ms
	Errors           []SessionError `json:"errors,omitempty" msgpack:"errors,omitempty"`
}

// SessionError records a file that could not be converted.
type SessionError struct {
	FileID string `json:"fileId" msgpack:"fileId"`
	Reason string `json:"reason" msgpack:"reason"`
}

// NewConversionSession creates a new ConversionSession in pending status.
func NewConversionSession(id string, fileIDs []string, strategy string) *ConversionSession {
	return &ConversionSession{
		ID:       id,
		FileIDs:  append([]string(nil), fileIDs...),
		Strategy: strategy,
		Status:   SessionStatusPending,
		Errors:   make([]SessionError, 0),
	}
}

// Finished reports whether the session reached a terminal status.
func (s *ConversionSession) Finished() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}

// Clone returns a copy that does not share slices with s.
func (s *ConversionSession) Clone() *ConversionSession {
	c := *s
	c.FileIDs = append([]string(nil), s.FileIDs...)
	c.Errors = append([]SessionError(nil), s.Errors...)
	return &c
}
