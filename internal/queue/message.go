package queue

import (
	"encoding/json"
	"time"
)

// Job types carried on the queue.
const (
	TypeParseSubmission = "parse_submission"
	TypeNotify          = "notify"
	TypeSendReminders   = "send_reminders"
)

// MessageVersion is stamped on every message this build produces.
const MessageVersion = 1

// Message is the payload sent to downstream queue consumers. Notify jobs
// target either a role (fan-out to its members) or a single user.
type Message struct {
	Type         string `json:"type"`
	SubmissionID string `json:"submissionId,omitempty"`
	Template     string `json:"template,omitempty"`
	Role         string `json:"role,omitempty"`
	UserID       string `json:"userId,omitempty"`
	Comment      string `json:"comment,omitempty"`
	Count        int    `json:"count,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	EnqueuedAt   string `json:"enqueuedAt"`
	Version      int    `json:"version"`
}

// NewParseMessage builds the job that parses an uploaded workbook.
func NewParseMessage(submissionID, requestID string) Message {
	return Message{
		Type:         TypeParseSubmission,
		SubmissionID: submissionID,
		RequestID:    requestID,
		EnqueuedAt:   time.Now().UTC().Format(time.RFC3339),
		Version:      MessageVersion,
	}
}

// NewNotifyMessage builds a notification job for a role or a single user.
func NewNotifyMessage(submissionID, template, role, userID, comment, requestID string) Message {
	return Message{
		Type:         TypeNotify,
		SubmissionID: submissionID,
		Template:     template,
		Role:         role,
		UserID:       userID,
		Comment:      comment,
		RequestID:    requestID,
		EnqueuedAt:   time.Now().UTC().Format(time.RFC3339),
		Version:      MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Messages written
// before job types existed carried only a submission id and are parse jobs.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" && msg.SubmissionID != "" {
		msg.Type = TypeParseSubmission
	}
	return msg, nil
}
