package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"submission-backend/internal/queue"
	"submission-backend/internal/submissions"
)

// Processor runs the jobs carried on the queue.
type Processor interface {
	ProcessParse(ctx context.Context, submissionID string) error
	Notify(ctx context.Context, msg queue.Message) error
	SendReminders(ctx context.Context) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrUnknownType indicates a message whose type this worker does not run.
type ErrUnknownType struct {
	Meta MessageMeta
	Type string
}

func (e ErrUnknownType) Error() string { return "unknown message type " + `"` + e.Type + `"` }

// ErrMissingSubmissionID indicates a parse message without a submission id.
type ErrMissingSubmissionID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingSubmissionID) Error() string { return "missing submission id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	Type         string
	SubmissionID string
	RequestID    string
	Err          error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + e.Type
	}
	return "process " + e.Type + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Permanent reports whether redelivering the message cannot help.
func Permanent(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		unknown ErrUnknownType
		missing ErrMissingSubmissionID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &unknown) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := validate(msg, meta); err != nil {
		return msg, meta, err
	}
	return msg, meta, nil
}

func validate(msg queue.Message, meta MessageMeta) error {
	switch msg.Type {
	case queue.TypeParseSubmission:
		if strings.TrimSpace(msg.SubmissionID) == "" {
			return ErrMissingSubmissionID{Meta: meta, RequestID: msg.RequestID}
		}
	case queue.TypeNotify, queue.TypeSendReminders:
	default:
		return ErrUnknownType{Meta: meta, Type: msg.Type}
	}
	return nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, p Processor, body string) error {
	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	return Dispatch(ctx, p, msg)
}

// Dispatch runs an already decoded message.
func Dispatch(ctx context.Context, p Processor, msg queue.Message) error {
	if p == nil {
		return errors.New("job processor not configured")
	}
	if err := validate(msg, MessageMeta{}); err != nil {
		return err
	}

	ctx = submissions.WithRequestID(ctx, msg.RequestID)
	var err error
	switch msg.Type {
	case queue.TypeParseSubmission:
		err = p.ProcessParse(ctx, msg.SubmissionID)
	case queue.TypeNotify:
		err = p.Notify(ctx, msg)
	case queue.TypeSendReminders:
		err = p.SendReminders(ctx)
	}
	if err != nil {
		return ErrProcess{Type: msg.Type, SubmissionID: msg.SubmissionID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
