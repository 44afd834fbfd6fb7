package dispatcher

import (
	"errors"
	"fmt"

	"github.com/harun/pdfbot/pkg/session"
)

// Kind classifies a failure by how the conversation recovers from it
type Kind string

const (
	// KindUserInput leaves the session untouched and re-prompts the user
	KindUserInput Kind = "user_input"
	// KindTransfer leaves the session untouched and asks for the upload again
	KindTransfer Kind = "transfer"
	// KindProcessing clears the session after a transform failed
	KindProcessing Kind = "processing"
	// KindConversion clears the session after the presentation converter failed
	KindConversion Kind = "conversion"
)

// Reasons attached to user input errors, also used as metric labels
const (
	ReasonNoOperation      = "no_operation"
	ReasonUnknownOperation = "unknown_operation"
	ReasonWrongKind        = "wrong_kind"
	ReasonTooLarge         = "too_large"
	ReasonEmptyBatch       = "empty_batch"
	ReasonEmptyParameter   = "empty_parameter"
)

// Error is returned by every failed event. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Op      session.Operation
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Op != session.OpNone {
		msg += " in " + string(e.Op)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a dispatcher error of kind k
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}

func userError(op session.Operation, reason, message string) *Error {
	return &Error{Kind: KindUserInput, Op: op, Reason: reason, Message: message}
}

func transferError(op session.Operation, err error) *Error {
	return &Error{Kind: KindTransfer, Op: op, Message: msgDownloadFailed, Err: err}
}

// ReplyFor renders err as an error reply
func ReplyFor(err error) Reply {
	var de *Error
	if !errors.As(err, &de) {
		return Reply{Kind: ReplyError, Text: msgUnexpected, Err: err}
	}
	return Reply{
		Kind: ReplyError,
		Text: de.Message,
		Menu: de.Reason == ReasonNoOperation || de.Reason == ReasonUnknownOperation,
		Err:  err,
	}
}
