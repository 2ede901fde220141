package actor

import "github.com/google/uuid"

// Status is the lifecycle state of an actor response.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Request is one client call addressed to an actor. MessageId defaults to a
// fresh UUID when left empty; callers that need to correlate a response
// with a specific prior call (e.g. resuming a handoff) may supply their own.
type Request struct {
	MessageID string
	Method    string
	Params    any
}

// NewRequest builds a Request, generating a MessageID if none is given.
func NewRequest(method string, params any) Request {
	return Request{MessageID: uuid.NewString(), Method: method, Params: params}
}

// Response is an actor's reply to a Request, or a progress update posted
// while the request is still being handled. SenderID is set when the
// response originates from an actor other than the one addressed, e.g. a
// handoff coordinator relaying a response on behalf of a specialist.
type Response struct {
	MessageID string
	Status    Status
	Data      any
	Err       string
	SenderID  string
}
