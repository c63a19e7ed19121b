package core

import (
	"time"

	"github.com/google/uuid"
)

// Well-known participant identifiers. Any other identifier is a worker id.
const (
	ParticipantUser   = "user"
	ParticipantSystem = "system"
)

// MessageType tags the variant carried in a Message body.
type MessageType string

const (
	// MessageText is a plain text message.
	MessageText MessageType = "text"
	// MessageShutdownRequest asks a participant to wind down.
	MessageShutdownRequest MessageType = "shutdown_request"
	// MessageShutdownApproved grants a pending shutdown request.
	MessageShutdownApproved MessageType = "shutdown_approved"
	// MessageShutdownRejected denies a pending shutdown request.
	MessageShutdownRejected MessageType = "shutdown_rejected"
	// MessageIdleNotification reports a worker has gone idle.
	MessageIdleNotification MessageType = "idle_notification"
	// MessageTaskCompleted reports a finished task.
	MessageTaskCompleted MessageType = "task_completed"
	// MessagePlanApprovalRequest asks the user to review a proposed plan.
	MessagePlanApprovalRequest MessageType = "plan_approval_request"
	// MessagePlanApproved approves a proposed plan.
	MessagePlanApproved MessageType = "plan_approved"
	// MessagePlanRejected rejects a proposed plan with feedback.
	MessagePlanRejected MessageType = "plan_rejected"
	// MessageCustom carries an application-defined action.
	MessageCustom MessageType = "custom"
)

// Body is the tagged variant payload of a Message. Concrete bodies are plain
// value types; adding a case means adding a type, not editing a switch in
// core.
type Body interface {
	MessageType() MessageType
}

// TextBody is a plain text payload.
type TextBody struct {
	Content string `json:"content"`
}

// MessageType implements Body.
func (TextBody) MessageType() MessageType { return MessageText }

// ShutdownRequestBody asks the recipient to shut down, with a reason.
type ShutdownRequestBody struct {
	Reason string `json:"reason"`
}

// MessageType implements Body.
func (ShutdownRequestBody) MessageType() MessageType { return MessageShutdownRequest }

// ShutdownApprovedBody grants a shutdown request.
type ShutdownApprovedBody struct{}

// MessageType implements Body.
func (ShutdownApprovedBody) MessageType() MessageType { return MessageShutdownApproved }

// ShutdownRejectedBody denies a shutdown request.
type ShutdownRejectedBody struct {
	Reason string `json:"reason"`
}

// MessageType implements Body.
func (ShutdownRejectedBody) MessageType() MessageType { return MessageShutdownRejected }

// IdleNotificationBody reports an idle worker, optionally naming the task it
// just finished.
type IdleNotificationBody struct {
	CompletedTaskID string `json:"completed_task_id,omitempty"`
}

// MessageType implements Body.
func (IdleNotificationBody) MessageType() MessageType { return MessageIdleNotification }

// TaskCompletedBody announces a completed task by subject.
type TaskCompletedBody struct {
	TaskSubject string `json:"task_subject"`
}

// MessageType implements Body.
func (TaskCompletedBody) MessageType() MessageType { return MessageTaskCompleted }

// PlanApprovalRequestBody asks the user to review the session's proposed plan.
type PlanApprovalRequestBody struct{}

// MessageType implements Body.
func (PlanApprovalRequestBody) MessageType() MessageType { return MessagePlanApprovalRequest }

// PlanApprovedBody approves the session's proposed plan.
type PlanApprovedBody struct{}

// MessageType implements Body.
func (PlanApprovedBody) MessageType() MessageType { return MessagePlanApproved }

// PlanRejectedBody rejects the proposed plan with feedback for revision.
type PlanRejectedBody struct {
	Feedback string `json:"feedback"`
}

// MessageType implements Body.
func (PlanRejectedBody) MessageType() MessageType { return MessagePlanRejected }

// CustomBody carries an application-defined action string.
type CustomBody struct {
	Action string `json:"action"`
}

// MessageType implements Body.
func (CustomBody) MessageType() MessageType { return MessageCustom }

// Message is the unit of inbox communication between workers, the user and
// the system. A message is immutable after creation except for its Read flag.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Body      Body      `json:"body"`
}

// NewMessage creates an unread message from one participant to another.
func NewMessage(from, to string, body Body) *Message {
	return &Message{
		ID:        NewID(),
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Body:      body,
	}
}

// Type returns the variant tag of the message body.
func (m *Message) Type() MessageType { return m.Body.MessageType() }

// NewID generates a unique identifier for sessions, workers and messages.
func NewID() string { return uuid.NewString() }

// InboxStore holds per-(session, participant) mailboxes of typed messages.
// Consumers poll; reads are cheap, idempotent and have no side effects beyond
// explicit mark-read calls.
type InboxStore interface {
	// Register ensures a mailbox exists for the participant, making it a
	// broadcast recipient before any message has touched it. The manager
	// registers each worker at spawn time.
	Register(sessionID, participant string) error

	// Write appends a message to the (sessionID, to) mailbox, unread.
	Write(sessionID, from, to string, body Body) (*Message, error)

	// Broadcast writes an independent copy of body (own id, own read state)
	// into every known worker mailbox of the session, excluding the sender.
	Broadcast(sessionID, from string, body Body) ([]*Message, error)

	// Read returns a mailbox's messages in timestamp order, optionally
	// filtered to unread ones. It never marks anything read.
	Read(sessionID, participant string, unreadOnly bool) ([]Message, error)

	// MarkAllRead flags every message addressed to participant as read and
	// returns how many flipped.
	MarkAllRead(sessionID, participant string) (int, error)

	// Count returns the (optionally unread-filtered) mailbox cardinality.
	Count(sessionID, participant string, unreadOnly bool) (int, error)

	// Workers returns the worker participants that have sent or received at
	// least one message in the session. The user and system identifiers are
	// excluded.
	Workers(sessionID string) ([]string, error)
}
