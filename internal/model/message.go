package model

import "time"

// ProcessingOrder is the server-side fetch order for pending messages.
type ProcessingOrder string

const (
	OrderFIFO ProcessingOrder = "FIFO"
	OrderLIFO ProcessingOrder = "LIFO"
)

// MessageState mirrors the lifecycle the local sender reports for a message.
type MessageState string

const (
	StatePending   MessageState = "Pending"
	StateProcessed MessageState = "Processed"
	StateSent      MessageState = "Sent"
	StateDelivered MessageState = "Delivered"
	StateFailed    MessageState = "Failed"
)

// MessageContent is either a text or a binary-data payload.
type MessageContent interface {
	isMessageContent()
}

type TextContent struct {
	Text string
}

type DataContent struct {
	Data []byte
	Port uint16
}

func (TextContent) isMessageContent() {}
func (DataContent) isMessageContent() {}

// RemoteMessage is a message fetched from the remote queue. Immutable once
// fetched; identified by the server-assigned ID.
type RemoteMessage struct {
	ID                 string
	Content            MessageContent
	PhoneNumbers       []string
	IsEncrypted        *bool
	CreatedAt          *time.Time
	WithDeliveryReport *bool
	SimNumber          *int
	ValidUntil         *time.Time
	Priority           int
}

// EntitySource marks where a send request originated.
type EntitySource string

const (
	SourceLocal EntitySource = "Local"
	SourceCloud EntitySource = "Cloud"
)

// SendParams carries delivery options for a send request.
type SendParams struct {
	WithDeliveryReport  bool
	SkipPhoneValidation bool
	SimNumber           *int
	ValidUntil          *time.Time
	Priority            int
}

// SendRequest is what the dispatch pipeline hands to the local sender.
type SendRequest struct {
	ID           string
	Source       EntitySource
	MessageID    string
	Content      MessageContent
	PhoneNumbers []string
	IsEncrypted  bool
	CreatedAt    time.Time
	Params       SendParams
}

// RecipientState is the per-recipient slice of a send state.
type RecipientState struct {
	PhoneNumber string
	State       MessageState
	Error       *string
}

// StateEntry records when a message entered a state.
type StateEntry struct {
	State     MessageState
	UpdatedAt time.Time
}

// LocalSendState is the local sender's view of one message's progress. The
// dispatch pipeline reads and reports it, never mutates it.
type LocalSendState struct {
	MessageID  string
	State      MessageState
	Recipients []RecipientState
	States     []StateEntry
}

// InboxItem is a read-only snapshot of one locally stored inbound message.
// ExternalID is the class-prefixed idempotency key (sms_<id> / mms_<id>).
type InboxItem struct {
	PhoneNumber string
	Body        string
	ReceivedAt  time.Time
	ExternalID  string
}

// RegistrationInfo is the device's remote identity. Replaced wholesale on
// re-registration; only the password changes on a password change.
type RegistrationInfo struct {
	DeviceID    string
	Login       string
	Password    string
	AccessToken string
}

// Webhook is a server-configured callback definition.
type Webhook struct {
	ID    string
	URL   string
	Event string
}
