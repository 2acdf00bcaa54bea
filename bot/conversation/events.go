package conversation

import "github.com/m3rciful/slrbot/bot/order"

// EventKind enumerates the inbound events understood by the engine.
type EventKind int

const (
	// EventWelcome is the /start command, optionally with a deep-link payload.
	EventWelcome EventKind = iota + 1
	// EventStart begins a new order, replacing any live session.
	EventStart
	// EventCancel discards the live session, if any.
	EventCancel
	// EventText is a plain text reply.
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventWelcome:
		return "welcome"
	case EventStart:
		return "start"
	case EventCancel:
		return "cancel"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// User is the sender of an event.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Event is one inbound update from a user in a chat.
type Event struct {
	Kind    EventKind
	ChatID  int64
	User    User
	Payload string
	Text    string
}

// Choices tells the transport which affordances accompany a prompt.
type Choices int

const (
	// ChoiceNone sends the prompt without a keyboard.
	ChoiceNone Choices = iota
	// ChoiceCancel offers the cancel button.
	ChoiceCancel
)

// Intent is an outbound instruction for the transport.
type Intent interface {
	intent()
}

// Welcome shows the welcome menu. Text is Markdown.
type Welcome struct {
	ChatID int64
	Text   string
}

// Prompt asks the user for the next answer.
type Prompt struct {
	ChatID   int64
	Text     string
	Markdown bool
	Choices  Choices
}

// NotifyBackOffice relays a completed order to the back office. Text is Markdown.
type NotifyBackOffice struct {
	Text  string
	Order order.Order
}

// ConfirmUser tells the customer the order was recorded and clears the keyboard.
type ConfirmUser struct {
	ChatID  int64
	OrderNo string
	Text    string
}

// CancelAck acknowledges a cancellation and clears the keyboard.
type CancelAck struct {
	ChatID int64
	Text   string
}

func (Welcome) intent()          {}
func (Prompt) intent()           {}
func (NotifyBackOffice) intent() {}
func (ConfirmUser) intent()      {}
func (CancelAck) intent()        {}
