// Package chat turns group chat messages and button presses into engine
// calls and renders the replies. It knows nothing about a particular
// messenger; transports hand it Message and Callback values.
package chat

// Chat types a transport can report.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// Chat identifies the conversation a message came from.
type Chat struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	ID    int64  `json:"id"`
}

// IsGroup reports whether expenses may be recorded in this chat.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSupergroup
}

// Sender is the user who sent a message or pressed a button.
type Sender struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Message is an incoming text message.
type Message struct {
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
	From      Sender `json:"from"`
	MessageID int64  `json:"message_id"`
}

// Callback is a press on an inline keyboard button.
type Callback struct {
	Data      string `json:"data"`
	Chat      Chat   `json:"chat"`
	From      Sender `json:"from"`
	MessageID int64  `json:"message_id"`
}

// Button is one inline keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Reply is a message to send back to the chat.
type Reply struct {
	Text     string   `json:"text"`
	Keyboard Keyboard `json:"keyboard,omitempty"`
	Markdown bool     `json:"markdown,omitempty"`
}

// CallbackReply answers a button press. Toast is shown to the presser;
// EditText, when set, replaces the text of the message holding the button.
type CallbackReply struct {
	Toast          string   `json:"toast,omitempty"`
	EditText       string   `json:"edit_text,omitempty"`
	Keyboard       Keyboard `json:"keyboard,omitempty"`
	Alert          bool     `json:"alert,omitempty"`
	RemoveKeyboard bool     `json:"remove_keyboard,omitempty"`
}
