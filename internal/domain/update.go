package domain

import "strconv"

// Update is the minimal shape of a Telegram webhook delivery. Only the
// fields the dispatcher consumes are declared; everything else in the
// platform payload is ignored on decode.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is an inline-button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// User identifies the sender of a message or button press.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies the conversation a reply should be delivered to.
type Chat struct {
	ID int64 `json:"id"`
}

// Identity returns the stable rate-limit / session key for the user.
func (u User) Identity() string {
	return strconv.FormatInt(u.ID, 10)
}

// DisplayName returns the best human-readable name we have for the user.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// Button is one inline keyboard entry in an outbound reply. Action is the
// callback identifier echoed back when the button is pressed.
type Button struct {
	Label  string
	Action string
}
