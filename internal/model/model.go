package model

import (
	"time"
)

// TimeLayout is the wire format for message timestamps: UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DeniedPlaceholder replaces the text of a denied message in every read view.
const DeniedPlaceholder = "This message has been hidden by its owner."

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// User is a registered account. MessageCount is nil until the first message is posted.
type User struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoURL"`
	MessageCount *int64 `json:"messageCount,omitempty"`
}

// Handle is the public screen-name index entry pointing at a User.
type Handle struct {
	ScreenName  string `json:"-"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// HandleFor builds the index entry for u under screenName.
func HandleFor(screenName string, u User) Handle {
	return Handle{
		ScreenName:  screenName,
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

// Author identifies the poster of a non-anonymous message.
type Author struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Message is the stored form of a message in a user's ledger.
type Message struct {
	ID        string
	OwnerUID  string
	Message   string
	MessageNo int64
	CreateAt  time.Time
	Author    *Author
	Reply     *string
	ReplyAt   *time.Time
	Deny      *bool
}

// Denied reports whether the message is hidden.
func (m *Message) Denied() bool {
	return m.Deny != nil && *m.Deny
}

// MessageView is the wire representation of a Message.
type MessageView struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	MessageNo int64   `json:"messageNo"`
	CreateAt  string  `json:"createAt"`
	Author    *Author `json:"author,omitempty"`
	Reply     *string `json:"reply,omitempty"`
	ReplyAt   *string `json:"replyAt,omitempty"`
	Deny      *bool   `json:"deny,omitempty"`
}

// View converts m to its wire form. When redact is set, denied messages
// carry DeniedPlaceholder instead of their text.
func (m *Message) View(redact bool) MessageView {
	v := MessageView{
		ID:        m.ID,
		Message:   m.Message,
		MessageNo: m.MessageNo,
		CreateAt:  FormatTime(m.CreateAt),
		Author:    m.Author,
		Reply:     m.Reply,
		Deny:      m.Deny,
	}
	if m.ReplyAt != nil {
		s := FormatTime(*m.ReplyAt)
		v.ReplyAt = &s
	}
	if redact && m.Denied() {
		v.Message = DeniedPlaceholder
	}
	return v
}

// Page is one window of a user's ledger, newest first.
type Page struct {
	TotalElements int64         `json:"totalElements"`
	TotalPages    int64         `json:"totalPages"`
	Page          int64         `json:"page"`
	Size          int64         `json:"size"`
	Content       []MessageView `json:"content"`
}
