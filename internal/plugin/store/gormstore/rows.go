package gormstore

import (
	"time"

	"github.com/chirino/askbox/internal/model"
)

type memberRow struct {
	UID          string    `gorm:"primaryKey;column:uid"`
	Email        string    `gorm:"not null"`
	DisplayName  string    `gorm:"not null;default:''"`
	PhotoURL     string    `gorm:"column:photo_url;not null;default:''"`
	MessageCount *int64    `gorm:"column:message_count"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (memberRow) TableName() string { return "members" }

func (r memberRow) toModel() *model.User {
	return &model.User{
		UID:          r.UID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PhotoURL:     r.PhotoURL,
		MessageCount: r.MessageCount,
	}
}

type screenNameRow struct {
	ScreenName  string    `gorm:"primaryKey;column:screen_name"`
	UID         string    `gorm:"column:uid;not null;index"`
	Email       string    `gorm:"not null"`
	DisplayName string    `gorm:"not null;default:''"`
	PhotoURL    string    `gorm:"column:photo_url;not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (screenNameRow) TableName() string { return "screen_names" }

func (r screenNameRow) toModel() *model.Handle {
	return &model.Handle{
		ScreenName:  r.ScreenName,
		UID:         r.UID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		PhotoURL:    r.PhotoURL,
	}
}

type messageRow struct {
	ID                string     `gorm:"primaryKey;size:36"`
	UID               string     `gorm:"column:uid;not null;uniqueIndex:idx_messages_uid_message_no,priority:1"`
	MessageNo         int64      `gorm:"column:message_no;not null;uniqueIndex:idx_messages_uid_message_no,priority:2"`
	Message           string     `gorm:"not null"`
	CreateAt          time.Time  `gorm:"column:create_at;not null"`
	AuthorDisplayName *string    `gorm:"column:author_display_name"`
	AuthorPhotoURL    *string    `gorm:"column:author_photo_url"`
	Reply             *string    `gorm:"column:reply"`
	ReplyAt           *time.Time `gorm:"column:reply_at"`
	Deny              *bool      `gorm:"column:deny"`
}

func (messageRow) TableName() string { return "messages" }

func fromMessage(m *model.Message) messageRow {
	row := messageRow{
		ID:        m.ID,
		UID:       m.OwnerUID,
		MessageNo: m.MessageNo,
		Message:   m.Message,
		CreateAt:  m.CreateAt,
		Reply:     m.Reply,
		ReplyAt:   m.ReplyAt,
		Deny:      m.Deny,
	}
	if m.Author != nil {
		name := m.Author.DisplayName
		row.AuthorDisplayName = &name
		if m.Author.PhotoURL != "" {
			photo := m.Author.PhotoURL
			row.AuthorPhotoURL = &photo
		}
	}
	return row
}

func (r messageRow) toModel() model.Message {
	m := model.Message{
		ID:        r.ID,
		OwnerUID:  r.UID,
		Message:   r.Message,
		MessageNo: r.MessageNo,
		CreateAt:  r.CreateAt.UTC(),
		Reply:     r.Reply,
		Deny:      r.Deny,
	}
	if r.ReplyAt != nil {
		at := r.ReplyAt.UTC()
		m.ReplyAt = &at
	}
	if r.AuthorDisplayName != nil {
		m.Author = &model.Author{DisplayName: *r.AuthorDisplayName}
		if r.AuthorPhotoURL != nil {
			m.Author.PhotoURL = *r.AuthorPhotoURL
		}
	}
	return m
}

// Models lists the row types for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&memberRow{}, &screenNameRow{}, &messageRow{}}
}
