package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTime_MillisecondsUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	ts := time.Date(2024, 3, 5, 18, 4, 5, 123456789, loc)
	require.Equal(t, "2024-03-05T09:04:05.123Z", FormatTime(ts))
}

func TestMessageView_RedactsDenied(t *testing.T) {
	deny := true
	reply := "thanks"
	replyAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &Message{
		ID:        "m1",
		Message:   "secret",
		MessageNo: 3,
		CreateAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Reply:     &reply,
		ReplyAt:   &replyAt,
		Deny:      &deny,
	}

	v := m.View(true)
	require.Equal(t, DeniedPlaceholder, v.Message)
	require.Equal(t, "2024-01-01T00:00:00.000Z", v.CreateAt)
	require.NotNil(t, v.ReplyAt)
	require.Equal(t, "2024-01-02T03:04:05.000Z", *v.ReplyAt)

	raw := m.View(false)
	require.Equal(t, "secret", raw.Message)
}

func TestMessageView_VisibleWhenDenyFalse(t *testing.T) {
	deny := false
	m := &Message{Message: "hello", Deny: &deny}
	require.False(t, m.Denied())
	require.Equal(t, "hello", m.View(true).Message)
	require.Nil(t, m.View(true).ReplyAt)
}
