package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestBuildMsg(t *testing.T) {
	msg, err := buildMsg("Inventory Logger <inventory@example.edu>", Message{
		To:       []string{"admin@example.edu", "ops@example.edu"},
		Subject:  "Missing item scanned",
		HTMLBody: "<p>hello</p>",
	})
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin@example.edu", "ops@example.edu"}, rcpts)
	assert.Equal(t, []string{"Missing item scanned"}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestBuildMsgRejectsEmptyRecipients(t *testing.T) {
	_, err := buildMsg("inventory@example.edu", Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestBuildMsgRejectsBadAddress(t *testing.T) {
	_, err := buildMsg("inventory@example.edu", Message{To: []string{"not an address"}})
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(nil)
	assert.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.edu"}}))
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
}
