package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
	auth smtp.Auth
}

func newTestMailer(t *testing.T, send sendFunc) *Mailer {
	t.Helper()
	m, err := NewMailer(Config{Host: "smtp.example.org", Port: 587, Username: "u", Password: "p", Sender: "noreply@example.org"})
	require.NoError(t, err)
	m.send = send
	return m
}

func TestMailer_Send(t *testing.T) {
	var got captured
	m := newTestMailer(t, func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got = captured{addr: addr, from: from, to: to, msg: string(msg), auth: a}
		return nil
	})

	err := m.Send(context.Background(), "bob", "bob@example.org", nil, "ve_invitation", map[string]any{
		"from":    "alice",
		"message": "<b>join</b>",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.org:587", got.addr)
	assert.Equal(t, "noreply@example.org", got.from)
	assert.Equal(t, []string{"bob@example.org"}, got.to)
	assert.NotNil(t, got.auth)
	assert.Contains(t, got.msg, "Content-Type: text/html")
	assert.Contains(t, got.msg, "Hallo bob")
	assert.Contains(t, got.msg, "alice hat Sie zu einem VE eingeladen")
	assert.Contains(t, got.msg, "&lt;b&gt;join&lt;/b&gt;")
}

func TestMailer_SendSubjectOverride(t *testing.T) {
	var msg string
	m := newTestMailer(t, func(_ string, _ smtp.Auth, _ string, _ []string, b []byte) error {
		msg = string(b)
		return nil
	})
	subject := "Digest"

	require.NoError(t, m.Send(context.Background(), "bob", "bob@example.org", &subject, "new_messages",
		map[string]any{"unread_count": 3}))
	assert.Contains(t, msg, "Subject: Digest")
	assert.Contains(t, msg, "3 ungelesene")
}

func TestMailer_SendErrors(t *testing.T) {
	m := newTestMailer(t, func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	})

	err := m.Send(context.Background(), "bob", "bob@example.org", nil, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	err = m.Send(context.Background(), "bob", "bob@example.org", nil, "reminder", map[string]any{"text": "x"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestMailer_SendHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	m := newTestMailer(t, func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Send(ctx, "bob", "bob@example.org", nil, "reminder", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
