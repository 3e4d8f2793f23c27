package service

import (
	"errors"
	"testing"
	"time"

	"nullfake/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

func newTestEmailService(enabled bool) (*EmailService, *[]sentMail) {
	var sent []sentMail
	s := NewEmailService(&config.EmailConfig{Enabled: enabled, AlertTo: "ops@example.com"}, 30*time.Minute)
	s.send = func(to, subject, body string) error {
		sent = append(sent, sentMail{to, subject, body})
		return nil
	}
	return s, &sent
}

func TestGenerateOutageEmailBody(t *testing.T) {
	s, _ := newTestEmailService(true)
	cause := errors.New("all llm providers failed: openai: provider unavailable (status 500); deepseek: <timeout>")
	body := s.generateOutageEmailBody("B000000001", "us", cause, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	assert.Contains(t, body, "B000000001")
	assert.Contains(t, body, "2024-05-01 08:00:00")
	assert.Contains(t, body, "<li>openai: provider unavailable (status 500)</li>")
	assert.Contains(t, body, "&lt;timeout&gt;")
}

func TestSendProviderOutageAlert_Throttled(t *testing.T) {
	s, sent := newTestEmailService(true)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, err := s.SendProviderOutageAlert("B000000001", "us", errors.New("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(10 * time.Minute)
	ok, err = s.SendProviderOutageAlert("B000000002", "us", errors.New("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(30 * time.Minute)
	ok, err = s.SendProviderOutageAlert("B000000003", "us", errors.New("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, *sent, 2)
	assert.Equal(t, "ops@example.com", (*sent)[0].to)
}

func TestSendProviderOutageAlert_Disabled(t *testing.T) {
	s, sent := newTestEmailService(false)
	ok, err := s.SendProviderOutageAlert("B000000001", "us", errors.New("x"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, *sent)
}

func TestSendTestEmail(t *testing.T) {
	s, sent := newTestEmailService(true)
	require.NoError(t, s.SendTestEmail(""))
	require.Len(t, *sent, 1)
	assert.Equal(t, "ops@example.com", (*sent)[0].to)

	off, _ := newTestEmailService(false)
	assert.Error(t, off.SendTestEmail("a@b.c"))
}
