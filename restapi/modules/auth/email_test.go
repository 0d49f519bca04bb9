package auth

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPMailer_NotConfiguredLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewSMTPMailer(EmailConfig{}, zap.New(core))
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("nothing must be sent without credentials")
		return nil
	}

	require.NoError(t, m.SendVerificationEmail("ada@example.com", "123456"))

	warnings := logs.FilterMessage("SMTP not configured, email not sent").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "ada@example.com", fields["to"])
	assert.NotContains(t, fields, "code")

	contents := logs.FilterMessage("Unsent email contents").All()
	require.Len(t, contents, 1)
	assert.Equal(t, zapcore.DebugLevel, contents[0].Level)
	assert.Equal(t, "123456", contents[0].ContextMap()["code"])
}

func TestSMTPMailer_NotConfiguredKeepsSecretsOutOfInfoLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewSMTPMailer(EmailConfig{}, zap.New(core))

	require.NoError(t, m.SendResetPasswordEmail("ada@example.com", "http://app.test/reset-password/abc"))

	for _, entry := range logs.All() {
		assert.NotContains(t, entry.ContextMap(), "link", entry.Message)
	}
}

func TestSMTPMailer_Sends(t *testing.T) {
	cfg := EmailConfig{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     "587",
		SMTPUsername: "mailer",
		SMTPPassword: "pw",
		FromEmail:    "noreply@example.com",
		FromName:     "Accounts",
	}
	m := NewSMTPMailer(cfg, zap.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendResetPasswordEmail("ada@example.com", "http://app.test/reset-password/abc"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "From: Accounts <noreply@example.com>\r\n")
	assert.Contains(t, msg, "Subject: Reset your password\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, msg, `href="http://app.test/reset-password/abc"`)

	require.NoError(t, m.SendWelcomeEmail("ada@example.com", "<Ada>"))
	assert.Contains(t, string(gotMsg), "&lt;Ada&gt;", "names are HTML escaped")
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer(EmailConfig{SMTPUsername: "u", SMTPPassword: "p"}, zap.NewNop())
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := m.SendPasswordResetSuccessEmail("ada@example.com")
	assert.ErrorContains(t, err, "send reset-success email")
}
