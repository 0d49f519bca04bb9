package auth

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"
)

// Mailer sends the account emails. Callers log failures and carry on.
type Mailer interface {
	SendVerificationEmail(email, code string) error
	SendWelcomeEmail(email, name string) error
	SendResetPasswordEmail(email, resetURL string) error
	SendPasswordResetSuccessEmail(email string) error
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// Configured reports whether SMTP credentials are present
func (c EmailConfig) Configured() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != ""
}

// SMTPMailer delivers HTML mail over SMTP. Without credentials it logs the
// message content instead, which keeps local development usable.
type SMTPMailer struct {
	config   EmailConfig
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer returns a Mailer for config
func NewSMTPMailer(config EmailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, logger: logger, sendMail: smtp.SendMail}
}

type emailData struct {
	Name      string
	Code      string
	Link      string
	ExpiresIn string
	Support   string
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "layout-start"}}<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
		.content { padding: 30px; background-color: #f9f9f9; }
		.code { font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; margin: 20px 0; }
		.button {
			display: inline-block;
			background-color: #4CAF50;
			color: white;
			padding: 12px 30px;
			text-decoration: none;
			border-radius: 4px;
			margin: 20px 0;
		}
		.footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
	</style>
</head>
<body>
	<div class="container">{{end}}
{{define "layout-end"}}
		<div class="footer">
			<p>Questions? Contact <a href="mailto:{{.Support}}">{{.Support}}</a></p>
		</div>
	</div>
</body>
</html>{{end}}

{{define "verification"}}{{template "layout-start" .}}
		<div class="header"><h1>Verify your email</h1></div>
		<div class="content">
			<p>Thanks for signing up. Enter this code to verify your email address:</p>
			<div class="code">{{.Code}}</div>
			<p>The code expires in {{.ExpiresIn}}.</p>
			<p>If you didn't create an account, you can ignore this email.</p>
		</div>
{{template "layout-end" .}}{{end}}

{{define "welcome"}}{{template "layout-start" .}}
		<div class="header"><h1>Welcome!</h1></div>
		<div class="content">
			<p>Hi <strong>{{.Name}}</strong>,</p>
			<p>Your email is verified and your account is ready to use.</p>
		</div>
{{template "layout-end" .}}{{end}}

{{define "reset"}}{{template "layout-start" .}}
		<div class="header"><h1>Password Reset Request</h1></div>
		<div class="content">
			<p>You requested to reset your password. Click the button below to choose a new one:</p>
			<center><a href="{{.Link}}" class="button">Reset Password</a></center>
			<p>This link will expire in {{.ExpiresIn}}.</p>
			<p>If you didn't request this, please ignore this email.</p>
		</div>
{{template "layout-end" .}}{{end}}

{{define "reset-success"}}{{template "layout-start" .}}
		<div class="header"><h1>Password changed</h1></div>
		<div class="content">
			<p>Your password was reset successfully.</p>
			<p>If you didn't do this, contact support immediately.</p>
		</div>
{{template "layout-end" .}}{{end}}
`))

// SendVerificationEmail sends the 6-digit verification code
func (m *SMTPMailer) SendVerificationEmail(email, code string) error {
	return m.send(email, "Verify your email", "verification", emailData{Code: code, ExpiresIn: "24 hours"},
		zap.String("code", code))
}

// SendWelcomeEmail greets a newly verified user
func (m *SMTPMailer) SendWelcomeEmail(email, name string) error {
	return m.send(email, "Welcome aboard", "welcome", emailData{Name: name})
}

// SendResetPasswordEmail sends the password reset link
func (m *SMTPMailer) SendResetPasswordEmail(email, resetURL string) error {
	return m.send(email, "Reset your password", "reset", emailData{Link: resetURL, ExpiresIn: "24 hours"},
		zap.String("link", resetURL))
}

// SendPasswordResetSuccessEmail confirms a completed reset
func (m *SMTPMailer) SendPasswordResetSuccessEmail(email string) error {
	return m.send(email, "Your password was reset", "reset-success", emailData{})
}

func (m *SMTPMailer) send(to, subject, tmpl string, data emailData, devFields ...zap.Field) error {
	if !m.config.Configured() {
		// one-time codes and links only go to debug output
		m.logger.Warn("SMTP not configured, email not sent", zap.String("to", to), zap.String("subject", subject))
		if len(devFields) > 0 {
			m.logger.Debug("Unsent email contents", append([]zap.Field{zap.String("to", to)}, devFields...)...)
		}
		return nil
	}

	data.Support = m.config.FromEmail
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	auth := smtp.PlainAuth("", m.config.SMTPUsername, m.config.SMTPPassword, m.config.SMTPHost)

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		m.config.FromName, m.config.FromEmail, to, subject, buf.String(),
	))

	addr := fmt.Sprintf("%s:%s", m.config.SMTPHost, m.config.SMTPPort)
	if err := m.sendMail(addr, auth, m.config.FromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("send %s email: %w", tmpl, err)
	}
	return nil
}
