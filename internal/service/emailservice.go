package service

import (
	"context"
	"fmt"
	"strings"

	"formlink/internal/config"
	"formlink/internal/email"
)

// EmailService sends account emails over SMTP using the server configuration.
// The send function is a field so tests can intercept delivery.
type EmailService struct {
	SMTP config.SMTPConfig
	Send func(email.Settings, email.Message) error
}

func (s *EmailService) SendPasswordReset(ctx context.Context, toEmail, resetURL string) error {
	if !s.SMTP.Configured() {
		return fmt.Errorf("smtp not configured")
	}

	subject := "Your password reset token (valid for 10 minutes)"
	body := strings.Join([]string{
		"Forgot your password?",
		"",
		"Reset it using this link:",
		resetURL,
		"",
		"If you didn't request a password reset, please ignore this email.",
	}, "\n")

	send := s.Send
	if send == nil {
		send = email.SendSMTP
	}
	return send(email.Settings{
		Host:     s.SMTP.Host,
		Port:     s.SMTP.Port,
		Username: s.SMTP.Username,
		Password: s.SMTP.Password,
		TLSMode:  s.SMTP.TLSMode,
	}, email.Message{
		FromName:  s.SMTP.FromName,
		FromEmail: s.SMTP.FromEmail,
		ToEmail:   toEmail,
		Subject:   subject,
		TextBody:  body,
	})
}
