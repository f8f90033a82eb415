package lib

import (
	"bytes"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/yuin/goldmark"
)

// SendMail renders a markdown body to HTML and mails it via the configured
// SMTP relay.
func SendMail(subject, markdownBody string, to []string) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return fmt.Errorf("SMTP_HOST not configured")
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdownBody), &html); err != nil {
		return fmt.Errorf("render mail body: %w", err)
	}

	e := email.NewEmail()
	e.From = from
	e.To = to
	e.Subject = subject
	e.Text = []byte(markdownBody)
	e.HTML = html.Bytes()

	auth := smtp.PlainAuth("", os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASSWORD"), host)
	if err := e.Send(host+":"+port, auth); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// SendAlert mails the ops list. Best-effort: callers log their own failure;
// an unreachable relay must not cascade.
func SendAlert(subject, body string) {
	to := os.Getenv("OPS_ALERT_TO")
	if to == "" {
		return
	}
	_ = SendMail(subject, body, strings.Split(to, ","))
}
