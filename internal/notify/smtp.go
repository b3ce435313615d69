package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type SMTPMailer struct {
	Addr     string // host:port
	Username string
	Password string
	From     string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(addr, username, password, from string) *SMTPMailer {
	return &SMTPMailer{Addr: addr, Username: username, Password: password, From: from, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) Result {
	if strings.TrimSpace(e.To) == "" {
		return Result{ErrorDetail: "missing recipient"}
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	var auth smtp.Auth
	if m.Username != "" {
		host, _, err := net.SplitHostPort(m.Addr)
		if err != nil {
			return failed(err)
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	done := make(chan error, 1)
	go func() { done <- m.send(m.Addr, auth, m.From, []string{e.To}, m.message(e)) }()
	select {
	case err := <-done:
		if err != nil {
			return failed(fmt.Errorf("smtp send: %w", err))
		}
		return Result{Success: true}
	case <-ctx.Done():
		return failed(ctx.Err())
	}
}

func (m *SMTPMailer) message(e Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(e.Body, "\n", "\r\n"))
	return []byte(b.String())
}
