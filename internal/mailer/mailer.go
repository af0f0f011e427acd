package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers verification-code emails over SMTP.
type Mailer struct {
	Addr     string
	From     string
	Username string
	Password string
}

// New creates a mailer. With empty credentials the send is attempted
// unauthenticated (local relay).
func New(addr, from, username, password string) *Mailer {
	return &Mailer{Addr: addr, From: from, Username: username, Password: password}
}

// SendCode emails a verification code. Purpose selects the wording.
func (m *Mailer) SendCode(to, code, purpose string) error {
	subject := "Your verification code"
	intro := "Your verification code is"
	if purpose == "password_reset" {
		subject = "Password reset code"
		intro = "Your password reset code is"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "%s: %s\r\n\r\nThe code expires in 5 minutes.\r\n", intro, code)

	var auth smtp.Auth
	if m.Username != "" {
		host := m.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	return smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(msg.String()))
}
