package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTP sends messages through a submission server with PLAIN auth.
type SMTP struct {
	// Addr is host:port of the submission server.
	Addr     string
	Username string
	Password string
	// From is the sender account; all reminders go out from it.
	From string

	// Now stamps the Date header; nil selects time.Now.
	Now func() time.Time

	// sendMail is smtp.SendMail outside tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Send composes msg and submits it.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Username != "" {
		host, _, err := net.SplitHostPort(s.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr %q: %w", s.Addr, err)
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	raw, err := Compose(s.From, msg, now())
	if err != nil {
		return err
	}

	send := s.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(s.Addr, auth, s.From, msg.To, raw); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ", "), err)
	}
	return nil
}

// Compose renders msg as an RFC 5322 message with a UTF-8,
// quoted-printable text body.
func Compose(from string, msg Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	header("From", from)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}
