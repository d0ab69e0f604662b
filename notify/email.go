package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/warp/shop-ledger/generic"
)

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailHook mails To about large entries and overdue receivables.
type EmailHook struct {
	Mailer Mailer
	To     string
}

func (h EmailHook) Handle(ctx context.Context, ev generic.Event) error {
	if h.To == "" {
		return nil
	}
	subject, body, ok := composeEmail(ev)
	if !ok {
		return nil
	}
	return h.Mailer.Send(ctx, h.To, subject, body)
}

func composeEmail(ev generic.Event) (subject, body string, ok bool) {
	e := ev.Entry
	name := html.EscapeString(e.Snapshot.Name)
	switch {
	case ev.Type == generic.EventOverdue:
		subject = fmt.Sprintf("Overdue: %s owes %s", e.Snapshot.Name, e.Balance)
		body = fmt.Sprintf("<p>%s (%s) was expected to return %s by %s.</p><p>Outstanding: %s</p>",
			name, html.EscapeString(e.Snapshot.Phone), e.Principal, e.ExpectedReturnDate, e.Balance)
	case ev.Large && ev.Type == generic.EventCreated:
		subject = fmt.Sprintf("Large %s: %s to %s", e.Kind, e.Principal, e.Snapshot.Name)
		body = fmt.Sprintf("<p>A %s of %s was recorded for %s on %s.</p>",
			e.Kind, e.Principal, name, e.TransactionDate)
	default:
		return "", "", false
	}
	return headerSafe(subject), body, true
}

// headerSafe folds CR and LF into spaces so a value cannot start a new header.
func headerSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}

// =============================================================================
// SMTP MAILER
// =============================================================================

// SMTPMailer sends HTML mail over implicit TLS (port 465).
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	from := m.Username
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", headerSafe(to)) +
			fmt.Sprintf("Subject: %s\r\n", headerSafe(subject)) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	conn, err := tls.Dial("tcp", m.Host+":"+m.Port, &tls.Config{ServerName: m.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err := client.Auth(smtp.PlainAuth("", m.Username, m.Password, m.Host)); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
