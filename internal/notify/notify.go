// Package notify delivers cancellation notification emails.
//
// The email is the authoritative submission of a cancellation request: the
// rostering site itself is not mutated, a downstream manual workflow picks
// the request up from the collector mailbox.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSubject is the subject line used when none is configured.
const DefaultSubject = "SHIFT CANCELLATION REQUEST"

// DefaultTimeout bounds one SMTP delivery.
const DefaultTimeout = 15 * time.Second

// Mailer is the outbound email transport.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPConfig describes the outgoing transport.
type SMTPConfig struct {
	Host string
	Port int

	// Sender is the authenticated from address.
	Sender string

	// Password is the sender's app password.
	Password string

	// Collector is the mailbox that receives cancellation requests.
	Collector string

	// Timeout bounds one delivery. Zero selects DefaultTimeout.
	Timeout time.Duration
}

// SMTPMailer implements Mailer over SMTP. Port 465 uses implicit TLS;
// every other port negotiates STARTTLS.
type SMTPMailer struct {
	cfg SMTPConfig
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTP validates cfg and returns a mailer. No connection is made until
// the first Send.
func NewSMTP(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("notify: smtp host must not be empty")
	}
	if cfg.Sender == "" || cfg.Collector == "" {
		return nil, fmt.Errorf("notify: sender and collector addresses must not be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Sender); err != nil {
		return fmt.Errorf("notify: set sender: %w", err)
	}
	if err := msg.To(m.cfg.Collector); err != nil {
		return fmt.Errorf("notify: set recipient: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Sender),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}

// StaffInfo is the identity block of a cancellation email.
type StaffInfo struct {
	Name  string
	ID    string
	Email string
}

// ShiftLine is one shift entry of a cancellation email. Date is already in
// the DD-MM-YYYY display layout.
type ShiftLine struct {
	Client string
	Time   string
	Date   string
}

// FormatCancellation renders the plaintext notification body. The layout
// is fixed: the collector mailbox is parsed by people and tooling that
// expect exactly this shape. The REASON block is omitted entirely when no
// reason is supplied.
func FormatCancellation(staff StaffInfo, shifts []ShiftLine, reason string) string {
	var b strings.Builder

	b.WriteString("Requested cancellation of shift.\n\n")

	b.WriteString("    STAFF:\n")
	fmt.Fprintf(&b, "        · Name: %s\n", staff.Name)
	fmt.Fprintf(&b, "        · ID: %s\n", staff.ID)
	fmt.Fprintf(&b, "        · Email: %s\n", staff.Email)
	b.WriteString("\n")

	b.WriteString("    SHIFT(S):\n")
	for _, s := range shifts {
		fmt.Fprintf(&b, "        · %s at %s %s\n", s.Client, s.Time, s.Date)
	}

	if reason != "" {
		b.WriteString("\n")
		b.WriteString("    REASON:\n")
		fmt.Fprintf(&b, "        %s\n", reason)
	}

	b.WriteString("\nThis is an auto-generated email. Please do not reply.")
	return b.String()
}
