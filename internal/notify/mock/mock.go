// Package mock provides a test double for the notify.Mailer interface.
package mock

import (
	"context"
	"sync"

	"github.com/helpathands/shiftline/internal/notify"
)

// SentMail records a single delivery.
type SentMail struct {
	Subject string
	Body    string
}

// Mailer is a mock implementation of notify.Mailer. Set Err to fail every
// Send. Safe for concurrent use.
type Mailer struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Send call.
	Err error

	// Sent records every delivery in order.
	Sent []SentMail
}

var _ notify.Mailer = (*Mailer)(nil)

// Send implements notify.Mailer.
func (m *Mailer) Send(_ context.Context, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{Subject: subject, Body: body})
	return nil
}

// SentCount returns the number of successful deliveries.
func (m *Mailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Last returns the most recent delivery, or a zero value.
func (m *Mailer) Last() SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}
	}
	return m.Sent[len(m.Sent)-1]
}
