// Package notify enqueues outbound email jobs for the auth subsystem.
// Actual rendering and SMTP delivery happen in a separate worker; this
// package only publishes jobs to a broker and reports enqueue failures,
// which must never corrupt credential-store state.
package notify

import (
	"context"
	"encoding/json"
)

// Email is one outbound message job.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Backend defines the broker-agnostic publish operation used by the Mailer.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Mailer serializes email jobs and publishes them to a fixed channel.
type Mailer struct {
	backend Backend
	channel string
}

// NewMailer constructs a Mailer publishing to the named channel.
func NewMailer(backend Backend, channel string) *Mailer {
	return &Mailer{backend: backend, channel: channel}
}

// Send enqueues one email job. An error means the job was not accepted
// by the broker; the message is never partially delivered.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(Email{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	_, err = m.backend.Publish(ctx, m.channel, data, map[string]string{
		"content-type": "application/json",
	})
	return err
}

// Close closes the underlying backend.
func (m *Mailer) Close() error {
	return m.backend.Close()
}
