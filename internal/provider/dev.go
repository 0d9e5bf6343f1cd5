package provider

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
)

// DevSMS stands in for Twilio in development. Codes are generated locally
// and written to the log instead of being texted.
type DevSMS struct {
	logger *slog.Logger

	mu    sync.Mutex
	codes map[string]string
}

// NewDevSMS creates a development SMS sender
func NewDevSMS(logger *slog.Logger) *DevSMS {
	return &DevSMS{logger: logger, codes: make(map[string]string)}
}

// SendCode logs a fresh code for to
func (d *DevSMS) SendCode(ctx context.Context, to string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	d.mu.Lock()
	d.codes[to] = code
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "dev sms code", slog.String("to", to), slog.String("code", code))
	return nil
}

// CheckCode compares against the last logged code and consumes it on success
func (d *DevSMS) CheckCode(_ context.Context, to, code string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if want, ok := d.codes[to]; ok && want == code {
		delete(d.codes, to)
		return true, nil
	}
	return false, nil
}

// LogMailer stands in for SMTP in development
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a development mailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send writes the message to the log
func (l *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	l.logger.InfoContext(ctx, "dev mail",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
