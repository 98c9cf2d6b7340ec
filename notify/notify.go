package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
)

// Message is one outbound notification. Data holds the values the subject
// and body were rendered from.
type Message struct {
	To      string
	Subject string
	Body    string
	Data    map[string]string
}

// Notifier delivers messages. A returned error is a delivery failure.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogNotifier writes messages to a structured logger instead of delivering
// them. Bodies are not logged because they may carry codes.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send logs the recipient and subject.
func (n LogNotifier) Send(ctx context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "twostep: notification", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SMTPConfig configures [SMTPNotifier].
type SMTPConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	From     string `yaml:"from" env:"FROM"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// SMTPNotifier delivers plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP validates cfg and returns an SMTPNotifier.
func NewSMTP(cfg SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Addr) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify: smtp addr and from are required")
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}, nil
}

// Send delivers msg. The context is checked before dialing; net/smtp has
// no per-call cancellation.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("notify: header injection rejected")
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host, _, _ := strings.Cut(n.cfg.Addr, ":")
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	if err := n.send(n.cfg.Addr, auth, n.cfg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

// Recorder keeps every message in memory. It can be told to fail so
// rollback paths are reachable in tests and load runs.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

// Send records msg, or returns the configured failure.
func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Fail makes subsequent sends return err. A nil err restores delivery.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Messages returns a copy of what has been sent.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
