package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// EmailConfig configures SMTP submission. The server must offer STARTTLS
// when credentials are sent.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	To       []string
	Username string // defaults to From
	Password string
}

type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// EmailChannel sends a plain-text message over SMTP.
type EmailChannel struct {
	cfg      EmailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if strings.TrimSpace(cfg.From) == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email: %w: from and to are required", ErrMissingField)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("email: %w: password is required", ErrMissingField)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, subject, body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if subject == "" {
		return fmt.Errorf("email: %w: subject", ErrMissingField)
	}
	msg, err := c.compose(subject, body)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	auth := sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)

	// go-smtp's SendMail is not context-aware; run it aside so a stuck
	// server does not outlive the send timeout.
	done := make(chan error, 1)
	go func() { done <- c.sendMail(addr, auth, c.cfg.From, c.cfg.To, bytes.NewReader(msg)) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email: %w", ctx.Err())
	}
}

func (c *EmailChannel) compose(subject, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now())
	h.SetAddressList("From", []*mail.Address{{Address: c.cfg.From}})
	to := make([]*mail.Address, 0, len(c.cfg.To))
	for _, a := range c.cfg.To {
		to = append(to, &mail.Address{Address: strings.TrimSpace(a)})
	}
	h.SetAddressList("To", to)
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("email: message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("email: compose: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("email: compose: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("email: compose: %w", err)
	}
	return buf.Bytes(), nil
}
