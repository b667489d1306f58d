package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSConfig configures the Twilio channel.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// SMSChannel sends the body as a Twilio SMS. The subject is dropped.
type SMSChannel struct {
	cfg SMSConfig
	api messageCreator
}

func NewSMSChannel(cfg SMSConfig) (*SMSChannel, error) {
	if strings.TrimSpace(cfg.To) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("sms: %w: to and from numbers are required", ErrMissingField)
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("sms: %w: account sid and auth token are required", ErrMissingField)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSChannel{cfg: cfg, api: client.Api}, nil
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, _ string, body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(c.cfg.To)
	params.SetFrom(c.cfg.From)
	params.SetBody(body)

	// The Twilio client has no context support.
	done := make(chan error, 1)
	go func() {
		_, err := c.api.CreateMessage(params)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sms: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sms: %w", ctx.Err())
	}
}
