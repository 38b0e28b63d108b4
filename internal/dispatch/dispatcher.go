package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"campaignd/internal/domain"
	"campaignd/internal/observability"
	"campaignd/internal/providers/emailapi"
	"campaignd/internal/providers/waba"
	"campaignd/internal/util"
)

// Outcome is the success side of one dispatch attempt. Note carries
// human-readable detail (e.g. the not-configured placeholder) that the
// caller records in the campaign log; the dispatcher itself writes nothing.
type Outcome struct {
	ProviderMsgID string
	Note          string
}

var (
	ErrNoEmail  = errors.New("No email")
	ErrNoPhone  = errors.New("No phone number")
	ErrBadPhone = errors.New("Invalid phone number")
)

type EmailSender interface {
	SendEmail(ctx context.Context, req emailapi.SendRequest) (emailapi.SendResponse, int, error)
}

type MessagingSender interface {
	SendText(ctx context.Context, recipient, body string) (waba.SendResponse, int, []byte, error)
}

// Dispatcher routes one personalized message through the campaign's channel.
// The messaging provider call is wrapped in a circuit breaker; a tripped
// breaker fails the recipient, not the run.
type Dispatcher struct {
	Email     EmailSender
	Messaging MessagingSender
	Breaker   *gobreaker.CircuitBreaker
	Timeout   time.Duration
}

func (d *Dispatcher) Send(ctx context.Context, channel domain.Channel, customer domain.Customer, body, subject string) (Outcome, error) {
	start := time.Now()
	out, err := d.send(ctx, channel, customer, body, subject)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.Dispatches.WithLabelValues(string(channel), result).Inc()
	observability.DispatchLatency.Observe(time.Since(start).Seconds())
	return out, err
}

func (d *Dispatcher) send(ctx context.Context, channel domain.Channel, customer domain.Customer, body, subject string) (Outcome, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	switch channel {
	case domain.ChannelEmail:
		return d.sendEmail(ctx, customer, body, subject)
	case domain.ChannelWhatsApp:
		return d.sendWhatsApp(ctx, customer, body)
	default:
		// No provider is configured for SMS/PUSH in this deployment. The
		// placeholder succeeds so campaign totals stay consistent while the
		// integration is pending; the note makes it visible in the audit log.
		return Outcome{Note: "channel not configured: " + string(channel)}, nil
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, customer domain.Customer, body, subject string) (Outcome, error) {
	to := strings.TrimSpace(customer.Email())
	if to == "" {
		return Outcome{}, ErrNoEmail
	}
	resp, _, err := d.Email.SendEmail(ctx, emailapi.SendRequest{
		To:      to,
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ProviderMsgID: resp.ID}, nil
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, customer domain.Customer, body string) (Outcome, error) {
	phone := util.NormalizePhone(customer.Phone())
	if phone == "" {
		return Outcome{}, ErrNoPhone
	}
	// A leading zero after normalization means a local-format number with no
	// country code; almost certainly malformed for a provider API.
	if strings.HasPrefix(phone, "0") {
		return Outcome{}, ErrBadPhone
	}

	call := func() (any, error) {
		resp, _, _, err := d.Messaging.SendText(ctx, phone, body)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	var resAny any
	var err error
	if d.Breaker != nil {
		resAny, err = d.Breaker.Execute(call)
	} else {
		resAny, err = call()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.Dispatches.WithLabelValues(string(domain.ChannelWhatsApp), "cb_open").Inc()
		}
		return Outcome{}, err
	}
	return Outcome{ProviderMsgID: resAny.(waba.SendResponse).MessageID}, nil
}
