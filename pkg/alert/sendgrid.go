package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core"
)

// ErrDeliveryFailed is wrapped when the mail API rejects a message
var ErrDeliveryFailed = errors.New("alert: delivery failed")

// SendGridNotifier sends alerts as e-mail through the SendGrid v3 API
type SendGridNotifier struct {
	client  *fasthttp.Client
	cfg     config.SendGridConfig
	timeout time.Duration
	logger  core.Logger
}

// NewSendGridNotifier creates a notifier for cfg
func NewSendGridNotifier(cfg config.SendGridConfig, logger core.Logger) *SendGridNotifier {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &SendGridNotifier{
		client:  &fasthttp.Client{Name: "exchanger"},
		cfg:     cfg,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

type mailAddress struct {
	Email string `json:"email"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailBody struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

// Body builds the SendGrid request body for a
func (n *SendGridNotifier) Body(a Alert) ([]byte, error) {
	return core.JSONEncode(mailBody{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: n.cfg.To}}}},
		From:             mailAddress{Email: n.cfg.From},
		Subject:          Subject,
		Content:          []mailContent{{Type: "text/plain", Value: a.Text()}},
	})
}

// Notify implements Notifier
func (n *SendGridNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := n.Body(a)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.cfg.URI)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+n.cfg.APIKey)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.SetBody(body)

	deadline := time.Now().Add(n.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := n.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("alert: send mail: %w", err)
	}
	n.logger.Info("Request sent to the email API.")

	status := resp.StatusCode()
	n.logger.Infof("Status of the automated email: %d", status)
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, status, resp.Body())
	}
	return nil
}
