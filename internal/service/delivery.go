package service

import (
	"context"
	"net/mail"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"go.uber.org/zap"
)

// RemoteResult is what the remote channel reports on success
type RemoteResult struct {
	Message    string `json:"message"`
	PreviewURL string `json:"previewUrl"`
}

// RemoteChannel transmits email through a server
type RemoteChannel interface {
	Healthy(ctx context.Context) bool
	Submit(ctx context.Context, email models.EmailData) (RemoteResult, error)
}

// FallbackChannel hands a composed draft back to the user
type FallbackChannel interface {
	Compose(ctx context.Context, email models.EmailData) (models.Draft, error)
}

// DeliveryDispatcher sends through the remote channel when it answered the last
// health probe and through the fallback otherwise
type DeliveryDispatcher struct {
	remote    RemoteChannel
	fallback  FallbackChannel
	available atomic.Bool
	logger    *zap.Logger
}

// NewDeliveryDispatcher probes remote once. A nil remote is never available.
func NewDeliveryDispatcher(ctx context.Context, remote RemoteChannel, fallback FallbackChannel) *DeliveryDispatcher {
	d := &DeliveryDispatcher{
		remote:   remote,
		fallback: fallback,
		logger:   util.ComponentLogger("delivery"),
	}
	d.Reprobe(ctx)
	return d
}

// RemoteAvailable reports the result of the last probe
func (d *DeliveryDispatcher) RemoteAvailable() bool {
	return d.available.Load()
}

// Reprobe refreshes remote availability
func (d *DeliveryDispatcher) Reprobe(ctx context.Context) bool {
	ok := d.remote != nil && d.remote.Healthy(ctx)
	d.available.Store(ok)
	if ok {
		util.RemoteAvailable.Set(1)
	} else {
		util.RemoteAvailable.Set(0)
		d.logger.Warn("Email server not available, deliveries will use the fallback channel")
	}
	return ok
}

// Send delivers email. An empty recipient is rejected before any channel is tried.
// A remote failure falls back to a draft and reports success=false with the remote error.
func (d *DeliveryDispatcher) Send(ctx context.Context, email models.EmailData) (models.DeliveryOutcome, error) {
	ctx, span := util.StartSpan(ctx, "DeliveryDispatcher.Send")
	defer span.End()

	if strings.TrimSpace(email.To) == "" {
		return models.DeliveryOutcome{}, models.Invalid("to", "recipient email is required")
	}

	start := time.Now()
	defer func() { util.DeliveryLatency.Observe(time.Since(start).Seconds()) }()

	if !d.available.Load() {
		return d.useFallback(ctx, email, nil), nil
	}

	result, err := d.remote.Submit(ctx, email)
	if err != nil {
		util.DeliveryAttemptsTotal.WithLabelValues("remote", "failed").Inc()
		d.logger.Error("Error sending email via server", zap.String("to", email.To), zap.Error(err))
		return d.useFallback(ctx, email, err), nil
	}

	util.DeliveryAttemptsTotal.WithLabelValues("remote", "sent").Inc()
	d.logger.Info("Email sent via server", zap.String("to", email.To))
	return models.DeliveryOutcome{
		Success:    true,
		Message:    result.Message,
		PreviewURL: result.PreviewURL,
	}, nil
}

// useFallback composes a draft. remoteErr is the failure that led here, if any.
func (d *DeliveryDispatcher) useFallback(ctx context.Context, email models.EmailData, remoteErr error) models.DeliveryOutcome {
	outcome := models.DeliveryOutcome{UsedFallback: true}

	draft, err := d.fallback.Compose(ctx, email)
	if err != nil {
		util.DeliveryAttemptsTotal.WithLabelValues("fallback", "failed").Inc()
		d.logger.Error("Error using fallback email method", zap.Error(err))
		outcome.Error = err.Error()
		if remoteErr != nil {
			outcome.Error = remoteErr.Error()
		}
		return outcome
	}
	util.DeliveryAttemptsTotal.WithLabelValues("fallback", "composed").Inc()
	outcome.Draft = &draft

	if remoteErr != nil {
		outcome.Error = remoteErr.Error()
		return outcome
	}
	outcome.Success = true
	outcome.Message = "Email client opened with pre-filled content"
	return outcome
}

// MailtoComposer builds a mailto: draft
type MailtoComposer struct{}

// Compose returns mailto:<to>, with ?cc= first and then the form-encoded subject and body
func (MailtoComposer) Compose(ctx context.Context, email models.EmailData) (models.Draft, error) {
	to := strings.TrimSpace(email.To)
	cc := strings.TrimSpace(email.CC)
	if _, err := mail.ParseAddressList(to); err != nil {
		return models.Draft{}, models.Invalid("to", "invalid recipient %q", to)
	}
	if cc != "" {
		if _, err := mail.ParseAddressList(cc); err != nil {
			return models.Draft{}, models.Invalid("cc", "invalid cc recipient %q", cc)
		}
	}

	var b strings.Builder
	b.WriteString("mailto:")
	b.WriteString(to)

	var params []string
	if email.Subject != "" {
		params = append(params, "subject="+url.QueryEscape(email.Subject))
	}
	if email.Message != "" {
		params = append(params, "body="+url.QueryEscape(email.Message))
	}

	sep := "?"
	if cc != "" {
		b.WriteString("?cc=")
		b.WriteString(cc)
		sep = "&"
	}
	if len(params) > 0 {
		b.WriteString(sep)
		b.WriteString(strings.Join(params, "&"))
	}

	return models.Draft{
		MailtoURL: b.String(),
		To:        to,
		CC:        cc,
		Subject:   email.Subject,
		Body:      email.Message,
	}, nil
}
