package apns

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sideshow/apns2/payload"

	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// ProductionHost is the APNs HTTP/2 API endpoint. Go's default transport
// negotiates HTTP/2 over TLS via ALPN, which APNs requires.
const ProductionHost = "https://api.push.apple.com"

const callTimeout = 10 * time.Second

// Config holds everything the APNs dispatcher needs.
type Config struct {
	// BundleID is the app topic. When absent every send reports
	// configuration-missing without touching the signer.
	BundleID string
	// Host overrides ProductionHost, mainly for tests.
	Host string
}

type Dispatcher struct {
	rc     *resty.Client
	tokens TokenSource
	topic  string // The App Bundle ID (e.g. com.tinywide.messenger)
	logger *slog.Logger
}

// NewDispatcher creates a configured APNs dispatcher.
func NewDispatcher(cfg Config, tokens TokenSource, logger *slog.Logger) *Dispatcher {
	host := cfg.Host
	if host == "" {
		host = ProductionHost
	}

	rc := resty.New().
		SetBaseURL(host).
		SetTimeout(callTimeout)

	return &Dispatcher{
		rc:     rc,
		tokens: tokens,
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

// Send delivers the notification to a single device token. The APNs HTTP/2
// API is unary: one request per token, one attempt per dispatch. Retries
// are the caller's concern, at a higher level than this subsystem.
func (d *Dispatcher) Send(ctx context.Context, deviceToken string, content notification.Content, data map[string]any) notification.Outcome {
	if d.topic == "" {
		return notification.OutcomeConfigMissing
	}

	bearer, ok := d.tokens.SigningToken()
	if !ok {
		return notification.OutcomeConfigMissing
	}

	body := payload.NewPayload().
		AlertTitle(content.Title).
		AlertBody(content.Body).
		Sound("default").
		Custom("data", data)

	res, err := d.rc.R().
		SetContext(ctx).
		SetAuthToken(bearer).
		SetHeader("apns-push-type", "alert").
		SetHeader("apns-topic", d.topic).
		SetBody(body).
		Post("/3/device/" + deviceToken)
	if err != nil {
		d.logger.Error("APNs transport failed", "err", err)
		return notification.OutcomeRejected
	}

	if !res.IsSuccess() {
		d.logger.Warn("APNs rejected notification", "status", res.StatusCode())
		return notification.OutcomeRejected
	}

	return notification.OutcomeDelivered
}
