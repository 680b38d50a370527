// Package fcm provides the client for Firebase Cloud Messaging, using the
// legacy server-key HTTP API.
package fcm

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// ProductionHost is the legacy FCM send endpoint host.
const ProductionHost = "https://fcm.googleapis.com"

const callTimeout = 10 * time.Second

// Config holds everything the FCM dispatcher needs.
type Config struct {
	// ServerKey authorizes against the legacy API. When absent every send
	// reports configuration-missing.
	ServerKey string
	// Host overrides ProductionHost, mainly for tests.
	Host string
}

type Dispatcher struct {
	rc        *resty.Client
	serverKey string
	logger    *slog.Logger
}

// legacyMessage is the legacy /fcm/send request body.
type legacyMessage struct {
	To           string             `json:"to"`
	Priority     string             `json:"priority"`
	Notification legacyNotification `json:"notification"`
	Data         map[string]any     `json:"data,omitempty"`
}

type legacyNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewDispatcher creates a configured FCM dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	host := cfg.Host
	if host == "" {
		host = ProductionHost
	}

	rc := resty.New().
		SetBaseURL(host).
		SetTimeout(callTimeout)

	return &Dispatcher{
		rc:        rc,
		serverKey: cfg.ServerKey,
		logger:    logger.With("component", "FCMDispatcher"),
	}
}

// Send delivers the notification to a single device token with high
// priority. One attempt per dispatch, same non-retry policy as APNs.
func (d *Dispatcher) Send(ctx context.Context, deviceToken string, content notification.Content, data map[string]any) notification.Outcome {
	if d.serverKey == "" {
		return notification.OutcomeConfigMissing
	}

	msg := legacyMessage{
		To:       deviceToken,
		Priority: "high",
		Notification: legacyNotification{
			Title: content.Title,
			Body:  content.Body,
		},
		Data: data,
	}

	res, err := d.rc.R().
		SetContext(ctx).
		SetHeader("Authorization", "key="+d.serverKey).
		SetBody(msg).
		Post("/fcm/send")
	if err != nil {
		d.logger.Error("FCM transport failed", "err", err)
		return notification.OutcomeRejected
	}

	if !res.IsSuccess() {
		d.logger.Warn("FCM rejected notification", "status", res.StatusCode())
		return notification.OutcomeRejected
	}

	return notification.OutcomeDelivered
}
