// Package fanout contains the coordinator that fans one notification out
// to every resolved device endpoint.
package fanout

import (
	"context"
	"log/slog"

	"github.com/bradenaw/juniper/parallel"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// DefaultMaxInFlight caps concurrent provider calls per request. Provider
// connection limits make an unbounded fan-out a liability even though
// typical fan-outs are tens of endpoints.
const DefaultMaxInFlight = 20

// Coordinator routes each endpoint to its provider client, runs all
// attempts for one request concurrently, and folds the outcomes into
// counters. It holds no per-request state.
type Coordinator struct {
	apns        dispatch.ProviderClient
	fcm         dispatch.ProviderClient
	maxInFlight int
	logger      *slog.Logger
}

// NewCoordinator creates a coordinator over the two provider clients.
// maxInFlight <= 0 selects DefaultMaxInFlight.
func NewCoordinator(apns, fcm dispatch.ProviderClient, maxInFlight int, logger *slog.Logger) *Coordinator {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Coordinator{
		apns:        apns,
		fcm:         fcm,
		maxInFlight: maxInFlight,
		logger:      logger.With("component", "DispatchCoordinator"),
	}
}

// FanOut attempts delivery to every endpoint and returns the sent/failed
// counts. Endpoints with an empty token are skipped and counted in
// neither. One endpoint's rejection never suppresses attempts to the
// others, and delivery order across endpoints is unspecified: outcomes are
// folded commutatively.
func (c *Coordinator) FanOut(ctx context.Context, endpoints []notification.DeviceEndpoint, content notification.Content, data map[string]any) (sent, failed int) {
	attempted := make([]notification.DeviceEndpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Token == "" {
			continue
		}
		attempted = append(attempted, ep)
	}
	if len(attempted) == 0 {
		return 0, 0
	}

	outcomes, err := parallel.MapContext(ctx, c.maxInFlight, attempted,
		func(ctx context.Context, ep notification.DeviceEndpoint) (notification.Outcome, error) {
			return c.send(ctx, ep, content, data), nil
		},
	)
	if err != nil {
		// Only reachable through context cancellation, since the send
		// callback never errors. Every endpoint without a recorded outcome
		// counts as failed.
		return 0, len(attempted)
	}

	for i, outcome := range outcomes {
		switch outcome {
		case notification.OutcomeDelivered:
			sent++
		default:
			failed++
			c.logger.Debug("endpoint delivery failed",
				"platform", attempted[i].Platform,
				"outcome", outcome.String(),
			)
		}
	}

	return sent, failed
}

func (c *Coordinator) send(ctx context.Context, ep notification.DeviceEndpoint, content notification.Content, data map[string]any) notification.Outcome {
	switch ep.Platform {
	case notification.PlatformIOS:
		return c.apns.Send(ctx, ep.Token, content, data)
	default:
		// Android and unknown tags both go to FCM. Platform tags are
		// free-form strings from the registry; a garbage tag must degrade
		// to an attempted Android send, never a dropped one.
		return c.fcm.Send(ctx, ep.Token, content, data)
	}
}
