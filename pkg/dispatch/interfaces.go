// Package dispatch contains the public contracts between the coordinator,
// the provider clients and the storage layer.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// ProviderClient defines the contract for a component that can deliver a
// notification to a single device token on one push platform (Apple's APNs,
// Google's FCM).
//
// Implementations are pure with respect to the coordinator: one attempt per
// call, no endpoint-specific state between calls. All failure modes are
// absorbed into the returned Outcome; a provider client never returns an
// error to the fan-out.
type ProviderClient interface {
	Send(ctx context.Context, deviceToken string, content notification.Content, data map[string]any) notification.Outcome
}

// DeviceRegistry resolves user identities to their registered device
// endpoints. Resolve performs one bulk lookup for all requested ids
// regardless of fan-out size. A user with no registered devices is simply
// absent from the result map; only a registry-level failure returns an
// error.
type DeviceRegistry interface {
	Resolve(ctx context.Context, userIDs []string) (map[string][]notification.DeviceEndpoint, error)
}

// AuditSink records dispatch outcomes for later inspection. It is strictly
// best-effort: callers log and discard its errors.
type AuditSink interface {
	RecordDispatch(ctx context.Context, senderID string, result notification.DispatchResult) error
}
