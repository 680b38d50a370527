// Package supabase implements the device registry and the delivery audit
// sink on top of the Supabase PostgREST API.
package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

const requestTimeout = 10 * time.Second

// Config holds the registry connection settings.
type Config struct {
	// URL is the project base URL (e.g. https://abc.supabase.co).
	URL string
	// ServiceKey is the service-role credential used for both the apikey
	// header and bearer auth.
	ServiceKey string
}

// Registry reads device endpoints from the device_tokens table and writes
// dispatch outcomes to the notification_log table. It never registers or
// rotates tokens; that flow lives elsewhere.
type Registry struct {
	rc     *resty.Client
	logger *slog.Logger
}

// deviceRow is the device_tokens table representation.
type deviceRow struct {
	UserID   string `json:"user_id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// auditRow is the notification_log table representation.
type auditRow struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRegistry creates a PostgREST-backed registry.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	rc := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(requestTimeout).
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey)

	return &Registry{
		rc:     rc,
		logger: logger.With("component", "SupabaseRegistry"),
	}
}

// Resolve fetches the endpoints for all requested users in a single bulk
// query, keeping registry round trips at one regardless of fan-out size.
// Users without devices are simply absent from the result.
func (r *Registry) Resolve(ctx context.Context, userIDs []string) (map[string][]notification.DeviceEndpoint, error) {
	var rows []deviceRow

	res, err := r.rc.R().
		SetContext(ctx).
		SetQueryParam("select", "user_id,token,platform").
		SetQueryParam("user_id", inFilter(userIDs)).
		SetResult(&rows).
		Get("/rest/v1/device_tokens")
	if err != nil {
		return nil, fmt.Errorf("device token lookup failed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("device token lookup failed: status %d", res.StatusCode())
	}

	endpoints := make(map[string][]notification.DeviceEndpoint, len(userIDs))
	for _, row := range rows {
		endpoints[row.UserID] = append(endpoints[row.UserID], notification.DeviceEndpoint{
			Token:    row.Token,
			Platform: notification.ParsePlatform(row.Platform),
		})
	}

	return endpoints, nil
}

// RecordDispatch inserts one audit row. Callers treat failures as
// non-fatal; the dispatch result stands either way.
func (r *Registry) RecordDispatch(ctx context.Context, senderID string, result notification.DispatchResult) error {
	row := auditRow{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		Recipients: result.Recipients,
		Sent:       result.Sent,
		Failed:     result.Failed,
		CreatedAt:  time.Now().UTC(),
	}

	res, err := r.rc.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post("/rest/v1/notification_log")
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("audit insert failed: status %d", res.StatusCode())
	}

	return nil
}

// inFilter renders a PostgREST `in` filter with quoted values so free-form
// ids survive intact.
func inFilter(ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, `"`+id+`"`)
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}
