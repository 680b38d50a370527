// Package api contains the HTTP boundary for dispatch requests.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// defaultTitle is applied when the request carries no title.
const defaultTitle = "New notification"

// Fanout abstracts the dispatch coordinator so handler tests can stub it.
type Fanout interface {
	FanOut(ctx context.Context, endpoints []notification.DeviceEndpoint, content notification.Content, data map[string]any) (sent, failed int)
}

// NotifyAPI validates inbound dispatch requests and shapes responses. All
// per-endpoint failures stay inside the aggregate counts; only
// request-level problems (bad input, missing auth, registry down) surface
// as error responses.
type NotifyAPI struct {
	Registry dispatch.DeviceRegistry // nil when the registry env is not configured
	Fanout   Fanout
	Audit    dispatch.AuditSink // optional
	Logger   *slog.Logger
}

func NewNotifyAPI(registry dispatch.DeviceRegistry, fanout Fanout, audit dispatch.AuditSink, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Registry: registry,
		Fanout:   fanout,
		Audit:    audit,
		Logger:   logger.With("component", "NotifyAPI"),
	}
}

// notifyRequest is the inbound JSON body.
type notifyRequest struct {
	UserIDs []string       `json:"user_ids"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data"`
}

// HandleNotify serves POST /notify.
func (a *NotifyAPI) HandleNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	if a.Registry == nil {
		writeJSONError(w, http.StatusInternalServerError, "missing_supabase_env")
		return
	}

	senderID, ok := bearerSubject(r.Header.Get("Authorization"))
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(body.UserIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "no_recipients")
		return
	}

	req := notification.NotificationRequest{
		SenderID: senderID,
		UserIDs:  body.UserIDs,
		Title:    body.Title,
		Body:     body.Body,
		Data:     body.Data,
	}
	if req.Title == "" {
		req.Title = defaultTitle
	}

	byUser, err := a.Registry.Resolve(ctx, req.UserIDs)
	if err != nil {
		a.Logger.Error("device token lookup failed", "sender_id", senderID, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "registry_unavailable")
		return
	}

	// Flatten in request order. Duplicate user ids simply resolve twice;
	// deduplication is not required of callers.
	var endpoints []notification.DeviceEndpoint
	for _, userID := range req.UserIDs {
		endpoints = append(endpoints, byUser[userID]...)
	}

	content := notification.Content{Title: req.Title, Body: req.Body}
	sent, failed := a.Fanout.FanOut(ctx, endpoints, content, req.Data)

	result := notification.DispatchResult{
		Sent:       sent,
		Failed:     failed,
		Recipients: len(req.UserIDs),
	}

	// Audit is best-effort; the dispatch result stands even if the insert
	// fails.
	if a.Audit != nil {
		if err := a.Audit.RecordDispatch(ctx, senderID, result); err != nil {
			a.Logger.Warn("failed to record dispatch audit", "err", err)
		}
	}

	a.Logger.Info("dispatch complete",
		"sender_id", senderID,
		"recipients", result.Recipients,
		"sent", result.Sent,
		"failed", result.Failed,
	)

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
