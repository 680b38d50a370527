package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-dispatch/internal/api"
	"github.com/tinywideclouds/go-push-dispatch/pkg/notification"
)

// --- Stubs ---

type stubRegistry struct {
	endpoints map[string][]notification.DeviceEndpoint
	err       error
	calls     int
}

func (s *stubRegistry) Resolve(_ context.Context, _ []string) (map[string][]notification.DeviceEndpoint, error) {
	s.calls++
	return s.endpoints, s.err
}

type stubFanout struct {
	sent, failed int
	gotEndpoints []notification.DeviceEndpoint
	gotContent   notification.Content
	calls        int
}

func (s *stubFanout) FanOut(_ context.Context, endpoints []notification.DeviceEndpoint, content notification.Content, _ map[string]any) (int, int) {
	s.calls++
	s.gotEndpoints = endpoints
	s.gotContent = content
	return s.sent, s.failed
}

type stubAudit struct {
	gotSender string
	gotResult notification.DispatchResult
	err       error
	calls     int
}

func (s *stubAudit) RecordDispatch(_ context.Context, senderID string, result notification.DispatchResult) error {
	s.calls++
	s.gotSender = senderID
	s.gotResult = result
	return s.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bearerFor builds a syntactically valid JWT carrying the given subject.
// The handler reads the subject without verifying the signature, so the
// signing key is irrelevant.
func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func doNotify(handler http.HandlerFunc, method, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/notify", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHandleNotify(t *testing.T) {
	t.Run("Method not allowed", func(t *testing.T) {
		a := api.NewNotifyAPI(&stubRegistry{}, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodGet, "", "")

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "method_not_allowed", errorCode(t, rec))
	})

	t.Run("Registry not configured", func(t *testing.T) {
		a := api.NewNotifyAPI(nil, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{"user_ids":["u1"]}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "missing_supabase_env", errorCode(t, rec))
	})

	t.Run("Missing bearer makes no registry lookup", func(t *testing.T) {
		registry := &stubRegistry{}
		a := api.NewNotifyAPI(registry, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, "", `{"user_ids":["u1"]}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", errorCode(t, rec))
		assert.Zero(t, registry.calls)
	})

	t.Run("Undecodable bearer is unauthorized", func(t *testing.T) {
		a := api.NewNotifyAPI(&stubRegistry{}, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, "Bearer garbage", `{"user_ids":["u1"]}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Empty recipients makes no registry lookup", func(t *testing.T) {
		registry := &stubRegistry{}
		a := api.NewNotifyAPI(registry, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{"user_ids":[]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no_recipients", errorCode(t, rec))
		assert.Zero(t, registry.calls)
	})

	t.Run("Undecodable body is a validation error", func(t *testing.T) {
		a := api.NewNotifyAPI(&stubRegistry{}, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_json", errorCode(t, rec))
	})

	t.Run("Registry failure is a request-level error", func(t *testing.T) {
		registry := &stubRegistry{err: assert.AnError}
		a := api.NewNotifyAPI(registry, &stubFanout{}, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{"user_ids":["u1"]}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "registry_unavailable", errorCode(t, rec))
	})

	t.Run("Happy Path - one recipient, two devices", func(t *testing.T) {
		registry := &stubRegistry{endpoints: map[string][]notification.DeviceEndpoint{
			"u1": {
				{Token: "tok-ios", Platform: notification.PlatformIOS},
				{Token: "tok-android", Platform: notification.PlatformAndroid},
			},
		}}
		fanout := &stubFanout{sent: 2, failed: 0}
		audit := &stubAudit{}
		a := api.NewNotifyAPI(registry, fanout, audit, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "sender-1"), `{"user_ids":["u1"],"body":"hi"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var result notification.DispatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, notification.DispatchResult{Sent: 2, Failed: 0, Recipients: 1}, result)

		assert.Len(t, fanout.gotEndpoints, 2)
		// Absent title falls back to the default; body passes through.
		assert.Equal(t, "New notification", fanout.gotContent.Title)
		assert.Equal(t, "hi", fanout.gotContent.Body)

		assert.Equal(t, 1, audit.calls)
		assert.Equal(t, "sender-1", audit.gotSender)
		assert.Equal(t, result, audit.gotResult)
	})

	t.Run("Zero resolved endpoints still reports recipients", func(t *testing.T) {
		registry := &stubRegistry{endpoints: map[string][]notification.DeviceEndpoint{}}
		fanout := &stubFanout{}
		a := api.NewNotifyAPI(registry, fanout, nil, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{"user_ids":["u1","u2"]}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var result notification.DispatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, notification.DispatchResult{Sent: 0, Failed: 0, Recipients: 2}, result)
	})

	t.Run("Audit failure does not change the response", func(t *testing.T) {
		registry := &stubRegistry{endpoints: map[string][]notification.DeviceEndpoint{
			"u1": {{Token: "tok", Platform: notification.PlatformIOS}},
		}}
		audit := &stubAudit{err: assert.AnError}
		a := api.NewNotifyAPI(registry, &stubFanout{sent: 1}, audit, newTestLogger())

		rec := doNotify(a.HandleNotify, http.MethodPost, bearerFor(t, "u0"), `{"user_ids":["u1"]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, audit.calls)
	})
}
