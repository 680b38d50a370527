// Package notification contains the domain types shared between the dispatch
// coordinator, the provider clients and the request boundary.
package notification

// Platform identifies which push provider owns a device token.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform maps the free-form platform tags stored in the device
// registry onto the closed Platform set. Anything unrecognized is Unknown;
// the coordinator routes Unknown to FCM rather than dropping the send.
func ParsePlatform(tag string) Platform {
	switch tag {
	case "ios", "apns":
		return PlatformIOS
	case "android", "fcm":
		return PlatformAndroid
	default:
		return PlatformUnknown
	}
}

// DeviceEndpoint is one installed-app instance capable of receiving a push.
// The token is an opaque provider-specific identifier and is never
// interpreted here.
type DeviceEndpoint struct {
	Token    string
	Platform Platform
}

// NotificationRequest is the validated inbound dispatch request.
type NotificationRequest struct {
	SenderID string
	UserIDs  []string
	Title    string
	Body     string
	Data     map[string]any
}

// Content is the provider-agnostic notification envelope, built once per
// request and shared read-only across all fan-out tasks.
type Content struct {
	Title string
	Body  string
}

// Outcome is the per-endpoint delivery result.
type Outcome int

const (
	// OutcomeDelivered means the provider acknowledged the push with 2xx.
	OutcomeDelivered Outcome = iota
	// OutcomeRejected means the provider returned non-success, or the call
	// failed at the transport level or timed out.
	OutcomeRejected
	// OutcomeConfigMissing means required operator-supplied configuration
	// for the endpoint's provider was absent; no delivery was attempted.
	OutcomeConfigMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejected:
		return "provider_rejected"
	case OutcomeConfigMissing:
		return "configuration_missing"
	default:
		return "unknown"
	}
}

// DispatchResult aggregates one fan-out. Only counts are exposed to
// callers; per-endpoint detail is deliberately dropped.
// Invariant: Sent+Failed equals the number of endpoints actually attempted
// (endpoints with an empty token are counted in neither).
type DispatchResult struct {
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Recipients int `json:"recipients"`
}
