package correlation

import (
	"strings"
	"time"

	"github.com/forcetrace/forcetrace/pkg/types"
)

// RawEvent is an inbound out-of-band callback before any interpretation.
// HTTP, DNS and SMTP receivers all normalize into this shape.
type RawEvent struct {
	Token        string             `json:"token"`
	CallbackType types.CallbackType `json:"callback_type"`
	SourceIP     string             `json:"source_ip"`
	UserAgent    string             `json:"user_agent"`
	Headers      map[string]string  `json:"headers"`
	ReceivedAt   time.Time          `json:"received_at"`
	Extra        map[string]string  `json:"extra"`
}

// Signal is a cleaned-up event ready for scoring. Extraction is pure: it
// never touches storage and never drops unknown fields, which land in
// Evidence.Extra.
type Signal struct {
	Token        string
	CallbackType types.CallbackType
	SourceIP     string
	UserAgent    string
	Headers      map[string]string
	DelaySeconds int64
	ReceivedAt   time.Time
	Extra        map[string]string
}

// ip headers checked in order; the first non-empty one wins.
var ipHeaderChain = []string{
	"x-forwarded-for",
	"x-real-ip",
	"cf-connecting-ip",
}

// Extract normalizes a raw event into a Signal against the injection it
// resolved to. Returns ErrInvalidRequest when the token is missing.
func Extract(event *RawEvent, injection *types.Injection) (*Signal, error) {
	if event == nil || strings.TrimSpace(event.Token) == "" {
		return nil, ErrInvalidRequest
	}

	sig := &Signal{
		Token:        strings.TrimSpace(event.Token),
		CallbackType: event.CallbackType,
		SourceIP:     event.SourceIP,
		UserAgent:    event.UserAgent,
		Headers:      lowercaseHeaders(event.Headers),
		ReceivedAt:   event.ReceivedAt,
		Extra:        event.Extra,
	}

	if sig.CallbackType == "" {
		sig.CallbackType = types.CallbackHTTP
	}
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now().UTC()
	}

	// Proxies hide the true source; prefer forwarding headers when the
	// direct address is empty or loopback.
	if sig.SourceIP == "" || isLoopback(sig.SourceIP) {
		for _, h := range ipHeaderChain {
			if v := sig.Headers[h]; v != "" {
				// x-forwarded-for may carry a chain; the client is first.
				if idx := strings.Index(v, ","); idx > 0 {
					v = v[:idx]
				}
				sig.SourceIP = strings.TrimSpace(v)
				break
			}
		}
	}

	if sig.UserAgent == "" {
		sig.UserAgent = sig.Headers["user-agent"]
	}

	// Delay is measured from injection time. A never-injected probe that
	// still fires (a replayed payload, say) falls back to creation time.
	anchor := injection.CreatedAt
	if injection.InjectedAt != nil {
		anchor = *injection.InjectedAt
	}
	if delay := sig.ReceivedAt.Sub(anchor); delay > 0 {
		sig.DelaySeconds = int64(delay.Seconds())
	}

	return sig, nil
}

func lowercaseHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.ToLower(k)] = v
	}
	return out
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}
