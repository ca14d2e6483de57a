package correlation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// User agent substrings that identify automated traffic. Any match vetoes
// the callback outright.
var botUserAgents = []string{
	"googlebot",
	"bingbot",
	"yandexbot",
	"baiduspider",
	"crawler",
	"spider",
	"scraper",
	"headless",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
}

// Salesforce fingerprints. Each match is a positive indicator distinct from
// generic factors: it implicates the platform itself, not merely a real
// browser somewhere.
var (
	salesforceUserAgents = []string{
		"salesforce",
		"sfdc",
		"lightning",
		"aura",
		"visualforce",
		"apex",
		"chatter",
		"force.com",
	}

	// Published Salesforce egress ranges, matched by prefix.
	salesforceIPPrefixes = []string{
		"96.43.144.",
		"96.43.145.",
		"96.43.146.",
		"136.146.",
		"136.147.",
		"13.110.",
		"13.111.",
		"185.79.140.",
		"185.79.141.",
	}

	salesforceHeaders = []string{
		"x-sfdc-request-id",
		"x-sfdc-page-scope-id",
		"salesforce-instance-url",
	}

	browserTokens = []string{"chrome/", "firefox/", "safari/"}

	rfc1918Pattern = regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[01])\.`)
)

// ScoreResult is the scorer's verdict on a single callback signal.
type ScoreResult struct {
	Confidence          types.Confidence
	Score               int
	Factors             []string
	PositiveIndicators  []string
	IsFalsePositive     bool
	FalsePositiveReason string
}

// Scorer turns a normalized signal plus its injection context into a
// confidence verdict. Pure: no storage, no clock, no shared state.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score applies veto rules first, then accumulates additive weighted
// signals. No positive evidence can override a veto: a bot user agent or a
// near-instant stored-class callback is definitive no matter what else the
// signal carries.
func (s *Scorer) Score(sig *Signal, injection *types.Injection) ScoreResult {
	ua := strings.ToLower(sig.UserAgent)

	for _, pattern := range botUserAgents {
		if strings.Contains(ua, pattern) {
			return ScoreResult{
				Confidence:          types.ConfidenceLow,
				Score:               0,
				Factors:             []string{fmt.Sprintf("False positive: %s detected", pattern)},
				IsFalsePositive:     true,
				FalsePositiveReason: fmt.Sprintf("Bot/crawler detected: %s", pattern),
			}
		}
	}

	// A genuine stored-class trigger needs a victim to view the poisoned
	// content later. Near-instant callbacks are the tester's own request.
	selfTriggerWindow := int64(s.cfg.SelfTriggerWindow / time.Second)
	if injection.ContextType.IsStoredClass() && sig.DelaySeconds < selfTriggerWindow {
		return ScoreResult{
			Confidence:          types.ConfidenceLow,
			Score:               0,
			Factors:             []string{"Immediate callback for stored vulnerability - likely self-trigger"},
			IsFalsePositive:     true,
			FalsePositiveReason: fmt.Sprintf("Self-triggered callback (delay < %ds for stored vulnerability)", selfTriggerWindow),
		}
	}

	var result ScoreResult

	switch {
	case sig.DelaySeconds > int64(s.cfg.StoredDelay/time.Second):
		result.add(3, "Significant delay (>1hr) indicates stored execution")
	case sig.DelaySeconds > int64(s.cfg.ModerateDelay/time.Second):
		result.add(2, "Moderate delay (5-60min) suggests admin interaction")
	case sig.DelaySeconds > int64(s.cfg.ShortDelay/time.Second):
		result.add(1, "Short delay (1-5min) possible legitimate trigger")
	}

	for _, indicator := range salesforceUserAgents {
		if strings.Contains(ua, indicator) {
			result.addIndicator(2, fmt.Sprintf("UA contains: %s", indicator))
		}
	}
	for _, prefix := range salesforceIPPrefixes {
		if strings.HasPrefix(sig.SourceIP, prefix) {
			result.addIndicator(2, fmt.Sprintf("Salesforce IP range: %s", prefix))
		}
	}
	for _, header := range salesforceHeaders {
		if sig.Headers[header] != "" {
			result.addIndicator(2, fmt.Sprintf("SF header: %s", header))
		}
	}

	switch sig.CallbackType {
	case types.CallbackDNS:
		result.add(2, "DNS callback type (harder to spoof)")
	case types.CallbackHTTP:
		result.add(1, "HTTP callback received")
	}

	for _, token := range browserTokens {
		if strings.Contains(ua, token) {
			result.add(1, "Real browser user agent")
			break
		}
	}

	if isInternalIP(sig.SourceIP) {
		result.add(2, "Internal IP (suggests admin/internal network)")
	}

	if injection.ContextType.IsHighImpact() {
		result.add(1, fmt.Sprintf("High-impact vuln type: %s", injection.ContextType))
	}

	if sig.Extra["sessionId"] != "" {
		result.add(1, "Session ID captured")
	}
	if sig.Extra["userId"] != "" {
		result.add(1, "User ID captured")
	}
	if sig.Extra["orgId"] != "" {
		result.addIndicator(2, "Salesforce Org ID captured")
	}

	switch {
	case result.Score >= s.cfg.HighThreshold:
		result.Confidence = types.ConfidenceHigh
	case result.Score >= s.cfg.MediumThreshold:
		result.Confidence = types.ConfidenceMedium
	default:
		result.Confidence = types.ConfidenceLow
	}

	return result
}

func (r *ScoreResult) add(points int, factor string) {
	r.Score += points
	r.Factors = append(r.Factors, factor)
}

func (r *ScoreResult) addIndicator(points int, indicator string) {
	r.Score += points
	r.PositiveIndicators = append(r.PositiveIndicators, indicator)
}

func isInternalIP(ip string) bool {
	return strings.HasPrefix(ip, "10.") ||
		strings.HasPrefix(ip, "192.168.") ||
		rfc1918Pattern.MatchString(ip)
}
