package correlation

import (
	"fmt"
	"math"

	"github.com/forcetrace/forcetrace/pkg/types"
)

var findingTitles = map[types.VulnCategory]string{
	types.VulnSOQLInjection:     "SOQL Injection via %s parameter",
	types.VulnSOSLInjection:     "SOSL Injection via %s parameter",
	types.VulnApexInjection:     "Apex Code Injection in %s",
	types.VulnLightningXSS:      "Stored XSS in Lightning Component (%s)",
	types.VulnAuraComponent:     "Exposed Aura Controller Action (%s)",
	types.VulnLWCSecurity:       "LWC Security Issue in %s",
	types.VulnSharingBypass:     "Sharing Rule Bypass via %s",
	types.VulnFLSBypass:         "Field-Level Security Bypass (%s)",
	types.VulnCRUDBypass:        "CRUD Permission Bypass in %s",
	types.VulnOpenRedirect:      "Open Redirect via %s",
	types.VulnSSRF:              "Server-Side Request Forgery (%s)",
	types.VulnIDOR:              "Insecure Direct Object Reference (%s)",
	types.VulnCSRF:              "Cross-Site Request Forgery (%s)",
	types.VulnGuestUserAbuse:    "Guest User Data Exposure (%s)",
	types.VulnCommunityExposure: "Community/Experience Cloud Data Leak (%s)",
}

var findingDescriptions = map[types.VulnCategory]string{
	types.VulnSOQLInjection:  "Dynamic SOQL query construction at %s allows injection of malicious query clauses. OOB callback received after %s, confirming exploitation path. Attacker can extract sensitive Salesforce object data.",
	types.VulnSOSLInjection:  "SOSL search query at %s is vulnerable to injection. Callback received after %s. May allow cross-object data extraction.",
	types.VulnApexInjection:  "Apex controller at %s executes user-controlled code. Confirmed via %s delayed callback. Critical risk of arbitrary code execution.",
	types.VulnLightningXSS:   "Lightning component renders unsanitized input at %s. Stored XSS confirmed with %s delay, indicating admin-level execution context.",
	types.VulnAuraComponent:  "Aura controller exposes sensitive action without proper authorization at %s. Confirmed after %s. Guest users may access restricted functionality.",
	types.VulnSharingBypass:  "Record sharing rules bypassed at %s. Confirmed %s after injection. Users can access records outside their sharing scope.",
	types.VulnFLSBypass:      "Field-Level Security not enforced at %s. Confirmed after %s. Sensitive fields exposed to unauthorized users.",
	types.VulnCRUDBypass:     "CRUD permissions not validated at %s. Confirmed after %s. Unauthorized create/read/update/delete operations possible.",
	types.VulnGuestUserAbuse: "Guest user context at %s exposes sensitive data without authentication. Confirmed after %s.",
	types.VulnSSRF:           "Server-side request to attacker-controlled endpoint from %s. SSRF confirmed with %s delay.",
	types.VulnIDOR:           "Direct object reference at %s allows access to other users' records by manipulating ID parameter. Confirmed after %s.",
}

// Synthesizer turns a scored callback into a finding. Pure construction:
// persistence and the endpoint status transition belong to the engine.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize builds a finding for a medium-or-high confidence callback.
// Returns nil for low confidence; the engine logs those for manual review
// instead. Unrecognized categories fall back to generic templates.
func (s *Synthesizer) Synthesize(callback *types.Callback, injection *types.Injection, endpoint *types.Endpoint) *types.Finding {
	if callback.Confidence != types.ConfidenceHigh && callback.Confidence != types.ConfidenceMedium {
		return nil
	}

	vulnType := injection.ContextType
	delay := humanizeDelay(callback.DelaySeconds)

	evidence := callback.RawData
	evidence.Param = injection.Param
	evidence.Endpoint = endpoint.Path
	evidence.VulnType = vulnType

	return &types.Finding{
		EndpointID:  endpoint.ID,
		CallbackID:  callback.ID,
		Title:       findingTitle(vulnType, injection.Param),
		Description: findingDescription(vulnType, endpoint.Path, delay),
		Severity:    types.SeverityFor(vulnType),
		Evidence:    evidence,
		Status:      "open",
	}
}

func findingTitle(vulnType types.VulnCategory, param string) string {
	if tmpl, ok := findingTitles[vulnType]; ok {
		return fmt.Sprintf(tmpl, param)
	}
	return fmt.Sprintf("Security Issue in %s", param)
}

func findingDescription(vulnType types.VulnCategory, endpoint, delay string) string {
	if endpoint == "" {
		endpoint = "unknown endpoint"
	}
	if tmpl, ok := findingDescriptions[vulnType]; ok {
		return fmt.Sprintf(tmpl, endpoint, delay)
	}
	return fmt.Sprintf("Security vulnerability confirmed at %s via OOB callback after %s delay.", endpoint, delay)
}

func humanizeDelay(seconds int64) string {
	if seconds > 60 {
		return fmt.Sprintf("%dm", int64(math.Round(float64(seconds)/60)))
	}
	return fmt.Sprintf("%ds", seconds)
}
