package types

import "strings"

// VulnCategory is the closed set of Salesforce vulnerability classes this
// system tests for. Unknown strings are still representable (callbacks may
// reference retired categories), so every switch over VulnCategory carries
// a fallback arm.
type VulnCategory string

const (
	VulnSOQLInjection     VulnCategory = "soql_injection"
	VulnSOSLInjection     VulnCategory = "sosl_injection"
	VulnApexInjection     VulnCategory = "apex_injection"
	VulnLightningXSS      VulnCategory = "lightning_xss"
	VulnAuraComponent     VulnCategory = "aura_component"
	VulnLWCSecurity       VulnCategory = "lwc_security"
	VulnSharingBypass     VulnCategory = "sharing_bypass"
	VulnFLSBypass         VulnCategory = "fls_bypass"
	VulnCRUDBypass        VulnCategory = "crud_bypass"
	VulnOpenRedirect      VulnCategory = "open_redirect"
	VulnSSRF              VulnCategory = "ssrf"
	VulnIDOR              VulnCategory = "idor"
	VulnCSRF              VulnCategory = "csrf"
	VulnAPIExposure       VulnCategory = "api_exposure"
	VulnGuestUserAbuse    VulnCategory = "guest_user_abuse"
	VulnCommunityExposure VulnCategory = "community_exposure"
)

// AllVulnCategories lists every known category, in severity-table order.
func AllVulnCategories() []VulnCategory {
	return []VulnCategory{
		VulnSOQLInjection,
		VulnSOSLInjection,
		VulnApexInjection,
		VulnLightningXSS,
		VulnAuraComponent,
		VulnLWCSecurity,
		VulnSharingBypass,
		VulnFLSBypass,
		VulnCRUDBypass,
		VulnOpenRedirect,
		VulnSSRF,
		VulnIDOR,
		VulnCSRF,
		VulnAPIExposure,
		VulnGuestUserAbuse,
		VulnCommunityExposure,
	}
}

// SeverityFor maps a vulnerability category to the severity a confirmed
// finding carries. Unrecognized categories default to medium.
func SeverityFor(cat VulnCategory) Severity {
	switch cat {
	case VulnSOQLInjection, VulnApexInjection, VulnSharingBypass,
		VulnCRUDBypass, VulnSSRF, VulnGuestUserAbuse:
		return SeverityCritical
	case VulnSOSLInjection, VulnLightningXSS, VulnAuraComponent,
		VulnFLSBypass, VulnIDOR, VulnCommunityExposure:
		return SeverityHigh
	case VulnLWCSecurity, VulnOpenRedirect, VulnCSRF:
		return SeverityMedium
	case VulnAPIExposure:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// IsStoredClass reports whether a category denotes a stored/persistent
// vulnerability, where a genuine trigger requires a later victim view.
func (c VulnCategory) IsStoredClass() bool {
	switch c {
	case VulnLightningXSS:
		return true
	default:
		// Retired or custom categories keep the substring convention.
		return strings.Contains(strings.ToLower(string(c)), "xss")
	}
}

// IsHighImpact reports whether a category belongs to the classes whose
// confirmation is inherently higher-value (query-language injection,
// sharing bypass, unauthenticated guest abuse).
func (c VulnCategory) IsHighImpact() bool {
	switch c {
	case VulnSOQLInjection, VulnSharingBypass, VulnGuestUserAbuse:
		return true
	default:
		return false
	}
}
