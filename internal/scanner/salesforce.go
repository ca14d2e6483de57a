package scanner

import (
	"strings"

	"github.com/forcetrace/forcetrace/pkg/types"
)

// InstanceInfo is what domain-level fingerprinting can tell us about a
// Salesforce deployment before any request is sent.
type InstanceInfo struct {
	Type        string
	Edition     string
	TechStack   []string
	IsSandbox   bool
	IsLightning bool
}

// DetectInstance classifies a Salesforce deployment from its domain alone.
// Sandbox naming conventions (double dashes, .sandbox., .cs instance
// prefixes) and product-specific subdomains carry a surprising amount of
// signal.
func DetectInstance(domain string) InstanceInfo {
	d := strings.ToLower(domain)

	info := InstanceInfo{
		Type:        "Salesforce",
		Edition:     "Enterprise",
		IsLightning: true,
		TechStack:   []string{"Salesforce Platform"},
	}

	if strings.Contains(d, ".sandbox.") || strings.Contains(d, "--") || strings.Contains(d, ".cs") {
		info.IsSandbox = true
		info.TechStack = append(info.TechStack, "Sandbox Environment")
	}
	if strings.Contains(d, "force.com") {
		info.Type = "Salesforce Classic/Lightning"
		info.TechStack = append(info.TechStack, "Force.com Platform")
	}
	if strings.Contains(d, "salesforce.com") {
		info.Type = "Salesforce Core"
		info.TechStack = append(info.TechStack, "Salesforce CRM")
	}
	if strings.Contains(d, "site.com") || strings.Contains(d, "siteforce") {
		info.Type = "Salesforce Sites"
		info.TechStack = append(info.TechStack, "Site.com", "Guest User Access")
	}
	if strings.Contains(d, "my.salesforce.com") {
		info.Type = "My Domain (Lightning)"
		info.TechStack = append(info.TechStack, "Lightning Experience", "Aura Components")
		info.IsLightning = true
	}
	if strings.Contains(d, "community") || strings.Contains(d, "experience") {
		info.Type = "Experience Cloud (Community)"
		info.Edition = "Experience Cloud"
		info.TechStack = append(info.TechStack, "Experience Cloud", "Guest User Portal", "LWC")
	}
	if strings.Contains(d, "visualforce") {
		info.TechStack = append(info.TechStack, "Visualforce Pages")
		info.IsLightning = false
	}

	info.TechStack = append(info.TechStack, "Apex Controllers", "REST API", "SOQL/SOSL")
	return info
}

// IsCommunity reports whether the instance serves an Experience Cloud or
// Community portal, which unlocks the guest-user attack surface.
func (i InstanceInfo) IsCommunity() bool {
	return strings.Contains(i.Type, "Experience") || strings.Contains(i.Type, "Community")
}

// CandidateEndpoint is a known Salesforce attack vector before it is
// persisted against a target.
type CandidateEndpoint struct {
	Path         string
	Method       string
	Params       []string
	AuthRequired bool
	CMS          string
	RiskLevel    types.RiskLevel
	InputClass   string
	VulnType     types.VulnCategory
	Testable     bool
}

// CatalogEndpoints returns the Salesforce attack-surface catalog for an
// instance. Community-only vectors are included only when the instance
// fingerprint says a portal is present.
func CatalogEndpoints(info InstanceInfo) []CandidateEndpoint {
	endpoints := []CandidateEndpoint{
		{
			Path:         "/services/data/v59.0/query",
			Method:       "GET",
			Params:       []string{"q"},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskCritical,
			InputClass:   "soql_query",
			VulnType:     types.VulnSOQLInjection,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/CustomSearch",
			Method:       "POST",
			Params:       []string{"searchTerm", "objectType", "filterField", "filterValue"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskCritical,
			InputClass:   "apex_controller",
			VulnType:     types.VulnSOQLInjection,
			Testable:     true,
		},
		{
			Path:         "/services/data/v59.0/search",
			Method:       "GET",
			Params:       []string{"q"},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskHigh,
			InputClass:   "sosl_query",
			VulnType:     types.VulnSOSLInjection,
			Testable:     true,
		},
		{
			Path:         "/aura",
			Method:       "POST",
			Params:       []string{"message", "aura.context", "aura.token"},
			AuthRequired: false,
			CMS:          "Lightning Aura",
			RiskLevel:    types.RiskCritical,
			InputClass:   "aura_action",
			VulnType:     types.VulnAuraComponent,
			Testable:     true,
		},
		{
			Path:         "/s/sfsites/aura",
			Method:       "POST",
			Params:       []string{"message", "aura.context", "aura.token"},
			AuthRequired: false,
			CMS:          "Lightning Sites",
			RiskLevel:    types.RiskCritical,
			InputClass:   "guest_aura",
			VulnType:     types.VulnGuestUserAbuse,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/RecordAccess",
			Method:       "GET",
			Params:       []string{"recordId", "objectName"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskHigh,
			InputClass:   "record_access",
			VulnType:     types.VulnSharingBypass,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/BulkExport",
			Method:       "POST",
			Params:       []string{"objectType", "fields", "whereClause"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskCritical,
			InputClass:   "bulk_data",
			VulnType:     types.VulnFLSBypass,
			Testable:     true,
		},
		{
			Path:         "/services/data/v59.0/sobjects/Account/{id}",
			Method:       "GET",
			Params:       []string{"id"},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskHigh,
			InputClass:   "object_access",
			VulnType:     types.VulnIDOR,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/GetDocument",
			Method:       "GET",
			Params:       []string{"documentId", "attachmentId"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskHigh,
			InputClass:   "file_access",
			VulnType:     types.VulnIDOR,
			Testable:     true,
		},
		{
			Path:         "/secur/logout.jsp",
			Method:       "GET",
			Params:       []string{"retURL", "startURL"},
			AuthRequired: false,
			CMS:          "Salesforce Core",
			RiskLevel:    types.RiskMedium,
			InputClass:   "redirect",
			VulnType:     types.VulnOpenRedirect,
			Testable:     true,
		},
		{
			Path:         "/servlet/servlet.su",
			Method:       "GET",
			Params:       []string{"oid", "retURL", "suorgadminid"},
			AuthRequired: true,
			CMS:          "Salesforce Core",
			RiskLevel:    types.RiskHigh,
			InputClass:   "switch_user",
			VulnType:     types.VulnOpenRedirect,
			Testable:     true,
		},
		{
			Path:         "/apex/CustomVisualforcePage",
			Method:       "GET",
			Params:       []string{"param1", "param2", "id"},
			AuthRequired: false,
			CMS:          "Visualforce",
			RiskLevel:    types.RiskHigh,
			InputClass:   "visualforce",
			VulnType:     types.VulnLightningXSS,
			Testable:     true,
		},
		{
			Path:         "/lightning/cmp/c:CustomComponent",
			Method:       "POST",
			Params:       []string{"attributes", "state"},
			AuthRequired: true,
			CMS:          "Lightning Components",
			RiskLevel:    types.RiskHigh,
			InputClass:   "lwc_component",
			VulnType:     types.VulnLWCSecurity,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/ProxyRequest",
			Method:       "POST",
			Params:       []string{"targetUrl", "method", "headers", "body"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskCritical,
			InputClass:   "ssrf_endpoint",
			VulnType:     types.VulnSSRF,
			Testable:     true,
		},
		{
			Path:         "/services/data/v59.0/sobjects",
			Method:       "GET",
			Params:       []string{},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskMedium,
			InputClass:   "api_discovery",
			VulnType:     types.VulnAPIExposure,
			Testable:     false,
		},
		{
			Path:         "/services/data/v59.0/limits",
			Method:       "GET",
			Params:       []string{},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskLow,
			InputClass:   "api_limits",
			VulnType:     types.VulnAPIExposure,
			Testable:     false,
		},
		{
			Path:         "/services/data/v59.0/sobjects/User/{id}",
			Method:       "PATCH",
			Params:       []string{"ProfileId", "UserRoleId", "IsActive"},
			AuthRequired: true,
			CMS:          "Salesforce REST API",
			RiskLevel:    types.RiskCritical,
			InputClass:   "user_modification",
			VulnType:     types.VulnCRUDBypass,
			Testable:     true,
		},
		{
			Path:         "/services/apexrest/AdminAction",
			Method:       "POST",
			Params:       []string{"action", "targetUserId", "permissions"},
			AuthRequired: true,
			CMS:          "Custom Apex REST",
			RiskLevel:    types.RiskCritical,
			InputClass:   "admin_function",
			VulnType:     types.VulnCRUDBypass,
			Testable:     true,
		},
	}

	if info.IsCommunity() {
		endpoints = append(endpoints,
			CandidateEndpoint{
				Path:         "/s/login",
				Method:       "POST",
				Params:       []string{"username", "password", "startURL"},
				AuthRequired: false,
				CMS:          "Experience Cloud",
				RiskLevel:    types.RiskMedium,
				InputClass:   "community_auth",
				VulnType:     types.VulnCommunityExposure,
				Testable:     false,
			},
			CandidateEndpoint{
				Path:         "/s/sfsites/l/",
				Method:       "GET",
				Params:       []string{"startURL", "locale"},
				AuthRequired: false,
				CMS:          "Experience Cloud",
				RiskLevel:    types.RiskCritical,
				InputClass:   "guest_user",
				VulnType:     types.VulnGuestUserAbuse,
				Testable:     true,
			},
		)
	}

	return endpoints
}
