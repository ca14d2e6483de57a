package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forcetrace/forcetrace/pkg/types"
)

func TestDetectInstance(t *testing.T) {
	tests := []struct {
		name        string
		domain      string
		wantType    string
		wantSandbox bool
	}{
		{"my domain", "acme.my.salesforce.com", "My Domain (Lightning)", false},
		{"core", "na1.salesforce.com", "Salesforce Core", false},
		{"force.com", "acme.force.com", "Salesforce Classic/Lightning", false},
		{"sandbox double dash", "acme--dev.sandbox.my.salesforce.com", "My Domain (Lightning)", true},
		{"experience cloud", "community.acme.com", "Experience Cloud (Community)", false},
		{"generic", "portal.acme.com", "Salesforce", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := DetectInstance(tt.domain)
			assert.Equal(t, tt.wantType, info.Type)
			assert.Equal(t, tt.wantSandbox, info.IsSandbox)
			assert.Contains(t, info.TechStack, "Salesforce Platform")
			assert.Contains(t, info.TechStack, "Apex Controllers")
		})
	}
}

func TestCatalogEndpoints_BaseSurface(t *testing.T) {
	info := DetectInstance("acme.my.salesforce.com")
	endpoints := CatalogEndpoints(info)

	assert.Len(t, endpoints, 18)

	paths := make(map[string]CandidateEndpoint, len(endpoints))
	for _, ep := range endpoints {
		paths[ep.Path] = ep
	}

	soql, ok := paths["/services/data/v59.0/query"]
	assert.True(t, ok)
	assert.Equal(t, types.RiskCritical, soql.RiskLevel)
	assert.Equal(t, types.VulnSOQLInjection, soql.VulnType)
	assert.True(t, soql.Testable)

	limits, ok := paths["/services/data/v59.0/limits"]
	assert.True(t, ok)
	assert.False(t, limits.Testable)
	assert.Equal(t, types.RiskLow, limits.RiskLevel)

	// No community surface without a portal fingerprint.
	_, ok = paths["/s/login"]
	assert.False(t, ok)
}

func TestCatalogEndpoints_CommunityAddsGuestSurface(t *testing.T) {
	info := DetectInstance("community.acme.com")
	endpoints := CatalogEndpoints(info)

	assert.Len(t, endpoints, 20)

	var foundLogin, foundGuest bool
	for _, ep := range endpoints {
		switch ep.Path {
		case "/s/login":
			foundLogin = true
			assert.Equal(t, types.VulnCommunityExposure, ep.VulnType)
		case "/s/sfsites/l/":
			foundGuest = true
			assert.Equal(t, types.VulnGuestUserAbuse, ep.VulnType)
			assert.True(t, ep.Testable)
		}
	}
	assert.True(t, foundLogin)
	assert.True(t, foundGuest)
}
