package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityFor_EveryKnownCategoryMapped(t *testing.T) {
	for _, cat := range AllVulnCategories() {
		sev := SeverityFor(cat)
		assert.Contains(t, []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}, sev,
			"category %s", cat)
	}
}

func TestSeverityFor_UnknownDefaultsToMedium(t *testing.T) {
	assert.Equal(t, SeverityMedium, SeverityFor(VulnCategory("something_new")))
}

func TestIsStoredClass(t *testing.T) {
	assert.True(t, VulnLightningXSS.IsStoredClass())
	assert.True(t, VulnCategory("legacy_stored_xss").IsStoredClass())
	assert.False(t, VulnSOQLInjection.IsStoredClass())
	assert.False(t, VulnIDOR.IsStoredClass())
}

func TestIsHighImpact(t *testing.T) {
	assert.True(t, VulnSOQLInjection.IsHighImpact())
	assert.True(t, VulnSharingBypass.IsHighImpact())
	assert.True(t, VulnGuestUserAbuse.IsHighImpact())
	assert.False(t, VulnLightningXSS.IsHighImpact())
}
