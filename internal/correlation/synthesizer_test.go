package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcetrace/forcetrace/pkg/types"
)

func TestSynthesize_LowConfidenceProducesNothing(t *testing.T) {
	synth := NewSynthesizer()

	callback := &types.Callback{Confidence: types.ConfidenceLow}
	finding := synth.Synthesize(callback, &types.Injection{}, &types.Endpoint{})

	assert.Nil(t, finding)
}

func TestSynthesize_SeverityTable(t *testing.T) {
	synth := NewSynthesizer()

	tests := []struct {
		cat  types.VulnCategory
		want types.Severity
	}{
		{types.VulnSOQLInjection, types.SeverityCritical},
		{types.VulnApexInjection, types.SeverityCritical},
		{types.VulnSharingBypass, types.SeverityCritical},
		{types.VulnSSRF, types.SeverityCritical},
		{types.VulnGuestUserAbuse, types.SeverityCritical},
		{types.VulnSOSLInjection, types.SeverityHigh},
		{types.VulnLightningXSS, types.SeverityHigh},
		{types.VulnIDOR, types.SeverityHigh},
		{types.VulnOpenRedirect, types.SeverityMedium},
		{types.VulnCSRF, types.SeverityMedium},
		{types.VulnAPIExposure, types.SeverityLow},
		{types.VulnCategory("made_up_category"), types.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			finding := synth.Synthesize(
				&types.Callback{ID: "cb1", Confidence: types.ConfidenceHigh},
				&types.Injection{ContextType: tt.cat, Param: "q"},
				&types.Endpoint{ID: "ep1", Path: "/services/data/v59.0/query"},
			)
			require.NotNil(t, finding)
			assert.Equal(t, tt.want, finding.Severity)
		})
	}
}

func TestSynthesize_TemplatedTitleAndDescription(t *testing.T) {
	synth := NewSynthesizer()

	finding := synth.Synthesize(
		&types.Callback{ID: "cb1", Confidence: types.ConfidenceHigh, DelaySeconds: 4000},
		&types.Injection{ContextType: types.VulnSOQLInjection, Param: "q"},
		&types.Endpoint{ID: "ep1", Path: "/services/data/v59.0/query"},
	)
	require.NotNil(t, finding)

	assert.Equal(t, "SOQL Injection via q parameter", finding.Title)
	assert.Contains(t, finding.Description, "/services/data/v59.0/query")
	assert.Contains(t, finding.Description, "67m")
	assert.Equal(t, "ep1", finding.EndpointID)
	assert.Equal(t, "cb1", finding.CallbackID)
	assert.Equal(t, "open", finding.Status)
}

func TestSynthesize_UnknownCategoryFallsBack(t *testing.T) {
	synth := NewSynthesizer()

	finding := synth.Synthesize(
		&types.Callback{ID: "cb1", Confidence: types.ConfidenceMedium, DelaySeconds: 30},
		&types.Injection{ContextType: types.VulnCategory("retired_category"), Param: "input"},
		&types.Endpoint{ID: "ep1", Path: "/custom"},
	)
	require.NotNil(t, finding)

	assert.Equal(t, "Security Issue in input", finding.Title)
	assert.Contains(t, finding.Description, "Security vulnerability confirmed at /custom")
	assert.Contains(t, finding.Description, "30s")
}

func TestSynthesize_EmptyEndpointPath(t *testing.T) {
	synth := NewSynthesizer()

	finding := synth.Synthesize(
		&types.Callback{Confidence: types.ConfidenceMedium},
		&types.Injection{ContextType: types.VulnIDOR, Param: "id"},
		&types.Endpoint{},
	)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Description, "unknown endpoint")
}

func TestSynthesize_EvidenceCarriesContext(t *testing.T) {
	synth := NewSynthesizer()

	callback := &types.Callback{
		ID:         "cb1",
		Confidence: types.ConfidenceHigh,
		RawData: types.Evidence{
			Token:           "SOQL_aabbccddeeff",
			ConfidenceScore: 9,
		},
	}
	finding := synth.Synthesize(callback,
		&types.Injection{ContextType: types.VulnSOQLInjection, Param: "q"},
		&types.Endpoint{ID: "ep1", Path: "/query"},
	)
	require.NotNil(t, finding)

	assert.Equal(t, "SOQL_aabbccddeeff", finding.Evidence.Token)
	assert.Equal(t, 9, finding.Evidence.ConfidenceScore)
	assert.Equal(t, "q", finding.Evidence.Param)
	assert.Equal(t, "/query", finding.Evidence.Endpoint)
	assert.Equal(t, types.VulnSOQLInjection, finding.Evidence.VulnType)
}

func TestHumanizeDelay(t *testing.T) {
	assert.Equal(t, "45s", humanizeDelay(45))
	assert.Equal(t, "60s", humanizeDelay(60))
	assert.Equal(t, "2m", humanizeDelay(90))
	assert.Equal(t, "67m", humanizeDelay(4000))
}
