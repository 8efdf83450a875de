package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"", Auto},
		{"auto", Auto},
		{"product_lead", ProductLead},
		{"TECH_LEAD", TechLead},
		{" compliance_lead ", ComplianceLead},
		{"bank_alliance_lead", BankAllianceLead},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	_, err := Parse("ceo")
	assert.Error(t, err)
}

func TestResolveExplicitBypassesInference(t *testing.T) {
	// Query screams compliance, explicit role still wins
	got := Resolve("KYC and AML audit requirements", ProductLead)
	assert.Equal(t, ProductLead, got)
}

func TestResolveFromKeywords(t *testing.T) {
	tests := []struct {
		query string
		want  Role
	}{
		{"What are the KYC requirements for AML compliance?", ComplianceLead},
		{"Why is the payment API returning timeout errors?", TechLead},
		{"How did conversion and adoption trend last quarter?", ProductLead},
		{"What SLA uptime did our partner bank commit to?", BankAllianceLead},
	}

	for _, tt := range tests {
		got := Resolve(tt.query, Auto)
		assert.Equal(t, tt.want, got, "query %q", tt.query)
	}
}

func TestResolveInconclusiveDefaultsToTechLead(t *testing.T) {
	got := Resolve("tell me something interesting", Auto)
	assert.Equal(t, TechLead, got)
}

func TestSystemPromptPerRole(t *testing.T) {
	assert.Contains(t, ProductLead.SystemPrompt(), "Product Lead")
	assert.Contains(t, TechLead.SystemPrompt(), "Technical Lead")
	assert.Contains(t, ComplianceLead.SystemPrompt(), "Compliance Lead")
	assert.Contains(t, BankAllianceLead.SystemPrompt(), "Bank Alliance Lead")

	// Auto has no profile of its own
	assert.Equal(t, TechLead.SystemPrompt(), Auto.SystemPrompt())
}

func TestPreferredDocTypes(t *testing.T) {
	assert.Equal(t, []string{"compliance_report", "upi_transaction"}, ComplianceLead.PreferredDocTypes())
	assert.Equal(t, []string{"partnership_sla", "bank_api_response"}, BankAllianceLead.PreferredDocTypes())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate())
}
