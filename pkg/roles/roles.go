package roles

import (
	"fmt"
	"strings"
)

// Role is a closed enumeration of stakeholder roles. Auto is a sentinel
// meaning "infer from the query text".
type Role int

const (
	Auto Role = iota
	ProductLead
	TechLead
	ComplianceLead
	BankAllianceLead
)

var names = map[Role]string{
	Auto:             "auto",
	ProductLead:      "product_lead",
	TechLead:         "tech_lead",
	ComplianceLead:   "compliance_lead",
	BankAllianceLead: "bank_alliance_lead",
}

func (r Role) String() string { return names[r] }

// Parse maps a wire value to a Role. Empty strings mean Auto.
func Parse(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "product_lead":
		return ProductLead, nil
	case "tech_lead":
		return TechLead, nil
	case "compliance_lead":
		return ComplianceLead, nil
	case "bank_alliance_lead":
		return BankAllianceLead, nil
	default:
		return Auto, fmt.Errorf("unknown role: %q", s)
	}
}

// profile holds everything the query pipeline needs for one role: the
// system prompt, the doc types used to bias retrieval re-ranking, and the
// weighted keyword sets used for inference.
type profile struct {
	prompt        string
	preferredDocs []string
	keywords      map[string]int // keyword -> weight
}

const (
	weightHigh   = 5
	weightMedium = 2
	weightLow    = 1
)

var profiles = map[Role]profile{
	ProductLead: {
		prompt: "You are an experienced Product Lead at a payments company. " +
			"Provide natural, conversational answers focusing on business metrics, " +
			"user behavior, conversion rates, and product strategy. Answer directly " +
			"without stating your role. Focus on: success rates, transaction volumes, " +
			"user adoption, growth trends, and customer experience.",
		preferredDocs: []string{"upi_transaction", "bank_api_response"},
		keywords: weighted(
			[]string{"conversion", "adoption", "growth", "metrics", "kpi", "trends", "volume", "retention"},
			[]string{"users", "customer", "success rate", "analytics"},
			[]string{"popular", "payment method", "usage", "behavior"},
		),
	},
	TechLead: {
		prompt: "You are an experienced Technical Lead at a payments company. " +
			"Provide natural, conversational answers focusing on APIs, system " +
			"architecture, and technical implementation. Answer directly without " +
			"stating your role. Focus on: API integration, error handling, performance " +
			"optimization, debugging, and technical solutions.",
		preferredDocs: []string{"bank_api_response", "upi_transaction"},
		keywords: weighted(
			[]string{"api", "error", "endpoint", "integration", "latency", "timeout", "debug"},
			[]string{"technical", "system", "server", "response time", "failure", "architecture"},
			[]string{"code", "logs", "implementation"},
		),
	},
	ComplianceLead: {
		prompt: "You are an experienced Compliance Lead at a payments company. " +
			"Provide natural, conversational answers focusing on regulations, risk " +
			"management, and audit requirements. Answer directly without stating your " +
			"role. Focus on: regulatory compliance, data privacy, audit trails, risk " +
			"assessment, and legal requirements.",
		preferredDocs: []string{"compliance_report", "upi_transaction"},
		keywords: weighted(
			[]string{"kyc", "aml", "compliance", "regulatory", "audit", "fraud", "risk"},
			[]string{"suspicious", "policy", "legal", "violation", "requirement"},
			[]string{"mandatory", "guidelines", "verification"},
		),
	},
	BankAllianceLead: {
		prompt: "You are an experienced Bank Alliance Lead at a payments company. " +
			"Provide natural, conversational answers focusing on partnerships, SLAs, " +
			"and relationship management. Answer directly without stating your role. " +
			"Focus on: SLA metrics, partner performance, integration reliability, and " +
			"collaboration.",
		preferredDocs: []string{"partnership_sla", "bank_api_response"},
		keywords: weighted(
			[]string{"sla", "partnership", "agreement", "contract", "partner", "uptime"},
			[]string{"bank", "relationship", "service level", "vendor", "alliance"},
			[]string{"hdfc", "icici", "sbi", "axis", "integration health"},
		),
	},
}

func weighted(high, medium, low []string) map[string]int {
	kw := make(map[string]int, len(high)+len(medium)+len(low))
	for _, k := range high {
		kw[k] = weightHigh
	}
	for _, k := range medium {
		kw[k] = weightMedium
	}
	for _, k := range low {
		kw[k] = weightLow
	}
	return kw
}

// SystemPrompt returns the role's system prompt template.
func (r Role) SystemPrompt() string {
	if p, ok := profiles[r]; ok {
		return p.prompt
	}
	return profiles[TechLead].prompt
}

// PreferredDocTypes returns the doc-type labels used to bias retrieval
// re-ranking, highest priority first.
func (r Role) PreferredDocTypes() []string {
	if p, ok := profiles[r]; ok {
		return p.preferredDocs
	}
	return nil
}

// Resolve infers a role from the query text with weighted keyword scoring.
// Explicit roles pass through untouched; an inconclusive inference defaults
// to TechLead.
func Resolve(query string, explicit Role) Role {
	if explicit != Auto {
		return explicit
	}

	queryLower := strings.ToLower(query)

	best := TechLead
	bestScore := 0
	for _, role := range []Role{ProductLead, TechLead, ComplianceLead, BankAllianceLead} {
		score := 0
		for keyword, weight := range profiles[role].keywords {
			if strings.Contains(queryLower, keyword) {
				score += weight
			}
		}
		if score > bestScore {
			best = role
			bestScore = score
		}
	}

	return best
}

// Validate checks the profile table is complete. Called once at startup so
// a missing entry fails the process rather than a request.
func Validate() error {
	for _, role := range []Role{ProductLead, TechLead, ComplianceLead, BankAllianceLead} {
		p, ok := profiles[role]
		if !ok || p.prompt == "" || len(p.preferredDocs) == 0 || len(p.keywords) == 0 {
			return fmt.Errorf("incomplete profile for role %s", role)
		}
	}
	return nil
}
