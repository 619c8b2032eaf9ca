// Package specialist implements the fixed-instruction handlers a call-centre
// session routes to. Specialists are stateless configuration plus a model
// handle: created once per session and reused for every hop.
package specialist

import (
	"fmt"
	"strings"
)

// ID identifies a specialist in the closed set.
type ID string

const (
	// General handles anything no other specialist covers and is the safe
	// routing fallback.
	General ID = "general"
	// Billing handles billing and account enquiries.
	Billing ID = "billing"
	// Technical handles technical support enquiries.
	Technical ID = "technical"
	// Products handles product and service enquiries.
	Products ID = "products"
)

// All returns the closed specialist set in routing-prompt order.
func All() []ID { return []ID{General, Billing, Technical, Products} }

// Valid reports whether the ID belongs to the closed set.
func (id ID) Valid() bool {
	switch id {
	case General, Billing, Technical, Products:
		return true
	}
	return false
}

// Parse maps a raw classification value onto the closed set.
func Parse(raw string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(raw)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown specialist %q", raw)
	}
	return id, nil
}

// Config is the fixed configuration of one specialist.
type Config struct {
	ID           ID
	Description  string // shown to the completion service when routing / exposing tools
	Instructions string // the specialist's system prompt, never shared with other handlers
}

// DefaultConfigs returns the built-in call-centre team.
func DefaultConfigs() []Config {
	return []Config{
		{
			ID:          General,
			Description: "Handles greetings, small talk and anything outside the other specialists' remits",
			Instructions: `You are a friendly call-centre assistant.
Answer general questions conversationally and briefly. If the question hints
at a billing, technical or product matter, answer what you can and suggest
the caller describe the issue in more detail.`,
		},
		{
			ID:          Billing,
			Description: "Specialist to handle billing and/or account enquiries",
			Instructions: `You are a billing and account support specialist. Follow these guidelines:

1. First acknowledge the specific billing issue
2. Explain any charges or discrepancies clearly
3. List concrete next steps with timeline
4. End with payment options if relevant`,
		},
		{
			ID:          Technical,
			Description: "Specialist to handle technical support enquiries",
			Instructions: `You are a technical support specialist. Follow these guidelines:

1. List exact steps to resolve the issue
2. Include system requirements if relevant
3. Provide workarounds for common problems
4. End with escalation path if needed

Use clear, numbered steps and technical details.`,
		},
		{
			ID:          Products,
			Description: "Specialist to handle product and/or service enquiries",
			Instructions: `You are a product and services specialist. Follow these guidelines:

1. Focus on feature education and best practices
2. Include specific examples of usage
3. Link to relevant documentation sections
4. Suggest related features that might help

Be educational and encouraging in tone.`,
		},
	}
}
