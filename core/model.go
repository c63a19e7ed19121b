package core

import "strings"

// Model is the normalized model tier a worker runs on. Free-text labels from
// config files or vendor responses are folded into one of these three tiers;
// pricing and executor selection key off the tier, never the raw label.
type Model string

const (
	// ModelOpus is the highest capability (and cost) tier.
	ModelOpus Model = "opus"
	// ModelSonnet is the balanced default tier.
	ModelSonnet Model = "sonnet"
	// ModelHaiku is the fastest, cheapest tier.
	ModelHaiku Model = "haiku"
)

// ModelFromLabel normalizes a free-text model label ("claude-3-opus-20240229",
// "gemini-haiku", ...) into a Model by case-insensitive substring match.
// Unrecognized labels fall back to ModelSonnet.
func ModelFromLabel(label string) Model {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "opus"):
		return ModelOpus
	case strings.Contains(l, "haiku"):
		return ModelHaiku
	default:
		return ModelSonnet
	}
}

// String returns the tier name.
func (m Model) String() string { return string(m) }

// Valid reports whether m is one of the known tiers.
func (m Model) Valid() bool {
	return m == ModelOpus || m == ModelSonnet || m == ModelHaiku
}

// CostFunc computes the USD cost of a worker attempt from its model tier and
// token usage. Pricing tables are a policy concern of the caller (see the
// pricing package for the default table); the core treats this as a pure
// function.
type CostFunc func(model Model, inputTokens, outputTokens int) float64
