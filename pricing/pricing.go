// Package pricing provides the default per-model token pricing table and the
// pure cost function the session manager uses to turn worker usage into USD.
package pricing

import "github.com/swarmdeck/swarmdeck/core"

// Rate is the USD price per million tokens for one model tier.
type Rate struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// Table maps model tiers to rates. The zero value prices everything at zero,
// which is what tests and offline executors want.
type Table map[core.Model]Rate

// DefaultTable returns the built-in price list. Values track the public
// Claude API list prices; deployments with negotiated rates override them
// via config.
func DefaultTable() Table {
	return Table{
		core.ModelOpus:   {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		core.ModelSonnet: {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		core.ModelHaiku:  {InputPerMTok: 0.80, OutputPerMTok: 4.0},
	}
}

// Cost computes the USD cost of an attempt. Unknown tiers cost zero rather
// than failing; cost queries never error for valid input.
func (t Table) Cost(model core.Model, inputTokens, outputTokens int) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}
	const mtok = 1_000_000
	return float64(inputTokens)/mtok*rate.InputPerMTok +
		float64(outputTokens)/mtok*rate.OutputPerMTok
}

// Compile-time check: Table.Cost satisfies the core cost function contract.
var _ core.CostFunc = Table{}.Cost
