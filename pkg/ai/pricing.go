package ai

// modelPricing holds USD cost per million tokens.
type modelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var pricing = map[string]modelPricing{
	"claude-opus-4":   {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-sonnet-4": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-3":  {InputPerMTok: 0.25, OutputPerMTok: 1.25},
	"gpt-4o":          {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":     {InputPerMTok: 0.15, OutputPerMTok: 0.60},
}

// defaultPricing is used for models missing from the table so cost totals
// stay conservative rather than silently zero.
var defaultPricing = modelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// Cost estimates the USD cost of one completion round trip.
func Cost(model string, tokensInput, tokensOutput int) float64 {
	p, ok := pricing[model]
	if !ok {
		p = defaultPricing
	}

	return float64(tokensInput)/1_000_000*p.InputPerMTok +
		float64(tokensOutput)/1_000_000*p.OutputPerMTok
}
