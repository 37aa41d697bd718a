package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is USD per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

var pricing = map[string]Pricing{
	"gemini-2.5-flash":           {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite":      {InputPerM: 0.10, OutputPerM: 0.40},
	"claude-sonnet-4-5-20250929": {InputPerM: 3.00, OutputPerM: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerM: 1.00, OutputPerM: 5.00},
}

// PricingFor looks the model up by exact name, then by the longest known
// prefix so dated snapshots ("gemini-2.5-flash-001") still resolve.
// Unknown models cost nothing.
func PricingFor(modelName string) Pricing {
	if p, ok := pricing[modelName]; ok {
		return p
	}
	best := ""
	for name := range pricing {
		if strings.HasPrefix(modelName, name) && len(name) > len(best) {
			best = name
		}
	}
	return pricing[best]
}

// Cost is the USD spend of one or more model calls.
type Cost struct {
	Input  float64
	Output float64
}

func (c Cost) Total() float64 { return c.Input + c.Output }

func (c Cost) Add(o Cost) Cost {
	return Cost{Input: c.Input + o.Input, Output: c.Output + o.Output}
}

// UsageCost prices usage for modelName.
func UsageCost(modelName string, usage *schema.TokenUsage) Cost {
	if usage == nil {
		return Cost{}
	}
	p := PricingFor(modelName)
	return Cost{
		Input:  p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0,
		Output: p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0,
	}
}
