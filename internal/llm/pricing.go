package llm

// Price is USD per 1k tokens.
type Price struct {
	Input  float64
	Output float64
}

// PriceMap keys are provider-qualified model ids ("openai/gpt-4o").
type PriceMap map[string]Price

// DefaultPrices covers the common OpenAI models. Unknown models cost 0.
func DefaultPrices() PriceMap {
	return PriceMap{
		"openai/gpt-4o":             {Input: 0.005, Output: 0.015},
		"openai/gpt-4o-mini":        {Input: 0.0005, Output: 0.0015},
		"openai/gpt-3.5-turbo-1106": {Input: 0.001, Output: 0.002},
	}
}

// Cost estimates the price of u on model.
func (m PriceMap) Cost(model string, u Usage) float64 {
	p, ok := m[model]
	if !ok {
		p, ok = m[string(InferProvider(model))+"/"+ModelName(model)]
	}
	if !ok {
		return 0
	}
	return float64(u.PromptTokens)*p.Input/1000 + float64(u.CompletionTokens)*p.Output/1000
}
