package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
)

// Provider is the backend a model id resolves to.
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
	ProviderMock    Provider = "mock"
	ProviderUnknown Provider = "unknown"
)

// MockPrefix marks model ids answered from fixtures.
const MockPrefix = "TEST/"

// InferProvider maps a model id onto its provider by prefix.
func InferProvider(model string) Provider {
	if strings.HasPrefix(model, MockPrefix) {
		return ProviderMock
	}
	name := strings.ToLower(model)
	switch {
	case strings.HasPrefix(name, "openai/"), strings.HasPrefix(name, "gpt-"), strings.HasPrefix(name, "gpt4o"):
		return ProviderOpenAI
	case strings.HasPrefix(name, "gemini/"), strings.HasPrefix(name, "google/"), strings.HasPrefix(name, "gemini-"):
		return ProviderGemini
	}
	return ProviderUnknown
}

// ModelName strips a provider prefix ("openai/gpt-4o" -> "gpt-4o").
func ModelName(model string) string {
	if i := strings.IndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}

// EffectiveTemperature clamps the temperature of gpt-5 models, which only accept 1.0.
func EffectiveTemperature(model string, t float64) float64 {
	if strings.Contains(strings.ToLower(model), "gpt-5") {
		return 1.0
	}
	return t
}

// Router dispatches requests to the provider named by the model id, applies
// the temperature rules and fills in cost and run accounting.
type Router struct {
	providers map[Provider]Transport
	prices    PriceMap
	logger    *slog.Logger
}

// NewRouter builds a router. A nil provider is left unregistered.
func NewRouter(openai, gemini, mock Transport, prices PriceMap, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if prices == nil {
		prices = DefaultPrices()
	}
	r := &Router{providers: map[Provider]Transport{}, prices: prices, logger: logger}
	for p, t := range map[Provider]Transport{ProviderOpenAI: openai, ProviderGemini: gemini, ProviderMock: mock} {
		if t != nil {
			r.providers[p] = t
		}
	}
	return r
}

func (r *Router) pick(model string) (Transport, Provider, error) {
	p := InferProvider(model)
	t, ok := r.providers[p]
	if !ok {
		return nil, p, common.NewAppError("UNKNOWN_PROVIDER", fmt.Sprintf("no transport for model %q (provider %s)", model, p), common.ErrTransport)
	}
	return t, p, nil
}

func (r *Router) Chat(ctx context.Context, req ChatRequest) (string, Usage, error) {
	t, p, err := r.pick(req.Model)
	if err != nil {
		return "", Usage{}, err
	}
	if eff := EffectiveTemperature(req.Model, req.Temperature); eff != req.Temperature {
		r.logger.Debug("llm.temperature.clamped", "model", req.Model, "requested", req.Temperature, "effective", eff)
		req.Temperature = eff
	}
	text, usage, err := t.Chat(ctx, req)
	return text, r.account(ctx, p, req.Model, usage), err
}

func (r *Router) Vision(ctx context.Context, req VisionRequest) (string, Usage, error) {
	t, p, err := r.pick(req.Model)
	if err != nil {
		return "", Usage{}, err
	}
	req.Temperature = EffectiveTemperature(req.Model, req.Temperature)
	text, usage, err := t.Vision(ctx, req)
	return text, r.account(ctx, p, req.Model, usage), err
}

func (r *Router) account(ctx context.Context, p Provider, model string, u Usage) Usage {
	if p != ProviderMock && u.Cost == 0 {
		u.Cost = r.prices.Cost(model, u)
	}
	if run, ok := common.RunFromContext(ctx); ok {
		run.AddCost(u.Cost)
	}
	return u
}
