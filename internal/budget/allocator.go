package budget

import (
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
)

// Config bounds one model request.
type Config struct {
	// Limit is the token ceiling T for intro, text and images together.
	Limit int

	// PriorityPages front-loads the first N pages.
	PriorityPages int
	PriorityBonus float64

	Cost CostModel
}

// DefaultConfig returns the stock allocator settings.
func DefaultConfig() Config {
	return Config{
		Limit:         8000,
		PriorityPages: 3,
		PriorityBonus: 1000,
		Cost:          DefaultCostModel(),
	}
}

// PageText is a (possibly trimmed) text block.
type PageText struct {
	Page    int
	Text    string
	Tokens  int
	Trimmed bool
}

// Admission is an image candidate chosen for the request.
type Admission struct {
	Candidate candidates.Candidate
	Score     float64
	Edge      int // long edge in px to render at
	Cost      int
	Fallback  bool
}

// Plan is the outcome of one allocation.
type Plan struct {
	Limit       int
	IntroTokens int

	// Aborted is set when the intro alone exceeds Limit. Nothing else is planned.
	Aborted bool

	Texts       []PageText
	TextTokens  int
	TextTrimmed bool

	Images   []Admission
	Skipped  []candidates.Candidate
	Fallback bool
}

// Estimate is the planned token cost of the request.
func (p Plan) Estimate() int {
	if p.Aborted {
		return p.IntroTokens
	}
	n := p.IntroTokens + p.TextTokens
	for _, a := range p.Images {
		n += a.Cost
	}
	return n
}

// Remaining is what is left of the ceiling.
func (p Plan) Remaining() int { return p.Limit - p.Estimate() }

// Allocator fits candidates under a token ceiling.
type Allocator struct {
	cfg    Config
	logger *slog.Logger
}

func NewAllocator(cfg Config, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.PriorityBonus == 0 {
		cfg.PriorityBonus = DefaultConfig().PriorityBonus
	}
	cfg.Cost = cfg.Cost.withDefaults()
	return &Allocator{cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (a *Allocator) Config() Config { return a.cfg }

// Score ranks an image candidate: front pages first, then bigger regions on
// pages with less competing text.
func (a *Allocator) Score(c candidates.Candidate) float64 {
	s := c.Value / float64(c.WordsOnPage+1)
	if c.Page <= a.cfg.PriorityPages {
		s += a.cfg.PriorityBonus
	}
	return s
}

// Allocate plans a request for doc with the given intro text. Text blocks
// are trimmed proportionally when they overflow; image candidates are then
// admitted greedily in priority order without backtracking.
func (a *Allocator) Allocate(doc, intro string, cands []candidates.Candidate) Plan {
	limit := a.cfg.Limit
	plan := Plan{Limit: limit, IntroTokens: Tokens(intro)}

	if plan.IntroTokens > limit {
		plan.Aborted = true
		plan.Skipped = append(plan.Skipped, cands...)
		a.logger.Warn("budget.abort", "doc", doc, "limit", limit, "intro_tokens", plan.IntroTokens)
		a.summary(doc, plan)
		return plan
	}

	texts, images := candidates.Split(cands)
	plan.Texts, plan.TextTokens, plan.TextTrimmed = a.layoutText(texts, limit-plan.IntroTokens)
	if plan.TextTrimmed {
		a.logger.Info("budget.text.trimmed", "doc", doc, "limit", limit,
			"intro_tokens", plan.IntroTokens, "text_tokens", plan.TextTokens)
	}

	remaining := limit - plan.IntroTokens - plan.TextTokens
	for _, c := range a.order(images) {
		cost := a.cfg.Cost.ImageCost(c.PxW, c.PxH)
		if cost <= remaining {
			remaining -= cost
			plan.Images = append(plan.Images, Admission{
				Candidate: c,
				Score:     a.Score(c),
				Edge:      RenderEdge(c.PxW, c.PxH, a.cfg.Cost.MaxEdge),
				Cost:      cost,
			})
			a.trace(doc, c, "admit", cost, remaining)
			continue
		}
		plan.Skipped = append(plan.Skipped, c)
		a.trace(doc, c, "skip", cost, remaining)
	}

	if len(plan.Images) == 0 && len(images) > 0 {
		if adm, ok := a.fallback(images, remaining); ok {
			remaining -= adm.Cost
			plan.Images = append(plan.Images, adm)
			plan.Fallback = true
			plan.Skipped = removeCandidate(plan.Skipped, adm.Candidate.ID)
			a.trace(doc, adm.Candidate, "fallback", adm.Cost, remaining)
		}
	}

	a.summary(doc, plan)
	return plan
}

// layoutText keeps page order and shrinks every page by the same proportion
// when intro plus text exceeds the ceiling. Each page gets
// floor(tokens_i * remaining / total) tokens, so the sum never exceeds remaining.
func (a *Allocator) layoutText(texts []candidates.Candidate, remaining int) ([]PageText, int, bool) {
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].Page < texts[j].Page })
	out := make([]PageText, 0, len(texts))
	total := 0
	for _, c := range texts {
		tok := Tokens(c.Text)
		total += tok
		out = append(out, PageText{Page: c.Page, Text: c.Text, Tokens: tok})
	}
	if total <= remaining {
		return out, total, false
	}

	used := 0
	kept := out[:0]
	for _, pt := range out {
		allowance := pt.Tokens * remaining / total
		text := TruncateTokens(pt.Text, allowance)
		if text == "" {
			continue
		}
		tok := Tokens(text)
		used += tok
		kept = append(kept, PageText{Page: pt.Page, Text: text, Tokens: tok, Trimmed: tok < pt.Tokens})
	}
	return kept, used, true
}

// order puts the priority pages first in encounter order, then the rest by
// descending area.
func (a *Allocator) order(images []candidates.Candidate) []candidates.Candidate {
	var front, rest []candidates.Candidate
	for _, c := range images {
		if c.Page <= a.cfg.PriorityPages {
			front = append(front, c)
		} else {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(front, func(i, j int) bool { return front[i].Order < front[j].Order })
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Area != rest[j].Area {
			return rest[i].Area > rest[j].Area
		}
		return rest[i].Order < rest[j].Order
	})
	return append(front, rest...)
}

// fallback downsizes the best scoring candidate until it fits remaining.
func (a *Allocator) fallback(images []candidates.Candidate, remaining int) (Admission, bool) {
	best := -1
	var bestScore float64
	for i, c := range images {
		s := a.Score(c)
		if best < 0 || s > bestScore || (s == bestScore && c.Order < images[best].Order) {
			best, bestScore = i, s
		}
	}
	c := images[best]
	edge, ok := a.cfg.Cost.FitEdge(c.PxW, c.PxH, remaining)
	if !ok {
		return Admission{}, false
	}
	return Admission{
		Candidate: c,
		Score:     bestScore,
		Edge:      RenderEdge(c.PxW, c.PxH, edge),
		Cost:      a.cfg.Cost.CostAt(c.PxW, c.PxH, edge),
		Fallback:  true,
	}, true
}

func (a *Allocator) trace(doc string, c candidates.Candidate, action string, cost, remaining int) {
	a.logger.Debug("budget.trace",
		"doc", doc,
		"candidate", c.ID,
		"kind", c.Kind.String(),
		"page", c.Page,
		"action", action,
		"cost", cost,
		"remaining", remaining,
	)
}

func (a *Allocator) summary(doc string, p Plan) {
	skipped := make([]string, len(p.Skipped))
	for i, c := range p.Skipped {
		skipped[i] = c.ID
	}
	a.logger.Info("budget.summary",
		"doc", doc,
		"limit", p.Limit,
		"estimate", p.Estimate(),
		"intro_tokens", p.IntroTokens,
		"text_tokens", p.TextTokens,
		"text_trimmed", p.TextTrimmed,
		"images", len(p.Images),
		"fallback", p.Fallback,
		"aborted", p.Aborted,
		"skipped", skipped,
	)
}

func removeCandidate(cs []candidates.Candidate, id string) []candidates.Candidate {
	out := cs[:0]
	for _, c := range cs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
