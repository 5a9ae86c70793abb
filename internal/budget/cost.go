package budget

import (
	"math"
	"unicode/utf8"
)

// CharsPerToken is the text token estimate ratio.
const CharsPerToken = 4

// Tokens estimates the token count of s as ceil(runes/4).
func Tokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// TruncateTokens cuts s to at most tokens*4 runes.
func TruncateTokens(s string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	limit := tokens * CharsPerToken
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}
	return s
}

// CostModel estimates the token cost of an image from its pixel size.
type CostModel struct {
	MaxEdge int // images are scaled so the long edge is at most this
	Tile    int
	Base    int
	PerTile int
}

// DefaultCostModel mirrors common vision pricing: 512px tiles, 85 + 170/tile.
func DefaultCostModel() CostModel {
	return CostModel{MaxEdge: 2048, Tile: 512, Base: 85, PerTile: 170}
}

func (m CostModel) withDefaults() CostModel {
	d := DefaultCostModel()
	if m.MaxEdge <= 0 {
		m.MaxEdge = d.MaxEdge
	}
	if m.Tile <= 0 {
		m.Tile = d.Tile
	}
	if m.Base <= 0 {
		m.Base = d.Base
	}
	if m.PerTile <= 0 {
		m.PerTile = d.PerTile
	}
	return m
}

// Scale fits w×h so that the long edge is at most edge, keeping the aspect ratio.
// Images already inside the bound are not enlarged.
func Scale(w, h, edge int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	long := max(w, h)
	if edge <= 0 || long <= edge {
		return w, h
	}
	f := float64(edge) / float64(long)
	sw := max(1, int(math.Round(float64(w)*f)))
	sh := max(1, int(math.Round(float64(h)*f)))
	return min(sw, edge), min(sh, edge)
}

// Tiles counts the tiles covering w×h after scaling to edge.
func (m CostModel) Tiles(w, h, edge int) int {
	sw, sh := Scale(w, h, edge)
	tx := (sw + m.Tile - 1) / m.Tile
	ty := (sh + m.Tile - 1) / m.Tile
	return tx * ty
}

// CostAt is the cost of w×h rendered with its long edge capped at edge.
func (m CostModel) CostAt(w, h, edge int) int {
	return m.Base + m.PerTile*m.Tiles(w, h, edge)
}

// ImageCost is the cost at MaxEdge.
func (m CostModel) ImageCost(w, h int) int {
	return m.CostAt(w, h, m.MaxEdge)
}

// RenderEdge is the long edge an image is rendered at when capped by edge.
func RenderEdge(w, h, edge int) int {
	sw, sh := Scale(w, h, edge)
	return max(sw, sh)
}

// FitEdge returns the largest long edge, not above MaxEdge, at which w×h
// costs at most budget. It never goes below one tile. ok is false when even
// a single tile does not fit.
func (m CostModel) FitEdge(w, h, budget int) (edge int, ok bool) {
	if budget < m.Base+m.PerTile {
		return 0, false
	}
	maxTiles := (budget - m.Base) / m.PerTile
	edge = min(m.MaxEdge, max(max(w, h), 1))
	const step = 64
	for edge > m.Tile && m.Tiles(w, h, edge) > maxTiles {
		edge = max(m.Tile, ((edge-1)/step)*step)
	}
	return edge, true
}
