package layout

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/ledongthuc/pdf"
)

// Word is a run of glyphs on one baseline.
type Word struct {
	Text string
	BBox BBox
}

type glyphReader struct {
	mu sync.Mutex
	f  *os.File
	r  *pdf.Reader
}

func openGlyphReader(path string) (*glyphReader, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open glyphs: %w", err)
	}
	return &glyphReader{f: f, r: r}, nil
}

func (g *glyphReader) close() error { return g.f.Close() }

// page returns the words and rectangles of page. The reader is not safe for
// concurrent use and panics on some malformed streams; both are contained here.
func (g *glyphReader) page(n int) (words []Word, rects []BBox, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d geometry: %v", n, rec)
		}
	}()
	if n < 1 || n > g.r.NumPage() {
		return nil, nil, nil
	}
	p := g.r.Page(n)
	if p.V.IsNull() {
		return nil, nil, nil
	}
	c := p.Content()
	for _, r := range c.Rect {
		b := BBox{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}.Normalize()
		rects = append(rects, b)
	}
	glyphs := make([]Word, 0, len(c.Text))
	for _, t := range c.Text {
		glyphs = append(glyphs, Word{Text: t.S, BBox: BBox{X0: t.X, Y0: t.Y, X1: t.X + t.W, Y1: t.Y + t.FontSize}})
	}
	return joinGlyphs(glyphs), rects, nil
}

// joinGlyphs merges glyphs into words: same baseline, gap under a third of
// the glyph height, separated by whitespace glyphs.
func joinGlyphs(glyphs []Word) []Word {
	sort.SliceStable(glyphs, func(i, j int) bool {
		if math.Abs(glyphs[i].BBox.Y0-glyphs[j].BBox.Y0) > 1 {
			return glyphs[i].BBox.Y0 > glyphs[j].BBox.Y0
		}
		return glyphs[i].BBox.X0 < glyphs[j].BBox.X0
	})
	var out []Word
	var cur *Word
	for _, g := range glyphs {
		if g.Text == "" || g.Text == " " || g.Text == "\t" || g.Text == "\n" {
			cur = nil
			continue
		}
		if cur != nil {
			h := math.Max(cur.BBox.Height(), 1)
			sameLine := math.Abs(cur.BBox.Y0-g.BBox.Y0) <= 1
			if sameLine && g.BBox.X0-cur.BBox.X1 <= h/3 {
				cur.Text += g.Text
				cur.BBox = cur.BBox.Union(g.BBox)
				continue
			}
		}
		out = append(out, g)
		cur = &out[len(out)-1]
	}
	return out
}

// ClusterFigures groups rectangles whose boxes come within tol points of each
// other. Each cluster becomes a Figure; its children are the clusters formed
// with zero tolerance (touching or overlapping only) when there is more
// than one.
func ClusterFigures(rects []BBox, words []Word, tol float64) []Figure {
	groups := cluster(rects, tol)
	out := make([]Figure, 0, len(groups))
	for _, g := range groups {
		f := figureOf(g, words)
		if tol > 0 {
			if sub := cluster(g, 0); len(sub) > 1 {
				for _, s := range sub {
					f.Children = append(f.Children, figureOf(s, words))
				}
			}
		}
		out = append(out, f)
	}
	return out
}

func figureOf(rects []BBox, words []Word) Figure {
	box := rects[0]
	for _, r := range rects[1:] {
		box = box.Union(r)
	}
	n := 0
	for _, w := range words {
		cx := (w.BBox.X0 + w.BBox.X1) / 2
		cy := (w.BBox.Y0 + w.BBox.Y1) / 2
		if box.Contains(cx, cy) {
			n++
		}
	}
	return Figure{BBox: box, Primitives: len(rects), Words: n}
}

// cluster is a union-find over rectangles that lie within tol of each other.
func cluster(rects []BBox, tol float64) [][]BBox {
	parent := make([]int, len(rects))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range rects {
		a := grow(rects[i], tol)
		for j := i + 1; j < len(rects); j++ {
			if overlaps(a, rects[j]) {
				if ri, rj := find(i), find(j); ri != rj {
					parent[rj] = ri
				}
			}
		}
	}
	index := map[int]int{}
	var out [][]BBox
	for i, r := range rects {
		root := find(i)
		k, ok := index[root]
		if !ok {
			k = len(out)
			index[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], r)
	}
	return out
}

func grow(b BBox, d float64) BBox {
	return BBox{X0: b.X0 - d, Y0: b.Y0 - d, X1: b.X1 + d, Y1: b.Y1 + d}
}

func overlaps(a, b BBox) bool {
	return a.X0 <= b.X1 && b.X0 <= a.X1 && a.Y0 <= b.Y1 && b.Y0 <= a.Y1
}
