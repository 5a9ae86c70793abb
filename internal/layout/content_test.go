package layout

import (
	"math"
	"strings"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestScanPlacements(t *testing.T) {
	stream := `
% header comment
q 1 0 0 1 50 60 cm
  q 200 0 0 100 0 0 cm /Im0 Do Q
  BT /F1 12 Tf (hello \) world) Tj ET
  /P <</MCID 3>> BDC EMC
  q 0.5 0 0 0.5 0 0 cm 100 0 0 100 10 10 cm /Im1 Do Q
Q
BI /W 2 /H 2 /BPC 8 ID xxxx EI
q 612 0 0 792 0 0 cm /Im2 Do Q
`
	got, err := ScanPlacements(strings.NewReader(stream))
	if err != nil {
		t.Fatal(err)
	}
	want := []Placement{
		{Name: "Im0", BBox: BBox{X0: 50, Y0: 60, X1: 250, Y1: 160}},
		{Name: "Im1", BBox: BBox{X0: 55, Y0: 65, X1: 105, Y1: 115}},
		{Name: "Im2", BBox: BBox{X0: 0, Y0: 0, X1: 612, Y1: 792}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d placements: %+v", len(got), got)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Name != w.Name || !near(g.BBox.X0, w.BBox.X0) || !near(g.BBox.Y0, w.BBox.Y0) ||
			!near(g.BBox.X1, w.BBox.X1) || !near(g.BBox.Y1, w.BBox.Y1) {
			t.Fatalf("placement %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestScanPlacementsRotated(t *testing.T) {
	// 90 degree rotation of a 100x50 image translated to (200, 0)
	got, err := ScanPlacements(strings.NewReader("q 0 100 -50 0 200 0 cm /R Do Q"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	b := got[0].BBox
	if !near(b.X0, 150) || !near(b.X1, 200) || !near(b.Y0, 0) || !near(b.Y1, 100) {
		t.Fatalf("bbox = %+v", b)
	}
}

func TestScanPlacementsTruncated(t *testing.T) {
	got, err := ScanPlacements(strings.NewReader("q 10 0 0 10 0 0 cm /A Do (unterminated"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("got %+v", got)
	}
}

func TestBBoxHelpers(t *testing.T) {
	a := BBox{0, 0, 10, 10}
	b := BBox{5, 5, 20, 20}
	if i := a.Intersect(b); i != (BBox{5, 5, 10, 10}) {
		t.Fatalf("intersect = %+v", i)
	}
	if u := a.Union(b); u != (BBox{0, 0, 20, 20}) {
		t.Fatalf("union = %+v", u)
	}
	if !a.Intersect(BBox{11, 11, 12, 12}).Empty() {
		t.Fatal("disjoint boxes should not intersect")
	}
	if n := (BBox{10, 10, 0, 0}).Normalize(); n != a {
		t.Fatalf("normalize = %+v", n)
	}
}
