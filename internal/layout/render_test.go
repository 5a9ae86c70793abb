package layout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// pngWriter emulates pdftoppm by writing <prefix>.png.
func pngWriter(payload string) *runner.Fake {
	return &runner.Fake{Handler: func(name string, args []string) ([]byte, []byte, error) {
		prefix := args[len(args)-1]
		return nil, nil, os.WriteFile(prefix+".png", []byte(payload), 0o644)
	}}
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestRenderPageArgs(t *testing.T) {
	f := pngWriter("img")
	b, err := renderPage(context.Background(), f, "pdftoppm", "/x/doc.pdf", 3, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "img" {
		t.Fatalf("got %q", b)
	}
	args := f.Calls()[0].Args
	if argValue(args, "-f") != "3" || argValue(args, "-l") != "3" || argValue(args, "-scale-to") != "1024" {
		t.Fatalf("args = %v", args)
	}
	if args[len(args)-2] != "/x/doc.pdf" {
		t.Fatalf("input not passed: %v", args)
	}
}

func TestRenderRegionCrop(t *testing.T) {
	f := pngWriter("crop")
	page := BBox{X1: 612, Y1: 792}
	// 144pt = 2in long edge at 288px -> 144 dpi -> 2px per point
	box := BBox{X0: 72, Y0: 592, X1: 216, Y1: 692}
	if _, err := renderRegion(context.Background(), f, "pdftoppm", "d.pdf", 1, page, 1, box, 288); err != nil {
		t.Fatal(err)
	}
	args := f.Calls()[0].Args
	want := map[string]string{"-r": "144.00", "-x": "144", "-y": "200", "-W": "288", "-H": "200"}
	for k, v := range want {
		if got := argValue(args, k); got != v {
			t.Fatalf("%s = %s, want %s (args %v)", k, got, v, args)
		}
	}
}

func TestRenderRegionEmpty(t *testing.T) {
	f := pngWriter("x")
	_, err := renderRegion(context.Background(), f, "pdftoppm", "d.pdf", 1, BBox{X1: 10, Y1: 10}, 1, BBox{X0: 20, Y0: 20, X1: 30, Y1: 30}, 100)
	if err == nil {
		t.Fatal("expected error for box outside page")
	}
	if len(f.Calls()) != 0 {
		t.Fatal("pdftoppm should not run")
	}
}

func TestRenderFailure(t *testing.T) {
	f := &runner.Fake{Handler: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("I/O Error"), errors.New("exit status 1")
	}}
	if _, err := renderPage(context.Background(), f, "pdftoppm", "d.pdf", 1, 512); err == nil {
		t.Fatal("expected error")
	}
}

func TestPdfToTextSplitsPages(t *testing.T) {
	f := &runner.Fake{Handler: func(string, []string) ([]byte, []byte, error) {
		return []byte("one\fTWO\f\f"), nil, nil
	}}
	pages, err := pdfToText(context.Background(), f, "pdftotext", filepath.Join("a", "b.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 || pages[0] != "one" || pages[1] != "TWO" || pages[2] != "" {
		t.Fatalf("pages = %q", pages)
	}
}

func TestRegionDPIClamp(t *testing.T) {
	if got := RegionDPI(0.01, 2048); got != maxRenderDPI {
		t.Fatalf("got %v", got)
	}
	if got := RegionDPI(100, 512); got != minRenderDPI {
		t.Fatalf("got %v", got)
	}
}
