package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/pdf-tagger/internal/assemble"
	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
	"github.com/joseph-ayodele/pdf-tagger/internal/scheduler"
)

type fakeSource struct {
	texts  []string
	images map[int][]layout.ImageRegion
	info   layout.Info
	closed bool
}

func (f *fakeSource) PageCount() int                           { return len(f.texts) }
func (f *fakeSource) PageSize(int) (float64, float64, float64) { return 612, 792, 0 }
func (f *fakeSource) PageText(_ context.Context, p int) (string, error) {
	return f.texts[p-1], nil
}
func (f *fakeSource) PageImages(_ context.Context, p int) ([]layout.ImageRegion, error) {
	return f.images[p], nil
}
func (f *fakeSource) PageFigures(context.Context, int) ([]layout.Figure, error) { return nil, nil }
func (f *fakeSource) Info() layout.Info                                         { return f.info }
func (f *fakeSource) RenderPage(_ context.Context, page, _ int) ([]byte, error) {
	return []byte{byte(page)}, nil
}
func (f *fakeSource) RenderRegion(_ context.Context, page int, _ layout.BBox, _ int) ([]byte, error) {
	return []byte{byte(page)}, nil
}
func (f *fakeSource) Close() error { f.closed = true; return nil }

func opener(sources map[string]*fakeSource) layout.Opener {
	return func(path string) (layout.Source, error) {
		if s, ok := sources[path]; ok {
			return s, nil
		}
		return nil, errors.New("no such file")
	}
}

type scripted struct {
	mu     sync.Mutex
	calls  []string
	chat   func(req llm.ChatRequest) (string, error)
	vision func(req llm.VisionRequest) (string, error)
}

func (s *scripted) Chat(_ context.Context, req llm.ChatRequest) (string, llm.Usage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "chat:"+string(req.Task)+":"+req.Doc)
	s.mu.Unlock()
	text, err := s.chat(req)
	return text, llm.Usage{PromptTokens: 100}, err
}

func (s *scripted) Vision(_ context.Context, req llm.VisionRequest) (string, llm.Usage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "vision:"+req.Doc)
	s.mu.Unlock()
	text, err := s.vision(req)
	return text, llm.Usage{PromptTokens: 900}, err
}

func (s *scripted) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func fullPage() map[int][]layout.ImageRegion {
	return map[int][]layout.ImageRegion{
		2: {{ID: "scan", BBox: layout.BBox{X1: 612, Y1: 792}, PxW: 1700, PxH: 2200}},
	}
}

func newProcessor(open layout.Opener, tr llm.Transport, img ImageConfig, txt TextConfig) *Processor {
	ex := candidates.NewExtractor(candidates.DefaultConfig(), nil)
	alloc := budget.NewAllocator(budget.DefaultConfig(), nil)
	image := NewImageStage(img, open, ex, alloc, assemble.New(nil), tr, nil)
	text := NewTextStage(txt, open, ex, alloc, tr, nil)
	return NewProcessor(nil, nil, image, text, nil, scheduler.WithWorkers(scheduler.Image, 2), scheduler.WithWorkers(scheduler.Text, 2))
}

func TestProcessorImageThenText(t *testing.T) {
	src := &fakeSource{
		texts:  []string{"Quarterly numbers for the board", ""},
		images: fullPage(),
		info:   layout.Info{Author: "ignored"},
	}
	tr := &scripted{
		vision: func(req llm.VisionRequest) (string, error) {
			if req.Parts[0].Kind != llm.PartText || req.Parts[len(req.Parts)-1].Kind != llm.PartImage {
				t.Errorf("unexpected part layout")
			}
			return "```json\n{\"title\":\"Board Report\",\"title_confidence\":8,\"creator\":\"ACME\",\"creator_confidence\":7}\n```", nil
		},
		chat: func(req llm.ChatRequest) (string, error) {
			if !strings.Contains(req.Messages[1].Content, "Board Report") {
				t.Errorf("text request does not extend the image result: %s", req.Messages[1].Content)
			}
			return `{"summary":"A report.","summary_confidence":0.9,"tags":["finance","board"],"tags_confidence":[0.8,0.5]}`, nil
		},
	}
	doc := NewDocument("/in/2023-05-01 report.pdf", "reports/2023-05-01 report.pdf", nil)
	p := newProcessor(opener(map[string]*fakeSource{doc.Path: src}), tr,
		ImageConfig{Model: "openai/gpt-4o"}, TextConfig{ShortModel: "openai/gpt-4o-mini", LongModel: "openai/gpt-4o"})

	res := p.Run(context.Background(), []*Document{doc})
	if res.Tally.Failed != 0 || res.Tally.Done != 2 {
		t.Fatalf("tally = %+v", res.Tally)
	}
	calls := tr.Calls()
	if len(calls) != 2 || !strings.HasPrefix(calls[0], "vision:") || !strings.HasPrefix(calls[1], "chat:text:") {
		t.Fatalf("calls = %v", calls)
	}
	r := doc.Record
	if r.Title != "Board Report" || r.TitleConfidence != 8 {
		t.Errorf("title = %q/%d", r.Title, r.TitleConfidence)
	}
	if r.Summary != "A report." || r.SummaryConfidence != 9 {
		t.Errorf("summary = %q/%d", r.Summary, r.SummaryConfidence)
	}
	if c, ok := r.TagConfidence("finance"); !ok || c != 8 {
		t.Errorf("finance tag = %d, %v", c, ok)
	}
	if _, ok := r.TagConfidence("board"); ok {
		t.Error("tag below the reply gate was merged")
	}
	if _, ok := r.TagConfidence("reports"); !ok {
		t.Error("folder tag missing")
	}
	if _, ok := r.TagConfidence("2023-05-01 report.pdf"); ok {
		t.Error("file name became a tag")
	}
	if r.CreationDateString() != "2023-05-01" {
		t.Errorf("date from filename = %q", r.CreationDateString())
	}
	if !src.closed {
		t.Error("source not closed")
	}
}

func TestImageFailureFailsText(t *testing.T) {
	src := &fakeSource{texts: []string{"some words", ""}, images: fullPage()}
	tr := &scripted{
		vision: func(llm.VisionRequest) (string, error) { return "", common.ErrTransport },
		chat: func(llm.ChatRequest) (string, error) {
			t.Error("text ran after a failed image job")
			return "{}", nil
		},
	}
	doc := NewDocument("/in/x.pdf", "x.pdf", nil)
	before := doc.Record.Clone()
	p := newProcessor(opener(map[string]*fakeSource{doc.Path: src}), tr,
		ImageConfig{Model: "openai/gpt-4o"}, TextConfig{ShortModel: "openai/gpt-4o-mini"})
	res := p.Run(context.Background(), []*Document{doc})
	if res.Tally.Failed != 2 {
		t.Errorf("tally = %+v", res.Tally)
	}
	if doc.Record.APIJSON() != before.APIJSON() {
		t.Error("record changed by a failed pass")
	}
}

func TestMalformedReplyLeavesRecord(t *testing.T) {
	src := &fakeSource{texts: []string{"words here"}}
	tr := &scripted{chat: func(llm.ChatRequest) (string, error) {
		return `{"title":{"oops":1},"title_confidence":9}`, nil
	}}
	doc := NewDocument("/in/memo.pdf", "memo.pdf", nil)
	before := doc.Record.APIJSON()
	stage := NewTextStage(TextConfig{ShortModel: "m"}, opener(map[string]*fakeSource{doc.Path: src}),
		candidates.NewExtractor(candidates.DefaultConfig(), nil), budget.NewAllocator(budget.DefaultConfig(), nil), tr, nil)
	err := stage.Run(context.Background(), doc)
	if !errors.Is(err, common.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
	if doc.Record.APIJSON() != before {
		t.Error("record changed by a malformed reply")
	}
}

func TestUnparseableReplyIsNoop(t *testing.T) {
	src := &fakeSource{texts: []string{"words here"}}
	tr := &scripted{chat: func(llm.ChatRequest) (string, error) { return "I cannot help with that", nil }}
	doc := NewDocument("/in/memo.pdf", "memo.pdf", nil)
	stage := NewTextStage(TextConfig{ShortModel: "m"}, opener(map[string]*fakeSource{doc.Path: src}),
		candidates.NewExtractor(candidates.DefaultConfig(), nil), budget.NewAllocator(budget.DefaultConfig(), nil), tr, nil)
	if err := stage.Run(context.Background(), doc); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestImageSkippedWhenSufficient(t *testing.T) {
	tr := &scripted{vision: func(llm.VisionRequest) (string, error) {
		t.Error("vision called for a sufficient record")
		return "{}", nil
	}}
	rec := metadata.New()
	rec.SetTitle("Known", 9)
	rec.SetCreationDate("2020-01-01", 10)
	rec.SetSummary("s", 9)
	rec.SetCreator("c", 9)
	rec.SetImportance(5, 9)
	doc := NewDocument("/in/known.pdf", "known.pdf", rec)
	stage := NewImageStage(ImageConfig{Model: "m", Threshold: 7}, opener(nil),
		candidates.NewExtractor(candidates.DefaultConfig(), nil), budget.NewAllocator(budget.DefaultConfig(), nil),
		assemble.New(nil), tr, nil)
	if err := stage.Run(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func TestImageStageDefaultThreshold(t *testing.T) {
	stage := NewImageStage(ImageConfig{Model: "m"}, opener(nil), nil, nil, nil, nil, nil)
	if stage.Cfg.Threshold != metadata.DefaultThreshold {
		t.Fatalf("threshold = %d, want %d", stage.Cfg.Threshold, metadata.DefaultThreshold)
	}

	src := &fakeSource{texts: []string{""}, images: map[int][]layout.ImageRegion{
		1: {{ID: "scan", BBox: layout.BBox{X1: 612, Y1: 792}, PxW: 1700, PxH: 2200}},
	}}
	tr := &scripted{vision: func(llm.VisionRequest) (string, error) {
		return `{"title":"Scanned","title_confidence":8}`, nil
	}}
	doc := NewDocument("/in/scan.pdf", "scan.pdf", nil)
	stage = NewImageStage(ImageConfig{Model: "m"}, opener(map[string]*fakeSource{doc.Path: src}),
		candidates.NewExtractor(candidates.DefaultConfig(), nil), budget.NewAllocator(budget.DefaultConfig(), nil),
		assemble.New(nil), tr, nil)
	if err := stage.Run(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if calls := tr.Calls(); len(calls) != 1 || calls[0] != "vision:"+doc.Path {
		t.Fatalf("empty record was not analyzed: %v", calls)
	}
	if doc.Record.Title != "Scanned" {
		t.Errorf("title = %q", doc.Record.Title)
	}
}

func TestTextModelChoice(t *testing.T) {
	testCases := []struct {
		name  string
		cfg   TextConfig
		words int
		want  string
	}{
		{"short", TextConfig{ShortModel: "s", LongModel: "l", WordThreshold: 100}, 100, "s"},
		{"long", TextConfig{ShortModel: "s", LongModel: "l", WordThreshold: 100}, 101, "l"},
		{"short only", TextConfig{ShortModel: "s", WordThreshold: 100}, 5000, "s"},
		{"long only", TextConfig{LongModel: "l", WordThreshold: 100}, 3, "l"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Model(tc.words); got != tc.want {
				t.Errorf("Model(%d) = %q, want %q", tc.words, got, tc.want)
			}
		})
	}
}

func TestParseReplacements(t *testing.T) {
	testCases := []struct {
		name    string
		reply   string
		want    map[string]string
		wantErr bool
	}{
		{"list", `[{"original":"Tax","replacement":"taxes"},{"original":"x","replacement":""}]`, map[string]string{"Tax": "taxes", "x": ""}, false},
		{"wrapped", `{"replacements":[{"original":"a","replacement":null}]}`, map[string]string{"a": ""}, false},
		{"prose", "Sure:\n[{\"original\":\"A\",\"replacement\":\"a\"}]", map[string]string{"A": "a"}, false},
		{"empty", "", map[string]string{}, false},
		{"wrong shape", `[{"replacement":"b"}]`, nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReplacements(tc.reply)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s -> %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestTagNormalizer(t *testing.T) {
	a, b := metadata.New(), metadata.New()
	a.AddTags(metadata.Tag{Name: "Invoice", Confidence: 8}, metadata.Tag{Name: "misc", Confidence: 6})
	b.AddTags(metadata.Tag{Name: "invoices", Confidence: 9})
	tr := &scripted{chat: func(req llm.ChatRequest) (string, error) {
		if req.Doc != "/base/collection" {
			t.Errorf("doc = %q", req.Doc)
		}
		return `[{"original":"Invoice","replacement":"invoice"},{"original":"invoices","replacement":"invoice"},{"original":"misc","replacement":""}]`, nil
	}}
	n := NewTagNormalizer(TagConfig{Model: "m", BaseDir: "/base"}, tr, nil)
	if _, err := n.Normalize(context.Background(), []*metadata.Record{a, b}); err != nil {
		t.Fatal(err)
	}
	if names := a.TagNames(); len(names) != 1 || names[0] != "invoice" {
		t.Errorf("a tags = %v", names)
	}
	if c, _ := b.TagConfidence("invoice"); c != 9 {
		t.Errorf("b invoice confidence = %d", c)
	}
}
