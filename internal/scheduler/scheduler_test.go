package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) index(id string, st Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.JobID == id && e.Status == st {
			return i
		}
	}
	return -1
}

func ok(context.Context) error { return nil }

func docJobs(doc string, withOCR bool, run map[Kind]Func) []Job {
	var jobs []Job
	var deps []string
	if withOCR {
		jobs = append(jobs, Job{ID: JobID(doc, OCR), Doc: doc, Kind: OCR, Run: run[OCR]})
		deps = append(deps, JobID(doc, OCR))
	}
	jobs = append(jobs, Job{ID: JobID(doc, Image), Doc: doc, Kind: Image, Deps: deps, Run: run[Image]})
	jobs = append(jobs, Job{ID: JobID(doc, Text), Doc: doc, Kind: Text, Deps: append(deps, JobID(doc, Image)), Run: run[Text]})
	return jobs
}

func TestAddRejectsDuplicates(t *testing.T) {
	s := New(nil)
	if err := s.Add(Job{ID: "a", Run: ok}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Job{ID: "a", Run: ok}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("duplicate add err = %v", err)
	}
	if err := s.Add(Job{ID: "b"}); err == nil {
		t.Error("job without func accepted")
	}
}

func TestAddRejectsUnknownKind(t *testing.T) {
	testCases := []Kind{Kind(-1), Kind(3), Kind(7)}
	for _, k := range testCases {
		t.Run(k.String(), func(t *testing.T) {
			s := New(nil)
			err := s.Add(Job{ID: "x", Kind: k, Run: ok})
			if common.CodeOf(err) != "INVALID_JOB" || !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("err = %v", err)
			}
			if tally := s.Run(context.Background()); tally.Total != 0 {
				t.Errorf("rejected job was run: %+v", tally)
			}
		})
	}
}

func TestDependencyOrder(t *testing.T) {
	rec := &recorder{}
	s := New(nil, WithObserver(rec.observe), WithWorkers(Text, 4), WithWorkers(Image, 4))
	slow := func(context.Context) error { time.Sleep(5 * time.Millisecond); return nil }
	docs := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	for _, d := range docs {
		for _, j := range docJobs(d, true, map[Kind]Func{OCR: slow, Image: slow, Text: ok}) {
			if err := s.Add(j); err != nil {
				t.Fatal(err)
			}
		}
	}
	tally := s.Run(context.Background())
	if tally.Total != 12 || tally.Done != 12 || tally.Failed != 0 {
		t.Fatalf("tally = %+v", tally)
	}
	for _, d := range docs {
		textRun := rec.index(JobID(d, Text), Running)
		imgDone := rec.index(JobID(d, Image), Done)
		ocrDone := rec.index(JobID(d, OCR), Done)
		imgRun := rec.index(JobID(d, Image), Running)
		if textRun < imgDone || textRun < ocrDone {
			t.Errorf("%s: text ran at %d before image done %d / ocr done %d", d, textRun, imgDone, ocrDone)
		}
		if imgRun < ocrDone {
			t.Errorf("%s: image ran at %d before ocr done %d", d, imgRun, ocrDone)
		}
	}
}

func TestFailurePropagates(t *testing.T) {
	var textRan atomic.Bool
	s := New(nil)
	boom := func(context.Context) error { return errors.New("vision failed") }
	for _, j := range docJobs("bad.pdf", false, map[Kind]Func{
		Image: boom,
		Text:  func(context.Context) error { textRan.Store(true); return nil },
	}) {
		_ = s.Add(j)
	}
	for _, j := range docJobs("good.pdf", false, map[Kind]Func{Image: ok, Text: ok}) {
		_ = s.Add(j)
	}
	tally := s.Run(context.Background())

	if textRan.Load() {
		t.Error("dependent of a failed job ran")
	}
	err := s.Err(JobID("bad.pdf", Text))
	if !errors.Is(err, common.ErrDependency) || !strings.Contains(err.Error(), "dependency failed: image:bad.pdf") {
		t.Errorf("text err = %v", err)
	}
	if st, _ := s.Status(JobID("good.pdf", Text)); st != Done {
		t.Errorf("unrelated document status = %s", st)
	}
	if tally.Failed != 2 || tally.Done != 2 {
		t.Errorf("tally = %+v", tally)
	}
	if got := tally.FailedDocs[Image]; len(got) != 1 || got[0] != "bad.pdf" {
		t.Errorf("failed image docs = %v", got)
	}
}

func TestUnknownDependencyIsNotWaitedOn(t *testing.T) {
	s := New(nil)
	_ = s.Add(Job{ID: "t", Kind: Text, Deps: []string{"never-submitted"}, Run: ok})
	done := make(chan Tally)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case tally := <-done:
		if tally.Done != 1 {
			t.Errorf("tally = %+v", tally)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run blocked on an unknown dependency")
	}
}

func TestCycleFailsWithoutRunning(t *testing.T) {
	var ran atomic.Int32
	count := func(context.Context) error { ran.Add(1); return nil }
	s := New(nil)
	_ = s.Add(Job{ID: "a", Kind: Image, Deps: []string{"b"}, Run: count})
	_ = s.Add(Job{ID: "b", Kind: Text, Deps: []string{"a"}, Run: count})
	_ = s.Add(Job{ID: "c", Kind: Text, Deps: []string{"a"}, Run: count})
	_ = s.Add(Job{ID: "d", Kind: OCR, Run: count})
	tally := s.Run(context.Background())

	if ran.Load() != 1 {
		t.Errorf("ran %d jobs, want only d", ran.Load())
	}
	if !errors.Is(s.Err("a"), ErrCycle) || !errors.Is(s.Err("b"), ErrCycle) {
		t.Errorf("cycle errors = %v, %v", s.Err("a"), s.Err("b"))
	}
	if !errors.Is(s.Err("c"), common.ErrDependency) {
		t.Errorf("c err = %v", s.Err("c"))
	}
	if tally.Failed != 3 || tally.Done != 1 {
		t.Errorf("tally = %+v", tally)
	}
}

func TestPanicMarksFailed(t *testing.T) {
	s := New(nil)
	_ = s.Add(Job{ID: "p", Kind: OCR, Run: func(context.Context) error { panic("bad page") }})
	tally := s.Run(context.Background())
	if tally.Failed != 1 || !strings.Contains(s.Err("p").Error(), "bad page") {
		t.Errorf("tally = %+v err = %v", tally, s.Err("p"))
	}
}

func TestPoolBound(t *testing.T) {
	var cur, peak atomic.Int32
	work := func(context.Context) error {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		cur.Add(-1)
		return nil
	}
	s := New(nil, WithWorkers(Image, 2))
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		_ = s.Add(Job{ID: id, Kind: Image, Run: work})
	}
	s.Run(context.Background())
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestFinalLineOncePerKind(t *testing.T) {
	var buf bytes.Buffer
	board := NewBoard(&buf)
	s := New(nil, WithBoard(board))
	_ = s.Add(Job{ID: "i1", Doc: "x.pdf", Kind: Image, Run: ok})
	_ = s.Add(Job{ID: "i2", Doc: "y.pdf", Kind: Image, Run: func(context.Context) error { return errors.New("no") }})
	_ = s.Add(Job{ID: "t1", Doc: "x.pdf", Kind: Text, Deps: []string{"i1"}, Run: ok})
	s.Run(context.Background())

	out := buf.String()
	if strings.Count(out, "image") != 1 || strings.Count(out, "text") != 1 {
		t.Fatalf("final lines:\n%s", out)
	}
	if !strings.Contains(out, "failed 1: y.pdf") {
		t.Errorf("failed doc not listed:\n%s", out)
	}
	if strings.Contains(out, "ocr") {
		t.Errorf("line for a kind without jobs:\n%s", out)
	}
}
