package scheduler

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Board draws the live status table. All cursor handling lives here, behind
// one mutex; workers never write to the terminal.
type Board struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	drawn int
	final map[Kind]string
}

// NewBoard returns a board writing to w. Redrawing in place is only used when
// w is a terminal.
func NewBoard(w io.Writer) *Board {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Board{w: w, tty: tty, final: map[Kind]string{}}
}

// IsTerminal reports whether the board redraws in place.
func (b *Board) IsTerminal() bool { return b.tty }

// Render draws one snapshot.
func (b *Board) Render(t Tally) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []string
	for _, k := range Kinds {
		c := t.ByKind[k]
		if c.Total() == 0 {
			continue
		}
		if line, ok := b.final[k]; ok {
			lines = append(lines, line)
			continue
		}
		lines = append(lines, fmt.Sprintf("%-6s pending %3d  running %3d  done %3d  failed %3d",
			k.String(), c.Pending, c.Running, c.Done, c.Failed))
	}
	if !b.tty {
		return
	}
	if b.drawn > 0 {
		fmt.Fprintf(b.w, "\x1b[%dA", b.drawn)
	}
	for _, l := range lines {
		fmt.Fprintf(b.w, "\x1b[2K%s\n", l)
	}
	b.drawn = len(lines)
}

// Final records the closing line of a kind. On a terminal it replaces the
// kind's live row; otherwise it is written once as plain text.
func (b *Board) Final(k Kind, c Counts, failedDocs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.final[k]; ok {
		return
	}
	line := fmt.Sprintf("%-6s ✔ done %d", k.String(), c.Done)
	if c.Failed > 0 {
		line = fmt.Sprintf("%-6s ⚠ done %d  failed %d: %s", k.String(), c.Done, c.Failed, strings.Join(failedDocs, ", "))
	}
	b.final[k] = line
	if !b.tty {
		fmt.Fprintln(b.w, line)
	}
}
