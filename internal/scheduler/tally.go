package scheduler

// Counts are the number of jobs of one kind in each status.
type Counts struct {
	Pending int
	Running int
	Done    int
	Failed  int
}

// Total is the number of jobs counted.
func (c Counts) Total() int { return c.Pending + c.Running + c.Done + c.Failed }

// Drained reports whether every job of the kind reached a terminal state.
func (c Counts) Drained() bool { return c.Total() > 0 && c.Pending == 0 && c.Running == 0 }

// Tally is a snapshot of the job table.
type Tally struct {
	ByKind     map[Kind]Counts
	FailedDocs map[Kind][]string
	Total      int
	Done       int
	Failed     int
}

func (t Tally) add(k Kind, s Status, doc string) Tally {
	c := t.ByKind[k]
	switch s {
	case Pending:
		c.Pending++
	case Running:
		c.Running++
	case Done:
		c.Done++
		t.Done++
	case Failed:
		c.Failed++
		t.Failed++
		t.FailedDocs[k] = append(t.FailedDocs[k], doc)
	}
	t.ByKind[k] = c
	t.Total++
	return t
}

func newTally() Tally {
	return Tally{ByKind: map[Kind]Counts{}, FailedDocs: map[Kind][]string{}}
}
