package runner

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Name string
	Args []string
}

// Fake is a scripted Runner. Handler decides the output of each call.
type Fake struct {
	Handler func(name string, args []string) (stdout, stderr []byte, err error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.Handler == nil {
		return nil, nil, nil
	}
	return f.Handler(name, args)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (c Call) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}
