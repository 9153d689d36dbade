package execx

import (
	"context"
	"sync"

	"github.com/vigil-dev/vigil/internal/errors"
)

var (
	errNoHandler = errors.Join(errors.ErrToolNotFound, errors.New("fake runner: no handler defined"))
	errNotInFake = errors.New("fake runner: binary not registered")
)

// FakeRunner is a Runner for tests. A Handler decides the outcome per spec
// and every invocation is recorded for later inspection.
type FakeRunner struct {
	// Handler determines the result for a given spec. If nil, Run reports
	// a spawn failure via the zero Outcome.
	Handler func(spec Spec) Outcome

	// Binaries lists the names LookPath resolves. Anything else reports
	// an error from LookPath.
	Binaries []string

	mu    sync.Mutex
	calls []Spec
}

// Outcome is what a FakeRunner handler returns for one invocation.
type Outcome struct {
	Result Result
	Err    error
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	if f.Handler == nil {
		return Result{ExitCode: -1}, errNoHandler
	}
	out := f.Handler(spec)
	return out.Result, out.Err
}

// LookPath implements Runner.
func (f *FakeRunner) LookPath(file string) (string, error) {
	for _, b := range f.Binaries {
		if b == file {
			return "/usr/bin/" + file, nil
		}
	}
	return "", errNotInFake
}

// Calls returns a copy of every spec passed to Run, in order.
func (f *FakeRunner) Calls() []Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Spec, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Run invocations so far.
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
