package framework

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

type named struct {
	Runnable
	name string
}

func (r *named) Name() string {
	return r.name
}

// NamedRun attaches a name to a Runnable for logs and errors.
func NamedRun(name string, runnable Runnable) Runnable {
	return &named{Runnable: runnable, name: name}
}

// Runner runs multiple Runnables and collect errors.
// When any Runnable stops with an error other than context.Canceled,
// the rest are canceled.
type Runner struct {
	Context context.Context
	Runners []Runnable

	cancel func()
	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		errCh:  make(chan error, 1),
		exitCh: make(chan struct{}),
	}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// HandleSignals stops all Runnables on SIGINT or SIGTERM, a second
// signal makes Wait return ErrForcedExit without waiting.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		r.cancel()
		sig = <-sigCh
		glog.Errorf("%v again: force exit", sig)
		close(r.exitCh)
	}()
	return r
}

// Init calls Init on all Initializers in order, stopping at the first
// failure.
func (r *Runner) Init(runners ...Runnable) error {
	for n, runner := range runners {
		if in, ok := runner.(Initializer); ok {
			if err := in.Init(); err != nil {
				return &RunnerError{Name: NameOf(runner, strconv.Itoa(n)), Err: err}
			}
		}
	}
	return nil
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := NameOf(runner, strconv.Itoa(len(r.Runners)))
		r.Runners = append(r.Runners, runner)
		glog.V(4).Infof("start Runner[%s]", name)
		go func(runner Runnable, name string) {
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(r.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			if err != nil && err != context.Canceled {
				r.cancel()
				err = &RunnerError{Name: name, Err: err}
			}
			r.errCh <- err
		}(runner, name)
	}
	return r
}

// Stop cancels all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait waits until all Runnables stops and aggregate errors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if err != context.Canceled {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunOrFail is intended to be used in main: it initializes and runs all
// Runnables and exits the process on failure.
func (r *Runner) RunOrFail(runners ...Runnable) {
	if err := r.Init(runners...); err != nil {
		log.Fatalln(err)
	}
	if err := r.Go(runners...).Wait(); err != nil {
		log.Fatalln(err)
	}
}

// RunWithContextCancel runs fn which doesn't accept a context. onCancel
// must make fn return, it is only called if ctx is done first.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-done
	return ctx.Err()
}

// RunWithContextCloser runs fn until ctx is done, closer is closed to
// stop fn, and it is always closed once when this returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() { once.Do(func() { closer.Close() }) }
	defer closeOnce()
	return RunWithContextCancel(ctx, closeOnce, fn)
}
