package framework

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type initRunnable struct {
	RunFunc
	err    error
	called bool
}

func (r *initRunnable) Init() error {
	r.called = true
	return r.err
}

func waitCancel(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerStopsAllOnError(t *testing.T) {
	errBoom := errors.New("boom")
	r := NewRunner().Go(
		NamedRun("waiter", RunFunc(waitCancel)),
		NamedRun("failing", RunFunc(func(context.Context) error { return errBoom })),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errBoom))
	var rerr *RunnerError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "failing", rerr.Name)
	require.Equal(t, "failing: boom", err.Error())
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner().Go(RunFunc(waitCancel), RunFunc(waitCancel))
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Stop()
	}()
	require.NoError(t, r.Wait())
}

func TestRunnerInit(t *testing.T) {
	first := &initRunnable{}
	second := &initRunnable{err: errors.New("no port")}
	third := &initRunnable{}
	err := NewRunner().Init(first, NamedRun("plain", RunFunc(waitCancel)), second, third)
	require.EqualError(t, err, "2: no port")
	require.True(t, first.called)
	require.True(t, second.called)
	require.False(t, third.called)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errA, errB := errors.New("a"), errors.New("b")
	err := errs.Add(errA, nil, errB).Aggregate()
	require.EqualError(t, err, "Multiple errors:\na\nb")
	require.True(t, errors.Is(err, errB))
	require.False(t, errors.Is(err, io.EOF))
}

type closer struct {
	closed chan struct{}
}

func (c *closer) Close() error {
	close(c.closed)
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &closer{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	go cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.closed
		return io.EOF
	})
	require.Equal(t, context.Canceled, err)

	c = &closer{closed: make(chan struct{})}
	err = RunWithContextCloser(context.Background(), c, func() error { return io.EOF })
	require.Equal(t, io.EOF, err)
	_, ok := <-c.closed
	require.False(t, ok)
}
