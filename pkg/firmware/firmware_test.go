package firmware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/rtfm"
)

const banner = DefaultBanner + "\n"

type testEnv struct {
	t     *testing.T
	board *sim.Board
	fw    *Firmware
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{t: t, board: sim.NewBoard()}
	fw, err := New(NewConfig(), SimBoard(env.board))
	require.NoError(t, err)
	env.fw = fw
	return env
}

func (e *testEnv) init() *testEnv {
	require.NoError(e.t, e.fw.Init())
	return e
}

func (e *testEnv) step() {
	require.NoError(e.t, e.fw.App.Step())
}

func (e *testEnv) tick(n int) {
	for i := 0; i < n; i++ {
		e.board.Timer.Fire()
		e.step()
	}
}

func (e *testEnv) echoed() string {
	out := string(e.board.Serial2.Transmitted())
	require.True(e.t, strings.HasPrefix(out, banner), "missing banner: %q", out)
	return out[len(banner):]
}

func TestInit(t *testing.T) {
	env := newTestEnv(t).init()
	b := env.board
	require.Equal(t, []hal.Level{hal.Low}, b.LED.History())
	require.Equal(t, DefaultBaudRate, b.Serial2.Config().BaudRate)
	require.Equal(t, DefaultBaudRate, b.Serial3.Config().BaudRate)
	require.Equal(t, hal.Hz(DefaultHeartbeatHz), b.Timer.Frequency())
	require.Equal(t, banner, string(b.Serial2.Transmitted()))
	require.Empty(t, b.Serial3.Transmitted())

	tbl := []struct {
		task     string
		priority rtfm.Priority
	}{
		{"usart2", 2},
		{"tim1_up", 1},
	}
	stats := env.fw.App.Stats()
	for n, expect := range tbl {
		require.Equal(t, expect.task, stats[n].Name)
		require.Equal(t, expect.priority, stats[n].Priority)
	}

	require.Equal(t, rtfm.ErrAlreadyInitialized, env.fw.Init())
	require.Equal(t, banner, string(b.Serial2.Transmitted()))
}

func TestEventsBeforeInitWait(t *testing.T) {
	env := newTestEnv(t)
	env.board.Serial2.Inject('z')
	env.board.Timer.Fire()
	require.Equal(t, rtfm.ErrNotInitialized, env.fw.App.Step())
	require.Empty(t, env.board.Serial3.Transmitted())
	env.init()
	env.step()
	require.Equal(t, "z", env.echoed())
	require.Equal(t, []string{"0"}, env.board.Serial3.Lines())
}

func TestEcho(t *testing.T) {
	env := newTestEnv(t).init()
	env.board.Serial2.Inject(0x41, 0x42)
	env.step()
	require.Equal(t, []byte{0x41, 0x42}, []byte(env.echoed()))
	require.Equal(t, uint64(2), env.fw.App.Stats()[0].Dispatched)
}

func TestEchoFaultResumes(t *testing.T) {
	testCases := []struct {
		fault  hal.RxFault
		expect string
	}{
		{hal.Framing, "Serial Error: Framing\n"},
		{hal.Noise, "Serial Error: Noise\n"},
		{hal.Overrun, "Serial Error: Overrun\n"},
		{hal.Parity, "Serial Error: Parity\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.fault.String(), func(t *testing.T) {
			env := newTestEnv(t).init()
			u := env.board.Serial2
			u.Inject('a')
			u.InjectFault(tc.fault)
			u.Inject('b', 'c')
			env.step()
			require.Equal(t, "a"+tc.expect+"bc", env.echoed())
		})
	}
}

func TestEchoSpuriousEvent(t *testing.T) {
	env := newTestEnv(t).init()
	env.fw.App.Pend(IRQUSART2)
	env.step()
	require.Equal(t, "Serial Error: WouldBlock\n", env.echoed())
}

func TestEchoOverrun(t *testing.T) {
	env := newTestEnv(t)
	env.board.Serial2.WithRxDepth(2)
	env.init()
	env.board.Serial2.Inject('1', '2', '3', '4')
	env.step()
	env.board.Serial2.Inject('5')
	env.step()
	require.Equal(t, "12Serial Error: Overrun\n5", env.echoed())
}

func TestHeartbeat(t *testing.T) {
	env := newTestEnv(t).init()
	env.tick(3)
	require.Equal(t, []hal.Level{hal.Low, hal.High, hal.Low, hal.High}, env.board.LED.History())
	require.Equal(t, []string{"0", "1", "2"}, env.board.Serial3.Lines())
	require.False(t, env.board.Timer.Asserted())
	require.Equal(t, uint64(3), env.board.Timer.Cleared())
	require.Equal(t, banner, string(env.board.Serial2.Transmitted()))
}

func TestHeartbeatCounterWraps(t *testing.T) {
	env := newTestEnv(t).init()
	env.fw.heartbeat.count = math.MaxUint32
	env.tick(2)
	require.Equal(t, []string{"4294967295", "0"}, env.board.Serial3.Lines())
}

func TestTransmitFaultHalts(t *testing.T) {
	env := newTestEnv(t).init()
	env.board.Serial3.TxCapacity = 3
	env.board.Timer.Fire()
	env.step()
	env.board.Timer.Fire()
	err := env.fw.App.Step()
	var fault *rtfm.FaultError
	require.True(t, errors.As(err, &fault))
	require.Equal(t, "tim1_up", fault.Task)
	require.True(t, errors.Is(err, hal.ErrTxBufferFull))

	env.board.Serial2.Inject('x')
	require.Equal(t, err, env.fw.App.Step())
	require.Equal(t, banner, string(env.board.Serial2.Transmitted()))
}

func TestPinFaultHalts(t *testing.T) {
	env := newTestEnv(t).init()
	env.board.LED.Fault = errors.New("open drain")
	env.board.Timer.Fire()
	err := env.fw.App.Step()
	var pinFault *hal.PinFault
	require.True(t, errors.As(err, &pinFault))
	require.Empty(t, env.board.Serial3.Transmitted())
}

func TestInitFault(t *testing.T) {
	env := newTestEnv(t)
	env.board.LED.Fault = errors.New("stuck")
	err := env.fw.Init()
	var fault *rtfm.FaultError
	require.True(t, errors.As(err, &fault))
	require.Equal(t, "init", fault.Task)
	require.Empty(t, env.board.Serial2.Transmitted())
	require.Equal(t, err, env.fw.Run(context.Background()))
}

func TestNewValidation(t *testing.T) {
	conf := NewConfig()
	conf.EchoPriority = 0
	_, err := New(conf, &Board{})
	require.Error(t, err)

	_, err = New(NewConfig(), &Board{LED: sim.NewPin("x")})
	require.Error(t, err)

	conf = NewConfig()
	conf.EchoPriority, conf.HeartbeatPriority = 3, 3
	b := sim.NewBoard()
	fw, err := New(conf, SimBoard(b))
	require.NoError(t, err)
	require.NoError(t, fw.Init())
}

type countingTx struct {
	hal.SerialTx
	count int
}

func (c *countingTx) WriteString(s string) error {
	c.count++
	return c.SerialTx.WriteString(s)
}

func TestBoardOverrides(t *testing.T) {
	b := sim.NewBoard()
	tx3 := &countingTx{SerialTx: b.Serial3}
	fw, err := New(NewConfig(), &Board{LED: b.LED, Timer: b.Timer, Serial2: b.Serial2, Serial3: b.Serial3, Tx3: tx3})
	require.NoError(t, err)
	require.NoError(t, fw.Init())
	b.Timer.Fire()
	require.NoError(t, fw.App.Step())
	require.Equal(t, 1, tx3.count)
	require.Equal(t, []string{"0"}, b.Serial3.Lines())
}

func TestRunConcurrentSources(t *testing.T) {
	const (
		bytesSent = 200
		ticks     = 50
	)
	env := newTestEnv(t)
	env.board.Serial2.WithRxDepth(bytesSent)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.fw.Run(ctx) }()
	require.Eventually(t, env.fw.App.Initialized, time.Second, time.Millisecond)

	var (
		wg    sync.WaitGroup
		sent  []byte
		acked int
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < bytesSent; i++ {
			b := byte('a' + i%26)
			sent = append(sent, b)
			env.board.Serial2.Inject(b)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			if env.board.Timer.FireAndWait(time.Second) {
				acked++
			}
		}
	}()
	wg.Wait()
	require.Equal(t, ticks, acked)
	require.Eventually(t, func() bool {
		return len(env.board.Serial2.Transmitted()) == len(banner)+bytesSent
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-done)

	require.Equal(t, string(sent), env.echoed())
	lines := env.board.Serial3.Lines()
	require.Len(t, lines, ticks)
	for n, line := range lines {
		require.Equal(t, fmt.Sprint(n), line)
	}
	levels := env.board.LED.History()
	require.Len(t, levels, ticks+1)
	for n, level := range levels {
		require.Equal(t, hal.Level(n%2 == 1), level)
	}
}
