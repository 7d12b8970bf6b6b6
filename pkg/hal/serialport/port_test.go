package serialport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

func newPipePort(t *testing.T) (*Port, net.Conn) {
	local, remote := net.Pipe()
	t.Cleanup(func() { remote.Close() })
	return New("pipe", local), remote
}

func TestPortTransmit(t *testing.T) {
	p, remote := newPipePort(t)
	defer p.Close()

	err := p.WriteByte('x')
	require.True(t, errors.Is(err, hal.ErrNotConfigured))

	require.NoError(t, p.Configure(hal.SerialConfig{BaudRate: 115200}))
	go func() {
		p.WriteString("hello")
		p.WriteByte('\n')
	}()
	line, err := bufio.NewReader(remote).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "hello\n", line)
}

func TestPortReceive(t *testing.T) {
	p, remote := newPipePort(t)
	raised := make(chan struct{}, 16)
	require.NoError(t, p.Listen(func() { raised <- struct{}{} }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	_, err := remote.Write([]byte("ab"))
	require.NoError(t, err)
	select {
	case <-raised:
	case <-time.After(time.Second):
		t.Fatal("no receive event")
	}
	require.Eventually(t, func() bool { return p.rx.Len() == 2 }, time.Second, time.Millisecond)
	require.True(t, p.Asserted())
	b, err := p.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('a'), b)
	b, err = p.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('b'), b)
	_, err = p.ReadByte()
	require.Equal(t, hal.ErrWouldBlock, err)

	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.NoError(t, p.Configure(hal.SerialConfig{BaudRate: 9600}))
	err = p.WriteByte('c')
	require.True(t, errors.Is(err, hal.ErrClosed))
}

func TestPortRemoteClosed(t *testing.T) {
	p, remote := newPipePort(t)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	remote.Close()
	err := <-done
	require.Error(t, err)
	require.Contains(t, err.Error(), "pipe: receive")
}

func TestOpenBusy(t *testing.T) {
	device := "/dev/rtfm-test-" + t.Name()
	fl := flock.New(LockPath(device))
	locked, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer fl.Unlock()

	_, err = Open(device, 115200)
	require.True(t, errors.Is(err, ErrPortBusy))
}

func TestLockPath(t *testing.T) {
	require.Contains(t, LockPath("/dev/ttyUSB0"), "rtfm-dev_ttyUSB0.lock")
}
