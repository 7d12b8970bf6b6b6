package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
)

type keys struct {
	runes []rune
}

func (k *keys) ReadRune() (rune, error) {
	if len(k.runes) == 0 {
		return 0, io.EOF
	}
	r := k.runes[0]
	k.runes = k.runes[1:]
	return r, nil
}

func TestConsoleWrite(t *testing.T) {
	var out bytes.Buffer
	c := New(&keys{}, &out, nil)
	require.True(t, errors.Is(c.WriteByte('a'), hal.ErrNotConfigured))
	require.NoError(t, c.Configure(hal.SerialConfig{}))
	require.NoError(t, c.WriteByte('S'))
	require.NoError(t, c.WriteString("Serial Error: Noise\n"))
	_, err := c.Writer(Cyan).Write([]byte("7\n"))
	require.NoError(t, err)
	require.Equal(t, "S"+Red+"Serial Error: Noise\n"+reset+Cyan+"7\n"+reset, out.String())
}

func TestConsoleReceive(t *testing.T) {
	c := New(&keys{runes: []rune{'h', 'é', '\r', 4, 'x'}}, io.Discard, nil)
	raised := 0
	require.NoError(t, c.Listen(func() { raised++ }))
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, 3, raised)

	var got []byte
	for c.Asserted() {
		b, err := c.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}
	require.Equal(t, "hé\n", string(got))
}

func TestConsoleReceiveEOF(t *testing.T) {
	c := New(&keys{runes: []rune{'q'}}, io.Discard, nil)
	require.Equal(t, io.EOF, c.Run(context.Background()))
	b, err := c.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('q'), b)
}
