package hal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(q *RxQueue) (data []byte, faults []RxFault) {
	for {
		b, err := q.Pop()
		if errors.Is(err, ErrWouldBlock) {
			return
		}
		var f RxFault
		if errors.As(err, &f) {
			faults = append(faults, f)
			data = append(data, '!')
			continue
		}
		data = append(data, b)
	}
}

func TestRxQueueOrder(t *testing.T) {
	var q RxQueue
	raised := 0
	q.Push('x')
	require.Zero(t, raised)
	q.Listen(func() { raised++ })
	q.Push('a', 'b')
	q.PushFault(Framing)
	q.Push('c')
	require.Equal(t, 3, raised)
	require.True(t, q.Asserted())
	data, faults := drain(&q)
	require.Equal(t, "xab!c", string(data))
	require.Equal(t, []RxFault{Framing}, faults)
	require.False(t, q.Asserted())
}

func TestRxQueueOverrun(t *testing.T) {
	q := RxQueue{Depth: 2}
	q.Push('a', 'b', 'c', 'd')
	require.Equal(t, 3, q.Len())
	data, faults := drain(&q)
	require.Equal(t, "ab!", string(data))
	require.Equal(t, []RxFault{Overrun}, faults)

	q.Push('e')
	data, faults = drain(&q)
	require.Equal(t, "e", string(data))
	require.Empty(t, faults)
}

func TestRxFaultNames(t *testing.T) {
	for _, f := range []RxFault{Framing, Noise, Overrun, Parity} {
		parsed, err := ParseRxFault(f.String())
		require.NoError(t, err)
		require.Equal(t, f, parsed)
	}
	_, err := ParseRxFault("Bogus")
	require.Error(t, err)
	require.Equal(t, "RxFault(9)", RxFault(9).Error())
	require.Equal(t, "HIGH", High.String())
	require.Equal(t, "LOW", Low.String())
}
