package telemetry

import "github.com/ijager/rtfm-serial-loopback-example/pkg/hal"

// TxTap forwards transmitted data to a Sink.
type TxTap struct {
	hal.SerialTx
	Source string
	Sink   *Sink
}

// TapTx wraps tx.
func (s *Sink) TapTx(source string, tx hal.SerialTx) *TxTap {
	return &TxTap{SerialTx: tx, Source: source, Sink: s}
}

// WriteByte implements hal.SerialTx.
func (t *TxTap) WriteByte(b byte) error {
	if err := t.SerialTx.WriteByte(b); err != nil {
		return err
	}
	t.Sink.Emit(t.Source, KindTx, []byte{b}, false)
	return nil
}

// WriteString implements hal.SerialTx.
func (t *TxTap) WriteString(s string) error {
	if err := t.SerialTx.WriteString(s); err != nil {
		return err
	}
	t.Sink.Emit(t.Source, KindTx, []byte(s), false)
	return nil
}

// OutputTap forwards driven levels to a Sink.
type OutputTap struct {
	hal.DigitalOutput
	Source string
	Sink   *Sink
}

// TapOutput wraps out.
func (s *Sink) TapOutput(source string, out hal.DigitalOutput) *OutputTap {
	return &OutputTap{DigitalOutput: out, Source: source, Sink: s}
}

// Set implements hal.DigitalOutput.
func (t *OutputTap) Set(level hal.Level) error {
	if err := t.DigitalOutput.Set(level); err != nil {
		return err
	}
	t.Sink.Emit(t.Source, KindLevel, nil, bool(level))
	return nil
}
