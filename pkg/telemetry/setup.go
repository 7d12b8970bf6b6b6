package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/firmware"
	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/rtfm"
)

// Sources tapped on the firmware board.
const (
	SourceLED  = "led"
	SourceTx2  = "tx2"
	SourceTx3  = "tx3"
	SourceMeta = "meta"
)

// TapBoard routes the operational outputs of the board through the Sink.
func (s *Sink) TapBoard(b *firmware.Board) {
	b.LEDOut = s.TapOutput(SourceLED, b.LED)
	b.Tx2 = s.TapTx(SourceTx2, b.Serial2)
	b.Tx3 = s.TapTx(SourceTx3, b.Serial3)
}

// Describe formats the task set of the app.
func Describe(app *rtfm.App) string {
	items := []string{app.Name()}
	for _, st := range app.Stats() {
		items = append(items, fmt.Sprintf("%s@%s", st.Name, st.Priority))
	}
	return strings.Join(items, " ")
}

// Watch runs the firmware and reports the fault if it halts.
func (s *Sink) Watch(fw *firmware.Firmware) fx.Runnable {
	return fx.NamedRun(fw.Name(), fx.RunFunc(func(ctx context.Context) error {
		s.Emit(SourceMeta, KindMeta, []byte(Describe(fw.App)), false)
		err := fw.Run(ctx)
		var fault *rtfm.FaultError
		if errors.As(err, &fault) {
			s.Halt(fault.Task, fault)
		}
		return err
	}))
}

// Setup creates the Sink and the Runnables delivering it, nothing is
// created if telemetry is disabled.
func (c *Config) Setup(device string) (*Sink, []fx.Runnable, error) {
	if !c.Enabled() {
		return nil, nil, nil
	}
	sink := NewSink(device, c.Depth)
	pub := &Publisher{Sink: sink}
	var runnables []fx.Runnable
	if c.MQTTBrokerURL != "" {
		q, err := NewQueueFromURL(c.MQTTBrokerURL)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry MQTT: %v", err)
		}
		pub.Queue = q
		runnables = append(runnables, &MQTTRunner{Queue: q})
	}
	if c.WebSocketAddr != "" {
		pub.Hub = &Hub{}
		runnables = append(runnables, &Server{Addr: c.WebSocketAddr, Hub: pub.Hub})
	}
	return sink, append(runnables, pub), nil
}
