// Package telemetry taps the controller outputs and streams them to
// MQTT and WebSocket subscribers as protobuf encoded events.
package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang/protobuf/proto"
)

// Kind is the type of Event.
type Kind int32

// Kinds
const (
	KindTx    Kind = 0
	KindLevel Kind = 1
	KindHalt  Kind = 2
	KindMeta  Kind = 3
)

var kindNames = map[int32]string{
	0: "TX",
	1: "LEVEL",
	2: "HALT",
	3: "META",
}

var kindValues = map[string]int32{
	"TX":    0,
	"LEVEL": 1,
	"HALT":  2,
	"META":  3,
}

func init() {
	proto.RegisterEnum("rtfm.telemetry.v1.Kind", kindNames, kindValues)
}

func (k Kind) String() string {
	return proto.EnumName(kindNames, int32(k))
}

// Event is a single observation of an output.
type Event struct {
	Device string `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	Source string `protobuf:"bytes,2,opt,name=source,proto3" json:"source,omitempty"`
	Seq    uint64 `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
	// Time in unix nanoseconds.
	Time  int64  `protobuf:"varint,4,opt,name=time,proto3" json:"time,omitempty"`
	Kind  Kind   `protobuf:"varint,5,opt,name=kind,proto3,enum=rtfm.telemetry.v1.Kind" json:"kind,omitempty"`
	Data  []byte `protobuf:"bytes,6,opt,name=data,proto3" json:"data,omitempty"`
	Level bool   `protobuf:"varint,7,opt,name=level,proto3" json:"level,omitempty"`
	// Dropped counts events lost before this one.
	Dropped uint64 `protobuf:"varint,8,opt,name=dropped,proto3" json:"dropped,omitempty"`
}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Event) ProtoMessage() {}

// Timestamp gets Time as time.Time.
func (m *Event) Timestamp() time.Time {
	return time.Unix(0, m.Time)
}

// Encode serializes the event.
func (m *Event) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// Decode parses an encoded event.
func Decode(payload []byte) (*Event, error) {
	ev := &Event{}
	if err := proto.Unmarshal(payload, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Format renders the event in a single line for display.
func Format(ev *Event) string {
	var detail string
	switch ev.Kind {
	case KindTx:
		detail = strconv.Quote(string(ev.Data))
	case KindLevel:
		if ev.Level {
			detail = "HIGH"
		} else {
			detail = "LOW"
		}
	default:
		detail = string(ev.Data)
	}
	s := fmt.Sprintf("#%d %s %s %s", ev.Seq, ev.Source, ev.Kind, detail)
	if ev.Dropped > 0 {
		s += fmt.Sprintf(" (%d dropped)", ev.Dropped)
	}
	return s
}
