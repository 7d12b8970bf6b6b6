package telemetry

import (
	"context"
	"flag"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Config defines where telemetry goes.
type Config struct {
	// MQTTBrokerURL specifies the MQTT broker to publish to, empty to
	// disable. e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr is the listen address of the WebSocket stream, empty
	// to disable.
	WebSocketAddr string
	// Depth of the event sink.
	Depth int
}

var defaultConfig = Config{
	Depth: DefaultSinkDepth,
}

func init() {
	if val := os.Getenv("RTFM_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for telemetry.")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Listen address of telemetry WebSocket.")
	flag.IntVar(&defaultConfig.Depth, "telemetry-depth", defaultConfig.Depth, "Telemetry events buffered before dropping.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// Enabled indicates any telemetry destination is configured.
func (c *Config) Enabled() bool {
	return c.MQTTBrokerURL != "" || c.WebSocketAddr != ""
}

// Pubber publishes to a topic, implemented by Queue.
type Pubber interface {
	Pub(topic string, payload []byte) paho.Token
}

// Publisher drains a Sink into MQTT and a Hub. MQTT topics are
// <device>/<source>.
type Publisher struct {
	Sink  *Sink
	Queue Pubber
	Hub   *Hub
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "telemetry"
}

// Topic gets the MQTT topic of events from source.
func (p *Publisher) Topic(source string) string {
	return p.Sink.Device + "/" + source
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.Sink.Events():
			p.publish(ev)
		}
	}
}

func (p *Publisher) publish(ev *Event) {
	payload, err := ev.Encode()
	if err != nil {
		glog.Errorf("telemetry: encode %s: %v", ev.Source, err)
		return
	}
	if p.Queue != nil {
		p.Queue.Pub(p.Topic(ev.Source), payload)
	}
	if p.Hub != nil {
		p.Hub.Broadcast(payload)
	}
}

// MQTTRunner connects the queue and closes it on exit.
type MQTTRunner struct {
	Queue   *Queue
	Timeout time.Duration
}

// Name implements framework.Named.
func (r *MQTTRunner) Name() string {
	return "mqtt"
}

// Run implements Runnable.
func (r *MQTTRunner) Run(ctx context.Context) error {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	token := r.Queue.Connect()
	if !token.WaitTimeout(timeout) {
		glog.Warningf("MQTT not connected in %v, retrying in background", timeout)
	} else if err := token.Error(); err != nil {
		return err
	}
	defer r.Queue.Close()
	<-ctx.Done()
	return ctx.Err()
}
