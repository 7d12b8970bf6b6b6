package main

import (
	"flag"
	"log"
	"os"
	"strings"

	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/rtfm/"
	device  = "+"
)

func init() {
	if val := os.Getenv("RTFM_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device ID to monitor, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := telemetry.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(device+"/#", telemetry.Handler(func(topic string, payload []byte) {
		ev, err := telemetry.Decode(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		dev := topic
		if n := strings.IndexByte(topic, '/'); n > 0 {
			dev = topic[:n]
		}
		log.Printf("%s: %s", dev, telemetry.Format(ev))
	}))

	fx.NewRunner().HandleSignals().RunOrFail(&telemetry.MQTTRunner{Queue: q})
}
