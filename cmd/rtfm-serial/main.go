package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/firmware"
	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/serialport"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/telemetry"
)

var (
	configFile string
	port2      string
	port3      string
	listPorts  bool
)

func init() {
	firmware.SetupFlags()
	telemetry.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML file of firmware config.")
	flag.StringVar(&port2, "serial2", port2, "Device of the echo port, e.g. /dev/ttyUSB0.")
	flag.StringVar(&port3, "serial3", port3, "Device of the heartbeat port.")
	flag.BoolVar(&listPorts, "list", listPorts, "List serial devices and exit.")
}

func main() {
	flag.Parse()

	if listPorts {
		names, err := serialport.List()
		if err != nil {
			log.Fatalln(err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	conf := firmware.Default()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			log.Fatalln(err)
		}
	}
	if port2 == "" || port3 == "" {
		fmt.Fprintln(os.Stderr, "both -serial2 and -serial3 are required")
		flag.Usage()
		os.Exit(2)
	}

	serial2, err := serialport.Open(port2, conf.BaudRate)
	if err != nil {
		log.Fatalln(err)
	}
	serial3, err := serialport.Open(port3, conf.BaudRate)
	if err != nil {
		serial2.Close()
		log.Fatalln(err)
	}

	board := sim.NewBoard()
	board.LED.OnChange = func(l hal.Level) {
		glog.V(1).Infof("%s %s", board.LED.Name, l)
	}
	fb := &firmware.Board{LED: board.LED, Timer: board.Timer, Serial2: serial2, Serial3: serial3}

	sink, runnables, err := telemetry.Default().Setup(telemetry.DeviceID("rtfm-serial"))
	if err != nil {
		log.Fatalln(err)
	}
	if sink != nil {
		sink.TapBoard(fb)
	}
	fw, err := conf.NewFirmware(fb)
	if err != nil {
		log.Fatalln(err)
	}

	var app fx.Runnable = fw
	if sink != nil {
		app = sink.Watch(fw)
	}
	runnables = append(runnables,
		app,
		fx.NamedRun("timer", board.Timer),
		fx.NamedRun("serial2", serial2),
		fx.NamedRun("serial3", serial3),
	)
	fx.NewRunner().HandleSignals().RunOrFail(runnables...)
}
