package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/firmware"
	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/console"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/telemetry"
)

var (
	configFile string
	showLED    = true
)

func init() {
	firmware.SetupFlags()
	telemetry.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML file of firmware config.")
	flag.BoolVar(&showLED, "show-led", showLED, "Print LED changes.")
}

func main() {
	flag.Parse()

	conf := firmware.Default()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			log.Fatalln(err)
		}
	}

	term, err := console.Open()
	if err != nil {
		log.Fatalln(err)
	}

	board := sim.NewBoard()
	board.Serial3.Output = term.Writer(console.Cyan)
	if showLED {
		out := term.Writer(console.Yellow)
		board.LED.OnChange = func(l hal.Level) {
			fmt.Fprintf(out, "[%s %s]", board.LED.Name, l)
		}
	}
	fb := &firmware.Board{LED: board.LED, Timer: board.Timer, Serial2: term, Serial3: board.Serial3}

	sink, runnables, err := telemetry.Default().Setup(telemetry.DeviceID("rtfm-console"))
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

	runner := fx.NewRunner().HandleSignals()
	if err := runner.Init(fw); err != nil {
		log.Fatalln(err)
	}
	if sink != nil {
		runner.Go(sink.Watch(fw))
	} else {
		runner.Go(fw)
	}
	runner.Go(runnables...)
	runner.Go(
		fx.NamedRun("timer", board.Timer),
		fx.NamedRun("console", fx.RunFunc(func(ctx context.Context) error {
			err := term.Run(ctx)
			glog.V(2).Infof("console stopped: %v", err)
			runner.Stop()
			return err
		})),
	)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
