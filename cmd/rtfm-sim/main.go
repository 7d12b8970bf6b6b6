package main

import (
	"flag"
	"log"
	"os"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/cli/sh"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/firmware"
	fx "github.com/ijager/rtfm-serial-loopback-example/pkg/framework"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/telemetry"
)

//go-build: CGO_ENABLED=0

var (
	configFile  string
	manualTimer bool
	mirror      bool
)

func init() {
	firmware.SetupFlags()
	telemetry.SetupFlags()
	sh.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML file of firmware config.")
	flag.BoolVar(&manualTimer, "manual-timer", manualTimer, "Timer fires only on tick command.")
	flag.BoolVar(&mirror, "mirror", mirror, "Print transmitted data of serial3 as it is written.")
}

func main() {
	flag.Parse()

	conf := firmware.Default()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			log.Fatalln(err)
		}
	}

	board := sim.NewBoard()
	if mirror {
		board.Serial3.Output = os.Stdout
	}
	fb := firmware.SimBoard(board)
	sink, runnables, err := telemetry.Default().Setup(telemetry.DeviceID("rtfm-sim"))
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

	runner := fx.NewRunner()
	if err := runner.Init(fw); err != nil {
		log.Fatalln(err)
	}
	if sink != nil {
		runner.Go(sink.Watch(fw))
	} else {
		runner.Go(fw)
	}
	runner.Go(runnables...)
	if !manualTimer {
		runner.Go(fx.NamedRun("timer", board.Timer))
	}

	sh.New(board, fw).Run(flag.Args()...)
	runner.Stop()
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
