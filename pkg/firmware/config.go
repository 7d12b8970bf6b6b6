package firmware

import (
	"flag"
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/rtfm"
)

// Config defines the configurations of the firmware.
type Config struct {
	// BaudRate of both serial ports.
	BaudRate int `yaml:"baud_rate"`
	// HeartbeatHz is the timer frequency driving the heartbeat task.
	HeartbeatHz uint `yaml:"heartbeat_hz"`
	// EchoPriority is the static priority of the echo task.
	EchoPriority uint `yaml:"echo_priority"`
	// HeartbeatPriority is the static priority of the heartbeat task.
	HeartbeatPriority uint `yaml:"heartbeat_priority"`
	// Banner is written to the echo port during init.
	Banner string `yaml:"banner"`
}

// Defaults
const (
	DefaultBaudRate          = 115200
	DefaultHeartbeatHz       = 3
	DefaultEchoPriority      = 2
	DefaultHeartbeatPriority = 1
	DefaultBanner            = "let's start RTFM Example!"

	MaxHeartbeatHz = 1000
)

var defaultConfig = Config{
	BaudRate:          DefaultBaudRate,
	HeartbeatHz:       DefaultHeartbeatHz,
	EchoPriority:      DefaultEchoPriority,
	HeartbeatPriority: DefaultHeartbeatPriority,
	Banner:            DefaultBanner,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate of serial ports.")
	flag.UintVar(&defaultConfig.HeartbeatHz, "heartbeat-hz", defaultConfig.HeartbeatHz, "Heartbeat frequency (Hz).")
	flag.UintVar(&defaultConfig.EchoPriority, "echo-priority", defaultConfig.EchoPriority, "Priority of the echo task.")
	flag.UintVar(&defaultConfig.HeartbeatPriority, "heartbeat-priority", defaultConfig.HeartbeatPriority, "Priority of the heartbeat task.")
	flag.StringVar(&defaultConfig.Banner, "banner", defaultConfig.Banner, "Banner written on start, empty to disable.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overrides the config with values from a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("load %s: %v", fn, err)
	}
	return c.Validate()
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.HeartbeatHz == 0 || c.HeartbeatHz > MaxHeartbeatHz {
		return fmt.Errorf("heartbeat frequency %d out of range 1..%d Hz", c.HeartbeatHz, MaxHeartbeatHz)
	}
	for name, p := range map[string]uint{"echo": c.EchoPriority, "heartbeat": c.HeartbeatPriority} {
		if p > uint(rtfm.PrLvTop) || !rtfm.Priority(p).IsTaskLevel() {
			return fmt.Errorf("invalid %s priority %d", name, p)
		}
	}
	return nil
}

func (c *Config) heartbeatHz() hal.Hz {
	return hal.Hz(c.HeartbeatHz)
}
