package sh

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/google/shlex"

	"github.com/ijager/rtfm-serial-loopback-example/pkg/firmware"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal"
	"github.com/ijager/rtfm-serial-loopback-example/pkg/hal/sim"
)

// Shell provides ishell backed interactive shell driving a simulated
// board.
type Shell struct {
	Interactive bool
	Timeout     time.Duration

	Shell    *ishell.Shell
	Board    *sim.Board
	Firmware *firmware.Firmware
}

const (
	shellKey = "$shell"
	prompt   = "rtfm > "
)

var (
	// flags

	evalOnly   bool
	scriptFile string

	// commands
	commands = []*ishell.Cmd{
		&RxCmd,
		&FaultCmd,
		&TickCmd,
		&TxCmd,
		&LedCmd,
		&StatusCmd,
	}
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&scriptFile, "script", scriptFile, "Run commands from file before the shell starts.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(board *sim.Board, fw *firmware.Firmware) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Timeout:     time.Second,

		Shell:    ishell.New(),
		Board:    board,
		Firmware: fw,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeRunning wraps command func requires the firmware not halted.
func MustBeRunning(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if err := ShellFrom(c).Firmware.App.Fault(); err != nil {
			c.Err(fmt.Errorf("halted: %v", err))
			return
		}
		fn(c)
	}
}

// ParseBytes converts command arguments into bytes. An argument is
// either hex with 0x prefix, a Go quoted string, or literal text.
func ParseBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X"):
			b, err := hex.DecodeString(arg[2:])
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q: %v", arg, err)
			}
			data = append(data, b...)
		case strings.HasPrefix(arg, `"`):
			str, err := strconv.Unquote(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid string %s: %v", arg, err)
			}
			data = append(data, str...)
		default:
			data = append(data, arg...)
		}
	}
	return data, nil
}

// ParseCount parses the optional repeat count argument.
func ParseCount(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

// WaitReceived waits until the echo task consumed the received data.
func (s *Shell) WaitReceived() error {
	deadline := time.Now().Add(s.Timeout)
	for s.Board.Serial2.Asserted() || s.Firmware.App.IsPending(firmware.IRQUSART2) {
		if err := s.Firmware.App.Fault(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// RunScript runs commands from a file, one per line. Lines are split
// like a shell, "#" starts a comment.
func (s *Shell) RunScript(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			return fmt.Errorf("%s:%d: %v", fn, lineNo, err)
		}
		if len(args) == 0 {
			continue
		}
		if err := s.Shell.Process(args...); err != nil {
			return fmt.Errorf("%s:%d: %v", fn, lineNo, err)
		}
	}
	return scanner.Err()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if scriptFile != "" {
		if err := s.RunScript(scriptFile); err != nil {
			log.Fatalln(err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	if scriptFile == "" {
		log.Fatalln("command expected")
	}
}

func printTransmitted(c *ishell.Context, name string, u *sim.UART) {
	data := u.Transmitted()
	c.Printf("%s: %d bytes\n", name, len(data))
	if len(data) > 0 {
		c.Println(strconv.Quote(string(data)))
	}
}

var (
	// RxCmd injects received bytes on serial2.
	RxCmd = ishell.Cmd{
		Name:    "rx",
		Aliases: []string{"send", "s"},
		Help:    "DATA... (0x4142, \"text\\n\" or text)",
		Func: MustBeRunning(func(c *ishell.Context) {
			data, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			s.Board.Serial2.Inject(data...)
			if err := s.WaitReceived(); err != nil {
				c.Err(err)
			}
		}),
	}

	// FaultCmd injects a receive fault on serial2.
	FaultCmd = ishell.Cmd{
		Name: "fault",
		Help: "Framing|Noise|Overrun|Parity",
		Func: MustBeRunning(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("fault name expected"))
				return
			}
			f, err := hal.ParseRxFault(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			s.Board.Serial2.InjectFault(f)
			if err := s.WaitReceived(); err != nil {
				c.Err(err)
			}
		}),
	}

	// TickCmd fires timer updates.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[COUNT]",
		Func: MustBeRunning(func(c *ishell.Context) {
			n, err := ParseCount(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			for i := 0; i < n; i++ {
				if !s.Board.Timer.FireAndWait(s.Timeout) {
					c.Err(fmt.Errorf("tick %d not acknowledged", i+1))
					return
				}
			}
		}),
	}

	// TxCmd prints transmitted data.
	TxCmd = ishell.Cmd{
		Name: "tx",
		Help: "[2|3]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			port := ""
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			switch port {
			case "":
				printTransmitted(c, "serial2", s.Board.Serial2)
				printTransmitted(c, "serial3", s.Board.Serial3)
			case "2":
				printTransmitted(c, "serial2", s.Board.Serial2)
			case "3":
				printTransmitted(c, "serial3", s.Board.Serial3)
			default:
				c.Err(fmt.Errorf("unknown port %q", port))
			}
		},
	}

	// LedCmd prints the LED level and its history.
	LedCmd = ishell.Cmd{
		Name: "led",
		Help: "",
		Func: func(c *ishell.Context) {
			led := ShellFrom(c).Board.LED
			levels := led.History()
			items := make([]string, len(levels))
			for n, l := range levels {
				items[n] = l.String()
			}
			c.Printf("%s %s [%s]\n", led.Name, led.Level(), strings.Join(items, " "))
		},
	}

	// StatusCmd prints task counters and fault.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			app := ShellFrom(c).Firmware.App
			for _, st := range app.Stats() {
				c.Printf("%-8s IRQ%-3d %-4s dispatched=%d\n", st.Name, st.IRQ, st.Priority, st.Dispatched)
			}
			if err := app.Fault(); err != nil {
				c.Printf("HALTED: %v\n", err)
				return
			}
			c.Println("running")
		},
	}
)
