package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"edgewatch/pkg/raspberry"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Modes of the observer, exactly one is active.
const (
	ModeLogger    = "logger"
	ModeDeviation = "deviation"
)

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	// Backend is the gpio backend: gpiod, gpiomem or emulator
	Backend string `yaml:"backend"`
	// Device is the gpio character device used by the gpiod backend
	Device string `yaml:"device"`
	// Lines are the gpio numbers to monitor, fixed for the lifetime of the process
	Lines      []int           `yaml:"lines"`
	BiasString string          `yaml:"bias"`
	Bias       raspberry.Bias  `yaml:"-"`
	Mode       string          `yaml:"mode"`
	Clock      string          `yaml:"clock"`
	Output     OutputConfig    `yaml:"output"`
	Emulator   EmulatorConfig  `yaml:"emulator"`
	Flag       FlagConfig      `yaml:"-"`
	Debug      DebugConfig     `yaml:"debug"`
	Webserver  WebserverConfig `yaml:"webserver"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	ConfigFile string
	Debug      string
	Mode       string
}

// OutputConfig defines the line oriented sink of the observer
type OutputConfig struct {
	File       io.WriteCloser `yaml:"-"`
	FileString string         `yaml:"file"`
}

// EmulatorConfig defines the edge period of the emulator backend
type EmulatorConfig struct {
	Period    time.Duration `yaml:"-"`
	PeriodInt int           `yaml:"period"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	ClientID   string `yaml:"clientid"`
	Topic      string `yaml:"topic"`
	Queue      int    `yaml:"queue"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// NewConfig returns the defaults: the seven input lines of the edge detector board, pulled down.
func NewConfig() *Config {
	return &Config{
		Backend:    "gpiod",
		Device:     "gpiochip0",
		Lines:      []int{18, 19, 21, 22, 23, 32, 33},
		BiasString: "pulldown",
		Mode:       ModeLogger,
		Clock:      "monotonic",
		Output:     OutputConfig{FileString: "stdout"},
		Emulator:   EmulatorConfig{PeriodInt: 500},
		Flag:       FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"stats":   true,
			},
		},
		MQTT: MQTTConfig{
			ClientID: "edgewatch",
			Topic:    "edgewatch/phase",
			Queue:    64,
		},
	}
}

// LoadConfig reads the config file, applies the command line flags and validates the result.
// An empty config file name keeps the defaults.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if c.Flag.Mode != "" {
		c.Mode = c.Flag.Mode
	}

	if err := c.Validate(); err != nil {
		return err
	}

	c.Emulator.Period = time.Duration(c.Emulator.PeriodInt) * time.Millisecond

	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	var err error
	if c.Output.File, err = openFile(c.Output.FileString); err != nil {
		return fmt.Errorf("unable to open output file %q: %w", c.Output.FileString, err)
	}

	return nil
}

// Validate checks the configuration before any line is watched.
func (c *Config) Validate() (err error) {
	if c.Bias, err = raspberry.ParseBias(c.BiasString); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}

	if len(c.Lines) == 0 {
		return fmt.Errorf("no lines to monitor: %w", ErrInvalidConfig)
	}

	var mask uint64
	for _, l := range c.Lines {
		if l < 0 || l >= raspberry.MaxLines {
			return fmt.Errorf("line %d out of range 0..%d: %w", l, raspberry.MaxLines-1, ErrInvalidConfig)
		}
		if mask&(1<<uint(l)) != 0 {
			return fmt.Errorf("line %d configured twice: %w", l, ErrInvalidConfig)
		}
		mask |= 1 << uint(l)
	}

	switch c.Backend {
	case "gpiod", "gpiomem", "emulator":
	default:
		return fmt.Errorf("unknown backend %q: %w", c.Backend, ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeLogger, ModeDeviation:
	default:
		return fmt.Errorf("unknown mode %q: %w", c.Mode, ErrInvalidConfig)
	}

	switch c.Clock {
	case "system", "monotonic":
	default:
		return fmt.Errorf("unknown clock %q: %w", c.Clock, ErrInvalidConfig)
	}

	if c.MQTT.Queue < 0 {
		return fmt.Errorf("mqtt queue must not be negative: %w", ErrInvalidConfig)
	}

	if c.Backend == "emulator" && c.Emulator.PeriodInt <= 0 {
		return fmt.Errorf("emulator period must be positive: %w", ErrInvalidConfig)
	}

	return nil
}

// LineMask returns the monitored lines as bit mask, bit n set for gpio n.
func (c *Config) LineMask() uint64 {
	var mask uint64
	for _, l := range c.Lines {
		if l >= 0 && l < raspberry.MaxLines {
			mask |= 1 << uint(l)
		}
	}
	return mask
}

// Close closes the output and debug files unless they are stdout or stderr.
func (c *Config) Close() error {
	for _, f := range []io.WriteCloser{c.Output.File, c.Debug.File} {
		if f == nil || f == os.Stdout || f == os.Stderr {
			continue
		}
		_ = f.Close()
	}
	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("unknown debug flag %q: %w", c.Debug.FlagString, ErrInvalidConfig)
	}

	c.Debug.File, err = openFile(c.Debug.FileString)
	return
}

func openFile(name string) (io.WriteCloser, error) {
	switch name {
	case "stderr":
		return os.Stderr, nil
	case "stdout", "":
		return os.Stdout, nil
	default:
		return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	}
}
