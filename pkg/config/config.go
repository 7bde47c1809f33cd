// Package config loads the configuration of the radio daemon.
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/radio.go/pkg/bringup"
	"github.com/robotalks/radio.go/pkg/framework"
	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
	"github.com/robotalks/radio.go/pkg/report"
	"github.com/robotalks/radio.go/pkg/sequencer"
)

// Config is the daemon configuration.
type Config struct {
	// File is the YAML or TOML file to load, selected by extension.
	File string `yaml:"-" toml:"-"`
	// Host identifies this machine in reported events.
	Host string `yaml:"host" toml:"host"`
	// ScriptDir is searched for init scripts.
	ScriptDir string `yaml:"scriptDir" toml:"script_dir"`
	// MQTTBrokerURL enables event publishing,
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt" toml:"mqtt"`
	// Journal enables the rotating event journal when Filename is set.
	Journal report.JournalConfig `yaml:"journal" toml:"journal"`

	Chips []ChipConfig `yaml:"chips" toml:"chips"`
}

// ChipConfig configures one chip.
type ChipConfig struct {
	ID     string `yaml:"id" toml:"id"`
	Device string `yaml:"device" toml:"device"`
	// InitSpeed is the baud rate right after power on.
	InitSpeed int `yaml:"initSpeed" toml:"init_speed"`
	// LinkSpeed is the operational baud rate, 0 keeps InitSpeed.
	LinkSpeed   uint32 `yaml:"linkSpeed" toml:"link_speed"`
	FlowControl string `yaml:"flowControl" toml:"flow_control"`
	// CommandTimeoutMs bounds the wait for each command reply.
	CommandTimeoutMs int         `yaml:"commandTimeoutMs" toml:"command_timeout_ms"`
	Power            PowerConfig `yaml:"power" toml:"power"`
	// AutoOn lists stacks requested on at start.
	AutoOn []string `yaml:"autoOn" toml:"auto_on"`
	// Setup is sent after every bring-up.
	Setup []CommandConfig `yaml:"setup" toml:"setup"`
}

// PowerConfig configures the enable line.
type PowerConfig struct {
	// GPIO is the sysfs value file, empty if the chip is always powered.
	GPIO      string `yaml:"gpio" toml:"gpio"`
	ActiveLow bool   `yaml:"activeLow" toml:"active_low"`
	SettleMs  int    `yaml:"settleMs" toml:"settle_ms"`
}

// CommandConfig is a command with hex encoded parameters.
type CommandConfig struct {
	Opcode uint16 `yaml:"opcode" toml:"opcode"`
	Params string `yaml:"params" toml:"params"`
}

// Default values of a chip.
const (
	DefaultInitSpeed      = 115200
	DefaultCommandTimeout = 2 * time.Second
	DefaultSettle         = 100 * time.Millisecond
)

var defaultConfig = Config{
	ScriptDir: "/lib/firmware/ti-connectivity",
}

func init() {
	if val := os.Getenv("RADIO_CONFIG"); val != "" {
		defaultConfig.File = val
	}
	if val := os.Getenv("RADIO_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RADIO_HOST"); val != "" {
		defaultConfig.Host = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "Config file (.yaml or .toml)")
	flag.StringVar(&defaultConfig.Host, "host", defaultConfig.Host, "Host ID, machine ID if empty")
	flag.StringVar(&defaultConfig.ScriptDir, "scripts", defaultConfig.ScriptDir, "Init script directory")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Journal.Filename, "journal", defaultConfig.Journal.Filename, "Event journal file")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load loads c.File if set and validates the result.
// Keys present in the file override flags and environment.
func (c *Config) Load() error {
	if c.File != "" {
		if err := c.LoadFile(c.File); err != nil {
			return err
		}
	}
	c.applyDefaults()
	return c.Validate()
}

// LoadFile decodes a YAML or TOML file into c.
func (c *Config) LoadFile(fn string) error {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".toml":
		meta, err := toml.DecodeFile(fn, c)
		if err != nil {
			return fmt.Errorf("load config %s: %w", fn, err)
		}
		for _, key := range meta.Undecoded() {
			glog.Warningf("config %s: unknown key %s", fn, key)
		}
		return nil
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(fn)
		if err != nil {
			return fmt.Errorf("load config %s: %w", fn, err)
		}
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return fmt.Errorf("load config %s: %w", fn, err)
		}
		return nil
	default:
		return fmt.Errorf("load config %s: unknown format", fn)
	}
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = MachineID()
	}
	for n := range c.Chips {
		chip := &c.Chips[n]
		if chip.ID == "" {
			chip.ID = fmt.Sprintf("chip%d", n)
		}
		if chip.InitSpeed == 0 {
			chip.InitSpeed = DefaultInitSpeed
		}
		if chip.FlowControl == "" {
			chip.FlowControl = "hardware"
		}
		if chip.CommandTimeoutMs == 0 {
			chip.CommandTimeoutMs = int(DefaultCommandTimeout / time.Millisecond)
		}
		if chip.Power.GPIO != "" && chip.Power.SettleMs == 0 {
			chip.Power.SettleMs = int(DefaultSettle / time.Millisecond)
		}
	}
}

// Validate checks the whole config and reports all problems.
func (c *Config) Validate() error {
	var errs framework.AggregatedError
	if len(c.Chips) == 0 {
		errs.Add(fmt.Errorf("at least one chip is required"))
	}
	if c.MQTTBrokerURL != "" {
		if _, err := url.Parse(c.MQTTBrokerURL); err != nil {
			errs.Add(fmt.Errorf("invalid MQTT broker URL: %w", err))
		}
	}
	ids := make(map[string]bool)
	for n := range c.Chips {
		chip := &c.Chips[n]
		if ids[chip.ID] {
			errs.Add(fmt.Errorf("chip %s: duplicate id", chip.ID))
		}
		ids[chip.ID] = true
		errs.Add(chip.Validate())
	}
	return errs.Aggregate()
}

// Validate checks a chip config.
func (c *ChipConfig) Validate() error {
	var errs framework.AggregatedError
	if c.Device == "" {
		errs.Add(fmt.Errorf("chip %s: device is required", c.ID))
	}
	if c.InitSpeed < 0 {
		errs.Add(fmt.Errorf("chip %s: invalid init speed %d", c.ID, c.InitSpeed))
	}
	if _, err := c.FlowControlMode(); err != nil {
		errs.Add(err)
	}
	if _, err := c.Stacks(); err != nil {
		errs.Add(err)
	}
	if _, err := c.SetupCommands(); err != nil {
		errs.Add(err)
	}
	return errs.Aggregate()
}

// FlowControlMode parses FlowControl.
func (c *ChipConfig) FlowControlMode() (hci.FlowControl, error) {
	switch strings.ToLower(c.FlowControl) {
	case "", "hardware", "rtscts":
		return hci.FlowControlHardware, nil
	case "none":
		return hci.FlowControlNone, nil
	}
	return hci.FlowControlNone, fmt.Errorf("chip %s: unknown flow control %q", c.ID, c.FlowControl)
}

// Stacks parses AutoOn.
func (c *ChipConfig) Stacks() ([]radio.StackID, error) {
	stacks := make([]radio.StackID, 0, len(c.AutoOn))
	for _, name := range c.AutoOn {
		stack, err := radio.ParseStackID(name)
		if err != nil {
			return nil, fmt.Errorf("chip %s: %w", c.ID, err)
		}
		stacks = append(stacks, stack)
	}
	return stacks, nil
}

// SetupCommands parses Setup.
func (c *ChipConfig) SetupCommands() ([]sequencer.Command, error) {
	if len(c.Setup) > sequencer.MaxCommands {
		return nil, fmt.Errorf("chip %s: %d setup commands, at most %d", c.ID, len(c.Setup), sequencer.MaxCommands)
	}
	var cmds []sequencer.Command
	for n, setup := range c.Setup {
		params, err := hex.DecodeString(strings.Join(strings.Fields(setup.Params), ""))
		if err != nil {
			return nil, fmt.Errorf("chip %s: setup command %d: %w", c.ID, n, err)
		}
		if len(params) > hci.MaxParamsLen {
			return nil, fmt.Errorf("chip %s: setup command %d: parameters too long", c.ID, n)
		}
		cmds = append(cmds, sequencer.Command{
			Opcode:  hci.Opcode(setup.Opcode),
			Prepare: sequencer.Fixed(params...),
		})
	}
	return cmds, nil
}

// BringupConfig builds the bring-up parameters.
func (c *ChipConfig) BringupConfig() (bringup.Config, error) {
	flow, err := c.FlowControlMode()
	if err != nil {
		return bringup.Config{}, err
	}
	return bringup.Config{LinkSpeed: c.LinkSpeed, FlowControl: flow}, nil
}

// CommandTimeout returns CommandTimeoutMs as a duration.
func (c *ChipConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		glog.Warningf("machine id: %v", err)
		if id, err = os.Hostname(); err != nil {
			return "localhost"
		}
	}
	return id
}
