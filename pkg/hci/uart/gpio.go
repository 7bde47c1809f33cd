package uart

import (
	"os"
	"time"
)

// GPIOPower drives the chip enable (nShutdown) line through a sysfs GPIO
// value file, e.g. /sys/class/gpio/gpio42/value.
type GPIOPower struct {
	ValuePath string
	// Settle is the delay after raising the line before the chip accepts commands.
	Settle time.Duration
	// ActiveLow inverts the line.
	ActiveLow bool
}

// SetPower implements h4.PowerSwitch.
func (g *GPIOPower) SetPower(on bool) error {
	level := on != g.ActiveLow
	val := []byte("0")
	if level {
		val[0] = '1'
	}
	if err := os.WriteFile(g.ValuePath, val, 0); err != nil {
		return err
	}
	if on && g.Settle > 0 {
		time.Sleep(g.Settle)
	}
	return nil
}
