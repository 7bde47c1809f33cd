// Package daemon runs the transport lifecycle of the configured chips.
package daemon

import (
	"context"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/chip"
	"github.com/robotalks/radio.go/pkg/config"
	"github.com/robotalks/radio.go/pkg/framework"
	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/hci/h4"
	"github.com/robotalks/radio.go/pkg/hci/uart"
	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
	"github.com/robotalks/radio.go/pkg/radio"
	"github.com/robotalks/radio.go/pkg/report"
	"github.com/robotalks/radio.go/pkg/report/mqtt"
	"github.com/robotalks/radio.go/pkg/script"
)

// OpenFunc opens the serial device of a chip.
type OpenFunc func(conf *config.ChipConfig) (io.ReadWriteCloser, error)

// OpenUART is the default OpenFunc.
func OpenUART(conf *config.ChipConfig) (io.ReadWriteCloser, error) {
	return uart.Open(conf.Device, conf.InitSpeed, 100*time.Millisecond)
}

// Daemon owns the chips and the event sinks.
type Daemon struct {
	Config   *config.Config
	Chips    *chip.Context
	Mux      *report.Mux
	Reporter *report.Reporter
	// ShutdownTimeout bounds the wait for transports to turn off.
	ShutdownTimeout time.Duration

	units   []*unit
	journal *report.Journal
	mqtt    *mqtt.Reporter
}

type unit struct {
	chip   *chip.Chip
	port   io.ReadWriteCloser
	link   *h4.Link
	stacks []radio.StackID
}

// New creates a Daemon from a validated config.
func New(conf *config.Config, open OpenFunc) (*Daemon, error) {
	if open == nil {
		open = OpenUART
	}
	d := &Daemon{
		Config:          conf,
		Chips:           chip.NewContext(),
		Mux:             (&report.Mux{}).Add(&report.LogSink{Verbosity: 1}),
		ShutdownTimeout: 5 * time.Second,
	}
	d.Reporter = &report.Reporter{
		Host:     conf.Host,
		Sink:     d.Mux,
		Identity: d.identity,
	}
	if conf.Journal.Filename != "" {
		d.journal = report.OpenJournal(conf.Journal)
		d.Mux.Add(d.journal)
	}
	if conf.MQTTBrokerURL != "" {
		info := pb.HostInfo{Host: conf.Host}
		for _, c := range conf.Chips {
			info.Chips = append(info.Chips, c.ID)
		}
		pub, err := mqtt.NewReporter(conf.MQTTBrokerURL, info)
		if err != nil {
			d.close()
			return nil, err
		}
		d.mqtt = pub
		d.Mux.Add(pub)
	}

	scripts := os.DirFS(conf.ScriptDir)
	for n := range conf.Chips {
		if err := d.addChip(&conf.Chips[n], open, scripts); err != nil {
			d.close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Daemon) addChip(conf *config.ChipConfig, open OpenFunc, scripts fs.FS) error {
	bringupConf, err := conf.BringupConfig()
	if err != nil {
		return err
	}
	setup, err := conf.SetupCommands()
	if err != nil {
		return err
	}
	stacks, err := conf.Stacks()
	if err != nil {
		return err
	}
	port, err := open(conf)
	if err != nil {
		return err
	}
	link := h4.NewLink(port)
	link.InitSpeed = conf.InitSpeed
	link.FlowControl = bringupConf.FlowControl
	link.Timeout = conf.CommandTimeout()
	_, link.ReadTimeout = port.(*uart.Port)
	if conf.Power.GPIO != "" {
		link.Power = &uart.GPIOPower{
			ValuePath: conf.Power.GPIO,
			ActiveLow: conf.Power.ActiveLow,
			Settle:    time.Duration(conf.Power.SettleMs) * time.Millisecond,
		}
	}
	c, err := d.Chips.Add(chip.Options{
		ID:        radio.ChipID(conf.ID),
		Transport: link,
		Scripts:   scripts,
		Table:     script.Builtin,
		Bringup:   bringupConf,
		Setup:     setup,
		Observer:  d.Reporter,
	})
	if err != nil {
		port.Close()
		return err
	}
	d.units = append(d.units, &unit{chip: c, port: port, link: link, stacks: stacks})
	return nil
}

func (d *Daemon) identity(id radio.ChipID) (hci.ChipIdentity, bool) {
	if c, ok := d.Chips.Get(id); ok {
		return c.Identity()
	}
	return hci.ChipIdentity{}, false
}

// Run implements framework.Runnable.
// Links keep running after ctx is done until the transports are off.
func (d *Daemon) Run(ctx context.Context) error {
	linkCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := framework.NewRunnerWith(linkCtx)
	for _, u := range d.units {
		runner.Go(framework.NamedRun("link:"+string(u.chip.ID), u.link))
		runner.Go(framework.NamedRun("events:"+string(u.chip.ID), &eventLogger{chip: u.chip.ID, link: u.link}))
	}
	if d.mqtt != nil {
		runner.Go(framework.NamedRun("mqtt", d.mqtt))
	}

	d.turnOn()
	<-ctx.Done()
	d.turnOff()

	cancel()
	err := runner.Wait()
	d.close()
	return err
}

func (d *Daemon) turnOn() {
	for _, u := range d.units {
		for _, stack := range u.stacks {
			result, err := u.chip.RequestOn(stack)
			if err != nil {
				glog.Errorf("chip %s: %s on: %v", u.chip.ID, stack, err)
				continue
			}
			glog.V(1).Infof("chip %s: %s on: %s", u.chip.ID, stack, result)
		}
	}
}

func (d *Daemon) turnOff() {
	for _, u := range d.units {
		for _, stack := range u.stacks {
			if _, err := u.chip.RequestOff(stack); err != nil {
				glog.Warningf("chip %s: %s off: %v", u.chip.ID, stack, err)
			}
		}
	}
	deadline := time.Now().Add(d.ShutdownTimeout)
	for _, u := range d.units {
		for u.chip.Coordinator.Busy() {
			if time.Now().After(deadline) {
				glog.Errorf("chip %s: transport still busy at shutdown", u.chip.ID)
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (d *Daemon) close() {
	for _, u := range d.units {
		if err := u.port.Close(); err != nil {
			glog.Warningf("chip %s: close: %v", u.chip.ID, err)
		}
	}
	if d.journal != nil {
		d.journal.Close()
	}
}

type eventLogger struct {
	chip radio.ChipID
	link *h4.Link
}

func (l *eventLogger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.link.EventChan():
			glog.V(2).Infof("chip %s: event 0x%02x plen=%d", l.chip, byte(ev.Code), len(ev.Params))
		}
	}
}
