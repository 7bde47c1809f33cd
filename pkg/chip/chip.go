// Package chip bundles the lifecycle components of each combo chip.
package chip

import (
	"errors"
	"io/fs"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/admission"
	"github.com/robotalks/radio.go/pkg/bringup"
	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
	"github.com/robotalks/radio.go/pkg/script"
	"github.com/robotalks/radio.go/pkg/sequencer"
)

// Command pipelines used by a chip.
const (
	// ResourceSetup runs the setup batch after every bring-up.
	ResourceSetup sequencer.Resource = iota
	// ResourceUser is the first resource free for clients.
	ResourceUser
)

var (
	// ErrDuplicateChip indicates the ChipID is already in use.
	ErrDuplicateChip = errors.New("duplicate chip")
	// ErrNoTransport indicates Options without a transport.
	ErrNoTransport = errors.New("transport required")
)

// Options configures a Chip.
type Options struct {
	ID        radio.ChipID
	Transport hci.Transport
	// Scripts is searched for init scripts before Table.
	Scripts fs.FS
	Table   *script.Table
	Bringup bringup.Config
	// Setup is run once the transport is up.
	Setup    []sequencer.Command
	Observer admission.Observer
}

// Chip is one combo chip with its transport lifecycle.
type Chip struct {
	ID          radio.ChipID
	Transport   hci.Transport
	Interpreter *script.Interpreter
	Machine     *bringup.Machine
	Coordinator *admission.Coordinator
	Sequencer   *sequencer.Sequencer

	setup    []sequencer.Command
	observer admission.Observer
}

// New creates a Chip.
func New(opts Options) (*Chip, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if len(opts.Setup) > sequencer.MaxCommands {
		return nil, sequencer.ErrTooManyCommands
	}
	c := &Chip{
		ID:        opts.ID,
		Transport: opts.Transport,
		Sequencer: sequencer.New(opts.Transport),
		setup:     opts.Setup,
		observer:  opts.Observer,
	}
	c.Interpreter = script.NewInterpreter(opts.Transport, opts.Scripts)
	c.Interpreter.Table = opts.Table
	c.Machine = bringup.New(string(opts.ID), opts.Transport, c.Interpreter, nil)
	c.Machine.Config = opts.Bringup
	c.Coordinator = admission.New(opts.ID, c.Machine)
	c.Coordinator.SetObserver(c)
	return c, nil
}

// RequestOn turns the transport on for a client.
func (c *Chip) RequestOn(client radio.StackID) (radio.Result, error) {
	return c.Coordinator.RequestOn(client)
}

// RequestOff releases the transport for a client.
func (c *Chip) RequestOff(client radio.StackID) (radio.Result, error) {
	return c.Coordinator.RequestOff(client)
}

// RequestAbort aborts the On request of a client.
func (c *Chip) RequestAbort(client radio.StackID) (radio.Result, error) {
	return c.Coordinator.RequestAbort(client)
}

// RequestCompleted implements admission.Observer.
func (c *Chip) RequestCompleted(comp admission.Completion) {
	if comp.Transitioned && comp.Result == radio.Success {
		switch comp.Op {
		case radio.OpOn:
			c.runSetup()
		case radio.OpOff:
			c.Sequencer.CancelSequence(ResourceSetup)
		}
	}
	if c.observer != nil {
		c.observer.RequestCompleted(comp)
	}
}

func (c *Chip) runSetup() {
	if len(c.setup) == 0 {
		return
	}
	glog.Infof("chip %s: running %d setup commands", c.ID, len(c.setup))
	err := c.Sequencer.RunSequence(ResourceSetup, c.setup, true, func(comp sequencer.Completion) {
		if comp.Err != nil {
			glog.Errorf("chip %s: setup command %d failed: %v", c.ID, comp.Index, comp.Err)
			return
		}
		glog.Infof("chip %s: setup completed", c.ID)
	})
	if err != nil {
		glog.Errorf("chip %s: setup: %v", c.ID, err)
	}
}

// Identity returns the identity of the chip read at the last bring-up.
func (c *Chip) Identity() (hci.ChipIdentity, bool) {
	return c.Coordinator.Identity()
}

// Context is the set of chips keyed by ChipID.
type Context struct {
	lock  sync.RWMutex
	chips map[radio.ChipID]*Chip
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{chips: make(map[radio.ChipID]*Chip)}
}

// Add creates a Chip and adds it to the Context.
func (x *Context) Add(opts Options) (*Chip, error) {
	x.lock.Lock()
	defer x.lock.Unlock()
	if _, exist := x.chips[opts.ID]; exist {
		return nil, ErrDuplicateChip
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	x.chips[opts.ID] = c
	return c, nil
}

// Get finds a Chip.
func (x *Context) Get(id radio.ChipID) (*Chip, bool) {
	x.lock.RLock()
	defer x.lock.RUnlock()
	c, ok := x.chips[id]
	return c, ok
}

// Remove drops a Chip from the Context.
func (x *Context) Remove(id radio.ChipID) {
	x.lock.Lock()
	defer x.lock.Unlock()
	delete(x.chips, id)
}

// Chips returns all chips ordered by ID.
func (x *Context) Chips() []*Chip {
	x.lock.RLock()
	chips := make([]*Chip, 0, len(x.chips))
	for _, c := range x.chips {
		chips = append(chips, c)
	}
	x.lock.RUnlock()
	sort.Slice(chips, func(i, j int) bool { return chips[i].ID < chips[j].ID })
	return chips
}
