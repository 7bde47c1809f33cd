// Package admission multiplexes on/off requests of logical clients onto
// the bring-up machine of one transport.
//
// The transport is powered while at least one client holds it on. Only
// the first On and the last Off drive the machine; requests arriving
// while a transition is active are served in FIFO order once it
// completes.
package admission

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/bringup"
	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
)

// Completion reports the completion of a request.
type Completion struct {
	Chip   radio.ChipID
	Client radio.StackID
	Op     radio.Op
	Result radio.Result
	// Async is set when the request returned Pending first.
	Async bool
	// Transitioned is set when the request drove the machine, i.e. the
	// transport was brought up or torn down for it.
	Transitioned bool
	RefCount     int
}

// CompletionFunc receives the asynchronous completions of a client.
type CompletionFunc func(Completion)

// Observer receives every completion, synchronous or not.
type Observer interface {
	RequestCompleted(Completion)
}

type request struct {
	client radio.StackID
	op     radio.Op
}

// Coordinator is the single owner of a bring-up machine. Its lock
// serializes requests with the asynchronous inputs of the machine.
type Coordinator struct {
	Chip radio.ChipID

	machine  *bringup.Machine
	observer Observer

	lock      sync.Mutex
	callbacks [radio.NumStacks]CompletionFunc
	on        [radio.NumStacks]bool
	refCount  int
	active    *request
	queue     []request
	draining  bool
}

// New creates a Coordinator taking over the input delivery of m.
func New(chip radio.ChipID, m *bringup.Machine) *Coordinator {
	c := &Coordinator{Chip: chip, machine: m}
	m.Post = c.post
	return c
}

// SetObserver installs the Observer, must be called before any request.
func (c *Coordinator) SetObserver(o Observer) {
	c.observer = o
}

// Register installs the completion callback of a client.
func (c *Coordinator) Register(client radio.StackID, cb CompletionFunc) error {
	if !client.IsValid() {
		return ErrUnknownClient
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callbacks[client] = cb
	return nil
}

// RefCount returns the number of clients holding the transport on.
func (c *Coordinator) RefCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.refCount
}

// IsOn indicates the client holds the transport on.
func (c *Coordinator) IsOn(client radio.StackID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return client.IsValid() && c.on[client]
}

// Identity returns the chip identity read during the last bring-up.
func (c *Coordinator) Identity() (hci.ChipIdentity, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.machine.Identity()
}

// Busy indicates a transition is active or requests are queued.
func (c *Coordinator) Busy() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.active != nil || len(c.queue) > 0
}

// RequestOn asks for the transport on behalf of client.
func (c *Coordinator) RequestOn(client radio.StackID) (radio.Result, error) {
	return c.request(request{client: client, op: radio.OpOn})
}

// RequestOff releases the transport on behalf of client.
func (c *Coordinator) RequestOff(client radio.StackID) (radio.Result, error) {
	return c.request(request{client: client, op: radio.OpOff})
}

// RequestAbort cancels the On request of client. A queued request is
// dropped immediately and never completes. An active one completes later
// with Aborted.
func (c *Coordinator) RequestAbort(client radio.StackID) (radio.Result, error) {
	if !client.IsValid() {
		return radio.Failed, ErrUnknownClient
	}
	c.lock.Lock()
	for n, req := range c.queue {
		if req.client == client && req.op == radio.OpOn {
			c.queue = append(c.queue[:n], c.queue[n+1:]...)
			comp := c.completionLocked(request{client: client, op: radio.OpAbort}, radio.Success, false, false)
			c.lock.Unlock()
			glog.Infof("admission %s: queued on of %s dropped", c.Chip, client)
			c.observe(comp)
			return radio.Success, nil
		}
	}
	if c.active == nil || c.active.client != client || c.active.op != radio.OpOn {
		c.lock.Unlock()
		return radio.Failed, ErrNothingToAbort
	}
	if c.machine.Aborting() {
		c.lock.Unlock()
		return radio.Pending, nil
	}
	glog.Infof("admission %s: aborting on of %s", c.Chip, client)
	result, err := c.machine.Abort()
	if err != nil {
		c.lock.Unlock()
		return radio.Failed, ErrNothingToAbort
	}
	if result == radio.Pending {
		c.lock.Unlock()
		return radio.Pending, nil
	}
	c.transitionDoneLocked(result)
	return radio.Success, nil
}

func (c *Coordinator) request(req request) (radio.Result, error) {
	if !req.client.IsValid() {
		return radio.Failed, ErrUnknownClient
	}
	c.lock.Lock()
	if c.active != nil && *c.active == req {
		c.lock.Unlock()
		return radio.Failed, ErrRequestPending
	}
	for _, queued := range c.queue {
		if queued.client == req.client {
			c.lock.Unlock()
			return radio.Failed, ErrRequestPending
		}
	}
	if c.active != nil || c.draining || len(c.queue) > 0 {
		c.queue = append(c.queue, req)
		glog.V(1).Infof("admission %s: %s %s queued at %d", c.Chip, req.client, req.op, len(c.queue))
		c.lock.Unlock()
		return radio.Pending, nil
	}
	result, transitioned := c.serveLocked(req)
	if result == radio.Pending {
		c.lock.Unlock()
		return result, nil
	}
	comp := c.completionLocked(req, result, false, transitioned)
	c.lock.Unlock()
	c.observe(comp)
	return result, nil
}

// serveLocked applies the request, forwarding it to the machine when the
// reference count crosses a boundary. It reports whether the machine
// completed a transition synchronously.
func (c *Coordinator) serveLocked(req request) (radio.Result, bool) {
	var result radio.Result
	var err error
	switch req.op {
	case radio.OpOn:
		if c.on[req.client] {
			return radio.Success, false
		}
		if c.refCount > 0 {
			c.applyLocked(req, radio.Success)
			return radio.Success, false
		}
		result, err = c.machine.Start()
	case radio.OpOff:
		if !c.on[req.client] {
			return radio.Success, false
		}
		if c.refCount > 1 {
			c.applyLocked(req, radio.Success)
			return radio.Success, false
		}
		result, err = c.machine.Stop()
	default:
		panic(fmt.Sprintf("admission %s: unexpected %s request", c.Chip, req.op))
	}
	if err != nil {
		panic(fmt.Sprintf("admission %s: machine not idle without active request: %v", c.Chip, err))
	}
	if result == radio.Pending {
		c.active = &req
		return result, false
	}
	c.applyLocked(req, result)
	return result, true
}

func (c *Coordinator) applyLocked(req request, result radio.Result) {
	if result != radio.Success {
		return
	}
	switch req.op {
	case radio.OpOn:
		c.on[req.client] = true
		c.refCount++
	case radio.OpOff:
		c.on[req.client] = false
		c.refCount--
	}
	glog.V(1).Infof("admission %s: %s %s, ref count %d", c.Chip, req.client, req.op, c.refCount)
}

func (c *Coordinator) completionLocked(req request, result radio.Result, async, transitioned bool) Completion {
	return Completion{
		Chip:         c.Chip,
		Client:       req.client,
		Op:           req.op,
		Result:       result,
		Async:        async,
		Transitioned: transitioned,
		RefCount:     c.refCount,
	}
}

// post receives the asynchronous inputs of the machine.
func (c *Coordinator) post(in bringup.Input) {
	c.lock.Lock()
	result := c.machine.Dispatch(in)
	if result == radio.Pending {
		c.lock.Unlock()
		return
	}
	c.transitionDoneLocked(result)
}

// transitionDoneLocked completes the active request, notifies its client
// and serves the queue. It is entered with the lock held and releases it.
func (c *Coordinator) transitionDoneLocked(result radio.Result) {
	if c.active == nil {
		panic(fmt.Sprintf("admission %s: transition completed without active request", c.Chip))
	}
	req := *c.active
	c.active = nil
	c.applyLocked(req, result)
	comp := c.completionLocked(req, result, true, true)
	c.lock.Unlock()
	glog.Infof("admission %s: %s %s completed: %s", c.Chip, req.client, req.op, result)
	c.notify(comp)
	c.drain()
}

// drain serves queued requests until the queue is empty or one of them
// starts a transition. A single drain loop runs at a time; requests
// arriving meanwhile are appended and served by it.
func (c *Coordinator) drain() {
	c.lock.Lock()
	if c.draining {
		c.lock.Unlock()
		return
	}
	c.draining = true
	for c.active == nil && len(c.queue) > 0 {
		req := c.queue[0]
		c.queue = c.queue[1:]
		result, transitioned := c.serveLocked(req)
		if result == radio.Pending {
			break
		}
		comp := c.completionLocked(req, result, true, transitioned)
		c.lock.Unlock()
		c.notify(comp)
		c.lock.Lock()
	}
	c.draining = false
	c.lock.Unlock()
}

func (c *Coordinator) notify(comp Completion) {
	c.observe(comp)
	c.lock.Lock()
	cb := c.callbacks[comp.Client]
	c.lock.Unlock()
	if cb != nil {
		cb(comp)
	}
}

func (c *Coordinator) observe(comp Completion) {
	if c.observer != nil {
		c.observer.RequestCompleted(comp)
	}
}
