// Package bringup walks a chip transport through power-on, version
// identification, init script and HCI configuration, and back off.
//
// The Machine is not safe for concurrent use. Its owner serializes Start,
// Stop, Abort and Dispatch, including the asynchronous inputs the Machine
// hands to the Post function.
package bringup

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
	"github.com/robotalks/radio.go/pkg/script"
)

var (
	// ErrBusy indicates a transition is in progress.
	ErrBusy = errors.New("transition in progress")
	// ErrIdle indicates no transition is in progress.
	ErrIdle = errors.New("no transition in progress")
)

// ScriptRunner executes init scripts.
type ScriptRunner interface {
	Execute(name string, done script.CompletionFunc) (radio.Result, error)
	Abort() bool
}

// Input is an event with its payload.
type Input struct {
	Event  Event
	Reply  hci.Reply
	Result radio.Result
}

// Config tunes the final HCI configuration.
type Config struct {
	// LinkSpeed is the operational UART speed, 0 keeps the initial speed.
	LinkSpeed   uint32
	FlowControl hci.FlowControl
}

// Machine is the bring-up state machine of one transport.
type Machine struct {
	Name      string
	Transport hci.Transport
	Script    ScriptRunner
	Config    Config
	// Post receives asynchronous inputs. The owner passes them to Dispatch.
	Post func(Input)

	state    State
	identity *hci.ChipIdentity
	result   radio.Result
}

// New creates a Machine.
func New(name string, t hci.Transport, s ScriptRunner, post func(Input)) *Machine {
	return &Machine{Name: name, Transport: t, Script: s, Post: post}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Aborting indicates an abort is in progress.
func (m *Machine) Aborting() bool {
	return m.state.IsAborting()
}

// Identity returns the chip identity read during the last bring-up.
func (m *Machine) Identity() (hci.ChipIdentity, bool) {
	if m.identity == nil {
		return hci.ChipIdentity{}, false
	}
	return *m.identity, true
}

// Start brings the transport up. It returns Pending if the transition
// completes asynchronously.
func (m *Machine) Start() (radio.Result, error) {
	if m.state != Idle {
		return radio.Failed, ErrBusy
	}
	m.identity, m.result = nil, radio.Success
	return m.run(Input{Event: EventStart}), nil
}

// Stop powers the transport off.
func (m *Machine) Stop() (radio.Result, error) {
	if m.state != Idle {
		return radio.Failed, ErrBusy
	}
	m.result = radio.Success
	return m.run(Input{Event: EventStop}), nil
}

// Abort stops a bring-up in progress. The operation in flight always
// completes before the transport is powered off and the transition
// completes with Aborted. Abort while already aborting or powering off is
// a no-op returning Pending.
func (m *Machine) Abort() (radio.Result, error) {
	switch {
	case m.state == Idle:
		return radio.Failed, ErrIdle
	case m.state.IsAborting(), m.state == PoweringOff:
		return radio.Pending, nil
	}
	return m.run(Input{Event: EventAbort}), nil
}

// Dispatch feeds an asynchronous input. It returns the final result when
// the transition completes, Pending otherwise.
func (m *Machine) Dispatch(in Input) radio.Result {
	return m.run(in)
}

func (m *Machine) run(in Input) radio.Result {
	for {
		t, ok := transitions[transitionKey{m.state, in.Event}]
		if !ok {
			panic(fmt.Sprintf("bringup %s: no transition for %s in %s", m.Name, in.Event, m.state))
		}
		glog.V(2).Infof("bringup %s: %s -%s-> %s", m.Name, m.state, in.Event, t.next)
		m.state = t.next
		var s step
		if t.handler != nil {
			s = t.handler(m, in)
		}
		if s.pending {
			return radio.Pending
		}
		in = s.input
		if in.Event == EventNone {
			in.Event = t.followup
		}
		if in.Event == EventNone {
			if m.state != Idle {
				panic(fmt.Sprintf("bringup %s: stalled in %s", m.Name, m.state))
			}
			glog.Infof("bringup %s: transition completed: %s", m.Name, m.result)
			return m.result
		}
	}
}

func (m *Machine) post(in Input) {
	m.Post(in)
}

func (m *Machine) await(ok Event) hci.ReplyFunc {
	return func(r hci.Reply) {
		m.post(replyInput(r, ok))
	}
}

func (m *Machine) replied(r hci.Reply, ok Event) step {
	if r.Status == hci.StatusPending {
		return pending()
	}
	return step{input: replyInput(r, ok)}
}

func replyInput(r hci.Reply, ok Event) Input {
	if err := r.Failure(); err != nil {
		glog.Warningf("bringup: %s not reached: %v", ok, err)
		return Input{Event: EventFailed, Reply: r, Result: radio.Failed}
	}
	return Input{Event: ok, Reply: r}
}

func scriptInput(result radio.Result) Input {
	if result == radio.Success {
		return Input{Event: EventScriptDone, Result: result}
	}
	return Input{Event: EventFailed, Result: result}
}
