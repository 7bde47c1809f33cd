// Package sequencer pipelines ordered batches of HCI commands per resource.
//
// A batch runs one command at a time. Every RunSequence or CancelSequence
// bumps the epoch of the resource; completions carrying an older epoch are
// absorbed and never reach the caller.
package sequencer

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/hci"
)

// MaxCommands is the maximum number of commands in a batch.
const MaxCommands = 16

var (
	// ErrNoCommands indicates an empty batch.
	ErrNoCommands = errors.New("no commands")
	// ErrTooManyCommands indicates the batch exceeds MaxCommands.
	ErrTooManyCommands = errors.New("too many commands")
	// ErrCommandFailed is reported when the transport fails without a reason.
	ErrCommandFailed = errors.New("command failed")
)

// Resource identifies an independent command pipeline.
type Resource int

// PrepareFunc materializes the wire parameters of a command right before
// it is sent.
type PrepareFunc func() ([]byte, error)

// Command describes one command in a batch.
type Command struct {
	Opcode  hci.Opcode
	Prepare PrepareFunc
}

// Fixed returns a PrepareFunc with constant parameters.
func Fixed(params ...byte) PrepareFunc {
	return func() ([]byte, error) {
		return params, nil
	}
}

// Completion reports the completion of a command in a batch.
type Completion struct {
	Resource Resource
	// Index of the completed command.
	Index int
	// Last is true when the batch is finished, either all commands
	// completed or a command failed.
	Last  bool
	Event *hci.Event
	Err   error
}

// Callback receives completions.
type Callback func(Completion)

type sequence struct {
	commands    []Command
	cursor      int
	epoch       uint32
	lastOnly    bool
	callback    Callback
	outstanding bool
}

// Sequencer runs command batches against a transport.
type Sequencer struct {
	Transport hci.Transport

	lock      sync.Mutex
	sequences map[Resource]*sequence
}

// New creates a Sequencer.
func New(t hci.Transport) *Sequencer {
	return &Sequencer{Transport: t, sequences: make(map[Resource]*sequence)}
}

func (s *Sequencer) sequenceLocked(res Resource) *sequence {
	seq := s.sequences[res]
	if seq == nil {
		seq = &sequence{}
		s.sequences[res] = seq
	}
	return seq
}

// RunSequence replaces the batch of the resource and starts it. When a
// command of the previous batch is still outstanding, the new batch starts
// once that command completes.
func (s *Sequencer) RunSequence(res Resource, cmds []Command, lastOnly bool, cb Callback) error {
	if len(cmds) == 0 {
		return ErrNoCommands
	}
	if len(cmds) > MaxCommands {
		return ErrTooManyCommands
	}
	s.lock.Lock()
	seq := s.sequenceLocked(res)
	seq.commands = append([]Command(nil), cmds...)
	seq.cursor = 0
	seq.epoch++
	seq.lastOnly = lastOnly
	seq.callback = cb
	if seq.outstanding {
		glog.V(3).Infof("sequencer: resource %d deferred until outstanding command completes", res)
		s.lock.Unlock()
		return nil
	}
	s.pumpLocked(res, seq, nil)
	return nil
}

// CancelSequence drops the batch of the resource. The outstanding command,
// if any, still completes on the transport but is not reported.
func (s *Sequencer) CancelSequence(res Resource) {
	s.lock.Lock()
	defer s.lock.Unlock()
	seq := s.sequenceLocked(res)
	seq.epoch++
	seq.cursor = 0
	seq.commands = nil
	seq.callback = nil
}

// Busy indicates a batch of the resource is not finished.
func (s *Sequencer) Busy(res Resource) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if seq := s.sequences[res]; seq != nil {
		return seq.outstanding || seq.cursor < len(seq.commands)
	}
	return false
}

func (s *Sequencer) complete(res Resource, epoch uint32, r hci.Reply) {
	s.lock.Lock()
	seq := s.sequences[res]
	seq.outstanding = false
	if epoch != seq.epoch {
		glog.V(3).Infof("sequencer: resource %d stale completion absorbed", res)
		s.pumpLocked(res, seq, nil)
		return
	}
	s.pumpLocked(res, seq, &r)
}

// pumpLocked keeps the batch moving: it records the completion r (if any)
// of the command at cursor, then dispatches the next command until one is
// pending or the batch ends. It is entered with the lock held and
// releases it.
func (s *Sequencer) pumpLocked(res Resource, seq *sequence, r *hci.Reply) {
	for {
		if r == nil {
			if seq.cursor >= len(seq.commands) {
				s.lock.Unlock()
				return
			}
			reply, epoch := hci.Reply{}, seq.epoch
			cmd := seq.commands[seq.cursor]
			var params []byte
			var err error
			if cmd.Prepare != nil {
				params, err = cmd.Prepare()
			}
			if err != nil {
				reply = hci.FailedReply(err)
			} else {
				reply = s.Transport.SendCommand(cmd.Opcode, params, func(r hci.Reply) {
					s.complete(res, epoch, r)
				})
			}
			if reply.Status == hci.StatusPending {
				seq.outstanding = true
				s.lock.Unlock()
				return
			}
			r = &reply
			continue
		}

		c := Completion{Resource: res, Index: seq.cursor, Event: r.Event, Err: r.Failure()}
		if r.Status != hci.StatusSuccess && r.Err == nil {
			c.Err = ErrCommandFailed
		}
		r = nil
		seq.cursor++
		c.Last = c.Err != nil || seq.cursor >= len(seq.commands)
		if c.Err != nil {
			glog.Warningf("sequencer: resource %d command %d failed: %v", res, c.Index, c.Err)
			seq.cursor, seq.commands = 0, nil
		}
		cb := seq.callback
		if c.Last {
			seq.callback = nil
		} else if seq.lastOnly {
			continue
		}
		epoch := seq.epoch
		s.lock.Unlock()
		if cb != nil {
			cb(c)
		}
		if c.Last {
			return
		}
		s.lock.Lock()
		if seq.epoch != epoch || seq.outstanding {
			// the callback started or cancelled a batch.
			s.lock.Unlock()
			return
		}
	}
}
