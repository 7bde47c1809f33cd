package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
)

var (
	// ErrBusy indicates a script is already executing.
	ErrBusy = errors.New("script execution in progress")
	// ErrNotFound indicates the script is neither in storage nor in the table.
	ErrNotFound = errors.New("script not found")
)

type procState int

const (
	stateNone procState = iota
	stateProcessNextAction
	stateWaitForCommand
	stateWaitForLastCommand
	stateDone
)

func (s procState) String() string {
	switch s {
	case stateNone:
		return "none"
	case stateProcessNextAction:
		return "process-next-action"
	case stateWaitForCommand:
		return "wait-for-command"
	case stateWaitForLastCommand:
		return "wait-for-last-command"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CompletionFunc receives the result of a suspended execution.
type CompletionFunc func(radio.Result)

type execution struct {
	name      string
	src       io.Closer
	dec       *Decoder
	state     procState
	abort     bool
	suspended bool
	// a command is sent and its WaitForComplete is not consumed yet.
	awaiting bool
	op       hci.Opcode
	commands int
	done     CompletionFunc
}

// Interpreter executes init scripts against a transport, one at a time.
type Interpreter struct {
	Transport hci.Transport
	// Storage is searched first, may be nil.
	Storage fs.FS
	// Table is the fallback when Storage doesn't have the script,
	// Builtin if nil.
	Table *Table
	// Sleep implements Delay actions, time.Sleep if nil.
	Sleep func(time.Duration)

	lock sync.Mutex
	exec *execution
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(t hci.Transport, storage fs.FS) *Interpreter {
	return &Interpreter{Transport: t, Storage: storage}
}

func (in *Interpreter) open(name string) (io.ReadCloser, int, error) {
	if in.Storage != nil {
		info, err := fs.Stat(in.Storage, name)
		if err == nil {
			f, err := in.Storage.Open(name)
			if err != nil {
				return nil, 0, err
			}
			glog.V(2).Infof("script: %s loaded from storage (%d bytes)", name, info.Size())
			return f, int(info.Size()), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, 0, err
		}
	}
	table := in.Table
	if table == nil {
		table = Builtin
	}
	if data, ok := table.Lookup(name); ok {
		glog.V(2).Infof("script: %s loaded from built-in table (%d bytes)", name, len(data))
		return io.NopCloser(bytes.NewReader(data)), len(data), nil
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Execute runs the named script. A script which completes without ever
// waiting on the transport returns its final result and done is never
// invoked. Otherwise Pending is returned and done receives the result.
func (in *Interpreter) Execute(name string, done CompletionFunc) (radio.Result, error) {
	in.lock.Lock()
	if in.exec != nil {
		in.lock.Unlock()
		return radio.Failed, ErrBusy
	}
	src, size, err := in.open(name)
	if err != nil {
		in.lock.Unlock()
		glog.Errorf("script: open %s: %v", name, err)
		return radio.Failed, nil
	}
	x := &execution{name: name, src: src, dec: NewDecoder(src, size), done: done}
	if _, err := x.dec.ReadHeader(); err != nil {
		in.lock.Unlock()
		src.Close()
		glog.Errorf("script: %s: %v", name, err)
		return resultOf(err), nil
	}
	glog.Infof("script: executing %s", name)
	in.exec = x
	x.state = stateProcessNextAction
	result, finished := in.processLocked(x)
	in.lock.Unlock()
	if !finished {
		return radio.Pending, nil
	}
	return result, nil
}

// Abort requests the running execution to stop. A command in flight is
// allowed to complete first. It returns false if nothing is executing.
func (in *Interpreter) Abort() bool {
	in.lock.Lock()
	defer in.lock.Unlock()
	x := in.exec
	if x == nil {
		return false
	}
	x.abort = true
	if x.state == stateWaitForCommand {
		x.state = stateWaitForLastCommand
	}
	glog.V(1).Infof("script: abort requested for %s in %s", x.name, x.state)
	return true
}

// Running indicates a script is executing.
func (in *Interpreter) Running() bool {
	in.lock.Lock()
	defer in.lock.Unlock()
	return in.exec != nil
}

func (in *Interpreter) commandDone(x *execution, r hci.Reply) {
	in.lock.Lock()
	if in.exec != x {
		in.lock.Unlock()
		glog.Warningf("script: stale completion of %s", x.op)
		return
	}
	var result radio.Result
	finished := true
	switch x.state {
	case stateWaitForLastCommand:
		result = in.finishLocked(x, radio.Aborted, nil)
	case stateWaitForCommand:
		if err := r.Failure(); err != nil {
			result = in.finishLocked(x, radio.Failed, err)
			break
		}
		x.awaiting = true
		x.state = stateProcessNextAction
		result, finished = in.processLocked(x)
	default:
		panic(fmt.Sprintf("script: command completion in state %s", x.state))
	}
	in.lock.Unlock()
	if finished && x.done != nil {
		x.done(result)
	}
}

// processLocked consumes actions until a command suspends the execution or
// the script ends. The lock is released while sleeping in Delay actions.
func (in *Interpreter) processLocked(x *execution) (radio.Result, bool) {
	for x.state == stateProcessNextAction {
		if x.abort {
			return in.finishLocked(x, radio.Aborted, nil), true
		}
		if x.dec.Done() {
			if x.awaiting {
				return in.finishLocked(x, radio.InvalidScript,
					formatErr(x.dec.Cursor(), "%s not followed by %s", x.op, ActionWaitForComplete)), true
			}
			return in.finishLocked(x, radio.Success, nil), true
		}
		offset := x.dec.Cursor()
		a, err := x.dec.Next()
		if err != nil {
			return in.finishLocked(x, resultOf(err), err), true
		}
		switch a.Type {
		case ActionSendCommand:
			if x.awaiting {
				return in.finishLocked(x, radio.InvalidScript,
					formatErr(offset, "%s not followed by %s", x.op, ActionWaitForComplete)), true
			}
			cmd, err := hci.ParseCommand(a.Data)
			if err != nil {
				return in.finishLocked(x, radio.InvalidScript, formatErr(offset, "%v", err)), true
			}
			x.op = cmd.Opcode
			x.commands++
			glog.V(3).Infof("script: %s send %s (%d bytes)", x.name, cmd.Opcode, len(cmd.Params))
			r := in.Transport.SendCommand(cmd.Opcode, cmd.Params, func(r hci.Reply) {
				in.commandDone(x, r)
			})
			if r.Status == hci.StatusPending {
				x.state = stateWaitForCommand
				x.suspended = true
				return radio.Pending, false
			}
			if err := r.Failure(); err != nil {
				return in.finishLocked(x, radio.Failed, err), true
			}
			x.awaiting = true
		case ActionWaitForComplete:
			if !x.awaiting {
				return in.finishLocked(x, radio.InvalidScript,
					formatErr(offset, "%s without command", a.Type)), true
			}
			x.awaiting = false
		case ActionDelay:
			ms, ok := DelayDuration(a.Data)
			if !ok {
				return in.finishLocked(x, radio.InvalidScript, formatErr(offset, "short %s action", a.Type)), true
			}
			in.lock.Unlock()
			in.sleep(time.Duration(ms) * time.Millisecond)
			in.lock.Lock()
		case ActionRemark:
		default:
			return in.finishLocked(x, radio.InvalidScript, formatErr(offset, "%s action not allowed", a.Type)), true
		}
	}
	return radio.Pending, false
}

func (in *Interpreter) finishLocked(x *execution, result radio.Result, err error) radio.Result {
	x.state = stateDone
	in.exec = nil
	x.src.Close()
	if err != nil {
		glog.Errorf("script: %s %s: %v", x.name, result, err)
	} else {
		glog.Infof("script: %s %s after %d commands", x.name, result, x.commands)
	}
	if !x.suspended {
		x.done = nil
	}
	return result
}

func (in *Interpreter) sleep(d time.Duration) {
	if in.Sleep != nil {
		in.Sleep(d)
	} else {
		time.Sleep(d)
	}
}

func resultOf(err error) radio.Result {
	var fe *FormatError
	if errors.As(err, &fe) {
		return radio.InvalidScript
	}
	return radio.Failed
}
