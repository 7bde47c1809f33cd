package h4

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/hci"
)

// PowerSwitch controls the chip enable line.
type PowerSwitch interface {
	SetPower(on bool) error
}

// SetPowerFunc is func type of PowerSwitch.
type SetPowerFunc func(on bool) error

// SetPower implements PowerSwitch.
func (f SetPowerFunc) SetPower(on bool) error {
	return f(on)
}

// SpeedSetter is implemented by ports which can change baud rate.
type SpeedSetter interface {
	SetSpeed(baud int) error
}

// FlowController is implemented by ports which can toggle RTS/CTS.
type FlowController interface {
	SetFlowControl(hardware bool) error
}

// Link sends commands and receives events over an H4 byte stream.
// It implements hci.Transport.
type Link struct {
	ReadWriter  io.ReadWriter
	Power       PowerSwitch
	FlowControl hci.FlowControl
	// InitSpeed is the baud rate the chip uses right after power on.
	InitSpeed int
	// Timeout is how long to wait for a command reply.
	Timeout time.Duration
	// ByteTimeout drops partially received packets after the gap.
	ByteTimeout time.Duration
	// ReadTimeout is set to true if ReadWriter already supports timeout with Read.
	ReadTimeout bool

	lock     sync.Mutex
	powered  bool
	speed    int
	cmdsHead *command
	cmdsTail *command
	eventCh  chan *hci.Event

	byteTimer <-chan time.Time
	parser    Parser
}

type command struct {
	op    hci.Opcode
	done  hci.ReplyFunc
	timer *time.Timer
	next  *command
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter:  rw,
		Timeout:     2 * time.Second,
		ByteTimeout: 100 * time.Millisecond,
		eventCh:     make(chan *hci.Event, 16),
	}
}

// EventChan retrieves events which are not replies to commands.
func (l *Link) EventChan() <-chan *hci.Event {
	return l.eventCh
}

// Powered indicates the chip is powered.
func (l *Link) Powered() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.powered
}

// SendCommand implements hci.Transport.
func (l *Link) SendCommand(op hci.Opcode, params []byte, done hci.ReplyFunc) hci.Reply {
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.sendLocked(op, params, done); err != nil {
		return hci.FailedReply(err)
	}
	return hci.PendingReply()
}

func (l *Link) sendLocked(op hci.Opcode, params []byte, done hci.ReplyFunc) error {
	if !l.powered {
		return ErrNotReady
	}
	if len(params) > hci.MaxParamsLen {
		return ErrParamsTooLong
	}
	pkt := (&hci.Command{Opcode: op, Params: params}).Bytes()
	if _, err := l.ReadWriter.Write(pkt); err != nil {
		return err
	}
	glog.V(4).Infof("h4: CMD %s plen=%d", op, len(params))
	cmd := &command{op: op, done: done}
	if l.Timeout > 0 {
		cmd.timer = time.AfterFunc(l.Timeout, func() { l.expire(cmd) })
	}
	if l.cmdsHead == nil {
		l.cmdsHead = cmd
	} else {
		l.cmdsTail.next = cmd
	}
	l.cmdsTail = cmd
	return nil
}

// PowerOn implements hci.Transport.
// The power-on handshake is an HCI_Reset after the enable line is raised.
func (l *Link) PowerOn(done hci.ReplyFunc) hci.Reply {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.InitSpeed > 0 && l.speed != l.InitSpeed {
		if err := l.setSpeedLocked(l.InitSpeed); err != nil {
			return hci.FailedReply(err)
		}
	}
	if l.Power != nil {
		if err := l.Power.SetPower(true); err != nil {
			return hci.FailedReply(err)
		}
	}
	l.powered = true
	l.parser.Reset()
	err := l.sendLocked(hci.OpcodeReset, nil, func(r hci.Reply) {
		if r.Status != hci.StatusSuccess {
			l.lock.Lock()
			l.dropPowerLocked()
			l.lock.Unlock()
		}
		done(r)
	})
	if err != nil {
		l.dropPowerLocked()
		return hci.FailedReply(err)
	}
	glog.V(2).Info("h4: power on, reset sent")
	return hci.PendingReply()
}

// dropPowerLocked lowers the enable line after a failed power on.
func (l *Link) dropPowerLocked() {
	if !l.powered {
		return
	}
	l.powered = false
	if l.Power != nil {
		if err := l.Power.SetPower(false); err != nil {
			glog.Warningf("h4: power off: %v", err)
		}
	}
}

// PowerOff implements hci.Transport.
func (l *Link) PowerOff(done hci.ReplyFunc) hci.Reply {
	l.lock.Lock()
	cmds := l.cmdsHead
	l.cmdsHead, l.cmdsTail = nil, nil
	l.powered = false
	var err error
	if l.Power != nil {
		err = l.Power.SetPower(false)
	}
	l.lock.Unlock()
	for cmd := cmds; cmd != nil; cmd = cmd.next {
		if cmd.timer != nil {
			cmd.timer.Stop()
		}
	}
	if cmds != nil {
		// completions are never delivered from within a call.
		go func() {
			for ; cmds != nil; cmds = cmds.next {
				cmds.done(hci.FailedReply(ErrNotReady))
			}
		}()
	}
	if err != nil {
		return hci.FailedReply(err)
	}
	glog.V(2).Info("h4: power off")
	return hci.Succeeded(nil)
}

// ConfigureFlowControl implements hci.Transport.
func (l *Link) ConfigureFlowControl(done hci.ReplyFunc) hci.Reply {
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.setFlowControlLocked(l.FlowControl); err != nil {
		return hci.FailedReply(err)
	}
	return hci.Succeeded(nil)
}

// SetLinkParameters implements hci.Transport.
func (l *Link) SetLinkParameters(speed uint32, flow hci.FlowControl, done hci.ReplyFunc) hci.Reply {
	l.lock.Lock()
	defer l.lock.Unlock()
	if speed == 0 || int(speed) == l.speed {
		if err := l.setFlowControlLocked(flow); err != nil {
			return hci.FailedReply(err)
		}
		return hci.Succeeded(nil)
	}
	params := make([]byte, 4)
	binary.LittleEndian.PutUint32(params, speed)
	err := l.sendLocked(hci.OpcodeVSUpdateUARTBaudrate, params, func(r hci.Reply) {
		if r.Status == hci.StatusSuccess {
			l.lock.Lock()
			err := l.setSpeedLocked(int(speed))
			if err == nil {
				err = l.setFlowControlLocked(flow)
			}
			l.lock.Unlock()
			if err != nil {
				r = hci.FailedReply(err)
			}
		}
		done(r)
	})
	if err != nil {
		return hci.FailedReply(err)
	}
	return hci.PendingReply()
}

func (l *Link) setSpeedLocked(speed int) error {
	if setter, ok := l.ReadWriter.(SpeedSetter); ok {
		if err := setter.SetSpeed(speed); err != nil {
			return err
		}
		glog.V(2).Infof("h4: speed %d", speed)
	}
	l.speed = speed
	return nil
}

func (l *Link) setFlowControlLocked(flow hci.FlowControl) error {
	if ctl, ok := l.ReadWriter.(FlowController); ok {
		return ctl.SetFlowControl(flow == hci.FlowControlHardware)
	}
	if flow == hci.FlowControlHardware {
		glog.Warningf("h4: port %T can't set hardware flow control, left unchanged", l.ReadWriter)
	}
	return nil
}

func (l *Link) expire(cmd *command) {
	l.lock.Lock()
	var prev *command
	curr := l.cmdsHead
	for ; curr != nil && curr != cmd; curr = curr.next {
		prev = curr
	}
	if curr != nil {
		if prev == nil {
			l.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if l.cmdsTail == curr {
			l.cmdsTail = prev
		}
		curr.next = nil
	}
	l.lock.Unlock()
	if curr != nil {
		glog.Warningf("h4: command %s timeout", cmd.op)
		cmd.done(hci.FailedReply(ErrTimeout))
	}
}

// HandleEvent dispatches a received event.
func (l *Link) HandleEvent(ev *hci.Event) {
	op := ev.Opcode()
	if op == hci.OpcodeNone {
		if ev.Code == hci.EventCodeHardwareError {
			glog.Errorf("h4: hardware error %v", ev.Params)
		}
		if ev.Code == hci.EventCodeCommandComplete || ev.Code == hci.EventCodeCommandStatus {
			// command credits only.
			return
		}
		select {
		case l.eventCh <- ev:
		default:
			glog.Warningf("h4: event 0x%02x dropped", byte(ev.Code))
		}
		return
	}

	l.lock.Lock()
	head := l.cmdsHead
	curr := l.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.op == op {
			if l.cmdsHead = curr.next; l.cmdsHead == nil {
				l.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	if curr == nil {
		head = nil
	}
	l.lock.Unlock()
	if curr == nil {
		glog.V(2).Infof("h4: unsolicited reply for %s", op)
		return
	}
	for ; head != curr; head = head.next {
		if head.timer != nil {
			head.timer.Stop()
		}
		head.done(hci.FailedReply(ErrNoReply))
	}
	if curr.timer != nil {
		curr.timer.Stop()
	}
	if err := ev.Err(); err != nil {
		curr.done(hci.FailedReply(err))
		return
	}
	curr.done(hci.Succeeded(ev))
}

// Run processes received bytes in the background.
func (l *Link) Run(ctx context.Context) error {
	l.parser.Reset()
	if l.ReadTimeout {
		buf := make([]byte, 1)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.byteTimer:
				l.applyParseResult(l.parser.Timeout())
			default:
				n, err := l.ReadWriter.Read(buf)
				if err != nil {
					if !os.IsTimeout(err) {
						return err
					}
					l.applyParseResult(l.parser.Timeout())
				} else if n == 0 {
					l.applyParseResult(l.parser.Timeout())
				} else {
					l.applyParseResult(l.parser.Parse(buf[0]))
				}
			}
		}
	}

	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			l.applyParseResult(l.parser.Parse(b))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-l.byteTimer:
			l.applyParseResult(l.parser.Timeout())
		}
	}
}

func (l *Link) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := l.ReadWriter.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case byteCh <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (l *Link) applyParseResult(pr ParseResult) {
	if pr.Dropped {
		glog.V(3).Info("h4: bytes dropped")
	}
	if pr.Receiving && l.ByteTimeout > 0 {
		l.byteTimer = time.After(l.ByteTimeout)
	} else {
		l.byteTimer = nil
	}
	if pr.Event != nil {
		glog.V(4).Infof("h4: EVT 0x%02x plen=%d", byte(pr.Event.Code), len(pr.Event.Params))
		l.HandleEvent(pr.Event)
	}
}
