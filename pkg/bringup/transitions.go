package bringup

import (
	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/hci"
	"github.com/robotalks/radio.go/pkg/radio"
)

type step struct {
	input   Input
	pending bool
}

func done(ev Event) step {
	return step{input: Input{Event: ev}}
}

func pending() step {
	return step{pending: true}
}

func fail(result radio.Result) step {
	return step{input: Input{Event: EventFailed, Result: result}}
}

type handlerFunc func(*Machine, Input) step

type transition struct {
	handler handlerFunc
	next    State
	// followup is used when the handler completes without an event.
	followup Event
}

type transitionKey struct {
	state State
	event Event
}

var transitions = map[transitionKey]transition{
	{Idle, EventStart}: {handler: (*Machine).powerOn, next: PoweringOn},
	{Idle, EventStop}:  {handler: (*Machine).powerOff, next: PoweringOff},

	{PoweringOn, EventPowerOnDone}: {handler: (*Machine).readVersion, next: ReadingVersion},
	{PoweringOn, EventFailed}:      {handler: (*Machine).failed, next: Idle},
	{PoweringOn, EventAbort}:       {handler: (*Machine).waitInFlight, next: AbortingPowerOn},

	{ReadingVersion, EventVersionRead}: {handler: (*Machine).runScript, next: RunningScript},
	{ReadingVersion, EventFailed}:      {handler: (*Machine).failedPowerOff, next: PoweringOff},
	{ReadingVersion, EventAbort}:       {handler: (*Machine).waitInFlight, next: AbortingReadVersion},

	{RunningScript, EventScriptDone}: {handler: (*Machine).configureFlowControl, next: ConfiguringHci},
	{RunningScript, EventFailed}:     {handler: (*Machine).failedPowerOff, next: PoweringOff},
	{RunningScript, EventAbort}:      {handler: (*Machine).abortScript, next: AbortingScript},

	{ConfiguringHci, EventFlowControlDone}: {handler: (*Machine).setLinkParameters, next: ConfiguringHci, followup: EventConfigDone},
	{ConfiguringHci, EventConfigDone}:      {handler: (*Machine).succeeded, next: Idle},
	{ConfiguringHci, EventFailed}:          {handler: (*Machine).failedPowerOff, next: PoweringOff},
	{ConfiguringHci, EventAbort}:           {handler: (*Machine).waitInFlight, next: AbortingConfigHci},

	{PoweringOff, EventPowerOffDone}: {next: Idle},
	{PoweringOff, EventFailed}:       {handler: (*Machine).powerOffFailed, next: Idle},

	{AbortingPowerOn, EventPowerOnDone}: {handler: (*Machine).abortedPowerOff, next: PoweringOff},
	{AbortingPowerOn, EventFailed}:      {handler: (*Machine).aborted, next: Idle},

	{AbortingReadVersion, EventVersionRead}: {handler: (*Machine).abortedPowerOff, next: PoweringOff},
	{AbortingReadVersion, EventFailed}:      {handler: (*Machine).abortedPowerOff, next: PoweringOff},

	{AbortingScript, EventScriptDone}: {handler: (*Machine).abortedPowerOff, next: PoweringOff},
	{AbortingScript, EventFailed}:     {handler: (*Machine).abortedPowerOff, next: PoweringOff},

	{AbortingConfigHci, EventFlowControlDone}: {handler: (*Machine).abortedPowerOff, next: PoweringOff},
	{AbortingConfigHci, EventConfigDone}:      {handler: (*Machine).abortedPowerOff, next: PoweringOff},
	{AbortingConfigHci, EventFailed}:          {handler: (*Machine).abortedPowerOff, next: PoweringOff},
}

func (m *Machine) powerOn(Input) step {
	glog.Infof("bringup %s: powering on", m.Name)
	return m.replied(m.Transport.PowerOn(m.await(EventPowerOnDone)), EventPowerOnDone)
}

func (m *Machine) readVersion(Input) step {
	r := m.Transport.SendCommand(hci.OpcodeReadLocalVersion, nil, m.await(EventVersionRead))
	return m.replied(r, EventVersionRead)
}

func (m *Machine) runScript(in Input) step {
	if in.Reply.Event == nil {
		glog.Errorf("bringup %s: version reply missing", m.Name)
		return fail(radio.Failed)
	}
	id, err := hci.DecodeLocalVersion(in.Reply.Event)
	if err != nil {
		glog.Errorf("bringup %s: read version: %v", m.Name, err)
		return fail(radio.Failed)
	}
	m.identity = &id
	name := id.ScriptName()
	glog.Infof("bringup %s: chip %s, running %s", m.Name, id, name)
	result, err := m.Script.Execute(name, func(result radio.Result) {
		m.post(scriptInput(result))
	})
	if err != nil {
		glog.Errorf("bringup %s: %s: %v", m.Name, name, err)
		return fail(radio.Failed)
	}
	if result == radio.Pending {
		return pending()
	}
	return step{input: scriptInput(result)}
}

func (m *Machine) configureFlowControl(Input) step {
	return m.replied(m.Transport.ConfigureFlowControl(m.await(EventFlowControlDone)), EventFlowControlDone)
}

func (m *Machine) setLinkParameters(Input) step {
	if m.Config.LinkSpeed == 0 {
		return done(EventNone)
	}
	r := m.Transport.SetLinkParameters(m.Config.LinkSpeed, m.Config.FlowControl, m.await(EventConfigDone))
	return m.replied(r, EventConfigDone)
}

func (m *Machine) succeeded(Input) step {
	m.result = radio.Success
	return done(EventNone)
}

func (m *Machine) failed(in Input) step {
	m.result = in.Result
	return done(EventNone)
}

func (m *Machine) powerOff(Input) step {
	glog.Infof("bringup %s: powering off", m.Name)
	return m.replied(m.Transport.PowerOff(m.await(EventPowerOffDone)), EventPowerOffDone)
}

func (m *Machine) failedPowerOff(in Input) step {
	m.result = in.Result
	glog.Warningf("bringup %s: bring-up %s, powering off", m.Name, in.Result)
	return m.replied(m.Transport.PowerOff(m.await(EventPowerOffDone)), EventPowerOffDone)
}

func (m *Machine) abortedPowerOff(Input) step {
	m.result = radio.Aborted
	glog.Infof("bringup %s: aborted, powering off", m.Name)
	return m.replied(m.Transport.PowerOff(m.await(EventPowerOffDone)), EventPowerOffDone)
}

func (m *Machine) powerOffFailed(in Input) step {
	glog.Errorf("bringup %s: power off failed: %v", m.Name, in.Reply.Failure())
	if m.result == radio.Success {
		m.result = in.Result
	}
	return done(EventNone)
}

func (m *Machine) aborted(Input) step {
	m.result = radio.Aborted
	return done(EventNone)
}

func (m *Machine) waitInFlight(Input) step {
	glog.Infof("bringup %s: abort waits for operation in flight", m.Name)
	return pending()
}

func (m *Machine) abortScript(Input) step {
	if !m.Script.Abort() {
		glog.V(1).Infof("bringup %s: script already finished", m.Name)
	}
	return pending()
}
