package bringup

import "fmt"

// State is the state of the Machine.
type State int

// States.
const (
	Idle State = iota
	PoweringOn
	ReadingVersion
	RunningScript
	ConfiguringHci
	PoweringOff
	AbortingPowerOn
	AbortingReadVersion
	AbortingScript
	AbortingConfigHci
)

var stateNames = map[State]string{
	Idle:                "idle",
	PoweringOn:          "powering-on",
	ReadingVersion:      "reading-version",
	RunningScript:       "running-script",
	ConfiguringHci:      "configuring-hci",
	PoweringOff:         "powering-off",
	AbortingPowerOn:     "aborting-power-on",
	AbortingReadVersion: "aborting-read-version",
	AbortingScript:      "aborting-script",
	AbortingConfigHci:   "aborting-config-hci",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsAborting indicates the state is on an abort path.
func (s State) IsAborting() bool {
	return s >= AbortingPowerOn
}

// Event drives the Machine.
type Event int

// Events.
const (
	EventNone Event = iota
	EventStart
	EventStop
	EventAbort
	EventPowerOnDone
	EventVersionRead
	EventScriptDone
	EventFlowControlDone
	EventConfigDone
	EventPowerOffDone
	// EventFailed carries the failure result in Input.Result.
	EventFailed
)

var eventNames = map[Event]string{
	EventNone:            "none",
	EventStart:           "start",
	EventStop:            "stop",
	EventAbort:           "abort",
	EventPowerOnDone:     "power-on-done",
	EventVersionRead:     "version-read",
	EventScriptDone:      "script-done",
	EventFlowControlDone: "flow-control-done",
	EventConfigDone:      "config-done",
	EventPowerOffDone:    "power-off-done",
	EventFailed:          "failed",
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}
