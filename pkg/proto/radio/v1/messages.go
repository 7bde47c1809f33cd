// Package v1 defines the messages reported by the radio daemon.
// The wire schema is radio.proto.
package v1

import (
	"github.com/golang/protobuf/proto"
)

// Stack identifies a client protocol stack.
type Stack int32

// Stacks.
const (
	Stack_STACK_BT    Stack = 0
	Stack_STACK_FM_RX Stack = 1
	Stack_STACK_FM_TX Stack = 2
)

// Stack_name maps a Stack to its name.
var Stack_name = map[int32]string{
	0: "STACK_BT",
	1: "STACK_FM_RX",
	2: "STACK_FM_TX",
}

// Stack_value maps a name to its Stack.
var Stack_value = map[string]int32{
	"STACK_BT":    0,
	"STACK_FM_RX": 1,
	"STACK_FM_TX": 2,
}

func (x Stack) String() string { return proto.EnumName(Stack_name, int32(x)) }

// Op is the requested operation.
type Op int32

// Ops.
const (
	Op_OP_UNKNOWN Op = 0
	Op_OP_ON      Op = 1
	Op_OP_OFF     Op = 2
	Op_OP_ABORT   Op = 3
)

// Op_name maps an Op to its name.
var Op_name = map[int32]string{
	0: "OP_UNKNOWN",
	1: "OP_ON",
	2: "OP_OFF",
	3: "OP_ABORT",
}

// Op_value maps a name to its Op.
var Op_value = map[string]int32{
	"OP_UNKNOWN": 0,
	"OP_ON":      1,
	"OP_OFF":     2,
	"OP_ABORT":   3,
}

func (x Op) String() string { return proto.EnumName(Op_name, int32(x)) }

// Result is the outcome of a request.
type Result int32

// Results.
const (
	Result_RESULT_SUCCESS        Result = 0
	Result_RESULT_PENDING        Result = 1
	Result_RESULT_FAILED         Result = 2
	Result_RESULT_ABORTED        Result = 3
	Result_RESULT_INVALID_SCRIPT Result = 4
)

// Result_name maps a Result to its name.
var Result_name = map[int32]string{
	0: "RESULT_SUCCESS",
	1: "RESULT_PENDING",
	2: "RESULT_FAILED",
	3: "RESULT_ABORTED",
	4: "RESULT_INVALID_SCRIPT",
}

// Result_value maps a name to its Result.
var Result_value = map[string]int32{
	"RESULT_SUCCESS":        0,
	"RESULT_PENDING":        1,
	"RESULT_FAILED":         2,
	"RESULT_ABORTED":        3,
	"RESULT_INVALID_SCRIPT": 4,
}

func (x Result) String() string { return proto.EnumName(Result_name, int32(x)) }

// ChipIdentity is the firmware identity read during bring-up.
type ChipIdentity struct {
	ProjectType  uint32 `protobuf:"varint,1,opt,name=project_type,json=projectType,proto3" json:"project_type,omitempty"`
	VersionMajor uint32 `protobuf:"varint,2,opt,name=version_major,json=versionMajor,proto3" json:"version_major,omitempty"`
	VersionMinor uint32 `protobuf:"varint,3,opt,name=version_minor,json=versionMinor,proto3" json:"version_minor,omitempty"`
	Script       string `protobuf:"bytes,4,opt,name=script,proto3" json:"script,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *ChipIdentity) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ChipIdentity) Reset() { *m = ChipIdentity{} }

// String implements proto.Message.
func (m *ChipIdentity) String() string { return proto.CompactTextString(m) }

// TransportEvent reports the completion of a transport request.
type TransportEvent struct {
	Host        string        `protobuf:"bytes,1,opt,name=host,proto3" json:"host,omitempty"`
	Chip        string        `protobuf:"bytes,2,opt,name=chip,proto3" json:"chip,omitempty"`
	Client      Stack         `protobuf:"varint,3,opt,name=client,proto3,enum=radio.v1.Stack" json:"client,omitempty"`
	Op          Op            `protobuf:"varint,4,opt,name=op,proto3,enum=radio.v1.Op" json:"op,omitempty"`
	Result      Result        `protobuf:"varint,5,opt,name=result,proto3,enum=radio.v1.Result" json:"result,omitempty"`
	Async       bool          `protobuf:"varint,6,opt,name=async,proto3" json:"async,omitempty"`
	RefCount    int32         `protobuf:"varint,7,opt,name=ref_count,json=refCount,proto3" json:"ref_count,omitempty"`
	TimestampMs int64         `protobuf:"varint,8,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
	Identity    *ChipIdentity `protobuf:"bytes,9,opt,name=identity,proto3" json:"identity,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *TransportEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TransportEvent) Reset() { *m = TransportEvent{} }

// String implements proto.Message.
func (m *TransportEvent) String() string { return proto.CompactTextString(m) }

// HostInfo is published retained when the reporter connects.
type HostInfo struct {
	Host  string   `protobuf:"bytes,1,opt,name=host,proto3" json:"host,omitempty"`
	Chips []string `protobuf:"bytes,2,rep,name=chips,proto3" json:"chips,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *HostInfo) ProtoMessage() {}

// Reset implements proto.Message.
func (m *HostInfo) Reset() { *m = HostInfo{} }

// String implements proto.Message.
func (m *HostInfo) String() string { return proto.CompactTextString(m) }

func init() {
	proto.RegisterEnum("radio.v1.Stack", Stack_name, Stack_value)
	proto.RegisterEnum("radio.v1.Op", Op_name, Op_value)
	proto.RegisterEnum("radio.v1.Result", Result_name, Result_value)
	proto.RegisterType((*ChipIdentity)(nil), "radio.v1.ChipIdentity")
	proto.RegisterType((*TransportEvent)(nil), "radio.v1.TransportEvent")
	proto.RegisterType((*HostInfo)(nil), "radio.v1.HostInfo")
}
