package hci

import (
	"encoding/binary"
	"fmt"
)

// ManufacturerTI is the Bluetooth SIG company identifier of the chip vendor.
const ManufacturerTI uint16 = 0x000D

// Bit fields of the LMP sub-version word.
const (
	subVersionProjectMask  uint16 = 0x7C00
	subVersionProjectShift        = 10
	subVersionMajorMask    uint16 = 0x0380
	subVersionMajorShift          = 7
	subVersionMajorExt     uint16 = 0x8000
	subVersionMinorMask    uint16 = 0x007F
)

// ChipIdentity is decoded from the local version information.
type ChipIdentity struct {
	ProjectType  uint8
	VersionMajor uint8
	VersionMinor uint8
}

// String implements fmt.Stringer.
func (c ChipIdentity) String() string {
	return fmt.Sprintf("%d.%d.%d", c.ProjectType, c.VersionMajor, c.VersionMinor)
}

// ScriptName returns the init script file name for the chip.
func (c ChipIdentity) ScriptName() string {
	return fmt.Sprintf("tiinit_%d.%d.%d.bts", c.ProjectType, c.VersionMajor, c.VersionMinor)
}

// DecodeSubVersion extracts the chip identity from the LMP sub-version.
func DecodeSubVersion(sub uint16) ChipIdentity {
	major := (sub & subVersionMajorMask) >> subVersionMajorShift
	if sub&subVersionMajorExt != 0 {
		major |= 0x08
	}
	return ChipIdentity{
		ProjectType:  uint8((sub & subVersionProjectMask) >> subVersionProjectShift),
		VersionMajor: uint8(major),
		VersionMinor: uint8(sub & subVersionMinorMask),
	}
}

// EncodeSubVersion is the inverse of DecodeSubVersion.
func EncodeSubVersion(id ChipIdentity) uint16 {
	sub := uint16(id.ProjectType)<<subVersionProjectShift&subVersionProjectMask |
		uint16(id.VersionMajor&0x07)<<subVersionMajorShift |
		uint16(id.VersionMinor)&subVersionMinorMask
	if id.VersionMajor&0x08 != 0 {
		sub |= subVersionMajorExt
	}
	return sub
}

// DecodeLocalVersion decodes the reply to HCI_Read_Local_Version_Information.
//
// Return parameters: status(1) hci_version(1) hci_revision(2) lmp_version(1)
// manufacturer(2) lmp_subversion(2).
func DecodeLocalVersion(ev *Event) (ChipIdentity, error) {
	op, ret, ok := ev.CommandComplete()
	if !ok || op != OpcodeReadLocalVersion {
		return ChipIdentity{}, &UnexpectedEventError{Code: ev.Code}
	}
	if err := ev.Err(); err != nil {
		return ChipIdentity{}, err
	}
	if len(ret) < 9 {
		return ChipIdentity{}, ErrShortReply
	}
	if manufacturer := binary.LittleEndian.Uint16(ret[5:]); manufacturer != ManufacturerTI {
		return ChipIdentity{}, fmt.Errorf("%w: 0x%04x", ErrVendorMismatch, manufacturer)
	}
	return DecodeSubVersion(binary.LittleEndian.Uint16(ret[7:])), nil
}

// LocalVersionReply builds a Command Complete for HCI_Read_Local_Version_Information.
func LocalVersionReply(manufacturer uint16, id ChipIdentity) *Event {
	ret := make([]byte, 8)
	ret[0] = 6 // HCI version 4.0
	ret[3] = 6
	binary.LittleEndian.PutUint16(ret[4:], manufacturer)
	binary.LittleEndian.PutUint16(ret[6:], EncodeSubVersion(id))
	return NewCommandComplete(OpcodeReadLocalVersion, 0, ret...)
}
