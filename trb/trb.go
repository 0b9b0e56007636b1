package trb

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/vxhci/pkg"
)

// Size is the fixed length of every TRB in bytes.
const Size = 16

// Type is the 6-bit TRB-type field occupying byte 13 bits 2..7 (bits 10..15
// of the 32-bit control dword at byte offset 12).
type Type uint8

// Recognized TRB types (xHCI table 6.4.6).
const (
	TypeNormal                  Type = 1
	TypeSetupStage              Type = 2
	TypeDataStage               Type = 3
	TypeStatusStage             Type = 4
	TypeLink                    Type = 6
	TypeEnableSlot              Type = 9
	TypeDisableSlot             Type = 10
	TypeAddressDevice           Type = 11
	TypeConfigureEndpoint       Type = 12
	TypeEvaluateContext         Type = 13
	TypeResetEndpoint           Type = 14
	TypeStopEndpoint            Type = 15
	TypeSetTRDequeuePointer     Type = 16
	TypeResetDevice             Type = 17
	TypeForceHeader             Type = 22
	TypeNoOpCommand             Type = 23
	TypeTransferEvent           Type = 32
	TypeCommandCompletionEvent  Type = 33
	TypePortStatusChangeEvent   Type = 34
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "Normal"
	case TypeSetupStage:
		return "SetupStage"
	case TypeDataStage:
		return "DataStage"
	case TypeStatusStage:
		return "StatusStage"
	case TypeLink:
		return "Link"
	case TypeEnableSlot:
		return "EnableSlot"
	case TypeDisableSlot:
		return "DisableSlot"
	case TypeAddressDevice:
		return "AddressDevice"
	case TypeConfigureEndpoint:
		return "ConfigureEndpoint"
	case TypeEvaluateContext:
		return "EvaluateContext"
	case TypeResetEndpoint:
		return "ResetEndpoint"
	case TypeStopEndpoint:
		return "StopEndpoint"
	case TypeSetTRDequeuePointer:
		return "SetTRDequeuePointer"
	case TypeResetDevice:
		return "ResetDevice"
	case TypeForceHeader:
		return "ForceHeader"
	case TypeNoOpCommand:
		return "NoOpCommand"
	case TypeTransferEvent:
		return "TransferEvent"
	case TypeCommandCompletionEvent:
		return "CommandCompletionEvent"
	case TypePortStatusChangeEvent:
		return "PortStatusChangeEvent"
	default:
		return fmt.Sprintf("Unrecognized(%d)", uint8(t))
	}
}

// Raw is the on-the-wire 16-byte TRB layout.
type Raw [Size]byte

// Cycle returns the producer cycle bit, byte offset 12 bit 0.
func (r *Raw) Cycle() bool {
	return r[12]&0x01 != 0
}

// SetCycle sets the producer cycle bit.
func (r *Raw) SetCycle(cycle bool) {
	if cycle {
		r[12] |= 0x01
	} else {
		r[12] &^= 0x01
	}
}

// TRBType returns the 6-bit TRB-type field, byte 13 bits 2..7.
func (r *Raw) TRBType() Type {
	return Type(r[13] >> 2)
}

// SetTRBType sets the 6-bit TRB-type field.
func (r *Raw) SetTRBType(t Type) {
	r[13] = (r[13] & 0x03) | (uint8(t) << 2)
}

// parameter returns the 64-bit parameter field occupying bytes 0..7.
func (r *Raw) parameter() uint64 {
	return binary.LittleEndian.Uint64(r[0:8])
}

func (r *Raw) setParameter(v uint64) {
	binary.LittleEndian.PutUint64(r[0:8], v)
}

// status returns the 32-bit status dword occupying bytes 8..11.
func (r *Raw) status() uint32 {
	return binary.LittleEndian.Uint32(r[8:12])
}

func (r *Raw) setStatus(v uint32) {
	binary.LittleEndian.PutUint32(r[8:12], v)
}

// control returns the 32-bit control dword occupying bytes 12..15.
func (r *Raw) control() uint32 {
	return binary.LittleEndian.Uint32(r[12:16])
}

func (r *Raw) setControl(v uint32) {
	binary.LittleEndian.PutUint32(r[12:16], v)
}

// Control dword bit positions, relative to byte 12.
const (
	bitCycle        = 0
	bitToggleCycle  = 1 // Link TRB only
	bitEvalNext     = 1 // command/transfer TRBs other than Link
	bitISP          = 2
	bitChain        = 4
	bitIOC          = 5
)

func bitSet(v uint32, bit uint) bool { return v&(1<<bit) != 0 }

// Link carries the fields of a Link TRB, used by both the Command Ring and
// every Transfer Ring to chain ring segments.
type Link struct {
	RingSegmentPointer uint64
	ToggleCycle        bool
}

// decodeLink extracts the fields common to a Link TRB regardless of which
// ring it was read from.
func decodeLink(r Raw) Link {
	ctl := r.control()
	return Link{
		RingSegmentPointer: r.parameter() &^ 0xF, // 16-byte aligned
		ToggleCycle:        bitSet(ctl, bitToggleCycle),
	}
}

// SetupStage carries the fields of a Setup Stage transfer TRB. Layout
// mirrors the 8-byte USB SETUP packet, packed into the parameter field.
type SetupStage struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
	// TransferType selects the Data Stage direction/no-data encoding placed
	// in the status dword's bits 16..17 by the driver (0 = no data stage).
	TransferType uint8
}

func decodeSetupStage(r Raw) SetupStage {
	p := r.parameter()
	s := r.status()
	return SetupStage{
		RequestType:  uint8(p),
		Request:      uint8(p >> 8),
		Value:        uint16(p >> 16),
		Index:        uint16(p >> 32),
		Length:       uint16(p >> 48),
		TransferType: uint8((s >> 16) & 0x3),
	}
}

// IsDeviceToHost reports the direction encoded in bmRequestType bit 7.
func (s SetupStage) IsDeviceToHost() bool { return s.RequestType&0x80 != 0 }

// DataStage carries the fields of a Data Stage transfer TRB.
type DataStage struct {
	DataBufferPointer uint64
	TransferLength    uint32
	DeviceToHost      bool
	ChainBit          bool
	IOC               bool
}

func decodeDataStage(r Raw) DataStage {
	ctl := r.control()
	return DataStage{
		DataBufferPointer: r.parameter(),
		TransferLength:    r.status() & 0x1FFFF,
		DeviceToHost:      bitSet(ctl, 16), // DIR bit, byte14 bit0 (global bit16)
		ChainBit:          bitSet(ctl, bitChain),
		IOC:               bitSet(ctl, bitIOC),
	}
}

// StatusStage carries the fields of a Status Stage transfer TRB.
type StatusStage struct {
	ChainBit bool
	IOC      bool
}

func decodeStatusStage(r Raw) StatusStage {
	ctl := r.control()
	return StatusStage{
		ChainBit: bitSet(ctl, bitChain),
		IOC:      bitSet(ctl, bitIOC),
	}
}

// Normal carries the fields of a Normal transfer TRB, used for Bulk and
// Interrupt endpoints.
type Normal struct {
	DataBufferPointer uint64
	TransferLength    uint32
	ChainBit          bool
	IOC               bool
}

func decodeNormal(r Raw) Normal {
	ctl := r.control()
	return Normal{
		DataBufferPointer: r.parameter(),
		TransferLength:    r.status() & 0x1FFFF,
		ChainBit:          bitSet(ctl, bitChain),
		IOC:               bitSet(ctl, bitIOC),
	}
}

// TransferTRB is the tagged union of TRBs that may appear on a Transfer
// Ring, as returned by ParseTransfer.
type TransferTRB struct {
	Type Type

	Normal      Normal
	SetupStage  SetupStage
	DataStage   DataStage
	StatusStage StatusStage
	Link        Link
}

// ParseTransfer decodes one 16-byte TRB read from a Transfer Ring. The
// caller is expected to already know the TRB is addressed to this ring (the
// cycle-bit check happens in the ring itself); ParseTransfer only decodes
// the type-specific fields.
//
// An unrecognized type where the caller required a specific one is a
// protocol violation and panics, matching the fatal-on-invariant-violation
// policy for guest-driver misbehavior that the rest of the controller
// follows.
func ParseTransfer(raw Raw) TransferTRB {
	t := raw.TRBType()
	out := TransferTRB{Type: t}
	switch t {
	case TypeNormal:
		out.Normal = decodeNormal(raw)
	case TypeSetupStage:
		out.SetupStage = decodeSetupStage(raw)
	case TypeDataStage:
		out.DataStage = decodeDataStage(raw)
	case TypeStatusStage:
		out.StatusStage = decodeStatusStage(raw)
	case TypeLink:
		out.Link = decodeLink(raw)
	default:
		panic(fmt.Sprintf("trb: unrecognized transfer TRB type %s", t))
	}
	return out
}

// CommandTRB is the tagged union of TRBs that may appear on the Command
// Ring, as returned by ParseCommand.
type CommandTRB struct {
	Type Type

	// DisableSlot, AddressDevice, ConfigureEndpoint, EvaluateContext,
	// ResetEndpoint, StopEndpoint, SetTRDequeuePointer, ResetDevice all
	// carry a slot ID in the control dword's upper byte.
	SlotID uint8

	// InputContextPointer is valid for AddressDevice, ConfigureEndpoint,
	// and EvaluateContext.
	InputContextPointer uint64

	// DeconfigureBit is the DC flag on a ConfigureEndpoint command,
	// requesting the endpoint-context teardown path the controller does
	// not implement (see DESIGN.md).
	DeconfigureBit bool

	// EndpointID is valid for ResetEndpoint, StopEndpoint, and
	// SetTRDequeuePointer.
	EndpointID uint8

	// NewTRDequeuePointer and NewDCS are valid for SetTRDequeuePointer.
	NewTRDequeuePointer uint64
	NewDCS              bool

	Link Link

	// Unrecognized carries the raw bytes and TRB type of a command this
	// controller does not implement (ForceHeader and similar), so the
	// dispatcher can log a diagnostic instead of silently dropping it.
	Unrecognized *Raw
}

// ParseCommand decodes one 16-byte TRB read from the Command Ring.
func ParseCommand(raw Raw) CommandTRB {
	t := raw.TRBType()
	out := CommandTRB{Type: t}
	ctl := raw.control()
	switch t {
	case TypeEnableSlot, TypeNoOpCommand:
		// No fields beyond the type.
	case TypeDisableSlot, TypeResetDevice:
		out.SlotID = uint8(ctl >> 24)
	case TypeAddressDevice:
		out.SlotID = uint8(ctl >> 24)
		out.InputContextPointer = raw.parameter() &^ 0xF
	case TypeConfigureEndpoint:
		out.SlotID = uint8(ctl >> 24)
		out.InputContextPointer = raw.parameter() &^ 0xF
		out.DeconfigureBit = bitSet(ctl, 9)
	case TypeEvaluateContext:
		out.SlotID = uint8(ctl >> 24)
		out.InputContextPointer = raw.parameter() &^ 0xF
	case TypeResetEndpoint, TypeStopEndpoint:
		out.SlotID = uint8(ctl >> 24)
		out.EndpointID = uint8((ctl >> 16) & 0x1F)
	case TypeSetTRDequeuePointer:
		out.SlotID = uint8(ctl >> 24)
		out.EndpointID = uint8((ctl >> 16) & 0x1F)
		p := raw.parameter()
		out.NewDCS = p&0x1 != 0
		out.NewTRDequeuePointer = p &^ 0xF
	case TypeLink:
		out.Link = decodeLink(raw)
	default:
		r := raw
		out.Unrecognized = &r
	}
	return out
}

// CommandCompletionEvent is encoded by EncodeEvent for the Command Ring's
// completion notifications.
type CommandCompletionEvent struct {
	CommandTRBPointer uint64
	CompletionCode    pkg.CompletionCode
	SlotID            uint8
}

// TransferEvent is encoded by EncodeEvent for endpoint-worker completion
// notifications.
type TransferEvent struct {
	TRBPointer       uint64
	CompletionCode   pkg.CompletionCode
	TransferLength    uint32
	SlotID            uint8
	EndpointID        uint8
}

// PortStatusChangeEvent is encoded by EncodeEvent when a port transitions.
type PortStatusChangeEvent struct {
	PortID uint8
}

// EncodeEvent serializes one of the three event variants into a 16-byte TRB
// stamped with the given producer cycle state. The argument must be one of
// [CommandCompletionEvent], [TransferEvent], or [PortStatusChangeEvent];
// any other type is a programming error and panics.
func EncodeEvent(variant any, cycle bool) Raw {
	var raw Raw
	switch v := variant.(type) {
	case CommandCompletionEvent:
		raw.setParameter(v.CommandTRBPointer)
		raw.setStatus(uint32(v.CompletionCode) << 24)
		raw.setControl(uint32(v.SlotID) << 24)
		raw.SetTRBType(TypeCommandCompletionEvent)
	case TransferEvent:
		raw.setParameter(v.TRBPointer)
		raw.setStatus(uint32(v.CompletionCode)<<24 | (v.TransferLength & 0xFFFFFF))
		raw.setControl(uint32(v.SlotID)<<24 | uint32(v.EndpointID)<<16)
		raw.SetTRBType(TypeTransferEvent)
	case PortStatusChangeEvent:
		raw.setParameter(uint64(v.PortID) << 24)
		raw.setStatus(uint32(pkg.CompletionCodeSuccess) << 24)
		raw.SetTRBType(TypePortStatusChangeEvent)
	default:
		panic(fmt.Sprintf("trb: EncodeEvent: unsupported variant %T", variant))
	}
	raw.SetCycle(cycle)
	return raw
}

// EncodeLink serializes a Link TRB, used by ring implementations under test
// to build synthetic segment layouts.
func EncodeLink(link Link, cycle bool) Raw {
	var raw Raw
	raw.setParameter(link.RingSegmentPointer &^ 0xF)
	var ctl uint32
	if link.ToggleCycle {
		ctl |= 1 << bitToggleCycle
	}
	raw.setControl(ctl)
	raw.SetTRBType(TypeLink)
	raw.SetCycle(cycle)
	return raw
}
