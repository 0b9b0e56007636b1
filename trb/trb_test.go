package trb

import (
	"testing"

	"github.com/ardnew/vxhci/pkg"
)

// =============================================================================
// Cycle bit / TRB type
// =============================================================================

func TestRaw_CycleAndType(t *testing.T) {
	var r Raw
	if r.Cycle() {
		t.Errorf("zero-value Raw has Cycle() = true, want false")
	}
	r.SetCycle(true)
	if !r.Cycle() {
		t.Errorf("SetCycle(true) did not stick")
	}
	r.SetCycle(false)
	if r.Cycle() {
		t.Errorf("SetCycle(false) did not stick")
	}

	r.SetTRBType(TypeEnableSlot)
	if got := r.TRBType(); got != TypeEnableSlot {
		t.Errorf("TRBType() = %v, want %v", got, TypeEnableSlot)
	}
	// Setting the type must not disturb the cycle bit, which shares byte 12
	// with bits of the control dword the type field does not touch, but
	// byte 13 is disjoint from byte 12 so this is mostly a regression guard.
	r.SetCycle(true)
	r.SetTRBType(TypeNoOpCommand)
	if !r.Cycle() {
		t.Errorf("SetTRBType disturbed the cycle bit")
	}
	if got := r.TRBType(); got != TypeNoOpCommand {
		t.Errorf("TRBType() = %v, want %v", got, TypeNoOpCommand)
	}
}

func TestType_String(t *testing.T) {
	if got := TypeEnableSlot.String(); got != "EnableSlot" {
		t.Errorf("EnableSlot.String() = %q", got)
	}
	if got := Type(63).String(); got == "" {
		t.Errorf("unrecognized type returned empty string")
	}
}

// =============================================================================
// Command TRB parsing
// =============================================================================

func TestParseCommand_EnableSlot(t *testing.T) {
	var r Raw
	r.SetTRBType(TypeEnableSlot)
	r.SetCycle(true)

	cmd := ParseCommand(r)
	if cmd.Type != TypeEnableSlot {
		t.Errorf("Type = %v, want EnableSlot", cmd.Type)
	}
}

func TestParseCommand_AddressDevice(t *testing.T) {
	var r Raw
	r.setParameter(0x1000) // input context pointer, 16-byte aligned
	r.setControl(7 << 24)  // slot id 7
	r.SetTRBType(TypeAddressDevice)

	cmd := ParseCommand(r)
	if cmd.SlotID != 7 {
		t.Errorf("SlotID = %d, want 7", cmd.SlotID)
	}
	if cmd.InputContextPointer != 0x1000 {
		t.Errorf("InputContextPointer = %#x, want 0x1000", cmd.InputContextPointer)
	}
}

func TestParseCommand_ConfigureEndpointDeconfigure(t *testing.T) {
	var r Raw
	r.setControl(3<<24 | 1<<9)
	r.SetTRBType(TypeConfigureEndpoint)

	cmd := ParseCommand(r)
	if !cmd.DeconfigureBit {
		t.Errorf("DeconfigureBit = false, want true")
	}
	if cmd.SlotID != 3 {
		t.Errorf("SlotID = %d, want 3", cmd.SlotID)
	}
}

func TestParseCommand_SetTRDequeuePointer(t *testing.T) {
	var r Raw
	r.setParameter(0x2000 | 1) // DCS=1
	r.setControl(2<<24 | 5<<16)
	r.SetTRBType(TypeSetTRDequeuePointer)

	cmd := ParseCommand(r)
	if cmd.SlotID != 2 || cmd.EndpointID != 5 {
		t.Errorf("SlotID/EndpointID = %d/%d, want 2/5", cmd.SlotID, cmd.EndpointID)
	}
	if !cmd.NewDCS {
		t.Errorf("NewDCS = false, want true")
	}
	if cmd.NewTRDequeuePointer != 0x2000 {
		t.Errorf("NewTRDequeuePointer = %#x, want 0x2000", cmd.NewTRDequeuePointer)
	}
}

func TestParseCommand_Unrecognized(t *testing.T) {
	var r Raw
	r.SetTRBType(TypeForceHeader)

	cmd := ParseCommand(r)
	if cmd.Unrecognized == nil {
		t.Fatalf("Unrecognized = nil, want populated raw")
	}
	if cmd.Type != TypeForceHeader {
		t.Errorf("Type = %v, want ForceHeader", cmd.Type)
	}
}

func TestParseCommand_Link(t *testing.T) {
	raw := EncodeLink(Link{RingSegmentPointer: 0x3000, ToggleCycle: true}, true)
	cmd := ParseCommand(raw)
	if cmd.Link.RingSegmentPointer != 0x3000 {
		t.Errorf("RingSegmentPointer = %#x, want 0x3000", cmd.Link.RingSegmentPointer)
	}
	if !cmd.Link.ToggleCycle {
		t.Errorf("ToggleCycle = false, want true")
	}
}

// =============================================================================
// Transfer TRB parsing — round trip of Setup fields
// =============================================================================

func TestParseTransfer_SetupStageRoundTrip(t *testing.T) {
	var r Raw
	// bmRequestType=0x80 (device-to-host, standard, device), bRequest=GET_DESCRIPTOR,
	// wValue=0x0100 (DEVICE descriptor), wIndex=0, wLength=18.
	param := uint64(0x80) | uint64(0x06)<<8 | uint64(0x0100)<<16 | uint64(0)<<32 | uint64(18)<<48
	r.setParameter(param)
	r.SetTRBType(TypeSetupStage)

	got := decodeSetupStage(r)
	want := SetupStage{RequestType: 0x80, Request: 0x06, Value: 0x0100, Index: 0, Length: 18}
	if got != want {
		t.Errorf("decodeSetupStage() = %+v, want %+v", got, want)
	}
	if !got.IsDeviceToHost() {
		t.Errorf("IsDeviceToHost() = false, want true")
	}
}

func TestParseTransfer_Normal(t *testing.T) {
	var r Raw
	r.setParameter(0x5000)
	r.setStatus(31)
	r.setControl(1 << bitIOC)
	r.SetTRBType(TypeNormal)

	tr := ParseTransfer(r)
	if tr.Normal.DataBufferPointer != 0x5000 {
		t.Errorf("DataBufferPointer = %#x, want 0x5000", tr.Normal.DataBufferPointer)
	}
	if tr.Normal.TransferLength != 31 {
		t.Errorf("TransferLength = %d, want 31", tr.Normal.TransferLength)
	}
	if !tr.Normal.IOC {
		t.Errorf("IOC = false, want true")
	}
}

func TestParseTransfer_UnrecognizedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("ParseTransfer did not panic on unrecognized type")
		}
	}()
	var r Raw
	r.SetTRBType(TypeEnableSlot) // valid command type, invalid transfer type
	ParseTransfer(r)
}

// =============================================================================
// Event encoding
// =============================================================================

func TestEncodeEvent_CommandCompletion(t *testing.T) {
	raw := EncodeEvent(CommandCompletionEvent{
		CommandTRBPointer: 0x1000,
		CompletionCode:    pkg.CompletionCodeSuccess,
		SlotID:            1,
	}, true)

	if raw.TRBType() != TypeCommandCompletionEvent {
		t.Errorf("TRBType() = %v, want CommandCompletionEvent", raw.TRBType())
	}
	if !raw.Cycle() {
		t.Errorf("Cycle() = false, want true")
	}
	if raw.parameter() != 0x1000 {
		t.Errorf("parameter() = %#x, want 0x1000", raw.parameter())
	}
}

func TestEncodeEvent_TransferEvent(t *testing.T) {
	raw := EncodeEvent(TransferEvent{
		TRBPointer:     0x2030,
		CompletionCode: pkg.CompletionCodeSuccess,
		SlotID:         1,
		EndpointID:     1,
	}, false)

	if raw.Cycle() {
		t.Errorf("Cycle() = true, want false")
	}
	if raw.TRBType() != TypeTransferEvent {
		t.Errorf("TRBType() = %v, want TransferEvent", raw.TRBType())
	}
}

func TestEncodeEvent_UnsupportedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("EncodeEvent did not panic on unsupported variant")
		}
	}()
	EncodeEvent(42, true)
}

func TestEncodeLink_RoundTrip(t *testing.T) {
	raw := EncodeLink(Link{RingSegmentPointer: 0x4010, ToggleCycle: true}, true)
	got := decodeLink(raw)
	if got.RingSegmentPointer != 0x4010 || !got.ToggleCycle {
		t.Errorf("decodeLink(EncodeLink(...)) = %+v", got)
	}
}
