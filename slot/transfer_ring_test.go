package slot

import (
	"testing"

	"github.com/ardnew/vxhci/dma"
	"github.com/ardnew/vxhci/trb"
)

func newTestTransferRing(bus dma.Bus, ctxAddr, ringBase uint64) *TransferRing {
	r := &TransferRing{bus: bus, ctxAddr: ctxAddr}
	r.SetDequeuePointerAndCycleState(ringBase, true)
	return r
}

func writeRaw(bus dma.Bus, addr uint64, raw trb.Raw) {
	bus.WriteBulk(addr, raw[:])
}

func setupStageTRB(reqType, req uint8, value, index, length uint16) trb.Raw {
	var r trb.Raw
	param := uint64(reqType) | uint64(req)<<8 | uint64(value)<<16 | uint64(index)<<32 | uint64(length)<<48
	r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7] = byte(param), byte(param>>8), byte(param>>16), byte(param>>24), byte(param>>32), byte(param>>40), byte(param>>48), byte(param>>56)
	r.SetTRBType(trb.TypeSetupStage)
	r.SetCycle(true)
	return r
}

func dataStageTRB(ptr uint64, length uint32, deviceToHost, ioc bool) trb.Raw {
	var r trb.Raw
	for i := 0; i < 8; i++ {
		r[i] = byte(ptr >> (8 * i))
	}
	r[8], r[9], r[10] = byte(length), byte(length>>8), byte(length>>16)
	if ioc {
		r[12] |= 1 << 5
	}
	if deviceToHost {
		r[14] |= 1 << 0
	}
	r.SetTRBType(trb.TypeDataStage)
	r.SetCycle(true)
	return r
}

func statusStageTRB(ioc bool) trb.Raw {
	var r trb.Raw
	if ioc {
		r[12] |= 1 << 5
	}
	r.SetTRBType(trb.TypeStatusStage)
	r.SetCycle(true)
	return r
}

// TestTransferRing_ControlRequestRoundTrip verifies that the parsed
// UsbRequest reproduces the Setup-Stage fields verbatim, and that the
// reported Status-Stage address equals the address of the Status-Stage TRB.
func TestTransferRing_ControlRequestRoundTrip(t *testing.T) {
	bus := dma.NewSim(1 << 16)
	ringBase := uint64(0x4000)
	ctxAddr := uint64(0x5000)

	writeRaw(bus, ringBase, setupStageTRB(0x80, 0x06, 0x0100, 0, 18))
	writeRaw(bus, ringBase+16, dataStageTRB(0x4000, 18, true, false))
	statusAddr := ringBase + 32
	writeRaw(bus, statusAddr, statusStageTRB(true))

	r := newTestTransferRing(bus, ctxAddr, ringBase)
	req, gotStatusAddr, ok := r.ReadControlRequest()
	if !ok {
		t.Fatalf("ReadControlRequest() ok = false")
	}
	if req.RequestType != 0x80 || req.Request != 0x06 || req.Value != 0x0100 || req.Index != 0 || req.Length != 18 {
		t.Errorf("req = %+v, want Setup fields reproduced verbatim", req)
	}
	if !req.HasData || req.DataBufferPointer != 0x4000 || req.DataTransferLength != 18 {
		t.Errorf("req data stage = %+v", req)
	}
	if gotStatusAddr != statusAddr {
		t.Errorf("statusAddr = %#x, want %#x", gotStatusAddr, statusAddr)
	}
}

func TestTransferRing_ControlRequestNoDataStage(t *testing.T) {
	bus := dma.NewSim(1 << 16)
	ringBase := uint64(0x6000)
	ctxAddr := uint64(0x7000)

	writeRaw(bus, ringBase, setupStageTRB(0x00, 0x05, 7, 0, 0)) // SET_ADDRESS
	statusAddr := ringBase + 16
	writeRaw(bus, statusAddr, statusStageTRB(true))

	r := newTestTransferRing(bus, ctxAddr, ringBase)
	req, gotStatusAddr, ok := r.ReadControlRequest()
	if !ok {
		t.Fatalf("ReadControlRequest() ok = false")
	}
	if req.HasData {
		t.Errorf("req.HasData = true, want false for a no-data request")
	}
	if gotStatusAddr != statusAddr {
		t.Errorf("statusAddr = %#x, want %#x", gotStatusAddr, statusAddr)
	}
}

func TestTransferRing_EmptyRingReturnsNotOK(t *testing.T) {
	bus := dma.NewSim(1 << 16)
	r := newTestTransferRing(bus, 0x1000, 0x2000)
	// Nothing written at 0x2000 means the on-disk cycle bit is 0, which
	// mismatches the ring's initial cycle state of true, so the ring
	// correctly reports empty.
	if _, _, ok := r.NextTransferTRB(); ok {
		t.Errorf("NextTransferTRB() ok = true on an empty ring")
	}
}

func TestTransferRing_LinkFollowing(t *testing.T) {
	bus := dma.NewSim(1 << 16)
	ringBase := uint64(0x8000)
	ctxAddr := uint64(0x9000)

	segmentB := uint64(0x8100)
	link := trb.EncodeLink(trb.Link{RingSegmentPointer: segmentB}, true)
	writeRaw(bus, ringBase, link)

	var normal trb.Raw
	for i := 0; i < 8; i++ {
		normal[i] = byte(uint64(0x1234) >> (8 * i))
	}
	normal.SetTRBType(trb.TypeNormal)
	normal.SetCycle(true)
	writeRaw(bus, segmentB, normal)

	r := newTestTransferRing(bus, ctxAddr, ringBase)
	got, addr, ok := r.NextTransferTRB()
	if !ok {
		t.Fatalf("NextTransferTRB() ok = false")
	}
	if got.Type != trb.TypeNormal {
		t.Errorf("Type = %v, want Normal", got.Type)
	}
	if addr != segmentB {
		t.Errorf("addr = %#x, want %#x (the real TRB, not the Link)", addr, segmentB)
	}
}
