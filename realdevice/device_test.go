package realdevice

import (
	"context"
	"testing"

	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/slot"
)

func TestMock_SpeedKnown(t *testing.T) {
	m := NewMock(port.SpeedSuper)
	speed, ok := m.Speed()
	if !ok || speed != port.SpeedSuper {
		t.Errorf("Speed() = (%v, %v), want (Super, true)", speed, ok)
	}
}

func TestMock_SpeedUnknown(t *testing.T) {
	m := NewMockUnknownSpeed()
	if _, ok := m.Speed(); ok {
		t.Errorf("Speed() ok = true, want false")
	}
}

func TestMock_EnableEndpoint(t *testing.T) {
	m := NewMock(port.SpeedHigh)
	if err := m.EnableEndpoint(EndpointWorkerInfo{EndpointID: 3}, slot.EndpointTypeBulkIn); err != nil {
		t.Fatalf("EnableEndpoint() error = %v", err)
	}
	got, ok := m.EndpointEnabled(3)
	if !ok || got != slot.EndpointTypeBulkIn {
		t.Errorf("EndpointEnabled(3) = (%v, %v), want (BulkIn, true)", got, ok)
	}
}

func TestMock_ControlTransferIn(t *testing.T) {
	m := NewMock(port.SpeedSuper)
	m.ControlResponse = []byte{0x12, 0x01, 0x00, 0x03}

	buf := make([]byte, 18)
	n, err := m.Transfer(context.Background(), TransferRequest{
		Type:      slot.EndpointTypeControl,
		Direction: DirectionIn,
		Data:      buf,
	})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if n != len(m.ControlResponse) {
		t.Errorf("n = %d, want %d", n, len(m.ControlResponse))
	}
	for i, b := range m.ControlResponse {
		if buf[i] != b {
			t.Errorf("buf[%d] = %#x, want %#x", i, buf[i], b)
		}
	}
}

func TestCancellationHandle(t *testing.T) {
	h := NewCancellationHandle()
	if h.IsCancelled() {
		t.Errorf("IsCancelled() = true before Cancel")
	}
	h.Cancel()
	if !h.IsCancelled() {
		t.Errorf("IsCancelled() = false after Cancel")
	}
	h.Cancel() // idempotent
}
