package hotplug

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/xhci"
)

type mockController struct {
	mu       sync.Mutex
	attached map[xhci.BusDevice]realdevice.Device
	// order records attached keys in attach order, since map iteration
	// order is randomized and List must report devices in attach order.
	order []xhci.BusDevice

	attachErr error
	detachErr error
}

func newMockController() *mockController {
	return &mockController{attached: make(map[xhci.BusDevice]realdevice.Device)}
}

func (m *mockController) AttachDevice(bus, device uint8, dev realdevice.Device) (uuid.UUID, error) {
	if m.attachErr != nil {
		return uuid.Nil, m.attachErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bd := xhci.BusDevice{Bus: bus, Device: device}
	m.attached[bd] = dev
	m.order = append(m.order, bd)
	return uuid.New(), nil
}

func (m *mockController) DetachDevice(bus, device uint8) error {
	if m.detachErr != nil {
		return m.detachErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bd := xhci.BusDevice{Bus: bus, Device: device}
	delete(m.attached, bd)
	for i, v := range m.order {
		if v == bd {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockController) ListAttached() []xhci.BusDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]xhci.BusDevice, 0, len(m.order))
	out = append(out, m.order...)
	return out
}

func mockOpener(fd int) (realdevice.Device, error) {
	return realdevice.NewMock(port.SpeedSuper), nil
}

func newTestServer(t *testing.T, ctrl Controller, open Opener) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hotplug.sock")
	s, err := Listen(path, ctrl, open)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go s.Serve()
	t.Cleanup(func() { s.Close() })
	return s, path
}

func dialAndRoundTrip(t *testing.T, path string, cmd Command) Response {
	t.Helper()
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		t.Fatalf("ResolveUnixAddr() error = %v", err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatalf("DialUnix() error = %v", err)
	}
	defer conn.Close()

	if err := sendCommand(conn, cmd); err != nil {
		t.Fatalf("sendCommand() error = %v", err)
	}
	resp, err := DecodeResponse(conn)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	return resp
}

func TestServer_AttachSuccess(t *testing.T) {
	ctrl := newMockController()
	_, path := newTestServer(t, ctrl, mockOpener)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	resp := dialAndRoundTrip(t, path, Command{ID: CommandAttach, Bus: 3, Device: 5, FD: int(r.Fd())})
	if resp.Code != ResponseSuccessfulOperation {
		t.Errorf("response code = %v, want SuccessfulOperation", resp.Code)
	}
	if len(ctrl.ListAttached()) != 1 {
		t.Errorf("attached count = %d, want 1", len(ctrl.ListAttached()))
	}
}

func TestServer_AttachNoFreePort(t *testing.T) {
	ctrl := newMockController()
	ctrl.attachErr = pkg.ErrNoFreePort
	_, path := newTestServer(t, ctrl, mockOpener)

	r, w, _ := os.Pipe()
	defer r.Close()
	defer w.Close()

	resp := dialAndRoundTrip(t, path, Command{ID: CommandAttach, Bus: 1, Device: 1, FD: int(r.Fd())})
	if resp.Code != ResponseNoFreePort {
		t.Errorf("response code = %v, want NoFreePort", resp.Code)
	}
}

func TestServer_AttachOpenerFailure(t *testing.T) {
	ctrl := newMockController()
	open := func(fd int) (realdevice.Device, error) { return nil, os.ErrInvalid }
	_, path := newTestServer(t, ctrl, open)

	r, w, _ := os.Pipe()
	defer r.Close()
	defer w.Close()

	resp := dialAndRoundTrip(t, path, Command{ID: CommandAttach, Bus: 1, Device: 1, FD: int(r.Fd())})
	if resp.Code != ResponseFailedToOpenFd {
		t.Errorf("response code = %v, want FailedToOpenFd", resp.Code)
	}
}

func TestServer_Detach(t *testing.T) {
	ctrl := newMockController()
	ctrl.attached[xhci.BusDevice{Bus: 3, Device: 5}] = realdevice.NewMock(port.SpeedSuper)
	_, path := newTestServer(t, ctrl, mockOpener)

	resp := dialAndRoundTrip(t, path, Command{ID: CommandDetach, Bus: 3, Device: 5, FD: -1})
	if resp.Code != ResponseSuccessfulOperation {
		t.Errorf("response code = %v, want SuccessfulOperation", resp.Code)
	}
	if len(ctrl.ListAttached()) != 0 {
		t.Errorf("attached count = %d, want 0", len(ctrl.ListAttached()))
	}
}

func TestServer_DetachNoSuchDevice(t *testing.T) {
	ctrl := newMockController()
	ctrl.detachErr = pkg.ErrNoSuchDevice
	_, path := newTestServer(t, ctrl, mockOpener)

	resp := dialAndRoundTrip(t, path, Command{ID: CommandDetach, Bus: 9, Device: 9, FD: -1})
	if resp.Code != ResponseNoSuchDevice {
		t.Errorf("response code = %v, want NoSuchDevice", resp.Code)
	}
}

func TestServer_List(t *testing.T) {
	ctrl := newMockController()
	_, err := ctrl.AttachDevice(2, 2, realdevice.NewMock(port.SpeedSuper))
	if err != nil {
		t.Fatalf("AttachDevice(2,2): %v", err)
	}
	_, err = ctrl.AttachDevice(3, 5, realdevice.NewMock(port.SpeedSuper))
	if err != nil {
		t.Fatalf("AttachDevice(3,5): %v", err)
	}
	_, path := newTestServer(t, ctrl, mockOpener)

	resp := dialAndRoundTrip(t, path, Command{ID: CommandList, FD: -1})
	if resp.Code != ResponseListFollowing {
		t.Fatalf("response code = %v, want ListFollowing", resp.Code)
	}

	want := []BusDevice{{Bus: 2, Device: 2}, {Bus: 3, Device: 5}}
	if len(resp.Devices) != len(want) {
		t.Fatalf("device count = %d, want %d", len(resp.Devices), len(want))
	}
	for i, d := range want {
		if resp.Devices[i] != d {
			t.Errorf("Devices[%d] = %+v, want %+v (attach order)", i, resp.Devices[i], d)
		}
	}
}
