package introspect

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/xhci"
)

type fakeSource struct {
	status   xhci.Status
	attached []xhci.AttachedInfo
}

func (f *fakeSource) Status() xhci.Status                   { return f.status }
func (f *fakeSource) ListAttachedInfo() []xhci.AttachedInfo { return f.attached }

func TestService_GetControllerStatus(t *testing.T) {
	src := &fakeSource{status: xhci.Status{
		Running:        true,
		SlotsInUse:     2,
		SlotsTotal:     32,
		PortsOccupied:  1,
		PortsTotal:     8,
		EventRingDepth: 3,
	}}
	svc := NewService(src, nil)

	var reply ControllerStatusReply
	if err := svc.GetControllerStatus(&ControllerStatusArgs{}, &reply); err != nil {
		t.Fatalf("GetControllerStatus() error = %v", err)
	}
	if reply.SlotsInUse != 2 || reply.PortsTotal != 8 || !reply.Running {
		t.Errorf("reply = %+v, want matching fakeSource status", reply)
	}
}

func TestService_ListAttachedDevices(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{attached: []xhci.AttachedInfo{
		{ID: id, Bus: 1, Device: 2, Port: 3, Speed: port.SpeedSuper},
	}}
	svc := NewService(src, nil)

	var reply ListAttachedDevicesReply
	if err := svc.ListAttachedDevices(&ListAttachedDevicesArgs{}, &reply); err != nil {
		t.Fatalf("ListAttachedDevices() error = %v", err)
	}
	if len(reply.Devices) != 1 {
		t.Fatalf("device count = %d, want 1", len(reply.Devices))
	}
	got := reply.Devices[0]
	if got.ID != id.String() || got.Bus != 1 || got.Port != 3 || got.Speed != "Super" {
		t.Errorf("device = %+v, want ID=%s Bus=1 Port=3 Speed=Super", got, id)
	}
	if got.VendorName != "" || got.ProductName != "" {
		t.Errorf("VendorName/ProductName = %q/%q, want empty with no resolver", got.VendorName, got.ProductName)
	}
}

type fakeResolver struct {
	vendor, product string
	ok              bool
}

func (r fakeResolver) Resolve(bus, device uint8) (string, string, bool) {
	return r.vendor, r.product, r.ok
}

func TestService_ListAttachedDevices_WithResolver(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{attached: []xhci.AttachedInfo{
		{ID: id, Bus: 1, Device: 2, Port: 3, Speed: port.SpeedSuper},
	}}
	svc := NewService(src, fakeResolver{vendor: "Example Corp", product: "Widget", ok: true})

	var reply ListAttachedDevicesReply
	if err := svc.ListAttachedDevices(&ListAttachedDevicesArgs{}, &reply); err != nil {
		t.Fatalf("ListAttachedDevices() error = %v", err)
	}
	if got := reply.Devices[0]; got.VendorName != "Example Corp" || got.ProductName != "Widget" {
		t.Errorf("VendorName/ProductName = %q/%q, want Example Corp/Widget", got.VendorName, got.ProductName)
	}
}

func TestService_ListAttachedDevices_ResolverMiss(t *testing.T) {
	src := &fakeSource{attached: []xhci.AttachedInfo{
		{ID: uuid.New(), Bus: 1, Device: 2, Port: 3, Speed: port.SpeedSuper},
	}}
	svc := NewService(src, fakeResolver{ok: false})

	var reply ListAttachedDevicesReply
	if err := svc.ListAttachedDevices(&ListAttachedDevicesArgs{}, &reply); err != nil {
		t.Fatalf("ListAttachedDevices() error = %v", err)
	}
	if got := reply.Devices[0]; got.VendorName != "" || got.ProductName != "" {
		t.Errorf("VendorName/ProductName = %q/%q, want empty on resolver miss", got.VendorName, got.ProductName)
	}
}
