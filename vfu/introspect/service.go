package introspect

import "github.com/ardnew/vxhci/xhci"

// StatusSource is the subset of *xhci.Controller the introspection service
// reads. Declared as an interface so tests can serve canned status without a
// running controller.
type StatusSource interface {
	Status() xhci.Status
	ListAttachedInfo() []xhci.AttachedInfo
}

// ControllerStatusArgs carries no fields; GetControllerStatus takes no
// parameters.
type ControllerStatusArgs struct{}

// ControllerStatusReply mirrors xhci.Status for RPC transport.
type ControllerStatusReply struct {
	Running        bool
	SlotsInUse     int
	SlotsTotal     int
	PortsOccupied  int
	PortsTotal     int
	EventRingDepth int
}

// ListAttachedDevicesArgs carries no fields; ListAttachedDevices takes no
// parameters.
type ListAttachedDevicesArgs struct{}

// AttachedDeviceInfo mirrors xhci.AttachedInfo for RPC transport, with the
// UUID and speed rendered as strings so the reply has no dependency on the
// core's internal types. VendorName/ProductName are empty unless a
// NameResolver was given to NewService and it recognized the device.
type AttachedDeviceInfo struct {
	ID          string
	Bus         uint8
	Device      uint8
	Port        uint8
	Speed       string
	VendorName  string
	ProductName string
}

// ListAttachedDevicesReply is the full attached-device table.
type ListAttachedDevicesReply struct {
	Devices []AttachedDeviceInfo
}

// NameResolver looks up human-readable vendor/product names for a device
// by the same (bus, device) pair the hot-plug protocol addresses it with.
// ok is false when the device's identifiers, or a name for them, can't be
// found; ListAttachedDevices leaves VendorName/ProductName empty in that
// case rather than failing the whole call.
type NameResolver interface {
	Resolve(bus, device uint8) (vendor, product string, ok bool)
}

// Service is the net/rpc receiver registered against the introspection
// socket. Both methods are read-only and never mutate controller state.
type Service struct {
	source   StatusSource
	resolver NameResolver // optional, may be nil
}

// NewService wraps source for RPC registration. resolver may be nil, in
// which case ListAttachedDevices never populates VendorName/ProductName.
func NewService(source StatusSource, resolver NameResolver) *Service {
	return &Service{source: source, resolver: resolver}
}

// GetControllerStatus reports run state and occupancy counts.
func (s *Service) GetControllerStatus(_ *ControllerStatusArgs, reply *ControllerStatusReply) error {
	st := s.source.Status()
	*reply = ControllerStatusReply{
		Running:        st.Running,
		SlotsInUse:     st.SlotsInUse,
		SlotsTotal:     st.SlotsTotal,
		PortsOccupied:  st.PortsOccupied,
		PortsTotal:     st.PortsTotal,
		EventRingDepth: st.EventRingDepth,
	}
	return nil
}

// ListAttachedDevices reports UUID, bus, device, port, and speed for every
// currently attached real device.
func (s *Service) ListAttachedDevices(_ *ListAttachedDevicesArgs, reply *ListAttachedDevicesReply) error {
	attached := s.source.ListAttachedInfo()
	devices := make([]AttachedDeviceInfo, len(attached))
	for i, a := range attached {
		devices[i] = AttachedDeviceInfo{
			ID:     a.ID.String(),
			Bus:    a.Bus,
			Device: a.Device,
			Port:   a.Port,
			Speed:  a.Speed.String(),
		}
		if s.resolver != nil {
			if vendor, product, ok := s.resolver.Resolve(a.Bus, a.Device); ok {
				devices[i].VendorName = vendor
				devices[i].ProductName = product
			}
		}
	}
	reply.Devices = devices
	return nil
}
