package slot

// Context byte layout, matching the xHCI 32-byte Slot Context and Endpoint
// Context structures closely enough for this controller's purposes: the
// fields it reads or writes line up with real hardware, but fields it never
// touches (TT hub/port, interrupter target, Mult, LSA, streams) are left
// zeroed rather than modeled.
const (
	contextSize          = 32
	inputControlSize     = 32
	maxContextsPerDevice = 32 // index 0 = slot context, 1..31 = endpoints
)

// EndpointType is the 3-bit endpoint type field in an Endpoint Context,
// xHCI table 6-9.
type EndpointType uint8

const (
	EndpointTypeNotValid    EndpointType = 0
	EndpointTypeIsochOut    EndpointType = 1
	EndpointTypeBulkOut     EndpointType = 2
	EndpointTypeInterruptOut EndpointType = 3
	EndpointTypeControl     EndpointType = 4
	EndpointTypeIsochIn     EndpointType = 5
	EndpointTypeBulkIn      EndpointType = 6
	EndpointTypeInterruptIn EndpointType = 7
)

// IsIn reports whether the endpoint type is a device-to-host direction.
func (t EndpointType) IsIn() bool {
	return t == EndpointTypeIsochIn || t == EndpointTypeBulkIn || t == EndpointTypeInterruptIn
}

// IsControl reports whether the endpoint type is the bidirectional control
// type.
func (t EndpointType) IsControl() bool { return t == EndpointTypeControl }

func (t EndpointType) String() string {
	switch t {
	case EndpointTypeNotValid:
		return "NotValid"
	case EndpointTypeIsochOut:
		return "IsochOut"
	case EndpointTypeBulkOut:
		return "BulkOut"
	case EndpointTypeInterruptOut:
		return "InterruptOut"
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochIn:
		return "IsochIn"
	case EndpointTypeBulkIn:
		return "BulkIn"
	case EndpointTypeInterruptIn:
		return "InterruptIn"
	default:
		return "Unknown"
	}
}

// EndpointState is the 3-bit endpoint state field in an Endpoint Context,
// xHCI table 6-10. The specification's prose calls state 0 "idle"; this
// package uses the xHCI name "Disabled" for the same value.
type EndpointState uint8

const (
	EndpointStateDisabled EndpointState = 0
	EndpointStateRunning  EndpointState = 1
	EndpointStateHalted   EndpointState = 2
	EndpointStateStopped  EndpointState = 3
	EndpointStateError    EndpointState = 4
)

func slotContextOffset() uint64 { return inputControlSize }

func endpointContextOffset(endpointID uint8) uint64 {
	return inputControlSize + contextSize*uint64(endpointID)
}

// deviceContextEndpointOffset mirrors endpointContextOffset but for a Device
// Context, which has no leading Input Control Context.
func deviceContextEndpointOffset(endpointID uint8) uint64 {
	return contextSize * uint64(endpointID)
}

const deviceContextSlotOffset = 0
