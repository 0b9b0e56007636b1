package pkg

import "errors"

// Real-device transfer errors.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrNoDevice indicates the device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidState indicates an invalid device or endpoint state for the
	// requested operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrNoResources indicates insufficient resources (e.g. URB slots).
	ErrNoResources = errors.New("no resources available")
)

// Controller-level errors, surfaced to callers of the xhci package rather
// than encoded as a guest-visible CompletionCode.
var (
	// ErrNoFreePort indicates attach found no free port matching the
	// device's USB version.
	ErrNoFreePort = errors.New("no free port for device speed")

	// ErrCouldNotDetermineSpeed indicates the real device reported no speed.
	ErrCouldNotDetermineSpeed = errors.New("could not determine device speed")

	// ErrAlreadyAttached indicates the (bus, device) pair already occupies a
	// port.
	ErrAlreadyAttached = errors.New("device already attached")

	// ErrNoSuchDevice indicates a detach for a (bus, device) pair that is
	// not currently attached.
	ErrNoSuchDevice = errors.New("no such attached device")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransferStatus represents the completion status of a real-device USB
// transfer, as reported by a realdevice.Device implementation.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess   TransferStatus = iota // Transfer completed successfully
	TransferStatusError                           // Transfer failed with error
	TransferStatusStall                           // Endpoint stalled
	TransferStatusTimeout                         // Transfer timed out
	TransferStatusCancelled                       // Transfer was cancelled
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusError:
		return "error"
	case TransferStatusStall:
		return "stall"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status, or nil for
// [TransferStatusSuccess].
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusStall:
		return ErrStall
	case TransferStatusTimeout:
		return ErrTimeout
	case TransferStatusCancelled:
		return ErrCancelled
	default:
		return ErrInvalidState
	}
}

// CompletionCode is the xHCI completion code reported to the guest in a
// Command Completion Event or Transfer Event TRB. Values match the xHCI
// specification's numeric encoding so they can be written directly into the
// TRB's status field.
type CompletionCode uint8

// Guest-visible completion codes. A subset of the xHCI table is named: the
// codes the controller emits (Success, TRBError, SlotNotEnabledError,
// NoSlotsAvailableError, IncompatibleDeviceError) plus Invalid,
// UsbTransactionError, StallError, ResourceError, ShortPacket and
// CommandRingStoppedError, which no code path currently produces. Other
// xHCI codes are not named.
const (
	CompletionCodeInvalid                 CompletionCode = 0
	CompletionCodeSuccess                 CompletionCode = 1
	CompletionCodeUsbTransactionError     CompletionCode = 4
	CompletionCodeTRBError                CompletionCode = 5
	CompletionCodeStallError              CompletionCode = 6
	CompletionCodeResourceError           CompletionCode = 7
	CompletionCodeSlotNotEnabledError     CompletionCode = 11
	CompletionCodeShortPacket             CompletionCode = 13
	CompletionCodeCommandRingStoppedError CompletionCode = 24
	CompletionCodeNoSlotsAvailableError   CompletionCode = 9
	CompletionCodeIncompatibleDeviceError CompletionCode = 17
)

// String returns the name of the completion code as it appears in the xHCI
// specification.
func (c CompletionCode) String() string {
	switch c {
	case CompletionCodeInvalid:
		return "Invalid"
	case CompletionCodeSuccess:
		return "Success"
	case CompletionCodeUsbTransactionError:
		return "UsbTransactionError"
	case CompletionCodeTRBError:
		return "TRBError"
	case CompletionCodeStallError:
		return "StallError"
	case CompletionCodeResourceError:
		return "ResourceError"
	case CompletionCodeSlotNotEnabledError:
		return "SlotNotEnabledError"
	case CompletionCodeShortPacket:
		return "ShortPacket"
	case CompletionCodeCommandRingStoppedError:
		return "CommandRingStoppedError"
	case CompletionCodeNoSlotsAvailableError:
		return "NoSlotsAvailableError"
	case CompletionCodeIncompatibleDeviceError:
		return "IncompatibleDeviceError"
	default:
		return "Unrecognized"
	}
}

// FromTransferStatus maps a real-device transfer outcome to the guest-visible
// completion code. Per the documented simplification (see DESIGN.md), a
// timed-out or stalled host transfer still reports Success with an empty
// payload rather than a distinct guest-visible error.
func FromTransferStatus(s TransferStatus) CompletionCode {
	return CompletionCodeSuccess
}
