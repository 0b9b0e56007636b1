package hotplug

import (
	"fmt"
	"io"
)

// CommandID identifies the operation a Command frame requests.
type CommandID uint8

const (
	CommandAttach CommandID = 0
	CommandDetach CommandID = 1
	CommandList   CommandID = 2
)

func (id CommandID) String() string {
	switch id {
	case CommandAttach:
		return "Attach"
	case CommandDetach:
		return "Detach"
	case CommandList:
		return "List"
	default:
		return fmt.Sprintf("Unrecognized(%d)", uint8(id))
	}
}

// Command is one decoded request frame: 3 bytes [id, bus, device], plus an
// ancillary file descriptor for Attach. Bus/Device are ignored for List.
type Command struct {
	ID     CommandID
	Bus    uint8
	Device uint8

	// FD is the device file descriptor passed alongside an Attach command.
	// The caller owns its lifetime; EncodeCommand does not close it and
	// DecodeCommand hands ownership to whoever reads the frame.
	FD int
}

// commandFrameSize is the fixed length of a Command frame's byte payload,
// excluding the ancillary file descriptor carried out-of-band.
const commandFrameSize = 3

// EncodeCommand serializes cmd's 3-byte payload. The ancillary file
// descriptor, if any, is not part of the returned bytes — callers send it
// alongside via the transport's control-message mechanism (see
// sendCommand/recvCommand in conn.go).
func EncodeCommand(cmd Command) []byte {
	return []byte{byte(cmd.ID), cmd.Bus, cmd.Device}
}

// DecodeCommand parses a 3-byte Command frame. fd is attached to the
// returned Command verbatim (-1 if none accompanied the frame).
func DecodeCommand(b []byte, fd int) (Command, error) {
	if len(b) != commandFrameSize {
		return Command{}, fmt.Errorf("hotplug: command frame must be %d bytes, got %d", commandFrameSize, len(b))
	}
	id := CommandID(b[0])
	switch id {
	case CommandAttach, CommandDetach, CommandList:
	default:
		return Command{}, fmt.Errorf("hotplug: unrecognized command id %d", b[0])
	}
	return Command{ID: id, Bus: b[1], Device: b[2], FD: fd}, nil
}

// ResponseCode identifies a Response frame's outcome.
type ResponseCode uint8

const (
	ResponseSuccessfulOperation     ResponseCode = 0
	ResponseListFollowing           ResponseCode = 1
	ResponseNoFreePort              ResponseCode = 2
	ResponseCouldNotDetermineSpeed  ResponseCode = 3
	ResponseFailedToOpenFd          ResponseCode = 4
	ResponseAlreadyAttached         ResponseCode = 5
	ResponseNoSuchDevice            ResponseCode = 6
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseSuccessfulOperation:
		return "SuccessfulOperation"
	case ResponseListFollowing:
		return "ListFollowing"
	case ResponseNoFreePort:
		return "NoFreePort"
	case ResponseCouldNotDetermineSpeed:
		return "CouldNotDetermineSpeed"
	case ResponseFailedToOpenFd:
		return "FailedToOpenFd"
	case ResponseAlreadyAttached:
		return "AlreadyAttached"
	case ResponseNoSuchDevice:
		return "NoSuchDevice"
	default:
		return "Invalid"
	}
}

// BusDevice identifies one attached device by its bus/device address, as
// reported in a ListFollowing trailer.
type BusDevice struct {
	Bus    uint8
	Device uint8
}

// Response is one decoded response frame: a 1-byte code, with a device list
// trailer when Code is ResponseListFollowing.
type Response struct {
	Code    ResponseCode
	Devices []BusDevice
}

// EncodeResponse serializes resp, including the ListFollowing trailer when
// present.
func EncodeResponse(resp Response) []byte {
	if resp.Code != ResponseListFollowing {
		return []byte{byte(resp.Code)}
	}
	out := make([]byte, 0, 2+2*len(resp.Devices))
	out = append(out, byte(resp.Code), byte(len(resp.Devices)))
	for _, d := range resp.Devices {
		out = append(out, d.Bus, d.Device)
	}
	return out
}

// DecodeResponse reads one Response frame from r, including its trailer if
// any. Codes 7 and above are reported as an error rather than a decoded
// Invalid value, since no caller of this codec ever needs to round-trip one.
func DecodeResponse(r io.Reader) (Response, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Response{}, err
	}
	code := ResponseCode(hdr[0])
	if code >= 7 {
		return Response{}, fmt.Errorf("hotplug: invalid response code %d", hdr[0])
	}
	if code != ResponseListFollowing {
		return Response{Code: code}, nil
	}

	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return Response{}, err
	}
	devices := make([]BusDevice, n[0])
	buf := make([]byte, 2*int(n[0]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return Response{}, err
	}
	for i := range devices {
		devices[i] = BusDevice{Bus: buf[2*i], Device: buf[2*i+1]}
	}
	return Response{Code: code, Devices: devices}, nil
}
