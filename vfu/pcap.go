package vfu

import (
	"encoding/binary"
	"io"
	"os"
	"time"
)

// PCAP global header fields for the classic (non-swapped) format.
const (
	pcapMagic        = 0xa1b2c3d4
	pcapVersionMajor = 2
	pcapVersionMinor = 4
	pcapSnapLen      = 65535

	// PCAPLinkTypeUSBLinux is LINKTYPE_USB_LINUX: one usbmon packet record
	// per transfer, no isochronous descriptor trailer.
	PCAPLinkTypeUSBLinux = 189

	pcapGlobalHeaderSize = 24
	pcapRecordHeaderSize = 16 // ts_sec, ts_usec, incl_len, orig_len
	usbmonHeaderSize     = 48
)

// PCAPEventType is the one-character usbmon event type.
type PCAPEventType byte

// usbmon event types.
const (
	PCAPSubmission PCAPEventType = 'S'
	PCAPCompletion PCAPEventType = 'C'
	PCAPError      PCAPEventType = 'E'
)

// PCAPRecord is one transfer event as the usbmon wire format represents it.
// Setup is only meaningful when HasSetup is true (control transfers).
type PCAPRecord struct {
	URBID          uint64
	Type           PCAPEventType
	XferType       byte
	Endpoint       uint8
	DeviceNum      uint8
	BusNum         uint16
	HasSetup       bool
	Setup          [8]byte
	Status         int32
	Length         uint32
	CapturedLength uint32
	Timestamp      time.Time
}

// PCAPWriter is the outgoing boundary to the PCAP capture logger: an
// external collaborator the core only ever calls into, never implements.
type PCAPWriter interface {
	WriteRecord(rec PCAPRecord) error
	Close() error
}

// NopPCAPWriter discards every record, used when no capture path is
// configured.
type NopPCAPWriter struct{}

func (NopPCAPWriter) WriteRecord(PCAPRecord) error { return nil }
func (NopPCAPWriter) Close() error                 { return nil }

// FilePCAPWriter is the minimal reference PCAP writer cmd/vxhcid uses when
// given a capture path: a real PCAP logger is an external collaborator, but
// the module still needs to be runnable on its own.
type FilePCAPWriter struct {
	f io.WriteCloser
}

// NewFilePCAPWriter creates path, writes the PCAP global header for
// LINKTYPE_USB_LINUX, and returns a writer ready for WriteRecord.
func NewFilePCAPWriter(path string) (*FilePCAPWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	var hdr [pcapGlobalHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], pcapMagic)
	binary.LittleEndian.PutUint16(hdr[4:], pcapVersionMajor)
	binary.LittleEndian.PutUint16(hdr[6:], pcapVersionMinor)
	binary.LittleEndian.PutUint32(hdr[16:], pcapSnapLen)
	binary.LittleEndian.PutUint32(hdr[20:], PCAPLinkTypeUSBLinux)
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &FilePCAPWriter{f: f}, nil
}

// WriteRecord appends one PCAP record frame and its 48-byte usbmon packet
// header to the capture file.
func (w *FilePCAPWriter) WriteRecord(rec PCAPRecord) error {
	var body [usbmonHeaderSize]byte
	binary.LittleEndian.PutUint64(body[0:], rec.URBID)
	body[8] = byte(rec.Type)
	body[9] = rec.XferType
	body[10] = rec.Endpoint
	body[11] = rec.DeviceNum
	binary.LittleEndian.PutUint16(body[12:], rec.BusNum)
	if !rec.HasSetup {
		body[14] = 1
	}
	body[15] = 0
	binary.LittleEndian.PutUint64(body[16:], uint64(rec.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(body[24:], uint32(rec.Timestamp.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(body[28:], uint32(rec.Status))
	binary.LittleEndian.PutUint32(body[32:], rec.Length)
	binary.LittleEndian.PutUint32(body[36:], rec.CapturedLength)
	if rec.HasSetup {
		copy(body[40:48], rec.Setup[:])
	}

	var frame [pcapRecordHeaderSize]byte
	binary.LittleEndian.PutUint32(frame[0:], uint32(rec.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(frame[4:], uint32(rec.Timestamp.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(frame[8:], usbmonHeaderSize)
	binary.LittleEndian.PutUint32(frame[12:], usbmonHeaderSize)

	if _, err := w.f.Write(frame[:]); err != nil {
		return err
	}
	_, err := w.f.Write(body[:])
	return err
}

// Close closes the underlying capture file.
func (w *FilePCAPWriter) Close() error { return w.f.Close() }
