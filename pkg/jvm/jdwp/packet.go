package jdwp

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	headerSize = 11
	flagReply  = 0x80
)

// JDWP command sets and commands used by this client.
const (
	cmdSetVirtualMachine  = 1
	cmdSetReferenceType   = 2
	cmdSetMethod          = 6
	cmdSetObjectReference = 9
	cmdSetStringReference = 10
	cmdSetThreadReference = 11
	cmdSetEventRequest    = 15
	cmdSetStackFrame      = 16
	cmdSetEvent           = 64

	cmdVMAllClasses = 3
	cmdVMAllThreads = 4
	cmdVMDispose    = 6
	cmdVMIDSizes    = 7
	cmdVMResume     = 9
	cmdVMExit       = 10

	cmdRefTypeSignature  = 1
	cmdRefTypeMethods    = 5
	cmdRefTypeSourceFile = 7

	cmdMethodLineTable     = 1
	cmdMethodVariableTable = 2

	cmdObjectReferenceType = 1

	cmdStringValue = 1

	cmdThreadName       = 1
	cmdThreadFrames     = 6
	cmdThreadFrameCount = 7

	cmdEventRequestSet   = 1
	cmdEventRequestClear = 2

	cmdStackFrameGetValues = 1

	cmdEventComposite = 100
)

// JDWP event kinds.
const (
	eventKindSingleStep   = 1
	eventKindBreakpoint   = 2
	eventKindClassPrepare = 8
	eventKindVMStart      = 90
	eventKindVMDeath      = 99
)

// Event request modifier kinds.
const (
	modKindCount           = 1
	modKindLocationOnly    = 7
	modKindStep            = 10
	modKindSourceNameMatch = 12
)

// JDWP error codes this client cares about by name.
const (
	errNone              = 0
	errAbsentInformation = 101
	errVMDead            = 112
)

// idSizes holds the target-reported widths of its opaque identifiers.
// Every modern JVM reports 8 for all of them, but the protocol allows
// 4 and the codec honors whatever the handshake returned.
type idSizes struct {
	fieldID   int
	methodID  int
	objectID  int
	refTypeID int
	frameID   int
}

// packet is one JDWP message, either a command or a reply.
type packet struct {
	id      uint32
	flags   byte
	cmdSet  byte
	cmd     byte
	errCode uint16
	data    []byte
}

func (p *packet) isReply() bool { return p.flags&flagReply != 0 }

func readPacket(r io.Reader) (*packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	if length < headerSize {
		return nil, fmt.Errorf("jdwp: invalid packet length %d", length)
	}
	p := &packet{
		id:    binary.BigEndian.Uint32(hdr[4:8]),
		flags: hdr[8],
	}
	if p.isReply() {
		p.errCode = binary.BigEndian.Uint16(hdr[9:11])
	} else {
		p.cmdSet = hdr[9]
		p.cmd = hdr[10]
	}
	p.data = make([]byte, length-headerSize)
	if _, err := io.ReadFull(r, p.data); err != nil {
		return nil, err
	}
	return p, nil
}

func writePacket(w io.Writer, p *packet) error {
	buf := make([]byte, headerSize+len(p.data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[4:8], p.id)
	buf[8] = p.flags
	buf[9] = p.cmdSet
	buf[10] = p.cmd
	copy(buf[headerSize:], p.data)
	_, err := w.Write(buf)
	return err
}

// encoder builds a command payload in wire order.
type encoder struct {
	sizes *idSizes
	buf   []byte
}

func newEncoder(sizes *idSizes) *encoder {
	return &encoder{sizes: sizes}
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) writeByte(v byte) { e.buf = append(e.buf, v) }

func (e *encoder) writeInt(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeLong(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeString(s string) {
	e.writeInt(int32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeSized(v uint64, size int) {
	for i := size - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(uint(i)*8)))
	}
}

func (e *encoder) writeObjectID(v uint64)  { e.writeSized(v, e.sizes.objectID) }
func (e *encoder) writeRefTypeID(v uint64) { e.writeSized(v, e.sizes.refTypeID) }
func (e *encoder) writeMethodID(v uint64)  { e.writeSized(v, e.sizes.methodID) }
func (e *encoder) writeFrameID(v uint64)   { e.writeSized(v, e.sizes.frameID) }

// writeLocation emits the wire form of an executable location.
func (e *encoder) writeLocation(l *location) {
	e.writeByte(l.typeTag)
	e.writeRefTypeID(l.declaring.id)
	e.writeMethodID(l.methodID)
	e.writeLong(l.codeIndex)
}

// decoder walks a reply payload in wire order. Truncated payloads set
// the sticky err instead of panicking; callers check err once at the
// end.
type decoder struct {
	sizes *idSizes
	buf   []byte
	off   int
	err   error
}

func newDecoder(sizes *idSizes, data []byte) *decoder {
	return &decoder{sizes: sizes, buf: data}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = io.ErrUnexpectedEOF
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) readByte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) readInt() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *decoder) readLong() int64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (d *decoder) readString() string {
	n := d.readInt()
	if n < 0 {
		d.err = fmt.Errorf("jdwp: negative string length %d", n)
		return ""
	}
	b := d.take(int(n))
	return string(b)
}

func (d *decoder) readSized(size int) uint64 {
	b := d.take(size)
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func (d *decoder) readObjectID() uint64  { return d.readSized(d.sizes.objectID) }
func (d *decoder) readRefTypeID() uint64 { return d.readSized(d.sizes.refTypeID) }
func (d *decoder) readMethodID() uint64  { return d.readSized(d.sizes.methodID) }
func (d *decoder) readFrameID() uint64   { return d.readSized(d.sizes.frameID) }
