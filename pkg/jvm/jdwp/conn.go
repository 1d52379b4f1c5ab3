package jdwp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Zen8/java-language-server/pkg/jvm"
	"github.com/Zen8/java-language-server/pkg/logflags"
	"github.com/sirupsen/logrus"
)

const handshake = "JDWP-Handshake"

// conn owns the socket to the target VM. One goroutine (readLoop)
// reads every packet and demultiplexes replies to waiting commands and
// composite events to the event queue. Writes are serialized by
// writeMu; everything else shares mu.
type conn struct {
	sock  net.Conn
	rdr   *bufio.Reader
	log   *logrus.Entry
	sizes idSizes

	writeMu sync.Mutex
	nextID  uint32

	mu       sync.Mutex
	pending  map[uint32]chan *packet
	requests map[int32]jvm.EventRequest
	closed   bool

	events chan *jvm.EventSet

	// vm is set by newVM before readLoop starts; event parsing needs
	// it to mint thread and type mirrors.
	vm *vm
}

// exchangeHandshake performs the mutual "JDWP-Handshake" exchange that
// precedes all packet traffic.
func exchangeHandshake(sock net.Conn) error {
	if _, err := sock.Write([]byte(handshake)); err != nil {
		return err
	}
	reply := make([]byte, len(handshake))
	if _, err := io.ReadFull(sock, reply); err != nil {
		return err
	}
	if string(reply) != handshake {
		return fmt.Errorf("jdwp: bad handshake reply %q", reply)
	}
	return nil
}

func newConn(sock net.Conn) (*conn, error) {
	if err := exchangeHandshake(sock); err != nil {
		sock.Close()
		return nil, err
	}
	c := &conn{
		sock:     sock,
		rdr:      bufio.NewReader(sock),
		log:      logflags.WireLogger(),
		pending:  make(map[uint32]chan *packet),
		requests: make(map[int32]jvm.EventRequest),
		events:   make(chan *jvm.EventSet, 16),
	}
	// IDSizes must be fetched synchronously before any other command
	// so the codec knows how wide the target's identifiers are. The
	// read loop is not running yet, so read the reply inline.
	if err := c.fetchIDSizes(); err != nil {
		sock.Close()
		return nil, err
	}
	return c, nil
}

func (c *conn) fetchIDSizes() error {
	id := c.sendCommand(cmdSetVirtualMachine, cmdVMIDSizes, nil)
	for {
		p, err := readPacket(c.rdr)
		if err != nil {
			return err
		}
		if !p.isReply() || p.id != id {
			// The target does not send events before its first
			// reply; anything else here is a protocol violation.
			return fmt.Errorf("jdwp: unexpected packet during setup")
		}
		if p.errCode != errNone {
			return commandError(p.errCode)
		}
		d := newDecoder(&c.sizes, p.data)
		c.sizes.fieldID = int(d.readInt())
		c.sizes.methodID = int(d.readInt())
		c.sizes.objectID = int(d.readInt())
		c.sizes.refTypeID = int(d.readInt())
		c.sizes.frameID = int(d.readInt())
		return d.err
	}
}

// sendCommand writes one command packet and returns its id. It does
// not wait for the reply.
func (c *conn) sendCommand(set, cmd byte, data []byte) uint32 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nextID++
	id := c.nextID
	p := &packet{id: id, cmdSet: set, cmd: cmd, data: data}
	c.log.Debugf("-> cmd %d/%d id=%d len=%d", set, cmd, id, len(data))
	if err := writePacket(c.sock, p); err != nil {
		// The read loop will observe the broken socket and fail the
		// pending command.
		c.log.Debugf("write failed: %v", err)
	}
	return id
}

// command performs a full round trip and maps JDWP error codes to
// errors. It blocks until the target replies or disconnects.
func (c *conn) command(set, cmd byte, data []byte) (*decoder, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, jvm.ErrVMDisconnected
	}
	ch := make(chan *packet, 1)
	c.mu.Unlock()

	c.writeMu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil, jvm.ErrVMDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()
	p := &packet{id: id, cmdSet: set, cmd: cmd, data: data}
	c.log.Debugf("-> cmd %d/%d id=%d len=%d", set, cmd, id, len(data))
	err := writePacket(c.sock, p)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, jvm.ErrVMDisconnected
	}

	reply, ok := <-ch
	if !ok {
		return nil, jvm.ErrVMDisconnected
	}
	if reply.errCode != errNone {
		return nil, commandError(reply.errCode)
	}
	return newDecoder(&c.sizes, reply.data), nil
}

func commandError(code uint16) error {
	switch code {
	case errAbsentInformation:
		return jvm.ErrAbsentInformation
	case errVMDead:
		return jvm.ErrVMDisconnected
	default:
		return fmt.Errorf("jdwp: command failed with error %d", code)
	}
}

// readLoop runs for the life of the connection. On socket close it
// synthesizes the final disconnect event set; JDWP itself never sends
// one.
func (c *conn) readLoop() {
	for {
		p, err := readPacket(c.rdr)
		if err != nil {
			c.log.Debugf("read loop ends: %v", err)
			c.shutdown()
			return
		}
		if p.isReply() {
			c.mu.Lock()
			ch, ok := c.pending[p.id]
			if ok {
				delete(c.pending, p.id)
			}
			c.mu.Unlock()
			if ok {
				c.log.Debugf("<- reply id=%d err=%d len=%d", p.id, p.errCode, len(p.data))
				ch <- p
			} else {
				c.log.Debugf("<- unmatched reply id=%d", p.id)
			}
			continue
		}
		if p.cmdSet == cmdSetEvent && p.cmd == cmdEventComposite {
			set, err := c.vm.parseEventSet(p.data)
			if err != nil {
				c.log.Warnf("dropping malformed event set: %v", err)
				continue
			}
			c.events <- set
			continue
		}
		c.log.Debugf("<- ignoring command %d/%d from target", p.cmdSet, p.cmd)
	}
}

// shutdown fails outstanding commands and delivers the synthetic
// disconnect set. Safe to call once, from readLoop only.
func (c *conn) shutdown() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint32]chan *packet)
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
	c.sock.Close()
	c.events <- &jvm.EventSet{SuspendPolicy: jvm.SuspendNone, Events: []jvm.Event{jvm.VMDisconnectEvent{}}}
	close(c.events)
}

// registerRequest records an enabled request so events can be mapped
// back to it.
func (c *conn) registerRequest(id int32, req jvm.EventRequest) {
	c.mu.Lock()
	c.requests[id] = req
	c.mu.Unlock()
}

func (c *conn) unregisterRequest(id int32) {
	c.mu.Lock()
	delete(c.requests, id)
	c.mu.Unlock()
}

func (c *conn) lookupRequest(id int32) jvm.EventRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[id]
}
