// Package jdwp implements the dt_socket attaching connector: a client
// for the Java Debug Wire Protocol over TCP. Only the small command
// surface required by the jvm boundary is implemented; the session
// engine never imports this package directly.
package jdwp

import (
	"fmt"
	"net"
	"time"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

const dialTimeout = 10 * time.Second

// AttachingConnector attaches to a JVM started with
// -agentlib:jdwp=transport=dt_socket,server=y.
type AttachingConnector struct{}

var _ jvm.Connector = AttachingConnector{}

// NewAttachingConnector returns the dt_socket connector. Callers
// register it with jvm.RegisterConnector once at startup.
func NewAttachingConnector() AttachingConnector {
	return AttachingConnector{}
}

func (AttachingConnector) Transport() string { return "dt_socket" }

// Attach dials the target, performs the JDWP handshake and fetches the
// identifier sizes. A refused connection is returned as-is so callers
// can classify it as retryable with jvm.IsConnectionRefused.
func (AttachingConnector) Attach(host string, port int) (jvm.VirtualMachine, error) {
	sock, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), dialTimeout)
	if err != nil {
		return nil, err
	}
	c, err := newConn(sock)
	if err != nil {
		return nil, err
	}
	return newVM(c), nil
}
