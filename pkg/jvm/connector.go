package jvm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// Connector knows how to attach to a target VM over one kind of
// transport.
type Connector interface {
	// Transport is the name clients use to select this connector,
	// e.g. "dt_socket".
	Transport() string
	// Attach connects to a VM listening on host:port. When nothing is
	// listening yet the returned error satisfies IsConnectionRefused,
	// so callers can retry.
	Attach(host string, port int) (VirtualMachine, error)
}

var (
	connectorsMu sync.Mutex
	connectors   = make(map[string]Connector)
)

// RegisterConnector makes a connector available to AttachingConnector
// lookups. Registering two connectors for the same transport is a
// programming error.
func RegisterConnector(c Connector) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	if _, dup := connectors[c.Transport()]; dup {
		panic(fmt.Sprintf("jvm: connector for transport %q registered twice", c.Transport()))
	}
	connectors[c.Transport()] = c
}

// AttachingConnector returns the connector registered for the given
// transport name. The error for an unknown transport lists the known
// ones; it indicates a misconfiguration and is not retryable.
func AttachingConnector(transport string) (Connector, error) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	if c, ok := connectors[transport]; ok {
		return c, nil
	}
	known := make([]string, 0, len(connectors))
	for name := range connectors {
		known = append(known, name)
	}
	sort.Strings(known)
	return nil, fmt.Errorf("no connector for transport %q (known transports: %s)", transport, strings.Join(known, ", "))
}

// IsConnectionRefused reports whether err means that nothing is
// listening on the target port yet. This is the only failure class
// worth retrying during attach.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
