package service

import (
	"net"

	"github.com/Zen8/java-language-server/pkg/config"
)

// Config provides the configuration to start a DAP server for one debug
// session.
type Config struct {
	// Listener is used to accept the client connection.
	Listener net.Listener

	// DisconnectChan will be closed by the server when the client
	// disconnects or the session ends.
	DisconnectChan chan<- struct{}

	// Conf holds the settings loaded from the config file. May be nil,
	// in which case built-in defaults apply.
	Conf *config.Config
}
