package dap

import (
	"encoding/json"
	"fmt"
)

// AttachConfig is the collection of attach request attributes recognized
// by this DAP implementation.
type AttachConfig struct {
	// The JDWP port the target VM is listening on. Required and must
	// not be 0.
	Port int `json:"port,omitempty"`

	// Host name of the machine the target VM runs on.
	// (Default: "localhost")
	HostName string `json:"hostName,omitempty"`

	// Name of the debugging transport to use.
	// (Default: "dt_socket")
	Transport string `json:"transport,omitempty"`

	// Directories searched when resolving source paths reported by the
	// target VM. Entries that do not exist or are not directories are
	// dropped with a warning.
	SourceRoots []string `json:"sourceRoots,omitempty"`

	// Maximum number of stack frames returned for one stackTrace
	// request. (Default: `50`)
	StackTraceDepth int `json:"stackTraceDepth,omitempty"`
}

// unmarshalLaunchAttachArgs wraps unmarshalling of launch/attach request's
// arguments attribute. Upon unmarshal failure, it returns an error massaged
// to be suitable for end-users.
func unmarshalLaunchAttachArgs(input json.RawMessage, config interface{}) error {
	if err := json.Unmarshal(input, config); err != nil {
		if uerr, ok := err.(*json.UnmarshalTypeError); ok {
			// Format json.UnmarshalTypeError error string in our own way. E.g.,
			//   "json: cannot unmarshal string into Go struct field AttachConfig.port of type int"
			//   => "cannot unmarshal string into 'port' of type int"
			return fmt.Errorf("cannot unmarshal %v into %q of type %v", uerr.Value, uerr.Field, uerr.Type)
		}
		return err
	}
	return nil
}
