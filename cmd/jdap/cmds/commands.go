// Package cmds implements the jdap command line interface.
package cmds

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zen8/java-language-server/pkg/config"
	"github.com/Zen8/java-language-server/pkg/logflags"
	"github.com/Zen8/java-language-server/service"
	"github.com/Zen8/java-language-server/service/dap"
)

const version string = "0.2.0"

var (
	// addr is the debugging server listen address.
	addr string
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// conf is the configuration file settings.
	conf *config.Config
)

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "jdap",
		Short: "jdap is a Debug Adapter Protocol server for Java.",
		Long: `Starts a TCP server communicating via Debug Adaptor Protocol (DAP).

The server attaches to a remote JVM started with
-agentlib:jdwp=transport=dt_socket,server=y and debugs it on behalf of
the client. There is no terminal interface; editors are the expected
clients. The server supports a single client for a single debug
session and exits when the client disconnects.`,
		Run: dapCmd,
	}
	rootCommand.PersistentFlags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "Debugging server listen address.")
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugging server logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'jdap help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'jdap help log').")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jdap version: %s\n", version)
		},
	}
	rootCommand.AddCommand(versionCommand)

	// 'log' help topic.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag.
Adding the --log-output flag further configures which components produce logs:

	dap	Log all DAP messages exchanged with the client
	jvmwire	Log all JDWP packets exchanged with the target VM

The default value of --log-output is "dap".

By default logs go to stderr; use --log-dest to redirect them to a file
or to a file descriptor number inherited from the parent process.`,
	})

	return rootCommand
}

func dapCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		if len(args) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: arguments ignored with dap; specify the target via the attach request instead\n")
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Printf("couldn't start listener: %s\n", err)
			return 1
		}
		fmt.Printf("DAP server listening at: %s\n", listener.Addr())

		disconnectChan := make(chan struct{})
		server := dap.NewServer(&service.Config{
			Listener:       listener,
			DisconnectChan: disconnectChan,
			Conf:           conf,
		})
		defer server.Stop()

		server.Run()
		waitForDisconnectSignal(disconnectChan)
		return 0
	}()
	os.Exit(status)
}

// waitForDisconnectSignal returns when the client disconnects or the
// process is interrupted.
func waitForDisconnectSignal(disconnectChan chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	select {
	case <-ch:
	case <-disconnectChan:
	}
}
