// Package dap implements a DAP server for debugging Java programs.
// The frontend connects over TCP and drives a single debug session:
// the server attaches to a remote JVM through its debug wire protocol,
// translates DAP requests into VM commands and forwards VM events back
// to the client. The server operates via three goroutines:
// (1) Main goroutine where the server is created via NewServer(),
// started via Run() and stopped via Stop().
// (2) Run goroutine started from Run() that accepts a client connection,
// reads, decodes and processes each request, issuing commands to the
// attached VM and sending back events and responses.
// (3) Event loop goroutine started on attach that drains the VM's
// event stream and pushes asynchronous notifications to the client.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/Zen8/java-language-server/pkg/jvm"
	"github.com/Zen8/java-language-server/pkg/logflags"
	"github.com/Zen8/java-language-server/service"
)

// Server implements a DAP server that can accept a single client for
// a single debug session. It does not support restarting.
type Server struct {
	// config is all the information necessary to start the server.
	config *service.Config
	// listener is used to accept the client connection.
	listener net.Listener
	// conn is the accepted client connection.
	conn net.Conn
	// stopChan is closed when the server is Stop()-ed. This can be used to signal
	// to goroutines run by the server that it's time to quit.
	stopChan chan struct{}
	// reader is used to read requests from the connection.
	reader *bufio.Reader
	// log is used for structured logging.
	log *logrus.Entry
	// console carries user-facing diagnostics to the client as output events.
	console *logrus.Entry
	// sendMu serializes writes to the client connection. Responses come
	// from the run goroutine while events come from the event loop.
	sendMu sync.Mutex

	// mu guards the session state below, shared between the run
	// goroutine and the event loop goroutine.
	mu sync.Mutex
	// vm is the attached target VM; nil while no session is active.
	vm jvm.VirtualMachine
	// breakpoints owns all breakpoint state of the session.
	breakpoints *breakpointManager
	// sources maps target-reported source paths to local files.
	sources *sourceResolver
	// args tracks special settings for handling debug session requests.
	args sessionArgs
}

// sessionArgs captures attach request arguments that impact handling of
// subsequent requests.
type sessionArgs struct {
	// stackTraceDepth is the maximum length of the returned list of stack frames.
	stackTraceDepth int
}

var defaultArgs = sessionArgs{
	stackTraceDepth: 50,
}

// Attach is retried while nothing is listening on the target port yet,
// so the adapter can be started before (or concurrently with) the JVM.
const (
	attachAttempts   = 30
	attachRetryDelay = 500 * time.Millisecond
)

// NewServer creates a new DAP Server. It takes an opened Listener
// via config and assumes its ownership. config.DisconnectChan has to be set;
// it will be closed by the server when the client disconnects or requests
// shutdown. Once DisconnectChan is closed, Server.Stop() must be called.
func NewServer(config *service.Config) *Server {
	logger := logflags.DAPLogger()
	logger.Debug("DAP server pid = ", os.Getpid())
	s := &Server{
		config:   config,
		listener: config.Listener,
		stopChan: make(chan struct{}),
		log:      logger,
		args:     defaultArgs,
	}
	s.console = newConsoleLogger(s)
	return s
}

// Stop stops the DAP service, closes the listener and the client
// connection, and disposes the attached VM if any. The target process
// keeps running. This method mustn't be called more than once.
func (s *Server) Stop() {
	s.listener.Close()
	close(s.stopChan)
	if s.conn != nil {
		// Unless Stop() was called after serveDAPCodec()
		// returned, this will result in closed connection error
		// on next read, breaking out of the read loop and
		// allowing the run goroutine to exit.
		s.conn.Close()
	}
	if vm := s.currentVM(); vm != nil {
		if err := vm.Dispose(); err != nil && !errors.Is(err, jvm.ErrVMDisconnected) {
			s.log.Error(err)
		}
		s.releaseVM()
	}
}

// signalDisconnect closes config.DisconnectChan if not nil, which
// signals that the client disconnected or there was a client
// connection failure. Since the server currently services only one
// client, this can be used as a signal to the entire server via
// Stop(). The function safeguards against closing the channel more
// than once and can be called multiple times. It is not thread-safe
// and is currently only called from the run goroutine.
func (s *Server) signalDisconnect() {
	if s.config.DisconnectChan != nil {
		close(s.config.DisconnectChan)
		s.config.DisconnectChan = nil
	}
}

// Run launches a new goroutine where it accepts a client connection
// and starts processing requests from it. Use Stop() to close connection.
// The server does not support multiple clients, serially or in parallel.
// The server should be restarted for every new debug session.
// The VM won't be attached until an attach request is received.
func (s *Server) Run() {
	go func() {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("Error accepting client connection: %s\n", err)
			}
			s.signalDisconnect()
			return
		}
		s.conn = conn
		s.serveDAPCodec()
	}()
}

// serveDAPCodec reads and decodes requests from the client
// until it encounters an error or EOF, when it sends
// the disconnect signal and returns.
func (s *Server) serveDAPCodec() {
	defer s.signalDisconnect()
	s.reader = bufio.NewReader(s.conn)
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			stopRequested := false
			select {
			case <-s.stopChan:
				stopRequested = true
			default:
			}
			if err != io.EOF && !stopRequested {
				s.log.Error("DAP error: ", err)
			}
			return
		}
		s.handleRequest(request)
	}
}

func (s *Server) handleRequest(request dap.Message) {
	defer func() {
		// In case a handler panics, we catch the panic and send an error response
		// back to the client.
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	jsonmsg, _ := json.Marshal(request)
	s.log.Debug("[<- from client]", string(jsonmsg))

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		// Only attach is implemented; say so instead of silently failing.
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.onAttachRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.TerminateRequest:
		s.onTerminateRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.SetFunctionBreakpointsRequest:
		s.onSetFunctionBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		s.onSetExceptionBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.NextRequest:
		s.onNextRequest(request)
	case *dap.StepInRequest:
		s.onStepInRequest(request)
	case *dap.StepOutRequest:
		s.onStepOutRequest(request)
	case *dap.PauseRequest:
		s.onPauseRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.RestartRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.SourceRequest:
		// Source cannot be retrieved from the target VM.
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.SetVariableRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.ExceptionInfoRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.LoadedSourcesRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.StepBackRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.ReverseContinueRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	default:
		// This is a DAP message that go-dap has a struct for, so
		// decoding succeeded, but this function does not know how
		// to handle.
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("Unable to process %#v\n", request))
	}
}

func (s *Server) send(message dap.Message) {
	jsonmsg, _ := json.Marshal(message)
	s.log.Debug("[-> to client]", string(jsonmsg))
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	dap.WriteProtocolMessage(s.conn, message)
}

func (s *Server) currentVM() jvm.VirtualMachine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vm
}

// releaseVM drops the session state. Called when the target VM is gone;
// no target-side cleanup is attempted.
func (s *Server) releaseVM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm = nil
	if s.breakpoints != nil {
		s.breakpoints.clear()
	}
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsTerminateRequest = true
	response.Body.SupportsFunctionBreakpoints = false
	response.Body.SupportsConditionalBreakpoints = false
	response.Body.SupportsEvaluateForHovers = false
	response.Body.SupportsSetVariable = false
	response.Body.SupportsRestartRequest = false
	response.Body.SupportsStepBack = false
	s.send(response)
}

func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	s.sendErrorResponse(request.Request,
		FailedToLaunch, "Failed to launch",
		"launching is not supported, attach to a running JVM instead")
}

func (s *Server) onAttachRequest(request *dap.AttachRequest) {
	if s.currentVM() != nil {
		s.sendErrorResponse(request.Request,
			FailedToAttach, "Failed to attach",
			"debug session already in progress")
		return
	}

	args := AttachConfig{
		HostName:        "localhost",
		Transport:       s.config.Conf.DefaultTransportOrFallback(),
		StackTraceDepth: defaultArgs.stackTraceDepth,
	}
	if c := s.config.Conf; c != nil && c.StackTraceDepth != nil && *c.StackTraceDepth > 0 {
		args.StackTraceDepth = *c.StackTraceDepth
	}
	if err := unmarshalLaunchAttachArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request,
			FailedToAttach, "Failed to attach", err.Error())
		return
	}
	if args.Port == 0 {
		s.sendErrorResponse(request.Request,
			FailedToAttach, "Failed to attach",
			"The port attribute is missing in debug configuration.")
		return
	}

	connector, err := jvm.AttachingConnector(args.Transport)
	if err != nil {
		s.sendErrorResponse(request.Request,
			FailedToAttach, "Failed to attach", err.Error())
		return
	}

	var roots []string
	if c := s.config.Conf; c != nil {
		roots = append(roots, c.SourceRoots...)
	}
	roots = append(roots, args.SourceRoots...)
	roots = s.validateSourceRoots(roots)

	s.console.Infof("Attaching to %s:%d over %s", args.HostName, args.Port, args.Transport)
	var vm jvm.VirtualMachine
	for attempt := 1; attempt <= attachAttempts; attempt++ {
		vm, err = connector.Attach(args.HostName, args.Port)
		if err == nil {
			break
		}
		if !jvm.IsConnectionRefused(err) {
			// Not the "nothing listening yet" class; retrying won't help.
			break
		}
		if attempt < attachAttempts {
			time.Sleep(attachRetryDelay)
		}
	}
	if err != nil {
		s.sendErrorResponse(request.Request,
			FailedToAttach, "Failed to attach", err.Error())
		return
	}

	s.mu.Lock()
	s.vm = vm
	s.breakpoints = newBreakpointManager(vm, s.log, s.console)
	s.sources = newSourceResolver(roots, s.console)
	s.args.stackTraceDepth = args.StackTraceDepth
	s.mu.Unlock()
	go s.eventLoop(vm)

	// Notify the client that the adapter is ready to start accepting
	// configuration requests for setting breakpoints, etc. The client
	// will end the configuration sequence with 'configurationDone'.
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.AttachResponse{Response: *newResponse(request.Request)})
}

// validateSourceRoots drops configured roots that do not exist or are
// not directories. Bad roots are a warning, not a fatal attach error.
func (s *Server) validateSourceRoots(roots []string) []string {
	valid := roots[:0]
	for _, root := range roots {
		fi, err := os.Stat(root)
		if err != nil || !fi.IsDir() {
			s.console.Warnf("Skipping source root %s: not a directory", root)
			continue
		}
		valid = append(valid, root)
	}
	return valid
}

// onDisconnectRequest handles the DisconnectRequest. Per the DAP spec,
// it disconnects the debuggee and signals that the debug adaptor
// (in our case this TCP server) can be terminated.
func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	if vm := s.currentVM(); vm != nil {
		// The VM may already be gone; that is the expected way for a
		// session to end and not an error.
		if err := vm.Dispose(); err != nil && !errors.Is(err, jvm.ErrVMDisconnected) {
			s.log.Error(err)
		}
		s.releaseVM()
	}
	s.signalDisconnect()
}

func (s *Server) onTerminateRequest(request *dap.TerminateRequest) {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request.Request,
			UnableToTerminate, "Unable to terminate", "no debug session active")
		return
	}
	if err := vm.Exit(1); err != nil && !errors.Is(err, jvm.ErrVMDisconnected) {
		s.sendErrorResponse(request.Request,
			UnableToTerminate, "Unable to terminate", err.Error())
		return
	}
	s.send(&dap.TerminateResponse{Response: *newResponse(request.Request)})
}

func (s *Server) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	if request.Arguments.Source.Path == "" {
		s.sendErrorResponse(request.Request,
			UnableToSetBreakpoints, "Unable to set breakpoints",
			"empty source path in request")
		return
	}
	bm := s.breakpointManager()
	if bm == nil {
		s.sendErrorResponse(request.Request,
			UnableToSetBreakpoints, "Unable to set breakpoints", "no debug session active")
		return
	}
	response := &dap.SetBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = bm.setBreakpoints(request.Arguments.Source, request.Arguments.Breakpoints)
	s.send(response)
}

func (s *Server) breakpointManager() *breakpointManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm == nil {
		return nil
	}
	return s.breakpoints
}

// onSetFunctionBreakpointsRequest accepts and ignores the request.
// Clients send it even when 'supportsFunctionBreakpoints' is off, and
// an error response would surface as a session failure.
func (s *Server) onSetFunctionBreakpointsRequest(request *dap.SetFunctionBreakpointsRequest) {
	if len(request.Arguments.Breakpoints) > 0 {
		s.console.Warn("Function breakpoints are not supported")
	}
	response := &dap.SetFunctionBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = []dap.Breakpoint{}
	s.send(response)
}

func (s *Server) onSetExceptionBreakpointsRequest(request *dap.SetExceptionBreakpointsRequest) {
	// Unlike what DAP documentation claims, this request is always sent
	// even though we specified no filters at initialization. Handle as no-op.
	if len(request.Arguments.Filters) > 0 {
		s.console.Warn("Exception breakpoints are not supported")
	}
	s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
}

func (s *Server) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if bm := s.breakpointManager(); bm != nil {
		bm.configurationDone()
	}
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	// A target started suspended is released here, once breakpoints are
	// in place.
	if vm := s.currentVM(); vm != nil {
		if err := vm.Resume(); err != nil && !errors.Is(err, jvm.ErrVMDisconnected) {
			s.log.Errorf("Failed to resume target: %v", err)
		}
	}
}

func (s *Server) onContinueRequest(request *dap.ContinueRequest) {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request.Request,
			FailedToContinue, "Unable to continue", "no debug session active")
		return
	}
	if err := vm.Resume(); err != nil {
		s.sendErrorResponse(request.Request,
			FailedToContinue, "Unable to continue", err.Error())
		return
	}
	response := &dap.ContinueResponse{Response: *newResponse(request.Request)}
	response.Body.AllThreadsContinued = true
	s.send(response)
}

func (s *Server) onNextRequest(request *dap.NextRequest) {
	if s.doStep(request.Request, request.Arguments.ThreadId, jvm.StepOver) {
		s.send(&dap.NextResponse{Response: *newResponse(request.Request)})
	}
}

func (s *Server) onStepInRequest(request *dap.StepInRequest) {
	if s.doStep(request.Request, request.Arguments.ThreadId, jvm.StepInto) {
		s.send(&dap.StepInResponse{Response: *newResponse(request.Request)})
	}
}

func (s *Server) onStepOutRequest(request *dap.StepOutRequest) {
	if s.doStep(request.Request, request.Arguments.ThreadId, jvm.StepOut) {
		s.send(&dap.StepOutResponse{Response: *newResponse(request.Request)})
	}
}

// doStep creates a one-shot line step request for the given thread and
// resumes the VM. The count filter turns the target's naturally
// repeating step notifications into a single "step one line". An
// unknown thread ID is logged and treated as a no-op success: the
// client may race a stale ID against a just-exited thread. Returns
// whether the caller should send a success response.
func (s *Server) doStep(request dap.Request, threadID int, depth jvm.StepDepth) bool {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request, FailedToStep, "Unable to step", "no debug session active")
		return false
	}
	threads, err := vm.AllThreads()
	if err != nil {
		s.sendErrorResponse(request, FailedToStep, "Unable to step", err.Error())
		return false
	}
	var thread jvm.ThreadReference
	for _, t := range threads {
		if t.UniqueID() == int64(threadID) {
			thread = t
			break
		}
	}
	if thread == nil {
		s.log.Warnf("Cannot step: no thread with id %d", threadID)
		return true
	}
	req := vm.EventRequestManager().CreateStepRequest(thread, jvm.StepLine, depth)
	req.SetSuspendPolicy(jvm.SuspendAll)
	req.AddCountFilter(1)
	if err := req.Enable(); err != nil {
		s.sendErrorResponse(request, FailedToStep, "Unable to step", err.Error())
		return false
	}
	if err := vm.Resume(); err != nil {
		s.sendErrorResponse(request, FailedToStep, "Unable to step", err.Error())
		return false
	}
	return true
}

// onPauseRequest sends a not-yet-implemented error response. The target
// wire protocol supports suspending, but mapping an asynchronous pause
// into the stopped-event flow has not been done yet.
func (s *Server) onPauseRequest(request *dap.PauseRequest) {
	s.sendNotYetImplementedErrorResponse(request.Request)
}

func (s *Server) onThreadsRequest(request *dap.ThreadsRequest) {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request.Request,
			UnableToDisplayThreads, "Unable to display threads", "no debug session active")
		return
	}
	ts, err := vm.AllThreads()
	if err != nil {
		s.sendErrorResponse(request.Request,
			UnableToDisplayThreads, "Unable to display threads", err.Error())
		return
	}
	threads := make([]dap.Thread, len(ts))
	if len(threads) == 0 {
		// The DAP spec states that "even if a debug adapter does not
		// support multiple threads, it must implement the threads
		// request and return a single (dummy) thread".
		threads = []dap.Thread{{Id: 1, Name: "Dummy"}}
	} else {
		for i, t := range ts {
			threads[i].Id = int(t.UniqueID())
			name, err := t.Name()
			if err != nil {
				name = fmt.Sprintf("Thread-%d", t.UniqueID())
			}
			threads[i].Name = name
		}
	}
	response := &dap.ThreadsResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ThreadsResponseBody{Threads: threads},
	}
	s.send(response)
}

// onStackTraceRequest handles 'stackTrace' requests.
// This is a mandatory request to support.
func (s *Server) onStackTraceRequest(request *dap.StackTraceRequest) {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request.Request,
			UnableToProduceStackTrace, "Unable to produce stack trace", "no debug session active")
		return
	}
	frames, firstID, err := threadFrames(vm, request.Arguments.ThreadId)
	if err != nil {
		s.sendErrorResponse(request.Request,
			UnableToProduceStackTrace, "Unable to produce stack trace", err.Error())
		return
	}

	stackFrames := make([]dap.StackFrame, len(frames))
	for i, frame := range frames {
		loc := frame.Location()
		stackFrames[i] = dap.StackFrame{
			Id:   firstID + i,
			Name: fmt.Sprintf("%s.%s", loc.DeclaringType().Name(), loc.Method()),
			Line: loc.LineNumber(),
		}
		path, err := loc.SourcePath()
		if err != nil {
			// No debug information; common for library code.
			stackFrames[i].PresentationHint = "subtle"
			continue
		}
		if abs, ok := s.sources.resolve(path); ok {
			stackFrames[i].Source = &dap.Source{Name: filepath.Base(abs), Path: abs}
		} else {
			stackFrames[i].PresentationHint = "subtle"
		}
	}
	totalFrames := len(stackFrames)
	if request.Arguments.StartFrame > 0 {
		stackFrames = stackFrames[min(request.Arguments.StartFrame, len(stackFrames)):]
	}
	levels := s.args.stackTraceDepth
	if request.Arguments.Levels > 0 {
		levels = min(request.Arguments.Levels, levels)
	}
	stackFrames = stackFrames[:min(levels, len(stackFrames))]
	response := &dap.StackTraceResponse{
		Response: *newResponse(request.Request),
		Body:     dap.StackTraceResponseBody{StackFrames: stackFrames, TotalFrames: totalFrames},
	}
	s.send(response)
}

// onScopesRequest handles 'scopes' requests. Scope references are
// derived arithmetically from the frame ID, so no VM round trip is
// needed here; a stale frame ID surfaces on the variables request.
func (s *Server) onScopesRequest(request *dap.ScopesRequest) {
	localsRef, argsRef := scopeReferences(request.Arguments.FrameId)
	scopes := []dap.Scope{
		{Name: "Locals", PresentationHint: "locals", VariablesReference: localsRef},
		{Name: "Arguments", PresentationHint: "arguments", VariablesReference: argsRef},
	}
	response := &dap.ScopesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ScopesResponseBody{Scopes: scopes},
	}
	s.send(response)
}

// onVariablesRequest handles 'variables' requests. Composite values are
// rendered as flat strings; structured inspection of object graphs is
// future work.
func (s *Server) onVariablesRequest(request *dap.VariablesRequest) {
	vm := s.currentVM()
	if vm == nil {
		s.sendErrorResponse(request.Request,
			UnableToLookupVariable, "Unable to lookup variable", "no debug session active")
		return
	}
	frameID, discriminant := decodeScopeReference(request.Arguments.VariablesReference)
	frame, err := frameForID(vm, frameID)
	if err != nil {
		s.sendErrorResponse(request.Request,
			UnableToLookupVariable, "Unable to lookup variable", err.Error())
		return
	}

	variables := []dap.Variable{}
	vars, err := frame.VisibleVariables()
	if err != nil {
		if !errors.Is(err, jvm.ErrAbsentInformation) {
			s.sendErrorResponse(request.Request,
				UnableToListLocals, "Unable to list variables", err.Error())
			return
		}
		// Compiled without local variable tables; an empty scope, not
		// an error.
		s.console.Warnf("No variable information in %s", frame.Location().Method())
	}
	for _, v := range vars {
		if v.IsArgument() != (discriminant == scopeArguments) {
			continue
		}
		value := "<unavailable>"
		if val, err := frame.Value(v); err != nil {
			s.log.Warnf("Failed to read %s: %v", v.Name(), err)
		} else {
			value = val.String()
		}
		variables = append(variables, dap.Variable{
			Name:  v.Name(),
			Value: value,
			Type:  v.TypeName(),
		})
	}
	response := &dap.VariablesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.VariablesResponseBody{Variables: variables},
	}
	s.send(response)
}

// onEvaluateRequest sends a not-yet-implemented error response.
// Expression evaluation needs a Java parser and method invocation
// support on the wire protocol client.
func (s *Server) onEvaluateRequest(request *dap.EvaluateRequest) {
	s.sendNotYetImplementedErrorResponse(request.Request)
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{
		Id:     id,
		Format: fmt.Sprintf("%s: %s", summary, details),
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

// sendInternalErrorResponse sends an "internal error" response back to the client.
// We only take a seq here because we don't want to make assumptions about the
// kind of message received by the server that this error is a reply to.
func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{
		Id:     InternalError,
		Format: fmt.Sprintf("%s: %s", er.Message, details),
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendUnsupportedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, UnsupportedCommand, "Unsupported command",
		fmt.Sprintf("cannot process '%s' request", request.Command))
}

func (s *Server) sendNotYetImplementedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, NotYetImplemented, "Not yet implemented",
		fmt.Sprintf("cannot process '%s' request", request.Command))
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}
