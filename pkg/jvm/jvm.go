// Package jvm defines the boundary between the debug adapter and a
// remote Java virtual machine. The session engine in service/dap is
// written entirely against these interfaces; the only production
// implementation is the dt_socket connector in pkg/jvm/jdwp, and tests
// substitute the scriptable fake in pkg/jvm/jvmtest.
package jvm

import "errors"

var (
	// ErrAbsentInformation is returned when the target was compiled
	// without debug information for the requested item (source paths,
	// line tables, local variables).
	ErrAbsentInformation = errors.New("absent debug information")

	// ErrVMDisconnected is returned by any call made after the
	// connection to the target VM has been closed. The event queue
	// returns it to signal the clean end of the event stream.
	ErrVMDisconnected = errors.New("virtual machine disconnected")
)

// SuspendPolicy determines which threads are paused when an event
// request fires. Values match the JDWP wire constants.
type SuspendPolicy byte

const (
	SuspendNone        SuspendPolicy = 0
	SuspendEventThread SuspendPolicy = 1
	SuspendAll         SuspendPolicy = 2
)

// StepSize is the granularity of a step request.
type StepSize int

const (
	StepMin  StepSize = 0
	StepLine StepSize = 1
)

// StepDepth is the direction of a step request.
type StepDepth int

const (
	StepInto StepDepth = 0
	StepOver StepDepth = 1
	StepOut  StepDepth = 2
)

// VirtualMachine is a live connection to the target VM. All methods
// that reach the wire block until the target replies; there is no
// internal timeout. After a disconnect every method returns
// ErrVMDisconnected.
type VirtualMachine interface {
	// AllThreads returns the currently live threads in the target's
	// enumeration order. The order is stable while the VM is suspended.
	AllThreads() ([]ThreadReference, error)
	// AllClasses returns all currently loaded reference types.
	AllClasses() ([]ReferenceType, error)
	EventQueue() EventQueue
	EventRequestManager() EventRequestManager
	// Resume resumes all threads suspended by an event or by attach.
	Resume() error
	// Dispose releases the connection. The target keeps running.
	// Disposing an already-disconnected VM is not an error.
	Dispose() error
	// Exit terminates the target process with the given exit code.
	Exit(code int) error
}

// ThreadReference identifies one live thread in the target.
type ThreadReference interface {
	// UniqueID is stable for the lifetime of the thread.
	UniqueID() int64
	Name() (string, error)
	// FrameCount returns the call stack depth. The thread must be
	// suspended.
	FrameCount() (int, error)
	// Frames returns the whole call stack, innermost first.
	Frames() ([]StackFrame, error)
	// Frame returns the frame at the given depth, 0 being innermost.
	Frame(index int) (StackFrame, error)
}

// StackFrame is one frame of a suspended thread's call stack. Frames
// are invalidated by any resume of their thread.
type StackFrame interface {
	Thread() ThreadReference
	Location() Location
	// VisibleVariables lists the local variables (including arguments)
	// visible at the frame's current position. Returns
	// ErrAbsentInformation when the method carries no variable table.
	VisibleVariables() ([]LocalVariable, error)
	// Value reads the current value of a variable returned by
	// VisibleVariables on this same frame.
	Value(v LocalVariable) (Value, error)
}

// ReferenceType is a loaded class or interface.
type ReferenceType interface {
	// Name is the fully qualified binary name, e.g. "com.example.Foo".
	Name() string
	// SourcePath is the path of the defining source file relative to
	// its source root, e.g. "com/example/Foo.java". Returns
	// ErrAbsentInformation when unavailable.
	SourcePath() (string, error)
	// LocationsOfLine returns all executable locations on the given
	// source line, one per method containing code for it. An empty
	// slice means the line has no code.
	LocationsOfLine(line int) ([]Location, error)
}

// Location is an executable position within a method.
type Location interface {
	DeclaringType() ReferenceType
	// Method is the name of the containing method.
	Method() string
	LineNumber() int
	// SourceName is the base name of the defining source file.
	SourceName() (string, error)
	// SourcePath is the root-relative path of the defining source file.
	SourcePath() (string, error)
}

// LocalVariable describes one slot of a method's variable table.
type LocalVariable interface {
	Name() string
	TypeName() string
	// IsArgument reports whether the variable is a method parameter.
	IsArgument() bool
}

// Value is a snapshot of a variable's value. Structured inspection is
// not part of this boundary; String renders a one-line representation.
type Value interface {
	String() string
}

// EventQueue delivers event sets from the target in arrival order.
type EventQueue interface {
	// Remove blocks until the next event set arrives. It returns
	// ErrVMDisconnected after the final (disconnect) set has been
	// delivered.
	Remove() (*EventSet, error)
}

// EventSet is one atomic batch of simultaneous events. The suspend
// policy applies to the batch as a whole.
type EventSet struct {
	SuspendPolicy SuspendPolicy
	Events        []Event
}

// Event is one notification from the target VM. The concrete types are
// ClassPrepareEvent, BreakpointEvent, StepEvent, VMStartEvent,
// VMDeathEvent and VMDisconnectEvent; consumers dispatch with a type
// switch.
type Event interface {
	event()
}

// ClassPrepareEvent reports that a reference type became loaded and
// usable. The VM is suspended per the originating request's policy and
// must be resumed after handling.
type ClassPrepareEvent struct {
	Thread ThreadReference
	Type   ReferenceType
}

// BreakpointEvent reports that a thread hit an enabled breakpoint.
type BreakpointEvent struct {
	Thread  ThreadReference
	Request BreakpointRequest
}

// StepEvent reports the completion of a step request.
type StepEvent struct {
	Thread  ThreadReference
	Request StepRequest
}

// VMStartEvent is delivered once after attach if the target was
// started suspended.
type VMStartEvent struct {
	Thread ThreadReference
}

// VMDeathEvent reports that the target is about to terminate normally.
type VMDeathEvent struct{}

// VMDisconnectEvent is the last event delivered; the connection to the
// target is gone.
type VMDisconnectEvent struct{}

func (ClassPrepareEvent) event() {}
func (BreakpointEvent) event()   {}
func (StepEvent) event()         {}
func (VMStartEvent) event()      {}
func (VMDeathEvent) event()      {}
func (VMDisconnectEvent) event() {}

// EventRequestManager creates and deletes event requests on the target.
type EventRequestManager interface {
	CreateClassPrepareRequest() ClassPrepareRequest
	CreateBreakpointRequest(loc Location) BreakpointRequest
	CreateStepRequest(thread ThreadReference, size StepSize, depth StepDepth) StepRequest
	// DeleteRequest disables and removes a request from the target.
	// Deleting a request on a dead VM is not an error.
	DeleteRequest(req EventRequest) error
}

// EventRequest is a request for the target to report a class of events.
// Filters and the suspend policy must be configured before Enable;
// they cannot be changed while the request is enabled.
type EventRequest interface {
	SetSuspendPolicy(policy SuspendPolicy)
	SuspendPolicy() SuspendPolicy
	// AddCountFilter limits the request to firing count times, after
	// which the target disables it.
	AddCountFilter(count int)
	Enable() error
	Disable() error
}

// ClassPrepareRequest fires when matching types are loaded.
type ClassPrepareRequest interface {
	EventRequest
	// AddSourceNameFilter restricts the request to types whose source
	// name matches the pattern. A leading or trailing '*' matches any
	// prefix or suffix.
	AddSourceNameFilter(pattern string)
}

// BreakpointRequest fires when any thread reaches its location.
type BreakpointRequest interface {
	EventRequest
	Location() Location
}

// StepRequest fires when its thread completes a step.
type StepRequest interface {
	EventRequest
	Thread() ThreadReference
}
