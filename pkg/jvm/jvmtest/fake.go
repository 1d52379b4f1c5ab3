// Package jvmtest provides a scriptable in-memory implementation of the
// jvm boundary for testing the session engine without a real target VM.
// Tests build a VM out of threads, frames and classes, inject event
// sets, and assert on the requests the engine created.
package jvmtest

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// Connector is a scriptable attaching connector. It refuses the first
// RefuseFirst attach attempts with a connection-refused error and then
// hands out VM. Register it under a test-unique transport name.
type Connector struct {
	TransportName string
	RefuseFirst   int
	VM            *VM

	mu       sync.Mutex
	attempts int
}

var _ jvm.Connector = (*Connector)(nil)

func (c *Connector) Transport() string { return c.TransportName }

func (c *Connector) Attach(host string, port int) (jvm.VirtualMachine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.RefuseFirst {
		return nil, fmt.Errorf("dial tcp %s:%d: %w", host, port, syscall.ECONNREFUSED)
	}
	return c.VM, nil
}

// Attempts returns how many attach attempts were made.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// VM is a fake target VM. The zero value is not usable; construct with
// NewVM.
type VM struct {
	Requests *RequestManager

	mu        sync.Mutex
	threads   []*Thread
	classes   []*Class
	events    chan *jvm.EventSet
	closeOnce sync.Once
	resumed   chan struct{}
	resumes   int
	disposed  bool
	exitCode  int
	exited    bool
}

var _ jvm.VirtualMachine = (*VM)(nil)

func NewVM() *VM {
	vm := &VM{
		events:  make(chan *jvm.EventSet, 16),
		resumed: make(chan struct{}, 64),
	}
	vm.Requests = &RequestManager{vm: vm}
	return vm
}

func (vm *VM) AllThreads() ([]jvm.ThreadReference, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]jvm.ThreadReference, len(vm.threads))
	for i, t := range vm.threads {
		out[i] = t
	}
	return out, nil
}

func (vm *VM) AllClasses() ([]jvm.ReferenceType, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]jvm.ReferenceType, len(vm.classes))
	for i, c := range vm.classes {
		out[i] = c
	}
	return out, nil
}

func (vm *VM) EventQueue() jvm.EventQueue                   { return queue{vm} }
func (vm *VM) EventRequestManager() jvm.EventRequestManager { return vm.Requests }

func (vm *VM) Resume() error {
	vm.mu.Lock()
	vm.resumes++
	vm.mu.Unlock()
	select {
	case vm.resumed <- struct{}{}:
	default:
	}
	return nil
}

// Dispose marks the VM disposed and ends the event stream with a final
// disconnect set, like a real connector closing its socket.
func (vm *VM) Dispose() error {
	vm.mu.Lock()
	vm.disposed = true
	vm.mu.Unlock()
	vm.Disconnect()
	return nil
}

func (vm *VM) Exit(code int) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.exited = true
	vm.exitCode = code
	return nil
}

// Resumes returns how many times Resume was called.
func (vm *VM) Resumes() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.resumes
}

// Resumed delivers one notification per Resume call, for tests that
// need to wait for the engine to let the target run.
func (vm *VM) Resumed() <-chan struct{} { return vm.resumed }

// Disposed reports whether Dispose was called.
func (vm *VM) Disposed() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.disposed
}

// Exited returns whether Exit was called and with which code.
func (vm *VM) Exited() (bool, int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.exited, vm.exitCode
}

// AddThread adds a live thread.
func (vm *VM) AddThread(id int64, name string) *Thread {
	t := &Thread{vm: vm, id: id, name: name}
	vm.mu.Lock()
	vm.threads = append(vm.threads, t)
	vm.mu.Unlock()
	return t
}

// AddClass adds a loaded class reporting the given root-relative source
// path.
func (vm *VM) AddClass(name, sourcePath string) *Class {
	c := &Class{name: name, sourcePath: sourcePath}
	vm.mu.Lock()
	vm.classes = append(vm.classes, c)
	vm.mu.Unlock()
	return c
}

// PushEventSet injects one event set into the queue.
func (vm *VM) PushEventSet(policy jvm.SuspendPolicy, events ...jvm.Event) {
	vm.events <- &jvm.EventSet{SuspendPolicy: policy, Events: events}
}

// Disconnect injects the final disconnect set and ends the stream.
// Safe to call more than once.
func (vm *VM) Disconnect() {
	vm.closeOnce.Do(func() {
		vm.events <- &jvm.EventSet{Events: []jvm.Event{jvm.VMDisconnectEvent{}}}
		close(vm.events)
	})
}

type queue struct{ vm *VM }

func (q queue) Remove() (*jvm.EventSet, error) {
	set, ok := <-q.vm.events
	if !ok {
		return nil, jvm.ErrVMDisconnected
	}
	return set, nil
}

// Thread is a fake live thread.
type Thread struct {
	vm   *VM
	id   int64
	name string

	mu     sync.Mutex
	frames []*Frame
}

var _ jvm.ThreadReference = (*Thread)(nil)

func (t *Thread) UniqueID() int64       { return t.id }
func (t *Thread) Name() (string, error) { return t.name, nil }

func (t *Thread) FrameCount() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames), nil
}

func (t *Thread) Frames() ([]jvm.StackFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]jvm.StackFrame, len(t.frames))
	for i, f := range t.frames {
		out[i] = f
	}
	return out, nil
}

func (t *Thread) Frame(index int) (jvm.StackFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.frames) {
		return nil, fmt.Errorf("no frame at index %d", index)
	}
	return t.frames[index], nil
}

// AddFrame appends a frame to the thread's stack. Add frames innermost
// first, matching the order Frames reports them.
func (t *Thread) AddFrame(class *Class, method string, line int) *Frame {
	f := &Frame{thread: t, loc: &Location{declaring: class, method: method, line: line}}
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()
	return f
}

// Frame is one fake stack frame.
type Frame struct {
	thread *Thread
	loc    *Location

	// AbsentInfo makes VisibleVariables fail like a method compiled
	// without a variable table.
	AbsentInfo bool

	mu   sync.Mutex
	vars []*Variable
}

var _ jvm.StackFrame = (*Frame)(nil)

func (f *Frame) Thread() jvm.ThreadReference { return f.thread }
func (f *Frame) Location() jvm.Location      { return f.loc }

func (f *Frame) VisibleVariables() ([]jvm.LocalVariable, error) {
	if f.AbsentInfo {
		return nil, jvm.ErrAbsentInformation
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]jvm.LocalVariable, len(f.vars))
	for i, v := range f.vars {
		out[i] = v
	}
	return out, nil
}

func (f *Frame) Value(v jvm.LocalVariable) (jvm.Value, error) {
	fv, ok := v.(*Variable)
	if !ok || fv.frame != f {
		return nil, fmt.Errorf("variable %s does not belong to this frame", v.Name())
	}
	return stringValue(fv.value), nil
}

// AddLocal adds a non-argument local variable with a rendered value.
func (f *Frame) AddLocal(name, typeName, value string) *Frame {
	return f.addVariable(name, typeName, value, false)
}

// AddArgument adds a method parameter with a rendered value.
func (f *Frame) AddArgument(name, typeName, value string) *Frame {
	return f.addVariable(name, typeName, value, true)
}

func (f *Frame) addVariable(name, typeName, value string, argument bool) *Frame {
	f.mu.Lock()
	f.vars = append(f.vars, &Variable{frame: f, name: name, typeName: typeName, value: value, argument: argument})
	f.mu.Unlock()
	return f
}

// Class is a fake loaded reference type.
type Class struct {
	name       string
	sourcePath string

	// AbsentInfo makes SourcePath and LocationsOfLine fail like a class
	// compiled without debug information.
	AbsentInfo bool

	mu    sync.Mutex
	lines map[int][]*Location
}

var _ jvm.ReferenceType = (*Class)(nil)

func (c *Class) Name() string { return c.name }

func (c *Class) SourcePath() (string, error) {
	if c.AbsentInfo {
		return "", jvm.ErrAbsentInformation
	}
	return c.sourcePath, nil
}

func (c *Class) LocationsOfLine(line int) ([]jvm.Location, error) {
	if c.AbsentInfo {
		return nil, jvm.ErrAbsentInformation
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	locs := c.lines[line]
	out := make([]jvm.Location, len(locs))
	for i, l := range locs {
		out[i] = l
	}
	return out, nil
}

// AddLine registers an executable location for a source line and
// returns it, for use in breakpoint assertions and event injection.
func (c *Class) AddLine(line int, method string) *Location {
	loc := &Location{declaring: c, method: method, line: line}
	c.mu.Lock()
	if c.lines == nil {
		c.lines = make(map[int][]*Location)
	}
	c.lines[line] = append(c.lines[line], loc)
	c.mu.Unlock()
	return loc
}

// Location is a fake executable position.
type Location struct {
	declaring *Class
	method    string
	line      int
}

var _ jvm.Location = (*Location)(nil)

func (l *Location) DeclaringType() jvm.ReferenceType { return l.declaring }
func (l *Location) Method() string                   { return l.method }
func (l *Location) LineNumber() int                  { return l.line }

func (l *Location) SourceName() (string, error) {
	path, err := l.declaring.SourcePath()
	if err != nil {
		return "", err
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:], nil
		}
	}
	return path, nil
}

func (l *Location) SourcePath() (string, error) { return l.declaring.SourcePath() }

// Variable is a fake local variable with a pre-rendered value.
type Variable struct {
	frame    *Frame
	name     string
	typeName string
	value    string
	argument bool
}

var _ jvm.LocalVariable = (*Variable)(nil)

func (v *Variable) Name() string     { return v.name }
func (v *Variable) TypeName() string { return v.typeName }
func (v *Variable) IsArgument() bool { return v.argument }

type stringValue string

func (s stringValue) String() string { return string(s) }

// RequestManager records every event request the engine creates.
type RequestManager struct {
	vm *VM

	mu            sync.Mutex
	breakpoints   []*BreakpointRequest
	classPrepares []*ClassPrepareRequest
	steps         []*StepRequest
	deleted       []jvm.EventRequest
}

var _ jvm.EventRequestManager = (*RequestManager)(nil)

func (rm *RequestManager) CreateClassPrepareRequest() jvm.ClassPrepareRequest {
	req := &ClassPrepareRequest{}
	rm.mu.Lock()
	rm.classPrepares = append(rm.classPrepares, req)
	rm.mu.Unlock()
	return req
}

func (rm *RequestManager) CreateBreakpointRequest(loc jvm.Location) jvm.BreakpointRequest {
	req := &BreakpointRequest{loc: loc}
	rm.mu.Lock()
	rm.breakpoints = append(rm.breakpoints, req)
	rm.mu.Unlock()
	return req
}

func (rm *RequestManager) CreateStepRequest(thread jvm.ThreadReference, size jvm.StepSize, depth jvm.StepDepth) jvm.StepRequest {
	req := &StepRequest{thread: thread, size: size, depth: depth}
	rm.mu.Lock()
	rm.steps = append(rm.steps, req)
	rm.mu.Unlock()
	return req
}

func (rm *RequestManager) DeleteRequest(req jvm.EventRequest) error {
	req.Disable()
	rm.mu.Lock()
	rm.deleted = append(rm.deleted, req)
	rm.mu.Unlock()
	return nil
}

// Breakpoints returns all breakpoint requests ever created.
func (rm *RequestManager) Breakpoints() []*BreakpointRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]*BreakpointRequest(nil), rm.breakpoints...)
}

// EnabledBreakpoints returns the breakpoint requests currently enabled.
func (rm *RequestManager) EnabledBreakpoints() []*BreakpointRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	var out []*BreakpointRequest
	for _, req := range rm.breakpoints {
		if req.Enabled() {
			out = append(out, req)
		}
	}
	return out
}

// ClassPrepares returns all class prepare requests ever created.
func (rm *RequestManager) ClassPrepares() []*ClassPrepareRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]*ClassPrepareRequest(nil), rm.classPrepares...)
}

// Steps returns all step requests ever created.
func (rm *RequestManager) Steps() []*StepRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]*StepRequest(nil), rm.steps...)
}

// Deleted returns the requests passed to DeleteRequest.
func (rm *RequestManager) Deleted() []jvm.EventRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]jvm.EventRequest(nil), rm.deleted...)
}

// baseRequest implements the shared jvm.EventRequest surface.
type baseRequest struct {
	// EnableErr, when set, is returned by Enable.
	EnableErr error

	mu      sync.Mutex
	policy  jvm.SuspendPolicy
	count   int
	enabled bool
}

func (r *baseRequest) SetSuspendPolicy(policy jvm.SuspendPolicy) {
	r.mu.Lock()
	r.policy = policy
	r.mu.Unlock()
}

func (r *baseRequest) SuspendPolicy() jvm.SuspendPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

func (r *baseRequest) AddCountFilter(count int) {
	r.mu.Lock()
	r.count = count
	r.mu.Unlock()
}

// CountFilter returns the configured count filter, 0 when none.
func (r *baseRequest) CountFilter() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *baseRequest) Enable() error {
	if r.EnableErr != nil {
		return r.EnableErr
	}
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
	return nil
}

func (r *baseRequest) Disable() error {
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
	return nil
}

// Enabled reports whether the request is currently enabled.
func (r *baseRequest) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// ClassPrepareRequest records its source name filters.
type ClassPrepareRequest struct {
	baseRequest

	mu       sync.Mutex
	patterns []string
}

var _ jvm.ClassPrepareRequest = (*ClassPrepareRequest)(nil)

func (r *ClassPrepareRequest) AddSourceNameFilter(pattern string) {
	r.mu.Lock()
	r.patterns = append(r.patterns, pattern)
	r.mu.Unlock()
}

// Patterns returns the source name filters added to the request.
func (r *ClassPrepareRequest) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.patterns...)
}

// BreakpointRequest remembers its location.
type BreakpointRequest struct {
	baseRequest
	loc jvm.Location
}

var _ jvm.BreakpointRequest = (*BreakpointRequest)(nil)

func (r *BreakpointRequest) Location() jvm.Location { return r.loc }

// StepRequest remembers its thread, size and depth.
type StepRequest struct {
	baseRequest
	thread jvm.ThreadReference
	size   jvm.StepSize
	depth  jvm.StepDepth
}

var _ jvm.StepRequest = (*StepRequest)(nil)

func (r *StepRequest) Thread() jvm.ThreadReference { return r.thread }

// Size returns the step granularity the request was created with.
func (r *StepRequest) Size() jvm.StepSize { return r.size }

// Depth returns the step direction the request was created with.
func (r *StepRequest) Depth() jvm.StepDepth { return r.depth }
